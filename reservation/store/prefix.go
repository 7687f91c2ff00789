package store

import "context"

// Prefixed namespaces every key of an underlying store. Closing a Prefixed
// store does not close the underlying one.
type Prefixed struct {
	base   Store
	prefix string
}

// WithPrefix returns a view of base where every key is prepended with prefix
func WithPrefix(base Store, prefix string) *Prefixed {
	return &Prefixed{base: base, prefix: prefix}
}

// Prefix returns the namespace prefix
func (p *Prefixed) Prefix() string {
	return p.prefix
}

func (p *Prefixed) Get(ctx context.Context, key string) (string, error) {
	return p.base.Get(ctx, p.prefix+key)
}

func (p *Prefixed) Set(ctx context.Context, key, value string) error {
	return p.base.Set(ctx, p.prefix+key, value)
}

func (p *Prefixed) Remove(ctx context.Context, key string) error {
	return p.base.Remove(ctx, p.prefix+key)
}

func (p *Prefixed) Close() error {
	return nil
}
