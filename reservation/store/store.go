package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is the "no value" sentinel returned by Get for absent keys.
	ErrNotFound       = errors.New("store: key not found")
	ErrUnsupportedDSN = errors.New("store: unsupported dsn")
	ErrClosed         = errors.New("store: closed")
)

// Store defines the key/value contract used to persist session snapshots.
// Keys and values carry no meaning for the store.
type Store interface {
	// Get returns the value for key or ErrNotFound
	Get(ctx context.Context, key string) (string, error)

	// Set writes value under key, replacing any previous value
	Set(ctx context.Context, key, value string) error

	// Remove deletes key; removing an absent key is not an error
	Remove(ctx context.Context, key string) error

	// Close releases the underlying resources
	Close() error
}

// GetMany reads several keys and returns the ones present. The first error
// other than ErrNotFound aborts the read.
func GetMany(ctx context.Context, s Store, keys ...string) (map[string]string, error) {
	values := make(map[string]string, len(keys))
	for _, key := range keys {
		value, err := s.Get(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		values[key] = value
	}
	return values, nil
}

// RemoveMany removes every key and returns the joined errors.
func RemoveMany(ctx context.Context, s Store, keys ...string) error {
	var errs []error
	for _, key := range keys {
		if err := s.Remove(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
