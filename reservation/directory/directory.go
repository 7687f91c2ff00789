package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// DefaultURL is the public user list the reference venue resolves occupants against.
const DefaultURL = "https://jsonplaceholder.typicode.com/users"

// Unknown is displayed for occupants without a resolved name.
const Unknown = "unknown"

// State of the directory load.
type State string

const (
	NotLoaded State = "not_loaded"
	Loading   State = "loading"
	Loaded    State = "loaded"
	Failed    State = "failed"
)

// User is one entry of the remote list. Extra fields are ignored.
type User struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Directory resolves occupant ids to display names. It never blocks callers
// of Name; until a load succeeds every lookup returns Unknown.
type Directory struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter
	log     logrus.FieldLogger

	mu      sync.RWMutex
	state   State
	names   map[int]string
	lastErr error
	pending chan struct{}
}

// Option configures a Directory
type Option func(*Directory)

// WithHTTPClient replaces the default client (10s timeout)
func WithHTTPClient(c *http.Client) Option {
	return func(d *Directory) { d.client = c }
}

// WithLimiter replaces the refresh limiter (one fetch per 30s, burst 1)
func WithLimiter(l *rate.Limiter) Option {
	return func(d *Directory) { d.limiter = l }
}

// WithLogger sets the logger used for load failures
func WithLogger(l logrus.FieldLogger) Option {
	return func(d *Directory) { d.log = l }
}

// New creates an unloaded directory for url; an empty url uses DefaultURL
func New(url string, opts ...Option) *Directory {
	if url == "" {
		url = DefaultURL
	}
	d := &Directory{
		url:     url,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Every(30*time.Second), 1),
		log:     logrus.WithField("pkg", "directory"),
		state:   NotLoaded,
		names:   map[int]string{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// State returns the load state
func (d *Directory) State() State {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.state
}

// Err returns the error of the last failed load
func (d *Directory) Err() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.lastErr
}

// Lookup returns the name of id and whether it is known
func (d *Directory) Lookup(id int) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	name, ok := d.names[id]
	return name, ok
}

// Name returns the name of id or Unknown
func (d *Directory) Name(id int) string {
	if name, ok := d.Lookup(id); ok && name != "" {
		return name
	}
	return Unknown
}

// LoadAsync starts a background load unless one is already running, and
// returns a channel closed when that load finishes.
func (d *Directory) LoadAsync(ctx context.Context) <-chan struct{} {
	d.mu.Lock()
	if d.pending != nil {
		ch := d.pending
		d.mu.Unlock()
		return ch
	}
	ch := make(chan struct{})
	d.pending = ch
	d.mu.Unlock()

	go func() {
		defer func() {
			d.mu.Lock()
			d.pending = nil
			d.mu.Unlock()
			close(ch)
		}()
		if err := d.Load(ctx); err != nil {
			d.log.WithError(err).Warn("user directory unavailable, occupant names fall back to unknown")
		}
	}()
	return ch
}

// Load fetches the user list and replaces the name table. On failure the
// previous table is kept. A directory that already serves names stays Loaded
// while it refreshes and when a refresh fails; the error is still reported by
// Err.
func (d *Directory) Load(ctx context.Context) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return d.fail(fmt.Errorf("directory refresh throttled: %w", err))
	}

	d.mu.Lock()
	if len(d.names) == 0 {
		d.state = Loading
	}
	d.mu.Unlock()

	users, err := d.fetch(ctx)
	if err != nil {
		return d.fail(err)
	}

	names := make(map[int]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}

	d.mu.Lock()
	d.names = names
	d.state = Loaded
	d.lastErr = nil
	d.mu.Unlock()

	d.log.WithField("users", len(names)).Debug("user directory loaded")
	return nil
}

func (d *Directory) fetch(ctx context.Context) ([]User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build directory request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("directory request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("directory returned status %d", resp.StatusCode)
	}

	var users []User
	if err := json.NewDecoder(resp.Body).Decode(&users); err != nil {
		return nil, fmt.Errorf("failed to decode directory: %w", err)
	}
	return users, nil
}

func (d *Directory) fail(err error) error {
	d.mu.Lock()
	if len(d.names) == 0 {
		d.state = Failed
	}
	d.lastErr = err
	d.mu.Unlock()
	return err
}
