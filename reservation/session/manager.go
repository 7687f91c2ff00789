package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/wricardo/seatsession/reservation/events"
	"github.com/wricardo/seatsession/reservation/grid"
	"github.com/wricardo/seatsession/reservation/store"
)

// IndexKey lists every session known to the base store.
const IndexKey = "sessions"

// VenueResolver returns the venue configuration for a venue id.
type VenueResolver func(venueID string) (*grid.VenueConfig, error)

// Session is a managed controller plus its bookkeeping.
type Session struct {
	ID             string
	VenueID        string
	CreatedAt      time.Time
	LastAccessedAt time.Time
	Controller     *Controller
}

// IndexEntry is one element of the persisted sessions index.
type IndexEntry struct {
	ID        string    `json:"id"`
	VenueID   string    `json:"venue_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ManagerOptions configures a Manager. Controllers share every collaborator;
// each one gets its own key namespace in Store.
type ManagerOptions struct {
	Store     store.Store
	Clock     clockwork.Clock
	Directory Directory
	Publisher events.Publisher
	Logger    logrus.FieldLogger
	Resolver  VenueResolver
	OnChange  func(event string, view *View)

	// AutoStart runs each controller's periodic inactivity check.
	AutoStart bool
}

// Manager handles reservation session lifecycle
type Manager struct {
	opts     ManagerOptions
	log      logrus.FieldLogger
	sessions map[string]*Session
	index    []IndexEntry
	mu       sync.RWMutex
}

// NewManager creates a new session manager
func NewManager(opts ManagerOptions) *Manager {
	if opts.Store == nil {
		opts.Store = store.NewMemory()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.WithField("pkg", "session")
	}
	return &Manager{
		opts:     opts,
		log:      opts.Logger,
		sessions: make(map[string]*Session),
	}
}

// Namespace returns the key prefix of a session in the base store.
func Namespace(id string) string {
	return "session:" + strings.ToLower(id) + ":"
}

// Create starts a new session. An empty id gets a random UUID.
func (m *Manager) Create(ctx context.Context, id, venueID string, venue *grid.VenueConfig) (*Session, error) {
	if id == "" {
		id = uuid.NewString()
	}
	if strings.ContainsAny(id, ":/ ") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}
	key := strings.ToLower(id)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[key]; exists {
		return nil, ErrSessionExists
	}

	sess, err := m.openLocked(ctx, id, venueID, venue, m.opts.Clock.Now())
	if err != nil {
		return nil, err
	}

	m.index = append(m.index, IndexEntry{ID: id, VenueID: venueID, CreatedAt: sess.CreatedAt})
	m.saveIndexLocked(ctx)

	m.publish(ctx, sess, events.SessionCreated)
	m.log.WithFields(logrus.Fields{"session": id, "venue": venueID}).Info("session created")
	return sess, nil
}

func (m *Manager) openLocked(ctx context.Context, id, venueID string, venue *grid.VenueConfig, createdAt time.Time) (*Session, error) {
	ctrl, err := NewController(ctx, Options{
		ID:        id,
		VenueID:   venueID,
		Venue:     venue,
		Store:     store.WithPrefix(m.opts.Store, Namespace(id)),
		Clock:     m.opts.Clock,
		Directory: m.opts.Directory,
		Publisher: m.opts.Publisher,
		Logger:    m.opts.Logger,
		OnChange:  m.opts.OnChange,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create controller: %w", err)
	}
	if m.opts.AutoStart {
		ctrl.Start(context.Background())
	}

	sess := &Session{
		ID:             id,
		VenueID:        venueID,
		CreatedAt:      createdAt,
		LastAccessedAt: m.opts.Clock.Now(),
		Controller:     ctrl,
	}
	m.sessions[strings.ToLower(id)] = sess
	return sess, nil
}

// Get retrieves a session by ID (case-insensitive). Sessions evicted from
// memory are reopened from the index when a resolver is configured.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	key := strings.ToLower(id)

	m.mu.Lock()
	defer m.mu.Unlock()

	if sess, ok := m.sessions[key]; ok {
		sess.LastAccessedAt = m.opts.Clock.Now()
		return sess, nil
	}

	entry, ok := m.findIndexLocked(key)
	if !ok || m.opts.Resolver == nil {
		return nil, ErrSessionNotFound
	}
	venue, err := m.opts.Resolver(entry.VenueID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve venue %q: %w", entry.VenueID, err)
	}
	return m.openLocked(ctx, entry.ID, entry.VenueID, venue, entry.CreatedAt)
}

// List returns all in-memory sessions, oldest first
func (m *Manager) List() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		result = append(result, sess)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

// Count returns the number of in-memory sessions
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Delete closes a session and removes its persisted state
func (m *Manager) Delete(ctx context.Context, id string) error {
	key := strings.ToLower(id)

	m.mu.Lock()
	sess, inMemory := m.sessions[key]
	delete(m.sessions, key)
	_, indexed := m.findIndexLocked(key)
	m.removeIndexLocked(key)
	if indexed {
		m.saveIndexLocked(ctx)
	}
	m.mu.Unlock()

	if !inMemory && !indexed {
		return ErrSessionNotFound
	}

	if inMemory {
		sess.Controller.Close()
		m.publish(ctx, sess, events.SessionDeleted)
	}
	err := store.RemoveMany(ctx, store.WithPrefix(m.opts.Store, Namespace(id)), grid.SnapshotKeys...)
	if err != nil {
		return fmt.Errorf("failed to delete persisted session: %w", err)
	}
	return nil
}

// ReadIndex returns the sessions index persisted in st. A store without an
// index yields no entries.
func ReadIndex(ctx context.Context, st store.Store) ([]IndexEntry, error) {
	raw, err := st.Get(ctx, IndexKey)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session index: %w", err)
	}

	var entries []IndexEntry
	if err := json.Unmarshal([]byte(raw), &entries); err != nil {
		return nil, fmt.Errorf("failed to parse session index: %w", err)
	}
	return entries, nil
}

// LoadPersisted reopens every indexed session that is not in memory. Sessions
// whose venue cannot be resolved are skipped with a warning.
func (m *Manager) LoadPersisted(ctx context.Context) (int, error) {
	if m.opts.Resolver == nil {
		return 0, errors.New("no venue resolver configured")
	}

	entries, err := ReadIndex(ctx, m.opts.Store)
	if err != nil {
		return 0, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	loaded := 0
	for _, entry := range entries {
		key := strings.ToLower(entry.ID)
		if _, known := m.findIndexLocked(key); !known {
			m.index = append(m.index, entry)
		}
		if _, exists := m.sessions[key]; exists {
			continue
		}

		venue, err := m.opts.Resolver(entry.VenueID)
		if err != nil {
			m.log.WithError(err).WithField("session", entry.ID).Warn("skipping persisted session")
			continue
		}
		if _, err := m.openLocked(ctx, entry.ID, entry.VenueID, venue, entry.CreatedAt); err != nil {
			m.log.WithError(err).WithField("session", entry.ID).Warn("failed to load persisted session")
			continue
		}
		loaded++
	}

	if loaded > 0 {
		m.log.WithField("count", loaded).Info("loaded persisted sessions")
	}
	return loaded, nil
}

// CleanupIdle closes sessions not accessed within maxAge and drops them from
// memory. Their persisted state stays so Get can reopen them.
func (m *Manager) CleanupIdle(maxAge time.Duration) int {
	cutoff := m.opts.Clock.Now().Add(-maxAge)

	m.mu.Lock()
	var idle []*Session
	for key, sess := range m.sessions {
		if sess.LastAccessedAt.Before(cutoff) {
			delete(m.sessions, key)
			idle = append(idle, sess)
		}
	}
	m.mu.Unlock()

	for _, sess := range idle {
		sess.Controller.Close()
	}
	return len(idle)
}

// Close stops every controller
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		sessions = append(sessions, sess)
	}
	m.mu.Unlock()

	for _, sess := range sessions {
		sess.Controller.Close()
	}
}

func (m *Manager) findIndexLocked(key string) (IndexEntry, bool) {
	for _, e := range m.index {
		if strings.ToLower(e.ID) == key {
			return e, true
		}
	}
	return IndexEntry{}, false
}

func (m *Manager) removeIndexLocked(key string) {
	kept := m.index[:0]
	for _, e := range m.index {
		if strings.ToLower(e.ID) != key {
			kept = append(kept, e)
		}
	}
	m.index = kept
}

func (m *Manager) saveIndexLocked(ctx context.Context) {
	index := m.index
	if index == nil {
		index = []IndexEntry{}
	}
	data, err := json.Marshal(index)
	if err == nil {
		err = m.opts.Store.Set(ctx, IndexKey, string(data))
	}
	if err != nil {
		m.log.WithError(err).Warn("failed to persist session index")
	}
}

func (m *Manager) publish(ctx context.Context, sess *Session, name string) {
	if m.opts.Publisher == nil {
		return
	}
	ev := events.Event{
		Name:      name,
		SessionID: sess.ID,
		Venue:     sess.VenueID,
		At:        m.opts.Clock.Now(),
	}
	if err := m.opts.Publisher.Publish(ctx, ev); err != nil {
		m.log.WithError(err).WithField("event", name).Warn("failed to publish event")
	}
}
