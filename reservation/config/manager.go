package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/wricardo/seatsession/reservation/grid"
)

var (
	ErrConfigNotFound = errors.New("venue configuration not found")
	ErrInvalidConfig  = errors.New("invalid venue configuration")
)

// DefaultVenueID is preferred as the default venue when present.
const DefaultVenueID = "reference"

// VenueInfo summarises a venue configuration file
type VenueInfo struct {
	Filename      string  `json:"filename"`
	VenueID       string  `json:"venue_id"` // identifier to use for session creation
	Name          string  `json:"name"`
	Description   string  `json:"description"`
	SeatCount     int     `json:"seat_count"`
	MaxSelectable int     `json:"max_selectable"`
	PricePerSeat  float64 `json:"price_per_seat"`
	Currency      string  `json:"currency"`
}

// Manager handles venue configuration loading and caching
type Manager struct {
	configDir     string
	defaultConfig *grid.VenueConfig
	configs       map[string]*grid.VenueConfig
	mu            sync.RWMutex
}

// NewManager creates a new configuration manager
func NewManager(configDir string) (*Manager, error) {
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return nil, fmt.Errorf("config directory does not exist: %s", configDir)
	}

	m := &Manager{
		configDir: configDir,
		configs:   make(map[string]*grid.VenueConfig),
	}
	m.loadDefaultConfig()
	return m, nil
}

// Dir returns the configuration directory
func (m *Manager) Dir() string {
	return m.configDir
}

// LoadConfig loads a venue by id (file name without .json)
func (m *Manager) LoadConfig(id string) (*grid.VenueConfig, error) {
	id = strings.TrimSuffix(id, ".json")
	if id == "" || strings.ContainsAny(id, `/\`) {
		return nil, ErrConfigNotFound
	}

	m.mu.RLock()
	if cfg, ok := m.configs[id]; ok {
		m.mu.RUnlock()
		return cfg, nil
	}
	m.mu.RUnlock()

	cfg, err := ReadFile(filepath.Join(m.configDir, id+".json"))
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// another goroutine may have loaded it meanwhile
	if cached, ok := m.configs[id]; ok {
		return cached, nil
	}
	m.configs[id] = cfg
	return cfg, nil
}

// ReadFile parses and validates a single venue file.
func ReadFile(path string) (*grid.VenueConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg grid.VenueConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}
	if err := grid.ValidateVenueConfig(&cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return &cfg, nil
}

// ListConfigs returns information about every valid venue, sorted by id.
// Invalid files are skipped.
func (m *Manager) ListConfigs() ([]*VenueInfo, error) {
	entries, err := os.ReadDir(m.configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var infos []*VenueInfo
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}

		id := strings.TrimSuffix(entry.Name(), ".json")
		cfg, err := m.LoadConfig(id)
		if err != nil {
			continue
		}
		infos = append(infos, Info(entry.Name(), id, cfg))
	}

	sort.Slice(infos, func(i, j int) bool { return infos[i].VenueID < infos[j].VenueID })
	return infos, nil
}

// Info builds the summary of a loaded venue
func Info(filename, id string, cfg *grid.VenueConfig) *VenueInfo {
	return &VenueInfo{
		Filename:      filename,
		VenueID:       id,
		Name:          cfg.Name,
		Description:   cfg.Description,
		SeatCount:     cfg.SeatCount,
		MaxSelectable: cfg.MaxSelectable,
		PricePerSeat:  cfg.PricePerSeat,
		Currency:      cfg.Currency,
	}
}

// GetDefault returns the default venue
func (m *Manager) GetDefault() *grid.VenueConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultConfig
}

// SetDefault sets the default venue by id
func (m *Manager) SetDefault(id string) error {
	cfg, err := m.LoadConfig(id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultConfig = cfg
	return nil
}

// RefreshCache drops every cached venue and reloads the default from disk
func (m *Manager) RefreshCache() {
	m.mu.Lock()
	m.configs = make(map[string]*grid.VenueConfig)
	m.mu.Unlock()

	m.loadDefaultConfig()
}

// loadDefaultConfig picks reference.json, then the first valid venue, then
// the built-in reference venue.
func (m *Manager) loadDefaultConfig() {
	cfg, err := m.LoadConfig(DefaultVenueID)
	if err != nil {
		cfg = grid.ReferenceVenue()
		if infos, listErr := m.ListConfigs(); listErr == nil && len(infos) > 0 {
			if first, loadErr := m.LoadConfig(infos[0].VenueID); loadErr == nil {
				cfg = first
			}
		}
	}

	m.mu.Lock()
	m.defaultConfig = cfg
	m.mu.Unlock()
}

// SaveConfig validates and writes a venue to disk
func (m *Manager) SaveConfig(id string, cfg *grid.VenueConfig) error {
	id = strings.TrimSuffix(id, ".json")
	if id == "" || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: invalid venue id %q", ErrInvalidConfig, id)
	}
	if err := grid.ValidateVenueConfig(cfg); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filepath.Join(m.configDir, id+".json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	m.mu.Lock()
	m.configs[id] = cfg
	m.mu.Unlock()
	return nil
}
