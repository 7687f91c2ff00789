package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/wricardo/seatsession/reservation/grid"
)

func createValidVenue(name string) *grid.VenueConfig {
	return &grid.VenueConfig{
		Name:          name,
		Description:   "Test venue",
		SeatCount:     12,
		Columns:       4,
		MaxSelectable: 2,
		PricePerSeat:  100,
		Currency:      "EUR",
		PreOccupied:   []grid.Occupancy{{Seat: 1, OccupantID: 1}},
		Inactivity: grid.InactivitySettings{
			WarnAfterSeconds:   10,
			CountdownSeconds:   5,
			CheckIntervalMilli: 500,
		},
	}
}

func writeVenueFile(t *testing.T, dir, id string, v any) {
	t.Helper()
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		t.Fatalf("Failed to marshal venue: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, id+".json"), data, 0644); err != nil {
		t.Fatalf("Failed to write venue file: %v", err)
	}
}

func TestNewManager(t *testing.T) {
	t.Run("non-existent directory", func(t *testing.T) {
		if _, err := NewManager("/non/existent/path"); err == nil {
			t.Error("Expected error for non-existent directory")
		}
	})

	t.Run("empty directory falls back to built-in venue", func(t *testing.T) {
		manager, err := NewManager(t.TempDir())
		if err != nil {
			t.Fatalf("NewManager failed: %v", err)
		}
		def := manager.GetDefault()
		if def == nil || def.Name != "reference" || def.SeatCount != 76 {
			t.Errorf("Expected built-in reference venue, got %+v", def)
		}
	})

	t.Run("prefers reference.json", func(t *testing.T) {
		dir := t.TempDir()
		writeVenueFile(t, dir, "aaa", createValidVenue("First"))
		writeVenueFile(t, dir, "reference", createValidVenue("Ref"))

		manager, err := NewManager(dir)
		if err != nil {
			t.Fatalf("NewManager failed: %v", err)
		}
		if got := manager.GetDefault().Name; got != "Ref" {
			t.Errorf("Expected default Ref, got %s", got)
		}
	})

	t.Run("first valid venue without reference.json", func(t *testing.T) {
		dir := t.TempDir()
		writeVenueFile(t, dir, "zeta", createValidVenue("Zeta"))
		writeVenueFile(t, dir, "alpha", createValidVenue("Alpha"))

		manager, err := NewManager(dir)
		if err != nil {
			t.Fatalf("NewManager failed: %v", err)
		}
		if got := manager.GetDefault().Name; got != "Alpha" {
			t.Errorf("Expected default Alpha, got %s", got)
		}
	})
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	writeVenueFile(t, dir, "small", createValidVenue("Small"))

	bad := createValidVenue("Bad")
	bad.MaxSelectable = 0
	writeVenueFile(t, dir, "bad", bad)
	os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{not json"), 0644)

	manager, err := NewManager(dir)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}

	tests := []struct {
		name    string
		id      string
		wantErr error
	}{
		{"valid", "small", nil},
		{"valid with extension", "small.json", nil},
		{"missing", "nope", ErrConfigNotFound},
		{"invalid rules", "bad", ErrInvalidConfig},
		{"invalid json", "broken", ErrInvalidConfig},
		{"path traversal", "../small", ErrConfigNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := manager.LoadConfig(tt.id)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Unexpected error: %v", err)
				}
				if cfg.Name != "Small" {
					t.Errorf("Expected Small, got %s", cfg.Name)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadConfig_Cached(t *testing.T) {
	dir := t.TempDir()
	writeVenueFile(t, dir, "small", createValidVenue("Small"))
	manager, _ := NewManager(dir)

	first, err := manager.LoadConfig("small")
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	os.Remove(filepath.Join(dir, "small.json"))

	second, err := manager.LoadConfig("small")
	if err != nil {
		t.Fatalf("cached LoadConfig failed: %v", err)
	}
	if first != second {
		t.Error("Expected the cached pointer")
	}

	manager.RefreshCache()
	if _, err := manager.LoadConfig("small"); !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("Expected not found after refresh, got %v", err)
	}
}

func TestListConfigs(t *testing.T) {
	dir := t.TempDir()
	writeVenueFile(t, dir, "b", createValidVenue("B"))
	writeVenueFile(t, dir, "a", createValidVenue("A"))
	bad := createValidVenue("")
	writeVenueFile(t, dir, "invalid", bad)
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0644)
	os.Mkdir(filepath.Join(dir, "sub.json"), 0755)

	manager, _ := NewManager(dir)
	infos, err := manager.ListConfigs()
	if err != nil {
		t.Fatalf("ListConfigs failed: %v", err)
	}
	if len(infos) != 2 {
		t.Fatalf("Expected 2 venues, got %d", len(infos))
	}
	if infos[0].VenueID != "a" || infos[1].VenueID != "b" {
		t.Errorf("Expected sorted ids, got %s, %s", infos[0].VenueID, infos[1].VenueID)
	}
	if infos[0].Filename != "a.json" || infos[0].SeatCount != 12 || infos[0].Currency != "EUR" {
		t.Errorf("Unexpected info %+v", infos[0])
	}
}

func TestSaveConfig(t *testing.T) {
	dir := t.TempDir()
	manager, _ := NewManager(dir)

	if err := manager.SaveConfig("new", createValidVenue("New")); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "new.json")); err != nil {
		t.Errorf("Expected file on disk: %v", err)
	}

	manager.RefreshCache()
	cfg, err := manager.LoadConfig("new")
	if err != nil || cfg.Name != "New" {
		t.Errorf("Expected saved venue back, got %v, %v", cfg, err)
	}

	invalid := createValidVenue("Invalid")
	invalid.SeatCount = 0
	if err := manager.SaveConfig("invalid", invalid); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig, got %v", err)
	}
	if err := manager.SaveConfig("../escape", createValidVenue("X")); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Expected ErrInvalidConfig for bad id, got %v", err)
	}
}

func TestSetDefault(t *testing.T) {
	dir := t.TempDir()
	writeVenueFile(t, dir, "reference", createValidVenue("Ref"))
	writeVenueFile(t, dir, "other", createValidVenue("Other"))
	manager, _ := NewManager(dir)

	if err := manager.SetDefault("other"); err != nil {
		t.Fatalf("SetDefault failed: %v", err)
	}
	if manager.GetDefault().Name != "Other" {
		t.Error("Expected Other as default")
	}
	if err := manager.SetDefault("missing"); !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("Expected ErrConfigNotFound, got %v", err)
	}
}

func TestConcurrentLoad(t *testing.T) {
	dir := t.TempDir()
	writeVenueFile(t, dir, "reference", createValidVenue("Ref"))
	manager, _ := NewManager(dir)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%5 == 0 {
				manager.RefreshCache()
				return
			}
			if _, err := manager.LoadConfig("reference"); err != nil {
				t.Errorf("LoadConfig failed: %v", err)
			}
		}(i)
	}
	wg.Wait()
}
