// Package config loads venue configurations from JSON files.
//
// Each file in the config directory describes one venue: seat count, grid
// columns, the selection limit, the seat price, pre-occupied seats and the
// inactivity timings. The file name without .json is the venue id used when
// creating sessions.
//
// Usage:
//
//	manager, err := config.NewManager("configs")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	venue, err := manager.LoadConfig("reference")
//	if errors.Is(err, config.ErrConfigNotFound) {
//		venue = manager.GetDefault()
//	}
//
//	venues, err := manager.ListConfigs()
//
// The default venue is reference.json when present, otherwise the first valid
// file, otherwise the built-in grid.ReferenceVenue.
package config
