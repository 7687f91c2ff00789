package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validVenue = `{
	"name": "Test Venue",
	"description": "Test configuration",
	"seat_count": 12,
	"columns": 4,
	"max_selectable": 2,
	"price_per_seat": 250,
	"currency": "TL",
	"pre_occupied": [{"seat": 1, "occupant_id": 1}],
	"max_passenger_age_years": 120,
	"inactivity": {"warn_after_seconds": 30, "countdown_seconds": 30, "check_interval_ms": 1000}
}`

func writeConfig(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestValidateConfig_ValidConfig(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "test.json", validVenue)

	result := validateConfig(path)
	if !result.Valid {
		t.Fatalf("Expected valid config, but got errors: %v", result.Errors)
	}
	if result.File != "test.json" {
		t.Errorf("Expected file name test.json, got %s", result.File)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", result.Warnings)
	}

	found := false
	for _, info := range result.Info {
		if strings.Contains(info, "12 (11 free, 1 pre-occupied)") {
			found = true
		}
	}
	if !found {
		t.Errorf("Expected seat summary in info, got %v", result.Info)
	}
}

func TestValidateConfig_InvalidJSON(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "broken.json", `{"name": "test", invalid json}`)

	result := validateConfig(path)
	if result.Valid {
		t.Error("Expected invalid result for invalid JSON")
	}
	if len(result.Errors) == 0 || !strings.Contains(result.Errors[0], "failed to parse config") {
		t.Errorf("Expected parse error, got %v", result.Errors)
	}
}

func TestValidateConfig_NonExistentFile(t *testing.T) {
	result := validateConfig("/non/existent/file.json")

	if result.Valid {
		t.Error("Expected invalid result for non-existent file")
	}
	if len(result.Errors) != 1 || result.Errors[0] != "File not found" {
		t.Errorf("Unexpected errors %v", result.Errors)
	}
}

func TestValidateConfig_RuleViolations(t *testing.T) {
	tests := []struct {
		name    string
		replace [2]string
		want    string
	}{
		{"missing name", [2]string{`"name": "Test Venue"`, `"name": ""`}, "name is required"},
		{"too many seats", [2]string{`"seat_count": 12`, `"seat_count": 9000`}, "seat_count must be between"},
		{"selection limit", [2]string{`"max_selectable": 2`, `"max_selectable": 0`}, "max_selectable must be between"},
		{"negative price", [2]string{`"price_per_seat": 250`, `"price_per_seat": -1`}, "price_per_seat cannot be negative"},
		{"occupied outside venue", [2]string{`{"seat": 1, "occupant_id": 1}`, `{"seat": 13, "occupant_id": 1}`}, "outside 1..12"},
		{"duplicate occupied", [2]string{`{"seat": 1, "occupant_id": 1}`, `{"seat": 1, "occupant_id": 1}, {"seat": 1, "occupant_id": 2}`}, "pre-occupied twice"},
		{"zero timings", [2]string{`"countdown_seconds": 30`, `"countdown_seconds": 0`}, "inactivity timings must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			content := strings.Replace(validVenue, tt.replace[0], tt.replace[1], 1)
			path := writeConfig(t, t.TempDir(), "venue.json", content)

			result := validateConfig(path)
			if result.Valid {
				t.Fatal("Expected invalid result")
			}
			if !strings.Contains(strings.Join(result.Errors, "\n"), tt.want) {
				t.Errorf("Expected error containing %q, got %v", tt.want, result.Errors)
			}
		})
	}
}

func TestValidateConfig_Warnings(t *testing.T) {
	content := strings.NewReplacer(
		`"currency": "TL"`, `"currency": ""`,
		`"columns": 4`, `"columns": 0`,
		`"check_interval_ms": 1000`, `"check_interval_ms": 60000`,
		`"seat_count": 12`, `"seat_count": 2`,
	).Replace(validVenue)
	path := writeConfig(t, t.TempDir(), "warn.json", content)

	result := validateConfig(path)
	if !result.Valid {
		t.Fatalf("Warnings must not invalidate, got %v", result.Errors)
	}
	if len(result.Warnings) != 4 {
		t.Errorf("Expected 4 warnings, got %v", result.Warnings)
	}
}

func TestConfigFiles(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "a.json", validVenue)
	writeConfig(t, dir, "b.json", validVenue)
	writeConfig(t, dir, "notes.txt", "ignored")

	files, err := configFiles(dir, nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("Expected 2 files, got %v", files)
	}

	files, err = configFiles(dir, []string{"explicit.json"})
	if err != nil || len(files) != 1 || files[0] != "explicit.json" {
		t.Errorf("Expected explicit args to win, got %v %v", files, err)
	}

	if _, err := configFiles(t.TempDir(), nil); err == nil {
		t.Error("Expected error for empty directory")
	}
}

func TestReport(t *testing.T) {
	dir := t.TempDir()
	good := validateConfig(writeConfig(t, dir, "good.json", validVenue))
	bad := validateConfig(writeConfig(t, dir, "bad.json", `{}`))

	var buf bytes.Buffer
	if report(&buf, []ValidationResult{good, bad}, false) {
		t.Error("Expected report to fail with an invalid file")
	}
	out := buf.String()
	for _, want := range []string{"good.json", "Test Venue", "250 TL", "bad.json", "invalid", "Some configurations have errors"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in output:\n%s", want, out)
		}
	}

	buf.Reset()
	if !report(&buf, []ValidationResult{good}, false) {
		t.Error("Expected report to pass")
	}
	if !strings.Contains(buf.String(), "All configurations are valid") {
		t.Errorf("Unexpected output:\n%s", buf.String())
	}
}

func TestReport_Strict(t *testing.T) {
	content := strings.Replace(validVenue, `"currency": "TL"`, `"currency": ""`, 1)
	result := validateConfig(writeConfig(t, t.TempDir(), "warn.json", content))

	var buf bytes.Buffer
	if !report(&buf, []ValidationResult{result}, false) {
		t.Error("Warnings pass without --strict")
	}
	buf.Reset()
	if report(&buf, []ValidationResult{result}, true) {
		t.Error("Warnings fail with --strict")
	}
}

func TestCommand(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "good.json", validVenue)

	var buf bytes.Buffer
	cmd := newCommand()
	cmd.Writer = &buf
	if err := cmd.Run(context.Background(), []string{"validate", "--dir", dir}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "✅ VALID") {
		t.Errorf("Unexpected output:\n%s", buf.String())
	}

	writeConfig(t, dir, "bad.json", `{"name": "x"}`)
	cmd = newCommand()
	cmd.Writer = &buf
	err := cmd.Run(context.Background(), []string{"validate", "--dir", dir})
	if !errors.Is(err, errInvalidConfigs) {
		t.Errorf("Expected errInvalidConfigs, got %v", err)
	}
}

func TestShippedConfigs(t *testing.T) {
	files, err := configFiles("../configs", nil)
	if err != nil {
		t.Fatalf("Failed to list configs: %v", err)
	}
	for _, file := range files {
		if result := validateConfig(file); !result.Valid {
			t.Errorf("%s is invalid: %v", result.File, result.Errors)
		}
	}
}
