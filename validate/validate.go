// Command validate checks the venue configuration JSON files in a configs
// directory. Each file must parse, pass the venue rules the server enforces
// at load time and leave enough free seats to make a selection. A summary
// table is printed and the command exits non-zero if any file is invalid.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/seatsession/reservation/config"
	"github.com/wricardo/seatsession/reservation/grid"
)

var errInvalidConfigs = errors.New("some configurations have errors")

// ValidationResult captures the outcome of validating a single file.
type ValidationResult struct {
	File     string
	Valid    bool
	Errors   []string
	Warnings []string
	Info     []string
	Venue    *grid.VenueConfig
}

func (r *ValidationResult) fail(format string, args ...any) {
	r.Valid = false
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

// validateConfig loads one venue file and runs every check on it.
func validateConfig(path string) ValidationResult {
	result := ValidationResult{
		File:  filepath.Base(path),
		Valid: true,
	}

	cfg, err := config.ReadFile(path)
	if err != nil {
		switch {
		case errors.Is(err, config.ErrConfigNotFound):
			result.fail("File not found")
		default:
			result.fail("%s", strings.TrimPrefix(err.Error(), config.ErrInvalidConfig.Error()+": "))
		}
		return result
	}
	result.Venue = cfg

	free := cfg.SeatCount - len(cfg.PreOccupied)
	if free < cfg.MaxSelectable {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("Only %d free seats, fewer than max_selectable (%d)", free, cfg.MaxSelectable))
	}
	if cfg.Currency == "" {
		result.Warnings = append(result.Warnings, "currency is empty, prices render without a unit")
	}
	if cfg.Columns == 0 {
		result.Warnings = append(result.Warnings, "columns is 0, the seat map falls back to the default width")
	}

	in := cfg.Inactivity
	if in.CheckEvery() > in.Countdown() {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("check interval %s is longer than the countdown %s", in.CheckEvery(), in.Countdown()))
	}

	result.Info = append(result.Info,
		fmt.Sprintf("✓ Name: %s", cfg.Name),
		fmt.Sprintf("✓ Seats: %d (%d free, %d pre-occupied)", cfg.SeatCount, free, len(cfg.PreOccupied)),
		fmt.Sprintf("✓ Selection: up to %d at %s each", cfg.MaxSelectable, price(cfg)),
		fmt.Sprintf("✓ Inactivity: warn after %s, countdown %s", in.WarnAfter(), in.Countdown()),
	)
	return result
}

func price(cfg *grid.VenueConfig) string {
	if cfg.Currency == "" {
		return fmt.Sprintf("%.0f", cfg.PricePerSeat)
	}
	return fmt.Sprintf("%.0f %s", cfg.PricePerSeat, cfg.Currency)
}

// configFiles returns the explicit paths, or every *.json file in dir.
func configFiles(dir string, args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	files, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("error finding config files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no config files found in %s", dir)
	}
	return files, nil
}

// report prints per-file details and a summary table. It returns false when
// any file failed.
func report(w io.Writer, results []ValidationResult, strict bool) bool {
	allValid := true
	for _, result := range results {
		fmt.Fprintf(w, "\n%s %s\n", strings.Repeat("=", 20), result.File)

		ok := result.Valid && !(strict && len(result.Warnings) > 0)
		if ok {
			fmt.Fprintln(w, "✅ VALID")
			for _, info := range result.Info {
				fmt.Fprintln(w, "  "+info)
			}
		} else {
			fmt.Fprintln(w, "❌ INVALID")
			allValid = false
			for _, err := range result.Errors {
				fmt.Fprintln(w, "  ❌ "+err)
			}
		}
		for _, warn := range result.Warnings {
			fmt.Fprintln(w, "  ⚠️  "+warn)
		}
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"File", "Venue", "Seats", "Max", "Price", "Status"})
	for _, result := range results {
		status := "ok"
		if !result.Valid {
			status = "invalid"
		} else if len(result.Warnings) > 0 {
			status = fmt.Sprintf("%d warning(s)", len(result.Warnings))
		}

		if result.Venue == nil {
			t.AppendRow(table.Row{result.File, "-", "-", "-", "-", status})
			continue
		}
		v := result.Venue
		t.AppendRow(table.Row{result.File, v.Name, v.SeatCount, v.MaxSelectable, price(v), status})
	}
	fmt.Fprintln(w)
	t.Render()

	fmt.Fprintf(w, "\n%s\n", strings.Repeat("=", 40))
	if allValid {
		fmt.Fprintln(w, "✅ All configurations are valid!")
	} else {
		fmt.Fprintln(w, "❌ Some configurations have errors")
	}
	return allValid
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Usage:     "validate venue configuration files",
		ArgsUsage: "[file.json ...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Value: "../configs", Usage: "directory scanned when no files are given", Sources: cli.EnvVars("CONFIG_DIR")},
			&cli.BoolFlag{Name: "strict", Usage: "treat warnings as errors"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			files, err := configFiles(cmd.String("dir"), cmd.Args().Slice())
			if err != nil {
				return err
			}

			results := make([]ValidationResult, 0, len(files))
			for _, file := range files {
				results = append(results, validateConfig(file))
			}
			if !report(cmd.Root().Writer, results, cmd.Bool("strict")) {
				return errInvalidConfigs
			}
			return nil
		},
	}
}

func main() {
	cmd := newCommand()
	cmd.Writer = os.Stdout
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
