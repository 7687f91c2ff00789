// Command analyze prints a human-readable report of the sessions persisted in
// a session store: for every indexed session it decodes the stored snapshot
// and summarizes seat counts, the current selection and its total. With
// --session it also draws the stored seat map of one session.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"

	"github.com/wricardo/seatsession/reservation/grid"
	"github.com/wricardo/seatsession/reservation/session"
	"github.com/wricardo/seatsession/reservation/store"
)

// SessionSummary is what analyze reports for one persisted session.
type SessionSummary struct {
	ID        string
	VenueID   string
	CreatedAt time.Time
	Seats     int
	Occupied  int
	Selected  int
	Selection []int
	Total     float64
	Snapshot  *grid.Snapshot
	Problem   string
}

// Status is the one-word state shown in the report.
func (s SessionSummary) Status() string {
	switch {
	case s.Problem != "":
		return s.Problem
	case s.Snapshot == nil:
		return "no snapshot"
	default:
		return "ok"
	}
}

func loadSnapshot(ctx context.Context, st store.Store, id string) (grid.Snapshot, error) {
	values, err := store.GetMany(ctx, store.WithPrefix(st, session.Namespace(id)), grid.SnapshotKeys...)
	if err != nil {
		return grid.Snapshot{}, err
	}
	return grid.DecodeSnapshot(values)
}

// summarize decodes the snapshot of one index entry.
func summarize(ctx context.Context, st store.Store, entry session.IndexEntry) SessionSummary {
	summary := SessionSummary{ID: entry.ID, VenueID: entry.VenueID, CreatedAt: entry.CreatedAt}

	snap, err := loadSnapshot(ctx, st, entry.ID)
	switch {
	case errors.Is(err, grid.ErrNoSnapshot):
		return summary
	case errors.Is(err, grid.ErrInvalidSnapshot):
		summary.Problem = "invalid snapshot"
		return summary
	case err != nil:
		summary.Problem = "read error"
		return summary
	}
	summary.Snapshot = &snap

	selectedStatus := 0
	for _, seat := range snap.Seats {
		switch seat.Status {
		case grid.Occupied:
			summary.Occupied++
		case grid.Selected:
			selectedStatus++
		}
	}
	summary.Seats = len(snap.Seats)
	summary.Selection = snap.SelectedSeats
	summary.Selected = len(snap.SelectedSeats)
	summary.Total = snap.TotalPrice

	if selectedStatus != summary.Selected {
		summary.Problem = "selection mismatch"
	}
	return summary
}

// analyzeStore summarizes every session in the store index, oldest first.
func analyzeStore(ctx context.Context, st store.Store) ([]SessionSummary, error) {
	entries, err := session.ReadIndex(ctx, st)
	if err != nil {
		return nil, err
	}

	summaries := make([]SessionSummary, 0, len(entries))
	for _, entry := range entries {
		summaries = append(summaries, summarize(ctx, st, entry))
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.Before(summaries[j].CreatedAt)
	})
	return summaries, nil
}

func formatSelection(selection []int) string {
	if len(selection) == 0 {
		return "-"
	}
	parts := make([]string, len(selection))
	for i, n := range selection {
		parts[i] = fmt.Sprintf("%d", n)
	}
	return strings.Join(parts, ",")
}

func renderSummaries(w io.Writer, summaries []SessionSummary) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Session", "Venue", "Created", "Seats", "Occupied", "Selection", "Total", "Status"})
	for _, s := range summaries {
		if s.Snapshot == nil {
			t.AppendRow(table.Row{s.ID, s.VenueID, s.CreatedAt.Format(time.RFC3339), "-", "-", "-", "-", s.Status()})
			continue
		}
		t.AppendRow(table.Row{
			s.ID, s.VenueID, s.CreatedAt.Format(time.RFC3339),
			s.Seats, s.Occupied, formatSelection(s.Selection),
			fmt.Sprintf("%.0f", s.Total), s.Status(),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "", "", "Sessions", len(summaries)})
	t.Render()
}

// renderSeatMap draws a stored grid, columns seats per row.
func renderSeatMap(w io.Writer, snap grid.Snapshot, columns int) {
	if columns <= 0 {
		columns = 4
	}
	for i, seat := range snap.Seats {
		mark := "."
		switch seat.Status {
		case grid.Occupied:
			mark = "X"
		case grid.Selected:
			mark = "*"
		}
		fmt.Fprintf(w, "%s%02d", mark, seat.Number)
		if (i+1)%columns == 0 || i == len(snap.Seats)-1 {
			fmt.Fprintln(w)
		} else {
			fmt.Fprint(w, " ")
		}
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "analyze",
		Usage: "report on persisted reservation sessions",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "store", Value: "sessions", Usage: "session store DSN", Sources: cli.EnvVars("SEATSESSION_STORE")},
			&cli.StringFlag{Name: "session", Usage: "also draw the seat map of this session"},
			&cli.IntFlag{Name: "columns", Value: 4, Usage: "seats per row in the seat map"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			st, err := store.Open(ctx, cmd.String("store"))
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer st.Close()

			w := cmd.Root().Writer
			summaries, err := analyzeStore(ctx, st)
			if err != nil {
				return err
			}
			if len(summaries) == 0 {
				fmt.Fprintln(w, "No persisted sessions")
			} else {
				renderSummaries(w, summaries)
			}

			id := cmd.String("session")
			if id == "" {
				return nil
			}
			snap, err := loadSnapshot(ctx, st, id)
			if err != nil {
				return fmt.Errorf("session %s: %w", id, err)
			}
			fmt.Fprintf(w, "\n=== %s ===\n", id)
			renderSeatMap(w, snap, cmd.Int("columns"))
			fmt.Fprintf(w, "Selection: %s  Total: %.0f\n", formatSelection(snap.SelectedSeats), snap.TotalPrice)
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
