// Command loadtest drives a running reservation server with concurrent
// shoppers. Each shopper creates a session, selects random free seats up to
// the venue limit, fills in valid passengers and submits; request latencies
// and failures are summarized per operation when the run ends.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "loadtest",
		Usage: "run concurrent reservations against the REST API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Value: "http://localhost:8080", Usage: "server base URL", Sources: cli.EnvVars("SEATSESSION_API_URL")},
			&cli.StringFlag{Name: "venue", Value: "reference", Usage: "venue configuration id"},
			&cli.IntFlag{Name: "shoppers", Value: 50, Usage: "number of reservations to attempt"},
			&cli.IntFlag{Name: "concurrency", Value: 8, Usage: "parallel shoppers"},
			&cli.FloatFlag{Name: "rps", Usage: "request rate cap, 0 for unlimited"},
			&cli.BoolFlag{Name: "keep", Usage: "keep sessions instead of deleting them"},
			&cli.IntFlag{Name: "seed", Usage: "random seed, 0 picks one from the clock"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "log every shopper step"},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			log := logrus.New()
			log.SetOutput(cmd.Root().ErrWriter)
			if cmd.Bool("verbose") {
				log.SetLevel(logrus.DebugLevel)
			}

			seed := uint64(cmd.Int("seed"))
			if seed == 0 {
				seed = uint64(time.Now().UnixNano())
			}
			cfg := Config{
				BaseURL:     cmd.String("url"),
				Venue:       cmd.String("venue"),
				Shoppers:    cmd.Int("shoppers"),
				Concurrency: cmd.Int("concurrency"),
				RPS:         cmd.Float("rps"),
				Keep:        cmd.Bool("keep"),
				Seed:        seed,
			}

			start := time.Now()
			stats := Run(ctx, cfg, log.WithField("pkg", "loadtest"))
			elapsed := time.Since(start)

			w := cmd.Root().Writer
			stats.Render(w)
			fmt.Fprintf(w, "%d/%d reservations accepted in %s (seed %d)\n",
				stats.Completed(), cfg.Shoppers, elapsed.Round(time.Millisecond), seed)
			return nil
		},
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newCommand()
	cmd.Writer = os.Stdout
	cmd.ErrWriter = os.Stderr
	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
