package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/wricardo/seatsession/reservation/grid"
	"github.com/wricardo/seatsession/reservation/passenger"
)

// Operation names recorded in Stats.
const (
	OpCreate    = "create"
	OpToggle    = "toggle"
	OpPassenger = "passenger"
	OpSubmit    = "submit"
	OpDelete    = "delete"
)

var operations = []string{OpCreate, OpToggle, OpPassenger, OpSubmit, OpDelete}

// Stats collects request latencies and failures per operation.
type Stats struct {
	mu        sync.Mutex
	latencies map[string][]time.Duration
	failures  map[string]int
	statuses  map[int]int
	completed int
}

func NewStats() *Stats {
	return &Stats{
		latencies: make(map[string][]time.Duration),
		failures:  make(map[string]int),
		statuses:  make(map[int]int),
	}
}

func (s *Stats) record(op string, d time.Duration, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latencies[op] = append(s.latencies[op], d)
	if err == nil {
		return
	}
	s.failures[op]++
	var se *StatusError
	if errors.As(err, &se) {
		s.statuses[se.Status]++
	}
}

func (s *Stats) complete() {
	s.mu.Lock()
	s.completed++
	s.mu.Unlock()
}

// Completed is the number of accepted reservations.
func (s *Stats) Completed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completed
}

// Failures returns the failure count of op.
func (s *Stats) Failures(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[op]
}

// Count returns how many requests op made.
func (s *Stats) Count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.latencies[op])
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	i := int(float64(len(sorted)-1) * p)
	return sorted[i]
}

// Render prints the latency table and the error status breakdown.
func (s *Stats) Render(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Operation", "Requests", "Failures", "p50", "p95", "Max"})
	for _, op := range operations {
		lat := append([]time.Duration(nil), s.latencies[op]...)
		if len(lat) == 0 {
			continue
		}
		sort.Slice(lat, func(i, j int) bool { return lat[i] < lat[j] })
		t.AppendRow(table.Row{
			op, len(lat), s.failures[op],
			percentile(lat, 0.50).Round(time.Microsecond),
			percentile(lat, 0.95).Round(time.Microsecond),
			lat[len(lat)-1].Round(time.Microsecond),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", "Reserved", s.completed})
	t.Render()

	if len(s.statuses) == 0 {
		return
	}
	codes := make([]int, 0, len(s.statuses))
	for code := range s.statuses {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	fmt.Fprintln(w, "Error statuses:")
	for _, code := range codes {
		fmt.Fprintf(w, "  %d %s: %d\n", code, http.StatusText(code), s.statuses[code])
	}
}

// Shopper plays one reservation: create a session, pick free seats, fill in
// passengers and submit.
type Shopper struct {
	client  *Client
	limiter *rate.Limiter
	stats   *Stats
	rng     *rand.Rand
	log     logrus.FieldLogger
	venue   string
	keep    bool
}

func (s *Shopper) call(ctx context.Context, op string, fn func() error) error {
	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	start := time.Now()
	err := fn()
	s.stats.record(op, time.Since(start), err)
	return err
}

// Run plays a full reservation. Created sessions are deleted afterwards
// unless keep is set.
func (s *Shopper) Run(ctx context.Context) error {
	var id string
	var free []int
	var limit int
	err := s.call(ctx, OpCreate, func() error {
		info, err := s.client.CreateSession(ctx, s.venue)
		if err != nil {
			return err
		}
		id = info.ID
		limit = info.View.MaxSelectable
		for _, seat := range info.View.Seats {
			if seat.Status == grid.Free {
				free = append(free, seat.Number)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	log := s.log.WithField("session", id)

	if !s.keep {
		defer s.call(context.WithoutCancel(ctx), OpDelete, func() error {
			return s.client.DeleteSession(context.WithoutCancel(ctx), id)
		})
	}

	if limit <= 0 || len(free) == 0 {
		return errors.New("no free seats")
	}
	want := 1 + s.rng.IntN(min(limit, len(free)))
	s.rng.Shuffle(len(free), func(i, j int) { free[i], free[j] = free[j], free[i] })

	var picked []int
	for _, seat := range free[:want] {
		err := s.call(ctx, OpToggle, func() error {
			_, err := s.client.ToggleSeat(ctx, id, seat)
			return err
		})
		if err != nil {
			return fmt.Errorf("toggle seat %d: %w", seat, err)
		}
		picked = append(picked, seat)
	}
	log.WithField("seats", picked).Debug("seats selected")

	for i, seat := range picked {
		rec := s.passenger(seat, i)
		err := s.call(ctx, OpPassenger, func() error {
			_, err := s.client.UpdatePassenger(ctx, id, rec)
			return err
		})
		if err != nil {
			return fmt.Errorf("passenger for seat %d: %w", seat, err)
		}
	}

	err = s.call(ctx, OpSubmit, func() error {
		_, err := s.client.Submit(ctx, id)
		return err
	})
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	s.stats.complete()
	log.Debug("reservation accepted")
	return nil
}

var (
	firstNames = []string{"Ayşe", "Mehmet", "Elif", "Can", "Zeynep", "Emre"}
	lastNames  = []string{"Yılmaz", "Kaya", "Demir", "Şahin", "Çelik", "Aydın"}
)

func (s *Shopper) passenger(seat, i int) passenger.Record {
	gender := passenger.GenderFemale
	if s.rng.IntN(2) == 0 {
		gender = passenger.GenderMale
	}
	return passenger.Record{
		Seat:        seat,
		Name:        firstNames[s.rng.IntN(len(firstNames))],
		Surname:     lastNames[s.rng.IntN(len(lastNames))],
		Phone:       fmt.Sprintf("555%07d", s.rng.IntN(10_000_000)),
		Email:       fmt.Sprintf("passenger%d.%d@example.com", seat, i),
		Gender:      gender,
		DateOfBirth: fmt.Sprintf("%d-%02d-%02d", 1950+s.rng.IntN(50), 1+s.rng.IntN(12), 1+s.rng.IntN(28)),
	}
}

// Config drives a load run.
type Config struct {
	BaseURL     string
	Venue       string
	Shoppers    int
	Concurrency int
	RPS         float64
	Keep        bool
	Seed        uint64
}

// Run starts cfg.Shoppers reservations over cfg.Concurrency workers and
// returns the collected stats. Individual failures are logged, not returned.
func Run(ctx context.Context, cfg Config, log logrus.FieldLogger) *Stats {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	var limiter *rate.Limiter
	if cfg.RPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), max(1, int(cfg.RPS)))
	}

	stats := NewStats()
	client := NewClient(cfg.BaseURL)
	jobs := make(chan int)

	var wg sync.WaitGroup
	for range cfg.Concurrency {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := range jobs {
				shopper := &Shopper{
					client:  client,
					limiter: limiter,
					stats:   stats,
					rng:     rand.New(rand.NewPCG(cfg.Seed, uint64(n))),
					log:     log.WithField("shopper", n),
					venue:   cfg.Venue,
					keep:    cfg.Keep,
				}
				if err := shopper.Run(ctx); err != nil {
					log.WithError(err).WithField("shopper", n).Warn("reservation failed")
				}
			}
		}()
	}

feed:
	for n := range cfg.Shoppers {
		select {
		case jobs <- n:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	return stats
}
