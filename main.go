// Command seatsession runs the seat reservation server.
//
// Subcommands:
//  1. "serve" (default) – HTTP server exposing the REST API, WebSocket push and an /mcp endpoint
//  2. "mcp" – MCP stdio server; reuses a running API or spins up an internal one
//  3. "tui" – terminal UI for a single session
//
// Flags and environment variables control the venue config directory, the
// session store, event publishing, logging, profiling and optional ngrok
// tunneling for external access during development.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pkg/profile"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	"golang.org/x/time/rate"

	"github.com/wricardo/seatsession/api"
	"github.com/wricardo/seatsession/reservation/config"
	"github.com/wricardo/seatsession/reservation/directory"
	"github.com/wricardo/seatsession/reservation/events"
	"github.com/wricardo/seatsession/reservation/service"
	"github.com/wricardo/seatsession/reservation/session"
	"github.com/wricardo/seatsession/reservation/store"
	"github.com/wricardo/seatsession/transport/mcp"
	"github.com/wricardo/seatsession/transport/websocket"
	"github.com/wricardo/seatsession/tui"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Seat Reservation Server"
)

var log = logrus.WithField("pkg", "main")

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			log.WithError(err).Warn("error loading .env file")
		}
	} else {
		log.Info("loaded environment variables from .env file")
	}

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		log.WithError(err).Fatal("seatsession failed")
	}
}

// newApp builds the command tree.
func newApp() *cli.Command {
	var prof interface{ Stop() }

	return &cli.Command{
		Name:           "seatsession",
		Usage:          AppName,
		Version:        Version,
		DefaultCommand: "serve",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config-dir",
				Value:   "configs",
				Usage:   "directory containing venue configurations",
				Sources: cli.EnvVars("CONFIG_DIR"),
			},
			&cli.StringFlag{
				Name:    "store",
				Value:   "sessions",
				Usage:   "session store: a directory, memory://, redis://, sqlite://, postgres:// or mysql://",
				Sources: cli.EnvVars("SEATSESSION_STORE"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "log level (debug, info, warn, error)",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "directory-url",
				Value:   directory.DefaultURL,
				Usage:   "user directory resolving occupant names",
				Sources: cli.EnvVars("DIRECTORY_URL"),
			},
			&cli.StringFlag{
				Name:    "amqp-url",
				Usage:   "publish reservation events to RabbitMQ",
				Sources: cli.EnvVars("AMQP_URL", "RABBITMQ_URL"),
			},
			&cli.StringFlag{
				Name:    "amqp-queue",
				Value:   events.DefaultQueue,
				Usage:   "queue receiving reservation events",
				Sources: cli.EnvVars("AMQP_QUEUE"),
			},
			&cli.StringFlag{
				Name:  "profile",
				Usage: "write a cpu, mem or block profile to the working directory",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			if err := setupLogging(cmd.String("log-level")); err != nil {
				return ctx, err
			}
			p, err := startProfile(cmd.String("profile"))
			if err != nil {
				return ctx, err
			}
			prof = p
			return ctx, nil
		},
		After: func(ctx context.Context, cmd *cli.Command) error {
			if prof != nil {
				prof.Stop()
			}
			return nil
		},
		Commands: []*cli.Command{
			serveCommand(),
			mcpCommand(),
			tuiCommand(),
		},
	}
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the HTTP server with REST API, WebSocket and MCP endpoint",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "host", Value: "localhost", Usage: "HTTP server host", Sources: cli.EnvVars("HOST")},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "HTTP server port", Sources: cli.EnvVars("PORT")},
			&cli.FloatFlag{Name: "rate-limit", Value: 20, Usage: "requests per second, 0 disables limiting", Sources: cli.EnvVars("RATE_LIMIT")},
			&cli.IntFlag{Name: "rate-burst", Value: 40, Usage: "request burst size"},
			&cli.DurationFlag{Name: "idle-retention", Value: 24 * time.Hour, Usage: "evict sessions not accessed for this long"},
			&cli.BoolFlag{Name: "ngrok", Usage: "enable ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "custom ngrok domain", Sources: cli.EnvVars("NGROK_DOMAIN")},
		},
		Action: runServe,
	}
}

func mcpCommand() *cli.Command {
	return &cli.Command{
		Name:    "mcp",
		Aliases: []string{"stdio-mcp", "mcp-stdio"},
		Usage:   "run an MCP stdio server proxying the REST API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api-url",
				Value:   "http://localhost:8080",
				Usage:   "REST API to proxy; an internal server starts when it is unreachable",
				Sources: cli.EnvVars("SEATSESSION_API_URL"),
			},
		},
		Action: runStdioMCP,
	}
}

func tuiCommand() *cli.Command {
	return &cli.Command{
		Name:  "tui",
		Usage: "reserve seats from the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "venue", Value: config.DefaultVenueID, Usage: "venue configuration id"},
			&cli.StringFlag{Name: "session", Value: "terminal", Usage: "session id; an existing session is resumed"},
			&cli.StringFlag{Name: "log-file", Usage: "write logs to this file instead of discarding them"},
		},
		Action: runTUI,
	}
}

func setupLogging(level string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	logrus.SetLevel(lvl)
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return nil
}

func startProfile(mode string) (interface{ Stop() }, error) {
	switch strings.ToLower(mode) {
	case "":
		return nil, nil
	case "cpu":
		return profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.NoShutdownHook), nil
	case "mem":
		return profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.NoShutdownHook), nil
	case "block":
		return profile.Start(profile.BlockProfile, profile.ProfilePath("."), profile.NoShutdownHook), nil
	default:
		return nil, fmt.Errorf("unknown profile mode %q (use cpu, mem or block)", mode)
	}
}

// services is everything a command needs to serve reservations
type services struct {
	configs   *config.Manager
	store     store.Store
	directory *directory.Directory
	sessions  *session.Manager
	service   service.ReservationService
}

// serviceOptions are the root flags every command shares
type serviceOptions struct {
	ConfigDir    string
	StoreDSN     string
	DirectoryURL string
	AMQPURL      string
	AMQPQueue    string

	// OnChange receives every session change
	OnChange func(string, *session.View)
	// AutoStart runs each session's inactivity check in the background
	AutoStart bool
}

func serviceOptionsFrom(cmd *cli.Command) serviceOptions {
	return serviceOptions{
		ConfigDir:    cmd.String("config-dir"),
		StoreDSN:     cmd.String("store"),
		DirectoryURL: cmd.String("directory-url"),
		AMQPURL:      cmd.String("amqp-url"),
		AMQPQueue:    cmd.String("amqp-queue"),
	}
}

// buildServices wires config, store, directory, publishers and sessions,
// then restores the persisted sessions.
func buildServices(ctx context.Context, opts serviceOptions) (*services, error) {
	configs, err := config.NewManager(opts.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	st, err := store.Open(ctx, opts.StoreDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open session store: %w", err)
	}

	dir := directory.New(opts.DirectoryURL, directory.WithLogger(logrus.WithField("pkg", "directory")))

	publishers := events.Multi{events.NewLogPublisher(logrus.WithField("pkg", "events"))}
	if opts.AMQPURL != "" {
		queue := opts.AMQPQueue
		if queue == "" {
			queue = events.DefaultQueue
		}
		publishers = append(publishers, events.NewAMQPPublisher(opts.AMQPURL, queue))
		log.WithField("queue", queue).Info("publishing reservation events to RabbitMQ")
	}

	sessions := session.NewManager(session.ManagerOptions{
		Store:     st,
		Directory: dir,
		Publisher: publishers,
		Resolver:  service.Resolver(configs),
		OnChange:  opts.OnChange,
		AutoStart: opts.AutoStart,
	})

	if n, err := sessions.LoadPersisted(ctx); err != nil {
		log.WithError(err).Warn("failed to load persisted sessions")
	} else if n > 0 {
		log.WithField("count", n).Info("restored persisted sessions")
	}

	return &services{
		configs:   configs,
		store:     st,
		directory: dir,
		sessions:  sessions,
		service:   service.NewReservationService(sessions, configs),
	}, nil
}

func (s *services) Close() {
	s.sessions.Close()
	if err := s.store.Close(); err != nil {
		log.WithError(err).Warn("failed to close session store")
	}
}

// mcpHandler forwards JSON-RPC messages to the MCP server
func mcpHandler(client *mcp.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := client.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	}
}

// newAPIHandler assembles the REST API with the /mcp endpoint mounted on it.
func newAPIHandler(svc service.ReservationService, hub *websocket.Hub, mcpBaseURL string, limiter *rate.Limiter) http.Handler {
	opts := []api.Option{api.WithLogger(logrus.WithField("pkg", "api"))}
	if limiter != nil {
		opts = append(opts, api.WithRateLimit(limiter))
	}
	apiServer := api.NewServer(svc, hub, opts...)
	if mcpBaseURL != "" {
		apiServer.Router().HandleFunc("/mcp", mcpHandler(mcp.NewClient(mcpBaseURL))).Methods("POST")
	}
	return apiServer
}

// runServe starts the HTTP server, and optionally an ngrok tunnel, until
// SIGINT or SIGTERM.
func runServe(ctx context.Context, cmd *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	hub := websocket.NewHub()
	go hub.Run(ctx)

	opts := serviceOptionsFrom(cmd)
	opts.OnChange = hub.OnChange
	opts.AutoStart = true
	svcs, err := buildServices(ctx, opts)
	if err != nil {
		return err
	}
	defer svcs.Close()
	svcs.directory.LoadAsync(ctx)

	var limiter *rate.Limiter
	if rps := cmd.Float("rate-limit"); rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), cmd.Int("rate-burst"))
	}

	addr := fmt.Sprintf("%s:%d", cmd.String("host"), cmd.Int("port"))
	handler := newAPIHandler(svcs.service, hub, "http://"+addr, limiter)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var wg sync.WaitGroup
	errCh := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.WithField("addr", addr).Info("HTTP server listening")
		log.Infof("REST API: http://%s/api", addr)
		log.Infof("WebSocket: ws://%s/ws?session=<session_id>", addr)
		log.Infof("MCP endpoint: http://%s/mcp", addr)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		cleanupRoutine(ctx, svcs.sessions, cmd.Duration("idle-retention"))
	}()

	if cmd.Bool("ngrok") {
		wg.Add(1)
		go func() {
			defer wg.Done()
			serveNgrok(ctx, cmd.String("ngrok-auth"), cmd.String("ngrok-domain"), handler)
		}()
	}

	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-errCh:
		stop()
		wg.Wait()
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown error")
	}

	wg.Wait()
	log.Info("server stopped")
	return nil
}

// cleanupRoutine periodically evicts sessions that have not been accessed
// within the retention window. Their persisted state stays in the store.
func cleanupRoutine(ctx context.Context, sessions *session.Manager, retention time.Duration) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := sessions.CleanupIdle(retention); removed > 0 {
				log.WithField("count", removed).Info("evicted idle sessions")
			}
		}
	}
}

func serveNgrok(ctx context.Context, authToken, domain string, handler http.Handler) {
	if authToken == "" {
		log.Warn("ngrok enabled but no auth token provided (use --ngrok-auth or NGROK_AUTHTOKEN)")
		return
	}

	log.Info("starting ngrok tunnel")
	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		log.WithField("domain", domain).Info("using custom ngrok domain")
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		log.WithError(err).Error("failed to start ngrok tunnel")
		return
	}

	ngrokURL := tun.URL()
	log.Infof("ngrok tunnel established: %s", ngrokURL)
	log.Infof("  REST API (ngrok): %s/api", ngrokURL)
	log.Infof("  MCP endpoint (ngrok): %s/mcp", ngrokURL)

	srv := &http.Server{Handler: handler}
	go func() {
		<-ctx.Done()
		srv.Close()
	}()
	if err := srv.Serve(tun); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Warn("ngrok server error")
	}
	log.Info("ngrok tunnel closed")
}

// runStdioMCP serves MCP over stdio. It reuses the API at --api-url when it
// answers; otherwise it starts an internal API on a random loopback port.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	baseURL := cmd.String("api-url")

	if !apiReachable(baseURL) {
		log.WithField("url", baseURL).Info("no external API server found, starting internal HTTP server")

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		opts := serviceOptionsFrom(cmd)
		opts.AutoStart = true
		svcs, err := buildServices(ctx, opts)
		if err != nil {
			listener.Close()
			return err
		}
		defer svcs.Close()
		svcs.directory.LoadAsync(ctx)

		httpServer := &http.Server{Handler: newAPIHandler(svcs.service, nil, "", nil)}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Warn("internal HTTP server error")
			}
		}()
		defer httpServer.Close()

		baseURL = "http://" + listener.Addr().String()
	} else {
		log.WithField("url", baseURL).Info("external API server found, using it for MCP")
	}

	log.Info("MCP stdio server ready")
	return server.ServeStdio(mcp.NewClient(baseURL).GetMCPServer())
}

func apiReachable(baseURL string) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(strings.TrimRight(baseURL, "/") + "/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}

// runTUI opens or resumes one session and hands it to the terminal UI.
func runTUI(ctx context.Context, cmd *cli.Command) error {
	if path := cmd.String("log-file"); path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer f.Close()
		logrus.SetOutput(f)
	} else {
		logrus.SetOutput(io.Discard)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svcs, err := buildServices(ctx, serviceOptionsFrom(cmd))
	if err != nil {
		return err
	}
	defer svcs.Close()
	svcs.directory.LoadAsync(ctx)

	sess, err := openTUISession(ctx, svcs, cmd.String("session"), cmd.String("venue"))
	if err != nil {
		return err
	}

	interval := sess.Controller.Venue().Inactivity.CheckEvery()
	return tui.Run(ctx, sess.Controller, interval)
}

func openTUISession(ctx context.Context, svcs *services, id, venueID string) (*session.Session, error) {
	sess, err := svcs.sessions.Get(ctx, id)
	if err == nil {
		return sess, nil
	}
	if !errors.Is(err, session.ErrSessionNotFound) {
		return nil, err
	}

	venue, err := service.Resolver(svcs.configs)(venueID)
	if err != nil {
		return nil, fmt.Errorf("venue %q: %w", venueID, err)
	}
	return svcs.sessions.Create(ctx, id, venueID, venue)
}
