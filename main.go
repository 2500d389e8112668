package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MGallo-Code/keyhole/internal/auth"
	"github.com/MGallo-Code/keyhole/internal/config"
	"github.com/MGallo-Code/keyhole/internal/events"
	"github.com/MGallo-Code/keyhole/internal/metrics"
	"github.com/MGallo-Code/keyhole/internal/oauth"
	"github.com/MGallo-Code/keyhole/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// Embeds the migration files INTO the go bin

//go:embed migrations/*.sql
var migrationsDir embed.FS

func main() {
	// .env is optional; variables already in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to load .env", "err", err)
	}

	// Load config first so we can set log level
	cfg, err := config.LoadConfig()
	if err != nil {
		// Fallback logger before config is available
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}

	// Include source location in log entries at debug level only.
	addSrc := cfg.LogLevel == slog.LevelDebug

	// Set up slog to output as json with configured level
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:     cfg.LogLevel,
		AddSource: addSrc,
	})))

	// Cancel ctx on SIGINT/SIGTERM; run() shuts down when ctx is done.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// run() is a separate func so deferred closes always execute before os.Exit.
	if err := run(ctx, cfg, nil); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

// run holds all server logic and returns error instead of calling os.Exit,
// so deferred resource cleanup always runs.
// Shuts down when ctx is cancelled (signal handling is the caller's concern).
// If ready is non-nil, the server's base URL is sent on it once the listener is bound.
func run(ctx context.Context, cfg *config.Config, ready chan<- string) error {
	// Sessions and the state replay guard share one backend: Redis when
	// configured, process memory otherwise.
	var sessions auth.SessionStore
	var replay oauth.ReplayGuard
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		var err error
		rdb, err = store.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to set up redis client: %w", err)
		}
		defer rdb.Close()
		rs := store.NewRedisStore(rdb)
		sessions, replay = rs, rs
	} else {
		slog.Warn("REDIS_URL not set, sessions are kept in process memory")
		ms := store.NewMemoryStore(10 * time.Minute)
		sessions, replay = ms, ms
	}
	if !cfg.StateSingleUse {
		replay = nil
	}

	// Worker goroutines stop via workerCtx when run() returns.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	var recorder events.Recorder = events.NopRecorder{}
	var db auth.HealthChecker
	if cfg.DatabaseURL != "" {
		ps, err := store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to set up postgres store: %w", err)
		}
		// Close at end of run func
		defer ps.Close()

		migrationsFS, err := fs.Sub(migrationsDir, "migrations")
		if err != nil {
			return fmt.Errorf("failed to access embedded migrations: %w", err)
		}
		if err := ps.Migrate(ctx, migrationsFS); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		db = ps
		recorder = ps

		// With Redis available, logins are queued and written by a worker.
		if rdb != nil {
			q := events.NewQueuedRecorder(ps, rdb, events.DefaultMaxQueueSize)
			go q.StartWorker(workerCtx)
			recorder = q
		}
	} else {
		slog.Warn("DATABASE_URL not set, logins are not recorded")
	}

	flow, err := buildFlow(cfg, replay)
	if err != nil {
		return err
	}
	if len(flow.ConfiguredProviders()) == 0 {
		slog.Warn("no oauth providers configured")
	}

	m, err := metrics.New(nil)
	if err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	h := &auth.AuthHandler{
		Flow:         flow,
		Sessions:     sessions,
		Recorder:     recorder,
		DB:           db,
		Metrics:      m,
		SessionTTL:   cfg.SessionTTL,
		CookieSecure: cfg.CookieSecure,
		LoginPath:    cfg.LoginPath,
	}

	// Bind listener; ":0" picks a free port (useful in tests).
	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	server := &http.Server{
		Handler:           buildRouter(h, routesFor(cfg)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine; run() continues past this.
	errCh := make(chan error, 1)
	go func() {
		slog.Info("keyhole listening", "addr", ln.Addr().String(), "providers", flow.ConfiguredProviders())
		// Send error only if server stops for a reason other than explicit shutdown.
		if err := server.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// Signal readiness to caller (used by tests; nil in production).
	if ready != nil {
		ready <- "http://" + ln.Addr().String()
	}

	// Wait for server error or shutdown signal from ctx.
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	// Graceful shutdown ! :)
	slog.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	// server.Shutdown stops accepting new conns and waits for in-flight
	// requests, or returns an error if the 30s timeout hits first.
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	slog.Info("server stopped")
	return nil
}

// buildFlow registers every configured provider and assembles the login flow.
// Providers with a fields mapping get a matching normalizer.
func buildFlow(cfg *config.Config, replay oauth.ReplayGuard) (*oauth.Flow, error) {
	reg := oauth.NewRegistry()
	normalizers := oauth.NewNormalizers()
	for key, settings := range cfg.Providers {
		pc, err := settings.ProviderConfig(key)
		if err != nil {
			return nil, err
		}
		reg.Register(key, pc)
		if settings.Fields != nil {
			normalizers.Register(key, *settings.Fields)
		}
	}

	states, err := oauth.NewStateCodec(cfg.StateSecret, oauth.WithStateTTL(cfg.StateTTL))
	if err != nil {
		return nil, fmt.Errorf("failed to set up state codec: %w", err)
	}

	client := &http.Client{Timeout: cfg.HTTPTimeout}
	flow, err := oauth.NewFlow(reg, states,
		oauth.NewHTTPExchanger(client),
		oauth.NewHTTPFetcher(client, normalizers),
		oauth.FlowOptions{
			BaseURL:              cfg.BaseURL,
			DefaultRedirect:      cfg.DefaultRedirect,
			AllowedRedirectHosts: cfg.AllowedRedirectHosts,
			Replay:               replay,
		})
	if err != nil {
		return nil, fmt.Errorf("failed to set up oauth flow: %w", err)
	}
	return flow, nil
}

// routeConfig holds the configurable parts of the route table.
type routeConfig struct {
	LoginPath  string
	LogoutPath string

	// Callbacks maps custom callback paths to the provider they serve.
	Callbacks map[string]string
}

// routesFor derives the route table from cfg. Providers keeping the default
// /oauth/callback/{provider} path need no entry in Callbacks.
func routesFor(cfg *config.Config) routeConfig {
	rc := routeConfig{
		LoginPath:  cfg.LoginPath,
		LogoutPath: cfg.LogoutPath,
		Callbacks:  make(map[string]string),
	}
	for key, settings := range cfg.Providers {
		if p := settings.CallbackPath; p != "" && p != "/oauth/callback/"+key {
			rc.Callbacks[p] = key
		}
	}
	return rc
}

// buildRouter wires all routes and middleware.
// Called from run() and the smoke tests.
func buildRouter(h *auth.AuthHandler, rc routeConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.NotFound(auth.NotFound)

	r.Get("/health", h.CheckHealth)
	r.Method(http.MethodGet, "/metrics", h.Metrics.Handler())

	r.Get(rc.LoginPath+"/{provider}", h.Login)
	r.Get("/oauth/callback/{provider}", h.Callback)
	for path, provider := range rc.Callbacks {
		r.Get(path, h.CallbackFor(provider))
	}
	r.Get(rc.LogoutPath, h.Logout)
	r.Post(rc.LogoutPath, h.Logout)
	r.Get("/oauth/providers", h.Providers)

	// Authentication required routes
	r.Group(func(r chi.Router) {
		r.Use(h.RequireSession)
		r.Get("/oauth/me", h.Me)
	})

	return r
}
