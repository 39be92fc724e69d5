// Package app binds the wallet login flow to HTTP: it serves the login entry
// and callback pages, the auth state API and its event stream.
package app

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"time"

	"marketfront-go/internal/auth"
	"marketfront-go/internal/authstate"
	"marketfront-go/internal/config"
	"marketfront-go/internal/locale"
	"marketfront-go/internal/popup"
	"marketfront-go/internal/scheduler"
	"marketfront-go/internal/session"
	"marketfront-go/internal/storage"
	"marketfront-go/internal/worker"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 5 * time.Second

// Application holds all the major components of the service.
type Application struct {
	Config     *config.Config
	Logger     *log.Logger
	Storage    *storage.SQLiteStorage
	Tokens     *storage.TokenStore
	Sessions   session.Store
	Registry   *authstate.Registry
	Relay      *popup.Relay
	Controller *popup.Controller
	Callback   *auth.CallbackHandler
	Negotiator *locale.Negotiator
	WorkerPool *worker.WorkerPool
	Scheduler  *scheduler.Scheduler

	HttpServer    *http.Server
	MetricsServer *http.Server

	router    chi.Router
	templates *template.Template
	upgrader  websocket.Upgrader
}

// NewLogger builds the application logger from the log settings in cfg.
func NewLogger(cfg *config.Config) (*log.Logger, error) {
	logger := log.New()
	logger.SetOutput(os.Stdout)

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}
	logger.SetLevel(level)

	if cfg.LogFormat == "json" {
		logger.SetFormatter(&log.JSONFormatter{})
	} else {
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

// New creates and initializes a new Application instance.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	logger, err := NewLogger(cfg)
	if err != nil {
		return nil, err
	}

	// Setup: Database
	dbCfg := storage.DefaultConfig()
	dbCfg.Path = cfg.DBPath
	db, err := storage.OpenDatabase(ctx, dbCfg)
	if err != nil {
		return nil, err
	}

	key, err := cfg.KeyBytes()
	if err != nil {
		db.Close()
		return nil, err
	}
	tokens, err := storage.NewTokenStore(db, key)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create token store: %w", err)
	}

	// Setup: Wallet login
	wallet := auth.NewWalletClient(auth.WalletConfig{
		WalletURL:    cfg.Wallet.URL,
		ClientID:     cfg.Wallet.ClientID,
		Scopes:       cfg.Wallet.Scopes,
		PublicOrigin: cfg.PublicOrigin,
	})
	registry := authstate.NewRegistry(tokens)
	relay := popup.NewRelay(cfg.PublicOrigin, logger)
	generator := auth.NewPKCEGenerator(auth.DetectHashingStrategy())
	controller := popup.NewController(generator, db, wallet, relay, registry,
		popup.Config{LoginTimeout: cfg.Auth.LoginTimeout.Duration}, logger)
	callback := auth.NewCallbackHandler(db,
		auth.NewBackendExchanger(cfg.API.URL, cfg.API.Timeout.Duration),
		tokens,
		auth.CallbackConfig{
			CloseDelay:    cfg.Auth.CloseDelay.Duration,
			RedirectDelay: cfg.Auth.RedirectDelay.Duration,
			LandingPath:   cfg.Auth.LandingPath,
		}, logger)

	sessions := session.NewInMemoryStore()

	// Setup: Housekeeping
	pool := worker.NewWorkerPoolWithOptions(worker.Options{Workers: cfg.NumWorkers, Logger: logger})
	sched := scheduler.NewScheduler(pool, logger)
	housekeeping := &scheduler.Housekeeping{
		Store:    db,
		Sessions: sessions,
		States:   registry,
		StateTTL: cfg.Auth.StateTTL.Duration,
		Logger:   logger,
	}
	if err := housekeeping.Register(sched, "@every "+cfg.Housekeeping.Interval.String()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to register housekeeping jobs: %w", err)
	}

	tmpl, err := parseTemplates()
	if err != nil {
		db.Close()
		return nil, err
	}

	app := &Application{
		Config:     cfg,
		Logger:     logger,
		Storage:    db,
		Tokens:     tokens,
		Sessions:   sessions,
		Registry:   registry,
		Relay:      relay,
		Controller: controller,
		Callback:   callback,
		Negotiator: locale.NewNegotiator(cfg.DefaultLocale),
		WorkerPool: pool,
		Scheduler:  sched,
		templates:  tmpl,
	}
	app.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     app.allowedOrigin,
	}

	// Setup: HTTP Server for metrics
	metricsRegistry := prometheus.NewRegistry()
	metricsRegistry.MustRegister(storage.NewStatsCollector(db))
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(
		prometheus.Gatherers{prometheus.DefaultGatherer, metricsRegistry},
		promhttp.HandlerOpts{},
	))
	app.MetricsServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           metricsMux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Setup: Main HTTP Server
	app.router = app.routes()
	app.HttpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	return app, nil
}

// Handler returns the main HTTP handler.
func (a *Application) Handler() http.Handler {
	return a.router
}

// Run starts the worker pool, the scheduler and both servers, and blocks
// until ctx is cancelled or a server fails. Servers are shut down before it
// returns.
func (a *Application) Run(ctx context.Context) error {
	a.Logger.Info("Starting application services...")

	a.WorkerPool.Start()
	a.Scheduler.Start()
	a.Logger.WithField("workers", a.WorkerPool.Workers()).Info("Worker pool and scheduler started")

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.WithField("addr", a.MetricsServer.Addr).Info("Starting metrics server")
		if err := a.MetricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.Logger.WithFields(log.Fields{"addr": a.HttpServer.Addr, "origin": a.Config.PublicOrigin}).Info("Starting HTTP server")
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := a.HttpServer.Shutdown(shutdownCtx); err != nil {
			a.Logger.WithError(err).Error("HTTP server shutdown error")
		}
		if err := a.MetricsServer.Shutdown(shutdownCtx); err != nil {
			a.Logger.WithError(err).Error("Metrics server shutdown error")
		}
		return nil
	})

	return g.Wait()
}

// Stop stops background work and closes the database.
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.Info("Stopping application services...")

	a.Scheduler.Stop()
	a.Logger.Info("Scheduler stopped.")

	stopCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	a.WorkerPool.Stop(stopCtx)
	a.Logger.Info("Worker pool stopped.")

	if err := a.Storage.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	a.Logger.Info("Application stopped gracefully.")
	return nil
}

// allowedOrigin accepts websocket handshakes from the public origin and the
// configured CORS origins. Requests without an Origin header are not from a
// browser and are accepted.
func (a *Application) allowedOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == a.Config.PublicOrigin {
		return true
	}
	for _, allowed := range a.Config.CORS.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}
