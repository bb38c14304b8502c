// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/bissquit/incident-pulse/internal/config"
	"github.com/bissquit/incident-pulse/internal/lifecycle"
	lifecyclepostgres "github.com/bissquit/incident-pulse/internal/lifecycle/postgres"
	"github.com/bissquit/incident-pulse/internal/notify"
	"github.com/bissquit/incident-pulse/internal/notify/pager"
	"github.com/bissquit/incident-pulse/internal/notify/webhook"
	"github.com/bissquit/incident-pulse/internal/pkg/ctxlog"
	"github.com/bissquit/incident-pulse/internal/pkg/httputil"
	"github.com/bissquit/incident-pulse/internal/pkg/metrics"
	"github.com/bissquit/incident-pulse/internal/pkg/postgres"
	"github.com/bissquit/incident-pulse/internal/reports"
	reportspostgres "github.com/bissquit/incident-pulse/internal/reports/postgres"
	timelinepostgres "github.com/bissquit/incident-pulse/internal/timeline/postgres"
	"github.com/bissquit/incident-pulse/internal/version"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		metricsCancel: metricsCancel,
	}

	go app.collectDBMetrics(metricsCtx)

	router, err := app.setupRouter()
	if err != nil {
		db.Close()
		metricsCancel()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.MetricsPort),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Server.MetricsPort,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
	)

	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.metricsCancel()

	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	a.db.Close()

	return errors.Join(errs...)
}

func (a *App) collectDBMetrics(ctx context.Context) {
	metrics.RecordDBPoolMetrics(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db)
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

func (a *App) setupRouter() (*chi.Mux, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)

	// CORS must be early to handle preflight requests before other middleware
	r.Use(httputil.CORSMiddleware(a.config.Server.CORSOrigins))
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	notifier, err := a.setupNotifier()
	if err != nil {
		return nil, err
	}

	recorder := timelinepostgres.NewRecorder(a.db)

	lifecycleRepo := lifecyclepostgres.NewRepository(a.db)
	lifecycleService := lifecycle.NewService(lifecycleRepo, recorder, notifier)
	lifecycleHandler := lifecycle.NewHandler(lifecycleService)

	targets := a.config.SLA.Targets()
	reportsRepo := reportspostgres.NewRepository(a.db)
	renderer := reports.NewTextRenderer()
	reportsHandler := reports.NewHandler(
		reports.NewAggregator(reportsRepo, targets),
		reports.NewBreakdownEngine(reportsRepo),
		reports.NewTimeseriesEngine(reportsRepo),
		reports.NewExporter(reportsRepo, recorder, renderer, targets),
		renderer,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httputil.AuthMiddleware([]byte(a.config.Auth.JWTSecret)))

		r.Route("/incidents", lifecycleHandler.RegisterRoutes)
		r.Route("/reports", reportsHandler.RegisterRoutes)
	})

	return r, nil
}

// setupNotifier builds the notification trigger from the configured
// gateways. Returns nil when notifications are disabled or no gateway is
// configured; the lifecycle service treats a nil notifier as a no-op.
func (a *App) setupNotifier() (lifecycle.Notifier, error) {
	cfg := a.config.Notifications
	if !cfg.Enabled {
		slog.Info("notifications disabled")
		return nil, nil
	}

	gateways := make([]notify.Gateway, 0, 2)

	if cfg.Webhook.URL != "" {
		sender, err := webhook.NewSender(webhook.Config{
			URL:       cfg.Webhook.URL,
			Username:  cfg.Webhook.Username,
			Timeout:   cfg.Webhook.Timeout,
			RateLimit: cfg.Webhook.RateLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("create webhook sender: %w", err)
		}
		gateways = append(gateways, sender)
	}

	if cfg.Pager.Endpoint != "" {
		sender, err := pager.NewSender(pager.Config{
			Endpoint:   cfg.Pager.Endpoint,
			RoutingKey: cfg.Pager.RoutingKey,
			Timeout:    cfg.Pager.Timeout,
			RateLimit:  cfg.Pager.RateLimit,
		})
		if err != nil {
			return nil, fmt.Errorf("create pager sender: %w", err)
		}
		gateways = append(gateways, sender)
	}

	if len(gateways) == 0 {
		slog.Warn("notifications enabled but no gateway configured")
		return nil, nil
	}

	slog.Info("notifications configured", "gateways", len(gateways))
	return notify.NewTrigger(cfg.BaseURL, gateways...), nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
