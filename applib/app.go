package applib

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomyedwab/opecstate/database"
	"github.com/tomyedwab/opecstate/database/middleware"
)

type Application struct {
	config  *Config
	db      *database.Database
	logger  *slog.Logger
	metrics *prometheus.Registry
}

func NewApplication(cfg *Config, db *database.Database, logger *slog.Logger) (*Application, error) {
	metrics := prometheus.NewRegistry()
	for _, c := range append(database.Collectors(), collectors.NewGoCollector()) {
		if err := metrics.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metrics: %w", err)
		}
	}
	return &Application{
		config:  cfg,
		db:      db,
		logger:  logger,
		metrics: metrics,
	}, nil
}

func (app *Application) GetDatabase() *database.Database {
	return app.db
}

func (app *Application) Metrics() *prometheus.Registry {
	return app.metrics
}

// InitDB creates the tables of all registered models that do not exist
// yet.
func (app *Application) InitDB(ctx context.Context) error {
	return app.db.InitDB(ctx)
}

// Handler returns the HTTP routes of the application.
func (app *Application) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/api/status", app.handleStatus)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(app.metrics, promhttp.HandlerOpts{}))

	r.Route("/service", func(r chi.Router) {
		r.Use(middleware.ScopedSession(app.db.Scoped(), app.logger))

		r.Post("/state", app.handleCreateState)
		r.Get("/state", app.handleListStates)
		r.Get("/state/{id}", app.handleGetState)
		r.Put("/state/{id}", app.handlePutState)
		r.Delete("/state/{id}", app.handleDeleteState)

		r.Post("/user", app.handleCreateUser)
		r.Get("/user/{id}", app.handleGetUser)
	})
	return middleware.Chain(r,
		middleware.LogRequests(app.logger),
		middleware.EnableCrossOrigin(app.config.EnableCrossOrigin),
	)
}

// Serve listens on the configured port until ctx is cancelled, then shuts
// down gracefully.
func (app *Application) Serve(ctx context.Context) error {
	listenAddr := fmt.Sprintf(":%d", app.config.Port)
	ln, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", listenAddr, err)
	}
	return app.ServeListener(ctx, ln)
}

func (app *Application) ServeListener(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler: app.Handler(),
		BaseContext: func(net.Listener) context.Context {
			return context.WithoutCancel(ctx)
		},
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info("Starting server", "address", ln.Addr().String())
		errCh <- server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	app.logger.Info("Shutting down server", "timeout", app.config.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	app.logger.Info("Server stopped")
	return nil
}

func (app *Application) Close() error {
	return app.db.Close()
}
