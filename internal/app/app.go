package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
	"todoTree/internal/config"
	"todoTree/internal/handlers"
	"todoTree/internal/hierarchy"
	"todoTree/internal/logger"
	"todoTree/internal/middleware"
	"todoTree/internal/service"
	"todoTree/internal/worker"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type App struct {
	config     *config.Config
	server     *http.Server
	router     *chi.Mux
	repository service.TaskRepository
	service    *service.TaskService
	worker     *worker.DueSoonWorker
	shutdowns  []func() error
}

func New(cfg *config.Config) *App {
	return &App{
		config:    cfg,
		shutdowns: make([]func() error, 0),
	}
}

// Init wires storage, service, router and worker. The logger must already be
// initialized. On error the caller still owns Shutdown.
func (a *App) Init(ctx context.Context) error {
	a.shutdowns = append(a.shutdowns, func() error {
		logger.Info("Shutting down logger")
		logger.Sync()
		return nil
	})

	repo, closeRepo, err := OpenRepository(ctx, a.config)
	if err != nil {
		return fmt.Errorf("init repository: %w", err)
	}
	a.repository = repo
	a.shutdowns = append(a.shutdowns, func() error {
		logger.Info("Repository: closing")
		closeRepo()
		return nil
	})

	if err := a.initService(); err != nil {
		return err
	}
	a.initRouter()
	a.initServer()

	if a.config.Worker.Enabled {
		a.worker = worker.NewDueSoonWorker(a.service, worker.LogNotifier{},
			worker.WithInterval(a.config.Worker.Interval),
			worker.WithConcurrency(a.config.Worker.Concurrency))
	}
	return nil
}

func (a *App) initService() error {
	loc, err := a.config.Location()
	if err != nil {
		return err
	}
	orphans, ok := hierarchy.ParseOrphanPolicy(a.config.Hierarchy.Orphans)
	if !ok {
		return fmt.Errorf("unknown orphan policy %q", a.config.Hierarchy.Orphans)
	}

	a.service = service.NewTaskService(a.repository,
		service.WithLocation(loc),
		service.WithOrphanPolicy(orphans))
	return nil
}

func (a *App) initRouter() {
	h := handlers.NewTaskHandler(a.service)
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: a.config.HTTP.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID", middleware.UserIDHeader, middleware.UserEmailHeader},
		ExposedHeaders: []string{"X-Request-ID", "Retry-After"},
		MaxAge:         300,
	}))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RateLimit(a.config.HTTP.RateLimit))
	if a.config.HTTP.RequestTimeout > 0 {
		r.Use(chimw.Timeout(a.config.HTTP.RequestTimeout))
	}

	r.Get("/health", h.HealthCheck)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Identity)
		h.Routes(r)
	})

	a.router = r
}

func (a *App) initServer() {
	a.server = &http.Server{
		Addr:         a.config.GetServerAddr(),
		Handler:      a.Handler(),
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
	}
}

// Handler is the instrumented router.
func (a *App) Handler() http.Handler {
	return otelhttp.NewHandler(a.router, "todotree",
		otelhttp.WithFilter(func(r *http.Request) bool { return r.URL.Path != "/health" }))
}

func (a *App) Service() *service.TaskService {
	return a.service
}

// Run serves HTTP and runs the worker until ctx is cancelled or the server
// fails, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP: server started", zap.String("addr", a.server.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if a.worker != nil {
		g.Go(func() error {
			a.worker.Start(gctx)
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
		defer cancel()
		return a.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (a *App) shutdownTimeout() time.Duration {
	if a.config.Server.ShutdownTimeout > 0 {
		return a.config.Server.ShutdownTimeout
	}
	return 15 * time.Second
}

// Shutdown stops the server and runs the registered shutdowns in reverse
// order. It is safe to call more than once.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	if a.server != nil {
		logger.Info("HTTP: server stopping")
		err = multierr.Append(err, a.server.Shutdown(ctx))
	}

	for i := len(a.shutdowns) - 1; i >= 0; i-- {
		err = multierr.Append(err, a.shutdowns[i]())
	}
	a.shutdowns = nil

	return err
}
