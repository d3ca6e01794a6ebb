// Package server exposes the quality pipeline as a JSON HTTP API:
// source registration and uploads, run triggers, check results, lineage,
// rule listings, alert configuration and the dashboard aggregates.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/net/netutil"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapdq/internal/alert"
	"github.com/leapstack-labs/leapdq/internal/lineage"
	"github.com/leapstack-labs/leapdq/internal/pipeline"
	"github.com/leapstack-labs/leapdq/pkg/core"
	"github.com/leapstack-labs/leapdq/pkg/rules"
)

const (
	// DefaultPort is used when the configuration does not name one.
	DefaultPort = 8765

	// DefaultMaxConns caps concurrent connections on the listener.
	DefaultMaxConns = 256

	// DefaultShutdownTimeout bounds graceful shutdown once the serve
	// context is cancelled.
	DefaultShutdownTimeout = 5 * time.Second
)

// Server is the API server. It owns no pipeline state of its own; every
// handler delegates to the store, the engine, the rule registry or the
// alert evaluator.
type Server struct {
	store    core.Store
	engine   *pipeline.Engine
	registry *rules.Registry
	alerts   *alert.Evaluator
	lineage  *lineage.Recorder
	logger   *slog.Logger

	port     int
	maxConns int
	watch    bool
	rulesDir string
	shutdown time.Duration
}

// Config holds configuration for the API server.
type Config struct {
	// Store persists sources, runs and alert configs. Required.
	Store core.Store
	// Engine executes pipeline runs. Required.
	Engine *pipeline.Engine
	// Registry serves rule listings and pack reloads. Defaults to the
	// process-wide registry.
	Registry *rules.Registry
	// Alerts backs the alert test-fire endpoint (optional).
	Alerts *alert.Evaluator
	// Port to listen on. Defaults to DefaultPort.
	Port int
	// MaxConns caps concurrent connections. Defaults to DefaultMaxConns.
	MaxConns int
	// Watch reloads RulesDir whenever a pack file changes.
	Watch bool
	// RulesDir is the rule-pack directory watched when Watch is set.
	RulesDir string
	// ShutdownTimeout bounds graceful shutdown. Defaults to
	// DefaultShutdownTimeout.
	ShutdownTimeout time.Duration
	// Logger is the structured logger (optional, uses discard if nil).
	Logger *slog.Logger
}

// New creates an API server.
func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("%w: server requires a store", core.ErrInvalid)
	}
	if cfg.Engine == nil {
		return nil, fmt.Errorf("%w: server requires a pipeline engine", core.ErrInvalid)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	registry := cfg.Registry
	if registry == nil {
		registry = rules.Default()
	}

	port := cfg.Port
	if port <= 0 {
		port = DefaultPort
	}

	maxConns := cfg.MaxConns
	if maxConns <= 0 {
		maxConns = DefaultMaxConns
	}

	shutdown := cfg.ShutdownTimeout
	if shutdown <= 0 {
		shutdown = DefaultShutdownTimeout
	}

	return &Server{
		store:    cfg.Store,
		engine:   cfg.Engine,
		registry: registry,
		alerts:   cfg.Alerts,
		lineage:  lineage.NewRecorder(cfg.Store, logger),
		logger:   logger,
		port:     port,
		maxConns: maxConns,
		watch:    cfg.Watch,
		rulesDir: cfg.RulesDir,
		shutdown: shutdown,
	}, nil
}

// Serve starts the API server and blocks until the context is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.port)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	ln = netutil.LimitListener(ln, s.maxConns)

	s.logger.Info("starting API server", "addr", fmt.Sprintf("http://localhost:%d", s.port))

	eg, egctx := errgroup.WithContext(ctx)

	srv := &http.Server{
		Handler: s.Handler(),
		BaseContext: func(_ net.Listener) context.Context {
			return egctx
		},
		ReadHeaderTimeout: 10 * time.Second,
	}

	if s.watch && s.rulesDir != "" {
		eg.Go(func() error {
			return s.watchPacks(egctx)
		})
	}

	eg.Go(func() error {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown
	eg.Go(func() error {
		<-egctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdown)
		defer cancel()

		s.logger.Debug("shutting down API server...")
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

// Handler builds the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewMux()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		s.requestLogger,
		middleware.Recoverer,
		middleware.Compress(5),
	)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sources", func(r chi.Router) {
			r.Get("/", s.handleListSources)
			r.Post("/", s.handleCreateSource)
			r.Route("/{sourceID}", func(r chi.Router) {
				r.Get("/", s.handleGetSource)
				r.Delete("/", s.handleDeleteSource)
				r.Get("/data", s.handleSourceData)
				r.Post("/upload", s.handleUpload)
				r.Get("/runs", s.handleListRuns)
				r.Post("/runs", s.handleTriggerRun)
				r.Get("/lineage", s.handleLineage)
			})
		})

		r.Route("/runs/{runID}", func(r chi.Router) {
			r.Get("/", s.handleGetRun)
			r.Get("/checks", s.handleListChecks)
		})

		r.Get("/rules", s.handleListRules)
		r.Get("/rules/{key}", s.handleGetRule)

		r.Route("/alerts", func(r chi.Router) {
			r.Get("/", s.handleListAlertConfigs)
			r.Post("/", s.handleCreateAlertConfig)
			r.Get("/events", s.handleListAlertEvents)
			r.Route("/{configID}", func(r chi.Router) {
				r.Put("/", s.handleUpdateAlertConfig)
				r.Delete("/", s.handleDeleteAlertConfig)
				r.Post("/test", s.handleTestAlert)
			})
		})

		r.Get("/dashboard/stats", s.handleDashboardStats)
		r.Get("/dashboard/timeline", s.handleDashboardTimeline)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestLogger logs one line per request at debug level.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
