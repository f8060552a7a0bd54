package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/kondrei/TalkieMartin-BE/interfaces/http/rest/handlers"
	"github.com/kondrei/TalkieMartin-BE/interfaces/http/rest/middleware"
	"github.com/kondrei/TalkieMartin-BE/pkg/common"
	"github.com/kondrei/TalkieMartin-BE/pkg/errors"
	"github.com/kondrei/TalkieMartin-BE/pkg/observability"
)

// ReadinessCheck reports whether backing services are reachable
type ReadinessCheck func(ctx context.Context) error

// Options configures the router
type Options struct {
	EnableCORS     bool
	AllowedOrigins []string
	MaxUploadBytes int64
	// WriteRateLimit caps mutating requests per client per minute, 0 disables it
	WriteRateLimit int
	Debug          bool
}

// Router creates and configures the HTTP router
type Router struct {
	service   handlers.MemoryCoordinator
	collector *observability.Collector
	ready     ReadinessCheck
	opts      Options
	logger    *zap.Logger
}

// NewRouter creates a new router instance. collector and ready may be nil.
func NewRouter(
	service handlers.MemoryCoordinator,
	collector *observability.Collector,
	ready ReadinessCheck,
	opts Options,
	logger *zap.Logger,
) *Router {
	return &Router{
		service:   service,
		collector: collector,
		ready:     ready,
		opts:      opts,
		logger:    logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()
	errorHandler := errors.NewErrorHandler(rt.logger, rt.opts.Debug)

	var recorder middleware.HTTPRecorder
	if rt.collector != nil {
		recorder = rt.collector
	}

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Logger(rt.logger, recorder))
	router.Use(errorHandler.Middleware)

	if rt.opts.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins: rt.opts.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.collector != nil {
		router.Handle("/metrics", rt.collector.Handler())
	}

	memoryHandler := handlers.NewMemoryHandler(rt.service, errorHandler, rt.opts.MaxUploadBytes, rt.logger)
	writeLimit := func(next http.Handler) http.Handler { return next }
	if rt.opts.WriteRateLimit > 0 {
		limiter := middleware.NewSlidingWindowLimiter(rt.opts.WriteRateLimit, time.Minute)
		writeLimit = middleware.RateLimit(limiter, errorHandler, rt.logger)
	}

	router.Route("/api/memories", func(r chi.Router) {
		r.Get("/", memoryHandler.ListMemories)
		r.Get("/{title}", memoryHandler.GetMemory)

		r.Group(func(r chi.Router) {
			r.Use(writeLimit)
			r.Post("/", memoryHandler.CreateMemory)
			r.Patch("/{title}", memoryHandler.UpdateMemory)
			r.Delete("/{title}", memoryHandler.DeleteMemory)
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// readinessCheck handles readiness check requests
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	if rt.ready != nil {
		ctx, cancel := context.WithTimeout(req.Context(), 3*time.Second)
		defer cancel()
		if err := rt.ready(ctx); err != nil {
			rt.logger.Warn("Readiness check failed", zap.Error(err))
			common.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
