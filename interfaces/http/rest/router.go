package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"bfdb/infrastructure/di"
	"bfdb/interfaces/http/rest/handlers"
	"bfdb/interfaces/http/rest/middleware"
	"bfdb/pkg/common"
	pkgerrors "bfdb/pkg/errors"
)

// readinessProbeID is looked up by /ready; a not-found answer proves the
// backend is reachable
const readinessProbeID = "bfdb-readiness-probe"

// Router creates and configures the HTTP router
type Router struct {
	container *di.Container
	errors    *pkgerrors.ErrorHandler
	logger    *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(container *di.Container) *Router {
	logger := container.Logger.Named("http")
	return &Router{
		container: container,
		errors:    pkgerrors.NewErrorHandler(logger, container.Config.IsDevelopment()),
		logger:    logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	cfg := rt.container.Config
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(rt.errors.Middleware)
	if cfg.EnableMetrics {
		router.Use(middleware.Logger(rt.logger, rt.container.Metrics))
	} else {
		router.Use(middleware.Logger(rt.logger, nil))
	}

	if cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	// Health check
	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if cfg.EnableMetrics {
		router.Handle("/metrics", rt.container.Metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(
			rt.container.JWTValidator,
			rt.container.RateLimiter,
			rt.errors,
			rt.logger,
		))

		nodeHandler := handlers.NewNodeHandler(rt.container.CommandBus, rt.container.QueryBus, rt.errors, rt.logger)
		r.Route("/nodes", func(r chi.Router) {
			r.Post("/", nodeHandler.CreateNode)
			r.Get("/", nodeHandler.ListNodes)
			r.Get("/{nodeID}", nodeHandler.GetNode)
			r.Put("/{nodeID}", nodeHandler.UpdateNode)
			r.Delete("/{nodeID}", nodeHandler.DeleteNode)
			r.Get("/{nodeID}/targets", nodeHandler.ListTargets)
			r.Get("/{nodeID}/sources", nodeHandler.ListSources)
			r.Get("/{nodeID}/ancestors", nodeHandler.ListAncestors)
			r.Get("/{nodeID}/descendants", nodeHandler.ListDescendants)
		})

		edgeHandler := handlers.NewEdgeHandler(rt.container.CommandBus, rt.errors, rt.logger)
		r.Route("/edges", func(r chi.Router) {
			r.Post("/", edgeHandler.CreateEdge)
			r.Delete("/{edgeID}", edgeHandler.DeleteEdge)
		})
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		rt.errors.HandleStatus(w, r, http.StatusNotFound, "route not found")
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		rt.errors.HandleStatus(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	common.RespondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// readinessCheck reports ready once the storage backend answers
func (rt *Router) readinessCheck(w http.ResponseWriter, req *http.Request) {
	ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
	defer cancel()

	_, err := rt.container.Backend.GetItemByBfGid(ctx, readinessProbeID)
	if err != nil && !pkgerrors.IsNotFound(err) {
		rt.logger.Warn("Readiness check failed", zap.Error(err))
		common.RespondJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":  "unavailable",
			"backend": rt.container.Config.Backend,
		})
		return
	}

	common.RespondJSON(w, http.StatusOK, map[string]string{
		"status":  "ready",
		"backend": rt.container.Config.Backend,
	})
}
