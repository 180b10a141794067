package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/ekaya-inc/order-insight/pkg/config"
	"github.com/ekaya-inc/order-insight/pkg/middleware"
	"github.com/ekaya-inc/order-insight/pkg/observability"
)

// RouterDeps collects everything the HTTP surface serves.
type RouterDeps struct {
	Config     *config.Config
	Directory  Directory
	Prober     DatabaseProber
	Prediction PredictionService
	Query      QueryService
	// MCP is the streamable MCP transport. Nil leaves /mcp unmounted.
	MCP    http.Handler
	Logger *zap.Logger
}

// NewRouter builds the chi router for the REST API, metrics and MCP endpoints.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(chimiddleware.Recoverer)
	r.Use(observability.MetricsMiddleware)

	NewHealthHandler(deps.Config, deps.Directory, deps.Logger).RegisterRoutes(r)
	r.Handle("/metrics", promhttp.Handler())

	directoryHandler := NewDirectoryHandler(deps.Directory, deps.Prober, deps.Logger)
	predictionHandler := NewPredictionHandler(deps.Prediction, deps.Directory, deps.Logger)
	queryHandler := NewQueryHandler(deps.Query, deps.Directory, deps.Logger)

	r.Route("/api", func(r chi.Router) {
		r.Use(chimiddleware.Timeout(requestTimeout(deps.Config)))
		directoryHandler.RegisterRoutes(r)
		predictionHandler.RegisterRoutes(r)
		queryHandler.RegisterRoutes(r)
	})

	if deps.MCP != nil {
		r.Method(http.MethodPost, "/mcp", middleware.MCPRequestLogger(deps.Logger)(deps.MCP))
	}

	return r
}

// requestTimeout leaves room for a model call on top of the database work.
func requestTimeout(cfg *config.Config) time.Duration {
	if cfg != nil && cfg.RequestTimeoutSeconds > 0 {
		return cfg.RequestTimeout()
	}
	return 2 * time.Minute
}
