package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"consentstate/internal/consentstate/handler"
	"consentstate/internal/platform/health"
	"consentstate/pkg/platform/middleware/request"
	"consentstate/pkg/platform/middleware/requesttime"
	"consentstate/pkg/platform/middleware/visitor"
)

// DefaultMaxBodyBytes caps save request bodies.
const DefaultMaxBodyBytes = 64 << 10

// RouterConfig carries everything NewRouter mounts.
type RouterConfig struct {
	Logger         *slog.Logger
	Consent        *handler.Handler
	Health         *health.Handler
	Visitor        visitor.Config
	RequestMetrics *request.Metrics
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	// MetricsHandler serves /metrics; defaults to promhttp.Handler.
	MetricsHandler http.Handler
}

// NewRouter wires all public endpoints with middleware.
// Probes and /metrics sit outside the visitor middleware so they never issue cookies.
func NewRouter(cfg RouterConfig) http.Handler {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	metricsHandler := cfg.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}

	r := chi.NewRouter()

	r.Use(request.Recovery(cfg.Logger))
	r.Use(request.RequestID)
	r.Use(request.Logger(cfg.Logger))
	r.Use(request.Timeout(timeout))
	r.Use(requesttime.Middleware)

	if cfg.Health != nil {
		cfg.Health.Register(r)
	}
	r.Handle("/metrics", metricsHandler)

	r.Group(func(r chi.Router) {
		r.Use(request.Latency(cfg.RequestMetrics, routePattern))
		r.Use(request.BodyLimit(maxBody))
		r.Use(request.ContentTypeJSON)
		r.Use(visitor.Middleware(cfg.Visitor))
		cfg.Consent.Register(r)
	})

	return r
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}
