// internal/observability/observability.go
package observability

import (
	"context"
	"net/http"
	"time"

	"authzbff/internal/config"
	"authzbff/internal/httputils"
	"authzbff/internal/observability/logging"
	"authzbff/internal/observability/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// TraceHeader carries the request trace ID in both directions
const TraceHeader = "X-Trace-ID"

// OtherRoute labels request metrics for requests that matched no route
const OtherRoute = "other"

type routeKey struct{}

// SetRoute records the route template used to label the request's metrics.
// It does nothing outside Middleware.
func SetRoute(ctx context.Context, route string) {
	if slot, ok := ctx.Value(routeKey{}).(*string); ok {
		*slot = route
	}
}

// RouteMiddleware is a mux middleware recording the matched route's path template
func RouteMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				SetRoute(r.Context(), tpl)
			}
		}
		next.ServeHTTP(w, r)
	})
}

// Provider provides observability capabilities
type Provider struct {
	Logger  *logging.Logger
	Metrics *metrics.Collector
}

// NewProvider creates a new observability provider
func NewProvider(cfg *config.Config) (*Provider, error) {
	logger, err := logging.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
	if err != nil {
		return nil, err
	}

	return &Provider{
		Logger:  logger,
		Metrics: metrics.NewCollector(cfg.Authz.Type),
	}, nil
}

// Middleware creates an HTTP middleware for request observation.
// A well-formed incoming X-Trace-ID is reused; otherwise a new one is generated.
func (p *Provider) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startTime := time.Now()

		traceID := r.Header.Get(TraceHeader)
		if _, err := uuid.Parse(traceID); err != nil {
			traceID = logging.NewTraceID()
		}

		ctx := logging.ContextWithTraceID(r.Context(), traceID)
		logger := p.Logger.WithTracing(traceID)
		ctx = logging.ContextWithLogger(ctx, logger)

		route := OtherRoute
		ctx = context.WithValue(ctx, routeKey{}, &route)

		wrapper := httputils.NewResponseWriter(w)
		wrapper.Header().Set(TraceHeader, traceID)

		logger.Debug("Request started",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"user_agent", r.UserAgent(),
		)

		r = r.WithContext(ctx)
		next.ServeHTTP(wrapper, r)

		duration := time.Since(startTime)
		p.Metrics.RecordRequest(r.Method, route, wrapper.StatusCode, duration)

		logger.Info("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapper.StatusCode,
			"duration_ms", duration.Milliseconds(),
			"bytes_written", wrapper.BytesWritten,
		)
	})
}

// MetricsHandler returns an HTTP handler for exposing metrics
func (p *Provider) MetricsHandler() http.Handler {
	return metrics.Handler()
}
