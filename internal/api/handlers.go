// internal/api/handlers.go
package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"authzbff/internal/authz"
	"authzbff/internal/batch"
	"authzbff/internal/httputils"
	"authzbff/internal/observability"
	"authzbff/internal/observability/logging"
	"authzbff/internal/observability/metrics"
	"authzbff/internal/rpcerror"

	"github.com/gorilla/mux"
)

// defaultMaxBodyBytes caps request bodies when no limit is configured
const defaultMaxBodyBytes = 4 << 20

// BatchRunner evaluates a batch of scenarios
type BatchRunner interface {
	Run(ctx context.Context, scenarios []batch.Scenario) []batch.Result
}

// Config holds API handler configuration
type Config struct {
	// MaxBodyBytes caps the size of request bodies
	MaxBodyBytes int64

	// CallTimeout bounds single-check backend calls
	CallTimeout time.Duration
}

// Handler serves the authorization test API
type Handler struct {
	client       authz.Client
	runner       BatchRunner
	maxBodyBytes int64
	callTimeout  time.Duration
	logger       *logging.Logger
	metrics      *metrics.Collector
	now          func() time.Time
}

// BatchResponse is the body of a successful batch run
type BatchResponse struct {
	Success   bool           `json:"success"`
	Results   []batch.Result `json:"results"`
	Summary   batch.Summary  `json:"summary"`
	Timestamp string         `json:"timestamp"`
}

// BatchFailure is the body returned when a batch cannot be assembled
type BatchFailure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// DecisionResponse is the body of a single authorization check
type DecisionResponse struct {
	Decision            authz.Decision `json:"decision"`
	DeterminingPolicies []string       `json:"determining_policies,omitempty"`
	Errors              []string       `json:"errors,omitempty"`
}

// New creates a new API handler
func New(config Config, client authz.Client, runner BatchRunner, logger *logging.Logger, metricsCollector *metrics.Collector) *Handler {
	maxBody := config.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	return &Handler{
		client:       client,
		runner:       runner,
		maxBodyBytes: maxBody,
		callTimeout:  config.CallTimeout,
		logger:       logger.WithModule("api"),
		metrics:      metricsCollector,
		now:          time.Now,
	}
}

// Register adds the API routes to r
func (h *Handler) Register(r *mux.Router) {
	r.Use(observability.RouteMiddleware)
	r.HandleFunc("/batch-authorize", h.BatchAuthorize).Methods(http.MethodPost)
	r.HandleFunc("/is-authorized", h.IsAuthorized).Methods(http.MethodPost)
	r.HandleFunc("/healthz", h.Healthz).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httputils.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httputils.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
}

// Router returns a router serving the API routes
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	h.Register(r)
	return r
}

// BatchAuthorize runs every submitted scenario and reports per-scenario results with a summary
func (h *Handler) BatchAuthorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx, h.logger)

	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	scenarios, err := batch.DecodeRequest(bytes.NewReader(body))
	if err != nil {
		logger.Info("Batch rejected", logging.Err(err))
		httputils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.metrics.RecordBatch(len(scenarios))

	results := h.runner.Run(ctx, scenarios)
	if len(results) != len(scenarios) {
		err := fmt.Errorf("batch produced %d results for %d scenarios", len(results), len(scenarios))
		logger.Error("Failed to assemble batch", logging.Err(err))
		httputils.WriteJSON(w, http.StatusInternalServerError, BatchFailure{Success: false, Error: err.Error()})
		return
	}

	summary := batch.Summarize(results)
	logger.Info("Batch completed",
		"total", summary.Total,
		"successful", summary.Successful,
		"failed", summary.Failed,
		"avg_latency_ms", summary.AvgLatencyMs,
	)

	httputils.WriteJSON(w, http.StatusOK, BatchResponse{
		Success:   true,
		Results:   results,
		Summary:   summary,
		Timestamp: batch.FormatTimestamp(h.now()),
	})
}

// IsAuthorized answers a single scenario, translating backend failures to HTTP
func (h *Handler) IsAuthorized(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx, h.logger)

	body, ok := h.readBody(w, r)
	if !ok {
		return
	}

	scenario, err := batch.DecodeScenario(bytes.NewReader(body))
	if err != nil {
		httputils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	if h.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.callTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := h.client.IsAuthorized(ctx, scenario.AuthzRequest())
	if err != nil {
		h.metrics.RecordBackendCall(rpcerror.Code(err), time.Since(start))
		logger.Info("Authorization check failed", logging.Err(err))
		rpcerror.WriteError(w, err)
		return
	}
	h.metrics.RecordBackendCall("ok", time.Since(start))

	decision := DecisionResponse{Decision: authz.Unspecified}
	if resp != nil {
		decision.Decision = resp.Decision.Normalize()
		decision.DeterminingPolicies = resp.DeterminingPolicies
		decision.Errors = resp.Errors
	}
	httputils.WriteJSON(w, http.StatusOK, decision)
}

// Healthz reports liveness
func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	httputils.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// readBody reads the request body under the size limit, answering 413 when it is exceeded
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputils.WriteError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit))
			return nil, false
		}
		httputils.WriteError(w, http.StatusBadRequest, "failed to read request body")
		return nil, false
	}
	return body, true
}
