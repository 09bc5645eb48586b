package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/kirillkom/rrr-query-engine/internal/config"
	"github.com/kirillkom/rrr-query-engine/internal/core/domain"
	"github.com/kirillkom/rrr-query-engine/internal/core/ports"
	"github.com/kirillkom/rrr-query-engine/internal/observability/metrics"
)

const maxQueryBodyBytes = 1 << 20

type Router struct {
	service    ports.QueryService
	categories ports.CategoryLister
	metrics    *metrics.HTTPServerMetrics

	rateLimitRPS   float64
	rateLimitBurst int
	maxInFlight    int
	queueWait      time.Duration
}

func NewRouter(
	cfg config.Config,
	service ports.QueryService,
	categories ports.CategoryLister,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		service:        service,
		categories:     categories,
		metrics:        httpMetrics,
		rateLimitRPS:   cfg.APIRateLimitRPS,
		rateLimitBurst: cfg.APIRateLimitBurst,
		maxInFlight:    cfg.APIMaxInFlight,
		queueWait:      cfg.APIQueueWait,
	}
}

// Handler assembles the route table and middleware chain. It fails only if
// the embedded OpenAPI document is invalid.
func (rt *Router) Handler() (http.Handler, error) {
	validator, err := newRequestValidator()
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/query", rt.query)
	mux.HandleFunc("/v1/categories", rt.listCategories)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = validator.middleware(mux)
	handler = backpressureMiddleware(handler, rt.maxInFlight, rt.queueWait, rt.onReject)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst, rt.onReject)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("rrr-api", handler)
	}
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler, nil
}

func (rt *Router) onReject(reason string) {
	if rt.metrics != nil {
		rt.metrics.RecordRejected("rrr-api", reason)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) listCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	categories := []domain.Category{}
	if rt.categories != nil {
		categories = append(categories, rt.categories.Categories()...)
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": categories})
}

func (rt *Router) query(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxQueryBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	result, err := rt.service.Query(r.Context(), req.Query)
	if err != nil {
		status := mapErrorToHTTPStatus(err)
		if status >= http.StatusInternalServerError {
			slog.ErrorContext(r.Context(), "rrr_query_failed",
				"request_id", RequestIDFromContext(r.Context()),
				"status", status,
				"error", err,
			)
		}
		writeJSON(w, status, errorResponse{Error: err.Error(), Kind: errorKind(err)})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

