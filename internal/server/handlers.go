// Package server exposes the agent over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"sigs.k8s.io/controller-runtime/pkg/log"
	crmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"

	agentv1alpha1 "github.com/camcast3/releasegate/api/v1alpha1"
	"github.com/camcast3/releasegate/internal/agent"
	"github.com/camcast3/releasegate/internal/contract"
	"github.com/camcast3/releasegate/internal/metrics"
)

// RequestIDHeader carries the request id on requests and responses.
const RequestIDHeader = "X-Request-ID"

// Executor runs agent tasks.
type Executor interface {
	Run(ctx context.Context, task agent.Task) (*agentv1alpha1.ExecuteResponse, error)
}

// Handlers serves the agent API.
type Handlers struct {
	Agent    Executor
	State    *ReadinessState
	Contract *contract.Contract
}

// Router returns the routed handler with request id and recovery middleware.
func (h *Handlers) Router(ctx context.Context) http.Handler {
	r := mux.NewRouter()
	r.Use(requestIDMiddleware(log.FromContext(ctx)))
	r.Use(recoveryMiddleware)

	r.HandleFunc("/health/alive", AliveHandler).Methods(http.MethodGet)
	r.HandleFunc("/health/ready", ReadyHandler(h.State)).Methods(http.MethodGet)
	r.HandleFunc("/execute", h.Execute).Methods(http.MethodPost)
	r.HandleFunc("/openapi.yaml", openAPIHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(crmetrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	return r
}

// Execute handles POST /execute. Bodies that do not match the agent API are
// answered with 422, agent failures with 500.
func (h *Handlers) Execute(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	status := h.execute(w, r)
	metrics.ExecuteRequests.WithLabelValues(strconv.Itoa(status)).Inc()
	metrics.ExecuteLatency.Observe(time.Since(start).Seconds())
}

func (h *Handlers) execute(w http.ResponseWriter, r *http.Request) int {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	if h.Contract != nil {
		if err := h.Contract.ValidateRequest(ctx, r); err != nil {
			return writeError(w, http.StatusUnprocessableEntity, err.Error())
		}
	}

	var req agentv1alpha1.ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return writeError(w, http.StatusUnprocessableEntity, "invalid request body: "+err.Error())
	}
	if req.Params == nil {
		req.Params = map[string]any{}
	}

	resp, err := h.Agent.Run(ctx, agent.Task{Query: req.Query, Params: req.Params})
	if err != nil {
		logger.Error(err, "execute failed")
		return writeError(w, http.StatusInternalServerError, err.Error())
	}
	return writeJSON(w, http.StatusOK, resp)
}

func openAPIHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.Write(contract.Document())
}

func requestIDMiddleware(base logr.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqID := r.Header.Get(RequestIDHeader)
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, reqID)
			ctx := log.IntoContext(r.Context(), base.WithValues("requestId", reqID, "path", r.URL.Path))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				log.FromContext(r.Context()).Error(errors.New("panic"), "handler panicked", "value", v)
				writeError(w, http.StatusInternalServerError, "internal error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) int {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
	return status
}

func writeError(w http.ResponseWriter, status int, detail string) int {
	return writeJSON(w, status, agentv1alpha1.ErrorResponse{Detail: detail})
}
