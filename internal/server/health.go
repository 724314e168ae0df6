package server

import (
	"net/http"
	"sync"

	agentv1alpha1 "github.com/camcast3/releasegate/api/v1alpha1"
)

// ReadinessState holds the latest state of each agent dependency.
type ReadinessState struct {
	mu   sync.RWMutex
	deps map[string]*DependencyState
}

// DependencyState represents readiness for a single dependency.
type DependencyState struct {
	Ready   bool   `json:"ready"`
	Message string `json:"message,omitempty"`
}

// NewReadinessState creates a new ReadinessState store.
func NewReadinessState() *ReadinessState {
	return &ReadinessState{
		deps: make(map[string]*DependencyState),
	}
}

// Update sets the state of a named dependency.
func (rs *ReadinessState) Update(name string, ready bool, message string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.deps[name] = &DependencyState{Ready: ready, Message: message}
}

// Remove stops tracking a dependency.
func (rs *ReadinessState) Remove(name string) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	delete(rs.deps, name)
}

// IsReady returns true once at least one dependency is tracked and all are ready.
func (rs *ReadinessState) IsReady() bool {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	if len(rs.deps) == 0 {
		return false
	}
	for _, d := range rs.deps {
		if !d.Ready {
			return false
		}
	}
	return true
}

// snapshot returns a copy of the current state for serialization.
func (rs *ReadinessState) snapshot() map[string]DependencyState {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	snap := make(map[string]DependencyState, len(rs.deps))
	for k, v := range rs.deps {
		snap[k] = *v
	}
	return snap
}

type readyResponse struct {
	Status       agentv1alpha1.HealthState  `json:"status"`
	Dependencies map[string]DependencyState `json:"dependencies,omitempty"`
}

// AliveHandler answers the liveness probe.
func AliveHandler(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, agentv1alpha1.HealthStatus{Status: agentv1alpha1.HealthAlive})
}

// ReadyHandler returns an HTTP handler for the readiness endpoint.
// Returns 200 with status "ready" once every dependency is ready, 503 with
// status "starting" otherwise.
func ReadyHandler(state *ReadinessState) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := readyResponse{Status: agentv1alpha1.HealthStarting}
		if r.URL.Query().Get("verbose") != "" {
			resp.Dependencies = state.snapshot()
		}
		if !state.IsReady() {
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp.Status = agentv1alpha1.HealthReady
		writeJSON(w, http.StatusOK, resp)
	}
}
