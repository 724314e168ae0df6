// Package v1alpha1 holds the wire types of the agent HTTP API.
package v1alpha1

// ExecuteRequest is the body of POST /execute.
type ExecuteRequest struct {
	// Query is the user request. Must not be empty.
	Query string `json:"query"`

	// Params are passed to the agent unchanged.
	// +optional
	Params map[string]any `json:"params,omitempty"`
}

// ExecuteResponse is the result of a single agent execution.
type ExecuteResponse struct {
	Answer string `json:"answer"`

	// Sources lists the documents the answer cites.
	Sources []Source `json:"sources"`

	// Tools lists the tool invocations made while answering.
	Tools []ToolCall `json:"tools"`

	// LatencyMs is the time spent producing the answer, in milliseconds.
	LatencyMs int64 `json:"latency_ms"`
}

// Source is a cited document.
type Source struct {
	Title string `json:"title,omitempty"`
	URI   string `json:"uri"`
}

// ToolCall records one tool invocation.
type ToolCall struct {
	Name   string `json:"name"`
	Status string `json:"status,omitempty"`
}

// ErrorResponse is returned with non-2xx statuses.
type ErrorResponse struct {
	Detail string `json:"detail"`
}
