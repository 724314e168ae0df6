// Package smoke sends one functional request to a deployed agent.
package smoke

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"

	agentv1alpha1 "github.com/camcast3/releasegate/api/v1alpha1"
	"github.com/camcast3/releasegate/internal/contract"
	"github.com/camcast3/releasegate/internal/failure"
)

// DefaultTimeout bounds the whole smoke request.
const DefaultTimeout = 15 * time.Second

const maxBodyBytes = 1 << 20

// FailedError reports an execute call that did not succeed.
type FailedError struct {
	URL    string
	Status int
	Body   string
	// Err is the transport or contract error, if any.
	Err error
}

func (e *FailedError) Error() string {
	switch {
	case e.Status == 0:
		return fmt.Sprintf("execute failed: POST %s: %v", e.URL, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("execute failed: %d %s: %v", e.Status, e.Body, e.Err)
	default:
		return fmt.Sprintf("execute failed: %d %s", e.Status, e.Body)
	}
}

func (e *FailedError) Unwrap() error { return e.Err }

// FailureKind implements failure.Classified.
func (e *FailedError) FailureKind() failure.Kind { return failure.SmokeTestFailed }

// Tester posts a fixed query to the execute endpoint.
type Tester struct {
	Client   *http.Client
	Contract *contract.Contract
	Query    string
	Timeout  time.Duration
}

// Execute posts the query to BASE/execute and returns the decoded answer.
// Non-2xx responses and answers that do not match the agent API are *FailedError.
// A 2xx answer without a body passes with an empty result.
func (t *Tester) Execute(ctx context.Context, baseURL string) (map[string]any, error) {
	logger := log.FromContext(ctx)

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := strings.TrimRight(baseURL, "/") + "/execute"
	payload, err := json.Marshal(agentv1alpha1.ExecuteRequest{Query: t.Query})
	if err != nil {
		return nil, fmt.Errorf("encoding execute request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("creating execute request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := t.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, &FailedError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FailedError{URL: url, Status: resp.StatusCode, Err: fmt.Errorf("reading body: %w", err)}
	}
	logger.V(1).Info("execute answered", "url", url, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FailedError{URL: url, Status: resp.StatusCode, Body: string(body)}
	}

	if len(body) == 0 {
		logger.Info("execute answered without a body", "url", url, "status", resp.StatusCode)
		return map[string]any{}, nil
	}

	if t.Contract != nil {
		if err := t.Contract.ValidateResponse(ctx, req, resp.StatusCode, resp.Header, body); err != nil {
			return nil, &FailedError{URL: url, Status: resp.StatusCode, Body: string(body), Err: err}
		}
	}

	var out map[string]any
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &FailedError{URL: url, Status: resp.StatusCode, Body: string(body), Err: fmt.Errorf("decoding answer: %w", err)}
	}
	return out, nil
}
