// Package probe polls HTTP endpoints until they report a wanted state.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/camcast3/releasegate/internal/failure"
)

const (
	// DefaultInterval is the pause between two polling attempts.
	DefaultInterval = 3 * time.Second

	// DefaultRequestTimeout bounds a single polling attempt.
	DefaultRequestTimeout = 5 * time.Second

	maxBodyBytes = 1 << 20
)

// TimeoutError is returned when no attempt matched before the deadline.
type TimeoutError struct {
	URL      string
	Timeout  time.Duration
	Attempts int
	// LastErr is the reason the final attempt did not match, if any.
	LastErr error
}

func (e *TimeoutError) Error() string {
	msg := fmt.Sprintf("not ready: %s (waited %s, %d attempts)", e.URL, e.Timeout, e.Attempts)
	if e.LastErr != nil {
		msg += fmt.Sprintf(": last attempt: %v", e.LastErr)
	}
	return msg
}

// FailureKind implements failure.Classified.
func (e *TimeoutError) FailureKind() failure.Kind { return failure.Timeout }

// Prober polls endpoints. The zero value is usable.
type Prober struct {
	// Client performs the requests. Defaults to a client with DefaultRequestTimeout.
	Client *http.Client
	// Interval between attempts. Defaults to DefaultInterval.
	Interval time.Duration
}

// New creates a Prober polling every interval.
func New(interval time.Duration) *Prober {
	return &Prober{
		Client:   &http.Client{Timeout: DefaultRequestTimeout},
		Interval: interval,
	}
}

// WaitReady polls url until its JSON body has field set to expected, or until
// timeout elapses. A nil expected accepts any value as long as the field is present.
// Network errors, non-2xx responses and unparseable bodies only mean "not yet".
// On success the decoded body of the matching response is returned.
func (p *Prober) WaitReady(ctx context.Context, url, field string, expected *string, timeout time.Duration) (map[string]any, error) {
	logger := log.FromContext(ctx).WithValues("url", url)

	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	deadline := time.Now().Add(timeout)
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	attempts := 0
	var lastErr error
	for {
		attempts++
		body, err := p.attempt(ctx, url, deadline)
		if err == nil {
			err = match(body, field, expected)
		}
		if err == nil {
			logger.V(1).Info("endpoint ready", "attempts", attempts)
			return body, nil
		}
		lastErr = err
		logger.V(1).Info("endpoint not ready", "attempt", attempts, "reason", err.Error())

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			return nil, &TimeoutError{URL: url, Timeout: timeout, Attempts: attempts, LastErr: lastErr}
		case <-time.After(interval):
		}
	}
}

// attempt performs one GET and decodes the JSON object it returns.
func (p *Prober) attempt(ctx context.Context, url string, deadline time.Time) (map[string]any, error) {
	client := p.Client
	if client == nil {
		client = &http.Client{Timeout: DefaultRequestTimeout}
	}

	reqCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var body map[string]any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("decoding body: %w", err)
	}
	return body, nil
}

func match(body map[string]any, field string, expected *string) error {
	v, ok := body[field]
	if !ok {
		return fmt.Errorf("field %q absent", field)
	}
	if expected == nil {
		return nil
	}
	if got := fmt.Sprint(v); got != *expected {
		return fmt.Errorf("field %q = %q, want %q", field, got, *expected)
	}
	return nil
}
