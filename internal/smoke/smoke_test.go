package smoke

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/camcast3/releasegate/internal/contract"
	"github.com/camcast3/releasegate/internal/failure"
)

func newTester(t *testing.T) *Tester {
	t.Helper()
	c, err := contract.Load(context.Background())
	if err != nil {
		t.Fatalf("loading contract: %v", err)
	}
	return &Tester{Contract: c, Query: "ping", Timeout: 2 * time.Second}
}

func agent(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/execute" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req map[string]any
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req["query"] != "ping" {
			t.Errorf("unexpected payload %v (%v)", req, err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func TestExecute_Success(t *testing.T) {
	srv := agent(t, http.StatusOK, `{"answer":"OK: received query='ping'","sources":[],"tools":[],"latency_ms":1}`)
	defer srv.Close()

	out, err := newTester(t).Execute(context.Background(), srv.URL+"/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out["answer"] != "OK: received query='ping'" {
		t.Errorf("answer = %v", out["answer"])
	}
}

func TestExecute_ServerErrorCarriesStatusAndBody(t *testing.T) {
	srv := agent(t, http.StatusInternalServerError, `{"detail":"model endpoint unreachable"}`)
	defer srv.Close()

	_, err := newTester(t).Execute(context.Background(), srv.URL)
	if failure.KindOf(err) != failure.SmokeTestFailed {
		t.Fatalf("expected SmokeTestFailed, got %v", err)
	}
	var fe *FailedError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FailedError, got %T", err)
	}
	if fe.Status != 500 || fe.Body != `{"detail":"model endpoint unreachable"}` {
		t.Errorf("unexpected failure %+v", fe)
	}
	if !strings.Contains(err.Error(), "500") || !strings.Contains(err.Error(), "model endpoint unreachable") {
		t.Errorf("message should carry status and body: %q", err.Error())
	}
}

func TestExecute_ContractViolation(t *testing.T) {
	srv := agent(t, http.StatusOK, `{"answer":"OK"}`)
	defer srv.Close()

	_, err := newTester(t).Execute(context.Background(), srv.URL)
	var fe *FailedError
	if !errors.As(err, &fe) || fe.Status != 200 {
		t.Fatalf("expected FailedError with status 200, got %v", err)
	}
	var ve *contract.ViolationError
	if !errors.As(err, &ve) {
		t.Errorf("expected the contract violation to be wrapped, got %v", err)
	}
	if failure.KindOf(err) != failure.SmokeTestFailed {
		t.Errorf("KindOf = %q", failure.KindOf(err))
	}
}

func TestExecute_WithoutContractAcceptsAnyJSON(t *testing.T) {
	srv := agent(t, http.StatusOK, `{"answer":"OK"}`)
	defer srv.Close()

	tester := &Tester{Query: "ping"}
	if _, err := tester.Execute(context.Background(), srv.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestExecute_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newTester(t).Execute(context.Background(), url)
	var fe *FailedError
	if !errors.As(err, &fe) || fe.Status != 0 || fe.Err == nil {
		t.Fatalf("expected transport FailedError, got %v", err)
	}
	if failure.KindOf(err) != failure.SmokeTestFailed {
		t.Errorf("KindOf = %q", failure.KindOf(err))
	}
}

func TestExecute_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	tester := newTester(t)
	tester.Timeout = 50 * time.Millisecond

	start := time.Now()
	_, err := tester.Execute(context.Background(), srv.URL)
	var fe *FailedError
	if !errors.As(err, &fe) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected a FailedError wrapping the deadline, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("timeout not enforced, took %s", time.Since(start))
	}
}

func TestExecute_AnySuccessStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"created with an answer", http.StatusCreated, `{"answer":"OK","sources":[],"tools":[],"latency_ms":1}`},
		{"accepted without a body", http.StatusAccepted, ""},
		{"no content", http.StatusNoContent, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := agent(t, tt.status, tt.body)
			defer srv.Close()

			if _, err := newTester(t).Execute(context.Background(), srv.URL); err != nil {
				t.Errorf("a %d answer must pass, got %v", tt.status, err)
			}
		})
	}
}

func TestExecute_SuccessStatusWithBadBody(t *testing.T) {
	srv := agent(t, http.StatusCreated, `{"sources":[],"tools":[],"latency_ms":1}`)
	defer srv.Close()

	_, err := newTester(t).Execute(context.Background(), srv.URL)
	if failure.KindOf(err) != failure.SmokeTestFailed {
		t.Fatalf("expected SmokeTestFailed, got %v", err)
	}
}
