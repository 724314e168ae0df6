package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStageMetricsRegistered(t *testing.T) {
	StageResults.WithLabelValues("preflight", "tools", "passed", "").Inc()
	if got := testutil.ToFloat64(StageResults.WithLabelValues("preflight", "tools", "passed", "")); got < 1 {
		t.Errorf("expected counter >= 1, got %v", got)
	}

	PipelineSucceeded.WithLabelValues("deploy").Set(1)
	if got := testutil.ToFloat64(PipelineSucceeded.WithLabelValues("deploy")); got != 1 {
		t.Errorf("expected gauge = 1, got %v", got)
	}
}

func TestPush(t *testing.T) {
	var gotPath, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	PipelineSucceeded.WithLabelValues("preflight").Set(0)
	if err := Push(context.Background(), srv.URL, "preflight"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/metrics/job/releasegate_preflight" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody == "" {
		t.Error("expected a non-empty push body")
	}
}

func TestPush_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := Push(context.Background(), srv.URL, "deploy")
	if err == nil || !strings.Contains(err.Error(), srv.URL) {
		t.Fatalf("expected error naming the gateway, got %v", err)
	}
}
