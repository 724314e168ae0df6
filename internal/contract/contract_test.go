package contract

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func load(t *testing.T) *Contract {
	t.Helper()
	c, err := Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return c
}

func jsonHeader() http.Header {
	return http.Header{"Content-Type": []string{"application/json"}}
}

func TestLoad(t *testing.T) {
	c := load(t)
	if c.Version() != "1.0.0" {
		t.Errorf("Version = %q", c.Version())
	}
	if !strings.Contains(string(Document()), "/execute") {
		t.Error("document should describe /execute")
	}
}

func TestValidateRequest(t *testing.T) {
	c := load(t)

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"query only", `{"query":"ping"}`, false},
		{"query and params", `{"query":"ping","params":{"k":1}}`, false},
		{"null params", `{"query":"ping","params":null}`, false},
		{"empty query", `{"query":""}`, true},
		{"missing query", `{"params":{}}`, true},
		{"query not a string", `{"query":42}`, true},
		{"not json", `ping`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "http://agent.local/execute", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			err := c.ValidateRequest(context.Background(), req)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateRequest() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				var ve *ViolationError
				if !errors.As(err, &ve) || ve.Path != "/execute" {
					t.Errorf("expected ViolationError for /execute, got %v", err)
				}
			}
		})
	}
}

func TestValidateRequest_BodyStillReadable(t *testing.T) {
	c := load(t)
	req := httptest.NewRequest(http.MethodPost, "/execute", strings.NewReader(`{"query":"ping"}`))
	req.Header.Set("Content-Type", "application/json")

	if err := c.ValidateRequest(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	body, err := io.ReadAll(req.Body)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != `{"query":"ping"}` {
		t.Errorf("body = %q", body)
	}
}

func TestValidateRequest_UnknownRoute(t *testing.T) {
	c := load(t)
	req := httptest.NewRequest(http.MethodGet, "/nope", nil)

	if err := c.ValidateRequest(context.Background(), req); err == nil {
		t.Fatal("expected error for an undocumented route")
	}
}

func TestValidateResponse(t *testing.T) {
	c := load(t)

	tests := []struct {
		name    string
		status  int
		body    string
		wantErr bool
	}{
		{"full answer", 200, `{"answer":"OK","sources":[],"tools":[],"latency_ms":1}`, false},
		{"sources of any shape", 200, `{"answer":"OK","sources":["doc-1",{"uri":"x"}],"tools":[],"latency_ms":0}`, false},
		{"missing answer", 200, `{"sources":[],"tools":[],"latency_ms":1}`, true},
		{"sources not a list", 200, `{"answer":"OK","sources":"none","tools":[],"latency_ms":1}`, true},
		{"negative latency", 200, `{"answer":"OK","sources":[],"tools":[],"latency_ms":-1}`, true},
		{"undeclared success uses the 200 schema", 201, `{"answer":"OK","sources":[],"tools":[],"latency_ms":1}`, false},
		{"undeclared success still checks the body", 201, `{"sources":[],"tools":[],"latency_ms":1}`, true},
		{"undeclared error status", 418, `{"detail":"teapot"}`, true},
		{"documented error", 500, `{"detail":"boom"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "https://agent.example.com/execute", nil)
			req.Header.Set("Content-Type", "application/json")

			err := c.ValidateResponse(context.Background(), req, tt.status, jsonHeader(), []byte(tt.body))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateResponse() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateResponse_Health(t *testing.T) {
	c := load(t)
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)

	if err := c.ValidateResponse(context.Background(), req, 503, jsonHeader(), []byte(`{"status":"starting"}`)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := c.ValidateResponse(context.Background(), req, 200, jsonHeader(), []byte(`{}`)); err == nil {
		t.Error("expected error for a body without status")
	}
}
