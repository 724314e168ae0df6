package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/camcast3/releasegate/internal/failure"
	"github.com/camcast3/releasegate/internal/pipeline"
)

func passingReport() *pipeline.Report {
	return &pipeline.Report{
		Pipeline:  "preflight",
		RunID:     "run-1",
		Succeeded: true,
		Total:     2,
		Passed:    2,
		Stages: []pipeline.StageResult{
			{Name: "tools", Status: pipeline.StatusPassed, Duration: 12 * time.Millisecond},
			{Name: "crds", Status: pipeline.StatusPassed, Duration: 40 * time.Millisecond},
		},
	}
}

func haltedReport() *pipeline.Report {
	return &pipeline.Report{
		Pipeline: "preflight",
		RunID:    "run-2",
		Total:    3,
		Passed:   1,
		Stages: []pipeline.StageResult{
			{Name: "crds", Status: pipeline.StatusPassed},
			{Name: "secrets", Status: pipeline.StatusFailed, Kind: failure.ResourceMissing, Message: "missing secrets in namespace ai: [db-cred]"},
			{Name: "artifacts", Status: pipeline.StatusSkipped},
		},
		Failure: &pipeline.FailureView{Stage: "secrets", Kind: failure.ResourceMissing, Message: "missing secrets in namespace ai: [db-cred]"},
	}
}

func TestPrinter_Prefixes(t *testing.T) {
	var buf bytes.Buffer
	p := &Printer{W: &buf}

	p.Step("checking %s", "crds")
	p.Info("namespace %q does not exist yet", "ai")
	p.OK("preflight passed")
	p.Fail("boom")

	want := "[*] checking crds\n" +
		"[i] namespace \"ai\" does not exist yet\n" +
		"[OK] preflight passed\n" +
		"[X] boom\n"
	if got := buf.String(); got != want {
		t.Errorf("unexpected output:\n%s\nwant:\n%s", got, want)
	}
}

func TestPrinter_NilIsSilent(t *testing.T) {
	var p *Printer
	p.OK("nothing happens")
}

func TestPrinter_Hooks(t *testing.T) {
	var buf bytes.Buffer
	hooks := (&Printer{W: &buf}).Hooks()

	hooks.BeforeStage("secrets")
	hooks.AfterStage(pipeline.StageResult{Name: "secrets", Status: pipeline.StatusPassed})
	hooks.BeforeStage("artifacts")
	hooks.AfterStage(pipeline.StageResult{Name: "artifacts", Status: pipeline.StatusFailed, Message: "unreachable"})

	want := "[*] secrets\n[*] artifacts\n[X] artifacts: unreachable\n"
	if got := buf.String(); got != want {
		t.Errorf("unexpected output:\n%s\nwant:\n%s", got, want)
	}
}

func TestFormatText_AllPass(t *testing.T) {
	var buf bytes.Buffer
	FormatText(&buf, passingReport())
	out := buf.String()

	if !strings.Contains(out, "PREFLIGHT RESULTS (run run-1)") {
		t.Error("expected header in output")
	}
	if !strings.Contains(out, "[PASS] tools (12ms)") {
		t.Errorf("expected [PASS] tools in output, got:\n%s", out)
	}
	if strings.Contains(out, "[FAIL]") {
		t.Error("did not expect [FAIL] in output")
	}
	if !strings.Contains(out, "Stages: 2/2 passed") {
		t.Error("expected 2/2 passed in output")
	}
	if strings.Contains(out, "Halted at") {
		t.Error("did not expect a halt line")
	}
}

func TestFormatText_Halted(t *testing.T) {
	var buf bytes.Buffer
	FormatText(&buf, haltedReport())
	out := buf.String()

	for _, want := range []string{
		"[FAIL] secrets",
		"missing secrets in namespace ai: [db-cred]",
		"[SKIP] artifacts\n",
		"Stages: 1/3 passed",
		"Halted at: secrets (ResourceMissing)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestFormatJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := FormatJSON(&buf, haltedReport()); err != nil {
		t.Fatalf("FormatJSON error: %v", err)
	}
	if !strings.Contains(buf.String(), "\n  ") {
		t.Error("expected indented JSON output")
	}

	var parsed pipeline.Report
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("failed to parse JSON output: %v", err)
	}
	if parsed.Failure == nil || parsed.Failure.Kind != failure.ResourceMissing {
		t.Errorf("expected ResourceMissing failure, got %+v", parsed.Failure)
	}
	if len(parsed.Stages) != 3 || parsed.Stages[2].Status != pipeline.StatusSkipped {
		t.Errorf("unexpected stages %+v", parsed.Stages)
	}
}

func TestFormatYAML(t *testing.T) {
	var buf bytes.Buffer
	if err := FormatYAML(&buf, haltedReport()); err != nil {
		t.Fatalf("FormatYAML error: %v", err)
	}

	var parsed map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("failed to parse YAML output: %v", err)
	}
	if parsed["pipeline"] != "preflight" {
		t.Errorf("pipeline = %v", parsed["pipeline"])
	}
	f, ok := parsed["failure"].(map[string]any)
	if !ok || f["stage"] != "secrets" {
		t.Errorf("unexpected failure block %v", parsed["failure"])
	}
}

func TestWrite_SelectsFormat(t *testing.T) {
	tests := []struct {
		format string
		prefix string
	}{
		{FormatTextName, "PREFLIGHT RESULTS"},
		{FormatJSONName, "{"},
		{FormatYAMLName, "pipeline: preflight"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			if err := Write(&buf, tt.format, passingReport()); err != nil {
				t.Fatalf("Write error: %v", err)
			}
			if !strings.HasPrefix(buf.String(), tt.prefix) {
				t.Errorf("output starts with %q, want %q", buf.String()[:10], tt.prefix)
			}
		})
	}
}

func TestValidFormat(t *testing.T) {
	for _, f := range []string{"text", "json", "yaml"} {
		if !ValidFormat(f) {
			t.Errorf("%s should be valid", f)
		}
	}
	if ValidFormat("xml") {
		t.Error("xml should not be valid")
	}
}
