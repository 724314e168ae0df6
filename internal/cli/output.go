package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/camcast3/releasegate/internal/pipeline"
)

// Output formats accepted by -output.
const (
	FormatTextName = "text"
	FormatJSONName = "json"
	FormatYAMLName = "yaml"
)

// ValidFormat reports whether name is a supported output format.
func ValidFormat(name string) bool {
	switch name {
	case FormatTextName, FormatJSONName, FormatYAMLName:
		return true
	}
	return false
}

// Printer writes the human-facing progress lines of a pipeline run.
type Printer struct {
	W io.Writer
}

// Step announces an action about to run.
func (p *Printer) Step(format string, args ...any) { p.line("[*]", format, args...) }

// Info reports something noteworthy that does not fail the run.
func (p *Printer) Info(format string, args ...any) { p.line("[i]", format, args...) }

// OK reports a success.
func (p *Printer) OK(format string, args ...any) { p.line("[OK]", format, args...) }

// Fail reports a failure.
func (p *Printer) Fail(format string, args ...any) { p.line("[X]", format, args...) }

func (p *Printer) line(prefix, format string, args ...any) {
	if p == nil || p.W == nil {
		return
	}
	fmt.Fprintf(p.W, "%s %s\n", prefix, fmt.Sprintf(format, args...))
}

// Hooks returns pipeline hooks that print a line for every stage start and result.
func (p *Printer) Hooks() pipeline.Hooks {
	return pipeline.Hooks{
		BeforeStage: func(name string) { p.Step("%s", name) },
		AfterStage: func(r pipeline.StageResult) {
			if r.Status == pipeline.StatusFailed {
				p.Fail("%s: %s", r.Name, r.Message)
			}
		},
	}
}

// Write renders the report in the requested format.
func Write(w io.Writer, format string, report *pipeline.Report) error {
	switch format {
	case FormatJSONName:
		return FormatJSON(w, report)
	case FormatYAMLName:
		return FormatYAML(w, report)
	default:
		FormatText(w, report)
		return nil
	}
}

// FormatText writes a human-readable stage summary to the writer.
func FormatText(w io.Writer, report *pipeline.Report) {
	fmt.Fprintf(w, "%s RESULTS (run %s)\n", strings.ToUpper(report.Pipeline), report.RunID)
	fmt.Fprintln(w, strings.Repeat("=", 25))

	for _, s := range report.Stages {
		marker := "[PASS]"
		switch s.Status {
		case pipeline.StatusFailed:
			marker = "[FAIL]"
		case pipeline.StatusSkipped:
			marker = "[SKIP]"
		}
		if s.Status == pipeline.StatusSkipped {
			fmt.Fprintf(w, "%s %s\n", marker, s.Name)
			continue
		}
		fmt.Fprintf(w, "%s %s (%s)\n", marker, s.Name, s.Duration.Round(time.Millisecond))
		if s.Message != "" {
			fmt.Fprintf(w, "       %s\n", s.Message)
		}
	}

	fmt.Fprintln(w, strings.Repeat("-", 25))
	fmt.Fprintf(w, "Stages: %d/%d passed\n", report.Passed, report.Total)
	if report.Failure != nil {
		fmt.Fprintf(w, "Halted at: %s (%s)\n", report.Failure.Stage, report.Failure.Kind)
	}
}

// FormatJSON writes the report as indented JSON to the writer.
func FormatJSON(w io.Writer, report *pipeline.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// FormatYAML writes the report as YAML to the writer.
func FormatYAML(w io.Writer, report *pipeline.Report) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return err
	}
	return enc.Close()
}
