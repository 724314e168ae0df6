// Package pipeline runs a fixed sequence of stages, halting at the first failure.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/camcast3/releasegate/internal/failure"
	"github.com/camcast3/releasegate/internal/metrics"
)

// Stage is one ordered step of a pipeline.
type Stage interface {
	// Name returns the stage identifier used in reports and metrics (e.g. "crds", "rollout").
	Name() string

	// Run executes the stage. A non-nil error halts the pipeline.
	Run(ctx context.Context) error
}

// StageFunc adapts a function to the Stage interface.
type StageFunc struct {
	StageName string
	Fn        func(ctx context.Context) error
}

func (s StageFunc) Name() string                  { return s.StageName }
func (s StageFunc) Run(ctx context.Context) error { return s.Fn(ctx) }

// Status is the outcome of a single stage.
type Status string

const (
	StatusPassed  Status = "Passed"
	StatusFailed  Status = "Failed"
	StatusSkipped Status = "Skipped"
)

// StageResult holds a single stage's outcome.
type StageResult struct {
	Name     string        `json:"name" yaml:"name"`
	Status   Status        `json:"status" yaml:"status"`
	Message  string        `json:"message,omitempty" yaml:"message,omitempty"`
	Kind     failure.Kind  `json:"kind,omitempty" yaml:"kind,omitempty"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Report holds the aggregate result of a pipeline run.
type Report struct {
	Pipeline  string        `json:"pipeline" yaml:"pipeline"`
	RunID     string        `json:"runId" yaml:"runId"`
	Succeeded bool          `json:"succeeded" yaml:"succeeded"`
	Total     int           `json:"total" yaml:"total"`
	Passed    int           `json:"passed" yaml:"passed"`
	Stages    []StageResult `json:"stages" yaml:"stages"`
	// Failure describes the stage that halted the run, nil on success.
	Failure  *FailureView  `json:"failure,omitempty" yaml:"failure,omitempty"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// FailureView summarises the halting error for reports.
type FailureView struct {
	Stage   string       `json:"stage" yaml:"stage"`
	Kind    failure.Kind `json:"kind" yaml:"kind"`
	Message string       `json:"message" yaml:"message"`
}

// StageError wraps the error that halted a pipeline with the stage it came from.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Hooks observe stage execution. Any field may be nil.
type Hooks struct {
	BeforeStage func(name string)
	AfterStage  func(result StageResult)
}

// Run executes stages in order. The first failing stage halts the run: it is
// reported as failed, every later stage as skipped, and its error is returned
// wrapped in a *StageError.
func Run(ctx context.Context, name string, stages []Stage, hooks Hooks) (*Report, error) {
	runID := uuid.NewString()
	logger := log.FromContext(ctx).WithValues("pipeline", name, "runId", runID)
	ctx = log.IntoContext(ctx, logger)

	report := &Report{Pipeline: name, RunID: runID, Total: len(stages)}
	start := time.Now()

	var haltErr error
	for _, s := range stages {
		if haltErr != nil {
			report.Stages = append(report.Stages, StageResult{Name: s.Name(), Status: StatusSkipped})
			continue
		}

		if hooks.BeforeStage != nil {
			hooks.BeforeStage(s.Name())
		}
		logger.Info("stage started", "stage", s.Name())

		stageStart := time.Now()
		err := s.Run(ctx)
		elapsed := time.Since(stageStart)
		metrics.StageDuration.WithLabelValues(name, s.Name()).Observe(elapsed.Seconds())

		res := StageResult{Name: s.Name(), Status: StatusPassed, Duration: elapsed}
		if err != nil {
			res.Status = StatusFailed
			res.Message = err.Error()
			res.Kind = failure.KindOf(err)
			report.Failure = &FailureView{Stage: s.Name(), Kind: res.Kind, Message: res.Message}
			haltErr = &StageError{Stage: s.Name(), Err: err}
			metrics.StageResults.WithLabelValues(name, s.Name(), "failed", string(res.Kind)).Inc()
			logger.Error(err, "stage failed", "stage", s.Name(), "kind", res.Kind, "duration", elapsed)
		} else {
			report.Passed++
			metrics.StageResults.WithLabelValues(name, s.Name(), "passed", "").Inc()
			logger.Info("stage passed", "stage", s.Name(), "duration", elapsed)
		}
		report.Stages = append(report.Stages, res)

		if hooks.AfterStage != nil {
			hooks.AfterStage(res)
		}
	}

	report.Duration = time.Since(start)
	report.Succeeded = haltErr == nil
	if report.Succeeded {
		metrics.PipelineSucceeded.WithLabelValues(name).Set(1)
	} else {
		metrics.PipelineSucceeded.WithLabelValues(name).Set(0)
	}
	return report, haltErr
}

// Halted returns the report of a run stopped by err before its first stage.
// Every stage is reported skipped and the failure is attributed to at.
func Halted(name string, stages []Stage, at string, err error) *Report {
	report := &Report{
		Pipeline: name,
		RunID:    uuid.NewString(),
		Total:    len(stages),
		Failure:  &FailureView{Stage: at, Kind: failure.KindOf(err), Message: err.Error()},
	}
	for _, s := range stages {
		report.Stages = append(report.Stages, StageResult{Name: s.Name(), Status: StatusSkipped})
	}
	metrics.PipelineSucceeded.WithLabelValues(name).Set(0)
	return report
}
