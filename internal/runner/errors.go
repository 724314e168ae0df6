package runner

import (
	"fmt"
	"strings"

	"github.com/camcast3/releasegate/internal/failure"
)

// MissingToolError reports binaries that could not be found on PATH.
type MissingToolError struct {
	Tools []string
}

func (e *MissingToolError) Error() string {
	return fmt.Sprintf("required binary not found: %s", strings.Join(e.Tools, ", "))
}

// FailureKind implements failure.Classified.
func (e *MissingToolError) FailureKind() failure.Kind { return failure.MissingTool }

// CommandFailedError reports a command that ran and exited non-zero.
type CommandFailedError struct {
	Outcome *Outcome
}

func (e *CommandFailedError) Error() string {
	return describe(e.Outcome)
}

// FailureKind implements failure.Classified.
func (e *CommandFailedError) FailureKind() failure.Kind { return failure.CommandFailed }

// StartError reports a command the operating system refused to start.
type StartError struct {
	Command string
	Err     error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("starting %s: %v", e.Command, e.Err)
}

func (e *StartError) Unwrap() error { return e.Err }

// FailureKind implements failure.Classified.
func (e *StartError) FailureKind() failure.Kind { return failure.CommandFailed }
