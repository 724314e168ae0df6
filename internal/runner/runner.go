// Package runner executes external tools and reports their outcome.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Mode selects how a command's standard streams are handled.
type Mode int

const (
	// Capture buffers stdout and stderr for the caller to inspect.
	Capture Mode = iota
	// Stream copies stdout and stderr through to the runner's writers while still capturing them.
	Stream
)

// Command describes a single tool invocation.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory. Empty means the current directory.
	Dir  string
	Mode Mode
}

// String renders the command line for logs and messages.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Outcome is the result of a command that was started.
type Outcome struct {
	Command  string        `json:"command"`
	ExitCode int           `json:"exitCode"`
	Stdout   string        `json:"stdout,omitempty"`
	Stderr   string        `json:"stderr,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Success reports whether the command exited zero.
func (o *Outcome) Success() bool {
	return o != nil && o.ExitCode == 0
}

// Diagnostic returns the tool's own error text: stderr, or stdout when stderr is empty.
func (o *Outcome) Diagnostic() string {
	if o == nil {
		return ""
	}
	if s := strings.TrimSpace(o.Stderr); s != "" {
		return s
	}
	return strings.TrimSpace(o.Stdout)
}

// Runner executes commands synchronously.
type Runner interface {
	// Run blocks until the command exits. A non-nil Outcome is returned whenever
	// the process was started, including when it exited non-zero.
	Run(ctx context.Context, cmd Command) (*Outcome, error)
}

// Exec runs commands as local subprocesses.
type Exec struct {
	// Stdout and Stderr receive streamed output in Stream mode. They default to os.Stdout and os.Stderr.
	Stdout io.Writer
	Stderr io.Writer
	// Env, when non-nil, replaces the inherited environment.
	Env []string

	lookPath func(string) (string, error)
}

// NewExec creates an Exec that streams through the process's standard streams.
func NewExec() *Exec {
	return &Exec{Stdout: os.Stdout, Stderr: os.Stderr}
}

func (e *Exec) look(name string) (string, error) {
	if e.lookPath != nil {
		return e.lookPath(name)
	}
	return exec.LookPath(name)
}

// Run implements Runner.
func (e *Exec) Run(ctx context.Context, c Command) (*Outcome, error) {
	logger := log.FromContext(ctx).WithValues("command", c.Name)

	path, err := e.look(c.Name)
	if err != nil {
		return nil, &MissingToolError{Tools: []string{c.Name}}
	}

	cmd := exec.CommandContext(ctx, path, c.Args...)
	cmd.Dir = c.Dir
	if e.Env != nil {
		cmd.Env = e.Env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if c.Mode == Stream {
		cmd.Stdout = io.MultiWriter(&stdout, writerOr(e.Stdout, os.Stdout))
		cmd.Stderr = io.MultiWriter(&stderr, writerOr(e.Stderr, os.Stderr))
	}

	logger.V(1).Info("running command", "args", c.Args)
	start := time.Now()
	runErr := cmd.Run()
	out := &Outcome{
		Command:  c.String(),
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if runErr == nil {
		logger.V(1).Info("command finished", "duration", out.Duration)
		return out, nil
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		out.ExitCode = exitErr.ExitCode()
		logger.V(1).Info("command failed", "exitCode", out.ExitCode, "duration", out.Duration)
		return out, &CommandFailedError{Outcome: out}
	}

	return nil, &StartError{Command: c.String(), Err: runErr}
}

// RequireTools verifies that every named binary is on PATH.
// All missing tools are reported together.
func (e *Exec) RequireTools(names ...string) error {
	var missing []string
	for _, n := range names {
		if _, err := e.look(n); err != nil {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return &MissingToolError{Tools: missing}
	}
	return nil
}

func writerOr(w, fallback io.Writer) io.Writer {
	if w != nil {
		return w
	}
	return fallback
}

// ToolChecker is implemented by runners that can verify tool availability up front.
type ToolChecker interface {
	RequireTools(names ...string) error
}

// RequireTools checks tools through r when it supports it. Runners that cannot
// check are assumed to have every tool.
func RequireTools(r Runner, names ...string) error {
	if tc, ok := r.(ToolChecker); ok {
		return tc.RequireTools(names...)
	}
	return nil
}

// describe summarises a failed outcome with the tool's own diagnostic text.
func describe(out *Outcome) string {
	if out == nil {
		return ""
	}
	if d := out.Diagnostic(); d != "" {
		return fmt.Sprintf("%s: exit status %d: %s", out.Command, out.ExitCode, d)
	}
	return fmt.Sprintf("%s: exit status %d", out.Command, out.ExitCode)
}
