// Package runnertest provides a scripted runner.Runner for tests.
package runnertest

import (
	"context"
	"strings"
	"sync"

	"github.com/camcast3/releasegate/internal/runner"
)

// Response is the scripted result for a matching command.
type Response struct {
	ExitCode int
	Stdout   string
	Stderr   string
	// Err, when set, is returned as-is instead of a CommandFailedError.
	Err error
}

type rule struct {
	prefix string
	resp   Response
}

// Fake records every command and answers from scripted rules.
// Rules match on the command line prefix; the most recently added match wins.
// Commands with no matching rule succeed with empty output.
type Fake struct {
	mu      sync.Mutex
	rules   []rule
	calls   []runner.Command
	missing map[string]bool
}

// New creates an empty Fake.
func New() *Fake {
	return &Fake{missing: map[string]bool{}}
}

// On scripts the response for commands whose line starts with prefix.
func (f *Fake) On(prefix string, resp Response) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = append(f.rules, rule{prefix: prefix, resp: resp})
	return f
}

// FailAll makes every command exit with code and stderr.
func (f *Fake) FailAll(code int, stderr string) *Fake {
	return f.On("", Response{ExitCode: code, Stderr: stderr})
}

// Missing marks tools as absent from PATH.
func (f *Fake) Missing(tools ...string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range tools {
		f.missing[t] = true
	}
	return f
}

// Run implements runner.Runner.
func (f *Fake) Run(_ context.Context, cmd runner.Command) (*runner.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, cmd)
	if f.missing[cmd.Name] {
		return nil, &runner.MissingToolError{Tools: []string{cmd.Name}}
	}

	line := cmd.String()
	var resp Response
	for i := len(f.rules) - 1; i >= 0; i-- {
		if strings.HasPrefix(line, f.rules[i].prefix) {
			resp = f.rules[i].resp
			break
		}
	}
	if resp.Err != nil {
		return nil, resp.Err
	}

	out := &runner.Outcome{Command: line, ExitCode: resp.ExitCode, Stdout: resp.Stdout, Stderr: resp.Stderr}
	if resp.ExitCode != 0 {
		return out, &runner.CommandFailedError{Outcome: out}
	}
	return out, nil
}

// RequireTools implements runner.ToolChecker.
func (f *Fake) RequireTools(names ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	var missing []string
	for _, n := range names {
		if f.missing[n] {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return &runner.MissingToolError{Tools: missing}
	}
	return nil
}

// Calls returns the command lines run so far, in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	lines := make([]string, len(f.calls))
	for i, c := range f.calls {
		lines[i] = c.String()
	}
	return lines
}

// Commands returns the recorded commands, in order.
func (f *Fake) Commands() []runner.Command {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]runner.Command(nil), f.calls...)
}
