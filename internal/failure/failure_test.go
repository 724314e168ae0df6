package failure

import (
	"errors"
	"fmt"
	"testing"
)

type kindErr struct{ k Kind }

func (e *kindErr) Error() string     { return string(e.k) }
func (e *kindErr) FailureKind() Kind { return e.k }

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "nil", err: nil, want: ""},
		{name: "plain", err: errors.New("boom"), want: Unknown},
		{name: "direct", err: &kindErr{k: Timeout}, want: Timeout},
		{name: "wrapped", err: fmt.Errorf("stage rollout: %w", &kindErr{k: CommandFailed}), want: CommandFailed},
		{name: "outermost wins", err: &kindErr{k: SmokeTestFailed}, want: SmokeTestFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIs(t *testing.T) {
	err := fmt.Errorf("wrap: %w", &kindErr{k: ResourceMissing})
	if !Is(err, ResourceMissing) {
		t.Error("expected ResourceMissing")
	}
	if Is(err, Timeout) {
		t.Error("did not expect Timeout")
	}
	if Is(nil, Unknown) {
		t.Error("nil error must not match any kind")
	}
}
