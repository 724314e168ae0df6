package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/camcast3/releasegate/internal/runner"
)

// KubectlBinary is the name of the kubectl CLI.
const KubectlBinary = "kubectl"

// Kubectl drives the kubectl CLI.
type Kubectl struct {
	Runner runner.Runner
	// Kubeconfig is passed as --kubeconfig when set.
	Kubeconfig string
}

// RolloutStatus waits for deploy/NAME in namespace to finish rolling out.
// kubectl enforces the timeout itself; its diagnostic text is kept in the outcome.
func (k Kubectl) RolloutStatus(ctx context.Context, namespace, deployment string, timeout time.Duration) (*runner.Outcome, error) {
	var args []string
	if k.Kubeconfig != "" {
		args = append(args, "--kubeconfig", k.Kubeconfig)
	}
	args = append(args,
		"-n", namespace,
		"rollout", "status", "deploy/"+deployment,
		"--timeout", fmt.Sprintf("%ds", int(timeout.Seconds())),
	)
	return k.Runner.Run(ctx, runner.Command{Name: KubectlBinary, Args: args})
}
