package tools

import (
	"context"

	"github.com/camcast3/releasegate/internal/runner"
)

// HelmBinary is the name of the helm CLI.
const HelmBinary = "helm"

// Helm drives the helm CLI.
type Helm struct {
	Runner runner.Runner
	// Kubeconfig is passed as --kubeconfig when set.
	Kubeconfig string
}

// Release identifies a chart installation.
type Release struct {
	Name       string
	Chart      string
	ValuesFile string
	Namespace  string
}

// Lint runs `helm lint CHART -f VALUES`.
func (h Helm) Lint(ctx context.Context, rel Release) (*runner.Outcome, error) {
	return h.Runner.Run(ctx, runner.Command{
		Name: HelmBinary,
		Args: h.withKubeconfig("lint", rel.Chart, "-f", rel.ValuesFile),
	})
}

// Template renders the chart locally with `helm template`.
func (h Helm) Template(ctx context.Context, rel Release) (*runner.Outcome, error) {
	return h.Runner.Run(ctx, runner.Command{
		Name: HelmBinary,
		Args: h.withKubeconfig("template", rel.Name, rel.Chart, "-f", rel.ValuesFile),
	})
}

// DryRun validates an install against the cluster without changing it.
func (h Helm) DryRun(ctx context.Context, rel Release) (*runner.Outcome, error) {
	args := append(upgradeInstallArgs(rel), "--dry-run", "--debug")
	return h.Runner.Run(ctx, runner.Command{Name: HelmBinary, Args: h.withKubeconfig(args...)})
}

// UpgradeInstall installs or upgrades the release, creating the namespace if needed.
// Output is streamed since installs can take a while.
func (h Helm) UpgradeInstall(ctx context.Context, rel Release) (*runner.Outcome, error) {
	return h.Runner.Run(ctx, runner.Command{
		Name: HelmBinary,
		Args: h.withKubeconfig(upgradeInstallArgs(rel)...),
		Mode: runner.Stream,
	})
}

func upgradeInstallArgs(rel Release) []string {
	return []string{
		"upgrade", "--install", rel.Name, rel.Chart,
		"-f", rel.ValuesFile,
		"--namespace", rel.Namespace,
		"--create-namespace",
	}
}

// withKubeconfig appends --kubeconfig so every helm call targets the same cluster.
func (h Helm) withKubeconfig(args ...string) []string {
	if h.Kubeconfig == "" {
		return args
	}
	return append(args, "--kubeconfig", h.Kubeconfig)
}
