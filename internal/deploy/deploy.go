// Package deploy installs a release and verifies it is healthy and executable.
package deploy

import (
	"context"
	"time"

	"github.com/camcast3/releasegate/internal/cli"
	"github.com/camcast3/releasegate/internal/config"
	"github.com/camcast3/releasegate/internal/pipeline"
	"github.com/camcast3/releasegate/internal/probe"
	"github.com/camcast3/releasegate/internal/runner"
	"github.com/camcast3/releasegate/internal/smoke"
	"github.com/camcast3/releasegate/internal/tools"
)

// Name is the pipeline name used in reports and metrics.
const Name = "deploy"

// Stage names, in execution order.
const (
	// StageTools is not a stage: it names the tool check run before the first stage.
	StageTools          = "tools"
	StageTerraformApply = "terraform-apply"
	StageHelmInstall    = "helm-install"
	StageRollout        = "rollout"
	StageReadiness      = "readiness"
	StageSmoke          = "smoke"
)

// ReadyPath is the readiness endpoint polled after rollout.
const ReadyPath = "/health/ready"

// Pipeline holds everything a deploy run needs.
type Pipeline struct {
	Config *config.Config
	Runner runner.Runner
	Prober *probe.Prober
	Smoke  *smoke.Tester
	Out    *cli.Printer
	// Kubeconfig is passed to helm and kubectl when set.
	Kubeconfig string
}

// RequiredTools lists the binaries a deploy run needs.
func RequiredTools(cfg *config.Config) []string {
	names := []string{tools.HelmBinary, tools.KubectlBinary}
	if cfg.TerraformDir != "" {
		names = append(names, tools.TerraformBinary)
	}
	return names
}

// Stages returns the deploy stages in order.
func (p *Pipeline) Stages() []pipeline.Stage {
	return []pipeline.Stage{
		pipeline.StageFunc{StageName: StageTerraformApply, Fn: p.terraformApply},
		pipeline.StageFunc{StageName: StageHelmInstall, Fn: p.helmInstall},
		pipeline.StageFunc{StageName: StageRollout, Fn: p.rollout},
		pipeline.StageFunc{StageName: StageReadiness, Fn: p.readiness},
		pipeline.StageFunc{StageName: StageSmoke, Fn: p.smoke},
	}
}

// Run checks the required tools, then executes every stage. A missing tool
// fails the run before anything is applied.
func (p *Pipeline) Run(ctx context.Context) (*pipeline.Report, error) {
	if err := runner.RequireTools(p.Runner, RequiredTools(p.Config)...); err != nil {
		p.Out.Fail("%v", err)
		return pipeline.Halted(Name, p.Stages(), StageTools, err), err
	}

	report, err := pipeline.Run(ctx, Name, p.Stages(), p.Out.Hooks())
	if err == nil {
		p.Out.OK("deploy is healthy & executable")
	}
	return report, err
}

func (p *Pipeline) release() tools.Release {
	return tools.Release{
		Name:       p.Config.Release,
		Chart:      p.Config.Chart,
		ValuesFile: p.Config.ValuesFile,
		Namespace:  p.Config.Namespace,
	}
}

func (p *Pipeline) terraformApply(ctx context.Context) error {
	if p.Config.TerraformDir == "" {
		p.Out.Info("no terraform_dir configured, skipping infrastructure apply")
		return nil
	}
	_, err := tools.Terraform{Runner: p.Runner, Dir: p.Config.TerraformDir}.Apply(ctx)
	return err
}

func (p *Pipeline) helmInstall(ctx context.Context) error {
	_, err := tools.Helm{Runner: p.Runner, Kubeconfig: p.Kubeconfig}.UpgradeInstall(ctx, p.release())
	return err
}

// rollout waits on kubectl, which enforces the timeout itself. Its failure is
// always a CommandFailed carrying the tool's own diagnostic.
func (p *Pipeline) rollout(ctx context.Context) error {
	k := tools.Kubectl{Runner: p.Runner, Kubeconfig: p.Kubeconfig}
	if _, err := k.RolloutStatus(ctx, p.Config.Namespace, p.Config.Release, p.Config.RolloutTimeout); err != nil {
		return err
	}
	p.Out.OK("deploy/%s rolled out", p.Config.Release)
	return nil
}

func (p *Pipeline) readiness(ctx context.Context) error {
	url := p.Config.BaseURL() + ReadyPath
	p.Out.Step("HTTP wait %s", url)

	want := "ready"
	start := time.Now()
	body, err := p.Prober.WaitReady(ctx, url, "status", &want, p.Config.ReadyTimeout)
	if err != nil {
		return err
	}
	p.Out.OK("%s => %v (%s)", url, body, time.Since(start).Round(time.Millisecond))
	return nil
}

func (p *Pipeline) smoke(ctx context.Context) error {
	answer, err := p.Smoke.Execute(ctx, p.Config.BaseURL())
	if err != nil {
		return err
	}
	p.Out.OK("execute: %v", answer)
	return nil
}
