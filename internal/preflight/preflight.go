// Package preflight validates that a release can be deployed without changing anything.
package preflight

import (
	"context"
	"strings"

	"sigs.k8s.io/controller-runtime/pkg/client"

	"github.com/camcast3/releasegate/internal/checks"
	"github.com/camcast3/releasegate/internal/cli"
	"github.com/camcast3/releasegate/internal/config"
	"github.com/camcast3/releasegate/internal/metrics"
	"github.com/camcast3/releasegate/internal/pipeline"
	"github.com/camcast3/releasegate/internal/runner"
	"github.com/camcast3/releasegate/internal/tools"
)

// Name is the pipeline name used in reports and metrics.
const Name = "preflight"

// Stage names, in execution order.
const (
	StageTools         = "tools"
	StageTerraformPlan = "terraform-plan"
	StageClusterAccess = "cluster-access"
	StageCRDs          = "crds"
	StageSecrets       = "secrets"
	StageArtifacts     = "artifacts"
	StageChartLint     = "chart-lint"
	StageChartDryRun   = "chart-dry-run"
)

// Connector opens a read session against the cluster.
type Connector func(ctx context.Context) (client.Reader, error)

// Pipeline holds everything a preflight run needs.
type Pipeline struct {
	Config  *config.Config
	Runner  runner.Runner
	Connect Connector
	Out     *cli.Printer
	// Kubeconfig is passed to helm when set.
	Kubeconfig string

	reader client.Reader
}

// RequiredTools lists the binaries the configuration needs.
func RequiredTools(cfg *config.Config) []string {
	names := []string{tools.KubectlBinary, tools.HelmBinary}
	if cfg.TerraformDir != "" {
		names = append(names, tools.TerraformBinary)
	}
	if len(cfg.OCIRefs) > 0 {
		names = append(names, tools.OrasBinary)
	}
	return names
}

// Stages returns the preflight stages in order.
func (p *Pipeline) Stages() []pipeline.Stage {
	return []pipeline.Stage{
		pipeline.StageFunc{StageName: StageTools, Fn: p.checkTools},
		pipeline.StageFunc{StageName: StageTerraformPlan, Fn: p.terraformPlan},
		pipeline.StageFunc{StageName: StageClusterAccess, Fn: p.clusterAccess},
		pipeline.StageFunc{StageName: StageCRDs, Fn: p.checkCRDs},
		pipeline.StageFunc{StageName: StageSecrets, Fn: p.checkSecrets},
		pipeline.StageFunc{StageName: StageArtifacts, Fn: p.checkArtifacts},
		pipeline.StageFunc{StageName: StageChartLint, Fn: p.chartLint},
		pipeline.StageFunc{StageName: StageChartDryRun, Fn: p.chartDryRun},
	}
}

// Run executes every stage and prints the final verdict.
func (p *Pipeline) Run(ctx context.Context) (*pipeline.Report, error) {
	report, err := pipeline.Run(ctx, Name, p.Stages(), p.Out.Hooks())
	if err == nil {
		p.Out.OK("preflight passed")
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

func (p *Pipeline) checkTools(_ context.Context) error {
	names := RequiredTools(p.Config)
	if err := runner.RequireTools(p.Runner, names...); err != nil {
		return err
	}
	p.Out.OK("tools available: %s", strings.Join(names, ", "))
	return nil
}

func (p *Pipeline) terraformPlan(ctx context.Context) error {
	if p.Config.TerraformDir == "" {
		p.Out.Info("no terraform_dir configured, skipping infrastructure plan")
		return nil
	}
	tf := tools.Terraform{Runner: p.Runner, Dir: p.Config.TerraformDir}
	for _, step := range []func(context.Context) (*runner.Outcome, error){tf.Init, tf.Validate, tf.Plan} {
		if _, err := step(ctx); err != nil {
			return err
		}
	}
	p.Out.OK("terraform plan succeeded")
	return nil
}

func (p *Pipeline) clusterAccess(ctx context.Context) error {
	reader, err := p.Connect(ctx)
	if err != nil {
		return err
	}
	p.reader = reader

	ns, err := checks.CheckNamespace(ctx, reader, p.Config.Namespace)
	if err != nil {
		return err
	}
	switch {
	case ns.Exists:
		p.Out.OK("namespace: %s", ns.Name)
	case ns.Detail != "":
		p.Out.Info("namespace '%s' could not be read, continuing: %s", ns.Name, ns.Detail)
	default:
		p.Out.Info("namespace '%s' does not exist yet (helm will create it)", ns.Name)
	}
	return nil
}

func (p *Pipeline) checkOptions(kind checks.Kind) checks.Options {
	return checks.Options{
		Concurrency: p.Config.CheckConcurrency,
		OnVerdict: func(v checks.Verdict) {
			if v.Present {
				p.Out.OK("  %s/%s", kind, v.Name)
			}
		},
	}
}

func (p *Pipeline) checkCRDs(ctx context.Context) error {
	if len(p.Config.RequiredCRDs) == 0 {
		return nil
	}
	res := checks.CheckCRDs(ctx, p.reader, p.Config.RequiredCRDs, p.checkOptions(checks.KindCRD))
	metrics.MissingResources.WithLabelValues(string(checks.KindCRD)).Set(float64(len(res.Missing())))
	return res.Err()
}

func (p *Pipeline) checkSecrets(ctx context.Context) error {
	if len(p.Config.RequiredSecrets) == 0 {
		return nil
	}
	res := checks.CheckSecrets(ctx, p.reader, p.Config.Namespace, p.Config.RequiredSecrets, p.checkOptions(checks.KindSecret))
	metrics.MissingResources.WithLabelValues(string(checks.KindSecret)).Set(float64(len(res.Missing())))
	if err := res.Err(); err != nil {
		p.Out.Info("if secrets are managed by ExternalSecrets, check their sync status")
		return err
	}
	return nil
}

func (p *Pipeline) checkArtifacts(ctx context.Context) error {
	if len(p.Config.OCIRefs) == 0 {
		return nil
	}
	_, err := checks.CheckArtifacts(ctx, tools.Oras{Runner: p.Runner}, p.Config.OCIRefs, func(v checks.Verdict) {
		p.Out.OK("  %s manifest digest: %s", v.Name, v.Detail)
	})
	return err
}

func (p *Pipeline) chartLint(ctx context.Context) error {
	helm := tools.Helm{Runner: p.Runner, Kubeconfig: p.Kubeconfig}
	if _, err := helm.Lint(ctx, p.release()); err != nil {
		return err
	}
	if _, err := helm.Template(ctx, p.release()); err != nil {
		return err
	}
	return nil
}

func (p *Pipeline) chartDryRun(ctx context.Context) error {
	_, err := tools.Helm{Runner: p.Runner, Kubeconfig: p.Kubeconfig}.DryRun(ctx, p.release())
	return err
}
