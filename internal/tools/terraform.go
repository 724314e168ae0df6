package tools

import (
	"context"

	"github.com/camcast3/releasegate/internal/runner"
)

// TerraformBinary is the name of the terraform CLI.
const TerraformBinary = "terraform"

// Terraform drives the terraform CLI against a single working directory.
type Terraform struct {
	Runner runner.Runner
	Dir    string
}

func (t Terraform) run(ctx context.Context, mode runner.Mode, args ...string) (*runner.Outcome, error) {
	return t.Runner.Run(ctx, runner.Command{
		Name: TerraformBinary,
		Args: append([]string{"-chdir=" + t.Dir}, args...),
		Mode: mode,
	})
}

// Init runs `terraform init -upgrade`.
func (t Terraform) Init(ctx context.Context) (*runner.Outcome, error) {
	return t.run(ctx, runner.Capture, "init", "-upgrade")
}

// Validate runs `terraform validate`.
func (t Terraform) Validate(ctx context.Context) (*runner.Outcome, error) {
	return t.run(ctx, runner.Capture, "validate")
}

// Plan runs `terraform plan`.
func (t Terraform) Plan(ctx context.Context) (*runner.Outcome, error) {
	return t.run(ctx, runner.Capture, "plan")
}

// Apply runs `terraform apply -auto-approve`, streaming its output.
func (t Terraform) Apply(ctx context.Context) (*runner.Outcome, error) {
	return t.run(ctx, runner.Stream, "apply", "-auto-approve")
}
