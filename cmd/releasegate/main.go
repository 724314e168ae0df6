package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/camcast3/releasegate/internal/cli"
	"github.com/camcast3/releasegate/internal/config"
	"github.com/camcast3/releasegate/internal/contract"
	"github.com/camcast3/releasegate/internal/deploy"
	"github.com/camcast3/releasegate/internal/kube"
	"github.com/camcast3/releasegate/internal/metrics"
	"github.com/camcast3/releasegate/internal/pipeline"
	"github.com/camcast3/releasegate/internal/preflight"
	"github.com/camcast3/releasegate/internal/probe"
	"github.com/camcast3/releasegate/internal/runner"
	"github.com/camcast3/releasegate/internal/smoke"
)

var version = "dev"

const (
	exitOK     = 0
	exitFailed = 1
	exitUsage  = 2
)

const usageText = `Usage:
  releasegate preflight -config FILE [-kubeconfig PATH] [-output text|json|yaml] [-pushgateway URL]
  releasegate deploy    -config FILE [-kubeconfig PATH] [-output text|json|yaml] [-pushgateway URL]
  releasegate version
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type options struct {
	configPath  string
	kubeconfig  string
	output      string
	pushgateway string
	zap         zap.Options
}

func parseFlags(name string, args []string, stderr io.Writer) (*options, error) {
	opts := &options{}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "Path to the pipeline configuration file (required)")
	fs.StringVar(&opts.kubeconfig, "kubeconfig", "", "Path to kubeconfig file (uses KUBECONFIG, ~/.kube/config, then in-cluster config if empty)")
	fs.StringVar(&opts.output, "output", cli.FormatTextName, "Output format: text, json or yaml")
	fs.StringVar(&opts.pushgateway, "pushgateway", "", "Prometheus Pushgateway URL to push run metrics to")
	opts.zap.BindFlags(fs)

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if opts.configPath == "" {
		return nil, errors.New("-config is required")
	}
	if !cli.ValidFormat(opts.output) {
		return nil, fmt.Errorf("unknown output format %q", opts.output)
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usageText)
		return exitUsage
	}

	name := args[0]
	switch name {
	case preflight.Name, deploy.Name:
	case "version":
		fmt.Fprintf(stdout, "releasegate %s\n", version)
		return exitOK
	case "help", "-h", "--help":
		fmt.Fprint(stdout, usageText)
		return exitOK
	default:
		fmt.Fprintf(stderr, "unknown command %q\n%s", name, usageText)
		return exitUsage
	}

	opts, err := parseFlags(name, args[1:], stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "%v\n%s", err, usageText)
		return exitUsage
	}

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts.zap), zap.WriteTo(stderr)))
	ctx = log.IntoContext(ctx, ctrl.Log.WithName(name))

	// Machine-readable reports own stdout, progress moves to stderr.
	progress := stdout
	if opts.output != cli.FormatTextName {
		progress = stderr
	}
	out := &cli.Printer{W: progress}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		out.Fail("%v", err)
		return exitFailed
	}

	exec := runner.NewExec()
	exec.Stdout = progress
	exec.Stderr = stderr

	var (
		report *pipeline.Report
		runErr error
	)
	switch name {
	case preflight.Name:
		report, runErr = newPreflight(cfg, exec, opts, out).Run(ctx)
	case deploy.Name:
		p, err := newDeploy(ctx, cfg, exec, opts, out)
		if err != nil {
			out.Fail("%v", err)
			return exitFailed
		}
		report, runErr = p.Run(ctx)
	}

	if err := cli.Write(stdout, opts.output, report); err != nil {
		fmt.Fprintf(stderr, "Error writing report: %v\n", err)
		return exitFailed
	}

	if opts.pushgateway != "" {
		if err := metrics.Push(ctx, opts.pushgateway, name); err != nil {
			out.Info("metrics push failed: %v", err)
		}
	}

	if runErr != nil {
		return exitFailed
	}
	return exitOK
}

func newPreflight(cfg *config.Config, r runner.Runner, opts *options, out *cli.Printer) *preflight.Pipeline {
	return &preflight.Pipeline{
		Config:     cfg,
		Runner:     r,
		Connect:    kube.NewSession(opts.kubeconfig).Connect,
		Out:        out,
		Kubeconfig: opts.kubeconfig,
	}
}

func newDeploy(ctx context.Context, cfg *config.Config, r runner.Runner, opts *options, out *cli.Printer) (*deploy.Pipeline, error) {
	c, err := contract.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading agent contract: %w", err)
	}
	return &deploy.Pipeline{
		Config: cfg,
		Runner: r,
		Prober: probe.New(cfg.ReadyInterval),
		Smoke: &smoke.Tester{
			Contract: c,
			Query:    cfg.SmokeQuery,
			Timeout:  cfg.SmokeTimeout,
		},
		Out:        out,
		Kubeconfig: opts.kubeconfig,
	}, nil
}
