package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"

	ctrl "sigs.k8s.io/controller-runtime"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/camcast3/releasegate/internal/agent"
	"github.com/camcast3/releasegate/internal/contract"
	"github.com/camcast3/releasegate/internal/server"
)

var setupLog = ctrl.Log.WithName("setup")

func main() {
	var (
		addr            string
		shutdownTimeout = server.DefaultShutdownTimeout
	)
	flag.StringVar(&addr, "addr", ":8000", "The address the agent API binds to.")
	flag.DurationVar(&shutdownTimeout, "shutdown-timeout", shutdownTimeout, "How long in-flight requests may take to finish on shutdown.")

	opts := zap.Options{Development: true}
	opts.BindFlags(flag.CommandLine)
	flag.Parse()

	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.IntoContext(ctx, ctrl.Log.WithName("agent"))

	cfg, err := agent.LoadConfig()
	if err != nil {
		setupLog.Error(err, "unable to load agent configuration")
		os.Exit(1)
	}
	a := agent.New(cfg)

	c, err := contract.Load(ctx)
	if err != nil {
		setupLog.Error(err, "unable to load agent contract")
		os.Exit(1)
	}

	state := server.NewReadinessState()
	for name, depErr := range a.Check(ctx) {
		if depErr != nil {
			setupLog.Info("dependency not ready", "dependency", name, "reason", depErr.Error())
			state.Update(name, false, depErr.Error())
			continue
		}
		state.Update(name, true, "")
	}

	handlers := &server.Handlers{Agent: a, State: state, Contract: c}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		setupLog.Error(err, "unable to listen", "addr", addr)
		os.Exit(1)
	}

	setupLog.Info("starting agent", "addr", ln.Addr().String(), "contract", c.Version())
	if err := server.Serve(ctx, ln, handlers.Router(ctx), shutdownTimeout); err != nil {
		setupLog.Error(err, "agent server failed")
		os.Exit(1)
	}
}
