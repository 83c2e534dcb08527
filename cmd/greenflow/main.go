package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/common/version"
	"k8s.io/klog/v2"

	"github.com/elevated-systems/greenflow/pkg/greenflow/config"
	"github.com/elevated-systems/greenflow/pkg/greenflow/lifecycle"
	"github.com/elevated-systems/greenflow/pkg/greenflow/metrics"
	"github.com/elevated-systems/greenflow/pkg/greenflow/server"
)

func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Builds without -ldflags report the configured version in build_info
	if version.Version == "" {
		version.Version = cfg.App.Version
	}
	if cfg.Observability.MetricsEnabled {
		metrics.Register()
	}

	klog.InfoS("Starting "+cfg.App.Name,
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"listenAddr", cfg.Server.ListenAddr,
		"database", cfg.Database.Path)

	sys, err := server.NewSystem(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := sys.Close(); err != nil {
			klog.ErrorS(err, "Failed to close system")
		}
	}()

	supervisor := lifecycle.NewSupervisor(lifecycle.DefaultBackoff)
	for _, task := range sys.Tasks() {
		supervisor.Add(task)
	}
	return supervisor.Run(ctx)
}

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", os.Getenv("GREENFLOW_CONFIG"), "Path to the YAML configuration file (optional)")
	klog.InitFlags(nil)
	flag.Parse()
	defer klog.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, configPath); err != nil {
		klog.ErrorS(err, "GreenFlow exited with error")
		klog.Flush()
		os.Exit(1)
	}
	klog.InfoS("GreenFlow stopped")
}
