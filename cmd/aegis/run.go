package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"sentinel-hq/aegis/pkg/audit"
	"sentinel-hq/aegis/pkg/config"
	"sentinel-hq/aegis/pkg/enforce"
	"sentinel-hq/aegis/pkg/refresh"
	"sentinel-hq/aegis/pkg/server"
	"sentinel-hq/aegis/pkg/service"
	"sentinel-hq/aegis/pkg/store"
	"sentinel-hq/aegis/pkg/telemetry/logging"
	"sentinel-hq/aegis/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the enforcement server",
	Long: `Start the enforcement server with the specified configuration.

The server loads installed rules from the snapshot file, serves
enforcement decisions over HTTP, and keeps the fast tier refreshed from
the snapshot on the configured schedule.

Examples:
  # Start with default config
  aegis run

  # Start with custom config
  aegis run --config /etc/aegis/config.yaml

  # Override listen address
  aegis run --listen 0.0.0.0:8090

  # Validate config without starting the server
  aegis run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	if _, err := logging.Setup(cfg.Telemetry.Logging, nil); err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}

	if runFlags.dryRun {
		fmt.Println("✓ Configuration valid")
		return nil
	}

	fmt.Printf("Aegis v%s\n", Version)
	fmt.Printf("Loading configuration from: %s\n", cfgFile)
	fmt.Println("✓ Configuration loaded")

	// Metrics collector
	var collector *metrics.Collector
	var metricsHandler http.Handler
	if cfg.Telemetry.Metrics.Enabled {
		collector = metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
		metricsHandler = collector.Handler()
	}

	// Storage tiers
	slog.Info("opening rule store",
		"snapshot_path", cfg.Store.SnapshotPath,
		"durable_path", cfg.Store.DurablePath,
		"cache_capacity", cfg.Store.CacheCapacity)
	storeCfg := store.Config{
		CacheCapacity: cfg.Store.CacheCapacity,
		SnapshotPath:  cfg.Store.SnapshotPath,
		DurablePath:   cfg.Store.DurablePath,
	}
	if collector != nil {
		storeCfg.Observer = collector
	}
	coord, err := store.NewCoordinator(storeCfg)
	if err != nil {
		return fmt.Errorf("failed to open rule store: %w", err)
	}
	fmt.Println("✓ Rule store initialized")

	// Audit recorder
	var hook enforce.AuditHook
	if cfg.Audit.Enabled && cfg.Audit.Sink == "log" {
		hook = audit.NewRecorder(audit.NewLogSink(slog.Default()))
	}

	engine := enforce.New(coord, hook)

	// Refresh loop
	refresher := refresh.New(coord, refresh.Config{
		Enabled:       cfg.Refresh.Enabled,
		Interval:      cfg.Refresh.Interval,
		WatchSnapshot: cfg.Refresh.WatchSnapshot,
	})
	if err := refresher.Start(); err != nil {
		coord.Close()
		return fmt.Errorf("failed to start refresh loop: %w", err)
	}
	if cfg.Refresh.Enabled {
		fmt.Printf("✓ Refresh scheduled every %s\n", cfg.Refresh.Interval)
	}

	svc := service.New(coord, engine, refresher, collector)
	defer svc.Close()

	srv := server.NewServer(&cfg.Server, svc, metricsHandler, cfg.Telemetry.Metrics.Path)

	fmt.Printf("✓ Server listening on %s\n", cfg.Server.ListenAddress)
	fmt.Printf("✓ Health endpoint: http://%s/healthz\n", cfg.Server.ListenAddress)
	if metricsHandler != nil {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Server.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Start blocks until a shutdown signal or a listener error.
	if err := srv.Start(context.Background()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	fmt.Println("✓ Server stopped")
	return nil
}
