package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/marmos91/dittovfs/internal/logger"
	"github.com/marmos91/dittovfs/internal/telemetry"
	"github.com/marmos91/dittovfs/pkg/config"
	"github.com/marmos91/dittovfs/pkg/metrics"
)

var pidFile string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the DittoVFS server",
	Long: `Start the DittoVFS server in the foreground with the specified configuration.

Every configured workspace is mounted before the REST API starts accepting
requests. Use --config to specify a custom configuration file, or it will use
the default location at $XDG_CONFIG_HOME/dittovfs/config.yaml.

Examples:
  # Start with the default configuration file
  dvfs start

  # Start with custom config file
  dvfs start --config /etc/dittovfs/config.yaml

  # Start with environment variable overrides
  DVFS_LOGGING_LEVEL=DEBUG dvfs start`,
	RunE: runStart,
}

func init() {
	startCmd.Flags().StringVar(&pidFile, "pid-file", "", "Path to PID file")
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	if err := InitLogger(cfg); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	service := telemetry.Service{Name: "dittovfs", Version: Version}
	telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:    cfg.Telemetry.Enabled,
		Service:    service,
		Endpoint:   cfg.Telemetry.Endpoint,
		Insecure:   cfg.Telemetry.Insecure,
		SampleRate: cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			logger.Error("telemetry shutdown error", logger.Err(err))
		}
	}()

	profilingShutdown, err := telemetry.InitProfiling(telemetry.ProfilingConfig{
		Enabled:      cfg.Telemetry.Profiling.Enabled,
		Service:      service,
		Endpoint:     cfg.Telemetry.Profiling.Endpoint,
		ProfileTypes: cfg.Telemetry.Profiling.ProfileTypes,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize profiling: %w", err)
	}
	defer func() {
		if err := profilingShutdown(); err != nil {
			logger.Error("profiling shutdown error", logger.Err(err))
		}
	}()

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "DittoVFS - Local directories as a virtual file system")
	logger.Info("Log level", "level", cfg.Logging.Level, "format", cfg.Logging.Format)
	logger.Info("Configuration loaded", "source", getConfigSource(GetConfigFile()))
	if telemetry.IsEnabled() {
		logger.Info("Telemetry enabled", "endpoint", cfg.Telemetry.Endpoint, "sample_rate", cfg.Telemetry.SampleRate)
	}
	if telemetry.IsProfilingEnabled() {
		logger.Info("Profiling enabled", "endpoint", cfg.Telemetry.Profiling.Endpoint, "profile_types", cfg.Telemetry.Profiling.ProfileTypes)
	}

	var collectors *metrics.Collectors
	if cfg.Metrics.Enabled {
		metrics.InitRegistry()
		collectors = metrics.NewCollectors(metrics.GetRegistry())
		logger.Info("Metrics enabled", "port", cfg.Metrics.Port)
	}

	srv, err := newVFSServer(ctx, cfg, collectors)
	if err != nil {
		return err
	}
	if len(cfg.Workspaces) == 0 {
		logger.Warn("No workspaces configured")
	}
	logger.Info("Server initialized",
		logger.KeyCount, len(cfg.Workspaces),
		"api", cfg.Server.IsEnabled(),
		"search", srv.index != nil,
		"anonymous", cfg.Auth.AllowAnonymous)

	if pidFile != "" {
		if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d", os.Getpid())), 0644); err != nil {
			_ = srv.Shutdown()
			return fmt.Errorf("failed to write PID file: %w", err)
		}
		defer func() { _ = os.Remove(pidFile) }()
	}

	serverDone := make(chan error, 1)
	go func() {
		serverDone <- srv.Serve(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	logger.Info("Server is running. Press Ctrl+C to stop.")

	var serveErr error
	select {
	case <-sigChan:
		logger.Info("Shutdown signal received, initiating graceful shutdown")
		cancel()
		serveErr = <-serverDone
	case serveErr = <-serverDone:
		cancel()
	}

	if err := srv.Shutdown(); err != nil {
		logger.Error("Shutdown error", logger.Err(err))
		if serveErr == nil {
			serveErr = err
		}
	}
	if serveErr != nil {
		logger.Error("Server stopped with error", logger.Err(serveErr))
		return serveErr
	}

	logger.Info("Server stopped gracefully")
	return nil
}
