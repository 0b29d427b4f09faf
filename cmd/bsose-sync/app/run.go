package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric"

	"github.com/seastate/bsose-sync/internal/config"
	"github.com/seastate/bsose-sync/internal/driver"
	"github.com/seastate/bsose-sync/internal/schedule"
	"github.com/seastate/bsose-sync/internal/state"
	"github.com/seastate/bsose-sync/internal/status"
	"github.com/seastate/bsose-sync/internal/telemetry"
	"github.com/seastate/bsose-sync/internal/worker"
	"github.com/seastate/bsose-sync/pkg/versions"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full ingestion schedule",
	Long: `Run enumerates every (year, latitude range) work unit from the configuration
and invokes the worker for each one in order. A unit that fails is retried in
place after a fixed delay until it succeeds; the command exits successfully
only once the entire schedule has been ingested.

The configuration file (--config) specifies:
- The year interval and latitude chunking
- The worker invocation (local binary or container image)
- The destination data store
- Retry delay, state directory and telemetry settings

See examples/ directory for a sample configuration.`,
	RunE: runRun,
}

// lockFileName is the run lock inside the state directory. It guarantees at
// most one driver works a state directory at a time.
const lockFileName = "run.lock"

// telemetryShutdownTimeout bounds the final metrics flush.
const telemetryShutdownTimeout = 10 * time.Second

func init() {
	runCmd.Flags().String("config", "", "Path to configuration file (YAML format, required)")

	if err := runCmd.MarkFlagRequired("config"); err != nil {
		slog.Error("Failed to mark config flag as required", "error", err)
	}
}

func runRun(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	configPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("failed to read config flag: %w", err)
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(configPath))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	params := cfg.ScheduleParams()
	units, err := schedule.Build(params)
	if err != nil {
		return fmt.Errorf("failed to build schedule: %w", err)
	}

	slog.Info("Loaded configuration",
		"path", configPath,
		"years", fmt.Sprintf("%d-%d", params.StartYear, params.EndYear),
		"stride", params.Stride,
		"final_bound", params.FinalBound,
		"units", len(units),
		"worker_kind", cfg.Worker.Kind,
	)

	stateDir := cfg.GetStateDir()
	if err := os.MkdirAll(stateDir, 0750); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	// Only one driver may work a state directory at a time. A second
	// invocation fails immediately instead of interleaving worker runs.
	lock := flock.New(filepath.Join(stateDir, lockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("another driver instance holds the run lock in %s", stateDir)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("Failed to release run lock", "error", err)
		}
	}()

	meterProvider, err := newMeterProvider(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if shutdown, ok := meterProvider.(interface{ Shutdown(context.Context) error }); ok {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), telemetryShutdownTimeout)
			defer cancel()
			if err := shutdown.Shutdown(shutdownCtx); err != nil {
				slog.Warn("Failed to shut down meter provider", "error", err)
			}
		}
	}()

	metrics, err := telemetry.NewDriverMetrics(meterProvider)
	if err != nil {
		return fmt.Errorf("failed to create driver metrics: %w", err)
	}

	runner, err := worker.NewRunner(cfg)
	if err != nil {
		return fmt.Errorf("failed to create worker runner: %w", err)
	}

	stateService := state.NewFileStateService(status.NewFilePersistence(stateDir))

	d := driver.New(runner, stateService, units,
		driver.WithBackOff(backoff.NewConstantBackOff(cfg.RetryDelay())),
		driver.WithMetrics(metrics),
	)

	if err := d.Run(ctx); err != nil {
		slog.Error("Ingestion run failed", "error", err)
		return err
	}

	return nil
}

// newMeterProvider builds the meter provider from the telemetry section of
// the configuration. A missing or disabled section yields a no-op provider.
func newMeterProvider(ctx context.Context, cfg *config.Config) (metric.MeterProvider, error) {
	opts := []telemetry.MeterProviderOption{
		telemetry.WithMeterServiceVersion(versions.GetVersionInfo().Version),
	}

	if tc := cfg.Telemetry; tc != nil && tc.Enabled {
		opts = append(opts,
			telemetry.WithMeterServiceName(tc.GetServiceName()),
			telemetry.WithMeterEndpoint(tc.GetEndpoint()),
			telemetry.WithMeterInsecure(tc.GetInsecure()),
			telemetry.WithMetricsConfig(tc.Metrics),
		)
	}

	return telemetry.NewMeterProvider(ctx, opts...)
}
