package driver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"

	"github.com/seastate/bsose-sync/internal/schedule"
	"github.com/seastate/bsose-sync/internal/state"
	"github.com/seastate/bsose-sync/internal/status"
	"github.com/seastate/bsose-sync/internal/telemetry"
	"github.com/seastate/bsose-sync/internal/worker"
)

// Driver executes a work unit schedule to completion.
type Driver interface {
	// Run works through the schedule sequentially and returns nil only after
	// every unit has succeeded. The only other way out is ctx cancellation.
	Run(ctx context.Context) error
}

// Option configures a Driver.
type Option func(*defaultDriver)

// WithClock replaces the real-time clock.
func WithClock(c Clock) Option {
	return func(d *defaultDriver) {
		d.clock = c
	}
}

// WithBackOff replaces the retry delay policy. The default is a constant
// five minute delay with no growth and no attempt cap.
func WithBackOff(b backoff.BackOff) Option {
	return func(d *defaultDriver) {
		d.backoff = b
	}
}

// WithMetrics attaches driver metrics. Nil metrics are a no-op.
func WithMetrics(m *telemetry.DriverMetrics) Option {
	return func(d *defaultDriver) {
		d.metrics = m
	}
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(d *defaultDriver) {
		d.runID = id
	}
}

// defaultDriver is the production Driver implementation.
type defaultDriver struct {
	units   []schedule.WorkUnit
	runner  worker.Runner
	state   state.RunStateService
	clock   Clock
	backoff backoff.BackOff
	metrics *telemetry.DriverMetrics
	runID   string
}

// DefaultRetryDelay is the pause between a failed attempt and its retry when
// no policy is supplied.
const DefaultRetryDelay = 300 * time.Second

// New creates a Driver over the given schedule.
func New(runner worker.Runner, stateService state.RunStateService, units []schedule.WorkUnit, opts ...Option) Driver {
	d := &defaultDriver{
		units:   units,
		runner:  runner,
		state:   stateService,
		clock:   NewSystemClock(),
		backoff: backoff.NewConstantBackOff(DefaultRetryDelay),
		runID:   uuid.NewString(),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Run implements Driver.
func (d *defaultDriver) Run(ctx context.Context) error {
	if len(d.units) == 0 {
		return fmt.Errorf("schedule is empty")
	}

	if err := d.state.Initialize(ctx, d.runID, d.units); err != nil {
		return fmt.Errorf("failed to initialize run state: %w", err)
	}

	slog.Info("Starting ingestion run",
		"run_id", d.runID,
		"total_units", len(d.units),
		"first_unit", d.units[0].ID(),
		"last_unit", d.units[len(d.units)-1].ID(),
	)

	currentYear := 0
	for i, unit := range d.units {
		if unit.Year != currentYear {
			currentYear = unit.Year
			slog.Info("Processing year",
				"year", currentYear,
				"run_id", d.runID,
			)
		}

		if err := d.runUnit(ctx, i, unit); err != nil {
			return err
		}
	}

	d.updateState(ctx, func(rs *status.RunStatus) {
		rs.Phase = status.RunPhaseComplete
		rs.Current = nil
	})

	slog.Info("Ingestion run complete",
		"run_id", d.runID,
		"total_units", len(d.units),
	)

	return nil
}

// runUnit drives one unit to success, retrying failed attempts in place.
func (d *defaultDriver) runUnit(ctx context.Context, index int, unit schedule.WorkUnit) error {
	d.backoff.Reset()

	attempts := 0
	for {
		attempts++
		started := d.clock.Now()

		d.updateState(ctx, func(rs *status.RunStatus) {
			rs.Current = &status.UnitStatus{
				Unit:        unit,
				Phase:       status.UnitPhaseRunning,
				Attempts:    attempts,
				LastAttempt: &started,
			}
		})

		slog.Info("Running work unit",
			"unit", unit.ID(),
			"attempt", attempts,
			"progress", fmt.Sprintf("%d/%d", index+1, len(d.units)),
		)

		err := d.runner.Run(ctx, unit)
		duration := d.clock.Now().Sub(started)
		d.metrics.RecordAttempt(ctx, unit.ID(), unit.Year, duration, err == nil)

		if err == nil {
			completed := d.clock.Now()
			d.updateState(ctx, func(rs *status.RunStatus) {
				rs.Completed++
				rs.Current = &status.UnitStatus{
					Unit:        unit,
					Phase:       status.UnitPhaseSucceeded,
					Attempts:    attempts,
					LastAttempt: &started,
					CompletedAt: &completed,
				}
			})
			d.metrics.RecordUnitCompleted(ctx, unit.Year, int64(attempts))

			slog.Info("Work unit completed",
				"unit", unit.ID(),
				"attempts", attempts,
				"duration", duration,
			)
			return nil
		}

		if ctx.Err() != nil {
			return fmt.Errorf("run aborted: %w", ctx.Err())
		}

		delay := d.backoff.NextBackOff()
		if delay == backoff.Stop {
			return fmt.Errorf("retry policy gave up on unit %s: %w", unit.ID(), err)
		}

		d.updateState(ctx, func(rs *status.RunStatus) {
			rs.Current = &status.UnitStatus{
				Unit:        unit,
				Phase:       status.UnitPhaseFailed,
				Attempts:    attempts,
				Message:     err.Error(),
				LastAttempt: &started,
			}
		})

		slog.Warn("Work unit failed, retrying",
			"unit", unit.ID(),
			"attempt", attempts,
			"retry_in", delay,
			"error", err,
		)

		if sleepErr := d.clock.Sleep(ctx, delay); sleepErr != nil {
			return fmt.Errorf("run aborted: %w", sleepErr)
		}
		d.metrics.RecordRetrySleep(ctx, unit.ID(), delay)
	}
}

// updateState applies a status mutation. Status is observational, so a
// failed write never stops the run.
func (d *defaultDriver) updateState(ctx context.Context, fn func(*status.RunStatus)) {
	if err := d.state.Update(ctx, fn); err != nil {
		slog.Warn("Failed to persist run status",
			"run_id", d.runID,
			"error", err,
		)
	}
}
