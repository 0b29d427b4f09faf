package state

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/seastate/bsose-sync/internal/schedule"
	"github.com/seastate/bsose-sync/internal/status"
)

type fileStateService struct {
	persistence status.Persistence

	// Guards the cached status. The driver itself is sequential, but the
	// status command and telemetry callbacks may read concurrently.
	mu     sync.RWMutex
	cached *status.RunStatus
}

// NewFileStateService creates a run state service backed by file persistence.
func NewFileStateService(persistence status.Persistence) RunStateService {
	return &fileStateService{persistence: persistence}
}

func (f *fileStateService) Initialize(ctx context.Context, runID string, units []schedule.WorkUnit) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Surface interrupted previous runs before overwriting: a status stuck in
	// Running means the prior driver process was terminated mid-schedule.
	previous, err := f.persistence.Load(ctx)
	if err != nil {
		slog.Warn("Failed to load previous run status, starting fresh", "error", err)
	} else if previous != nil && previous.Phase == status.RunPhaseRunning {
		slog.Warn("Previous run was interrupted; the full schedule will be re-run",
			"previous_run_id", previous.RunID,
			"previous_completed", previous.Completed,
			"previous_total", previous.Total)
	}

	now := time.Now()
	runStatus := &status.RunStatus{
		RunID:     runID,
		Phase:     status.RunPhaseRunning,
		StartedAt: now,
		UpdatedAt: now,
		Total:     len(units),
	}
	if len(units) > 0 {
		runStatus.Current = &status.UnitStatus{
			Unit:  units[0],
			Phase: status.UnitPhasePending,
		}
	}

	if err := f.persistence.Save(ctx, runStatus); err != nil {
		return fmt.Errorf("failed to persist initial run status: %w", err)
	}
	f.cached = runStatus
	return nil
}

func (f *fileStateService) Get(_ context.Context) (*status.RunStatus, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.cached == nil {
		return nil, fmt.Errorf("run state not initialized")
	}
	return copyStatus(f.cached), nil
}

func (f *fileStateService) Update(ctx context.Context, updateFn func(runStatus *status.RunStatus)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cached == nil {
		return fmt.Errorf("run state not initialized")
	}

	updated := copyStatus(f.cached)
	updateFn(updated)
	updated.UpdatedAt = time.Now()

	if err := f.persistence.Save(ctx, updated); err != nil {
		return err
	}
	f.cached = updated
	return nil
}

// copyStatus returns a deep copy so callers cannot mutate the cache.
func copyStatus(s *status.RunStatus) *status.RunStatus {
	out := *s
	if s.Current != nil {
		current := *s.Current
		out.Current = &current
	}
	return &out
}
