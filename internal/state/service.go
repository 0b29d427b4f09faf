// Package state contains logic for managing the run state which the driver
// persists for operator observation.
package state

import (
	"context"

	"github.com/seastate/bsose-sync/internal/schedule"
	"github.com/seastate/bsose-sync/internal/status"
)

// RunStateService provides methods for inspecting and updating the progress
// of a driver run.
//
// The service is observational: nothing in the driver reads state back to
// decide what to execute, so clearing or losing the backing store never
// changes which units run.
//
//go:generate mockgen -destination=mocks/mock_service.go -package=mocks -source=service.go RunStateService
type RunStateService interface {
	// Initialize records a fresh run over the given schedule. It overwrites
	// any state left behind by a previous run.
	Initialize(ctx context.Context, runID string, units []schedule.WorkUnit) error

	// Get returns a copy of the current run status.
	Get(ctx context.Context) (*status.RunStatus, error)

	// Update applies updateFn to the current run status and persists the
	// result as a single atomic action.
	Update(ctx context.Context, updateFn func(runStatus *status.RunStatus)) error
}
