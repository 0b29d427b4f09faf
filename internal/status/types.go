package status

import (
	"time"

	"github.com/seastate/bsose-sync/internal/schedule"
)

// UnitPhase represents the lifecycle state of a single work unit.
type UnitPhase string

const (
	// UnitPhasePending means the unit has not been attempted yet.
	UnitPhasePending UnitPhase = "Pending"

	// UnitPhaseRunning means a worker invocation for the unit is in flight.
	UnitPhaseRunning UnitPhase = "Running"

	// UnitPhaseFailed means the last invocation failed and the unit is
	// waiting out the retry delay.
	UnitPhaseFailed UnitPhase = "Failed"

	// UnitPhaseSucceeded means the worker reported success. Terminal.
	UnitPhaseSucceeded UnitPhase = "Succeeded"
)

// RunPhase represents the state of the driver run as a whole.
type RunPhase string

const (
	// RunPhaseRunning means the driver is still working through the schedule.
	RunPhaseRunning RunPhase = "Running"

	// RunPhaseComplete means every unit in the schedule succeeded.
	RunPhaseComplete RunPhase = "Complete"
)

// UnitStatus describes the progress of one work unit.
type UnitStatus struct {
	// Unit identifies the chunk being processed.
	Unit schedule.WorkUnit `json:"unit"`

	// Phase is the unit's current lifecycle state.
	Phase UnitPhase `json:"phase"`

	// Attempts is the number of worker invocations made for this unit so far.
	Attempts int `json:"attempts,omitempty"`

	// Message carries the last failure message, if any.
	Message string `json:"message,omitempty"`

	// LastAttempt is the start time of the most recent invocation.
	LastAttempt *time.Time `json:"lastAttempt,omitempty"`

	// CompletedAt is set once the unit succeeds.
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// RunStatus is the driver's externally visible progress record.
//
// It exists for operator observation only: a restarted driver never reads it
// back to skip work. The full schedule is always re-run from the beginning.
type RunStatus struct {
	// RunID uniquely identifies this driver run.
	RunID string `json:"runId"`

	// Phase is Running until the last unit succeeds.
	Phase RunPhase `json:"phase"`

	// StartedAt is the time the driver began the schedule.
	StartedAt time.Time `json:"startedAt"`

	// UpdatedAt is the time of the last status change.
	UpdatedAt time.Time `json:"updatedAt"`

	// Completed counts units that have succeeded.
	Completed int `json:"completed"`

	// Total is the schedule length.
	Total int `json:"total"`

	// Current is the unit being worked on, nil once the run is complete.
	Current *UnitStatus `json:"current,omitempty"`
}
