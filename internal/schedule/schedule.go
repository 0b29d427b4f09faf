// Package schedule enumerates the work units of a driver run.
//
// A run is partitioned along two dimensions: the year of the source dataset
// (outer) and a latitude index range of fixed stride (inner). Enumeration is
// pure and deterministic: the same parameters always produce the same ordered
// schedule, which operators rely on when reasoning about where a restarted
// run will begin.
package schedule

import (
	"fmt"
)

// WorkUnit identifies one invocation of the external sync worker.
// It is a value type and never mutated after enumeration.
type WorkUnit struct {
	// Year selects the yearly source dataset.
	Year int `json:"year"`

	// RangeStart is the inclusive lower latitude index of the chunk.
	RangeStart int `json:"rangeStart"`

	// RangeEnd is the exclusive upper latitude index of the chunk.
	RangeEnd int `json:"rangeEnd"`
}

// ID returns a stable identifier for the unit, used in status reporting
// and log lines.
func (u WorkUnit) ID() string {
	return fmt.Sprintf("%d/%d-%d", u.Year, u.RangeStart, u.RangeEnd)
}

// Params bound the enumeration. All values come from configuration and are
// validated before any worker invocation is attempted.
type Params struct {
	// StartYear and EndYear bound the outer dimension, inclusive.
	StartYear int
	EndYear   int

	// Stride is the chunk width of the inner dimension.
	Stride int

	// FinalBound is the true exclusive upper limit of the inner dimension.
	// The last chunk is clamped to it when FinalBound is not a multiple of
	// Stride.
	FinalBound int
}

// Validate reports a configuration error for parameters that cannot produce
// a non-empty, well-formed schedule.
func (p Params) Validate() error {
	if p.EndYear < p.StartYear {
		return fmt.Errorf("empty year interval: start %d is after end %d", p.StartYear, p.EndYear)
	}
	if p.Stride <= 0 {
		return fmt.Errorf("stride must be positive, got %d", p.Stride)
	}
	if p.FinalBound <= 0 {
		return fmt.Errorf("final bound must be positive, got %d", p.FinalBound)
	}
	return nil
}

// Build enumerates the full ordered schedule for the given parameters.
//
// Years ascend in the outer position; range chunks ascend from 0 by Stride in
// the inner position. Each chunk's end is min(start+Stride, FinalBound), so
// the chunks cover [0, FinalBound) contiguously with no gaps or overlaps and
// the last chunk may be narrower than Stride.
func Build(p Params) ([]WorkUnit, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	units := make([]WorkUnit, 0, p.unitCount())
	for year := p.StartYear; year <= p.EndYear; year++ {
		for start := 0; start < p.FinalBound; start += p.Stride {
			end := start + p.Stride
			if end > p.FinalBound {
				end = p.FinalBound
			}
			units = append(units, WorkUnit{Year: year, RangeStart: start, RangeEnd: end})
		}
	}
	return units, nil
}

// unitCount returns the exact schedule length for pre-allocation.
func (p Params) unitCount() int {
	perYear := (p.FinalBound + p.Stride - 1) / p.Stride
	return perYear * (p.EndYear - p.StartYear + 1)
}
