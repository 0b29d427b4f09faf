// Package worker invokes the external ingestion worker for single work units.
//
// The worker contract is positional: the worker receives the dataset path,
// the variable name and four range bounds on its command line, and reads the
// destination store address from its environment. The driver never parses
// worker output; the exit status alone decides success.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/seastate/bsose-sync/internal/config"
	"github.com/seastate/bsose-sync/internal/schedule"
)

//go:generate mockgen -destination=mocks/mock_runner.go -package=mocks -source=worker.go Runner

// Runner invokes the external worker for one work unit. Run blocks until the
// worker exits or ctx is cancelled, and returns nil only when the worker
// exits with status zero.
type Runner interface {
	Run(ctx context.Context, unit schedule.WorkUnit) error
}

// Invocation is a fully resolved worker command line for one work unit.
type Invocation struct {
	// Args are the positional worker arguments:
	// datasetPath variable rangeStart rangeEnd lonStart lonEnd
	Args []string

	// Env holds the destination store address as a NAME=value pair.
	Env []string
}

// yearToken is replaced with the unit's year in the dataset path template.
const yearToken = "{year}"

// InvocationBuilder resolves work units to worker invocations.
type InvocationBuilder struct {
	template string
	variable string
	lonStart int
	lonEnd   int
	destEnv  string
	destURI  string
}

// NewInvocationBuilder creates a builder from the worker settings. destEnv is
// the name of the environment variable the worker reads the destination
// address from, and destURI its value.
func NewInvocationBuilder(cfg *config.WorkerConfig, destEnv, destURI string) *InvocationBuilder {
	return &InvocationBuilder{
		template: cfg.DatasetPathTemplate,
		variable: cfg.Variable,
		lonStart: cfg.LonStart,
		lonEnd:   cfg.LonEnd,
		destEnv:  destEnv,
		destURI:  destURI,
	}
}

// Build resolves the invocation for a single work unit.
func (b *InvocationBuilder) Build(unit schedule.WorkUnit) Invocation {
	year := strconv.Itoa(unit.Year)
	return Invocation{
		Args: []string{
			strings.ReplaceAll(b.template, yearToken, year),
			b.variable,
			strconv.Itoa(unit.RangeStart),
			strconv.Itoa(unit.RangeEnd),
			strconv.Itoa(b.lonStart),
			strconv.Itoa(b.lonEnd),
		},
		Env: []string{fmt.Sprintf("%s=%s", b.destEnv, b.destURI)},
	}
}

// NewRunner creates the Runner selected by the worker configuration.
func NewRunner(cfg *config.Config) (Runner, error) {
	destURI, err := cfg.GetDestinationURI()
	if err != nil {
		return nil, err
	}

	builder := NewInvocationBuilder(&cfg.Worker, cfg.GetDestinationEnv(), destURI)

	switch cfg.Worker.Kind {
	case config.WorkerKindExec:
		return NewExecRunner(cfg.Worker.Binary, builder), nil
	case config.WorkerKindDocker:
		return NewDockerRunner(&cfg.Worker, builder)
	default:
		return nil, fmt.Errorf("unsupported worker kind: %s", cfg.Worker.Kind)
	}
}
