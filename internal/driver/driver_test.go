package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/seastate/bsose-sync/internal/schedule"
	statemocks "github.com/seastate/bsose-sync/internal/state/mocks"
	"github.com/seastate/bsose-sync/internal/status"
	workermocks "github.com/seastate/bsose-sync/internal/worker/mocks"
)

// fakeClock advances instantly and records every requested sleep.
type fakeClock struct {
	now      time.Time
	sleeps   []time.Duration
	sleepErr error
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	if c.sleepErr != nil {
		return c.sleepErr
	}
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

// fakeState applies updates to an in-memory status and records the unit
// phases it observes.
type fakeState struct {
	runID         string
	rs            status.RunStatus
	phases        []status.UnitPhase
	lastSucceeded *status.UnitStatus
}

func (f *fakeState) Initialize(_ context.Context, runID string, units []schedule.WorkUnit) error {
	f.runID = runID
	f.rs = status.RunStatus{
		RunID: runID,
		Phase: status.RunPhaseRunning,
		Total: len(units),
	}
	return nil
}

func (f *fakeState) Get(_ context.Context) (*status.RunStatus, error) {
	copied := f.rs
	return &copied, nil
}

func (f *fakeState) Update(_ context.Context, fn func(*status.RunStatus)) error {
	fn(&f.rs)
	if f.rs.Current != nil {
		f.phases = append(f.phases, f.rs.Current.Phase)
		if f.rs.Current.Phase == status.UnitPhaseSucceeded {
			copied := *f.rs.Current
			f.lastSucceeded = &copied
		}
	}
	return nil
}

func testUnits() []schedule.WorkUnit {
	return []schedule.WorkUnit{
		{Year: 2013, RangeStart: 0, RangeEnd: 10},
		{Year: 2013, RangeStart: 10, RangeEnd: 20},
		{Year: 2014, RangeStart: 0, RangeEnd: 10},
	}
}

func TestDriverRun(t *testing.T) {
	t.Parallel()

	t.Run("runs every unit in schedule order", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		runner := workermocks.NewMockRunner(ctrl)
		units := testUnits()

		gomock.InOrder(
			runner.EXPECT().Run(gomock.Any(), units[0]).Return(nil),
			runner.EXPECT().Run(gomock.Any(), units[1]).Return(nil),
			runner.EXPECT().Run(gomock.Any(), units[2]).Return(nil),
		)

		st := &fakeState{}
		clock := newFakeClock()
		d := New(runner, st, units, WithClock(clock))

		require.NoError(t, d.Run(context.Background()))

		assert.Empty(t, clock.sleeps, "clean runs never sleep")
		assert.Equal(t, status.RunPhaseComplete, st.rs.Phase)
		assert.Equal(t, len(units), st.rs.Completed)
		assert.Nil(t, st.rs.Current)
	})

	t.Run("retries a failing unit in place with a fixed delay", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		runner := workermocks.NewMockRunner(ctrl)
		units := testUnits()
		workerErr := errors.New("worker exited with status 1")

		// The first unit fails twice before succeeding; nothing else may
		// start until it does.
		gomock.InOrder(
			runner.EXPECT().Run(gomock.Any(), units[0]).Return(workerErr),
			runner.EXPECT().Run(gomock.Any(), units[0]).Return(workerErr),
			runner.EXPECT().Run(gomock.Any(), units[0]).Return(nil),
			runner.EXPECT().Run(gomock.Any(), units[1]).Return(nil),
			runner.EXPECT().Run(gomock.Any(), units[2]).Return(nil),
		)

		st := &fakeState{}
		clock := newFakeClock()
		delay := 300 * time.Second
		d := New(runner, st, units,
			WithClock(clock),
			WithBackOff(backoff.NewConstantBackOff(delay)),
		)

		require.NoError(t, d.Run(context.Background()))

		// Two failures, two identical pauses. The delay never grows.
		assert.Equal(t, []time.Duration{delay, delay}, clock.sleeps)
		assert.Equal(t, len(units), st.rs.Completed)
	})

	t.Run("records the unit state machine transitions", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		runner := workermocks.NewMockRunner(ctrl)
		units := testUnits()[:1]

		gomock.InOrder(
			runner.EXPECT().Run(gomock.Any(), units[0]).Return(errors.New("boom")),
			runner.EXPECT().Run(gomock.Any(), units[0]).Return(nil),
		)

		st := &fakeState{}
		d := New(runner, st, units, WithClock(newFakeClock()))

		require.NoError(t, d.Run(context.Background()))

		assert.Equal(t, []status.UnitPhase{
			status.UnitPhaseRunning,
			status.UnitPhaseFailed,
			status.UnitPhaseRunning,
			status.UnitPhaseSucceeded,
		}, st.phases)
	})

	t.Run("counts attempts per unit", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		runner := workermocks.NewMockRunner(ctrl)
		units := testUnits()[:1]

		gomock.InOrder(
			runner.EXPECT().Run(gomock.Any(), units[0]).Return(errors.New("boom")).Times(4),
			runner.EXPECT().Run(gomock.Any(), units[0]).Return(nil),
		)

		st := &fakeState{}
		d := New(runner, st, units, WithClock(newFakeClock()))

		require.NoError(t, d.Run(context.Background()))

		// k failures are followed by exactly one more attempt.
		require.NotNil(t, st.lastSucceeded)
		assert.Equal(t, 5, st.lastSucceeded.Attempts)
	})

	t.Run("stops when cancelled during the retry pause", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		runner := workermocks.NewMockRunner(ctrl)
		units := testUnits()

		runner.EXPECT().Run(gomock.Any(), units[0]).Return(errors.New("boom"))

		st := &fakeState{}
		clock := newFakeClock()
		clock.sleepErr = context.Canceled
		d := New(runner, st, units, WithClock(clock))

		err := d.Run(context.Background())
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 0, st.rs.Completed)
	})

	t.Run("stops when cancelled mid-attempt", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		runner := workermocks.NewMockRunner(ctrl)
		units := testUnits()

		ctx, cancel := context.WithCancel(context.Background())
		runner.EXPECT().Run(gomock.Any(), units[0]).DoAndReturn(
			func(context.Context, schedule.WorkUnit) error {
				cancel()
				return errors.New("worker cancelled")
			})

		st := &fakeState{}
		clock := newFakeClock()
		d := New(runner, st, units, WithClock(clock))

		err := d.Run(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, clock.sleeps, "cancellation must not enter the retry pause")
	})

	t.Run("rejects an empty schedule", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		runner := workermocks.NewMockRunner(ctrl)

		d := New(runner, &fakeState{}, nil)
		assert.ErrorContains(t, d.Run(context.Background()), "schedule is empty")
	})

	t.Run("fails when state initialization fails", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		runner := workermocks.NewMockRunner(ctrl)
		stateService := statemocks.NewMockRunStateService(ctrl)
		units := testUnits()

		stateService.EXPECT().
			Initialize(gomock.Any(), gomock.Any(), units).
			Return(errors.New("state dir not writable"))

		d := New(runner, stateService, units)
		assert.ErrorContains(t, d.Run(context.Background()), "failed to initialize run state")
	})

	t.Run("a status write failure does not stop the run", func(t *testing.T) {
		t.Parallel()

		ctrl := gomock.NewController(t)
		runner := workermocks.NewMockRunner(ctrl)
		stateService := statemocks.NewMockRunStateService(ctrl)
		units := testUnits()[:1]

		stateService.EXPECT().Initialize(gomock.Any(), gomock.Any(), units).Return(nil)
		stateService.EXPECT().Update(gomock.Any(), gomock.Any()).
			Return(errors.New("disk full")).AnyTimes()
		runner.EXPECT().Run(gomock.Any(), units[0]).Return(nil)

		d := New(runner, stateService, units, WithClock(newFakeClock()))
		assert.NoError(t, d.Run(context.Background()))
	})
}

func TestSystemClockSleep(t *testing.T) {
	t.Parallel()

	t.Run("returns after the duration", func(t *testing.T) {
		t.Parallel()

		clock := NewSystemClock()
		start := time.Now()
		require.NoError(t, clock.Sleep(context.Background(), 10*time.Millisecond))
		assert.GreaterOrEqual(t, time.Since(start), 10*time.Millisecond)
	})

	t.Run("unblocks on cancellation", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		clock := NewSystemClock()
		err := clock.Sleep(ctx, time.Hour)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("non-positive durations return immediately", func(t *testing.T) {
		t.Parallel()

		clock := NewSystemClock()
		assert.NoError(t, clock.Sleep(context.Background(), 0))
	})
}
