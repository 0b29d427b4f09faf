package driver

import (
	"context"
	"time"
)

// Clock abstracts time for the retry loop so tests can run without real
// sleeping.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Sleep blocks for d or until ctx is cancelled, in which case it returns
	// the context error.
	Sleep(ctx context.Context, d time.Duration) error
}

// systemClock is the production Clock backed by the runtime timer.
type systemClock struct{}

// NewSystemClock returns a Clock backed by real time.
func NewSystemClock() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
