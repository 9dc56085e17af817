// Package throttle counts job submissions per user in fixed daily windows.
package throttle

import (
	"context"
	"errors"
	"time"

	"github.com/venicegeo/pz-idam/internal/db/models"
	"github.com/venicegeo/pz-idam/internal/logging"
	"github.com/venicegeo/pz-idam/internal/repository"
	"github.com/venicegeo/pz-idam/internal/telemetry"
)

// DefaultWindow is the length of one counting window.
const DefaultWindow = 24 * time.Hour

// Counter tracks invocations per user and component.
type Counter struct {
	repo   repository.ThrottleRepository
	window time.Duration
	now    func() time.Time
}

// NewCounter creates a Counter with the default window.
func NewCounter(repo repository.ThrottleRepository) *Counter {
	return &Counter{repo: repo, window: DefaultWindow, now: time.Now}
}

// WithWindow overrides the window length. Non-positive values are ignored.
func (c *Counter) WithWindow(window time.Duration) *Counter {
	if window > 0 {
		c.window = window
	}
	return c
}

// WithClock replaces the time source (tests).
func (c *Counter) WithClock(now func() time.Time) *Counter {
	c.now = now
	return c
}

// WindowStart returns the start of the current window. Windows are aligned
// to the Unix epoch in UTC.
func (c *Counter) WindowStart() time.Time {
	return c.now().UTC().Truncate(c.window)
}

// Increment adds one invocation. Failures are logged and dropped so that a
// broken counter never blocks the job pipeline.
func (c *Counter) Increment(ctx context.Context, username string, component models.ThrottleComponent) {
	err := c.repo.Increment(ctx, username, component, c.WindowStart())
	telemetry.Identity().RecordThrottleIncrement(ctx, string(component), err)
	if err != nil {
		logging.Errorf("Error updating Throttle for Component %s for User %s: %v. The users Throttles could not be updated.", component, username, err)
	}
}

// CurrentCount returns the invocations in the current window.
func (c *Counter) CurrentCount(ctx context.Context, username string, component models.ThrottleComponent) (int, error) {
	record, err := c.repo.Get(ctx, username, component)
	if errors.Is(err, repository.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if record.WindowStart.Before(c.WindowStart()) {
		return 0, nil
	}
	return record.Invocations, nil
}

// ResetAll zeroes every counter left over from an earlier window. Counts
// taken in the current window survive, so running it mid-window is a no-op.
func (c *Counter) ResetAll(ctx context.Context) error {
	start := c.WindowStart()
	if err := c.repo.ResetAll(ctx, start); err != nil {
		return err
	}
	logging.Infof("cleared throttle counters older than %s", start.Format(time.RFC3339))
	return nil
}

// CountExceeding returns how many users are over ceiling for component.
func (c *Counter) CountExceeding(ctx context.Context, component models.ThrottleComponent, ceiling int) (int, error) {
	return c.repo.CountExceeding(ctx, component, c.WindowStart(), ceiling)
}
