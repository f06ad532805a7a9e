package fetch

import (
	"context"
	"errors"
	"os"
	"time"
)

// watchdog bounds the wall-clock duration of a single attempt. When the
// timer fires it cancels the attempt context with os.ErrDeadlineExceeded;
// Stop disarms it once the attempt has resolved. Exactly one of
// {fire, stop-before-fire} takes effect per attempt.
type watchdog struct {
	ctx    context.Context
	cancel context.CancelCauseFunc
	timer  *time.Timer
}

func newWatchdog(parent context.Context, timeout time.Duration) *watchdog {
	ctx, cancel := context.WithCancelCause(parent)
	wd := &watchdog{ctx: ctx, cancel: cancel}
	wd.timer = time.AfterFunc(timeout, func() {
		cancel(os.ErrDeadlineExceeded)
	})
	return wd
}

// Context returns the attempt context the transfer must be bound to
func (wd *watchdog) Context() context.Context {
	return wd.ctx
}

// Expired reports whether the deadline fired
func (wd *watchdog) Expired() bool {
	return errors.Is(context.Cause(wd.ctx), os.ErrDeadlineExceeded)
}

// Stop disarms the timer and releases the context. Safe to call after
// the timer has fired; the fired cause is kept.
func (wd *watchdog) Stop() {
	wd.timer.Stop()
	wd.cancel(nil)
}
