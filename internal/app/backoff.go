package app

import (
	"context"
	"time"
)

// Default reconnect backoff: 5s, 10s, 15s ... capped at 30s.
const (
	DefaultBackoffStep = 5 * time.Second
	DefaultBackoffMax  = 30 * time.Second
)

// backoff implements capped linear backoff for reconnect attempts.
// A fresh backoff is created for every connect cycle, so the schedule
// restarts at one step after each successful connection.
type backoff struct {
	step    time.Duration
	max     time.Duration
	attempt int
}

// newBackoff creates a backoff starting at attempt 1.
func newBackoff(step, max time.Duration) *backoff {
	return &backoff{step: step, max: max, attempt: 1}
}

// Attempt returns the number of the attempt about to be made.
func (b *backoff) Attempt() int {
	return b.attempt
}

// Current returns the wait after a failure of the current attempt.
func (b *backoff) Current() time.Duration {
	return reconnectDelay(b.attempt, b.step, b.max)
}

// Wait sleeps for the current delay, then advances to the next attempt.
// Returns ctx.Err() if the context ends first.
func (b *backoff) Wait(ctx context.Context, sleep sleepFunc) error {
	d := b.Current()
	b.attempt++
	return sleep(ctx, d)
}

// Reset restarts the schedule at attempt 1.
func (b *backoff) Reset() {
	b.attempt = 1
}

// reconnectDelay returns min(step*attempt, max).
func reconnectDelay(attempt int, step, max time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := step * time.Duration(attempt)
	if d > max || d <= 0 {
		return max
	}
	return d
}

// sleepFunc waits for d or until ctx is done.
type sleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
