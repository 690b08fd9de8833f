package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bft-labs/go2relay/internal/domain"
)

// DefaultResultTTL bounds how long an unclaimed result is kept.
const DefaultResultTTL = 30 * time.Second

// fifo is a mutex-guarded unbounded queue.
type fifo[T any] struct {
	mu    sync.Mutex
	items []T
}

func (q *fifo[T]) push(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()
}

func (q *fifo[T]) pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	v := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return v, true
}

func (q *fifo[T]) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// waiter is the one-shot completion slot for a result id.
type waiter struct {
	done        chan domain.CommandResult
	submittedAt time.Time

	// awaited is set while a caller is blocked in AwaitResult; the caller's
	// own timeout bounds the entry, so Expire leaves it alone.
	awaited bool
}

// Dispatcher hands requests from HTTP callers to the supervisor's tick loop
// and routes results back. Commands and motion-mode changes travel on
// independent queues so neither starves the other.
type Dispatcher struct {
	commands    fifo[domain.CommandRequest]
	motionModes fifo[domain.MotionModeRequest]

	mu      sync.Mutex
	waiters map[string]*waiter

	ttl   time.Duration
	now   func() time.Time
	newID func() string
}

// NewDispatcher creates a dispatcher that evicts unclaimed results after ttl.
func NewDispatcher(ttl time.Duration) *Dispatcher {
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	return &Dispatcher{
		waiters: make(map[string]*waiter),
		ttl:     ttl,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// Submit enqueues a sport command and returns its result id.
func (d *Dispatcher) Submit(commandID string, apiID int) string {
	id, at := d.register()
	d.commands.push(domain.CommandRequest{
		CommandID:   commandID,
		APIID:       apiID,
		ResultID:    id,
		SubmittedAt: at,
	})
	return id
}

// SubmitMotionMode enqueues a motion-mode change and returns its result id.
func (d *Dispatcher) SubmitMotionMode(mode string) string {
	id, at := d.register()
	d.motionModes.push(domain.MotionModeRequest{
		Mode:        mode,
		ResultID:    id,
		SubmittedAt: at,
	})
	return id
}

// SendMotionPing enqueues a one-way motion-mode message. Nothing is
// registered for it and no result will ever be produced.
func (d *Dispatcher) SendMotionPing(mode, reason string) {
	d.motionModes.push(domain.MotionModeRequest{
		Mode:        mode,
		Reason:      reason,
		OneWay:      true,
		SubmittedAt: d.now(),
	})
}

func (d *Dispatcher) register() (string, time.Time) {
	id := d.newID()
	at := d.now()
	d.mu.Lock()
	d.waiters[id] = &waiter{done: make(chan domain.CommandResult, 1), submittedAt: at}
	d.mu.Unlock()
	return id, at
}

// PopCommand returns the oldest pending command, if any.
func (d *Dispatcher) PopCommand() (domain.CommandRequest, bool) {
	return d.commands.pop()
}

// PopMotionMode returns the oldest pending motion-mode request, if any.
func (d *Dispatcher) PopMotionMode() (domain.MotionModeRequest, bool) {
	return d.motionModes.pop()
}

// Pending returns the queue depths.
func (d *Dispatcher) Pending() (commands, motionModes int) {
	return d.commands.len(), d.motionModes.len()
}

// Complete delivers the result for its ResultID. Returns false if the id is
// unknown: never issued, already completed, timed out, or expired.
func (d *Dispatcher) Complete(result domain.CommandResult) bool {
	d.mu.Lock()
	w, ok := d.waiters[result.ResultID]
	d.mu.Unlock()
	if !ok {
		return false
	}

	// The slot holds one result; a second completion finds it full.
	select {
	case w.done <- result:
		return true
	default:
		return false
	}
}

// AwaitResult blocks until the result for id arrives, timeout elapses or ctx
// ends. On timeout the id is invalidated so a late reply is discarded.
func (d *Dispatcher) AwaitResult(ctx context.Context, id string, timeout time.Duration) (domain.CommandResult, error) {
	d.mu.Lock()
	w, ok := d.waiters[id]
	if ok {
		w.awaited = true
	}
	d.mu.Unlock()
	if !ok {
		return domain.CommandResult{}, domain.ErrUnknownResult
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case res := <-w.done:
		d.forget(id)
		return res, nil
	case <-timer.C:
		d.forget(id)
		return domain.CommandResult{ResultID: id, Message: "timeout"}, domain.ErrRequestTimeout
	case <-ctx.Done():
		d.forget(id)
		return domain.CommandResult{ResultID: id, Message: ctx.Err().Error()}, ctx.Err()
	}
}

func (d *Dispatcher) forget(id string) {
	d.mu.Lock()
	delete(d.waiters, id)
	d.mu.Unlock()
}

// Expire evicts results nobody claimed within the TTL as of now and returns
// how many were removed. Ids a caller is still awaiting are kept.
func (d *Dispatcher) Expire(now time.Time) int {
	cutoff := now.Add(-d.ttl)

	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for id, w := range d.waiters {
		if !w.awaited && w.submittedAt.Before(cutoff) {
			delete(d.waiters, id)
			n++
		}
	}
	return n
}

// Outstanding returns how many result ids are still registered.
func (d *Dispatcher) Outstanding() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.waiters)
}
