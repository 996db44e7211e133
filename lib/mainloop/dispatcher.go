// Copyright 2026 The Editorlink Authors
// SPDX-License-Identifier: Apache-2.0

package mainloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrTimeout is returned by [Pending.Wait] when the wait ceiling
// elapses before the host executes the work item.
var ErrTimeout = errors.New("mainloop: work item not executed within the wait ceiling")

// Default wait parameters. The ceiling is deliberately generous: the
// host loop may be legitimately unavailable for tens of seconds while
// it recompiles scripts or imports assets.
const (
	DefaultPollInterval = 5 * time.Second
	DefaultWaitCeiling  = 30 * time.Second
)

// WorkFunc is a unit of work destined for the host thread.
type WorkFunc func() (any, error)

// Pending is the submitting goroutine's handle on a queued work item.
// It is completed exactly once, by the host tick that executes the
// item. A Pending abandoned after timeout may still complete later;
// its result is simply never observed.
type Pending struct {
	done   chan struct{}
	result any
	err    error
}

// Done returns a channel closed when the work item has executed.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Result returns the work item's outcome. Valid only after Done is
// closed.
func (p *Pending) Result() (any, error) {
	return p.result, p.err
}

func (p *Pending) complete(result any, err error) {
	p.result = result
	p.err = err
	close(p.done)
}

// WaitOptions controls the bounded poll in [Pending.Wait]. Zero values
// fall back to the package defaults.
type WaitOptions struct {
	// PollInterval is how often the wait wakes to emit a liveness
	// diagnostic while the item has not completed.
	PollInterval time.Duration

	// Ceiling is the hard upper bound on the total wait.
	Ceiling time.Duration

	// OnPoll, if non-nil, is invoked after each unsuccessful poll with
	// the elapsed wait time. The bridge uses it to log host-busy
	// indicators so an operator can tell a frozen host from a busy one.
	OnPoll func(elapsed time.Duration)
}

// Wait blocks until the work item completes, the ceiling elapses, or
// ctx is cancelled, waking every poll interval to report liveness.
// Returns ErrTimeout when the ceiling is exceeded and ctx.Err() on
// cancellation; either way the item stays queued and may still execute
// later, but its result is discarded.
func (p *Pending) Wait(ctx context.Context, options WaitOptions) (any, error) {
	interval := options.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ceiling := options.Ceiling
	if ceiling <= 0 {
		ceiling = DefaultWaitCeiling
	}

	first := interval
	if ceiling < first {
		first = ceiling
	}
	deadline := time.Now().Add(ceiling)
	timer := time.NewTimer(first)
	defer timer.Stop()

	for {
		select {
		case <-p.done:
			return p.result, p.err
		case <-ctx.Done():
			return nil, ctx.Err()
		case now := <-timer.C:
			if !now.Before(deadline) {
				return nil, ErrTimeout
			}
			if options.OnPoll != nil {
				options.OnPoll(ceiling - deadline.Sub(now))
			}
			next := interval
			if remaining := deadline.Sub(now); remaining < next {
				next = remaining
			}
			timer.Reset(next)
		}
	}
}

// Dispatcher is the thread-safe submission queue feeding the host
// thread. Any goroutine may Submit; only the host tick calls Drain.
type Dispatcher struct {
	mu    sync.Mutex
	queue []*queuedItem
}

type queuedItem struct {
	work    WorkFunc
	pending *Pending
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Submit queues a work item for the next host tick and returns the
// handle the caller can wait on. Safe for concurrent use.
func (d *Dispatcher) Submit(work WorkFunc) *Pending {
	pending := &Pending{done: make(chan struct{})}
	d.mu.Lock()
	d.queue = append(d.queue, &queuedItem{work: work, pending: pending})
	d.mu.Unlock()
	return pending
}

// Len reports the number of items currently queued.
func (d *Dispatcher) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

// Drain executes every item queued so far, in submission order, and
// completes each item's Pending with the produced value or error.
// Items submitted while Drain runs wait for the next tick. Returns the
// number of items executed.
//
// Drain must only be called from the host's cooperative execution
// context: that exclusivity is what makes handler code safe against
// the host's own per-tick work.
func (d *Dispatcher) Drain() int {
	d.mu.Lock()
	batch := d.queue
	d.queue = nil
	d.mu.Unlock()

	for _, item := range batch {
		item.pending.complete(runProtected(item.work))
	}
	return len(batch)
}

// runProtected executes a work item, converting a panic into an error
// so one misbehaving handler cannot take down the host tick.
func runProtected(work WorkFunc) (result any, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			result = nil
			err = fmt.Errorf("work item panic: %v", recovered)
		}
	}()
	return work()
}
