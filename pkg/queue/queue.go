// Package queue implements the bounded FIFO that carries events between
// pipeline stages, and the broadcast facade used by fanout.
package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/haginara/logcabin/pkg/event"
)

// ErrClosed is returned by Put/Get once the queue has been closed.
var ErrClosed = errors.New("queue: closed")

// Sink is anything a stage can Put a processed event onto: a plain Queue,
// or a BroadcastQueue (Fanout's put-only fanout facade). StageBase.output
// holds a Sink rather than a concrete *Queue so Fanout can stand in as a
// stage's output with no pump goroutine of its own (spec.md §4.4: "the
// operator has no worker; it exists only as a queue topology").
type Sink interface {
	Put(ctx context.Context, ev *event.Event) error
}

// Queue is a bounded, multi-producer multi-consumer FIFO of events.
//
// Close must only be called once every producer has stopped calling Put.
// In pkg/stage, a stage's Stop() closes that stage's own input queue, and
// the pkg/flow operators stop upstream stages before the stages they feed,
// so the producer of a queue has exited by the time it is closed. Under that
// discipline closing the channel cannot race a concurrent send.
type Queue struct {
	ch      chan *event.Event
	closed  chan struct{}
	closeFn sync.Once
}

// New returns a queue with the given bounded capacity.
func New(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		ch:     make(chan *event.Event, capacity),
		closed: make(chan struct{}),
	}
}

// Put blocks until ev is enqueued, ctx is cancelled, or the queue is closed.
func (q *Queue) Put(ctx context.Context, ev *event.Event) error {
	select {
	case <-q.closed:
		return ErrClosed
	default:
	}
	select {
	case q.ch <- ev:
		return nil
	case <-q.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get blocks until an event is available, ctx is cancelled, or the queue is
// closed and drained.
func (q *Queue) Get(ctx context.Context) (*event.Event, error) {
	select {
	case ev, ok := <-q.ch:
		if !ok {
			return nil, ErrClosed
		}
		return ev, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryGet returns immediately: an event if one is queued, or ok=false
// otherwise; it never blocks.
func (q *Queue) TryGet() (ev *event.Event, ok bool) {
	select {
	case ev, ok = <-q.ch:
		return ev, ok
	default:
		return nil, false
	}
}

// Len reports the number of events currently queued (for test
// synchronization, per spec.md §3).
func (q *Queue) Len() int {
	return len(q.ch)
}

// Close signals that no further events will be put; pending Get calls still
// drain whatever remains buffered before reporting ErrClosed. Safe to call
// more than once.
func (q *Queue) Close() {
	q.closeFn.Do(func() {
		close(q.closed)
		close(q.ch)
	})
}
