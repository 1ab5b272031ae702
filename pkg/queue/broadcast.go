package queue

import (
	"context"

	"github.com/haginara/logcabin/pkg/event"
)

// BroadcastQueue is a put-only facade that, on each Put, delivers a
// structural copy of the event onto every underlying queue (see spec.md §3
// "ownership" — this implementation takes the deep-copy option, not the
// shared-reference-plus-convention option; see DESIGN.md).
//
// Order across underlying queues is unspecified; per underlying queue,
// order matches the put sequence (each branch receives its copies
// sequentially, in Put call order).
type BroadcastQueue struct {
	branches []*Queue
}

// NewBroadcast returns a BroadcastQueue fanning out to the given queues.
func NewBroadcast(branches ...*Queue) *BroadcastQueue {
	return &BroadcastQueue{branches: branches}
}

// Put delivers a Clone() of ev to every branch, stopping at the first error
// (e.g. a closed branch or a cancelled context). Exactly one copy reaches
// each branch that was successfully written.
func (b *BroadcastQueue) Put(ctx context.Context, ev *event.Event) error {
	for _, branch := range b.branches {
		if err := branch.Put(ctx, ev.Clone()); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every branch.
func (b *BroadcastQueue) Close() {
	for _, branch := range b.branches {
		branch.Close()
	}
}
