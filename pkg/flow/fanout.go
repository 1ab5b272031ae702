package flow

import (
	"github.com/haginara/logcabin/pkg/queue"
	"github.com/haginara/logcabin/pkg/stage"
)

// Fanout broadcasts each incoming event to all N children (spec.md §4.4).
// Every child's Setup(output) yields its own input queue; Fanout's own
// input is a BroadcastQueue over those child inputs, so a Put on it
// delivers one copy to every child. Fanout has no worker goroutine of its
// own — it exists purely as a queue topology, which is exactly why
// Setup's return type is queue.Sink rather than a concrete *queue.Queue.
//
// Ownership: each branch receives its own Event.Clone() (see
// queue.BroadcastQueue), not a shared reference, so a branch may set,
// delete and tag fields without affecting siblings. Nested values inside a
// field (maps, slices) are still shared between branches.
type Fanout struct {
	children []stage.Stage
}

// NewFanout builds a Fanout over the given children, each a branch.
func NewFanout(children ...stage.Stage) *Fanout {
	return &Fanout{children: children}
}

// Add appends a branch. Must be called before Setup.
func (f *Fanout) Add(child stage.Stage) {
	f.children = append(f.children, child)
}

func (f *Fanout) Setup(output queue.Sink) queue.Sink {
	branches := make([]*queue.Queue, 0, len(f.children))
	for _, c := range f.children {
		in := c.Setup(output)
		q, ok := in.(*queue.Queue)
		if !ok {
			// A branch whose own Setup doesn't yield a plain Queue (e.g. a
			// bare nested Fanout, itself put-only, or a Sequence that starts
			// with one) cannot be fed by a BroadcastQueue. pkg/config adds
			// each branch as built, so such a document also ends up here.
			panic("flow: Fanout branch has no concrete input queue; wrap it in a Sequence")
		}
		branches = append(branches, q)
	}
	return queue.NewBroadcast(branches...)
}

func (f *Fanout) Start() {
	for _, c := range f.children {
		c.Start()
	}
}

func (f *Fanout) Stop() {
	for _, c := range f.children {
		c.Stop()
	}
}
