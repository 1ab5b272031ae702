package flow

import (
	"github.com/haginara/logcabin/pkg/queue"
	"github.com/haginara/logcabin/pkg/stage"
)

// Fanin merges N children onto one shared output queue (spec.md §4.3).
// Every child gets its own independent input queue; events from all
// children interleave on the shared output in arrival order, with no
// ordering guarantee across children. Fanin is typically the root of a
// pipeline: its children are independent input stages that generate events
// rather than consume them, so the single queue.Sink Setup returns (the
// first child's input) is rarely fed by anything external — callers that
// need to reach every child's own input queue individually should use
// Inputs() instead.
type Fanin struct {
	children []stage.Stage
}

// NewFanin builds a Fanin over the given children.
func NewFanin(children ...stage.Stage) *Fanin {
	return &Fanin{children: children}
}

// Add appends a child. Must be called before Setup.
func (f *Fanin) Add(child stage.Stage) {
	f.children = append(f.children, child)
}

func (f *Fanin) Setup(output queue.Sink) queue.Sink {
	var first queue.Sink
	for i, c := range f.children {
		in := c.Setup(output)
		if i == 0 {
			first = in
		}
	}
	return first
}

// Inputs returns every child's own input queue, in registration order.
// Must be called after Setup.
func (f *Fanin) Inputs() []*queue.Queue {
	ins := make([]*queue.Queue, len(f.children))
	for i, c := range f.children {
		if s, ok := c.(interface{ Input() *queue.Queue }); ok {
			ins[i] = s.Input()
		}
	}
	return ins
}

func (f *Fanin) Start() {
	for _, c := range f.children {
		c.Start()
	}
}

func (f *Fanin) Stop() {
	for _, c := range f.children {
		c.Stop()
	}
}
