// Package flow implements the composition operators that wire stage.Stage
// children into a directed graph: Sequence (linear chain), Fanin (N→1
// merge), Fanout (1→N broadcast), and Switch/If (conditional dispatch).
package flow

import (
	"github.com/haginara/logcabin/pkg/queue"
	"github.com/haginara/logcabin/pkg/stage"
)

// Sequence is a linear chain of children. Wiring is right-to-left: given
// the sequence's own output queue q, the last child's Setup(q) returns a
// new queue q', which becomes the second-to-last child's output, and so on
// (spec.md §4.2). The sequence's own input equals the first child's input.
type Sequence struct {
	children []stage.Stage
	input    queue.Sink
}

// NewSequence builds a Sequence over the given children, in order.
func NewSequence(children ...stage.Stage) *Sequence {
	return &Sequence{children: children}
}

// Add appends a child to the end of the chain. Must be called before Setup.
func (s *Sequence) Add(child stage.Stage) {
	s.children = append(s.children, child)
}

// Setup assumes at least one child; an empty Sequence has no input queue to
// offer and is a configuration mistake, not a runtime case to support.
func (s *Sequence) Setup(output queue.Sink) queue.Sink {
	next := output
	for i := len(s.children) - 1; i >= 0; i-- {
		next = s.children[i].Setup(next)
	}
	s.input = next
	return s.input
}

// Start spawns every child's worker(s), in order.
func (s *Sequence) Start() {
	for _, c := range s.children {
		c.Start()
	}
}

// Stop stops children head-to-tail: stopping the first child first lets it
// finish draining its remaining input into the second child's (buffered)
// input queue before that child is asked to stop, so no buffered event is
// lost even though each child closes its own input queue on Stop.
func (s *Sequence) Stop() {
	for _, c := range s.children {
		c.Stop()
	}
}
