// Package stage implements the pipeline stage model: the SimpleStage worker
// loop, its error policy, and the lifecycle contract composite operators
// (pkg/flow) build on.
package stage

import (
	"github.com/haginara/logcabin/pkg/event"
	"github.com/haginara/logcabin/pkg/queue"
)

// Stage is a single node in the pipeline graph: a SimpleStage leaf or a
// MultiStage composite (pkg/flow).
type Stage interface {
	// Setup allocates (or returns, if already allocated) this stage's input
	// and records output as where processed events should go. Both input
	// and output are queue.Sink rather than concrete *queue.Queue: nothing
	// outside a stage ever Gets from another stage's input (only that
	// stage's own worker does), so the wider interface lets a Fanout return
	// its BroadcastQueue as "the queue to put onto" with no pump goroutine
	// of its own (spec.md §4.4).
	Setup(output queue.Sink) queue.Sink

	// Start spawns the stage's worker(s). Must not block.
	Start()

	// Stop signals the stage to drain remaining input then exit; blocks
	// until all workers have returned.
	Stop()
}

// Processor is the leaf stage's real work: transform or consume an event.
//
// Returning forward=true means "put ev on output"; forward=false means the
// stage has taken responsibility for ev (used by flow.Switch/If to hand
// events off to a sub-chain) and it must not be forwarded. A non-nil error
// triggers the stage's ErrorPolicy.
type Processor interface {
	Process(ev *event.Event) (forward bool, err error)
}

// State is a stage's lifecycle state.
type State int32

const (
	Created State = iota
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}
