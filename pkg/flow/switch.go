package flow

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/haginara/logcabin/pkg/condition"
	"github.com/haginara/logcabin/pkg/event"
	"github.com/haginara/logcabin/pkg/queue"
	"github.com/haginara/logcabin/pkg/stage"
)

// ErrDefaultNotLast is a ConfigurationError: a Switch's default case was
// registered somewhere other than last (spec.md §4.5's "ordering
// violations are a configuration error").
var ErrDefaultNotLast = fmt.Errorf("%w: default case must be registered last", stage.ErrConfiguration)

// switchCase pairs a condition with the sub-sequence it routes to, plus the
// queue that sub-sequence exposes for input once Setup has run.
type switchCase struct {
	cond  condition.Condition
	seq   *Sequence
	input queue.Sink
}

// Switch is a SimpleStage with children: on each event it evaluates its
// cases in registration order and routes the event into the first
// matching sub-sequence, or passes it through unchanged if none match
// (spec.md §4.5). It embeds *stage.StageBase and supplies its own
// Process, Setup, Start, and Stop.
type Switch struct {
	*stage.StageBase
	cases []*switchCase
}

// NewSwitch creates an empty Switch. Cases are added with AddCase /
// AddDefault before Setup is called.
func NewSwitch(name string, capacity int, logger zerolog.Logger) *Switch {
	sw := &Switch{}
	sw.StageBase = stage.New(name, sw, capacity, logger)
	return sw
}

// AddCase registers an ordered (condition, sub-sequence) case. Returns
// ErrDefaultNotLast if a default case was already registered (it must be
// the final case per spec.md §4.5).
func (sw *Switch) AddCase(cond condition.Condition, seq *Sequence) error {
	if n := len(sw.cases); n > 0 && sw.cases[n-1].cond.IsDefault() {
		return ErrDefaultNotLast
	}
	sw.cases = append(sw.cases, &switchCase{cond: cond, seq: seq})
	return nil
}

// AddDefault registers the implicit final "always true" case (spec.md
// §4.5's "implicit final default"). Must be called at most once, and
// after every other AddCase.
func (sw *Switch) AddDefault(seq *Sequence) error {
	return sw.AddCase(condition.Default(), seq)
}

// Setup wires every case's sub-sequence so its tail re-joins output
// (spec.md §4.5: "each sub-sequence is wired so its tail stage emits back
// into Switch's output"), then allocates Switch's own input queue.
func (sw *Switch) Setup(output queue.Sink) queue.Sink {
	for _, c := range sw.cases {
		c.input = c.seq.Setup(output)
	}
	return sw.StageBase.Setup(output)
}

// Start starts every case's sub-sequence, then Switch's own worker.
func (sw *Switch) Start() {
	for _, c := range sw.cases {
		c.seq.Start()
	}
	sw.StageBase.Start()
}

// Stop stops Switch's own worker first (no more new events are routed into
// any case), then drains and stops every case's sub-sequence.
func (sw *Switch) Stop() {
	sw.StageBase.Stop()
	for _, c := range sw.cases {
		c.seq.Stop()
	}
}

// Process implements stage.Processor: evaluate cases in order, route to
// the first match, or pass through unchanged.
func (sw *Switch) Process(ev *event.Event) (bool, error) {
	for _, c := range sw.cases {
		matched, err := c.cond.Eval(ev)
		if err != nil {
			return false, err
		}
		if !matched {
			continue
		}
		if err := c.input.Put(sw.Ctx, ev); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// NewIf builds the special case of Switch with exactly one case and no
// default: on a false condition, the event passes through unchanged
// (spec.md §4.6).
func NewIf(name string, capacity int, cond condition.Condition, then *Sequence, logger zerolog.Logger) (*Switch, error) {
	sw := NewSwitch(name, capacity, logger)
	if err := sw.AddCase(cond, then); err != nil {
		return nil, err
	}
	return sw, nil
}
