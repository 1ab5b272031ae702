package stage

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/haginara/logcabin/pkg/event"
	"github.com/haginara/logcabin/pkg/queue"
)

// StopTimeout bounds how long Stop() waits for the worker to finish an
// in-flight Process call before the stage's context is force-cancelled,
// mirroring the teacher's 1s grace period in core/run.go's runStop.
const StopTimeout = time.Second

// StageBase is the SimpleStage leaf's embedded foundation: it owns the
// input/output queues, lifecycle state, error policy, and worker goroutine.
// A leaf implementation embeds *StageBase and supplies Processor.
type StageBase struct {
	zerolog.Logger

	Name string // human-friendly stage name, used in logs/metrics/errors

	Ctx    context.Context
	Cancel context.CancelCauseFunc

	proc Processor // the leaf's Process(ev) implementation

	input    *queue.Queue
	output   queue.Sink
	capacity int

	onError  ErrorPolicy
	errorTag string

	limiter     *rate.Limiter
	limitSample bool

	state   atomic.Int32 // State
	started atomic.Bool
	stopped atomic.Bool
	done    chan struct{}

	errCount  *metrics.Counter
	procCount *metrics.Counter
}

// New creates a StageBase for the given leaf Processor. capacity bounds the
// stage's input queue (spec.md §3's "bounded" requirement).
func New(name string, proc Processor, capacity int, logger zerolog.Logger) *StageBase {
	ctx, cancel := context.WithCancelCause(context.Background())
	if capacity < 1 {
		capacity = 64
	}
	s := &StageBase{
		Logger:   logger.With().Str("stage", name).Logger(),
		Name:     name,
		Ctx:      ctx,
		Cancel:   cancel,
		proc:     proc,
		capacity: capacity,
		onError:  Reject,
		errorTag: "_unparsed",
		done:     make(chan struct{}),

		errCount:  metrics.GetOrCreateCounter(fmt.Sprintf(`logcabin_stage_errors_total{stage=%q}`, name)),
		procCount: metrics.GetOrCreateCounter(fmt.Sprintf(`logcabin_stage_processed_total{stage=%q}`, name)),
	}
	s.state.Store(int32(Created))
	return s
}

// SetErrorPolicy overrides the default Reject policy, and the tag appended
// under the Tag policy.
func (s *StageBase) SetErrorPolicy(p ErrorPolicy, tag string) {
	s.onError = p
	if tag != "" {
		s.errorTag = tag
	}
}

// SetRateLimit installs a golang.org/x/time/rate limiter on the worker
// loop. When sample is true, events over the limit are dropped instead of
// delayed (the teacher's --limit-rate/--limit-sample flags).
func (s *StageBase) SetRateLimit(eventsPerSec float64, sample bool) {
	if eventsPerSec <= 0 {
		s.limiter = nil
		return
	}
	s.limiter = rate.NewLimiter(rate.Limit(eventsPerSec), max(1, int(eventsPerSec)))
	s.limitSample = sample
}

// State reports the stage's current lifecycle state.
func (s *StageBase) State() State {
	return State(s.state.Load())
}

// Setup allocates this stage's input queue and records output. Idempotent:
// repeated calls return the same queue (spec.md §4.1).
func (s *StageBase) Setup(output queue.Sink) queue.Sink {
	if s.input == nil {
		s.input = queue.New(s.capacity)
	}
	s.output = output
	return s.input
}

// Input returns the stage's input queue (nil until Setup has run).
func (s *StageBase) Input() *queue.Queue { return s.input }

// Output returns the stage's output sink (nil until Setup has run).
func (s *StageBase) Output() queue.Sink { return s.output }

// Start spawns the one worker goroutine, idempotently.
func (s *StageBase) Start() {
	if s.started.Swap(true) {
		return
	}
	if s.input == nil {
		s.Setup(s.output)
	}
	s.state.Store(int32(Running))
	go s.run()
}

// Errorf wraps fmt.Errorf with a stage-name prefix, mirroring the teacher's
// StageBase.Errorf.
func (s *StageBase) Errorf(format string, a ...any) error {
	return fmt.Errorf(s.Name+": "+format, a...)
}

// run is the worker loop: get -> process -> act, per spec.md §4.1.
func (s *StageBase) run() {
	defer close(s.done)
	for {
		if s.limiter != nil && !s.limitSample {
			if err := s.limiter.Wait(s.Ctx); err != nil {
				return
			}
		}

		ev, err := s.input.Get(s.Ctx)
		if err != nil {
			return // context cancelled, or queue closed and drained
		}

		if s.limiter != nil && s.limitSample && !s.limiter.Allow() {
			continue // over the limit: drop the event
		}
		s.handle(ev)
	}
}

// handle runs Process once and acts on its result/error per the stage's
// ErrorPolicy (spec.md §4.1 worker loop semantics).
func (s *StageBase) handle(ev *event.Event) {
	forward, err := s.safeProcess(ev)
	s.procCount.Inc()

	if err != nil {
		s.errCount.Inc()
		s.Warn().Err(err).Msg("process error")
		switch s.onError {
		case Reject:
			return // drop, no forward
		case Tag:
			ev.AddTag(s.errorTag)
			forward = true
		case Ignore:
			forward = true
		}
	}

	if !forward {
		return
	}
	if s.output == nil {
		return
	}
	if err := s.output.Put(s.Ctx, ev); err != nil {
		s.Debug().Err(err).Msg("could not forward event, output closed or context done")
	}
}

// safeProcess recovers a leaf panic into a ProcessError so one misbehaving
// stage cannot crash the pipeline, per spec.md §7.
func (s *StageBase) safeProcess(ev *event.Event) (forward bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = s.Errorf("panic in process: %v", r)
		}
	}()
	return s.proc.Process(ev)
}

// Stop requests the worker to drain remaining input then exit; blocks until
// it does, or until StopTimeout elapses, after which the stage's context is
// force-cancelled — mirroring the teacher's runStop 1s grace-period race.
func (s *StageBase) Stop() {
	if s.stopped.Swap(true) {
		return
	}
	s.state.Store(int32(Stopping))

	if s.input != nil {
		s.input.Close()
	}

	if !s.started.Load() {
		// worker goroutine was never spawned; nothing to drain.
		close(s.done)
	} else {
		select {
		case <-s.done:
		case <-time.After(StopTimeout):
			s.Cancel(ErrStageStopped)
			<-s.done
		}
	}

	s.Cancel(ErrStageStopped)
	s.state.Store(int32(Stopped))
}
