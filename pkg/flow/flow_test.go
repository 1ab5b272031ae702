package flow

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haginara/logcabin/pkg/condition"
	"github.com/haginara/logcabin/pkg/event"
	"github.com/haginara/logcabin/pkg/queue"
	"github.com/haginara/logcabin/pkg/stage"
)

type funcProcessor func(ev *event.Event) (bool, error)

func (f funcProcessor) Process(ev *event.Event) (bool, error) { return f(ev) }

func identityLeaf(name string) *stage.StageBase {
	return stage.New(name, funcProcessor(func(ev *event.Event) (bool, error) { return true, nil }), 4, zerolog.Nop())
}

// recordingLeaf is a terminal sink: it records every event it sees and
// never forwards, standing in for an output stage like file/log/graphite.
func recordingLeaf(name string, into chan *event.Event) *stage.StageBase {
	return stage.New(name, funcProcessor(func(ev *event.Event) (bool, error) {
		into <- ev
		return false, nil
	}), 4, zerolog.Nop())
}

func TestSequencePreservesOrder(t *testing.T) {
	final := queue.New(8)
	seq := NewSequence(identityLeaf("a"), identityLeaf("b"), identityLeaf("c"))
	in := seq.Setup(final)
	seq.Start()
	defer seq.Stop()

	q := in.(*queue.Queue)
	for i := 0; i < 5; i++ {
		require.NoError(t, q.Put(context.Background(), event.New(map[string]any{"i": i})))
	}

	for i := 0; i < 5; i++ {
		ev, err := final.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, i, ev.Get("i"))
	}
}

func TestFanoutDeliversOneCopyPerBranch(t *testing.T) {
	sinkX := make(chan *event.Event, 4)
	sinkY := make(chan *event.Event, 4)

	fo := NewFanout(recordingLeaf("sinkX", sinkX), recordingLeaf("sinkY", sinkY))
	in := fo.Setup(queue.New(1)) // unused: both branches are terminal sinks
	fo.Start()
	defer fo.Stop()

	require.NoError(t, in.Put(context.Background(), event.New(map[string]any{"f": 1})))

	select {
	case ev := <-sinkX:
		assert.Equal(t, 1, ev.Get("f"))
	case <-time.After(time.Second):
		t.Fatal("sinkX did not observe the event")
	}
	select {
	case ev := <-sinkY:
		assert.Equal(t, 1, ev.Get("f"))
	case <-time.After(time.Second):
		t.Fatal("sinkY did not observe the event")
	}
	assert.Len(t, sinkX, 0)
	assert.Len(t, sinkY, 0)
}

func TestFaninInterleavesOntoSharedOutput(t *testing.T) {
	a := identityLeaf("a")
	b := identityLeaf("b")
	fi := NewFanin(a, b)
	shared := queue.New(8)
	fi.Setup(shared)
	fi.Start()
	defer fi.Stop()

	require.NoError(t, a.Input().Put(context.Background(), event.New(map[string]any{"src": "a"})))
	require.NoError(t, b.Input().Put(context.Background(), event.New(map[string]any{"src": "b"})))

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		ev, err := shared.Get(context.Background())
		require.NoError(t, err)
		seen[ev.Get("src").(string)] = true
	}
	assert.True(t, seen["a"])
	assert.True(t, seen["b"])
}

func TestSwitchRoutesFirstMatch(t *testing.T) {
	chainA := make(chan *event.Event, 4)
	chainB := make(chan *event.Event, 4)
	condA, err := condition.Compile(`kind == "A"`)
	require.NoError(t, err)
	condB, err := condition.Compile(`kind == "B"`)
	require.NoError(t, err)

	sw := NewSwitch("switch", 4, zerolog.Nop())
	require.NoError(t, sw.AddCase(condA, NewSequence(recordingLeaf("a", chainA))))
	require.NoError(t, sw.AddCase(condB, NewSequence(recordingLeaf("b", chainB))))

	passthrough := queue.New(4)
	in := sw.Setup(passthrough)
	sw.Start()
	defer sw.Stop()

	q := in.(*queue.Queue)
	require.NoError(t, q.Put(context.Background(), event.New(map[string]any{"kind": "A"})))
	require.NoError(t, q.Put(context.Background(), event.New(map[string]any{"kind": "B"})))
	require.NoError(t, q.Put(context.Background(), event.New(map[string]any{"kind": "C"})))

	select {
	case ev := <-chainA:
		assert.Equal(t, "A", ev.Get("kind"))
	case <-time.After(time.Second):
		t.Fatal("chain A did not receive its event")
	}
	select {
	case ev := <-chainB:
		assert.Equal(t, "B", ev.Get("kind"))
	case <-time.After(time.Second):
		t.Fatal("chain B did not receive its event")
	}

	ev, err := passthrough.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "C", ev.Get("kind"))
}

func TestSwitchDefaultCaseMustBeLast(t *testing.T) {
	sw := NewSwitch("switch", 4, zerolog.Nop())
	require.NoError(t, sw.AddDefault(NewSequence(identityLeaf("default"))))

	err := sw.AddCase(condition.Default(), NewSequence(identityLeaf("late")))
	assert.ErrorIs(t, err, ErrDefaultNotLast)
}

func TestSwitchDefaultCaseCatchesRemainder(t *testing.T) {
	caught := make(chan *event.Event, 4)
	condA, err := condition.Compile(`kind == "A"`)
	require.NoError(t, err)

	sw := NewSwitch("switch", 4, zerolog.Nop())
	require.NoError(t, sw.AddCase(condA, NewSequence(identityLeaf("a"))))
	require.NoError(t, sw.AddDefault(NewSequence(recordingLeaf("default", caught))))

	final := queue.New(4)
	in := sw.Setup(final)
	sw.Start()
	defer sw.Stop()

	q := in.(*queue.Queue)
	require.NoError(t, q.Put(context.Background(), event.New(map[string]any{"kind": "Z"})))

	select {
	case ev := <-caught:
		assert.Equal(t, "Z", ev.Get("kind"))
	case <-time.After(time.Second):
		t.Fatal("default case did not catch the unmatched event")
	}
}

func TestIfPassthroughOnFalse(t *testing.T) {
	thenChain := make(chan *event.Event, 4)
	cond, err := condition.Compile(`severity == "error"`)
	require.NoError(t, err)

	iff, err := NewIf("if", 4, cond, NewSequence(recordingLeaf("then", thenChain)), zerolog.Nop())
	require.NoError(t, err)

	final := queue.New(4)
	in := iff.Setup(final)
	iff.Start()
	defer iff.Stop()

	q := in.(*queue.Queue)
	require.NoError(t, q.Put(context.Background(), event.New(map[string]any{"severity": "info"})))

	ev, err := final.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "info", ev.Get("severity"))
	assert.Len(t, thenChain, 0)
}
