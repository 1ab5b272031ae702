package queue

import (
	"context"
	"testing"
	"time"

	"github.com/haginara/logcabin/pkg/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGetFIFO(t *testing.T) {
	q := New(4)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, q.Put(ctx, event.New(map[string]any{"i": i})))
	}
	assert.Equal(t, 3, q.Len())

	for i := 0; i < 3; i++ {
		ev, err := q.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, ev.Get("i"))
	}
}

func TestGetBlocksUntilPut(t *testing.T) {
	q := New(1)
	ctx := context.Background()
	done := make(chan *event.Event, 1)

	go func() {
		ev, err := q.Get(ctx)
		require.NoError(t, err)
		done <- ev
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-done:
		t.Fatal("Get returned before any Put")
	default:
	}

	require.NoError(t, q.Put(ctx, event.New(map[string]any{"a": 1})))

	select {
	case ev := <-done:
		assert.Equal(t, 1, ev.Get("a"))
	case <-time.After(time.Second):
		t.Fatal("Get never unblocked")
	}
}

func TestGetRespectsContextCancel(t *testing.T) {
	q := New(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Get(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCloseDrainsThenErrClosed(t *testing.T) {
	q := New(4)
	ctx := context.Background()
	require.NoError(t, q.Put(ctx, event.New(map[string]any{"a": 1})))

	q.Close()

	ev, err := q.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, ev.Get("a"))

	_, err = q.Get(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestCloseIsIdempotent(t *testing.T) {
	q := New(1)
	q.Close()
	assert.NotPanics(t, q.Close)
}

func TestBroadcastDeliversOneCopyPerBranch(t *testing.T) {
	a, b := New(1), New(1)
	bq := NewBroadcast(a, b)
	ctx := context.Background()

	orig := event.New(map[string]any{"f": 1})
	require.NoError(t, bq.Put(ctx, orig))

	evA, err := a.Get(ctx)
	require.NoError(t, err)
	evB, err := b.Get(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, evA.Get("f"))
	assert.Equal(t, 1, evB.Get("f"))
	assert.NotSame(t, evA, evB)

	// mutating one branch's copy must not affect the other (copy-on-write).
	evA.Set("f", 2)
	assert.Equal(t, 1, evB.Get("f"))
}
