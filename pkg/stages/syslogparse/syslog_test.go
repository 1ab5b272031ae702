package syslogparse

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haginara/logcabin/pkg/event"
	"github.com/haginara/logcabin/pkg/queue"
	"github.com/haginara/logcabin/pkg/registry"
)

func newStage(t *testing.T, opts registry.Options) (*queue.Queue, *queue.Queue) {
	t.Helper()
	st, err := New("[1] syslog", opts, zerolog.Nop())
	require.NoError(t, err)
	out := queue.New(8)
	in := st.Setup(out)
	st.Start()
	t.Cleanup(st.Stop)
	return in.(*queue.Queue), out
}

func newStoppableStage(t *testing.T, opts registry.Options) (*queue.Queue, *queue.Queue, func()) {
	t.Helper()
	st, err := New("[1] syslog", opts, zerolog.Nop())
	require.NoError(t, err)
	out := queue.New(8)
	in := st.Setup(out)
	st.Start()
	return in.(*queue.Queue), out, st.Stop
}

func TestForwardFormatWithPID(t *testing.T) {
	in, out := newStage(t, registry.Options{})
	require.NoError(t, in.Put(context.Background(),
		event.New(map[string]any{"data": "<174>Nov 30 19:56:13 host01 prog[1234]: log message"})))

	ev, err := out.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "local5", ev.Get("facility"))
	assert.Equal(t, "Informational", ev.Get("severity"))
	assert.Equal(t, "host01", ev.Get("host"))
	assert.Equal(t, "prog", ev.Get("program"))
	assert.Equal(t, "1234", ev.Get("pid"))
	assert.Equal(t, "log message", ev.Get("message"))
}

func TestTraditionalFileFormatWithoutPID(t *testing.T) {
	in, out := newStage(t, registry.Options{})
	require.NoError(t, in.Put(context.Background(),
		event.New(map[string]any{"data": "<174>Mar  4 11:57:46 micro01 testlog.py: test"})))

	ev, err := out.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "micro01", ev.Get("host"))
	assert.Equal(t, "testlog.py", ev.Get("program"))
	assert.Nil(t, ev.Get("pid"))
	assert.Equal(t, "test", ev.Get("message"))
}

func TestISO8601ForwardFormat(t *testing.T) {
	in, out := newStage(t, registry.Options{})
	require.NoError(t, in.Put(context.Background(),
		event.New(map[string]any{"data": "<174>2012-12-07T13:44:27.710956+01:00 test01 program: test"})))

	ev, err := out.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test01", ev.Get("host"))
	assert.Equal(t, "program", ev.Get("program"))
	assert.Equal(t, "test", ev.Get("message"))
}

func TestBadPacketIsTaggedWhenOnErrorIsTag(t *testing.T) {
	in, out := newStage(t, registry.Options{"on_error": "tag"})
	require.NoError(t, in.Put(context.Background(),
		event.New(map[string]any{"data": "<>Nov 30 19:56:13 host01 prog[1234]: log message"})))

	ev, err := out.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "invalid syslog", ev.Get("message"))
	assert.Equal(t, []string{"_unparsed"}, ev.Tags)
}

func TestBadPacketIsDroppedByDefault(t *testing.T) {
	in, out, stop := newStoppableStage(t, registry.Options{})
	require.NoError(t, in.Put(context.Background(),
		event.New(map[string]any{"data": "<>Nov 30 19:56:13 host01 prog[1234]: log message"})))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, out.Len())
	stop()
}
