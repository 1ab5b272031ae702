package jsonfilter

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

func TestConsumeDefaultRemovesSourceField(t *testing.T) {
	st, err := New("[1] json", registry.Options{}, zerolog.Nop())
	require.NoError(t, err)

	out := queue.New(4)
	in := st.Setup(out)
	st.Start()
	defer st.Stop()

	require.NoError(t, in.Put(context.Background(), event.New(map[string]any{"data": `{"a":1}`})))

	ev, err := out.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float64(1), ev.Get("a"))
	assert.Nil(t, ev.Get("data"))
}

func TestConsumeFalseKeepsSourceField(t *testing.T) {
	st, err := New("[1] json", registry.Options{"consume": false}, zerolog.Nop())
	require.NoError(t, err)

	out := queue.New(4)
	in := st.Setup(out)
	st.Start()
	defer st.Stop()

	require.NoError(t, in.Put(context.Background(), event.New(map[string]any{"data": `{"a":1}`})))

	ev, err := out.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float64(1), ev.Get("a"))
	assert.Equal(t, `{"a":1}`, ev.Get("data"))
}

func TestBadJSONIsRejected(t *testing.T) {
	st, err := New("[1] json", registry.Options{"consume": false}, zerolog.Nop())
	require.NoError(t, err)

	out := queue.New(4)
	in := st.Setup(out)
	st.Start()
	defer st.Stop()

	require.NoError(t, in.Put(context.Background(), event.New(map[string]any{"data": `"invalid`})))

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 0, out.Len())
}
