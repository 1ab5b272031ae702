package logoutput

import (
	"bytes"
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

func TestLogWritesEventFields(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	st, err := New("[1] log", registry.Options{}, logger)
	require.NoError(t, err)

	out := queue.New(4)
	in := st.Setup(out)
	st.Start()

	require.NoError(t, in.Put(context.Background(), event.New(map[string]any{"field": "x"})))
	time.Sleep(20 * time.Millisecond)
	st.Stop()

	assert.Contains(t, buf.String(), `"field":"x"`)
}
