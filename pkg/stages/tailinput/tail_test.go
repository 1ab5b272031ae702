package tailinput

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haginara/logcabin/pkg/queue"
	"github.com/haginara/logcabin/pkg/registry"
)

func TestTailEmitsAppendedLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	require.NoError(t, os.WriteFile(path, []byte("existing line\n"), 0644))

	st, err := New("[1] tail", registry.Options{
		"path":          path,
		"poll_interval": 10,
	}, zerolog.Nop())
	require.NoError(t, err)

	out := queue.New(4)
	st.Setup(out)
	st.Start()
	defer st.Stop()

	time.Sleep(30 * time.Millisecond) // let it seek past the existing line

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString("new line\n")
	require.NoError(t, err)
	f.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	ev, err := out.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "new line", ev.Get("data"))
}
