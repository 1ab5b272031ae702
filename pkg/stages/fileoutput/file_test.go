package fileoutput

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haginara/logcabin/pkg/event"
	"github.com/haginara/logcabin/pkg/queue"
	"github.com/haginara/logcabin/pkg/registry"
)

func TestSimpleWritesTemplatedFilenames(t *testing.T) {
	dir := t.TempDir()

	st, err := New("[1] file", registry.Options{
		"filename": filepath.Join(dir, "output_{program}.log"),
	}, zerolog.Nop())
	require.NoError(t, err)

	out := queue.New(4)
	in := st.Setup(out)
	st.Start()

	require.NoError(t, in.Put(context.Background(), event.New(map[string]any{"program": "httpd"})))
	require.NoError(t, in.Put(context.Background(), event.New(map[string]any{"program": "ntpd"})))
	time.Sleep(20 * time.Millisecond)
	st.Stop()

	httpdBody, err := os.ReadFile(filepath.Join(dir, "output_httpd.log"))
	require.NoError(t, err)
	assert.Contains(t, string(httpdBody), `"program":"httpd"`)

	ntpdBody, err := os.ReadFile(filepath.Join(dir, "output_ntpd.log"))
	require.NoError(t, err)
	assert.Contains(t, string(ntpdBody), `"program":"ntpd"`)
}

func TestMaxSizeRollsAndEmitsFileroll(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "output.log")

	st, err := New("[1] file", registry.Options{
		"filename": path,
		"max_size": 16,
	}, zerolog.Nop())
	require.NoError(t, err)

	out := queue.New(4)
	in := st.Setup(out)
	st.Start()

	require.NoError(t, in.Put(context.Background(), event.New(map[string]any{"program": "httpd"})))
	require.NoError(t, in.Put(context.Background(), event.New(map[string]any{"program": "ntpd"})))
	time.Sleep(20 * time.Millisecond)
	st.Stop()

	_, err = os.Stat(path + ".1")
	require.NoError(t, err)
	_, err = os.Stat(path)
	require.NoError(t, err)

	var rolled *event.Event
	for out.Len() > 0 {
		ev, err := out.Get(context.Background())
		require.NoError(t, err)
		if ev.HasTag("fileroll") {
			rolled = ev
		}
	}
	require.NotNil(t, rolled)
	assert.Equal(t, path+".1", rolled.Get("filename"))
}

func TestMaxCountPrunesOldestRolledFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "output.log")

	st, err := New("[1] file", registry.Options{
		"filename":  path,
		"max_size":  16,
		"max_count": 2,
	}, zerolog.Nop())
	require.NoError(t, err)

	out := queue.New(64)
	in := st.Setup(out)
	st.Start()

	for i := 0; i < 10; i++ {
		require.NoError(t, in.Put(context.Background(), event.New(map[string]any{"program": "httpd"})))
		require.NoError(t, in.Put(context.Background(), event.New(map[string]any{"program": "ntpd"})))
	}
	time.Sleep(50 * time.Millisecond)
	st.Stop()

	_, err = os.Stat(path + ".3")
	assert.Error(t, err, "a third rolled file must have been pruned")
}
