package stats

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haginara/logcabin/pkg/event"
	"github.com/haginara/logcabin/pkg/queue"
	"github.com/haginara/logcabin/pkg/registry"
)

func TestStatsAccumulatesAndFlushesOnStop(t *testing.T) {
	st, err := New("[1] stats", registry.Options{
		"period": 60,
		"metrics": map[string]any{
			"rails.{controller}.{action}.{0}": "*",
		},
	}, zerolog.Nop())
	require.NoError(t, err)

	out := queue.New(16)
	in := st.Setup(out)
	st.Start()

	evs := []*event.Event{
		event.New(map[string]any{"controller": "home", "action": "index", "duration": 3.0}),
		event.New(map[string]any{"controller": "home", "action": "index", "duration": 4.0}),
		event.New(map[string]any{"controller": "home", "action": "index", "duration": 3.5}),
	}
	for _, ev := range evs {
		require.NoError(t, in.Put(t.Context(), ev))
	}

	// drain the 3 passthrough events first (Process always forwards).
	for i := 0; i < 3; i++ {
		_, err := out.Get(t.Context())
		require.NoError(t, err)
	}

	st.Stop() // flushes remaining windows before StageBase.Stop drains

	found := false
	for out.Len() > 0 {
		ev, err := out.Get(t.Context())
		require.NoError(t, err)
		if ev.Get("metric") == "rails.home.index.duration" {
			found = true
			stat := ev.Get("stats").(map[string]float64)
			assert.Equal(t, float64(3), stat["count"])
			assert.Equal(t, 3.0, stat["min"])
			assert.Equal(t, 4.0, stat["max"])
			assert.Equal(t, []string{"stat"}, ev.Tags)
		}
	}
	assert.True(t, found, "expected a rails.home.index.duration stat event")
}

func TestNumericRecognizesCommonTypes(t *testing.T) {
	_, ok := numeric("not a number")
	assert.False(t, ok)

	v, ok := numeric(42)
	assert.True(t, ok)
	assert.Equal(t, float64(42), v)
}

func TestPercentileMatchesKnownValues(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}
	assert.Equal(t, 3.0, percentile(sorted, 50))
	assert.Equal(t, 1.0, percentile(sorted, 0))
	assert.Equal(t, 5.0, percentile(sorted, 100))
}
