package elasticsearch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haginara/logcabin/pkg/event"
	"github.com/haginara/logcabin/pkg/queue"
	"github.com/haginara/logcabin/pkg/registry"
)

func TestIndexesEventAgainstConfiguredEndpoint(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"_index":"test","_id":"1","result":"created"}`))
	}))
	defer srv.Close()

	st, err := New("[1] elasticsearch", registry.Options{
		"url":   srv.URL,
		"index": "test",
	}, zerolog.Nop())
	require.NoError(t, err)

	out := queue.New(4)
	in := st.Setup(out)
	st.Start()
	defer st.Stop()

	require.NoError(t, in.Put(context.Background(), event.New(map[string]any{"field": "x"})))
	time.Sleep(50 * time.Millisecond)

	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestMissingIndexIsConfigurationError(t *testing.T) {
	_, err := New("[1] elasticsearch", registry.Options{}, zerolog.Nop())
	assert.Error(t, err)
}
