package graphite

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haginara/logcabin/pkg/event"
	"github.com/haginara/logcabin/pkg/queue"
	"github.com/haginara/logcabin/pkg/registry"
)

func TestGraphiteSendsPlaintextLines(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	lines := make(chan string, 8)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		sc := bufio.NewScanner(conn)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	st, err := New("[1] graphite", registry.Options{
		"host": "127.0.0.1",
		"port": addr.Port,
	}, zerolog.Nop())
	require.NoError(t, err)

	out := queue.New(4)
	in := st.Setup(out)
	st.Start()
	defer st.Stop()

	ev := event.New(map[string]any{
		"metric": "a.b.c",
		"stats":  map[string]float64{"mean": 1.5, "min": 1.0},
	})
	require.NoError(t, in.Put(context.Background(), ev))

	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case line := <-lines:
			seen[line] = true
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for graphite line")
		}
	}
	for line := range seen {
		assert.True(t, strings.HasPrefix(line, "a.b.c."))
	}
}
