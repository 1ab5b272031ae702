// Package websocket registers the "websocket" stage: a bidirectional
// WebSocket peer — every inbound event is pushed out as a JSON text
// message, and every JSON message received off the connection is decoded
// into a new event and forwarded downstream, generalized from the
// teacher's stages/websocket.go client/server duplex.
package websocket

import (
	"fmt"
	"net/http"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/haginara/logcabin/pkg/event"
	"github.com/haginara/logcabin/pkg/registry"
	"github.com/haginara/logcabin/pkg/stage"
)

func init() {
	registry.Register("websocket", New)
}

type wsStage struct {
	*stage.StageBase

	url     string
	timeout time.Duration

	conn     *gorilla.Conn
	readDone chan struct{}
}

// New builds the "websocket" stage. Options: "url" (required, ws:// or
// wss://), "timeout" (handshake timeout in milliseconds, default 10000).
func New(name string, opts registry.Options, logger zerolog.Logger) (stage.Stage, error) {
	url := opts.String("url", "")
	if url == "" {
		return nil, fmt.Errorf("%w: websocket: missing required option \"url\"", stage.ErrConfiguration)
	}
	w := &wsStage{
		url:      url,
		timeout:  time.Duration(opts.Int("timeout", 10000)) * time.Millisecond,
		readDone: make(chan struct{}),
	}
	w.StageBase = stage.New(name, w, opts.Int("queue_size", 64), logger)
	return w, nil
}

// Process marshals ev and pushes it out over the connection; it never
// forwards (the counterpart event, if any, arrives independently via
// read()).
func (w *wsStage) Process(ev *event.Event) (bool, error) {
	if w.conn == nil {
		return false, fmt.Errorf("websocket: not connected")
	}
	body, err := ev.ToJSON()
	if err != nil {
		return false, fmt.Errorf("websocket: %w", err)
	}
	if err := w.conn.WriteMessage(gorilla.TextMessage, body); err != nil {
		return false, fmt.Errorf("websocket: %w", err)
	}
	return false, nil
}

func (w *wsStage) Start() {
	w.StageBase.Start()

	dialer := gorilla.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: w.timeout,
	}
	conn, _, err := dialer.DialContext(w.Ctx, w.url, nil)
	if err != nil {
		w.Error().Err(err).Str("url", w.url).Msg("websocket dial failed")
		close(w.readDone)
		return
	}
	w.conn = conn
	go w.read()
}

func (w *wsStage) read() {
	defer close(w.readDone)
	for {
		mt, data, err := w.conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != gorilla.TextMessage && mt != gorilla.BinaryMessage {
			continue
		}
		ev := &event.Event{}
		if err := ev.UnmarshalJSON(data); err != nil {
			w.Warn().Err(err).Msg("could not decode websocket message")
			continue
		}
		if err := w.Output().Put(w.Ctx, ev); err != nil {
			return
		}
	}
}

func (w *wsStage) Stop() {
	if w.conn != nil {
		w.conn.Close()
	}
	<-w.readDone
	w.StageBase.Stop()
}
