// Package tailinput registers the "tail" stage: follows a growing file
// like `tail -f`, emitting one event per line, generalized from the
// teacher's pkg/stages/stdin.go line-reading loop.
package tailinput

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/haginara/logcabin/pkg/event"
	"github.com/haginara/logcabin/pkg/registry"
	"github.com/haginara/logcabin/pkg/stage"
)

func init() {
	registry.Register("tail", New)
}

type tailInput struct {
	*stage.StageBase

	path     string
	field    string
	fromEnd  bool
	pollEvry time.Duration

	stopRead chan struct{}
	readDone chan struct{}
}

// New builds the "tail" input. Options: "path" (required), "field"
// (default "data"), "from_end" (default true — skip existing content and
// only emit new lines), "poll_interval" (milliseconds, default 250).
func New(name string, opts registry.Options, logger zerolog.Logger) (stage.Stage, error) {
	path := opts.String("path", "")
	if path == "" {
		return nil, fmt.Errorf("%w: tail: missing required option \"path\"", stage.ErrConfiguration)
	}
	tl := &tailInput{
		path:     path,
		field:    opts.String("field", "data"),
		fromEnd:  opts.Bool("from_end", true),
		pollEvry: time.Duration(opts.Int("poll_interval", 250)) * time.Millisecond,
		stopRead: make(chan struct{}),
		readDone: make(chan struct{}),
	}
	tl.StageBase = stage.New(name, tl, opts.Int("queue_size", 64), logger)
	return tl, nil
}

func (tl *tailInput) Process(ev *event.Event) (bool, error) {
	return true, nil
}

func (tl *tailInput) Start() {
	tl.StageBase.Start()
	go tl.follow()
}

func (tl *tailInput) follow() {
	defer close(tl.readDone)

	f, err := os.Open(tl.path)
	if err != nil {
		tl.Error().Err(err).Str("path", tl.path).Msg("tail open failed")
		return
	}
	defer f.Close()

	if tl.fromEnd {
		if _, err := f.Seek(0, io.SeekEnd); err != nil {
			tl.Error().Err(err).Msg("tail seek failed")
			return
		}
	}

	ticker := time.NewTicker(tl.pollEvry)
	defer ticker.Stop()

	var pending bytes.Buffer
	chunk := make([]byte, 32*1024)
	for {
		for {
			n, err := f.Read(chunk)
			if n > 0 {
				pending.Write(chunk[:n])
			}
			for {
				line, lerr := pending.ReadString('\n')
				if lerr != nil {
					// incomplete line: push it back for the next read to complete.
					pending.Reset()
					pending.WriteString(line)
					break
				}
				tl.emit(line[:len(line)-1])
			}
			if err != nil {
				break
			}
		}

		select {
		case <-tl.stopRead:
			return
		case <-ticker.C:
		}
	}
}

func (tl *tailInput) emit(line string) {
	ev := event.New(map[string]any{tl.field: line})
	if err := tl.Output().Put(tl.Ctx, ev); err != nil {
		tl.Debug().Err(err).Msg("could not emit tailed line")
	}
}

func (tl *tailInput) Stop() {
	close(tl.stopRead)
	<-tl.readDone
	tl.StageBase.Stop()
}
