// Package stdininput registers the "stdin" stage: reads lines off process
// stdin and emits one event per line, generalized from the teacher's
// stages/stdin.go bufio.Scanner loop.
package stdininput

import (
	"bufio"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/haginara/logcabin/pkg/event"
	"github.com/haginara/logcabin/pkg/registry"
	"github.com/haginara/logcabin/pkg/stage"
)

func init() {
	registry.Register("stdin", New)
}

type stdinInput struct {
	*stage.StageBase

	field  string
	reader io.Reader // overridable in tests; defaults to os.Stdin

	readDone chan struct{}
}

// New builds the "stdin" input. Option: "field" (default "data").
func New(name string, opts registry.Options, logger zerolog.Logger) (stage.Stage, error) {
	s := &stdinInput{
		field:    opts.String("field", "data"),
		reader:   os.Stdin,
		readDone: make(chan struct{}),
	}
	s.StageBase = stage.New(name, s, opts.Int("queue_size", 64), logger)
	return s, nil
}

func (s *stdinInput) Process(ev *event.Event) (bool, error) {
	return true, nil
}

func (s *stdinInput) Start() {
	s.StageBase.Start()
	go s.readLines()
}

func (s *stdinInput) readLines() {
	defer close(s.readDone)
	scanner := bufio.NewScanner(s.reader)
	for scanner.Scan() {
		if s.Ctx.Err() != nil {
			return
		}
		line := scanner.Text()
		if line == "" {
			continue
		}
		ev := event.New(map[string]any{s.field: line})
		if err := s.Output().Put(s.Ctx, ev); err != nil {
			return
		}
	}
}

func (s *stdinInput) Stop() {
	s.Cancel(stage.ErrStageStopped)
	<-s.readDone
	s.StageBase.Stop()
}
