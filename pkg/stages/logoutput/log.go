// Package logoutput registers the "log" stage: writes each event as a
// structured zerolog line, grounded on
// original_source/test/test_outputs.py::LogTests.
package logoutput

import (
	"github.com/rs/zerolog"

	"github.com/haginara/logcabin/pkg/event"
	"github.com/haginara/logcabin/pkg/registry"
	"github.com/haginara/logcabin/pkg/stage"
)

func init() {
	registry.Register("log", New)
}

type logOutput struct {
	*stage.StageBase
	level zerolog.Level
}

// New builds the "log" output. Option: "level" (default "info").
func New(name string, opts registry.Options, logger zerolog.Logger) (stage.Stage, error) {
	level, err := zerolog.ParseLevel(opts.String("level", "info"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	l := &logOutput{level: level}
	l.StageBase = stage.New(name, l, opts.Int("queue_size", 64), logger)
	return l, nil
}

func (l *logOutput) Process(ev *event.Event) (bool, error) {
	e := l.WithLevel(l.level)
	for k, v := range ev.Fields() {
		e = e.Interface(k, v)
	}
	if len(ev.Tags) > 0 {
		e = e.Strs("tags", ev.Tags)
	}
	e.Time("timestamp", ev.Timestamp).Msg("event")
	return false, nil
}
