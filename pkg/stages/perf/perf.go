// Package perf registers the "perf" stage: an output that only records each
// event's age into a histogram and does not forward events, grounded on
// original_source/test/test_outputs.py::PerfTests.
package perf

import (
	"fmt"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/rs/zerolog"

	"github.com/haginara/logcabin/pkg/event"
	"github.com/haginara/logcabin/pkg/registry"
	"github.com/haginara/logcabin/pkg/stage"
)

func init() {
	registry.Register("perf", New)
}

type perfOutput struct {
	*stage.StageBase
	hist *metrics.Histogram
}

// New builds the "perf" output: measures the age of each event (now minus
// its timestamp) into a histogram named after the stage, for later
// /metrics scraping.
func New(name string, opts registry.Options, logger zerolog.Logger) (stage.Stage, error) {
	p := &perfOutput{
		hist: metrics.GetOrCreateHistogram(fmt.Sprintf(`logcabin_perf_event_age_seconds{stage=%q}`, name)),
	}
	p.StageBase = stage.New(name, p, opts.Int("queue_size", 64), logger)
	return p, nil
}

func (p *perfOutput) Process(ev *event.Event) (bool, error) {
	p.hist.Update(time.Since(ev.Timestamp).Seconds())
	return false, nil
}
