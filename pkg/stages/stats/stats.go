// Package stats registers the "stats" stage: on a periodic window, emits
// summary statistics (count, rate, min, max, median, mean, stddev,
// upper95, upper99) for numeric fields matching configured metric
// templates, grounded on
// original_source/test/test_filters.py::StatsTests.
package stats

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/haginara/logcabin/pkg/event"
	"github.com/haginara/logcabin/pkg/registry"
	"github.com/haginara/logcabin/pkg/stage"
)

func init() {
	registry.Register("stats", New)
}

// metricRule pairs a name template (e.g. "rails.{controller}.{action}.{0}")
// with the glob-like field-name pattern selecting which numeric fields
// feed it ("*" matches any numeric field, including one that is also used
// as a template placeholder).
type metricRule struct {
	template string
	pattern  string
}

type window struct {
	values []float64
}

// Stats is a leaf stage embedding *stage.StageBase with a custom Start/
// Stop, since it has both a per-event Process (accumulate) and a
// background ticker goroutine (flush).
type Stats struct {
	*stage.StageBase

	rules  []metricRule
	period time.Duration

	mu      sync.Mutex
	windows map[string]*window

	stopTicker chan struct{}
	tickerDone chan struct{}
}

// New builds the "stats" filter. Options: "period" (seconds, default 10),
// "metrics" (template → field-glob map).
func New(name string, opts registry.Options, logger zerolog.Logger) (stage.Stage, error) {
	s := &Stats{
		windows:    make(map[string]*window),
		period:     time.Duration(opts.Int("period", 10)) * time.Second,
		stopTicker: make(chan struct{}),
		tickerDone: make(chan struct{}),
	}
	if raw, ok := opts["metrics"].(map[string]any); ok {
		for tmpl, pat := range raw {
			p, _ := pat.(string)
			s.rules = append(s.rules, metricRule{template: tmpl, pattern: p})
		}
	}
	s.StageBase = stage.New(name, s, opts.Int("queue_size", 64), logger)
	return s, nil
}

// Start launches StageBase's ordinary worker (accumulation) plus a ticker
// goroutine that periodically flushes windows into stat events.
func (s *Stats) Start() {
	s.StageBase.Start()
	go s.tick()
}

func (s *Stats) tick() {
	defer close(s.tickerDone)
	ticker := time.NewTicker(s.period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.flush()
		case <-s.stopTicker:
			return
		}
	}
}

func (s *Stats) Stop() {
	close(s.stopTicker)
	<-s.tickerDone
	s.flush()
	s.StageBase.Stop()
}

// Process matches every configured rule against the event's fields and
// accumulates numeric values into that metric's window; always forwards
// the original event unchanged (the stat events are emitted separately by
// the ticker).
func (s *Stats) Process(ev *event.Event) (bool, error) {
	for _, rule := range s.rules {
		for field, value := range ev.Fields() {
			n, ok := numeric(value)
			if !ok || !matchesGlob(rule.pattern, field) {
				continue
			}
			name, err := ev.Format(rule.template, []any{field}, false)
			if err != nil {
				continue
			}
			s.mu.Lock()
			w, ok := s.windows[name]
			if !ok {
				w = &window{}
				s.windows[name] = w
			}
			w.values = append(w.values, n)
			s.mu.Unlock()
		}
	}
	return true, nil
}

func (s *Stats) flush() {
	s.mu.Lock()
	snapshot := s.windows
	s.windows = make(map[string]*window)
	s.mu.Unlock()

	for metric, w := range snapshot {
		if len(w.values) == 0 {
			continue
		}
		stat := summarize(w.values, s.period.Seconds())
		ev := event.New(map[string]any{
			"metric": metric,
			"stats":  stat,
			"tags":   []string{"stat"},
		})
		if err := s.Output().Put(s.Ctx, ev); err != nil {
			s.Debug().Err(err).Msg("could not emit stat event")
		}
	}
}

func summarize(values []float64, periodSeconds float64) map[string]float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	n := len(sorted)
	var sum float64
	for _, v := range sorted {
		sum += v
	}
	mean := sum / float64(n)

	var variance float64
	for _, v := range sorted {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(n)

	rate := float64(n)
	if periodSeconds > 0 {
		rate = float64(n) / periodSeconds
	}

	return map[string]float64{
		"count":   float64(n),
		"rate":    rate,
		"min":     sorted[0],
		"max":     sorted[n-1],
		"median":  percentile(sorted, 50),
		"mean":    mean,
		"stddev":  math.Sqrt(variance),
		"upper95": percentile(sorted, 95),
		"upper99": percentile(sorted, 99),
	}
}

// percentile interpolates linearly between the two nearest ranks of the
// already-sorted slice (rank = p/100 * (n-1)).
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	rank := p / 100 * float64(len(sorted)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return sorted[lo]
	}
	frac := rank - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// matchesGlob supports only "*" (match anything) and exact field names,
// the two forms original_source's stats filter config actually uses.
func matchesGlob(pattern, field string) bool {
	return pattern == "*" || pattern == field
}
