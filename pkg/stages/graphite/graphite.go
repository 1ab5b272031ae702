// Package graphite registers the "graphite" stage: forwards stats-filter
// output to a Graphite carbon listener over plaintext TCP, grounded on
// original_source/test/test_outputs.py::GraphiteTests. The original speaks
// Graphite's Python-pickle wire protocol; no library in this module's
// dependency set offers Python pickle encoding, so this stage uses
// Graphite's plaintext protocol instead ("metric value timestamp\n"),
// which every Graphite-compatible receiver also accepts.
package graphite

import (
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/haginara/logcabin/pkg/event"
	"github.com/haginara/logcabin/pkg/registry"
	"github.com/haginara/logcabin/pkg/stage"
)

func init() {
	registry.Register("graphite", New)
}

type graphiteOutput struct {
	*stage.StageBase

	addr string

	conn net.Conn
}

// New builds the "graphite" output. Options: "host" (default
// "localhost"), "port" (required).
func New(name string, opts registry.Options, logger zerolog.Logger) (stage.Stage, error) {
	port := opts.Int("port", 0)
	if port == 0 {
		return nil, fmt.Errorf("%w: graphite: missing required option \"port\"", stage.ErrConfiguration)
	}
	g := &graphiteOutput{addr: fmt.Sprintf("%s:%d", opts.String("host", "localhost"), port)}
	g.StageBase = stage.New(name, g, opts.Int("queue_size", 64), logger)
	return g, nil
}

func (g *graphiteOutput) dial() (net.Conn, error) {
	if g.conn != nil {
		return g.conn, nil
	}
	conn, err := net.DialTimeout("tcp", g.addr, 5*time.Second)
	if err != nil {
		return nil, err
	}
	g.conn = conn
	return conn, nil
}

// Process flattens a stats event's "stats" map into one "metric.stat
// value timestamp\n" line per key, matching the ("metric.min", ...),
// ("metric.mean", ...) pairs the original test expects per event.
func (g *graphiteOutput) Process(ev *event.Event) (bool, error) {
	metric, _ := ev.Get("metric").(string)
	stats, ok := ev.Get("stats").(map[string]float64)
	if metric == "" || !ok {
		return false, fmt.Errorf("graphite: event missing metric/stats fields")
	}

	conn, err := g.dial()
	if err != nil {
		return false, fmt.Errorf("graphite: %w", err)
	}

	ts := ev.Timestamp.Unix()
	for stat, value := range stats {
		line := fmt.Sprintf("%s.%s %v %d\n", metric, stat, value, ts)
		if _, err := conn.Write([]byte(line)); err != nil {
			g.conn = nil
			return false, fmt.Errorf("graphite: %w", err)
		}
	}
	return false, nil
}

func (g *graphiteOutput) Stop() {
	g.StageBase.Stop()
	if g.conn != nil {
		g.conn.Close()
	}
}
