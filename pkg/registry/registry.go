// Package registry maps pipeline stage command names (as they appear in a
// YAML pipeline document, e.g. "udp", "regex", "file") to constructors,
// mirroring the teacher's Bgpipe.repo/AddRepo/NewStage pattern.
package registry

import (
	"fmt"
	"sort"

	"github.com/puzpuzpuz/xsync/v4"
	"github.com/rs/zerolog"

	"github.com/haginara/logcabin/pkg/stage"
)

// ErrUnknownStage is returned by New for a cmd with no registered
// Constructor — a ConfigurationError per spec.md §7.
var ErrUnknownStage = fmt.Errorf("%w: registry: unknown stage", stage.ErrConfiguration)

// Options is a leaf stage's decoded configuration mapping (spec.md §6's
// "configuration mapping (named options)").
type Options map[string]any

// String returns opts[key] as a string, or def if absent or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Int returns opts[key] as an int, or def if absent or not numeric.
func (o Options) Int(key string, def int) int {
	switch v := o[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}

// Bool returns opts[key] as a bool, or def if absent or not a bool.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key].(bool); ok {
		return v
	}
	return def
}

// Constructor builds a leaf stage.Stage from its decoded Options. name is
// the instance's human-friendly, per-pipeline-position name (e.g.
// "[2] regex"), used for logging and metrics.
type Constructor func(name string, opts Options, logger zerolog.Logger) (stage.Stage, error)

var repo = xsync.NewMapOf[string, Constructor]()

// Register associates cmd with a Constructor. Called from each leaf
// package's init(), mirroring the teacher's AddRepo — registration is a
// configuration-time-only operation, never mutated after the pipeline
// starts building.
func Register(cmd string, ctor Constructor) {
	repo.Store(cmd, ctor)
}

// New builds the named leaf stage.
func New(cmd, name string, opts Options, logger zerolog.Logger) (stage.Stage, error) {
	ctor, ok := repo.Load(cmd)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownStage, cmd)
	}
	return ctor(name, opts, logger)
}

// Names returns every registered stage command, sorted, for the admin
// server's /pipeline explain endpoint.
func Names() []string {
	names := make([]string, 0)
	repo.Range(func(cmd string, _ Constructor) bool {
		names = append(names, cmd)
		return true
	})
	sort.Strings(names)
	return names
}
