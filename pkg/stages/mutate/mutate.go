// Package mutate registers the "mutate" stage: applies a static field
// set/delete to every event, grounded on
// original_source/test/test_filters.py::MutateTests.
package mutate

import (
	"github.com/rs/zerolog"

	"github.com/haginara/logcabin/pkg/event"
	"github.com/haginara/logcabin/pkg/registry"
	"github.com/haginara/logcabin/pkg/stage"
)

func init() {
	registry.Register("mutate", New)
}

type mutateFilter struct {
	set    map[string]any
	remove []string
}

// New builds the "mutate" filter. Options: "set" (field → value map),
// "remove" (list of field names to delete).
func New(name string, opts registry.Options, logger zerolog.Logger) (stage.Stage, error) {
	f := &mutateFilter{}
	if set, ok := opts["set"].(map[string]any); ok {
		f.set = set
	}
	if rm, ok := opts["remove"].([]any); ok {
		for _, v := range rm {
			if s, ok := v.(string); ok {
				f.remove = append(f.remove, s)
			}
		}
	}
	return stage.New(name, f, opts.Int("queue_size", 64), logger), nil
}

func (f *mutateFilter) Process(ev *event.Event) (bool, error) {
	for k, v := range f.set {
		ev.Set(k, v)
	}
	for _, k := range f.remove {
		ev.Delete(k)
	}
	return true, nil
}
