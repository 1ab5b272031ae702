// Package jsonfilter registers the "json" stage: parses a JSON object out
// of a field (default "data") and merges its top-level keys into the
// event, grounded on original_source/test/test_filters.py's JsonTests.
package jsonfilter

import (
	"encoding/json"
	"fmt"

	"github.com/buger/jsonparser"
	"github.com/rs/zerolog"

	"github.com/haginara/logcabin/pkg/event"
	"github.com/haginara/logcabin/pkg/registry"
	"github.com/haginara/logcabin/pkg/stage"
)

func init() {
	registry.Register("json", New)
}

type jsonFilter struct {
	field   string
	consume bool
}

// New builds the "json" filter. Options: "field" (default "data"),
// "consume" (default true — remove the source field after parsing).
func New(name string, opts registry.Options, logger zerolog.Logger) (stage.Stage, error) {
	f := &jsonFilter{
		field:   opts.String("field", "data"),
		consume: opts.Bool("consume", true),
	}
	base := stage.New(name, f, opts.Int("queue_size", 64), logger)
	if p, err := stage.ParseErrorPolicy(opts.String("on_error", "")); err == nil {
		base.SetErrorPolicy(p, opts.String("error_tag", ""))
	}
	return base, nil
}

// Process implements test_filters.py's JsonTests.test_consume /
// test_consume_false: a flat top-level walk via jsonparser first (the
// common case — string/number/bool leaves), falling back to
// encoding/json for nested objects/arrays jsonparser would otherwise
// require per-type accessors for.
func (f *jsonFilter) Process(ev *event.Event) (bool, error) {
	raw, _ := ev.Get(f.field).(string)
	if raw == "" {
		return false, fmt.Errorf("json: field %q is empty or not a string", f.field)
	}

	if !fastWalk(ev, []byte(raw)) {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
			return false, fmt.Errorf("json: %w", err)
		}
		for k, v := range decoded {
			ev.Set(k, v)
		}
	}

	if f.consume {
		ev.Delete(f.field)
	}
	return true, nil
}

// fastWalk handles the flat, scalar-valued-object case with jsonparser,
// avoiding an allocation-heavy encoding/json decode on the hot path.
// Returns false (falls back to encoding/json) for anything nested.
func fastWalk(ev *event.Event, raw []byte) bool {
	ok := true
	err := jsonparser.ObjectEach(raw, func(key, value []byte, dataType jsonparser.ValueType, offset int) error {
		switch dataType {
		case jsonparser.String:
			ev.Set(string(key), string(value))
		case jsonparser.Number:
			n, parseErr := jsonparser.ParseFloat(value)
			if parseErr != nil {
				ok = false
				return nil
			}
			ev.Set(string(key), n)
		case jsonparser.Boolean:
			b, parseErr := jsonparser.ParseBoolean(value)
			if parseErr != nil {
				ok = false
				return nil
			}
			ev.Set(string(key), b)
		case jsonparser.Null:
			ev.Set(string(key), nil)
		default:
			ok = false
		}
		return nil
	})
	return err == nil && ok
}
