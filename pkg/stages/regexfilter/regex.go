// Package regexfilter registers the "regex" stage: matches a field
// (default "data") against a named-capture-group regex and sets each
// group as a field, grounded on
// original_source/test/test_filters.py::RegexTests.
package regexfilter

import (
	"fmt"
	"regexp"

	"github.com/rs/zerolog"

	"github.com/haginara/logcabin/pkg/event"
	"github.com/haginara/logcabin/pkg/registry"
	"github.com/haginara/logcabin/pkg/stage"
)

func init() {
	registry.Register("regex", New)
}

type regexFilter struct {
	field string
	re    *regexp.Regexp
}

// New builds the "regex" filter. Required option: "regex" (the pattern,
// with named capture groups `(?P<name>...)`). Optional: "field" (default
// "data").
func New(name string, opts registry.Options, logger zerolog.Logger) (stage.Stage, error) {
	pattern := opts.String("regex", "")
	if pattern == "" {
		return nil, fmt.Errorf("%w: regex: missing required option \"regex\"", stage.ErrConfiguration)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: regex: %w", stage.ErrConfiguration, err)
	}

	f := &regexFilter{field: opts.String("field", "data"), re: re}
	base := stage.New(name, f, opts.Int("queue_size", 64), logger)
	if p, err := stage.ParseErrorPolicy(opts.String("on_error", "")); err == nil {
		base.SetErrorPolicy(p, opts.String("error_tag", ""))
	}
	return base, nil
}

func (f *regexFilter) Process(ev *event.Event) (bool, error) {
	data, _ := ev.Get(f.field).(string)
	match := f.re.FindStringSubmatch(data)
	if match == nil {
		return true, fmt.Errorf("regex: no match on field %q", f.field)
	}
	for i, name := range f.re.SubexpNames() {
		if i == 0 || name == "" {
			continue
		}
		ev.Set(name, match[i])
	}
	return true, nil
}
