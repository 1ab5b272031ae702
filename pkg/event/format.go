package event

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMissingField is returned by Format in strict mode when a referenced
// field name is absent from the event.
var ErrMissingField = errors.New("event: missing field")

// Format resolves "{name}" and "{0}"/"{1}" placeholders in tmpl against the
// event's fields (and, for positional placeholders, args). A trailing
// ":spec" after the name applies a strftime-style format specifier when the
// resolved value is a time.Time (only the reserved "timestamp" name is
// time-typed by default).
//
// In default mode, a missing name resolves to "". In strict mode, a missing
// name returns ErrMissingField.
func (ev *Event) Format(tmpl string, args []any, strict bool) (string, error) {
	var b strings.Builder
	i := 0
	for i < len(tmpl) {
		c := tmpl[i]
		switch c {
		case '{':
			if i+1 < len(tmpl) && tmpl[i+1] == '{' {
				b.WriteByte('{')
				i += 2
				continue
			}
			end := strings.IndexByte(tmpl[i:], '}')
			if end < 0 {
				return "", fmt.Errorf("event: unterminated placeholder in %q", tmpl)
			}
			expr := tmpl[i+1 : i+end]
			i += end + 1

			name, spec, _ := strings.Cut(expr, ":")
			val, found := ev.resolvePlaceholder(name, args)
			if !found {
				if strict {
					return "", fmt.Errorf("%w: %s", ErrMissingField, name)
				}
				continue
			}
			b.WriteString(renderValue(val, spec))
		case '}':
			if i+1 < len(tmpl) && tmpl[i+1] == '}' {
				b.WriteByte('}')
				i += 2
				continue
			}
			return "", fmt.Errorf("event: unmatched '}' in %q", tmpl)
		default:
			b.WriteByte(c)
			i++
		}
	}
	return b.String(), nil
}

// resolvePlaceholder looks up name first as a positional argument index,
// then as an event field (including "timestamp"/"tags").
func (ev *Event) resolvePlaceholder(name string, args []any) (any, bool) {
	if idx, err := strconv.Atoi(name); err == nil {
		if idx >= 0 && idx < len(args) {
			return args[idx], true
		}
		return nil, false
	}

	ev.mu.RLock()
	defer ev.mu.RUnlock()
	switch name {
	case "timestamp":
		return ev.Timestamp, true
	case "tags":
		return ev.Tags, true
	default:
		v, ok := ev.fields[name]
		return v, ok
	}
}

func renderValue(v any, spec string) string {
	if spec == "" {
		return fmt.Sprint(v)
	}
	if t, ok := v.(timeLike); ok {
		return t.Format(strftimeToGo(spec))
	}
	return fmt.Sprintf("%"+spec, v)
}
