// Package event implements the unit of data flowing through a logcabin
// pipeline: a timestamped, tagged bag of fields.
package event

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Event is a mutable record plus a creation timestamp and a tag set.
//
// Field lookup for an absent key never fails; it yields nil, which is the
// contract the condition package depends on.
type Event struct {
	mu        sync.RWMutex
	Timestamp time.Time
	Tags      []string
	fields    map[string]any
}

// New creates an event from the given fields. The timestamp is set to
// now (UTC) unless a "timestamp" field is explicitly supplied.
func New(fields map[string]any) *Event {
	ev := &Event{
		Timestamp: time.Now().UTC(),
		fields:    make(map[string]any, len(fields)),
	}
	for k, v := range fields {
		switch k {
		case "timestamp":
			if t, ok := v.(time.Time); ok {
				ev.Timestamp = t
			}
		case "tags":
			ev.Tags = append(ev.Tags, toStrings(v)...)
		default:
			ev.fields[k] = v
		}
	}
	return ev
}

func toStrings(v any) []string {
	switch x := v.(type) {
	case []string:
		return x
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			out = append(out, fmt.Sprint(e))
		}
		return out
	default:
		return nil
	}
}

// Get returns the field value for name, or nil if absent. The two reserved
// names "timestamp" and "tags" resolve to their typed members.
func (ev *Event) Get(name string) any {
	ev.mu.RLock()
	defer ev.mu.RUnlock()
	switch name {
	case "timestamp":
		return ev.Timestamp
	case "tags":
		return ev.Tags
	default:
		if v, ok := ev.fields[name]; ok {
			return v
		}
		return nil
	}
}

// Set overwrites (or adds) a field.
func (ev *Event) Set(name string, value any) {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	switch name {
	case "timestamp":
		if t, ok := value.(time.Time); ok {
			ev.Timestamp = t
		}
	case "tags":
		ev.Tags = toStrings(value)
	default:
		if ev.fields == nil {
			ev.fields = make(map[string]any)
		}
		ev.fields[name] = value
	}
}

// Delete removes a field.
func (ev *Event) Delete(name string) {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	delete(ev.fields, name)
}

// Fields returns a shallow copy of the non-reserved fields.
func (ev *Event) Fields() map[string]any {
	ev.mu.RLock()
	defer ev.mu.RUnlock()
	out := make(map[string]any, len(ev.fields))
	for k, v := range ev.fields {
		out[k] = v
	}
	return out
}

// AddTag appends a tag, creating the sequence lazily.
func (ev *Event) AddTag(tag string) {
	ev.mu.Lock()
	defer ev.mu.Unlock()
	ev.Tags = append(ev.Tags, tag)
}

// HasTag reports whether tag is present.
func (ev *Event) HasTag(tag string) bool {
	ev.mu.RLock()
	defer ev.mu.RUnlock()
	for _, t := range ev.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Clone returns a copy with its own field map and tag slice, used by
// queue.BroadcastQueue to give each fanout branch its own event. Field values
// themselves are not copied: a nested map or slice value is shared between
// the original and the clone.
func (ev *Event) Clone() *Event {
	ev.mu.RLock()
	defer ev.mu.RUnlock()
	out := &Event{
		Timestamp: ev.Timestamp,
		Tags:      append([]string(nil), ev.Tags...),
		fields:    make(map[string]any, len(ev.fields)),
	}
	for k, v := range ev.fields {
		out.fields[k] = v
	}
	return out
}

// String renders a stable, deterministic debug representation, e.g.
// Event({field: x, timestamp: 2013-01-01T02:34:56.000000}).
func (ev *Event) String() string {
	ev.mu.RLock()
	defer ev.mu.RUnlock()

	keys := make([]string, 0, len(ev.fields)+2)
	for k := range ev.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("Event({")
	first := true
	write := func(k string, v any) {
		if !first {
			b.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&b, "%s: %v", k, v)
	}
	for _, k := range keys {
		write(k, ev.fields[k])
	}
	if len(ev.Tags) > 0 {
		write("tags", ev.Tags)
	}
	write("timestamp", ev.Timestamp.Format(rfc3339Micro))
	b.WriteString("})")
	return b.String()
}
