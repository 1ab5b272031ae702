package event

import (
	"bytes"
	"encoding/json"
	"time"
)

// rfc3339Micro is the wire timestamp format: ISO-8601 with microsecond
// precision, no timezone suffix (always UTC), matching the original
// Python datetime.isoformat() output.
const rfc3339Micro = "2006-01-02T15:04:05.000000"

// MarshalJSON encodes timestamps as ISO-8601 strings; all other values use
// standard JSON encoding. tags are omitted entirely when empty.
func (ev *Event) MarshalJSON() ([]byte, error) {
	ev.mu.RLock()
	defer ev.mu.RUnlock()

	out := make(map[string]any, len(ev.fields)+2)
	for k, v := range ev.fields {
		out[k] = v
	}
	out["timestamp"] = ev.Timestamp.UTC().Format(rfc3339Micro)
	if len(ev.Tags) > 0 {
		out["tags"] = ev.Tags
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes an event, parsing "timestamp" back into a time.Time
// and "tags" into a string slice when present.
func (ev *Event) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	ev.mu.Lock()
	defer ev.mu.Unlock()
	ev.fields = make(map[string]any, len(raw))

	for k, v := range raw {
		switch k {
		case "timestamp":
			var ts string
			if err := json.Unmarshal(v, &ts); err != nil {
				return err
			}
			t, err := parseTimestamp(ts)
			if err != nil {
				return err
			}
			ev.Timestamp = t
		case "tags":
			var tags []string
			if err := json.Unmarshal(v, &tags); err != nil {
				return err
			}
			ev.Tags = tags
		default:
			var val any
			dec := json.NewDecoder(bytes.NewReader(v))
			dec.UseNumber()
			if err := dec.Decode(&val); err != nil {
				return err
			}
			ev.fields[k] = val
		}
	}
	return nil
}

// ToJSON serializes the event, mirroring the original's Event.to_json().
func (ev *Event) ToJSON() ([]byte, error) {
	return ev.MarshalJSON()
}

var timestampLayouts = []string{
	rfc3339Micro,
	"2006-01-02T15:04:05.999999",
	time.RFC3339Nano,
	time.RFC3339,
}

func parseTimestamp(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}
