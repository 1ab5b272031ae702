package stage

import "fmt"

// ErrorPolicy is a stage's declared response to a Process failure (spec.md
// §4.1): reject drops the event, tag forwards it with an error tag
// appended, ignore forwards it unchanged. "reject" is the default per
// spec.md §6 ("Declared error-policy option on_error ... with reject as
// default").
type ErrorPolicy int

const (
	Reject ErrorPolicy = iota
	Tag
	Ignore
)

func (p ErrorPolicy) String() string {
	switch p {
	case Reject:
		return "reject"
	case Tag:
		return "tag"
	case Ignore:
		return "ignore"
	default:
		return "unknown"
	}
}

// ParseErrorPolicy parses the on_error config value. Empty string defaults
// to Reject.
func ParseErrorPolicy(s string) (ErrorPolicy, error) {
	switch s {
	case "", "reject":
		return Reject, nil
	case "tag":
		return Tag, nil
	case "ignore":
		return Ignore, nil
	default:
		return Reject, fmt.Errorf("%w: %s", ErrUnknownErrorPolicy, s)
	}
}
