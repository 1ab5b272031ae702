package stage

import "errors"

// Error taxonomy at the core level (spec.md §7). Configuration-time errors
// (ConfigurationError, ParseError) abort graph construction; runtime errors
// (ProcessError) are contained at the stage boundary per its ErrorPolicy and
// never unwind across stages.
var (
	// ErrStageStopped is not an error: it signals a worker to drain and
	// exit, mirroring the teacher's ErrStageStopped sentinel.
	ErrStageStopped = errors.New("stage: stopped")

	// ErrConfiguration marks a malformed graph: e.g. a Switch default case
	// registered before the end, or an unknown stage option.
	ErrConfiguration = errors.New("stage: configuration error")

	// ErrParse marks a condition-string compile failure.
	ErrParse = errors.New("stage: condition parse error")

	// ErrMissingField marks a strict-mode format resolution failure. It is a
	// separate value from pkg/event's event.ErrMissingField, which is what
	// Event.Format returns; errors.Is on a Format error matches only that one.
	ErrMissingField = errors.New("stage: missing field")

	// ErrUnknownErrorPolicy is returned by ParseErrorPolicy for values
	// other than "reject", "tag", "ignore".
	ErrUnknownErrorPolicy = errors.New("stage: unknown error policy")
)
