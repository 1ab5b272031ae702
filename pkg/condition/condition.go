// Package condition implements the pipeline's predicate language: either an
// in-process callable, or a source expression string compiled once (at
// configuration time) and evaluated many times against an event view.
package condition

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/haginara/logcabin/pkg/event"
)

// View is the read-only facade conditions evaluate against. It resolves
// derived/computed attributes (tags) first, then falls back to field
// lookup, returning nil for any name absent from the event — conditions
// like `severity == "error"` and `"db" in tags` both work uniformly, and
// `missing == nil` always holds.
type View map[string]any

// NewView builds a View over ev, suitable for use both as the env passed to
// expr.Compile/Run and as the argument to a callable Condition.
func NewView(ev *event.Event) View {
	v := ev.Fields()
	v["tags"] = ev.Tags
	v["timestamp"] = ev.Timestamp
	return View(v)
}

// Condition is a compiled predicate: either a callable, or a compiled
// expression program. At most one of the two is set; with neither set it is
// the always-true default case.
type Condition struct {
	fn      func(View) bool
	program *vm.Program
	src     string
}

// Func wraps an in-process predicate callable as a Condition.
func Func(fn func(View) bool) Condition {
	return Condition{fn: fn}
}

// IsDefault reports whether this is the Switch/If "always true" default
// case (spec.md §4.5's implicit final case, and the Design Notes' "open
// question" about it not being a true else).
func (c Condition) IsDefault() bool {
	return c.fn == nil && c.program == nil
}

// Default returns the always-true condition used for Switch's final case.
func Default() Condition {
	return Condition{}
}

// Eval evaluates the condition against ev's View.
func (c Condition) Eval(ev *event.Event) (bool, error) {
	if c.IsDefault() {
		return true, nil
	}
	view := NewView(ev)
	if c.fn != nil {
		return c.fn(view), nil
	}
	out, err := expr.Run(c.program, map[string]any(view))
	if err != nil {
		return false, fmt.Errorf("condition %q: %w", c.src, err)
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("condition %q: expected bool result, got %T", c.src, out)
	}
	return b, nil
}

// String returns the original source for a compiled condition, or a
// placeholder for a callable/default one (used in diagnostics).
func (c Condition) String() string {
	switch {
	case c.IsDefault():
		return "default"
	case c.program != nil:
		return c.src
	default:
		return "<func>"
	}
}

// wordOperatorPattern finds "and"/"or"/"not" written in any letter case;
// normalize lowercases them. expr already accepts lowercase "and"/"or"/"not"/
// "in" alongside &&/||/!, so this pass only lets config files write the
// keywords in upper or mixed case (e.g. "AND", "Not").
var wordOperatorPattern = regexp.MustCompile(`(?i)\b(AND|OR|NOT)\b`)

func normalize(src string) string {
	return wordOperatorPattern.ReplaceAllStringFunc(src, strings.ToLower)
}

// Compile compiles a source expression string once, for many later Eval
// calls. The grammar supports equality/ordering comparisons, boolean
// and/or/not, "in" membership tests against sequences, field access by
// name, and literal strings/numbers/booleans/null — per spec.md §4.7.
func Compile(src string) (Condition, error) {
	program, err := expr.Compile(normalize(src), expr.AsBool(), expr.AllowUndefinedVariables())
	if err != nil {
		return Condition{}, fmt.Errorf("condition parse error: %w", err)
	}
	return Condition{program: program, src: src}, nil
}
