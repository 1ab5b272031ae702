// Package config loads a declarative YAML pipeline document into a wired
// stage.Stage tree, the loader spec.md §6 calls for: "an external loader
// that calls stage constructors inside a current-context scope and uses
// the composition operators as scoped builders."
package config

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog"

	"github.com/haginara/logcabin/pkg/condition"
	"github.com/haginara/logcabin/pkg/flow"
	"github.com/haginara/logcabin/pkg/registry"
	"github.com/haginara/logcabin/pkg/stage"
)

// defaultCapacity bounds the input queue of every Switch the loader builds.
// Leaf stages size their own input queue from their "queue_size" option.
const defaultCapacity = 64

// Load reads a pipeline YAML file at path and builds the root stage.Stage
// (an implicit Sequence over the top-level "pipeline" list).
func Load(path string, logger zerolog.Logger) (stage.Stage, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	return build(k, logger)
}

// LoadBytes builds a pipeline from an in-memory YAML document.
func LoadBytes(doc []byte, logger zerolog.Logger) (stage.Stage, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(doc), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return build(k, logger)
}

func build(k *koanf.Koanf, logger zerolog.Logger) (stage.Stage, error) {
	raw := k.Get("pipeline")
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: \"pipeline\" must be a list", stage.ErrConfiguration)
	}
	b := &builder{logger: logger}
	return b.buildSequence(items)
}

// builder is the explicit "current composite" stack spec.md's Design
// Notes call for (option (b): pkg/flow composites are appended to
// directly by a builder value, rather than relying on a hidden global).
// Here the "stack" is implicit in the recursion: each buildX call returns
// a composite ready for its caller to Add() a child onto.
type builder struct {
	logger zerolog.Logger
	n      int
}

func (b *builder) nextName(cmd string) string {
	b.n++
	return fmt.Sprintf("[%d] %s", b.n, cmd)
}

func (b *builder) buildSequence(items []any) (*flow.Sequence, error) {
	seq := flow.NewSequence()
	for _, item := range items {
		child, err := b.buildNode(item)
		if err != nil {
			return nil, err
		}
		seq.Add(child)
	}
	return seq, nil
}

func (b *builder) buildNode(item any) (stage.Stage, error) {
	m, ok := item.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: pipeline entry must be a mapping", stage.ErrConfiguration)
	}
	if len(m) != 1 {
		return nil, fmt.Errorf("%w: pipeline entry must have exactly one stage key", stage.ErrConfiguration)
	}
	for key, val := range m {
		switch key {
		case "fanout":
			return b.buildFanout(val)
		case "fanin":
			return b.buildFanin(val)
		case "switch":
			return b.buildSwitch(val)
		case "sequence":
			items, ok := val.([]any)
			if !ok {
				return nil, fmt.Errorf("%w: sequence must be a list", stage.ErrConfiguration)
			}
			return b.buildSequence(items)
		default:
			return b.buildLeaf(key, val)
		}
	}
	panic("unreachable: map[string]any with len 1 always ranges once")
}

func (b *builder) buildFanout(val any) (stage.Stage, error) {
	items, ok := val.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: fanout must be a list", stage.ErrConfiguration)
	}
	fo := flow.NewFanout()
	for _, item := range items {
		child, err := b.buildNode(item)
		if err != nil {
			return nil, err
		}
		fo.Add(child)
	}
	return fo, nil
}

func (b *builder) buildFanin(val any) (stage.Stage, error) {
	items, ok := val.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: fanin must be a list", stage.ErrConfiguration)
	}
	fi := flow.NewFanin()
	for _, item := range items {
		child, err := b.buildNode(item)
		if err != nil {
			return nil, err
		}
		fi.Add(child)
	}
	return fi, nil
}

// buildSwitch builds a Switch from an ordered list of cases, each either
// {if: <condition string>, then: [...]} or {default: [...]}. The default
// case, if present, must be the last list entry (spec.md §4.5); AddCase/
// AddDefault enforce that as a ConfigurationError.
func (b *builder) buildSwitch(val any) (stage.Stage, error) {
	cases, ok := val.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: switch must be a list of cases", stage.ErrConfiguration)
	}
	sw := flow.NewSwitch(b.nextName("switch"), defaultCapacity, b.logger)
	for _, c := range cases {
		cm, ok := c.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: switch case must be a mapping", stage.ErrConfiguration)
		}

		if defVal, ok := cm["default"]; ok {
			seq, err := b.buildCaseBody(defVal)
			if err != nil {
				return nil, err
			}
			if err := sw.AddDefault(seq); err != nil {
				return nil, err
			}
			continue
		}

		condSrc, ok := cm["if"].(string)
		if !ok {
			return nil, fmt.Errorf("%w: switch case needs \"if\" or \"default\"", stage.ErrConfiguration)
		}
		thenVal, ok := cm["then"]
		if !ok {
			return nil, fmt.Errorf("%w: switch case needs \"then\"", stage.ErrConfiguration)
		}
		cond, err := condition.Compile(condSrc)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", stage.ErrParse, err)
		}
		seq, err := b.buildCaseBody(thenVal)
		if err != nil {
			return nil, err
		}
		if err := sw.AddCase(cond, seq); err != nil {
			return nil, err
		}
	}
	return sw, nil
}

func (b *builder) buildCaseBody(val any) (*flow.Sequence, error) {
	items, ok := val.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: switch case body must be a list", stage.ErrConfiguration)
	}
	return b.buildSequence(items)
}

func (b *builder) buildLeaf(cmd string, val any) (stage.Stage, error) {
	opts, _ := val.(map[string]any)
	return registry.New(cmd, b.nextName(cmd), registry.Options(opts), b.logger)
}
