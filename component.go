package aspen

import (
	"fmt"

	"github.com/goliatone/go-aspen/raw"
)

// PropertyContext is handed to codecs and components while a value is loaded
// or emitted.
type PropertyContext struct {
	Schema   *Schema
	Property *Property
	// Path is the dotted path from the root schema, with [i] for list items.
	Path   string
	Source raw.Source

	stage *loadStage
}

func newPropertyContext(s *Schema, p *Property, stage *loadStage) *PropertyContext {
	return &PropertyContext{
		Schema:   s,
		Property: p,
		Path:     joinDotted(s.Path(), p.Name()),
		stage:    stage,
	}
}

func (c *PropertyContext) element(p *Property, index int, node raw.Node) *PropertyContext {
	return &PropertyContext{
		Schema:   c.Schema,
		Property: p,
		Path:     fmt.Sprintf("%s[%d]", c.Path, index),
		Source:   raw.SourceOf(node),
		stage:    c.stage,
	}
}

// Provider returns the provider that composed the schema, if any.
func (c *PropertyContext) Provider() *Provider {
	if c == nil || c.Schema == nil {
		return nil
	}
	return c.Schema.Root().provider
}

// Snapshot returns the values of the properties that share the schema, with
// values staged by the running load taking precedence over stored ones.
func (c *PropertyContext) Snapshot() map[string]any {
	out := map[string]any{}
	if c == nil || c.Schema == nil {
		return out
	}
	for _, p := range c.Schema.properties {
		if p.IsSection() {
			continue
		}
		out[p.Name()] = p.GetIn(c.Schema)
	}
	if c.stage != nil {
		for _, w := range c.stage.writes {
			if w.schema == c.Schema {
				out[w.property.Name()] = w.value
			}
		}
	}
	return out
}

// Component validates or transforms a freshly loaded value before it is
// stored. Returning an error rejects the value.
type Component interface {
	CheckLoadedValue(ctx *PropertyContext, value any) (any, error)
}

// ComponentFunc adapts a function to Component.
type ComponentFunc func(ctx *PropertyContext, value any) (any, error)

// CheckLoadedValue implements Component.
func (f ComponentFunc) CheckLoadedValue(ctx *PropertyContext, value any) (any, error) {
	if f == nil {
		return value, nil
	}
	return f(ctx, value)
}

// Pipeline runs components in order as a single component, stopping at the
// first failure.
func Pipeline(components ...Component) Component {
	return pipeline(append([]Component(nil), components...))
}

type pipeline []Component

func (p pipeline) CheckLoadedValue(ctx *PropertyContext, value any) (any, error) {
	var err error
	for _, c := range p {
		if c == nil {
			continue
		}
		value, err = c.CheckLoadedValue(ctx, value)
		if err != nil {
			return nil, err
		}
	}
	return value, nil
}

// Components exposes the pipeline members for inspection.
func (p pipeline) Components() []Component {
	return append([]Component(nil), p...)
}
