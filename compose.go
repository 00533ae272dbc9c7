package aspen

import (
	"fmt"
	"math"
	"reflect"
	"sort"

	"go.uber.org/multierr"
)

// ComposeContext is shared by every composer during one composition.
type ComposeContext struct {
	Provider *Provider

	root *Schema
	post []func() error
	err  error
}

// Root returns the schema being composed.
func (c *ComposeContext) Root() *Schema { return c.root }

// SchedulePost defers fn until the whole tree has been walked. Tasks run once
// in registration order.
func (c *ComposeContext) SchedulePost(fn func() error) {
	if fn != nil {
		c.post = append(c.post, fn)
	}
}

// Fail records err without aborting the walk.
func (c *ComposeContext) Fail(err error) {
	c.err = multierr.Append(c.err, err)
}

// Err returns the failures recorded so far.
func (c *ComposeContext) Err() error { return c.err }

// OptionComposeContext is handed to option composers for one descriptor.
type OptionComposeContext struct {
	*ComposeContext
	Schema     *Schema
	Descriptor Descriptor
}

// OptionComposer turns a descriptor into a property builder. Lower Exactness
// values are more specific and are tried first.
type OptionComposer struct {
	Name      string
	Exactness int
	Match     func(Descriptor) bool
	// Open returns a builder, or nil to let a less exact composer open it.
	Open func(*OptionComposeContext) (*Builder, error)
	// Configure refines the builder. It runs for every matching composer,
	// least exact first, whichever composer opened the builder.
	Configure func(*OptionComposeContext, *Builder) error
}

// SchemaComposer wraps the composition of whole schemas.
type SchemaComposer struct {
	Name      string
	Exactness int
	Match     func(*Schema) bool
	// Before runs ahead of the field walk, most exact first.
	Before func(*ComposeContext, *Schema) error
	// Compose runs least exact first; the built-in walk is the least exact.
	Compose func(*ComposeContext, *Schema) error
}

// SchemaComposerFor matches schemas whose host is a T or *T.
func SchemaComposerFor[T any](name string, exactness int, compose func(*ComposeContext, *Schema) error) SchemaComposer {
	want := reflect.TypeFor[T]()
	for want.Kind() == reflect.Pointer {
		want = want.Elem()
	}
	return SchemaComposer{
		Name:      name,
		Exactness: exactness,
		Match:     func(s *Schema) bool { return hostType(s.instance) == want },
		Compose:   compose,
	}
}

var baseOptionComposer = OptionComposer{
	Name:      "base",
	Exactness: math.MaxInt,
	Match:     func(Descriptor) bool { return true },
	Open: func(ctx *OptionComposeContext) (*Builder, error) {
		return NewBuilder(ctx.Descriptor.Name, ctx.Descriptor.Type), nil
	},
	Configure: func(ctx *OptionComposeContext, b *Builder) error {
		if len(ctx.Descriptor.Comment) > 0 {
			b.Comment(ctx.Descriptor.Comment...)
		}
		return nil
	},
}

func (p *Provider) optionChain(d Descriptor) []OptionComposer {
	var chain []OptionComposer
	for _, c := range p.cfg.optionComposers {
		if c.Match == nil || c.Match(d) {
			chain = append(chain, c)
		}
	}
	sort.SliceStable(chain, func(i, j int) bool { return chain[i].Exactness < chain[j].Exactness })
	return append(chain, baseOptionComposer)
}

func (p *Provider) schemaChain(s *Schema) []SchemaComposer {
	var chain []SchemaComposer
	for _, c := range p.cfg.schemaComposers {
		if c.Match == nil || c.Match(s) {
			chain = append(chain, c)
		}
	}
	sort.SliceStable(chain, func(i, j int) bool { return chain[i].Exactness < chain[j].Exactness })
	// The base composer walks the schema, which composes nested schemas
	// through this chain again, so it is built per call.
	return append(chain, SchemaComposer{
		Name:      "base",
		Exactness: math.MaxInt,
		Match:     func(*Schema) bool { return true },
		Compose:   walkSchema,
	})
}

// openBuilder runs the option chain for d and returns the configured builder.
func (p *Provider) openBuilder(ctx *OptionComposeContext) (*Builder, error) {
	chain := p.optionChain(ctx.Descriptor)
	var b *Builder
	for _, c := range chain {
		if c.Open == nil {
			continue
		}
		opened, err := c.Open(ctx)
		if err != nil {
			return nil, fmt.Errorf("composer %s: %w", c.Name, err)
		}
		if opened != nil {
			b = opened
			break
		}
	}
	if b == nil {
		return nil, fmt.Errorf("no composer for %q", ctx.Descriptor.Name)
	}
	if !b.HasAccessor() && ctx.Descriptor.Accessor != nil {
		b.Accessor(ctx.Descriptor.Accessor())
	}
	for i := len(chain) - 1; i >= 0; i-- {
		c := chain[i]
		if c.Configure == nil {
			continue
		}
		if err := c.Configure(ctx, b); err != nil {
			return nil, fmt.Errorf("composer %s: %w", c.Name, err)
		}
	}
	return b, nil
}

// composeSchema runs the schema chain for s.
func (p *Provider) composeSchema(ctx *ComposeContext, s *Schema) {
	chain := p.schemaChain(s)
	for _, c := range chain {
		if c.Before == nil {
			continue
		}
		if err := c.Before(ctx, s); err != nil {
			ctx.Fail(fmt.Errorf("schema composer %s on %q: %w", c.Name, s.displayName(), err))
			return
		}
	}
	for i := len(chain) - 1; i >= 0; i-- {
		c := chain[i]
		if c.Compose == nil {
			continue
		}
		if err := c.Compose(ctx, s); err != nil {
			ctx.Fail(fmt.Errorf("schema composer %s on %q: %w", c.Name, s.displayName(), err))
			return
		}
	}
}

// walkSchema is the built-in field walk.
func walkSchema(ctx *ComposeContext, s *Schema) error {
	if s.instance == nil {
		return nil
	}
	if doc, ok := s.instance.(Documented); ok && len(s.comment) == 0 {
		s.SetComment(doc.AspenComment()...)
	}
	descriptors, err := Describe(s.instance)
	if err != nil {
		return err
	}
	for _, d := range descriptors {
		if err := composeDescriptor(ctx, s, d); err != nil {
			ctx.Fail(fmt.Errorf("%s: %w", joinDotted(s.Path(), d.Name), err))
		}
	}
	return nil
}

func composeDescriptor(ctx *ComposeContext, s *Schema, d Descriptor) error {
	switch d.Role {
	case RoleSkip:
		return nil
	case RoleProperty:
		return s.AddProperty(d.Property)
	case RolePlaceholder:
		if d.Placeholder == nil {
			return fmt.Errorf("placeholder %q is nil", d.Name)
		}
		return d.Placeholder.bind(ctx, s, d)
	case RoleSection:
		child := &Schema{name: d.Name, instance: d.Instance, byName: map[string]*Property{}}
		b := Section(d.Name, child)
		if len(d.Comment) > 0 {
			b.Comment(d.Comment...)
		}
		p, err := b.Build()
		if err != nil {
			return err
		}
		if err := s.AddProperty(p); err != nil {
			return err
		}
		ctx.Provider.composeSchema(ctx, child)
		return nil
	default:
		b, err := ctx.Provider.openBuilder(&OptionComposeContext{ComposeContext: ctx, Schema: s, Descriptor: d})
		if err != nil {
			return err
		}
		p, err := b.Build()
		if err != nil {
			return err
		}
		return s.AddProperty(p)
	}
}

// Compose composes s and its sections with the provider's composers. The
// schema is published as Composed only when every step succeeded.
func (p *Provider) Compose(s *Schema) error {
	if s == nil {
		return fmt.Errorf("aspen: compose nil schema")
	}
	if s.state != StateUninitialized {
		return fmt.Errorf("%w: %q is %s", ErrAlreadyComposed, s.displayName(), s.state)
	}
	s.provider = p
	s.state = StateComposing
	ctx := &ComposeContext{Provider: p, root: s}
	p.composeSchema(ctx, s)
	if ctx.err == nil {
		s.state = StatePostResolution
		for _, task := range ctx.post {
			ctx.Fail(task())
		}
	}
	if ctx.err != nil {
		s.state = StateFailed
		return &ComposeError{Schema: s.name, Err: ctx.err}
	}
	s.state = StateComposed
	return nil
}
