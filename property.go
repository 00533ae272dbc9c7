package aspen

import (
	"fmt"
	"reflect"

	"github.com/goliatone/go-aspen/internal/hydrate"
	"github.com/goliatone/go-aspen/raw"
	"go.uber.org/multierr"
)

// Numeric lists the types accepted by Number.
type Numeric interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

// Property is a named, typed value bound to a schema through an accessor.
// Properties are immutable once built.
type Property struct {
	name       string
	complex    reflect.Type
	primitive  reflect.Type
	codec      Codec
	accessor   Accessor
	components []Component
	comment    []string
	commenter  func(raw.Node)
	scalar     bool

	schema  *Schema
	section *Schema
	element *Property
}

func (p *Property) Name() string { return p.name }

// Type returns the complex (in-memory) type.
func (p *Property) Type() reflect.Type { return p.complex }

// PrimitiveType returns the wire type stored in the raw tree.
func (p *Property) PrimitiveType() reflect.Type { return p.primitive }

func (p *Property) Codec() Codec { return p.codec }

// Accessor returns the accessor values are stored through.
func (p *Property) Accessor() Accessor { return p.accessor }

func (p *Property) Comment() []string { return append([]string(nil), p.comment...) }

// Components returns the constraint pipeline in evaluation order.
func (p *Property) Components() []Component {
	return append([]Component(nil), p.components...)
}

// Schema returns the schema the property was last added to.
func (p *Property) Schema() *Schema { return p.schema }

// IsSection reports whether the property wraps a child schema.
func (p *Property) IsSection() bool { return p.section != nil }

// Section returns the child schema of a section property.
func (p *Property) Section() (*Schema, bool) { return p.section, p.section != nil }

// Element returns the element property of a collection.
func (p *Property) Element() (*Property, bool) { return p.element, p.element != nil }

func (p *Property) Get() any             { return p.GetIn(p.schema) }
func (p *Property) Set(value any) error  { return p.SetIn(p.schema, value) }
func (p *Property) Has() bool            { return p.HasIn(p.schema) }
func (p *Property) GetIn(s *Schema) any  { return p.accessor.Get(s, p) }
func (p *Property) HasIn(s *Schema) bool { return p.accessor.Has(s, p) }
func (p *Property) SetIn(s *Schema, v any) error {
	return p.accessor.Set(s, p, v)
}

// ValueOf returns the property's current value as T, or the zero value when
// the stored value has another type.
func ValueOf[T any](p *Property) T {
	v, _ := p.Get().(T)
	return v
}

// check validates a staged write against accessors that can tell up front.
func (p *Property) check(s *Schema, value any) error {
	if c, ok := p.accessor.(checker); ok {
		return c.check(s, value)
	}
	return nil
}

// decode converts node into the complex type and runs the components.
func (p *Property) decode(ctx *PropertyContext, node raw.Node) (any, error) {
	var (
		value any
		err   error
	)
	if nc, ok := p.codec.(NodeCodec); ok {
		value, err = nc.LoadNode(ctx, node)
	} else {
		if p.scalar {
			if _, err := raw.Expect[*raw.Scalar](node); err != nil {
				return nil, err
			}
		}
		value, err = p.codec.FromPrimitive(ctx, node.ToValue())
	}
	if err != nil {
		return nil, err
	}
	for _, c := range p.components {
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

// encode converts value into a raw node without attaching comments.
func (p *Property) encode(ctx *PropertyContext, value any) (raw.Node, error) {
	if nc, ok := p.codec.(NodeCodec); ok {
		return nc.EmitNode(ctx, value)
	}
	primitive, err := p.codec.ToPrimitive(ctx, value)
	if err != nil {
		return nil, err
	}
	return raw.FromValue(primitive), nil
}

func (p *Property) emitValue(ctx *PropertyContext) (raw.Node, error) {
	node, err := p.encode(ctx, p.GetIn(ctx.Schema))
	if err != nil {
		return nil, err
	}
	p.decorate(node, ctx.Path)
	return node, nil
}

func (p *Property) decorate(node raw.Node, path string) {
	meta := raw.MetaOf(node)
	if meta == nil {
		return
	}
	meta.Source = raw.EmittedSource{Ref: path}
	if p.commenter != nil {
		p.commenter(node)
		return
	}
	if len(p.comment) > 0 {
		meta.BlockComment = append([]string(nil), p.comment...)
	}
}

// Builder assembles a Property. Composers receive a builder so they can
// refine it before the property is built.
type Builder struct {
	name       string
	complex    reflect.Type
	primitive  reflect.Type
	codec      Codec
	accessor   Accessor
	components []Component
	comment    []string
	commenter  func(raw.Node)
	supplier   func() any
	scalar     bool
	identity   bool

	section   *Schema
	element   *Builder
	container ContainerFactory
	err       error
}

// NewBuilder starts an identity-converted property of type t.
func NewBuilder(name string, t reflect.Type) *Builder {
	return &Builder{
		name:     name,
		complex:  t,
		codec:    identityCodec{complex: t},
		scalar:   scalarKind(t),
		identity: true,
	}
}

// Simple declares a property whose stored form is the value itself.
func Simple[T any](name string) *Builder {
	return NewBuilder(name, reflect.TypeFor[T]())
}

// Number declares a numeric property stored as int64 or float64.
func Number[T Numeric](name string) *Builder {
	return numberBuilder(name, reflect.TypeFor[T]())
}

func numberBuilder(name string, t reflect.Type) *Builder {
	codec := numberCodec{complex: t}
	primitive := reflect.TypeFor[int64]()
	if !codec.integral() {
		primitive = reflect.TypeFor[float64]()
	}
	return &Builder{name: name, complex: t, primitive: primitive, codec: codec, scalar: true}
}

// Enum declares a property restricted to values, stored by name.
func Enum[T comparable](name string, values ...T) *Builder {
	anyValues := make([]any, len(values))
	for i, v := range values {
		anyValues[i] = v
	}
	return enumBuilder(name, reflect.TypeFor[T](), anyValues)
}

func enumBuilder(name string, t reflect.Type, values []any) *Builder {
	return &Builder{
		name:      name,
		complex:   t,
		primitive: reflect.TypeFor[string](),
		codec:     newEnumCodec(t, values),
		scalar:    true,
	}
}

// Behaviour declares a property converted through b.
func Behaviour(name string, b PropertyBehaviour) *Builder {
	return &Builder{
		name:      name,
		complex:   b.Complex,
		primitive: b.Primitive,
		codec:     behaviourCodec{behaviour: b},
		scalar:    scalarKind(b.Primitive),
	}
}

// Struct declares a struct or map valued property stored as a nested object.
func Struct[T any](name string) *Builder {
	return structBuilder(name, reflect.TypeFor[T]())
}

func structBuilder(name string, t reflect.Type) *Builder {
	return &Builder{
		name:      name,
		complex:   t,
		primitive: reflect.TypeFor[map[string]any](),
		codec:     structCodec{complex: t, decoder: hydrate.NewDecoder(hydrate.WithDisallowUnknownFields())},
	}
}

// Collection declares a list property whose items are converted by element.
// The container defaults to a slice of E.
func Collection[E any](name string, element *Builder) *Builder {
	return collectionBuilder(name, reflect.TypeFor[E](), element)
}

func collectionBuilder(name string, elem reflect.Type, element *Builder) *Builder {
	if element == nil {
		element = NewBuilder(name, elem)
	}
	factory := SliceOf()
	return &Builder{
		name:      name,
		complex:   factory.Type(elem),
		primitive: reflect.TypeFor[[]any](),
		element:   element,
		container: factory,
	}
}

// Section declares a property wrapping child.
func Section(name string, child *Schema) *Builder {
	b := &Builder{
		name:      name,
		primitive: reflect.TypeFor[map[string]any](),
		accessor:  Constant(child),
		section:   child,
	}
	if child != nil {
		b.complex = reflect.TypeOf(child)
	}
	return b
}

func scalarKind(t reflect.Type) bool {
	if t == nil {
		return false
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String:
		return true
	}
	return isNumericKind(t.Kind())
}

func (b *Builder) Name() string { return b.name }

func (b *Builder) Type() reflect.Type { return b.complex }

// Rename changes the property name.
func (b *Builder) Rename(name string) *Builder {
	b.name = name
	return b
}

// With appends components to the pipeline.
func (b *Builder) With(components ...Component) *Builder {
	b.components = append(b.components, components...)
	return b
}

// Comment sets the comment emitted above the value.
func (b *Builder) Comment(lines ...string) *Builder {
	b.comment = append([]string(nil), lines...)
	return b
}

// Commenter replaces the default comment placement.
func (b *Builder) Commenter(fn func(raw.Node)) *Builder {
	b.commenter = fn
	return b
}

func (b *Builder) Accessor(a Accessor) *Builder {
	b.accessor = a
	return b
}

// HasAccessor reports whether an accessor was chosen explicitly.
func (b *Builder) HasAccessor() bool { return b.accessor != nil }

// Shared stores values per schema so the property can be reused.
func (b *Builder) Shared() *Builder {
	b.accessor = SharedBySchema()
	return b
}

// Default supplies v on the first read that finds no stored value.
func (b *Builder) Default(v any) *Builder {
	return b.DefaultFunc(func() any { return v })
}

// DefaultFunc supplies the default lazily.
func (b *Builder) DefaultFunc(fn func() any) *Builder {
	b.supplier = fn
	return b
}

// Primitive overrides the wire type checked for identity conversions.
func (b *Builder) Primitive(t reflect.Type) *Builder {
	b.primitive = t
	return b
}

// Codec replaces the converter.
func (b *Builder) Codec(c Codec) *Builder {
	b.codec = c
	b.identity = false
	return b
}

// Container replaces the collection container factory.
func (b *Builder) Container(f ContainerFactory) *Builder {
	if b.element == nil {
		b.fail(fmt.Errorf("aspen: property %q: container set on a non-collection", b.name))
		return b
	}
	b.container = f
	b.complex = f.Type(b.element.complex)
	return b
}

// Element returns the element builder of a collection.
func (b *Builder) Element() (*Builder, bool) { return b.element, b.element != nil }

func (b *Builder) fail(err error) {
	b.err = multierr.Append(b.err, err)
}

// Build validates the builder and returns the property.
func (b *Builder) Build() (*Property, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.name == "" {
		return nil, fmt.Errorf("aspen: property name must not be empty")
	}
	if b.identity && b.primitive != nil && b.complex != nil && !b.primitive.AssignableTo(b.complex) {
		return nil, fmt.Errorf("aspen: property %q: primitive %s not assignable to %s", b.name, b.primitive, b.complex)
	}
	p := &Property{
		name:       b.name,
		complex:    b.complex,
		primitive:  b.primitive,
		codec:      b.codec,
		components: append([]Component(nil), b.components...),
		comment:    append([]string(nil), b.comment...),
		commenter:  b.commenter,
		scalar:     b.scalar,
		section:    b.section,
	}
	if p.primitive == nil {
		p.primitive = p.complex
	}
	switch {
	case b.section != nil:
		p.codec = sectionCodec{child: b.section}
	case b.element != nil:
		element, err := b.element.Build()
		if err != nil {
			return nil, fmt.Errorf("aspen: property %q element: %w", b.name, err)
		}
		p.element = element
		p.codec = collectionCodec{element: element, container: b.container}
	case p.codec == nil:
		p.codec = identityCodec{complex: p.complex}
	}
	accessor := b.accessor
	if accessor == nil {
		accessor = MemoryLocal()
	}
	if b.supplier != nil {
		accessor = Defaulted(accessor, b.supplier)
	}
	p.accessor = accessor
	return p, nil
}

// MustBuild is Build that panics on error.
func (b *Builder) MustBuild() *Property {
	p, err := b.Build()
	if err != nil {
		panic(err)
	}
	return p
}
