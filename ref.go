package aspen

import (
	"fmt"
	"reflect"
)

// Placeholder is a host field completed after the composition walk.
type Placeholder interface {
	// Resolved reports whether the placeholder points at a property.
	Resolved() bool

	setPath(path string)
	bind(ctx *ComposeContext, s *Schema, d Descriptor) error
}

// Ref is a typed handle to a property that may be declared elsewhere in the
// schema tree. It is resolved during the post-resolution phase of
// composition; until then every access fails with ErrUnresolvedReference.
type Ref[T any] struct {
	path     string
	direct   *Property
	property *Property
	schema   *Schema
}

// Future wraps p, which is added to the schema declaring the field.
func Future[T any](p *Property) *Ref[T] {
	return &Ref[T]{direct: p}
}

// Find refers to the property at path, "/"-separated and relative to the
// declaring schema unless it starts with "/".
func Find[T any](path string) *Ref[T] {
	return &Ref[T]{path: path}
}

func (r *Ref[T]) setPath(path string) { r.path = path }

// Path returns the lookup path of the reference.
func (r *Ref[T]) Path() string { return r.path }

func (r *Ref[T]) Resolved() bool { return r != nil && r.property != nil }

// Property returns the resolved property.
func (r *Ref[T]) Property() (*Property, error) {
	if !r.Resolved() {
		return nil, fmt.Errorf("%w: %s", ErrUnresolvedReference, r.describe())
	}
	return r.property, nil
}

// Get returns the current value of the referenced property.
func (r *Ref[T]) Get() (T, error) {
	var zero T
	p, err := r.Property()
	if err != nil {
		return zero, err
	}
	value := p.GetIn(r.schema)
	if value == nil {
		return zero, nil
	}
	typed, ok := value.(T)
	if !ok {
		return zero, NewValueError(value, "value of type %s", reflect.TypeFor[T]())
	}
	return typed, nil
}

// Set stores v through the referenced property.
func (r *Ref[T]) Set(v T) error {
	p, err := r.Property()
	if err != nil {
		return err
	}
	return p.SetIn(r.schema, v)
}

func (r *Ref[T]) describe() string {
	if r.direct != nil {
		return fmt.Sprintf("reference to %q", r.direct.Name())
	}
	return fmt.Sprintf("reference %q", r.path)
}

func (r *Ref[T]) bind(ctx *ComposeContext, s *Schema, _ Descriptor) error {
	if r.direct != nil {
		if err := s.AddProperty(r.direct); err != nil {
			return err
		}
		target := r.direct
		ctx.SchedulePost(func() error { return r.resolve(target, s) })
		return nil
	}
	if r.path == "" {
		return fmt.Errorf("reference without a path in schema %q", s.displayName())
	}
	ctx.SchedulePost(func() error {
		p, ok := s.FindProperty(r.path)
		if !ok {
			return fmt.Errorf("%w: no property at %q from schema %q", ErrUnresolvedReference, r.path, s.displayName())
		}
		return r.resolve(p, p.schema)
	})
	return nil
}

func (r *Ref[T]) resolve(p *Property, owner *Schema) error {
	want := reflect.TypeFor[T]()
	if p.complex != nil && want.Kind() != reflect.Interface && !p.complex.AssignableTo(want) {
		return fmt.Errorf("%s: property type %s is not %s", r.describe(), p.complex, want)
	}
	r.property = p
	r.schema = owner
	return nil
}
