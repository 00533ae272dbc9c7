package aspen

import (
	"fmt"
	"reflect"
)

// Accessor is the storage strategy behind a property value. Implementations
// are addressed by the (schema, property) pair being read or written.
type Accessor interface {
	Get(s *Schema, p *Property) any
	Set(s *Schema, p *Property, value any) error
	Has(s *Schema, p *Property) bool
}

// ForField binds to the exported struct field at index on the schema's host
// instance. The host must be a non-nil pointer to a struct.
func ForField(index []int) Accessor {
	return fieldAccessor{index: append([]int(nil), index...)}
}

type fieldAccessor struct {
	index []int
}

func (a fieldAccessor) field(s *Schema, alloc bool) (reflect.Value, error) {
	if s == nil || s.instance == nil {
		return reflect.Value{}, fmt.Errorf("aspen: field accessor: schema has no host instance")
	}
	rv := reflect.ValueOf(s.instance)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return reflect.Value{}, fmt.Errorf("aspen: field accessor: host %T is not a pointer", s.instance)
	}
	rv = rv.Elem()
	for i, idx := range a.index {
		if i > 0 && rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				if !alloc {
					return reflect.Value{}, nil
				}
				rv.Set(reflect.New(rv.Type().Elem()))
			}
			rv = rv.Elem()
		}
		if rv.Kind() != reflect.Struct {
			return reflect.Value{}, fmt.Errorf("aspen: field accessor: %s is not a struct", rv.Type())
		}
		rv = rv.Field(idx)
	}
	return rv, nil
}

func (a fieldAccessor) Get(s *Schema, _ *Property) any {
	rv, err := a.field(s, false)
	if err != nil || !rv.IsValid() {
		return nil
	}
	return rv.Interface()
}

func (a fieldAccessor) Set(s *Schema, p *Property, value any) error {
	rv, err := a.field(s, true)
	if err != nil {
		return err
	}
	if !rv.CanSet() {
		return fmt.Errorf("aspen: field accessor: %s is not settable", p.Name())
	}
	converted, err := assignable(value, rv.Type())
	if err != nil {
		return err
	}
	rv.Set(converted)
	return nil
}

func (a fieldAccessor) Has(*Schema, *Property) bool { return true }

// check reports whether value could be stored without writing it.
func (a fieldAccessor) check(s *Schema, value any) error {
	t, err := a.fieldType(s)
	if err != nil {
		return err
	}
	_, err = assignable(value, t)
	return err
}

func (a fieldAccessor) fieldType(s *Schema) (reflect.Type, error) {
	if s == nil || s.instance == nil {
		return nil, fmt.Errorf("aspen: field accessor: schema has no host instance")
	}
	t := reflect.TypeOf(s.instance)
	if t.Kind() != reflect.Pointer {
		return nil, fmt.Errorf("aspen: field accessor: host %T is not a pointer", s.instance)
	}
	t = t.Elem()
	for i, idx := range a.index {
		if i > 0 && t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		if t.Kind() != reflect.Struct {
			return nil, fmt.Errorf("aspen: field accessor: %s is not a struct", t)
		}
		t = t.Field(idx).Type
	}
	return t, nil
}

// checker is implemented by accessors that can validate a write up front.
type checker interface {
	check(s *Schema, value any) error
}

// MemoryLocal keeps a single private slot independent of any host object.
func MemoryLocal() Accessor {
	return &memoryAccessor{}
}

type memoryAccessor struct {
	value any
	set   bool
}

func (a *memoryAccessor) Get(*Schema, *Property) any { return a.value }

func (a *memoryAccessor) Set(_ *Schema, _ *Property, value any) error {
	a.value = value
	a.set = true
	return nil
}

func (a *memoryAccessor) Has(*Schema, *Property) bool { return a.set }

func (a *memoryAccessor) snapshot(*Schema, *Property) func() error {
	value, set := a.value, a.set
	return func() error {
		a.value, a.set = value, set
		return nil
	}
}

// SharedAccessor stores one value per schema so a single property can be
// declared once and reused across unrelated hosts. Entries are kept until
// Forget is called; the map is not synchronized.
type SharedAccessor struct {
	values map[*Schema]any
}

// SharedBySchema returns an empty shared accessor.
func SharedBySchema() *SharedAccessor {
	return &SharedAccessor{values: map[*Schema]any{}}
}

func (a *SharedAccessor) Get(s *Schema, _ *Property) any { return a.values[s] }

func (a *SharedAccessor) Set(s *Schema, _ *Property, value any) error {
	a.values[s] = value
	return nil
}

func (a *SharedAccessor) Has(s *Schema, _ *Property) bool {
	_, ok := a.values[s]
	return ok
}

func (a *SharedAccessor) snapshot(s *Schema, _ *Property) func() error {
	value, ok := a.values[s]
	return func() error {
		if ok {
			a.values[s] = value
		} else {
			delete(a.values, s)
		}
		return nil
	}
}

// Forget drops the value held for s.
func (a *SharedAccessor) Forget(s *Schema) {
	delete(a.values, s)
}

// Len reports how many schemas hold a value.
func (a *SharedAccessor) Len() int { return len(a.values) }

// Constant always returns value and ignores writes.
func Constant(value any) Accessor {
	return constantAccessor{value: value}
}

type constantAccessor struct {
	value any
}

func (a constantAccessor) Get(*Schema, *Property) any        { return a.value }
func (a constantAccessor) Set(*Schema, *Property, any) error { return nil }
func (a constantAccessor) Has(*Schema, *Property) bool       { return true }

// DefaultedAccessor materializes a default on the first read that finds no
// stored value, or only a zero value. The supplier runs at most once per
// schema until Clear, and never after an explicit Set. Has reports false while
// a read would still materialize the default.
type DefaultedAccessor struct {
	inner    Accessor
	supplier func() any
	done     map[*Schema]bool
	errs     map[*Schema]error
}

// Defaulted wraps inner with a lazily applied default.
func Defaulted(inner Accessor, supplier func() any) *DefaultedAccessor {
	return &DefaultedAccessor{
		inner:    inner,
		supplier: supplier,
		done:     map[*Schema]bool{},
		errs:     map[*Schema]error{},
	}
}

func (a *DefaultedAccessor) pending(s *Schema, p *Property) bool {
	if a.supplier == nil || a.done[s] {
		return false
	}
	return !a.inner.Has(s, p) || isZero(a.inner.Get(s, p))
}

// Materialize stores the default for s if a read would supply one. A failed
// write is returned and the supplier stays armed.
func (a *DefaultedAccessor) Materialize(s *Schema, p *Property) error {
	if !a.pending(s, p) {
		a.done[s] = a.done[s] || a.supplier != nil
		return nil
	}
	if err := a.inner.Set(s, p, a.supplier()); err != nil {
		a.errs[s] = err
		return err
	}
	delete(a.errs, s)
	a.done[s] = true
	return nil
}

// Err returns the error from the last failed default write for s.
func (a *DefaultedAccessor) Err(s *Schema) error { return a.errs[s] }

func (a *DefaultedAccessor) Get(s *Schema, p *Property) any {
	_ = a.Materialize(s, p) // recorded in Err
	return a.inner.Get(s, p)
}

func (a *DefaultedAccessor) Set(s *Schema, p *Property, value any) error {
	if err := a.inner.Set(s, p, value); err != nil {
		return err
	}
	delete(a.errs, s)
	a.done[s] = true
	return nil
}

func (a *DefaultedAccessor) Has(s *Schema, p *Property) bool {
	return !a.pending(s, p) && a.inner.Has(s, p)
}

func (a *DefaultedAccessor) check(s *Schema, value any) error {
	if c, ok := a.inner.(checker); ok {
		return c.check(s, value)
	}
	return nil
}

func (a *DefaultedAccessor) snapshot(s *Schema, p *Property) func() error {
	done, had := a.done[s]
	restore := snapshotInner(a.inner, s, p)
	return func() error {
		if had {
			a.done[s] = done
		} else {
			delete(a.done, s)
		}
		return restore()
	}
}

// Clear allows the supplier to run again for s.
func (a *DefaultedAccessor) Clear(s *Schema) {
	delete(a.done, s)
}

// Dynamic resolves the real accessor on every call.
func Dynamic(resolve func() Accessor) Accessor {
	return dynamicAccessor{resolve: resolve}
}

type dynamicAccessor struct {
	resolve func() Accessor
}

func (a dynamicAccessor) target() Accessor {
	if a.resolve == nil {
		return nil
	}
	return a.resolve()
}

func (a dynamicAccessor) Get(s *Schema, p *Property) any {
	if t := a.target(); t != nil {
		return t.Get(s, p)
	}
	return nil
}

func (a dynamicAccessor) Set(s *Schema, p *Property, value any) error {
	if t := a.target(); t != nil {
		return t.Set(s, p, value)
	}
	return ErrUnresolvedReference
}

func (a dynamicAccessor) Has(s *Schema, p *Property) bool {
	if t := a.target(); t != nil {
		return t.Has(s, p)
	}
	return false
}

func (a dynamicAccessor) snapshot(s *Schema, p *Property) func() error {
	if t := a.target(); t != nil {
		return snapshotInner(t, s, p)
	}
	return func() error { return nil }
}

// snapshotInner captures the slot behind inner. Accessors that cannot report
// an absent value are restored to what Get returned.
func snapshotInner(inner Accessor, s *Schema, p *Property) func() error {
	if sn, ok := inner.(snapshotter); ok {
		return sn.snapshot(s, p)
	}
	if !inner.Has(s, p) {
		return func() error { return nil }
	}
	prior := inner.Get(s, p)
	return func() error { return inner.Set(s, p, prior) }
}

// FuncAccessor binds a property to getter and setter closures, typically
// generated for a descriptor table. Has is always true.
type FuncAccessor struct {
	GetFunc func(s *Schema) any
	SetFunc func(s *Schema, value any) error
}

func (a FuncAccessor) Get(s *Schema, _ *Property) any {
	if a.GetFunc == nil {
		return nil
	}
	return a.GetFunc(s)
}

func (a FuncAccessor) Set(s *Schema, _ *Property, value any) error {
	if a.SetFunc == nil {
		return nil
	}
	return a.SetFunc(s, value)
}

func (a FuncAccessor) Has(*Schema, *Property) bool { return true }

// assignable converts value for storage in a slot of type t.
func assignable(value any, t reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(value)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}
	if isNumericKind(rv.Kind()) && isNumericKind(t.Kind()) {
		return rv.Convert(t), nil
	}
	if rv.Kind() == t.Kind() && rv.Type().ConvertibleTo(t) {
		return rv.Convert(t), nil
	}
	if t.Kind() == reflect.Pointer && rv.Type().AssignableTo(t.Elem()) {
		ptr := reflect.New(t.Elem())
		ptr.Elem().Set(rv)
		return ptr, nil
	}
	return reflect.Value{}, NewValueError(value, "value assignable to %s", t)
}

func isZero(value any) bool {
	if value == nil {
		return true
	}
	return reflect.ValueOf(value).IsZero()
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
