package aspen

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/goliatone/go-aspen/raw"
)

// ContainerFactory builds and unpacks the container a collection is stored in.
type ContainerFactory interface {
	// Type returns the container type for elements of type elem.
	Type(elem reflect.Type) reflect.Type
	// New packs items, already converted to elem, into a container.
	New(elem reflect.Type, items []any) (any, error)
	// Items unpacks container in emission order.
	Items(container any) ([]any, error)
}

// SliceOf stores collections as []E.
func SliceOf() ContainerFactory { return sliceFactory{} }

type sliceFactory struct{}

func (sliceFactory) Type(elem reflect.Type) reflect.Type { return reflect.SliceOf(elem) }

func (sliceFactory) New(elem reflect.Type, items []any) (any, error) {
	out := reflect.MakeSlice(reflect.SliceOf(elem), 0, len(items))
	for _, item := range items {
		rv, err := assignable(item, elem)
		if err != nil {
			return nil, err
		}
		out = reflect.Append(out, rv)
	}
	return out.Interface(), nil
}

func (sliceFactory) Items(container any) ([]any, error) {
	if isNil(container) {
		return nil, nil
	}
	rv := reflect.ValueOf(container)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, NewValueError(container, "slice value")
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

// ArrayOf stores collections as [n]E. Loading a list of any other length
// fails.
func ArrayOf(n int) ContainerFactory { return arrayFactory{n: n} }

type arrayFactory struct {
	n int
}

func (f arrayFactory) Type(elem reflect.Type) reflect.Type { return reflect.ArrayOf(f.n, elem) }

func (f arrayFactory) New(elem reflect.Type, items []any) (any, error) {
	if len(items) != f.n {
		return nil, NewValueError(items, "list of %d items", f.n)
	}
	out := reflect.New(f.Type(elem)).Elem()
	for i, item := range items {
		rv, err := assignable(item, elem)
		if err != nil {
			return nil, err
		}
		out.Index(i).Set(rv)
	}
	return out.Interface(), nil
}

func (f arrayFactory) Items(container any) ([]any, error) {
	if isNil(container) {
		return nil, nil
	}
	rv := reflect.ValueOf(container)
	if rv.Kind() != reflect.Array || rv.Len() != f.n {
		return nil, NewValueError(container, "array of %d items", f.n)
	}
	out := make([]any, f.n)
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

// SetOf stores collections as map[E]struct{}. Items are emitted sorted by
// their text form so saves are stable.
func SetOf() ContainerFactory { return setFactory{} }

type setFactory struct{}

func (setFactory) Type(elem reflect.Type) reflect.Type {
	return reflect.MapOf(elem, reflect.TypeFor[struct{}]())
}

func (f setFactory) New(elem reflect.Type, items []any) (any, error) {
	if !elem.Comparable() {
		return nil, fmt.Errorf("aspen: set element %s is not comparable", elem)
	}
	out := reflect.MakeMapWithSize(f.Type(elem), len(items))
	for _, item := range items {
		rv, err := assignable(item, elem)
		if err != nil {
			return nil, err
		}
		out.SetMapIndex(rv, reflect.ValueOf(struct{}{}))
	}
	return out.Interface(), nil
}

func (setFactory) Items(container any) ([]any, error) {
	if isNil(container) {
		return nil, nil
	}
	rv := reflect.ValueOf(container)
	if rv.Kind() != reflect.Map {
		return nil, NewValueError(container, "set value")
	}
	out := make([]any, 0, rv.Len())
	for _, key := range rv.MapKeys() {
		out = append(out, key.Interface())
	}
	sort.Slice(out, func(i, j int) bool {
		return raw.DefaultScalarFormat.Text(out[i]) < raw.DefaultScalarFormat.Text(out[j])
	})
	return out, nil
}

type collectionCodec struct {
	element   *Property
	container ContainerFactory
}

func (c collectionCodec) factory() ContainerFactory {
	if c.container == nil {
		return SliceOf()
	}
	return c.container
}

func (c collectionCodec) ToPrimitive(ctx *PropertyContext, value any) (any, error) {
	node, err := c.EmitNode(ctx, value)
	if err != nil {
		return nil, err
	}
	return node.ToValue(), nil
}

func (c collectionCodec) FromPrimitive(ctx *PropertyContext, primitive any) (any, error) {
	return c.LoadNode(ctx, raw.FromValue(primitive))
}

func (c collectionCodec) LoadNode(ctx *PropertyContext, node raw.Node) (any, error) {
	if s, ok := node.(*raw.Scalar); ok && s.IsNull() {
		return nil, nil
	}
	list, err := raw.Expect[*raw.List](node)
	if err != nil {
		return nil, err
	}
	items := make([]any, 0, list.Len())
	for i, item := range list.Items() {
		ectx := ctx.element(c.element, i, item)
		value, err := c.element.decode(ectx, item)
		if err != nil {
			return nil, &PropertyError{Path: ectx.Path, Source: ectx.Source, Err: err}
		}
		items = append(items, value)
	}
	return c.factory().New(c.element.complex, items)
}

func (c collectionCodec) EmitNode(ctx *PropertyContext, value any) (raw.Node, error) {
	items, err := c.factory().Items(value)
	if err != nil {
		return nil, err
	}
	list := raw.NewList()
	for i, item := range items {
		ectx := ctx.element(c.element, i, nil)
		node, err := c.element.encode(ectx, item)
		if err != nil {
			return nil, &PropertyError{Path: ectx.Path, Err: err}
		}
		if meta := raw.MetaOf(node); meta != nil {
			meta.Source = raw.EmittedSource{Ref: ectx.Path}
		}
		list.Append(node)
	}
	return list, nil
}
