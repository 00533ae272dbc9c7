package raw

import (
	"fmt"
	"reflect"
	"sort"
)

// FromValue builds a tree from native values. Maps become objects with sorted
// keys, slices and arrays become lists and everything else becomes a scalar.
func FromValue(value any) Node {
	switch v := value.(type) {
	case Node:
		return v
	case nil:
		return NewScalar(nil)
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := NewObject()
		for _, k := range keys {
			out.Put(k, FromValue(v[k]))
		}
		return out
	case []any:
		out := NewList()
		for _, item := range v {
			out.Append(FromValue(item))
		}
		return out
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return NewScalar(nil)
		}
		return FromValue(rv.Elem().Interface())
	case reflect.Map:
		keys := rv.MapKeys()
		names := make([]string, len(keys))
		byName := make(map[string]reflect.Value, len(keys))
		for i, k := range keys {
			names[i] = fmt.Sprint(k.Interface())
			byName[names[i]] = k
		}
		sort.Strings(names)
		out := NewObject()
		for _, name := range names {
			out.Put(name, FromValue(rv.MapIndex(byName[name]).Interface()))
		}
		return out
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.IsNil() {
			return NewList()
		}
		out := NewList()
		for i := 0; i < rv.Len(); i++ {
			out.Append(FromValue(rv.Index(i).Interface()))
		}
		return out
	}
	return NewScalar(value)
}

// Clone deep-copies n including comments. The copy is detached from any parent.
func Clone(n Node) Node {
	switch v := n.(type) {
	case nil:
		return nil
	case *Scalar:
		out := &Scalar{value: v.value, style: v.style}
		copyMeta(&out.Meta, &v.Meta)
		return out
	case *Undefined:
		out := &Undefined{}
		copyMeta(&out.Meta, &v.Meta)
		return out
	case *List:
		out := &List{}
		copyMeta(&out.Meta, &v.Meta)
		for _, item := range v.items {
			out.Append(Clone(item))
		}
		return out
	case *Object:
		out := &Object{}
		copyMeta(&out.Meta, &v.Meta)
		for _, p := range v.entries {
			out.append(clonePair(p))
		}
		return out
	case *Pair:
		return clonePair(v)
	default:
		panic(fmt.Sprintf("raw: cannot clone %T", n))
	}
}

func clonePair(p *Pair) *Pair {
	out := &Pair{}
	if p.Key != nil {
		out.Key = Clone(p.Key).(*Scalar)
	}
	copyMeta(&out.Meta, &p.Meta)
	out.SetValue(Clone(p.value))
	return out
}

func copyMeta(dst, src *Meta) {
	dst.BlockComment = cloneLines(src.BlockComment)
	dst.InlineComment = cloneLines(src.InlineComment)
	dst.EndComment = cloneLines(src.EndComment)
	dst.Source = src.Source
}

func cloneLines(lines []string) []string {
	if len(lines) == 0 {
		return nil
	}
	return append([]string(nil), lines...)
}

// Adapter converts between bytes and a node tree.
type Adapter interface {
	// Parse decodes data; name is recorded as the file in node provenance.
	Parse(data []byte, name string) (Node, error)
	Serialize(root Node) ([]byte, error)
}
