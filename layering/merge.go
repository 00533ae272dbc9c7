// Package layering stacks raw object trees, strongest first. Profiles use it
// to lay an emitted tree over the bundled defaults document.
package layering

import "github.com/goliatone/go-aspen/raw"

// Layer merges layers ordered from strongest to weakest into a new tree.
// Objects merge key by key; any other node from a stronger layer replaces
// the weaker one. Keys keep the weakest layer's order with new keys appended,
// and a stronger node without comments inherits the comments it replaces.
// A string replacing a string keeps the weaker quoting style. Inputs are not
// modified.
func Layer(layers ...*raw.Object) *raw.Object {
	var merged *raw.Object
	for i := len(layers) - 1; i >= 0; i-- {
		layer := layers[i]
		if layer == nil {
			continue
		}
		if merged == nil {
			merged = raw.Clone(layer).(*raw.Object)
			continue
		}
		overlay(merged, layer)
	}
	if merged == nil {
		return raw.NewObject()
	}
	return merged
}

func overlay(dst, src *raw.Object) {
	inheritComments(dst, src)
	for _, pair := range src.Entries() {
		value := pair.Value()
		if raw.IsUndefined(value) {
			continue
		}
		existing, ok := dst.Get(pair.Name())
		if ok {
			if weak, isObj := existing.(*raw.Object); isObj {
				if strong, isObj := value.(*raw.Object); isObj {
					overlay(weak, strong)
					continue
				}
			}
		}
		clone := raw.Clone(value)
		if ok {
			keepComments(clone, existing)
			keepStyle(clone, existing)
		}
		if target, found := dst.Pair(pair.Name()); found {
			target.SetValue(clone)
			continue
		}
		dst.PutPair(clonePair(pair, clone))
	}
}

// inheritComments copies src's comments onto dst when src has any.
func inheritComments(dst, src *raw.Object) {
	if src.HasComments() {
		dst.BlockComment = append([]string(nil), src.BlockComment...)
		dst.InlineComment = append([]string(nil), src.InlineComment...)
		dst.EndComment = append([]string(nil), src.EndComment...)
	}
}

func keepComments(strong, weak raw.Node) {
	sm, wm := raw.MetaOf(strong), raw.MetaOf(weak)
	if sm == nil || wm == nil || sm.HasComments() {
		return
	}
	sm.BlockComment = append([]string(nil), wm.BlockComment...)
	sm.InlineComment = append([]string(nil), wm.InlineComment...)
	sm.EndComment = append([]string(nil), wm.EndComment...)
}

func keepStyle(strong, weak raw.Node) {
	ss, ok := strong.(*raw.Scalar)
	if !ok {
		return
	}
	ws, ok := weak.(*raw.Scalar)
	if !ok {
		return
	}
	_, strongText := ss.Value().(string)
	_, weakText := ws.Value().(string)
	if strongText && weakText {
		ss.SetStyle(ws.Style())
	}
}

func clonePair(src *raw.Pair, value raw.Node) *raw.Pair {
	p := raw.NewPair(src.Name(), value)
	if src.Key != nil {
		p.Key.SetStyle(src.Key.Style())
	}
	p.Source = src.Source
	return p
}

// Clone returns a deep copy of obj.
func Clone(obj *raw.Object) *raw.Object {
	if obj == nil {
		return nil
	}
	return raw.Clone(obj).(*raw.Object)
}
