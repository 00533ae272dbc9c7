package raw

// Merge combines two objects. Keys of a keep their order and take b's value
// when b also defines them; keys only present in b are appended in b's order.
// Inputs are not modified.
func Merge(a, b *Object) *Object {
	out := &Object{}
	if a != nil {
		copyMeta(&out.Meta, &a.Meta)
		for _, p := range a.entries {
			if b != nil {
				if other, ok := b.Pair(p.Name()); ok {
					out.append(clonePair(other))
					continue
				}
			}
			out.append(clonePair(p))
		}
	}
	if b != nil {
		if a == nil {
			copyMeta(&out.Meta, &b.Meta)
		}
		for _, p := range b.entries {
			if a != nil {
				if _, ok := a.Pair(p.Name()); ok {
					continue
				}
			}
			out.append(clonePair(p))
		}
	}
	return out
}

// MergeLists concatenates two lists into a new list.
func MergeLists(a, b *List) *List {
	out := &List{}
	for _, l := range []*List{a, b} {
		if l == nil {
			continue
		}
		for _, item := range l.items {
			out.Append(Clone(item))
		}
	}
	if a != nil {
		copyMeta(&out.Meta, &a.Meta)
	}
	return out
}
