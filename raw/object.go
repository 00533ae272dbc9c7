package raw

// Object is an insertion-ordered sequence of key/value pairs.
type Object struct {
	Meta
	entries []*Pair
	index   map[string]int
	cache   map[string]any
	cached  bool
}

// NewObject builds an object from pairs, later keys replacing earlier ones.
func NewObject(pairs ...*Pair) *Object {
	o := &Object{}
	for _, p := range pairs {
		o.PutPair(p)
	}
	return o
}

func (o *Object) Kind() Kind { return KindObject }
func (o *Object) Len() int   { return len(o.entries) }

// Entries returns a copy of the pair slice in insertion order.
func (o *Object) Entries() []*Pair {
	return append([]*Pair(nil), o.entries...)
}

// Keys returns the key names in insertion order.
func (o *Object) Keys() []string {
	keys := make([]string, len(o.entries))
	for i, p := range o.entries {
		keys[i] = p.Name()
	}
	return keys
}

// Get returns the value stored under key.
func (o *Object) Get(key string) (Node, bool) {
	p, ok := o.Pair(key)
	if !ok {
		return nil, false
	}
	return p.Value(), true
}

// Pair returns the entry stored under key.
func (o *Object) Pair(key string) (*Pair, bool) {
	idx, ok := o.lookup()[key]
	if !ok {
		return nil, false
	}
	return o.entries[idx], true
}

// Has reports whether key is present with a defined value.
func (o *Object) Has(key string) bool {
	n, ok := o.Get(key)
	return ok && !IsUndefined(n)
}

// Put stores value under key. An existing entry keeps its position and
// comments; a new key is appended.
func (o *Object) Put(key string, value Node) *Pair {
	if p, ok := o.Pair(key); ok {
		p.SetValue(value)
		return p
	}
	p := NewPair(key, value)
	o.append(p)
	return p
}

// PutPair stores p, replacing any entry with the same key in place.
func (o *Object) PutPair(p *Pair) {
	if p == nil {
		return
	}
	if idx, ok := o.lookup()[p.Name()]; ok {
		adopt(o, p)
		o.entries[idx] = p
		o.invalidate()
		return
	}
	o.append(p)
}

// Remove deletes key and reports whether it was present.
func (o *Object) Remove(key string) bool {
	idx, ok := o.lookup()[key]
	if !ok {
		return false
	}
	o.entries[idx].owner = nil
	o.entries = append(o.entries[:idx], o.entries[idx+1:]...)
	o.index = nil
	o.invalidate()
	return true
}

func (o *Object) append(p *Pair) {
	adopt(o, p)
	o.entries = append(o.entries, p)
	if o.index != nil {
		o.index[p.Name()] = len(o.entries) - 1
	}
	o.invalidate()
}

func (o *Object) lookup() map[string]int {
	if o.index == nil {
		o.index = make(map[string]int, len(o.entries))
		for i, p := range o.entries {
			o.index[p.Name()] = i
		}
	}
	return o.index
}

func (o *Object) ToValue() any {
	if o.cached {
		return o.cache
	}
	out := make(map[string]any, len(o.entries))
	for _, p := range o.entries {
		if IsUndefined(p.Value()) {
			continue
		}
		out[p.Name()] = p.Value().ToValue()
	}
	o.cache = out
	o.cached = true
	return out
}

func (o *Object) invalidate() {
	o.cached = false
	o.cache = nil
	o.invalidateOwner()
}
