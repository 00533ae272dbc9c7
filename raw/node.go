// Package raw holds the format-agnostic node tree used between typed
// properties and concrete text formats. Nodes carry comments and provenance so
// a document survives a load/save cycle without losing either.
package raw

// Kind names a node variant.
type Kind string

const (
	KindScalar    Kind = "scalar"
	KindList      Kind = "list"
	KindObject    Kind = "object"
	KindPair      Kind = "pair"
	KindUndefined Kind = "undefined"
)

// Node is implemented by *Scalar, *List, *Object, *Pair and *Undefined.
type Node interface {
	Kind() Kind
	// ToValue materializes the node as native Go values (map[string]any,
	// []any or a scalar). Results of containers are cached until the node or
	// any descendant is mutated; callers must not modify them.
	ToValue() any

	meta() *Meta
}

// Meta is the annotation block shared by every node.
type Meta struct {
	BlockComment  []string
	InlineComment []string
	EndComment    []string
	Source        Source

	owner container
}

func (m *Meta) meta() *Meta { return m }

// HasComments reports whether any comment class is populated.
func (m *Meta) HasComments() bool {
	return len(m.BlockComment) > 0 || len(m.InlineComment) > 0 || len(m.EndComment) > 0
}

// MetaOf returns the annotation block of n, or nil for a nil node.
func MetaOf(n Node) *Meta {
	if n == nil {
		return nil
	}
	return n.meta()
}

// SourceOf returns the provenance of n when known.
func SourceOf(n Node) Source {
	if m := MetaOf(n); m != nil {
		return m.Source
	}
	return nil
}

// container is implemented by nodes that cache a materialized view.
type container interface {
	invalidate()
}

func (m *Meta) invalidateOwner() {
	if m.owner != nil {
		m.owner.invalidate()
	}
}

func adopt(parent container, child Node) {
	if child == nil {
		return
	}
	child.meta().owner = parent
}

// Style is the quoting style of a scalar.
type Style int

const (
	StylePlain Style = iota
	StyleSingleQuoted
	StyleDoubleQuoted
	StyleLiteral
	StyleFolded
)

func (s Style) String() string {
	switch s {
	case StyleSingleQuoted:
		return "single-quoted"
	case StyleDoubleQuoted:
		return "double-quoted"
	case StyleLiteral:
		return "literal"
	case StyleFolded:
		return "folded"
	default:
		return "plain"
	}
}

// Quoted reports whether the style forbids literal sniffing.
func (s Style) Quoted() bool {
	return s != StylePlain
}

// Scalar is a leaf value: nil, bool, int64, float64 or string.
type Scalar struct {
	Meta
	value any
	style Style
}

// NewScalar builds a scalar choosing its style with the default ScalarFormat.
func NewScalar(value any) *Scalar {
	return DefaultScalarFormat.Scalar(value)
}

// NewStyledScalar builds a scalar with an explicit style.
func NewStyledScalar(value any, style Style) *Scalar {
	return &Scalar{value: value, style: style}
}

func (s *Scalar) Kind() Kind       { return KindScalar }
func (s *Scalar) ToValue() any     { return s.value }
func (s *Scalar) Value() any       { return s.value }
func (s *Scalar) Style() Style     { return s.style }
func (s *Scalar) IsNull() bool     { return s.value == nil }
func (s *Scalar) String() string   { return DefaultScalarFormat.Text(s.value) }
func (s *Scalar) SetStyle(v Style) { s.style = v }

// SetValue replaces the scalar value.
func (s *Scalar) SetValue(value any) {
	s.value = value
	s.invalidateOwner()
}

// Undefined marks an absent value, as opposed to a null scalar.
type Undefined struct {
	Meta
}

// NewUndefined returns a fresh undefined marker.
func NewUndefined() *Undefined { return &Undefined{} }

func (u *Undefined) Kind() Kind   { return KindUndefined }
func (u *Undefined) ToValue() any { return nil }

// IsUndefined reports whether n is nil or an *Undefined.
func IsUndefined(n Node) bool {
	if n == nil {
		return true
	}
	_, ok := n.(*Undefined)
	return ok
}

// List is an ordered sequence of nodes.
type List struct {
	Meta
	items  []Node
	cache  []any
	cached bool
}

// NewList builds a list from items.
func NewList(items ...Node) *List {
	l := &List{}
	for _, item := range items {
		l.Append(item)
	}
	return l
}

func (l *List) Kind() Kind { return KindList }
func (l *List) Len() int   { return len(l.items) }

// Items returns a copy of the item slice.
func (l *List) Items() []Node {
	return append([]Node(nil), l.items...)
}

// At returns the item at i.
func (l *List) At(i int) Node { return l.items[i] }

// Append adds item at the end.
func (l *List) Append(item Node) {
	if item == nil {
		item = NewScalar(nil)
	}
	adopt(l, item)
	l.items = append(l.items, item)
	l.invalidate()
}

// Set replaces the item at i.
func (l *List) Set(i int, item Node) {
	if item == nil {
		item = NewScalar(nil)
	}
	adopt(l, item)
	l.items[i] = item
	l.invalidate()
}

func (l *List) ToValue() any {
	if l.cached {
		return l.cache
	}
	out := make([]any, 0, len(l.items))
	for _, item := range l.items {
		if IsUndefined(item) {
			continue
		}
		out = append(out, item.ToValue())
	}
	l.cache = out
	l.cached = true
	return out
}

func (l *List) invalidate() {
	l.cached = false
	l.cache = nil
	l.invalidateOwner()
}

// Pair is a single object entry.
type Pair struct {
	Meta
	Key   *Scalar
	value Node
}

// NewPair builds a pair keyed by a plain scalar.
func NewPair(key string, value Node) *Pair {
	p := &Pair{Key: NewStyledScalar(key, StylePlain)}
	p.SetValue(value)
	return p
}

func (p *Pair) Kind() Kind { return KindPair }

// Name returns the textual form of the key.
func (p *Pair) Name() string {
	if p.Key == nil {
		return ""
	}
	return DefaultScalarFormat.Text(p.Key.Value())
}

func (p *Pair) Value() Node { return p.value }

// SetValue replaces the pair value.
func (p *Pair) SetValue(value Node) {
	if value == nil {
		value = NewScalar(nil)
	}
	adopt(p, value)
	p.value = value
	p.invalidate()
}

func (p *Pair) ToValue() any {
	return []any{p.Name(), p.value.ToValue()}
}

func (p *Pair) invalidate() {
	p.invalidateOwner()
}
