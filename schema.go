package aspen

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/goliatone/go-aspen/raw"
	"go.uber.org/multierr"
)

// State tracks a schema through composition.
type State int

const (
	StateUninitialized State = iota
	StateComposing
	StatePostResolution
	StateComposed
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateComposing:
		return "composing"
	case StatePostResolution:
		return "post-resolution"
	case StateComposed:
		return "composed"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Schema is an ordered set of properties bound to a host instance. Sections
// nest child schemas under a property of the parent.
type Schema struct {
	name       string
	parent     *Schema
	comment    []string
	instance   any
	properties []*Property
	byName     map[string]*Property
	state      State
	provider   *Provider
	virtual    bool
	sources    map[string]raw.Source
}

// NewSchema returns an empty root schema for instance. Schemas built by hand
// can be loaded and emitted without composition.
func NewSchema(name string, instance any) *Schema {
	return &Schema{name: name, instance: instance, byName: map[string]*Property{}}
}

func (s *Schema) Name() string { return s.name }

func (s *Schema) Parent() *Schema { return s.parent }

// Instance returns the host object the schema binds to. Virtual sections have
// none.
func (s *Schema) Instance() any { return s.instance }

func (s *Schema) State() State { return s.Root().state }

// Virtual reports whether the schema was created by VirtualSection.
func (s *Schema) Virtual() bool { return s.virtual }

func (s *Schema) Comment() []string { return append([]string(nil), s.comment...) }

// SetComment replaces the comment emitted above the schema's object.
func (s *Schema) SetComment(lines ...string) {
	s.comment = append([]string(nil), lines...)
}

// Root walks up to the top-level schema.
func (s *Schema) Root() *Schema {
	for s.parent != nil {
		s = s.parent
	}
	return s
}

// Path returns the dotted path from the root; the root's path is empty.
func (s *Schema) Path() string {
	if s.parent == nil {
		return ""
	}
	return joinDotted(s.parent.Path(), s.name)
}

func joinDotted(base, name string) string {
	if base == "" {
		return name
	}
	return base + "." + name
}

// AddProperty appends p. Section properties adopt their child schema.
func (s *Schema) AddProperty(p *Property) error {
	if p == nil {
		return fmt.Errorf("aspen: nil property")
	}
	if s.byName == nil {
		s.byName = map[string]*Property{}
	}
	if _, exists := s.byName[p.name]; exists {
		return fmt.Errorf("%w: %q in schema %q", ErrDuplicateProperty, p.name, s.displayName())
	}
	if p.accessor == nil {
		p.accessor = MemoryLocal()
	}
	if child := p.section; child != nil {
		if child.parent != nil && child.parent != s {
			return fmt.Errorf("aspen: section %q already belongs to schema %q", p.name, child.parent.displayName())
		}
		child.parent = s
		if child.name == "" {
			child.name = p.name
		}
	}
	p.schema = s
	s.properties = append(s.properties, p)
	s.byName[p.name] = p
	return nil
}

// MustAddProperty is AddProperty that panics on error.
func (s *Schema) MustAddProperty(p *Property) *Schema {
	if err := s.AddProperty(p); err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) displayName() string {
	if path := s.Path(); path != "" {
		return path
	}
	if s.name != "" {
		return s.name
	}
	return "<root>"
}

// Property looks up a direct property by name.
func (s *Schema) Property(name string) (*Property, bool) {
	p, ok := s.byName[name]
	return p, ok
}

// Properties returns the properties in declaration order.
func (s *Schema) Properties() []*Property {
	return append([]*Property(nil), s.properties...)
}

// Sections returns the direct child schemas in declaration order.
func (s *Schema) Sections() []*Schema {
	var out []*Schema
	for _, p := range s.properties {
		if p.section != nil {
			out = append(out, p.section)
		}
	}
	return out
}

// VirtualSection returns the child section called name, creating a host-less
// one when it does not exist. Properties added to it use memory accessors.
func (s *Schema) VirtualSection(name string) (*Schema, error) {
	if p, ok := s.byName[name]; ok {
		if p.section == nil {
			return nil, fmt.Errorf("aspen: %q in schema %q is not a section", name, s.displayName())
		}
		return p.section, nil
	}
	child := &Schema{name: name, byName: map[string]*Property{}, virtual: true, state: s.state}
	p, err := Section(name, child).Build()
	if err != nil {
		return nil, err
	}
	if err := s.AddProperty(p); err != nil {
		return nil, err
	}
	return child, nil
}

// FindSection resolves a "/"-separated path of section names. A leading "/"
// starts from the root; an empty path returns s.
func (s *Schema) FindSection(path string) (*Schema, bool) {
	current := s
	if strings.HasPrefix(path, "/") {
		current = s.Root()
	}
	for _, part := range strings.Split(strings.Trim(path, "/"), "/") {
		if part == "" {
			continue
		}
		if part == ".." {
			if current.parent == nil {
				return nil, false
			}
			current = current.parent
			continue
		}
		p, ok := current.byName[part]
		if !ok || p.section == nil {
			return nil, false
		}
		current = p.section
	}
	return current, true
}

// FindProperty resolves "section/sub/name" relative to s, or to the root with
// a leading "/".
func (s *Schema) FindProperty(path string) (*Property, bool) {
	idx := strings.LastIndex(path, "/")
	section, name := s, path
	if idx >= 0 {
		var ok bool
		prefix := path[:idx]
		if prefix == "" {
			prefix = "/"
		}
		section, ok = s.FindSection(prefix)
		if !ok {
			return nil, false
		}
		name = path[idx+1:]
	}
	return section.Property(name)
}

// Walk visits s and every nested section depth first.
func (s *Schema) Walk(fn func(*Schema) error) error {
	if err := fn(s); err != nil {
		return err
	}
	for _, child := range s.Sections() {
		if err := child.Walk(fn); err != nil {
			return err
		}
	}
	return nil
}

// Emit renders the schema and its sections into an object tree.
func (s *Schema) Emit() (*raw.Object, error) {
	obj := raw.NewObject()
	obj.BlockComment = append([]string(nil), s.comment...)
	obj.Source = raw.EmittedSource{Ref: s.Path()}
	for _, p := range s.properties {
		ctx := newPropertyContext(s, p, nil)
		var (
			node raw.Node
			err  error
		)
		if p.section != nil {
			node, err = p.section.Emit()
			if err == nil {
				p.decorate(node, ctx.Path)
			}
		} else {
			node, err = p.emitValue(ctx)
		}
		if err != nil {
			var perr *PropertyError
			if errors.As(err, &perr) {
				return nil, err
			}
			return nil, &PropertyError{Path: ctx.Path, Err: err}
		}
		obj.Put(p.name, node)
	}
	return obj, nil
}

// Load applies obj to the schema tree. Nothing is written unless every value
// in the document is accepted.
func (s *Schema) Load(obj *raw.Object) error {
	stage := &loadStage{collect: s.Root().provider.collectLoadErrors()}
	s.load(obj, stage)
	return stage.commit("", "")
}

func (s *Schema) load(obj *raw.Object, stage *loadStage) {
	for _, p := range s.properties {
		if stage.stopped {
			return
		}
		node, ok := obj.Get(p.name)
		if !ok || raw.IsUndefined(node) {
			continue
		}
		ctx := newPropertyContext(s, p, stage)
		ctx.Source = raw.SourceOf(node)
		if p.section != nil {
			child, err := raw.Expect[*raw.Object](node)
			if err != nil {
				stage.fail(ctx, err)
				continue
			}
			p.section.load(child, stage)
			continue
		}
		value, err := p.decode(ctx, node)
		if err == nil {
			err = p.check(s, value)
		}
		if err != nil {
			stage.fail(ctx, err)
			continue
		}
		stage.writes = append(stage.writes, write{schema: s, property: p, value: value, source: ctx.Source})
	}
}

type write struct {
	schema   *Schema
	property *Property
	value    any
	source   raw.Source
}

// loadStage buffers decoded values until the whole document is accepted.
type loadStage struct {
	collect bool
	writes  []write
	errs    []*PropertyError
	stopped bool
}

func (st *loadStage) fail(ctx *PropertyContext, err error) {
	var perr *PropertyError
	if !errors.As(err, &perr) {
		perr = &PropertyError{Path: ctx.Path, Source: ctx.Source, Err: err}
	}
	st.errs = append(st.errs, perr)
	if !st.collect {
		st.stopped = true
	}
}

func (st *loadStage) commit(profile, file string) error {
	if len(st.errs) > 0 {
		return &LoadError{Profile: profile, File: file, Errors: st.errs}
	}
	undo := make([]func() error, 0, len(st.writes))
	for _, w := range st.writes {
		restore := snapshot(w.schema, w.property)
		if err := w.property.SetIn(w.schema, w.value); err != nil {
			for i := len(undo) - 1; i >= 0; i-- {
				err = multierr.Append(err, undo[i]())
			}
			return &LoadError{Profile: profile, File: file, Errors: []*PropertyError{{
				Path: joinDotted(w.schema.Path(), w.property.name),
				Err:  err,
			}}}
		}
		undo = append(undo, restore)
	}
	for _, w := range st.writes {
		w.schema.remember(w.property.name, w.source)
	}
	return nil
}

// snapshotter is implemented by accessors that can restore a slot to the
// state it had before a write, including an absent value.
type snapshotter interface {
	snapshot(s *Schema, p *Property) func() error
}

// snapshot captures the current value of p so a rejected load can put it back.
func snapshot(s *Schema, p *Property) func() error {
	return snapshotInner(p.accessor, s, p)
}

func (s *Schema) remember(name string, src raw.Source) {
	if src == nil {
		return
	}
	if s.sources == nil {
		s.sources = map[string]raw.Source{}
	}
	s.sources[name] = src
}

// countProperties returns the number of value properties in the tree.
func (s *Schema) countProperties() int {
	n := 0
	_ = s.Walk(func(schema *Schema) error {
		for _, p := range schema.properties {
			if p.section == nil {
				n++
			}
		}
		return nil
	})
	return n
}

func hostType(instance any) reflect.Type {
	if instance == nil {
		return nil
	}
	t := reflect.TypeOf(instance)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
