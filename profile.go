package aspen

import (
	"context"
	"fmt"
	"io/fs"
	"time"

	"github.com/goliatone/go-aspen/layering"
	"github.com/goliatone/go-aspen/raw"
)

// Profile binds a host instance to one stored document.
type Profile struct {
	provider     *Provider
	name         string
	host         any
	path         string
	defaults     fs.FS
	defaultsName string
	comment      []string
	preCompose   []func(*Profile) error
	overwrite    bool
	schema       *Schema
}

// ProfileOption configures a Profile.
type ProfileOption func(*Profile)

// WithDefaults seeds the store with name from fsys when the profile document
// does not exist yet. It overrides a DefaultsSource host.
func WithDefaults(fsys fs.FS, name string) ProfileOption {
	return func(p *Profile) {
		p.defaults = fsys
		p.defaultsName = name
	}
}

// WithPreCompose runs fn before the schema is composed.
func WithPreCompose(fn func(*Profile) error) ProfileOption {
	return func(p *Profile) {
		if fn != nil {
			p.preCompose = append(p.preCompose, fn)
		}
	}
}

// WithProfileComment sets the comment written at the top of the document.
func WithProfileComment(lines ...string) ProfileOption {
	return func(p *Profile) {
		p.comment = append([]string(nil), lines...)
	}
}

// WithOverwrite makes Save write only the emitted tree. By default the
// emitted tree is laid over the stored document so unknown keys, comments
// and string quoting written by hand survive.
func WithOverwrite() ProfileOption {
	return func(p *Profile) {
		p.overwrite = true
	}
}

func (p *Profile) Name() string { return p.name }

// Path returns the storage path of the document.
func (p *Profile) Path() string { return p.path }

func (p *Profile) Provider() *Provider { return p.provider }

// Instance returns the host object.
func (p *Profile) Instance() any { return p.host }

// Schema returns the composed schema, or nil before Compose succeeds.
func (p *Profile) Schema() *Schema { return p.schema }

func (p *Profile) properties() int {
	if p.schema == nil {
		return 0
	}
	return p.schema.countProperties()
}

// Compose builds the schema of the host. It succeeds at most once.
func (p *Profile) Compose() error {
	return p.ComposeContext(context.Background())
}

// ComposeContext is Compose with a context for the activity hooks.
func (p *Profile) ComposeContext(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		p.provider.record(ctx, OperationEvent{
			Op:         OpCompose,
			Profile:    p.name,
			Path:       p.path,
			Properties: p.properties(),
			Duration:   time.Since(start),
			Err:        err,
		})
	}()
	if p.schema != nil {
		return fmt.Errorf("%w: profile %q", ErrAlreadyComposed, p.name)
	}
	for _, fn := range p.preCompose {
		if err := fn(p); err != nil {
			return fmt.Errorf("aspen: pre-compose profile %q: %w", p.name, err)
		}
	}
	schema := NewSchema(p.name, p.host)
	if len(p.comment) > 0 {
		schema.SetComment(p.comment...)
	}
	if err := p.provider.Compose(schema); err != nil {
		return err
	}
	p.schema = schema
	return nil
}

// Load reads the document and applies it to the schema. A missing document
// is not an error.
func (p *Profile) Load() error {
	return p.LoadContext(context.Background())
}

// LoadContext is Load with a context passed to the store.
func (p *Profile) LoadContext(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		p.provider.record(ctx, OperationEvent{
			Op:         OpLoad,
			Profile:    p.name,
			Path:       p.path,
			Properties: p.properties(),
			Duration:   time.Since(start),
			Err:        err,
		})
	}()
	if p.schema == nil {
		return fmt.Errorf("%w: profile %q", ErrNotComposed, p.name)
	}
	adapter := p.provider.cfg.adapter
	if adapter == nil {
		return ErrNoAdapter
	}
	store := p.provider.cfg.store
	data, _, ok, err := store.Load(ctx, p.path)
	if err != nil {
		return p.ioError("load", err)
	}
	if !ok {
		if p.defaults == nil {
			return nil
		}
		if data, err = p.readDefaults(); err != nil {
			return err
		}
		if _, err := store.Save(ctx, p.path, data); err != nil {
			return p.ioError("seed", err)
		}
	}
	node, err := adapter.Parse(data, p.path)
	if err != nil {
		return p.ioError("parse", err)
	}
	if node, err = p.provider.preProcess(node); err != nil {
		return fmt.Errorf("aspen: pre-process profile %q: %w", p.name, err)
	}
	obj, err := raw.Expect[*raw.Object](node)
	if err != nil {
		return &LoadError{Profile: p.name, File: p.path, Errors: []*PropertyError{{
			Source: raw.SourceOf(node),
			Err:    err,
		}}}
	}
	stage := &loadStage{collect: p.provider.collectLoadErrors()}
	p.schema.load(obj, stage)
	return stage.commit(p.name, p.path)
}

// Save validates the host, emits the schema and replaces the stored
// document. The previous document is kept when any step fails.
func (p *Profile) Save() error {
	return p.SaveContext(context.Background())
}

// SaveContext is Save with a context passed to the store.
func (p *Profile) SaveContext(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		p.provider.record(ctx, OperationEvent{
			Op:         OpSave,
			Profile:    p.name,
			Path:       p.path,
			Properties: p.properties(),
			Duration:   time.Since(start),
			Err:        err,
		})
	}()
	if p.schema == nil {
		return fmt.Errorf("%w: profile %q", ErrNotComposed, p.name)
	}
	adapter := p.provider.cfg.adapter
	if adapter == nil {
		return ErrNoAdapter
	}
	if err := p.Validate(); err != nil {
		return err
	}
	emitted, err := p.schema.Emit()
	if err != nil {
		return err
	}
	node, err := p.provider.postProcess(emitted)
	if err != nil {
		return fmt.Errorf("aspen: post-process profile %q: %w", p.name, err)
	}
	store := p.provider.cfg.store
	if obj, isObject := node.(*raw.Object); isObject {
		base, err := p.baseTree(ctx, adapter)
		if err != nil {
			return err
		}
		if base != nil {
			node = layering.Layer(obj, base)
		}
	}
	data, err := adapter.Serialize(node)
	if err != nil {
		return p.ioError("serialize", err)
	}
	if _, err := store.Save(ctx, p.path, data); err != nil {
		return p.ioError("save", err)
	}
	return nil
}

// baseTree returns the tree the emitted one is laid over: the stored
// document, or the defaults when nothing is stored yet. A stored document
// that no longer parses is replaced.
func (p *Profile) baseTree(ctx context.Context, adapter raw.Adapter) (*raw.Object, error) {
	data, _, ok, err := p.provider.cfg.store.Load(ctx, p.path)
	if err != nil {
		return nil, p.ioError("load", err)
	}
	if ok {
		if p.overwrite {
			return nil, nil
		}
		node, err := adapter.Parse(data, p.path)
		if err != nil {
			return nil, nil
		}
		obj, _ := node.(*raw.Object)
		return obj, nil
	}
	if p.defaults == nil {
		return nil, nil
	}
	return p.defaultsTree(adapter)
}

func (p *Profile) readDefaults() ([]byte, error) {
	data, err := fs.ReadFile(p.defaults, p.defaultsName)
	if err != nil {
		return nil, p.ioError("read defaults", err)
	}
	return data, nil
}

func (p *Profile) defaultsTree(adapter raw.Adapter) (*raw.Object, error) {
	data, err := p.readDefaults()
	if err != nil {
		return nil, err
	}
	node, err := adapter.Parse(data, p.defaultsName)
	if err != nil {
		return nil, p.ioError("parse defaults", err)
	}
	obj, err := raw.Expect[*raw.Object](node)
	if err != nil {
		return nil, p.ioError("parse defaults", err)
	}
	return obj, nil
}

func (p *Profile) ioError(op string, err error) error {
	return &IOError{Profile: p.name, Path: p.path, Op: op, Err: err}
}
