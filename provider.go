package aspen

import (
	"fmt"
	"maps"
	"reflect"

	"github.com/spf13/afero"

	"github.com/goliatone/go-aspen/pkg/activity"
	"github.com/goliatone/go-aspen/pkg/state"
	"github.com/goliatone/go-aspen/raw"
	"github.com/goliatone/go-aspen/raw/yamlraw"
)

// Option configures a Provider.
type Option func(*providerConfig)

type providerConfig struct {
	adapter         raw.Adapter
	store           state.Store
	optionComposers []OptionComposer
	schemaComposers []SchemaComposer
	behaviours      map[reflect.Type]PropertyBehaviour
	enums           map[reflect.Type][]any
	transformers    []NodeTransformer
	evaluator       Evaluator
	memoized        bool
	programCache    ProgramCache
	functions       *FunctionRegistry
	logger          Logger
	evaluatorLogger EvaluatorLogger
	activityHooks   activity.Hooks
	activityChannel string
	collect         bool
}

func defaultProviderConfig() providerConfig {
	return providerConfig{
		adapter:         yamlraw.New(),
		store:           state.NewFileStore(afero.NewOsFs()),
		optionComposers: builtinOptionComposers(),
		behaviours:      builtinBehaviours(),
		enums:           map[reflect.Type][]any{},
		programCache:    NewProgramCache(0),
		logger:          noopLogger{},
		evaluatorLogger: noopEvaluatorLogger{},
	}
}

func applyOptions(cfg providerConfig, opts []Option) providerConfig {
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// clone copies every registry so the result can be changed independently.
func (c providerConfig) clone() providerConfig {
	out := c
	out.optionComposers = append([]OptionComposer(nil), c.optionComposers...)
	out.schemaComposers = append([]SchemaComposer(nil), c.schemaComposers...)
	out.behaviours = maps.Clone(c.behaviours)
	out.enums = maps.Clone(c.enums)
	out.transformers = append([]NodeTransformer(nil), c.transformers...)
	out.functions = c.functions.Clone()
	out.activityHooks = c.activityHooks.Compact()
	if c.memoized {
		out.evaluator, out.memoized = nil, false
	}
	return out
}

// Provider owns the composer registries, the storage backend and the format
// adapter used by its profiles. Providers are not safe for concurrent
// mutation; configure them before use.
type Provider struct {
	cfg      providerConfig
	profiles map[string]*Profile
}

// New returns a provider with the built-in composers, YAML documents and
// files on the local filesystem.
func New(opts ...Option) *Provider {
	return &Provider{
		cfg:      applyOptions(defaultProviderConfig(), opts),
		profiles: map[string]*Profile{},
	}
}

// Fork returns an unlinked provider with the same registrations plus opts.
// Profiles are not carried over.
func (p *Provider) Fork(opts ...Option) *Provider {
	return &Provider{
		cfg:      applyOptions(p.cfg.clone(), opts),
		profiles: map[string]*Profile{},
	}
}

// WithAdapter sets the format adapter.
func WithAdapter(adapter raw.Adapter) Option {
	return func(cfg *providerConfig) {
		cfg.adapter = adapter
	}
}

// WithStore sets the storage backend.
func WithStore(store state.Store) Option {
	return func(cfg *providerConfig) {
		cfg.store = store
	}
}

// WithOptionComposer registers an option composer.
func WithOptionComposer(c OptionComposer) Option {
	return func(cfg *providerConfig) {
		cfg.optionComposers = append(cfg.optionComposers, c)
	}
}

// WithSchemaComposer registers a schema composer.
func WithSchemaComposer(c SchemaComposer) Option {
	return func(cfg *providerConfig) {
		cfg.schemaComposers = append(cfg.schemaComposers, c)
	}
}

// WithPropertyBehaviour maps b.Complex fields through b. A later registration
// for the same type replaces the earlier one.
func WithPropertyBehaviour(b PropertyBehaviour) Option {
	return func(cfg *providerConfig) {
		if b.Complex == nil {
			return
		}
		if cfg.behaviours == nil {
			cfg.behaviours = map[reflect.Type]PropertyBehaviour{}
		}
		cfg.behaviours[b.Complex] = b
	}
}

// WithEnum declares the constants of T so fields of that type are stored by
// name.
func WithEnum[T comparable](values ...T) Option {
	anyValues := make([]any, len(values))
	for i, v := range values {
		anyValues[i] = v
	}
	t := reflect.TypeFor[T]()
	return func(cfg *providerConfig) {
		if cfg.enums == nil {
			cfg.enums = map[reflect.Type][]any{}
		}
		cfg.enums[t] = anyValues
	}
}

// WithEvaluator replaces the expr evaluator used by Check components.
func WithEvaluator(e Evaluator) Option {
	return func(cfg *providerConfig) {
		cfg.evaluator, cfg.memoized = e, false
	}
}

// WithCollectLoadErrors makes loads report every rejected value instead of
// stopping at the first one.
func WithCollectLoadErrors(enabled bool) Option {
	return func(cfg *providerConfig) {
		cfg.collect = enabled
	}
}

func (p *Provider) collectLoadErrors() bool {
	return p != nil && p.cfg.collect
}

func (p *Provider) logger() Logger {
	if p == nil || p.cfg.logger == nil {
		return noopLogger{}
	}
	return p.cfg.logger
}

// Adapter returns the configured format adapter.
func (p *Provider) Adapter() raw.Adapter { return p.cfg.adapter }

// Store returns the configured storage backend.
func (p *Provider) Store() state.Store { return p.cfg.store }

// NewProfile registers a profile binding host to the document at path.
// Compose must succeed before the profile can be loaded or saved.
func (p *Provider) NewProfile(name string, host any, path string, opts ...ProfileOption) (*Profile, error) {
	if name == "" {
		return nil, fmt.Errorf("aspen: profile name must not be empty")
	}
	if _, exists := p.profiles[name]; exists {
		return nil, fmt.Errorf("aspen: profile %q already registered", name)
	}
	profile := &Profile{
		provider: p,
		name:     name,
		host:     host,
		path:     path,
	}
	if src, ok := host.(DefaultsSource); ok {
		profile.defaults, profile.defaultsName = src.AspenDefaults()
	}
	for _, opt := range opts {
		if opt != nil {
			opt(profile)
		}
	}
	p.profiles[name] = profile
	return profile, nil
}

// ComposeProfile registers a profile and composes its schema. A profile that
// fails to compose is not kept, so the name can be registered again.
func (p *Provider) ComposeProfile(name string, host any, path string, opts ...ProfileOption) (*Profile, error) {
	profile, err := p.NewProfile(name, host, path, opts...)
	if err != nil {
		return nil, err
	}
	if err := profile.Compose(); err != nil {
		delete(p.profiles, name)
		return nil, err
	}
	return profile, nil
}

// Profile returns a registered profile.
func (p *Provider) Profile(name string) (*Profile, bool) {
	profile, ok := p.profiles[name]
	return profile, ok
}
