package aspen

import (
	"errors"
	"fmt"
	"strings"
)

// errEmptyExpression is returned by every engine for a blank expression.
var errEmptyExpression = errors.New("expression must not be empty")

type engineConfig struct {
	cache    ProgramCache
	registry *FunctionRegistry
}

// EngineOption configures one of the bundled evaluators.
type EngineOption func(*engineConfig)

// WithEngineCache stores compiled programs in cache. Keys are prefixed with
// the engine name so engines can share a cache.
func WithEngineCache(cache ProgramCache) EngineOption {
	return func(cfg *engineConfig) {
		cfg.cache = cache
	}
}

// WithEngineFunctions exposes a copy of registry to expressions, both by name
// and through call("name", args...).
func WithEngineFunctions(registry *FunctionRegistry) EngineOption {
	return func(cfg *engineConfig) {
		if registry != nil {
			cfg.registry = registry.Clone()
		}
	}
}

func newEngineConfig(opts []EngineOption) engineConfig {
	var cfg engineConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

func (c engineConfig) cached(key string) (any, bool) {
	if c.cache == nil {
		return nil, false
	}
	return c.cache.Get(key)
}

func (c engineConfig) store(key string, program any) {
	if c.cache != nil {
		c.cache.Set(key, program)
	}
}

// callArguments splits the arguments of call("name", ...) into the function
// name and the remaining values.
func callArguments(arguments []any) (string, []any, error) {
	if len(arguments) == 0 {
		return "", nil, fmt.Errorf("aspen: call requires function name")
	}
	name, ok := arguments[0].(string)
	if !ok {
		return "", nil, fmt.Errorf("aspen: call name must be string, got %T", arguments[0])
	}
	return name, arguments[1:], nil
}

// NamedEngine is implemented by evaluators that report an engine name in
// errors and log events.
type NamedEngine interface {
	Engine() string
}

func evaluatorEngineName(e Evaluator) string {
	if e == nil {
		return "unknown"
	}
	if named, ok := e.(NamedEngine); ok {
		if name := strings.TrimSpace(named.Engine()); name != "" {
			return name
		}
	}
	return "custom"
}
