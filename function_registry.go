package aspen

import (
	"fmt"
	"regexp"
	"slices"
	"sort"
	"strings"
	"sync"
)

var functionName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Function is a callable exposed to check expressions.
type Function func(args ...any) (any, error)

type registeredFunction struct {
	name string
	fn   Function
}

// FunctionRegistry stores custom functions. Lookups ignore case while
// expressions see the name as registered.
type FunctionRegistry struct {
	mu        sync.RWMutex
	functions map[string]registeredFunction
}

// NewFunctionRegistry constructs an empty registry.
func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{
		functions: make(map[string]registeredFunction),
	}
}

// Register stores fn under name. Names must be identifiers and may not
// shadow call or a rule context binding such as value.
func (r *FunctionRegistry) Register(name string, fn Function) error {
	if fn == nil {
		return fmt.Errorf("aspen: function %q is nil", name)
	}
	if name == "" {
		return fmt.Errorf("aspen: function name must not be empty")
	}
	if !functionName.MatchString(name) {
		return fmt.Errorf("aspen: function name %q is not an identifier", name)
	}
	if lower := strings.ToLower(name); lower == "call" || slices.Contains(reservedBindings, lower) {
		return fmt.Errorf("aspen: function name %q is reserved", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.functions == nil {
		r.functions = make(map[string]registeredFunction)
	}
	key := strings.ToLower(name)
	if _, exists := r.functions[key]; exists {
		return fmt.Errorf("aspen: function %q already registered", name)
	}
	r.functions[key] = registeredFunction{name: name, fn: fn}
	return nil
}

// Clone returns a shallow copy of the registry.
func (r *FunctionRegistry) Clone() *FunctionRegistry {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	clone := &FunctionRegistry{
		functions: make(map[string]registeredFunction, len(r.functions)),
	}
	for key, entry := range r.functions {
		clone.functions[key] = entry
	}
	return clone
}

// Call executes the function registered for name.
func (r *FunctionRegistry) Call(name string, args ...any) (any, error) {
	if r == nil {
		return nil, fmt.Errorf("aspen: function registry is nil")
	}
	r.mu.RLock()
	entry, ok := r.functions[strings.ToLower(name)]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("aspen: function %q not registered", name)
	}
	return entry.fn(args...)
}

// Names returns registered function names sorted case-insensitively.
func (r *FunctionRegistry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]string, 0, len(r.functions))
	for key := range r.functions {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	names := make([]string, len(keys))
	for i, key := range keys {
		names[i] = r.functions[key].name
	}
	return names
}

// WithFunctionRegistry exposes the functions in registry to check expressions.
func WithFunctionRegistry(registry *FunctionRegistry) Option {
	return func(cfg *providerConfig) {
		if registry == nil {
			return
		}
		cfg.functions = registry.Clone()
	}
}

// WithCustomFunction registers fn under name for check expressions.
func WithCustomFunction(name string, fn Function) Option {
	return func(cfg *providerConfig) {
		if cfg.functions == nil {
			cfg.functions = NewFunctionRegistry()
		}
		_ = cfg.functions.Register(name, fn)
	}
}
