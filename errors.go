package aspen

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-aspen/raw"
)

var (
	ErrNotComposed         = errors.New("aspen: schema not composed")
	ErrAlreadyComposed     = errors.New("aspen: schema already composed")
	ErrDuplicateProperty   = errors.New("aspen: duplicate property")
	ErrUnresolvedReference = errors.New("aspen: uncompleted accessor")
	ErrNoAdapter           = errors.New("aspen: format adapter not configured")
	ErrUnsupportedSection  = errors.New("aspen: section type cannot be instantiated")
)

// ValueError is returned when a value is rejected by a converter or a
// component.
type ValueError struct {
	Value       any
	Expectation string
}

func (e *ValueError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("illegal value(%v), %s", e.Value, e.Expectation)
}

// NewValueError builds a ValueError with a formatted expectation.
func NewValueError(value any, format string, args ...any) *ValueError {
	return &ValueError{Value: value, Expectation: fmt.Sprintf(format, args...)}
}

// PropertyError ties a failure to the dotted property path and the node it was
// loaded from.
type PropertyError struct {
	Path   string
	Source raw.Source
	Err    error
}

func (e *PropertyError) Error() string {
	if e == nil {
		return "<nil>"
	}
	path := e.Path
	if path == "" {
		path = "<root>"
	}
	if e.Source != nil {
		return fmt.Sprintf("aspen: property %s at %s: %v", path, e.Source, e.Err)
	}
	return fmt.Sprintf("aspen: property %s: %v", path, e.Err)
}

func (e *PropertyError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// LoadError reports a rejected document. It holds one entry in fail-fast mode
// and every violation when load errors are collected.
type LoadError struct {
	Profile string
	File    string
	Errors  []*PropertyError
}

func (e *LoadError) Error() string {
	if e == nil {
		return "<nil>"
	}
	parts := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		parts[i] = err.Error()
	}
	prefix := "aspen: load"
	if e.Profile != "" {
		prefix = fmt.Sprintf("aspen: load profile %q", e.Profile)
	}
	if e.File != "" {
		prefix += fmt.Sprintf(" (%s)", e.File)
	}
	return prefix + ": " + strings.Join(parts, "; ")
}

// Unwrap exposes every property error to errors.Is and errors.As.
func (e *LoadError) Unwrap() []error {
	if e == nil {
		return nil
	}
	out := make([]error, len(e.Errors))
	for i, err := range e.Errors {
		out[i] = err
	}
	return out
}

// Paths lists the dotted paths of the failed properties.
func (e *LoadError) Paths() []string {
	if e == nil {
		return nil
	}
	out := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		out[i] = err.Path
	}
	return out
}

// ComposeError aggregates every failure hit while composing a schema tree.
type ComposeError struct {
	Schema string
	Err    error
}

func (e *ComposeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	name := e.Schema
	if name == "" {
		name = "<root>"
	}
	return fmt.Sprintf("aspen: compose schema %s: %v", name, e.Err)
}

func (e *ComposeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IOError wraps storage and format adapter failures with the profile context.
type IOError struct {
	Profile string
	Path    string
	Op      string
	Err     error
}

func (e *IOError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("aspen: %s profile %q (%s): %v", e.Op, e.Profile, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
