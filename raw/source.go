package raw

import (
	"errors"
	"fmt"
)

// Source describes where a node came from.
type Source interface {
	String() string
}

// FileSource marks a node produced by parsing a document.
type FileSource struct {
	File   string
	Line   int
	Column int
}

func (s FileSource) String() string {
	return fmt.Sprintf("file(%s) line(%d) column(%d)", s.File, s.Line, s.Column)
}

// EmittedSource marks a node produced by emitting a property or schema.
type EmittedSource struct {
	Ref string
}

func (s EmittedSource) String() string {
	return fmt.Sprintf("emitted(%s)", s.Ref)
}

func describeSource(src Source) string {
	if src == nil {
		return "unknown source"
	}
	return src.String()
}

// TypeMismatchError reports a node of an unexpected kind.
type TypeMismatchError struct {
	Expected Kind
	Actual   Kind
	Source   Source
}

func (e *TypeMismatchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("raw: expected %s, got %s at %s", e.Expected, e.Actual, describeSource(e.Source))
}

// Expect narrows n to the concrete node type N.
func Expect[N Node](n Node) (N, error) {
	var zero N
	if typed, ok := n.(N); ok && n != nil {
		return typed, nil
	}
	actual := KindUndefined
	if n != nil {
		actual = n.Kind()
	}
	return zero, &TypeMismatchError{
		Expected: zero.Kind(),
		Actual:   actual,
		Source:   SourceOf(n),
	}
}

// IsTypeMismatch reports whether err carries a TypeMismatchError.
func IsTypeMismatch(err error) bool {
	var mismatch *TypeMismatchError
	return errors.As(err, &mismatch)
}
