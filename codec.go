package aspen

import (
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"github.com/goliatone/go-aspen/internal/hydrate"
	"github.com/goliatone/go-aspen/raw"
)

// Codec converts between a property's complex type and the primitive value
// stored in a raw scalar or container.
type Codec interface {
	ToPrimitive(ctx *PropertyContext, value any) (any, error)
	FromPrimitive(ctx *PropertyContext, primitive any) (any, error)
}

// NodeCodec is implemented by codecs that need the raw node itself, such as
// collections and sections.
type NodeCodec interface {
	LoadNode(ctx *PropertyContext, node raw.Node) (any, error)
	EmitNode(ctx *PropertyContext, value any) (raw.Node, error)
}

// identityCodec passes values through, coercing the wire value into the
// complex type where a lossless conversion exists.
type identityCodec struct {
	complex reflect.Type
}

func (c identityCodec) ToPrimitive(_ *PropertyContext, value any) (any, error) {
	return value, nil
}

func (c identityCodec) FromPrimitive(_ *PropertyContext, primitive any) (any, error) {
	return coerce(primitive, c.complex)
}

// coerce converts a wire value into t. Scalars are rendered as text for string
// targets; interface targets accept anything.
func coerce(value any, t reflect.Type) (any, error) {
	if value == nil || t == nil {
		return value, nil
	}
	if t.Kind() == reflect.Interface {
		if reflect.TypeOf(value).Implements(t) {
			return value, nil
		}
		return nil, NewValueError(value, "value assignable to %s", t)
	}
	if t.Kind() == reflect.String {
		switch value.(type) {
		case string:
		case bool, int64, float64:
			value = raw.DefaultScalarFormat.Text(value)
		}
	}
	if isNumericKind(t.Kind()) {
		if _, ok := toFloat(value); !ok {
			return nil, NewValueError(value, "value assignable to %s", t)
		}
		return numberCodec{complex: t}.FromPrimitive(nil, value)
	}
	rv, err := assignable(value, t)
	if err != nil {
		return nil, err
	}
	return rv.Interface(), nil
}

// numberCodec normalizes numbers to int64 for integer kinds and float64 for
// float kinds.
type numberCodec struct {
	complex reflect.Type
}

func (c numberCodec) integral() bool {
	switch c.complex.Kind() {
	case reflect.Float32, reflect.Float64:
		return false
	}
	return true
}

func (c numberCodec) ToPrimitive(_ *PropertyContext, value any) (any, error) {
	if isNil(value) {
		return nil, nil
	}
	rv := reflect.Indirect(reflect.ValueOf(value))
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if c.integral() {
			return rv.Int(), nil
		}
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return nil, NewValueError(value, "number within int64 range")
		}
		if c.integral() {
			return int64(u), nil
		}
		return float64(u), nil
	case reflect.Float32, reflect.Float64:
		if c.integral() {
			return int64(rv.Float()), nil
		}
		return rv.Float(), nil
	}
	return nil, NewValueError(value, "value must be a number")
}

func (c numberCodec) FromPrimitive(_ *PropertyContext, primitive any) (any, error) {
	if primitive == nil {
		return nil, nil
	}
	t := c.complex
	target := reflect.New(t).Elem()
	switch v := primitive.(type) {
	case bool, string:
		return nil, NewValueError(primitive, "value must be a number")
	case int64:
		if err := setNumber(target, float64(v), v, true, primitive); err != nil {
			return nil, err
		}
		return target.Interface(), nil
	default:
		f, ok := toFloat(v)
		if !ok {
			return nil, NewValueError(primitive, "value must be a number")
		}
		isInt := f == math.Trunc(f) && !math.IsInf(f, 0)
		if isInt && (f < math.MinInt64 || f >= math.MaxInt64) && c.integral() {
			return nil, NewValueError(primitive, "number within %s range", t)
		}
		if err := setNumber(target, f, int64(f), isInt, primitive); err != nil {
			return nil, err
		}
		return target.Interface(), nil
	}
}

func setNumber(target reflect.Value, f float64, i int64, isInt bool, original any) error {
	switch target.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if !isInt {
			return NewValueError(original, "integral number for %s", target.Type())
		}
		if target.OverflowInt(i) {
			return NewValueError(original, "number within %s range", target.Type())
		}
		target.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if !isInt {
			return NewValueError(original, "integral number for %s", target.Type())
		}
		if i < 0 || target.OverflowUint(uint64(i)) {
			return NewValueError(original, "number within %s range", target.Type())
		}
		target.SetUint(uint64(i))
	case reflect.Float32, reflect.Float64:
		if target.OverflowFloat(f) {
			return NewValueError(original, "number within %s range", target.Type())
		}
		target.SetFloat(f)
	default:
		return NewValueError(original, "numeric target, got %s", target.Type())
	}
	return nil
}

// enumCodec maps the declared constants by their upper-cased names.
type enumCodec struct {
	complex reflect.Type
	values  []any
	names   []string
}

func newEnumCodec(complex reflect.Type, values []any) enumCodec {
	names := make([]string, len(values))
	for i, v := range values {
		names[i] = enumName(v)
	}
	return enumCodec{complex: complex, values: values, names: names}
}

func enumName(v any) string {
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(v)
}

func (c enumCodec) ToPrimitive(_ *PropertyContext, value any) (any, error) {
	if isNil(value) {
		return nil, nil
	}
	return enumName(value), nil
}

func (c enumCodec) FromPrimitive(_ *PropertyContext, primitive any) (any, error) {
	if primitive == nil {
		return nil, nil
	}
	text, ok := primitive.(string)
	if !ok {
		text = raw.DefaultScalarFormat.Text(primitive)
	}
	if text == "" || text == "null" {
		return nil, nil
	}
	upper := strings.ToUpper(text)
	for i, name := range c.names {
		if strings.ToUpper(name) == upper {
			return c.values[i], nil
		}
	}
	return nil, NewValueError(primitive, "no enum value for %s by name '%s'", c.complex, text)
}

// Names lists the accepted constant names in declaration order.
func (c enumCodec) Names() []string {
	return append([]string(nil), c.names...)
}

// Enumerated is implemented by codecs with a closed set of wire values.
type Enumerated interface {
	Names() []string
}

// PropertyBehaviour describes how a complex type maps to a primitive one.
type PropertyBehaviour struct {
	Complex       reflect.Type
	Primitive     reflect.Type
	ToPrimitive   func(value any) (any, error)
	FromPrimitive func(primitive any) (any, error)
}

// NewBehaviour builds a PropertyBehaviour from typed conversion functions.
func NewBehaviour[T, P any](to func(T) (P, error), from func(P) (T, error)) PropertyBehaviour {
	return PropertyBehaviour{
		Complex:   reflect.TypeFor[T](),
		Primitive: reflect.TypeFor[P](),
		ToPrimitive: func(value any) (any, error) {
			v, ok := value.(T)
			if !ok {
				return nil, NewValueError(value, "value of type %s", reflect.TypeFor[T]())
			}
			return to(v)
		},
		FromPrimitive: func(primitive any) (any, error) {
			p, ok := primitive.(P)
			if !ok {
				return nil, NewValueError(primitive, "value of type %s", reflect.TypeFor[P]())
			}
			return from(p)
		},
	}
}

// DurationBehaviour stores time.Duration values as strings such as "1m30s".
var DurationBehaviour = NewBehaviour(
	func(d time.Duration) (string, error) { return d.String(), nil },
	func(s string) (time.Duration, error) {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, NewValueError(s, "duration such as 1m30s")
		}
		return d, nil
	},
)

// TimeBehaviour stores time.Time values as RFC 3339 strings.
var TimeBehaviour = NewBehaviour(
	func(t time.Time) (string, error) { return t.Format(time.RFC3339Nano), nil },
	func(s string) (time.Time, error) {
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return time.Time{}, NewValueError(s, "RFC 3339 timestamp")
		}
		return t, nil
	},
)

type behaviourCodec struct {
	behaviour PropertyBehaviour
}

func (c behaviourCodec) ToPrimitive(_ *PropertyContext, value any) (any, error) {
	if isNil(value) {
		return nil, nil
	}
	return c.behaviour.ToPrimitive(value)
}

func (c behaviourCodec) FromPrimitive(_ *PropertyContext, primitive any) (any, error) {
	if primitive == nil {
		return nil, nil
	}
	p, err := coerce(primitive, c.behaviour.Primitive)
	if err != nil {
		return nil, err
	}
	return c.behaviour.FromPrimitive(p)
}

// structCodec stores struct and map values as nested objects.
type structCodec struct {
	complex reflect.Type
	decoder *hydrate.Decoder
}

func (c structCodec) ToPrimitive(_ *PropertyContext, value any) (any, error) {
	if isNil(value) {
		return nil, nil
	}
	return hydrate.Encode(value)
}

func (c structCodec) FromPrimitive(ctx *PropertyContext, primitive any) (any, error) {
	if primitive == nil {
		return nil, nil
	}
	hctx := hydrate.Context{}
	if ctx != nil {
		hctx.Path = ctx.Path
		if root := ctx.Schema; root != nil {
			hctx.Profile = root.Root().Name()
		}
	}
	target := reflect.New(c.complex)
	decoder := c.decoder
	if decoder == nil {
		decoder = hydrate.NewDecoder(hydrate.WithDisallowUnknownFields())
	}
	if err := decoder.Decode(hctx, primitive, target.Interface()); err != nil {
		return nil, NewValueError(primitive, "%s: %v", c.complex, err)
	}
	return target.Elem().Interface(), nil
}
