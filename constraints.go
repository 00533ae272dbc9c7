package aspen

import (
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Bounded is implemented by numeric constraints that expose their limits.
type Bounded interface {
	Bounds() (min, max *float64)
}

// Restricted is implemented by constraints accepting a closed set of values.
type Restricted interface {
	Allowed() []any
}

// Patterned is implemented by constraints matching a regular expression.
type Patterned interface {
	Expression() string
}

// Mandatory is implemented by constraints rejecting null.
type Mandatory interface {
	RejectsNull() bool
}

// NotNull rejects nil values.
func NotNull() Component {
	return notNullComponent{}
}

type notNullComponent struct{}

func (notNullComponent) CheckLoadedValue(_ *PropertyContext, value any) (any, error) {
	if isNil(value) {
		return nil, &ValueError{Value: value, Expectation: "value must not be null"}
	}
	return value, nil
}

func (notNullComponent) RejectsNull() bool { return true }

// MinMax accepts numbers within [min, max]. Nil passes.
func MinMax(min, max float64) Component {
	return rangeComponent{intervals: []interval{{min, max}}, message: fmt.Sprintf("number must be between %s and %s", formatBound(min), formatBound(max))}
}

// AtLeast accepts numbers >= min.
func AtLeast(min float64) Component {
	return rangeComponent{intervals: []interval{{min, math.Inf(1)}}, message: "number must be at least " + formatBound(min)}
}

// AtMost accepts numbers <= max.
func AtMost(max float64) Component {
	return rangeComponent{intervals: []interval{{math.Inf(-1), max}}, message: "number must be at most " + formatBound(max)}
}

var intervalPattern = regexp.MustCompile(`\[\s*([^;\]]*)\s*;\s*([^\]]*)\s*\]`)

// Range accepts numbers inside any of the intervals written as
// "[0;500][1000.6;1500.7]". An empty bound is unbounded on that side.
func Range(spec string) (Component, error) {
	matches := intervalPattern.FindAllStringSubmatch(spec, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("aspen: range %q: no intervals", spec)
	}
	out := rangeComponent{}
	labels := make([]string, 0, len(matches))
	for _, m := range matches {
		lo, err := parseBound(m[1], math.Inf(-1))
		if err != nil {
			return nil, fmt.Errorf("aspen: range %q: %w", spec, err)
		}
		hi, err := parseBound(m[2], math.Inf(1))
		if err != nil {
			return nil, fmt.Errorf("aspen: range %q: %w", spec, err)
		}
		if lo > hi {
			return nil, fmt.Errorf("aspen: range %q: lower bound %s above upper bound %s", spec, formatBound(lo), formatBound(hi))
		}
		out.intervals = append(out.intervals, interval{lo, hi})
		labels = append(labels, fmt.Sprintf("[%s;%s]", formatBound(lo), formatBound(hi)))
	}
	out.message = "number must be in " + strings.Join(labels, "")
	return out, nil
}

// MustRange is Range that panics on a malformed spec.
func MustRange(spec string) Component {
	c, err := Range(spec)
	if err != nil {
		panic(err)
	}
	return c
}

func parseBound(text string, open float64) (float64, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return open, nil
	}
	return strconv.ParseFloat(text, 64)
}

func formatBound(f float64) string {
	if math.IsInf(f, 0) {
		if f > 0 {
			return "inf"
		}
		return "-inf"
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.ContainsAny(s, ".e") {
		s += ".0"
	}
	return s
}

type interval struct {
	lo, hi float64
}

type rangeComponent struct {
	intervals []interval
	message   string
}

func (r rangeComponent) CheckLoadedValue(_ *PropertyContext, value any) (any, error) {
	if isNil(value) {
		return value, nil
	}
	f, ok := toFloat(value)
	if !ok {
		return nil, &ValueError{Value: value, Expectation: "value must be a number"}
	}
	for _, iv := range r.intervals {
		if f >= iv.lo && f <= iv.hi {
			return value, nil
		}
	}
	return nil, &ValueError{Value: value, Expectation: r.message}
}

func (r rangeComponent) Bounds() (*float64, *float64) {
	if len(r.intervals) == 0 {
		return nil, nil
	}
	lo, hi := r.intervals[0].lo, r.intervals[0].hi
	for _, iv := range r.intervals[1:] {
		lo = math.Min(lo, iv.lo)
		hi = math.Max(hi, iv.hi)
	}
	var minPtr, maxPtr *float64
	if !math.IsInf(lo, 0) {
		minPtr = &lo
	}
	if !math.IsInf(hi, 0) {
		maxPtr = &hi
	}
	return minPtr, maxPtr
}

// OneOf accepts values equal to one of allowed.
func OneOf(allowed ...any) Component {
	labels := make([]string, len(allowed))
	for i, a := range allowed {
		labels[i] = fmt.Sprint(a)
	}
	return oneOfComponent{
		allowed: allowed,
		message: "value must be one of [" + strings.Join(labels, ", ") + "]",
	}
}

type oneOfComponent struct {
	allowed []any
	message string
}

func (c oneOfComponent) CheckLoadedValue(_ *PropertyContext, value any) (any, error) {
	if isNil(value) {
		return value, nil
	}
	for _, a := range c.allowed {
		if reflect.DeepEqual(a, value) || fmt.Sprint(a) == fmt.Sprint(value) {
			return value, nil
		}
	}
	return nil, &ValueError{Value: value, Expectation: c.message}
}

func (c oneOfComponent) Allowed() []any { return append([]any(nil), c.allowed...) }

// Pattern accepts strings matching re.
func Pattern(re *regexp.Regexp) Component {
	return patternComponent{re: re}
}

type patternComponent struct {
	re *regexp.Regexp
}

func (c patternComponent) CheckLoadedValue(_ *PropertyContext, value any) (any, error) {
	if isNil(value) {
		return value, nil
	}
	s, ok := value.(string)
	if !ok {
		s = fmt.Sprint(value)
	}
	if !c.re.MatchString(s) {
		return nil, NewValueError(value, "value must match %s", c.re.String())
	}
	return value, nil
}

func (c patternComponent) Expression() string { return c.re.String() }

// Check evaluates expr with the provider's evaluator. The expression sees the
// loaded value as `value`, the property name as `name`, its dotted path as
// `path` and sibling properties by name, and must return a boolean.
func Check(expr string) Component {
	return checkComponent{expr: expr}
}

type checkComponent struct {
	expr string
}

func (c checkComponent) CheckLoadedValue(ctx *PropertyContext, value any) (any, error) {
	provider := ctx.Provider()
	evaluator, err := provider.resolveEvaluator()
	if err != nil {
		return nil, err
	}
	rule := RuleContext{
		Value:    value,
		Snapshot: ctx.Snapshot(),
	}
	if ctx.Property != nil {
		rule.Name = ctx.Property.Name()
	}
	rule.Path = ctx.Path

	start := time.Now()
	result, evalErr := evaluator.Evaluate(rule, c.expr)
	evalErr = wrapEvaluationError(evaluatorEngineName(evaluator), c.expr, ctx.Path, evalErr)
	provider.evaluatorLogger().LogEvaluation(EvaluatorLogEvent{
		Engine:   evaluatorEngineName(evaluator),
		Expr:     c.expr,
		Property: ctx.Path,
		Duration: time.Since(start),
		Err:      evalErr,
	})
	if evalErr != nil {
		return nil, evalErr
	}
	ok, isBool := result.(bool)
	if !isBool {
		return nil, NewValueError(value, "expression %q must return a boolean, got %T", c.expr, result)
	}
	if !ok {
		return nil, NewValueError(value, "value must satisfy %s", c.expr)
	}
	return value, nil
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

func toFloat(value any) (float64, bool) {
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
