package raw

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ScalarFormat implements the scalar literal grammar: plain text is sniffed as
// null, boolean, integer or float before falling back to string; quoted text is
// always a string.
type ScalarFormat struct {
	// StringStyle is the style used when dumping string values.
	StringStyle Style
}

// DefaultScalarFormat dumps strings single-quoted.
var DefaultScalarFormat = ScalarFormat{StringStyle: StyleSingleQuoted}

// Parse decodes text written in style.
func (f ScalarFormat) Parse(text string, style Style) any {
	if style.Quoted() {
		return text
	}
	switch text {
	case "", "null":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if n, ok := parseNumber(text); ok {
		return n
	}
	return text
}

func parseNumber(text string) (any, bool) {
	c := text[0]
	if !(c >= '0' && c <= '9') && c != '-' && c != '+' && c != '.' {
		return nil, false
	}
	// strconv accepts Go digit separators; the literal grammar does not.
	if strings.ContainsRune(text, '_') {
		return nil, false
	}
	if i, err := strconv.ParseInt(text, 10, 64); err == nil {
		return i, true
	}
	d, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(d) || math.IsInf(d, 0) {
		return nil, false
	}
	if i, ok := integral(d); ok {
		return i, true
	}
	return d, true
}

func integral(d float64) (int64, bool) {
	if d != math.Trunc(d) || d < math.MinInt64 || d >= math.MaxInt64 {
		return 0, false
	}
	return int64(d), true
}

// Text renders value as literal text without quoting.
func (f ScalarFormat) Text(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case bool:
		return strconv.FormatBool(v)
	case string:
		return v
	case int:
		return strconv.FormatInt(int64(v), 10)
	case int8:
		return strconv.FormatInt(int64(v), 10)
	case int16:
		return strconv.FormatInt(int64(v), 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case int64:
		return strconv.FormatInt(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case uint8:
		return strconv.FormatUint(uint64(v), 10)
	case uint16:
		return strconv.FormatUint(uint64(v), 10)
	case uint32:
		return strconv.FormatUint(uint64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float32:
		return formatFloat(float64(v))
	case float64:
		return formatFloat(v)
	default:
		return fmt.Sprint(v)
	}
}

func formatFloat(d float64) string {
	if i, ok := integral(d); ok {
		return strconv.FormatInt(i, 10)
	}
	return strconv.FormatFloat(d, 'g', -1, 64)
}

// Format renders value and picks the style it must be written in.
func (f ScalarFormat) Format(value any) (string, Style) {
	switch value.(type) {
	case nil, bool, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return f.Text(value), StylePlain
	}
	text := f.Text(value)
	style := f.StringStyle
	if style == StylePlain && f.Parse(text, StylePlain) != any(text) {
		style = StyleSingleQuoted
	}
	if strings.Contains(text, "\n") && style == StylePlain {
		style = StyleDoubleQuoted
	}
	return text, style
}

// Scalar builds a node for value. Non-primitive values are stored as their
// textual form.
func (f ScalarFormat) Scalar(value any) *Scalar {
	text, style := f.Format(value)
	switch value.(type) {
	case nil, bool, string, int64, float64:
		return NewStyledScalar(value, style)
	}
	return NewStyledScalar(f.Parse(text, style), style)
}

// ParseScalar decodes text with DefaultScalarFormat.
func ParseScalar(text string, style Style) any {
	return DefaultScalarFormat.Parse(text, style)
}

// FormatScalar renders value with DefaultScalarFormat.
func FormatScalar(value any) (string, Style) {
	return DefaultScalarFormat.Format(value)
}
