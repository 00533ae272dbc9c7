package raw

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestParseScalarPlainGrammar(t *testing.T) {
	cases := []struct {
		text string
		want any
	}{
		{"null", nil},
		{"", nil},
		{"true", true},
		{"false", false},
		{"True", "True"},
		{"42", int64(42)},
		{"-7", int64(-7)},
		{"+3", int64(3)},
		{"1.0", int64(1)},
		{"1e3", int64(1000)},
		{"2.5", 2.5},
		{".5", 0.5},
		{"NaN", "NaN"},
		{"-Inf", "-Inf"},
		{"1_000", "1_000"},
		{"hello", "hello"},
		{"12abc", "12abc"},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseScalar(tc.text, StylePlain))
		})
	}
}

func TestParseScalarQuotedNeverSniffs(t *testing.T) {
	for _, style := range []Style{StyleSingleQuoted, StyleDoubleQuoted, StyleLiteral, StyleFolded} {
		assert.Equal(t, "true", ParseScalar("true", style))
		assert.Equal(t, "42", ParseScalar("42", style))
		assert.Equal(t, "null", ParseScalar("null", style))
	}
}

func TestFormatScalar(t *testing.T) {
	text, style := FormatScalar(600.0)
	assert.Equal(t, "600", text)
	assert.Equal(t, StylePlain, style)

	text, style = FormatScalar(2.25)
	assert.Equal(t, "2.25", text)
	assert.Equal(t, StylePlain, style)

	text, style = FormatScalar("420")
	assert.Equal(t, "420", text)
	assert.Equal(t, StyleSingleQuoted, style)

	text, style = FormatScalar(nil)
	assert.Equal(t, "null", text)
	assert.Equal(t, StylePlain, style)
}

func TestPlainStringFormatQuotesAmbiguousText(t *testing.T) {
	format := ScalarFormat{StringStyle: StylePlain}

	_, style := format.Format("hello")
	assert.Equal(t, StylePlain, style)

	_, style = format.Format("true")
	assert.Equal(t, StyleSingleQuoted, style)

	_, style = format.Format("12")
	assert.Equal(t, StyleSingleQuoted, style)
}

func TestScalarLiteralRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		value := rapid.OneOf(
			rapid.Just[any](nil),
			rapid.Map(rapid.Bool(), func(b bool) any { return b }),
			rapid.Map(rapid.Int64(), func(i int64) any { return i }),
			rapid.Map(rapid.Float64Range(-1e12, 1e12), func(f float64) any { return f }),
			rapid.Map(rapid.String(), func(s string) any { return s }),
		).Draw(t, "value")

		text, style := FormatScalar(value)
		got := ParseScalar(text, style)

		if f, ok := value.(float64); ok {
			switch g := got.(type) {
			case int64:
				if float64(g) != f {
					t.Fatalf("float %v reloaded as %v", f, g)
				}
			case float64:
				if g != f && !(math.IsNaN(g) && math.IsNaN(f)) {
					t.Fatalf("float %v reloaded as %v", f, g)
				}
			default:
				t.Fatalf("float %v reloaded as %T", f, got)
			}
			return
		}
		if got != value {
			t.Fatalf("value %#v reloaded as %#v via %q (%s)", value, got, text, style)
		}
	})
}
