package aspen

import (
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-aspen/raw"
)

// Exactness of the built-in option composers.
const (
	ExactnessBehaviour  = 5
	ExactnessEnum       = 8
	ExactnessNumber     = 10
	ExactnessCollection = 15
	ExactnessStruct     = 40
	ExactnessTags       = 100
)

var (
	durationType = reflect.TypeFor[time.Duration]()
	timeType     = reflect.TypeFor[time.Time]()
)

func builtinOptionComposers() []OptionComposer {
	return []OptionComposer{
		behaviourComposer,
		enumComposer,
		numberComposer,
		collectionComposer,
		structComposer,
		tagComposer,
	}
}

func builtinBehaviours() map[reflect.Type]PropertyBehaviour {
	return map[reflect.Type]PropertyBehaviour{
		durationType: DurationBehaviour,
		timeType:     TimeBehaviour,
	}
}

var behaviourComposer = OptionComposer{
	Name:      "behaviour",
	Exactness: ExactnessBehaviour,
	Open: func(ctx *OptionComposeContext) (*Builder, error) {
		b, ok := ctx.Provider.cfg.behaviours[ctx.Descriptor.Type]
		if !ok {
			return nil, nil
		}
		return Behaviour(ctx.Descriptor.Name, b), nil
	},
}

var enumComposer = OptionComposer{
	Name:      "enum",
	Exactness: ExactnessEnum,
	Open: func(ctx *OptionComposeContext) (*Builder, error) {
		values, ok := ctx.Provider.cfg.enums[ctx.Descriptor.Type]
		if !ok {
			return nil, nil
		}
		return enumBuilder(ctx.Descriptor.Name, ctx.Descriptor.Type, values), nil
	},
}

var numberComposer = OptionComposer{
	Name:      "number",
	Exactness: ExactnessNumber,
	Match:     func(d Descriptor) bool { return d.Type != nil && isNumericKind(d.Type.Kind()) },
	Open: func(ctx *OptionComposeContext) (*Builder, error) {
		return numberBuilder(ctx.Descriptor.Name, ctx.Descriptor.Type), nil
	},
	Configure: func(ctx *OptionComposeContext, b *Builder) error {
		d := ctx.Descriptor
		if spec, ok := d.Tag("range"); ok {
			c, err := Range(spec)
			if err != nil {
				return err
			}
			b.With(c)
		}
		min, hasMin, err := floatTag(d, "min")
		if err != nil {
			return err
		}
		max, hasMax, err := floatTag(d, "max")
		if err != nil {
			return err
		}
		switch {
		case hasMin && hasMax:
			b.With(MinMax(min, max))
		case hasMin:
			b.With(AtLeast(min))
		case hasMax:
			b.With(AtMost(max))
		}
		return nil
	},
}

func floatTag(d Descriptor, key string) (float64, bool, error) {
	text, ok := d.Tag(key)
	if !ok {
		return 0, false, nil
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return 0, false, fmt.Errorf("%s tag %q on %s: %w", key, text, d.Name, err)
	}
	return f, true, nil
}

var collectionComposer = OptionComposer{
	Name:      "collection",
	Exactness: ExactnessCollection,
	Match: func(d Descriptor) bool {
		if d.Type == nil {
			return false
		}
		switch d.Type.Kind() {
		case reflect.Slice:
			return d.Type.Elem().Kind() != reflect.Uint8
		case reflect.Array:
			return true
		case reflect.Map:
			return isSetType(d.Type)
		}
		return false
	},
	Open: func(ctx *OptionComposeContext) (*Builder, error) {
		d := ctx.Descriptor
		elem := d.Type.Elem()
		if d.Type.Kind() == reflect.Map {
			elem = d.Type.Key()
		}
		element, err := ctx.Provider.openBuilder(&OptionComposeContext{
			ComposeContext: ctx.ComposeContext,
			Schema:         ctx.Schema,
			Descriptor:     Descriptor{Name: d.Name, Field: d.Field, Type: elem, Role: RoleOption},
		})
		if err != nil {
			return nil, err
		}
		b := collectionBuilder(d.Name, elem, element)
		switch d.Type.Kind() {
		case reflect.Map:
			b.Container(SetOf())
		case reflect.Array:
			b.Container(ArrayOf(d.Type.Len()))
		}
		return b, nil
	},
}

func isSetType(t reflect.Type) bool {
	return t.Kind() == reflect.Map && t.Elem().Kind() == reflect.Struct && t.Elem().NumField() == 0
}

var structComposer = OptionComposer{
	Name:      "struct",
	Exactness: ExactnessStruct,
	Match: func(d Descriptor) bool {
		if d.Struct {
			return true
		}
		if d.Type == nil {
			return false
		}
		t := d.Type
		if t.Kind() == reflect.Pointer {
			t = t.Elem()
		}
		return t.Kind() == reflect.Struct || t.Kind() == reflect.Map
	},
	Open: func(ctx *OptionComposeContext) (*Builder, error) {
		return structBuilder(ctx.Descriptor.Name, ctx.Descriptor.Type), nil
	},
}

// tagComposer turns the nonnull, check, pattern, oneof and default tags into
// components and suppliers.
var tagComposer = OptionComposer{
	Name:      "tags",
	Exactness: ExactnessTags,
	Match: func(d Descriptor) bool {
		for _, key := range []string{"nonnull", "check", "pattern", "oneof", "default"} {
			if _, ok := d.Tag(key); ok {
				return true
			}
		}
		return false
	},
	Configure: func(ctx *OptionComposeContext, b *Builder) error {
		d := ctx.Descriptor
		if text, ok := d.Tag("nonnull"); ok {
			on := true
			if text != "" {
				v, err := strconv.ParseBool(text)
				if err != nil {
					return fmt.Errorf("nonnull tag %q on %s: %w", text, d.Name, err)
				}
				on = v
			}
			if on {
				b.With(NotNull())
			}
		}
		if text, ok := d.Tag("pattern"); ok {
			re, err := regexp.Compile(text)
			if err != nil {
				return fmt.Errorf("pattern tag on %s: %w", d.Name, err)
			}
			b.With(Pattern(re))
		}
		if text, ok := d.Tag("oneof"); ok {
			var allowed []any
			for _, part := range strings.Split(text, "|") {
				allowed = append(allowed, raw.ParseScalar(strings.TrimSpace(part), raw.StylePlain))
			}
			b.With(OneOf(allowed...))
		}
		if expr, ok := d.Tag("check"); ok && expr != "" {
			b.With(Check(expr))
		}
		if text, ok := d.Tag("default"); ok {
			if b.codec == nil {
				return fmt.Errorf("default tag on %s: %s has no scalar form", d.Name, d.Type)
			}
			value, err := b.codec.FromPrimitive(nil, raw.ParseScalar(text, raw.StylePlain))
			if err != nil {
				return fmt.Errorf("default tag %q on %s: %w", text, d.Name, err)
			}
			b.Default(value)
		}
		return nil
	},
}
