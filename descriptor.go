package aspen

import (
	"fmt"
	"io/fs"
	"reflect"
	"strings"
	"unicode"
)

// Role tells the composition walk how to treat a descriptor.
type Role int

const (
	// RoleOption fields are turned into properties by the option composers.
	RoleOption Role = iota
	// RoleSection fields become child schemas.
	RoleSection
	// RoleProperty fields already hold a *Property.
	RoleProperty
	// RolePlaceholder fields hold a *Ref resolved after the walk.
	RolePlaceholder
	// RoleSkip fields are ignored.
	RoleSkip
)

func (r Role) String() string {
	switch r {
	case RoleOption:
		return "option"
	case RoleSection:
		return "section"
	case RoleProperty:
		return "property"
	case RolePlaceholder:
		return "placeholder"
	case RoleSkip:
		return "skip"
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// Descriptor is one entry of a host's field table.
type Descriptor struct {
	Name  string
	Field string
	Index []int
	Type  reflect.Type
	Role  Role
	Tags  reflect.StructTag
	// Accessor builds the accessor for option fields. Nil means a memory slot.
	Accessor func() Accessor
	// Property is set for RoleProperty.
	Property *Property
	// Placeholder is set for RolePlaceholder.
	Placeholder Placeholder
	// Instance is the child host of a RoleSection descriptor.
	Instance any
	Comment  []string
	// Struct forces the struct codec for map or struct fields.
	Struct bool
}

// Tag returns the value of a struct tag key.
func (d Descriptor) Tag(key string) (string, bool) {
	return d.Tags.Lookup(key)
}

// Describer hosts supply their own descriptor table instead of reflection.
type Describer interface {
	AspenDescriptors() []Descriptor
}

// Documented hosts provide the comment emitted above their schema.
type Documented interface {
	AspenComment() []string
}

// DefaultsSource hosts bundle a defaults document seeded on first load.
type DefaultsSource interface {
	AspenDefaults() (fs.FS, string)
}

var (
	propertyType    = reflect.TypeFor[*Property]()
	placeholderType = reflect.TypeFor[Placeholder]()
)

// Describe builds the descriptor table of host, a non-nil pointer to a
// struct. Nil section pointers and tagged nil refs are allocated in place.
func Describe(host any) ([]Descriptor, error) {
	if d, ok := host.(Describer); ok {
		return d.AspenDescriptors(), nil
	}
	rv := reflect.ValueOf(host)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("aspen: describe: host must be a non-nil pointer to a struct, got %T", host)
	}
	var out []Descriptor
	if err := describeStruct(rv.Elem(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func describeStruct(rv reflect.Value, prefix []int, out *[]Descriptor) error {
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		index := append(append([]int(nil), prefix...), i)
		tag := field.Tag.Get("aspen")
		if tag == "-" {
			continue
		}
		if field.Anonymous && tag == "" {
			ft := field.Type
			fv := rv.Field(i)
			if ft.Kind() == reflect.Pointer && ft.Elem().Kind() == reflect.Struct {
				if !field.IsExported() {
					continue
				}
				if fv.IsNil() {
					fv.Set(reflect.New(ft.Elem()))
				}
				if err := describeStruct(fv.Elem(), index, out); err != nil {
					return err
				}
				continue
			}
			if ft.Kind() == reflect.Struct {
				if err := describeStruct(fv, index, out); err != nil {
					return err
				}
				continue
			}
		}
		if !field.IsExported() {
			continue
		}
		d, err := describeField(rv.Field(i), field, index, tag)
		if err != nil {
			return err
		}
		if d.Role != RoleSkip {
			*out = append(*out, d)
		}
	}
	return nil
}

func describeField(fv reflect.Value, field reflect.StructField, index []int, tag string) (Descriptor, error) {
	name, flags := parseTag(tag)
	if name == "" {
		name = KebabCase(field.Name)
	}
	d := Descriptor{
		Name:  name,
		Field: field.Name,
		Index: index,
		Type:  field.Type,
		Role:  RoleOption,
		Tags:  field.Tag,
	}
	if doc, ok := field.Tag.Lookup("doc"); ok && doc != "" {
		d.Comment = strings.Split(doc, "\n")
	}

	switch {
	case field.Type == propertyType:
		if fv.IsNil() {
			return d, fmt.Errorf("aspen: describe: field %s holds a nil *Property", field.Name)
		}
		d.Role = RoleProperty
		d.Property = fv.Interface().(*Property)
		return d, nil
	case field.Type.Implements(placeholderType):
		d.Role = RolePlaceholder
		if fv.IsNil() {
			if !flags["ref"] || field.Type.Kind() != reflect.Pointer {
				return d, fmt.Errorf("aspen: describe: field %s holds a nil reference", field.Name)
			}
			fv.Set(reflect.New(field.Type.Elem()))
			ph := fv.Interface().(Placeholder)
			ph.setPath(name)
			d.Name = field.Name
		}
		d.Placeholder = fv.Interface().(Placeholder)
		return d, nil
	case flags["section"]:
		d.Role = RoleSection
		instance, err := sectionInstance(fv, field)
		if err != nil {
			return d, err
		}
		d.Instance = instance
		return d, nil
	}

	d.Struct = flags["struct"]
	idx := append([]int(nil), index...)
	d.Accessor = func() Accessor { return ForField(idx) }
	return d, nil
}

func sectionInstance(fv reflect.Value, field reflect.StructField) (any, error) {
	switch {
	case field.Type.Kind() == reflect.Struct:
		return fv.Addr().Interface(), nil
	case field.Type.Kind() == reflect.Pointer && field.Type.Elem().Kind() == reflect.Struct:
		if fv.IsNil() {
			fv.Set(reflect.New(field.Type.Elem()))
		}
		return fv.Interface(), nil
	}
	return nil, fmt.Errorf("%w: field %s of type %s", ErrUnsupportedSection, field.Name, field.Type)
}

// parseTag splits `name,flag,flag`.
func parseTag(tag string) (string, map[string]bool) {
	parts := strings.Split(tag, ",")
	flags := map[string]bool{}
	for _, p := range parts[1:] {
		if p = strings.TrimSpace(p); p != "" {
			flags[p] = true
		}
	}
	return strings.TrimSpace(parts[0]), flags
}

// KebabCase converts a Go identifier such as MaxIdleConns or HTTPPort into
// max-idle-conns or http-port.
func KebabCase(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					b.WriteByte('-')
				}
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		if r == '_' {
			b.WriteByte('-')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
