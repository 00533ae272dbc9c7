package openapi

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"

	aspen "github.com/goliatone/go-aspen"
)

type schemaNode struct {
	Type        string
	Format      string
	Description string
	Properties  map[string]*schemaNode
	Required    []string
	Items       *schemaNode
	Enum        []any
	Minimum     *float64
	Maximum     *float64
	Pattern     string
	Nullable    bool
	// section marks nodes built from a schema section; only those are
	// candidates for components.
	section bool
}

func newObjectNode() *schemaNode {
	return &schemaNode{
		Type:       "object",
		Properties: map[string]*schemaNode{},
	}
}

func (n *schemaNode) baseMap() map[string]any {
	result := map[string]any{}
	if n.Type != "" {
		result["type"] = n.Type
	}
	if n.Format != "" {
		result["format"] = n.Format
	}
	if n.Description != "" {
		result["description"] = n.Description
	}
	if len(n.Enum) > 0 {
		result["enum"] = n.Enum
	}
	if n.Minimum != nil {
		result["minimum"] = *n.Minimum
	}
	if n.Maximum != nil {
		result["maximum"] = *n.Maximum
	}
	if n.Pattern != "" {
		result["pattern"] = n.Pattern
	}
	if n.Nullable {
		result["nullable"] = true
	}
	return result
}

func (n *schemaNode) inlineOpenAPI() map[string]any {
	result := n.baseMap()
	if len(n.Properties) > 0 || n.Type == "object" {
		props := make(map[string]any, len(n.Properties))
		for _, name := range sortedKeys(n.Properties) {
			props[name] = n.Properties[name].inlineOpenAPI()
		}
		result["properties"] = props
	}
	if len(n.Required) > 0 {
		names := append([]string{}, n.Required...)
		sort.Strings(names)
		result["required"] = names
	}
	if n.Items != nil {
		result["items"] = n.Items.inlineOpenAPI()
	}
	return result
}

// Digest identifies structurally equal nodes so repeated sections share a
// component.
func (n *schemaNode) Digest() string {
	data, err := json.Marshal(n.inlineOpenAPI())
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// buildSchemaGraph walks a composed schema: sections become nested objects,
// collections arrays and the remaining properties scalars typed after their
// primitive representation.
func buildSchemaGraph(s *aspen.Schema) (*schemaNode, error) {
	if s == nil {
		return nil, fmt.Errorf("openapi: schema cannot be nil")
	}
	node := newObjectNode()
	node.section = true
	node.Description = strings.Join(s.Comment(), "\n")
	for _, p := range s.Properties() {
		child, err := nodeForProperty(p)
		if err != nil {
			return nil, err
		}
		node.Properties[p.Name()] = child
		if isRequired(p) {
			node.Required = append(node.Required, p.Name())
		}
	}
	return node, nil
}

func nodeForProperty(p *aspen.Property) (*schemaNode, error) {
	if section, ok := p.Section(); ok {
		node, err := buildSchemaGraph(section)
		if err != nil {
			return nil, err
		}
		if comment := strings.Join(p.Comment(), "\n"); comment != "" {
			node.Description = comment
		}
		return node, nil
	}

	var node *schemaNode
	if element, ok := p.Element(); ok {
		items, err := nodeForProperty(element)
		if err != nil {
			return nil, err
		}
		node = &schemaNode{Type: "array", Items: items}
	} else {
		var err error
		node, err = nodeForType(p.Type(), p.PrimitiveType())
		if err != nil {
			return nil, fmt.Errorf("openapi: property %s: %w", p.Name(), err)
		}
	}

	node.Description = strings.Join(p.Comment(), "\n")
	if enum, ok := p.Codec().(aspen.Enumerated); ok {
		node.Type = "string"
		node.Format = ""
		for _, name := range enum.Names() {
			node.Enum = append(node.Enum, name)
		}
	}
	applyComponents(node, p.Components())
	return node, nil
}

func applyComponents(node *schemaNode, components []aspen.Component) {
	for _, c := range components {
		if nested, ok := c.(interface{ Components() []aspen.Component }); ok {
			applyComponents(node, nested.Components())
			continue
		}
		if bounded, ok := c.(aspen.Bounded); ok {
			lo, hi := bounded.Bounds()
			node.Minimum = tighter(node.Minimum, lo, true)
			node.Maximum = tighter(node.Maximum, hi, false)
		}
		if restricted, ok := c.(aspen.Restricted); ok && len(node.Enum) == 0 {
			node.Enum = restricted.Allowed()
		}
		if patterned, ok := c.(aspen.Patterned); ok {
			node.Pattern = patterned.Expression()
		}
	}
}

func tighter(current, next *float64, lower bool) *float64 {
	if next == nil {
		return current
	}
	if current == nil {
		value := *next
		return &value
	}
	if (lower && *next > *current) || (!lower && *next < *current) {
		value := *next
		return &value
	}
	return current
}

func isRequired(p *aspen.Property) bool {
	for _, c := range p.Components() {
		if mandatory, ok := c.(aspen.Mandatory); ok && mandatory.RejectsNull() {
			return true
		}
	}
	return false
}

var (
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
)

// nodeForType describes a leaf property. Behaviours that store a value as
// text keep a format hint naming the Go type.
func nodeForType(complex, primitive reflect.Type) (*schemaNode, error) {
	switch complex {
	case timeType:
		return &schemaNode{Type: "string", Format: "date-time"}, nil
	case durationType:
		return &schemaNode{Type: "string", Format: "duration"}, nil
	}
	if primitive != nil && complex != nil && primitive.Kind() == reflect.String && complex.Kind() != reflect.String {
		return &schemaNode{Type: "string", Format: "go:" + complex.String()}, nil
	}
	if complex == nil {
		complex = primitive
	}
	return newTypeBuilder().build(complex)
}

// typeBuilder describes plain Go values stored through the struct codec,
// following their json field names.
type typeBuilder struct {
	visited map[reflect.Type]bool
}

func newTypeBuilder() *typeBuilder {
	return &typeBuilder{visited: map[reflect.Type]bool{}}
}

func (b *typeBuilder) build(rt reflect.Type) (*schemaNode, error) {
	if rt == nil {
		return &schemaNode{}, nil
	}
	nullable := false
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
		nullable = true
	}
	node, err := b.buildKind(rt)
	if err != nil {
		return nil, err
	}
	node.Nullable = nullable
	return node, nil
}

func (b *typeBuilder) buildKind(rt reflect.Type) (*schemaNode, error) {
	if rt == timeType {
		return &schemaNode{Type: "string", Format: "date-time"}, nil
	}
	switch rt.Kind() {
	case reflect.Bool:
		return &schemaNode{Type: "boolean"}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return &schemaNode{Type: "integer"}, nil
	case reflect.Float32, reflect.Float64:
		return &schemaNode{Type: "number"}, nil
	case reflect.String:
		return &schemaNode{Type: "string"}, nil
	case reflect.Interface:
		return &schemaNode{}, nil
	case reflect.Struct:
		return b.buildStruct(rt)
	case reflect.Map:
		if rt.Key().Kind() != reflect.String {
			return nil, fmt.Errorf("map key type %s unsupported", rt.Key())
		}
		if rt.Elem().Kind() == reflect.Struct && rt.Elem().NumField() == 0 {
			items, err := b.build(rt.Key())
			if err != nil {
				return nil, err
			}
			return &schemaNode{Type: "array", Items: items}, nil
		}
		return newObjectNode(), nil
	case reflect.Slice, reflect.Array:
		if rt.Kind() == reflect.Slice && rt.Elem().Kind() == reflect.Uint8 {
			return &schemaNode{Type: "string", Format: "byte"}, nil
		}
		items, err := b.build(rt.Elem())
		if err != nil {
			return nil, err
		}
		return &schemaNode{Type: "array", Items: items}, nil
	default:
		return &schemaNode{Type: "string", Format: "go:" + rt.String()}, nil
	}
}

func (b *typeBuilder) buildStruct(rt reflect.Type) (*schemaNode, error) {
	if b.visited[rt] {
		return newObjectNode(), nil
	}
	b.visited[rt] = true
	defer delete(b.visited, rt)

	node := newObjectNode()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if !field.IsExported() {
			continue
		}
		name, omitEmpty, skip := parseJSONName(field)
		if skip {
			continue
		}
		child, err := b.build(field.Type)
		if err != nil {
			return nil, err
		}
		child.Description = field.Tag.Get("doc")
		node.Properties[name] = child
		if !omitEmpty && field.Type.Kind() != reflect.Pointer {
			node.Required = append(node.Required, name)
		}
	}
	return node, nil
}

func parseJSONName(field reflect.StructField) (name string, omitEmpty bool, skip bool) {
	tag := field.Tag.Get("json")
	if tag == "" {
		return field.Name, false, false
	}
	segments := strings.Split(tag, ",")
	if segments[0] == "-" {
		return "", false, true
	}
	name = segments[0]
	if name == "" {
		name = field.Name
	}
	for _, segment := range segments[1:] {
		if segment == "omitempty" {
			omitEmpty = true
		}
	}
	return name, omitEmpty, false
}

func sortedKeys(m map[string]*schemaNode) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
