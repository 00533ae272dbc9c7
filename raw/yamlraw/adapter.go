// Package yamlraw converts between YAML documents and raw node trees using
// gopkg.in/yaml.v3, keeping comments, scalar quoting styles and positions.
package yamlraw

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-aspen/raw"
)

// Option configures an Adapter.
type Option func(*Adapter)

// WithIndent sets the number of spaces per nesting level (default 2).
func WithIndent(spaces int) Option {
	return func(a *Adapter) {
		if spaces > 0 {
			a.indent = spaces
		}
	}
}

// WithFlowMaps renders objects in flow style.
func WithFlowMaps(enabled bool) Option {
	return func(a *Adapter) {
		a.flowMaps = enabled
	}
}

// WithFlowLists renders lists in flow style.
func WithFlowLists(enabled bool) Option {
	return func(a *Adapter) {
		a.flowLists = enabled
	}
}

// WithKeyStyle sets the quoting style used for mapping keys.
func WithKeyStyle(style raw.Style) Option {
	return func(a *Adapter) {
		a.keyStyle = style
	}
}

// WithSpacedComments controls whether a space follows the comment marker.
func WithSpacedComments(enabled bool) Option {
	return func(a *Adapter) {
		a.spacedComments = enabled
	}
}

// Adapter implements raw.Adapter for YAML.
type Adapter struct {
	indent         int
	flowMaps       bool
	flowLists      bool
	keyStyle       raw.Style
	spacedComments bool
}

var _ raw.Adapter = (*Adapter)(nil)

// New constructs an adapter with block style output and spaced comments.
func New(opts ...Option) *Adapter {
	a := &Adapter{
		indent:         2,
		keyStyle:       raw.StylePlain,
		spacedComments: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Parse decodes data into a node tree. An empty document yields an empty
// object.
func (a *Adapter) Parse(data []byte, name string) (raw.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("yamlraw: parse %s: %w", name, err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		out := raw.NewObject()
		out.Source = raw.FileSource{File: name, Line: 1, Column: 1}
		return out, nil
	}
	root := a.fromYAML(doc.Content[0], name)
	meta := raw.MetaOf(root)
	meta.BlockComment = append(splitComment(doc.HeadComment), meta.BlockComment...)
	meta.EndComment = append(meta.EndComment, splitComment(doc.FootComment)...)
	return root, nil
}

func (a *Adapter) fromYAML(n *yaml.Node, file string) raw.Node {
	var out raw.Node
	switch n.Kind {
	case yaml.AliasNode:
		if n.Alias != nil {
			return a.fromYAML(n.Alias, file)
		}
		out = raw.NewUndefined()
	case yaml.ScalarNode:
		style := styleFromYAML(n.Style)
		out = raw.NewStyledScalar(raw.ParseScalar(n.Value, style), style)
	case yaml.SequenceNode:
		list := raw.NewList()
		for _, item := range n.Content {
			list.Append(a.fromYAML(item, file))
		}
		out = list
	case yaml.MappingNode:
		obj := raw.NewObject()
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, value := n.Content[i], n.Content[i+1]
			if key.Kind == yaml.ScalarNode && (key.Tag == "!!merge" || key.Value == "<<" && key.Style == 0) {
				a.mergeInto(obj, value, file)
				continue
			}
			child := a.fromYAML(value, file)
			meta := raw.MetaOf(child)
			meta.BlockComment = append(splitComment(key.HeadComment), meta.BlockComment...)
			meta.InlineComment = append(splitComment(key.LineComment), meta.InlineComment...)
			meta.EndComment = append(meta.EndComment, splitComment(key.FootComment)...)

			pair := obj.Put(key.Value, child)
			pair.Key = raw.NewStyledScalar(key.Value, styleFromYAML(key.Style))
			pair.Source = raw.FileSource{File: file, Line: key.Line, Column: key.Column}
		}
		out = obj
	default:
		out = raw.NewUndefined()
	}
	meta := raw.MetaOf(out)
	meta.Source = raw.FileSource{File: file, Line: n.Line, Column: n.Column}
	meta.BlockComment = append(meta.BlockComment, splitComment(n.HeadComment)...)
	meta.InlineComment = append(meta.InlineComment, splitComment(n.LineComment)...)
	meta.EndComment = append(meta.EndComment, splitComment(n.FootComment)...)
	return out
}

// mergeInto applies a "<<" merge key: entries already present win.
func (a *Adapter) mergeInto(obj *raw.Object, value *yaml.Node, file string) {
	sources := []*yaml.Node{value}
	if value.Kind == yaml.SequenceNode {
		sources = value.Content
	}
	for _, src := range sources {
		merged, ok := a.fromYAML(src, file).(*raw.Object)
		if !ok {
			continue
		}
		for _, p := range merged.Entries() {
			if _, exists := obj.Get(p.Name()); !exists {
				obj.Put(p.Name(), raw.Clone(p.Value()))
			}
		}
	}
}

func styleFromYAML(style yaml.Style) raw.Style {
	switch {
	case style&yaml.SingleQuotedStyle != 0:
		return raw.StyleSingleQuoted
	case style&yaml.DoubleQuotedStyle != 0:
		return raw.StyleDoubleQuoted
	case style&yaml.LiteralStyle != 0:
		return raw.StyleLiteral
	case style&yaml.FoldedStyle != 0:
		return raw.StyleFolded
	default:
		return raw.StylePlain
	}
}

func styleToYAML(style raw.Style) yaml.Style {
	switch style {
	case raw.StyleSingleQuoted:
		return yaml.SingleQuotedStyle
	case raw.StyleDoubleQuoted:
		return yaml.DoubleQuotedStyle
	case raw.StyleLiteral:
		return yaml.LiteralStyle
	case raw.StyleFolded:
		return yaml.FoldedStyle
	default:
		return 0
	}
}

func splitComment(text string) []string {
	if text == "" {
		return nil
	}
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.TrimPrefix(line, "#")
		line = strings.TrimPrefix(line, " ")
		lines = append(lines, line)
	}
	return lines
}

// Serialize renders root as a YAML document.
func (a *Adapter) Serialize(root raw.Node) ([]byte, error) {
	if root == nil {
		return nil, fmt.Errorf("yamlraw: serialize: nil root")
	}
	body := a.toYAML(root)
	doc := &yaml.Node{Kind: yaml.DocumentNode, Content: []*yaml.Node{body}}
	meta := raw.MetaOf(root)
	if body.Kind == yaml.MappingNode || body.Kind == yaml.SequenceNode {
		doc.HeadComment = a.joinComment(meta.BlockComment)
		doc.FootComment = a.joinComment(meta.EndComment)
		body.HeadComment = ""
		body.FootComment = ""
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(a.indent)
	if err := enc.Encode(doc); err != nil {
		return nil, fmt.Errorf("yamlraw: serialize: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("yamlraw: serialize: %w", err)
	}
	return buf.Bytes(), nil
}

func (a *Adapter) toYAML(n raw.Node) *yaml.Node {
	var out *yaml.Node
	switch v := n.(type) {
	case *raw.Scalar:
		out = a.scalarNode(v.Value(), v.Style())
	case *raw.List:
		out = &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		if a.flowLists {
			out.Style = yaml.FlowStyle
		}
		for _, item := range v.Items() {
			if raw.IsUndefined(item) {
				continue
			}
			out.Content = append(out.Content, a.toYAML(item))
		}
	case *raw.Object:
		out = &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		if a.flowMaps {
			out.Style = yaml.FlowStyle
		}
		for _, p := range v.Entries() {
			if raw.IsUndefined(p.Value()) {
				continue
			}
			key, value := a.pairNodes(p)
			out.Content = append(out.Content, key, value)
		}
	case *raw.Pair:
		key, value := a.pairNodes(v)
		return &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map", Content: []*yaml.Node{key, value}}
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
	meta := raw.MetaOf(n)
	out.HeadComment = a.joinComment(meta.BlockComment)
	out.LineComment = a.joinComment(meta.InlineComment)
	out.FootComment = a.joinComment(meta.EndComment)
	return out
}

// pairNodes moves the value's comments onto the key where YAML expects them.
func (a *Adapter) pairNodes(p *raw.Pair) (*yaml.Node, *yaml.Node) {
	keyStyle := a.keyStyle
	if p.Key != nil && p.Key.Style() != raw.StylePlain {
		keyStyle = p.Key.Style()
	}
	key := a.scalarNode(p.Name(), keyStyle)
	value := a.toYAML(p.Value())

	key.HeadComment = a.joinComment(append(cloneLines(p.BlockComment), raw.MetaOf(p.Value()).BlockComment...))
	key.FootComment = a.joinComment(append(cloneLines(p.EndComment), raw.MetaOf(p.Value()).EndComment...))
	value.HeadComment = ""
	value.FootComment = ""
	if value.Kind == yaml.MappingNode || value.Kind == yaml.SequenceNode {
		if value.Style&yaml.FlowStyle == 0 {
			key.LineComment = value.LineComment
			value.LineComment = ""
		}
	}
	return key, value
}

func (a *Adapter) scalarNode(value any, style raw.Style) *yaml.Node {
	text, _ := raw.FormatScalar(value)
	out := &yaml.Node{Kind: yaml.ScalarNode, Value: text, Style: styleToYAML(style)}
	if s, ok := value.(string); ok {
		out.Tag = "!!str"
		if style == raw.StylePlain && raw.ParseScalar(s, raw.StylePlain) != any(s) {
			out.Style = yaml.SingleQuotedStyle
		}
	}
	return out
}

func (a *Adapter) joinComment(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	prefix := "#"
	if a.spacedComments {
		prefix = "# "
	}
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = prefix + line
	}
	return strings.Join(out, "\n")
}

func cloneLines(lines []string) []string {
	return append([]string(nil), lines...)
}
