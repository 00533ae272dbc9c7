package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-aspen/raw"
)

func newInspectCommand(app *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Print the raw tree of a document",
		Long: `Print the raw tree of a YAML document: the kind of every node, scalar
values with their quoting style, comments and the line and column each
node was read from.

Examples:
  aspen inspect config/app.yml
  aspen inspect config/app.yml --sources=false --color never`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			node, _, err := app.parse(cmd, args[0])
			if err != nil {
				return err
			}
			sources, _ := cmd.Flags().GetBool("sources")
			p := treePrinter{
				w:       cmd.OutOrStdout(),
				colors:  newPalette(app.colorEnabled(cmd)),
				sources: sources,
			}
			p.print("", node, 0)
			return p.err
		},
	}
	cmd.Flags().Bool("sources", true, "show where each node was read from")
	return cmd
}

// parse loads path through the file store and parses it with the YAML
// adapter. The raw bytes are returned for commands that compare output.
func (c *cli) parse(cmd *cobra.Command, path string) (raw.Node, []byte, error) {
	data, meta, ok, err := c.store.Load(cmd.Context(), path)
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		return nil, nil, fmt.Errorf("%s: no such file", path)
	}
	node, err := c.adapter().Parse(data, path)
	if err != nil {
		return nil, nil, err
	}
	c.log.Debug("parsed document",
		zap.String("path", path),
		zap.Int64("size", meta.Size),
		zap.String("root", string(node.Kind())),
	)
	return node, data, nil
}

type palette struct {
	key     func(string, ...any) string
	kind    func(string, ...any) string
	value   func(string, ...any) string
	comment func(string, ...any) string
	source  func(string, ...any) string
}

func newPalette(enabled bool) palette {
	paint := func(attrs ...color.Attribute) func(string, ...any) string {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c.SprintfFunc()
	}
	return palette{
		key:     paint(color.FgCyan, color.Bold),
		kind:    paint(color.FgMagenta),
		value:   paint(color.FgGreen),
		comment: paint(color.FgBlue),
		source:  paint(color.Faint),
	}
}

type treePrinter struct {
	w       io.Writer
	colors  palette
	sources bool
	err     error
}

func (p *treePrinter) line(depth int, format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, "%s%s\n", strings.Repeat("  ", depth), fmt.Sprintf(format, args...))
}

func (p *treePrinter) print(label string, n raw.Node, depth int) {
	meta := raw.MetaOf(n)
	for _, c := range meta.BlockComment {
		p.line(depth, "%s", p.colors.comment("# %s", c))
	}

	head := ""
	if label != "" {
		head = p.colors.key("%s", label) + ": "
	}
	head += p.colors.kind("%s", n.Kind())
	switch node := n.(type) {
	case *raw.Scalar:
		head += " " + p.colors.value("%s", scalarText(node))
		if node.Style() != raw.StylePlain {
			head += " (" + node.Style().String() + ")"
		}
	case *raw.Object:
		head += fmt.Sprintf(" {%d}", node.Len())
	case *raw.List:
		head += fmt.Sprintf(" [%d]", node.Len())
	}
	if len(meta.InlineComment) > 0 {
		head += " " + p.colors.comment("# %s", strings.Join(meta.InlineComment, " "))
	}
	if p.sources && meta.Source != nil {
		head += " " + p.colors.source("@ %s", meta.Source)
	}
	p.line(depth, "%s", head)

	switch node := n.(type) {
	case *raw.Object:
		for _, pair := range node.Entries() {
			p.print(pair.Name(), pair.Value(), depth+1)
		}
	case *raw.List:
		for i, item := range node.Items() {
			p.print(fmt.Sprintf("[%d]", i), item, depth+1)
		}
	}

	for _, c := range meta.EndComment {
		p.line(depth, "%s", p.colors.comment("# %s", c))
	}
}

func scalarText(s *raw.Scalar) string {
	if s.IsNull() {
		return "null"
	}
	if _, ok := s.Value().(string); ok {
		return fmt.Sprintf("%q", s.Value())
	}
	return s.String()
}
