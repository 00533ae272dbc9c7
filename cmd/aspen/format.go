package main

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newFormatCommand(app *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fmt FILE",
		Short: "Re-serialize a document through the raw tree",
		Long: `Re-serialize a YAML document through the raw tree. Comments, key order
and scalar quoting survive; indentation is normalized.

Without flags the formatted document is printed. --diff prints a line diff
against the file instead, and --write replaces the file when it changed.

Examples:
  aspen fmt config/app.yml
  aspen fmt config/app.yml --diff
  aspen fmt config/app.yml --write --indent 4`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			node, original, err := app.parse(cmd, path)
			if err != nil {
				return err
			}
			formatted, err := app.adapter().Serialize(node)
			if err != nil {
				return err
			}

			write, _ := cmd.Flags().GetBool("write")
			showDiff, _ := cmd.Flags().GetBool("diff")
			changed := !bytes.Equal(original, formatted)

			if showDiff {
				if err := writeDiff(cmd.OutOrStdout(), path, string(original), string(formatted), app.colorEnabled(cmd)); err != nil {
					return err
				}
			}
			if write {
				if !changed {
					app.log.Debug("document already formatted", zap.String("path", path))
					return nil
				}
				meta, err := app.store.Save(cmd.Context(), path, formatted)
				if err != nil {
					return err
				}
				app.log.Info("formatted document", zap.String("path", path), zap.Int64("size", meta.Size))
				return nil
			}
			if !showDiff {
				_, err = cmd.OutOrStdout().Write(formatted)
			}
			return err
		},
	}
	cmd.Flags().BoolP("write", "w", false, "write the result back to FILE")
	cmd.Flags().BoolP("diff", "d", false, "print a diff instead of the formatted document")
	return cmd
}

// writeDiff prints a line-oriented diff of before and after. Nothing is
// written when they are equal.
func writeDiff(w io.Writer, path, before, after string, colored bool) error {
	if before == after {
		return nil
	}
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	added := color.New(color.FgGreen)
	removed := color.New(color.FgRed)
	if colored {
		added.EnableColor()
		removed.EnableColor()
	} else {
		added.DisableColor()
		removed.DisableColor()
	}

	var out strings.Builder
	fmt.Fprintf(&out, "--- %s\n+++ %s (formatted)\n", path, path)
	for _, d := range diffs {
		for _, line := range splitLines(d.Text) {
			switch d.Type {
			case diffmatchpatch.DiffInsert:
				out.WriteString(added.Sprintf("+%s", line) + "\n")
			case diffmatchpatch.DiffDelete:
				out.WriteString(removed.Sprintf("-%s", line) + "\n")
			default:
				out.WriteString(" " + line + "\n")
			}
		}
	}
	_, err := io.WriteString(w, out.String())
	return err
}

func splitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}
