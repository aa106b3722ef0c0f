package posts

import (
	"fmt"
	"io"
	"strings"

	"github.com/buger/goterm"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/sidkik/blogctl/pkg/errors"
)

// Renderer prints a Diff for the operator.
type Renderer struct {
	Out   io.Writer
	Color bool
}

// Render writes a summary of `diff`, followed by a line diff of every changed
// post. Lines prefixed with `-` are on the host, and lines prefixed with `+`
// are local.
func (r Renderer) Render(diff Diff) error {
	for _, p := range diff.Added {
		fmt.Fprintln(r.Out, r.color(fmt.Sprintf("+ %s (%s): only local", p.Slug, p.Title), goterm.GREEN))
	}
	for _, p := range diff.Removed {
		fmt.Fprintln(r.Out, r.color(fmt.Sprintf("- %s (%s): only on the host", p.Slug, p.Title), goterm.RED))
	}

	for _, change := range diff.Changed {
		fmt.Fprintln(r.Out, r.color(fmt.Sprintf("~ %s (%s): changed", change.Local.Slug,
			change.Local.Title), goterm.YELLOW))

		remote, err := change.Remote.Indented()
		if err != nil {
			return errors.WithContext(err, "format remote post")
		}
		local, err := change.Local.Indented()
		if err != nil {
			return errors.WithContext(err, "format local post")
		}

		for _, line := range LineDiff(remote, local) {
			switch line.Type {
			case diffmatchpatch.DiffInsert:
				fmt.Fprintln(r.Out, r.color("    + "+line.Text, goterm.GREEN))
			case diffmatchpatch.DiffDelete:
				fmt.Fprintln(r.Out, r.color("    - "+line.Text, goterm.RED))
			}
		}
	}
	return nil
}

func (r Renderer) color(s string, color int) string {
	if !r.Color {
		return s
	}
	return goterm.Color(s, color)
}

// Line is a single line of a line diff.
type Line struct {
	Type diffmatchpatch.Operation
	Text string
}

// LineDiff returns the line-by-line differences between `from` and `to`.
func LineDiff(from, to string) []Line {
	dmp := diffmatchpatch.New()
	fromChars, toChars, lineArray := dmp.DiffLinesToChars(from, to)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(fromChars, toChars, false), lineArray)

	var lines []Line
	for _, d := range diffs {
		for _, text := range strings.SplitAfter(d.Text, "\n") {
			if text == "" {
				continue
			}
			lines = append(lines, Line{Type: d.Type, Text: strings.TrimSuffix(text, "\n")})
		}
	}
	return lines
}
