// Package versiongraph draws the revision chain of a page: which versions are
// stored complete and which ones are rebuilt from the next version through a
// delta. The diagram is written in D2 and can be rendered to SVG.
package versiongraph

import (
	"context"
	"fmt"
	"strings"

	"github.com/hesusruiz/wikicore/versioning"
	"oss.terrastruct.com/d2/d2graph"
	"oss.terrastruct.com/d2/d2layouts/d2dagrelayout"
	"oss.terrastruct.com/d2/d2lib"
	"oss.terrastruct.com/d2/d2renderers/d2svg"
	"oss.terrastruct.com/d2/d2themes/d2themescatalog"
	"oss.terrastruct.com/d2/lib/textmeasure"
)

const (
	completeFill = "#d7ecd9"
	revdiffFill  = "#f6f6f6"
)

func nodeKey(e versioning.Entry) string {
	return fmt.Sprintf("v%d", e.VersionNumber)
}

// quote returns s as a double quoted D2 string
func quote(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`, "\r", "")
	return `"` + r.Replace(s) + `"`
}

// Source returns the D2 description of the revision chain of page. There is
// one shape per entry and one edge from every version that a revdiff entry
// is rebuilt from.
func Source(page string, entries []versioning.Entry) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "direction: right\n")
	fmt.Fprintf(&sb, "title: %s {\n  shape: text\n  near: top-center\n}\n", quote(page))

	for _, e := range entries {
		label := fmt.Sprintf("%d\n%s", e.VersionNumber, e.FormattedCreationTime())
		if e.Description != "" {
			label += "\n" + e.Description
		}
		fill := completeFill
		if e.Differencing == versioning.RevDiff {
			fill = revdiffFill
		}
		fmt.Fprintf(&sb, "%s: %s {\n", nodeKey(e), quote(label))
		fmt.Fprintf(&sb, "  style.fill: %q\n", fill)
		if e.Differencing == versioning.RevDiff {
			fmt.Fprintf(&sb, "  style.stroke-dash: 3\n")
		}
		if e.Encoding != versioning.EncodingNone {
			fmt.Fprintf(&sb, "  tooltip: %s\n", quote(string(e.Encoding)))
		}
		fmt.Fprintf(&sb, "}\n")
	}

	for i, e := range entries {
		if e.Differencing != versioning.RevDiff || i+1 >= len(entries) {
			continue
		}
		fmt.Fprintf(&sb, "%s -> %s: delta\n", nodeKey(entries[i+1]), nodeKey(e))
	}

	return sb.String()
}

// SVG lays out the D2 source and renders it as SVG.
func SVG(ctx context.Context, source string) ([]byte, error) {
	ruler, err := textmeasure.NewRuler()
	if err != nil {
		return nil, fmt.Errorf("creating text ruler: %w", err)
	}

	defaultLayout := func(ctx context.Context, g *d2graph.Graph) error {
		return d2dagrelayout.Layout(ctx, g, nil)
	}
	diagram, _, err := d2lib.Compile(ctx, source, &d2lib.CompileOptions{
		Layout: defaultLayout,
		Ruler:  ruler,
	})
	if err != nil {
		return nil, fmt.Errorf("compiling diagram: %w", err)
	}

	body, err := d2svg.Render(diagram, &d2svg.RenderOpts{
		Pad:     d2svg.DEFAULT_PADDING,
		ThemeID: d2themescatalog.NeutralDefault.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("rendering diagram: %w", err)
	}
	return body, nil
}

// Render returns the revision chain of the overview as SVG.
func Render(ctx context.Context, o *versioning.Overview) ([]byte, error) {
	return SVG(ctx, Source(o.Page(), o.Entries()))
}
