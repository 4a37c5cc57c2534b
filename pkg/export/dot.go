// Package export renders a view graph to shareable formats: Graphviz DOT
// text and SVG. Containers become DOT clusters, so the exported picture
// keeps the nesting the canvas shows.
package export

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"

	"github.com/viewgrid/viewgrid/pkg/graph"
)

// Options configures DOT export.
type Options struct {
	// Detailed includes GUIDs and sort keys in node labels. When false,
	// only the display label is shown.
	Detailed bool

	// IncludeGenerated keeps the CONTAINS edges synthesized by flatten.
	// They render dashed to distinguish them from real relationships.
	IncludeGenerated bool
}

// ToDOT converts a view graph to Graphviz DOT. Containers are emitted as
// clusters with their children inside; collapsed containers still emit
// their subtree, since hiding is presentation, not structure.
func ToDOT(g *graph.ViewGraph, opts Options) string {
	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  compound=true;\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=24, margin=\"0.2,0.1\"];\n")
	buf.WriteString("  ranksep=0.5;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	for _, n := range g.Roots() {
		writeNode(&buf, g, n, 1, opts)
	}

	buf.WriteString("\n")
	for _, e := range g.Edges() {
		if e.Generated && !opts.IncludeGenerated {
			continue
		}
		attrs := edgeAttrs(e)
		if len(attrs) == 0 {
			fmt.Fprintf(&buf, "  %q -> %q;\n", e.FromGUID, e.ToGUID)
			continue
		}
		fmt.Fprintf(&buf, "  %q -> %q [%s];\n", e.FromGUID, e.ToGUID, strings.Join(attrs, ", "))
	}

	buf.WriteString("}\n")
	return buf.String()
}

func writeNode(buf *bytes.Buffer, g *graph.ViewGraph, n *graph.Node, depth int, opts Options) {
	indent := strings.Repeat("  ", depth)
	children := g.Children(n.GUID)

	if n.IsContainer() && len(children) > 0 {
		fmt.Fprintf(buf, "%ssubgraph \"cluster_%s\" {\n", indent, n.GUID)
		fmt.Fprintf(buf, "%s  label=%q;\n", indent, fmtLabel(n, opts.Detailed))
		fmt.Fprintf(buf, "%s  style=\"rounded\";\n", indent)
		for _, c := range children {
			writeNode(buf, g, c, depth+1, opts)
		}
		fmt.Fprintf(buf, "%s}\n", indent)
		return
	}

	attrs := []string{fmt.Sprintf("label=%q", fmtLabel(n, opts.Detailed))}
	if n.IsFlattened() {
		attrs = append(attrs, "style=\"rounded,filled,dashed\"", "fillcolor=lightgrey")
	}
	fmt.Fprintf(buf, "%s%q [%s];\n", indent, n.GUID, strings.Join(attrs, ", "))
}

func fmtLabel(n *graph.Node, detailed bool) string {
	label := n.DisplayLabel()
	if !detailed {
		return label
	}
	parts := []string{fmt.Sprintf("guid: %s", n.GUID)}
	if n.SortKey != 0 {
		parts = append(parts, fmt.Sprintf("sort: %g", n.SortKey))
	}
	return label + "\n" + strings.Join(parts, "\n")
}

func edgeAttrs(e graph.Edge) []string {
	var attrs []string
	if e.Label != "" {
		attrs = append(attrs, fmt.Sprintf("label=%q", e.Label))
	}
	if e.Generated {
		attrs = append(attrs, "style=dashed", "color=grey")
	}
	return attrs
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(dot string) ([]byte, error) {
	ctx := context.Background()
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	newSvg := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)

	return svgTagRe.ReplaceAll(svg, []byte(newSvg))
}
