package tools

// dot -Tpng g.dot > g.png

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/yeuai/botscript/core"

	"gopkg.in/yaml.v2"
)

// Dot makes a Graphviz dot file for the given script.
//
// The optional highlight is the name of a node (usually the current
// dialogue), which will be red.
func Dot(c *core.Context, w io.WriteCloser, highlight string) error {
	g := NewGraph(c)

	fmt.Fprintf(w, "digraph G {\n")
	fmt.Fprintf(w, `  graph [ordering=out,rankdir=TB,nodesep=0.3,ranksep=0.6]
  node [shape="record" style="rounded,filled"]
  edge [fontsize = "12"]
`)

	ids := make(map[string]string, len(g.Nodes))
	for i, n := range g.Nodes {
		id := fmt.Sprintf("n%d", i+1)
		ids[NodeID(n)] = id

		label := escape(n.Name)
		var triggers []string
		for _, t := range n.Triggers {
			if t != n.Name {
				triggers = append(triggers, escape(t))
			}
		}
		if 0 < len(triggers) {
			label += `<BR/><FONT POINT-SIZE="8">` +
				strings.Join(triggers, `<BR ALIGN="LEFT"/>`) +
				`</FONT>`
		}

		color := "black"
		fillcolor := fillColor(n)
		shape := "record"
		style := "filled"
		switch n.Kind {
		case core.KindCommand:
			shape = "note"
		case core.KindQuestion:
			shape = "diamond"
		}
		if n.Missing {
			style += ",dashed"
		}
		if n.Name == highlight {
			color = "red"
			fillcolor = "#f98b8b"
		}
		fmt.Fprintf(w, "  %s [shape=\"%s\", style=\"%s\", color=\"%s\", fillcolor=\"%s\", label=<%s> ]\n",
			id, shape, style, color, fillcolor, label)
	}

	for _, e := range g.Edges {
		label := `<FONT COLOR="` + edgeColor(e.Kind) + `">` + string(e.Kind) + `</FONT>`
		if e.Expr != "" {
			// YAML keeps quoting readable.
			bs, err := yaml.Marshal(e.Expr)
			if err != nil {
				bs = []byte(err.Error())
			}
			label += `<FONT POINT-SIZE="8"><BR ALIGN="LEFT"/>` +
				escape(strings.TrimSpace(string(bs))) +
				`</FONT>`
		}
		style := "solid"
		if e.Kind == EdgeCommand || e.Kind == EdgePrompt {
			style = "dashed"
		}
		fmt.Fprintf(w, "  %s -> %s [ style=\"%s\" label = <%s> ]\n",
			ids[e.From], ids[e.To], style, label)
	}

	fmt.Fprintf(w, "}\n")

	return w.Close()
}

func edgeColor(kind EdgeKind) string {
	switch kind {
	case EdgeForward:
		return "#d1495b"
	case EdgeFlow, EdgeConditionalFlow:
		return "#52aa5e"
	case EdgeCommand:
		return "#2d93ad"
	}
	return "orange"
}

// PNG runs dot to make a PNG of the script's graph.
//
// Requires Graphviz's dot on the PATH.
func PNG(c *core.Context, basename string) (string, error) {
	dotFilename := basename + ".dot"
	out, err := os.Create(dotFilename)
	if err != nil {
		return "", err
	}
	if err := Dot(c, out, ""); err != nil {
		return "", err
	}

	pngFilename := basename + ".png"
	cmd := exec.Command("dot", "-Tpng", dotFilename, "-o", pngFilename)
	if bs, err := cmd.CombinedOutput(); err != nil {
		return "", fmt.Errorf("dot: %s: %w", strings.TrimSpace(string(bs)), err)
	}
	return pngFilename, nil
}
