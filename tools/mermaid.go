package tools

import (
	"fmt"
	"io"

	"github.com/yeuai/botscript/core"
)

// MermaidOpts controls the output of Mermaid.
type MermaidOpts struct {
	// Direction is the graph direction: TB (the default), LR, etc.
	Direction string

	// ShowTriggers adds each dialogue's triggers to its label.
	ShowTriggers bool

	// Highlight is the name of a node (usually the current
	// dialogue) to paint differently.
	Highlight string
}

// Mermaid writes a Mermaid flowchart of the script's dialogues.
//
// See https://mermaidjs.github.io/.
func Mermaid(c *core.Context, w io.WriteCloser, opts *MermaidOpts) error {
	if opts == nil {
		opts = &MermaidOpts{}
	}
	dir := opts.Direction
	if dir == "" {
		dir = "TB"
	}

	g := NewGraph(c)

	fmt.Fprintf(w, "graph %s\n", dir)

	nids := make(map[string]string, len(g.Nodes))
	for i, n := range g.Nodes {
		nid := fmt.Sprintf("n%d", i+1)
		nids[NodeID(n)] = nid

		label := escape(n.Name)
		if opts.ShowTriggers {
			for _, t := range n.Triggers {
				if t != n.Name {
					label += "<br/>" + escape(t)
				}
			}
		}

		var shape string
		switch n.Kind {
		case core.KindFlow:
			shape = `("%s")`
		case core.KindCommand:
			shape = `[/"%s"/]`
		case core.KindQuestion:
			shape = `{"%s"}`
		default:
			shape = `["%s"]`
		}
		fmt.Fprintf(w, "  %s"+shape+"\n", nid, label)

		fill := fillColor(n)
		if n.Name == opts.Highlight {
			fill = "#f98b8b"
		}
		fmt.Fprintf(w, "  style %s fill:%s\n", nid, fill)
	}

	for _, e := range g.Edges {
		arrow := "-->"
		switch e.Kind {
		case EdgeForward:
			arrow = "==>"
		case EdgeCommand, EdgePrompt:
			arrow = "-.->"
		}
		if e.Expr != "" {
			arrow += `|"` + escape(e.Expr) + `"|`
		}
		fmt.Fprintf(w, "  %s %s %s\n", nids[e.From], arrow, nids[e.To])
	}

	return w.Close()
}

func fillColor(n *Node) string {
	if n.Missing {
		return "#bbbbbb"
	}
	switch n.Kind {
	case core.KindFlow:
		return "#52aa5e"
	case core.KindCommand:
		return "#2d93ad"
	case core.KindQuestion:
		return "#f2c14e"
	}
	return "#99ddc8"
}
