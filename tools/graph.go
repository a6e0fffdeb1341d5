package tools

import (
	"strings"

	"github.com/yeuai/botscript/core"
)

// EdgeKind says how one node leads to another.
type EdgeKind string

const (
	// EdgeFlow is a dialogue's (or flow's) "~ name" line.
	EdgeFlow EdgeKind = "flow"

	// EdgeForward is a "expr >> dialogue" condition.
	EdgeForward EdgeKind = "forward"

	// EdgeConditionalFlow is a "expr ~> flow" condition.
	EdgeConditionalFlow EdgeKind = "conditional flow"

	// EdgeCommand is a "expr @> command" condition.
	EdgeCommand EdgeKind = "command"

	// EdgePrompt is a "expr ?> question" condition.
	EdgePrompt EdgeKind = "prompt"
)

// Node is a dialogue, flow, command, or question in a Graph.
type Node struct {
	Name string    `json:"name" yaml:"name"`
	Kind core.Kind `json:"kind" yaml:"kind"`

	// Triggers are the node's patterns, for labels.
	Triggers []string `json:"triggers,omitempty" yaml:"triggers,omitempty"`

	// Missing is true when something points at the node but the
	// script doesn't define it.
	Missing bool `json:"missing,omitempty" yaml:"missing,omitempty"`
}

// Edge is a link between two nodes.
type Edge struct {
	From string   `json:"from" yaml:"from"`
	To   string   `json:"to" yaml:"to"`
	Kind EdgeKind `json:"kind" yaml:"kind"`

	// Expr is the condition's expression, if any.
	Expr string `json:"expr,omitempty" yaml:"expr,omitempty"`
}

// Graph is the dialogue structure of a script.
type Graph struct {
	Nodes []*Node `json:"nodes" yaml:"nodes"`
	Edges []*Edge `json:"edges" yaml:"edges"`

	index map[string]*Node
}

// Node finds a node by name.
func (g *Graph) Node(name string) (*Node, bool) {
	n, have := g.index[name]
	return n, have
}

func nodeKey(kind core.Kind, name string) string {
	switch kind {
	case core.KindDialogue, core.KindFlow:
		// Forwards don't care which.
		return name
	}
	return string(kind) + ":" + name
}

// NodeID is the key of a node in the Graph's index.
func NodeID(n *Node) string {
	return nodeKey(n.Kind, n.Name)
}

func (g *Graph) add(kind core.Kind, name string, triggers []string, missing bool) *Node {
	key := nodeKey(kind, name)
	if n, have := g.index[key]; have {
		return n
	}
	n := &Node{
		Name:     name,
		Kind:     kind,
		Triggers: triggers,
		Missing:  missing,
	}
	g.index[key] = n
	g.Nodes = append(g.Nodes, n)
	return n
}

// NewGraph builds the Graph of the given Context.
//
// Nodes appear in declaration order: dialogues, flows, and then
// whatever the edges point at.  Edges follow the order of the lines that make
// them.
func NewGraph(c *core.Context) *Graph {
	g := &Graph{
		index: make(map[string]*Node),
	}

	sources := append(c.Dialogues.All(), c.Flows.All()...)
	for _, s := range sources {
		g.add(s.Kind, s.Name, s.Triggers, false)
	}

	target := func(kind core.Kind, name string) string {
		var have bool
		switch kind {
		case core.KindFlow:
			_, have = c.Flows.Get(name)
		case core.KindDialogue:
			_, have = c.Dialogue(name)
		case core.KindCommand:
			_, have = c.Commands.Get(name)
		case core.KindQuestion:
			if _, have = c.Questions.Get(name); !have {
				_, have = c.Definitions.Get(name)
			}
		}
		n := g.add(kind, name, nil, !have)
		return NodeID(n)
	}

	for _, s := range sources {
		from := nodeKey(s.Kind, s.Name)
		for _, f := range s.Flows {
			g.Edges = append(g.Edges, &Edge{
				From: from,
				To:   target(core.KindFlow, f),
				Kind: EdgeFlow,
			})
		}
		for _, line := range s.Conditions {
			cond, isAction := core.ParseCondition(line)
			if !isAction {
				continue
			}
			e := &Edge{
				From: from,
				Expr: cond.Expr,
			}
			switch cond.Action {
			case core.ActionForward:
				e.Kind, e.To = EdgeForward, target(core.KindDialogue, cond.Value)
			case core.ActionFlow:
				e.Kind, e.To = EdgeConditionalFlow, target(core.KindFlow, cond.Value)
			case core.ActionCommand:
				e.Kind, e.To = EdgeCommand, target(core.KindCommand, cond.Value)
			case core.ActionPrompt:
				e.Kind, e.To = EdgePrompt, target(core.KindQuestion, cond.Value)
			default:
				continue
			}
			g.Edges = append(g.Edges, e)
		}
	}

	return g
}

// escape makes a string safe for a quoted label.
func escape(s string) string {
	s = strings.Replace(s, `"`, "'", -1)
	s = strings.Replace(s, "<", "&lt;", -1)
	s = strings.Replace(s, ">", "&gt;", -1)
	return s
}
