package main

import (
	"fmt"
	"io"
	"os"

	"github.com/yeuai/botscript/tools"

	"github.com/spf13/cobra"
)

var graphOpts struct {
	format    string
	out       string
	highlight string
	direction string
	triggers  bool
}

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Draw the scripts' dialogues and flows",
	Long: `Formats:
  mermaid  Mermaid flowchart
  dot      Graphviz dot
  png      Graphviz dot rendered with "dot -Tpng" (needs --out)`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sys, err := newSystem(cmd.Context(), cmd, nil)
		if err != nil {
			return err
		}
		defer sys.Close()
		c := sys.Bot.Bot().Context

		if graphOpts.format == "png" {
			if graphOpts.out == "" {
				return fmt.Errorf("png needs --out")
			}
			filename, err := tools.PNG(c, graphOpts.out)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), filename)
			return nil
		}

		var w io.WriteCloser = nopCloser{cmd.OutOrStdout()}
		if graphOpts.out != "" {
			f, err := os.Create(graphOpts.out)
			if err != nil {
				return err
			}
			w = f
		}

		switch graphOpts.format {
		case "mermaid":
			return tools.Mermaid(c, w, &tools.MermaidOpts{
				Direction:    graphOpts.direction,
				ShowTriggers: graphOpts.triggers,
				Highlight:    graphOpts.highlight,
			})
		case "dot":
			return tools.Dot(c, w, graphOpts.highlight)
		}
		w.Close()
		return fmt.Errorf("unknown format '%s'", graphOpts.format)
	},
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

func init() {
	f := graphCmd.Flags()
	f.StringVarP(&graphOpts.format, "format", "f", "mermaid", "mermaid, dot, or png")
	f.StringVarP(&graphOpts.out, "out", "o", "", "output file (basename for png)")
	f.StringVar(&graphOpts.highlight, "highlight", "", "dialogue or flow to highlight")
	f.StringVar(&graphOpts.direction, "direction", "TB", "mermaid direction")
	f.BoolVar(&graphOpts.triggers, "triggers", false, "show all triggers in mermaid labels")
}
