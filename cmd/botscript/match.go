package main

import (
	"encoding/json"
	"fmt"

	"github.com/yeuai/botscript/core"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var matchCmd = &cobra.Command{
	Use:   "match PATTERN INPUT...",
	Short: "Try a trigger pattern against some inputs",
	Long: `Compiles the pattern the way a dialogue trigger is compiled and
prints the captures for each input that matches.

Definitions from any given scripts are available to the pattern.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := core.NewContext()
		if 0 < len(scripts) || confFile != "" {
			sys, err := newSystem(cmd.Context(), cmd, nil)
			if err != nil {
				return err
			}
			defer sys.Close()
			c = sys.Bot.Bot().Context
		}

		m, err := c.Compile(args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n", m)
		for _, input := range args[1:] {
			if !m.Test(input) {
				fmt.Fprintf(out, "%s %q\n", color.RedString("no "), input)
				continue
			}
			js, err := json.Marshal(m.Exec(input))
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s %q %s\n", color.GreenString("yes"), input, js)
		}
		return nil
	},
}
