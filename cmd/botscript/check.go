package main

import (
	"fmt"

	"github.com/yeuai/botscript/tools"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Parse the scripts and report likely mistakes",
	Long: `Reports counts, triggers that don't compile, missing flows,
dialogues, commands, and questions, orphan flows, silent dialogues,
undefined definitions, and plugins without an implementation.

Exits with an error if there are errors or missing targets.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sys, err := newSystem(cmd.Context(), cmd, nil)
		if err != nil {
			return err
		}
		defer sys.Close()

		a, err := tools.Analyze(sys.Bot.Bot().Context)
		if err != nil {
			return err
		}
		bs, err := yaml.Marshal(a)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s", bs)

		if !a.OK() {
			fmt.Fprintln(out, color.RedString("problems found"))
			return fmt.Errorf("check failed")
		}
		fmt.Fprintln(out, color.GreenString("ok"))
		return nil
	},
}
