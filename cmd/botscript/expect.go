package main

import (
	"errors"
	"fmt"

	"github.com/yeuai/botscript/tools"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var expectCmd = &cobra.Command{
	Use:   "expect SESSION...",
	Short: "Run conversation sessions against the bot",
	Long: `Each SESSION is a YAML file with a list of turns:

  turns:
  - input: hello bot
    reply: Hello human!
  - input: my name is Vu
    pattern: ^Nice to meet you
    variables:
      name: Vu

Every session starts a new conversation with a freshly built bot.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		failed := 0
		for _, filename := range args {
			s, err := tools.ReadSession(filename)
			if err != nil {
				return err
			}
			s.Logger = logger.Named("expect")

			sys, err := newSystem(cmd.Context(), cmd, nil)
			if err != nil {
				return err
			}
			_, err = s.Run(cmd.Context(), sys.Bot)
			sys.Close()

			var f *tools.Failure
			switch {
			case errors.As(err, &f):
				failed++
				fmt.Fprintf(out, "%s %s: %s\n", color.RedString("FAIL"), filename, f)
			case err != nil:
				return err
			default:
				fmt.Fprintf(out, "%s %s (%d turns)\n", color.GreenString("ok  "), filename, len(s.Turns))
			}
		}
		if 0 < failed {
			return fmt.Errorf("%d of %d sessions failed", failed, len(args))
		}
		return nil
	},
}
