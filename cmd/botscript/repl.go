package main

import (
	"github.com/yeuai/botscript/sio"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var replOpts struct {
	shellExpand bool
	echo        bool
	timestamps  bool
	noTags      bool
	noColor     bool
	requests    bool
}

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Chat with the bot on stdin and stdout",
	Long: `Each input line is one message in a single conversation.
Lines starting with '#' are ignored, and "quit" ends the session.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sys, err := newSystem(ctx, cmd, nil)
		if err != nil {
			return err
		}
		defer sys.Close()

		io := sio.NewStdio(replOpts.shellExpand)
		io.EchoInput = replOpts.echo
		io.Timestamps = replOpts.timestamps
		io.Tags = !replOpts.noTags
		io.Color = !replOpts.noColor
		io.PrintRequests = replOpts.requests
		io.Logger = logger.Named("stdio")
		io.Out = cmd.OutOrStdout()
		io.In = cmd.InOrStdin()

		sessions := sio.NewSessions(sys.Conf.SessionTTL)
		chat, err := sio.NewChat(ctx, sys.Bot, sessions, io)
		if err != nil {
			return err
		}
		chat.Logger = logger.Named("chat")

		if err := chat.Loop(ctx); err != nil {
			logger.Warn("chat loop", zap.Error(err))
		}
		return io.Stop(ctx)
	},
}

func init() {
	f := replCmd.Flags()
	f.BoolVar(&replOpts.shellExpand, "sh", false, "shell-expand <<command>> in input")
	f.BoolVar(&replOpts.echo, "echo", false, "echo input")
	f.BoolVar(&replOpts.timestamps, "ts", false, "print timestamps")
	f.BoolVar(&replOpts.noTags, "no-tags", false, "don't tag output lines")
	f.BoolVar(&replOpts.noColor, "no-color", false, "don't color output")
	f.BoolVar(&replOpts.requests, "requests", false, "print each request as JSON")
}
