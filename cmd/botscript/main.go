/* Copyright 2018-2019 Comcast Cable Communications Management, LLC
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 * http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package main is the botscript command: a REPL, a chat service,
// MQTT couplings, and tools for checking and drawing scripts.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/yeuai/botscript"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	confFile    string
	scripts     []string
	includeDir  string
	includeDB   string
	logLevel    string
	development bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "botscript",
	Short: "Rule-based chat bots from botscript scripts",
	Long: `botscript runs chat bots written in botscript, a line-oriented
language of definitions (!), dialogues (+), flows (~), commands (@),
questions (?), plugins (>), directives (/), and conditions (*).

Scripts come from --script flags or the "scripts" of a --conf file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		conf, err := loadConf(cmd)
		if err != nil {
			return err
		}
		if logger, err = botscript.NewLogger(conf.LogLevel, conf.Development); err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&confFile, "conf", "c", "", "YAML configuration file")
	pf.StringSliceVarP(&scripts, "script", "s", nil, "script location (repeatable)")
	pf.StringVar(&includeDir, "include-dir", "", "directory for relative script and include locations")
	pf.StringVar(&includeDB, "include-cache", "", "bbolt file caching the last good copy of each script")
	pf.StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.BoolVar(&development, "dev", false, "development logging")

	rootCmd.AddCommand(replCmd, serveCmd, mqCmd, checkCmd, matchCmd, graphCmd, expectCmd)
}

// loadConf reads the --conf file, if any, and applies the flags that
// were given.
func loadConf(cmd *cobra.Command) (*botscript.Conf, error) {
	conf := botscript.DefaultConf()
	if confFile != "" {
		var err error
		if conf, err = botscript.LoadConf(confFile); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("script") {
		conf.Scripts = scripts
	}
	if flags.Changed("include-dir") {
		conf.Includes.Dir = includeDir
	}
	if flags.Changed("include-cache") {
		conf.Includes.Cache = includeDB
	}
	if flags.Changed("log-level") {
		conf.LogLevel = logLevel
	}
	if flags.Changed("dev") {
		conf.Development = development
	}

	return conf, conf.Validate()
}

// newSystem builds the bot for a command.  The optional adjust
// applies the command's own flags.
func newSystem(ctx context.Context, cmd *cobra.Command, adjust func(conf *botscript.Conf)) (*botscript.System, error) {
	conf, err := loadConf(cmd)
	if err != nil {
		return nil, err
	}
	if adjust != nil {
		adjust(conf)
		if err := conf.Validate(); err != nil {
			return nil, err
		}
	}
	if len(conf.Scripts) == 0 {
		return nil, fmt.Errorf("no scripts (use --script or --conf)")
	}
	return botscript.New(ctx, conf, logger)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var errNoBroker = fmt.Errorf("no MQTT broker (use --mqtt-broker or the conf's mqtt section)")
