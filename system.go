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

package botscript

import (
	"context"
	"fmt"
	"strings"

	"github.com/yeuai/botscript/commands"
	"github.com/yeuai/botscript/core"
	"github.com/yeuai/botscript/includes"
	"github.com/yeuai/botscript/interpreters"
	"github.com/yeuai/botscript/interpreters/ecmascript"
	"github.com/yeuai/botscript/interpreters/noop"
	"github.com/yeuai/botscript/templates"

	"go.uber.org/zap"
)

// System is a bot, which can be reloaded, with its collaborators.
type System struct {
	Conf   *Conf
	Logger *zap.Logger

	// Bot is what couplings should talk to.
	Bot *core.UpdatableBot

	// Loader loads scripts and includes.
	Loader core.Loader

	// Cache is the include cache, if configured.
	Cache *includes.Cache

	invoker   *commands.Invoker
	formatter *templates.Formatter
	listeners []listener
}

type listener struct {
	event string
	f     core.Listener
}

// New makes a System and builds its first bot.
//
// Call Close when done.
func New(ctx context.Context, conf *Conf, logger *zap.Logger) (*System, error) {
	if conf == nil {
		conf = DefaultConf()
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &System{
		Conf:      conf,
		Logger:    logger,
		formatter: templates.NewFormatter(),
	}
	s.formatter.Logger = logger.Named("templates")

	invoker, err := commands.NewInvoker()
	if err != nil {
		return nil, err
	}
	invoker.BaseURL = conf.Commands.BaseURL
	invoker.Headers = conf.Commands.Headers
	if 0 < conf.Commands.Timeout {
		invoker.Timeout = conf.Commands.Timeout
	}
	invoker.Logger = logger.Named("commands")
	s.invoker = invoker

	s.Loader = includes.Standard(conf.Includes.Dir)
	if conf.Includes.Cache != "" {
		s.Cache = includes.NewCache(conf.Includes.Cache, s.Loader)
		s.Cache.Logger = logger.Named("includes")
		if err := s.Cache.Open(); err != nil {
			return nil, fmt.Errorf("include cache %s: %w", conf.Includes.Cache, err)
		}
		s.Loader = s.Cache
	}

	b, err := s.Build(ctx)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Bot = core.NewUpdatableBot(b)

	return s, nil
}

// Source loads and concatenates the Conf's scripts.
func (s *System) Source(ctx context.Context) (string, error) {
	var acc strings.Builder
	for _, loc := range s.Conf.Scripts {
		src, err := s.Loader.Load(ctx, loc)
		if err != nil {
			return "", fmt.Errorf("script %s: %w", loc, err)
		}
		acc.WriteString(src)
		// A blank line ends the last block of each script.
		acc.WriteString("\n\n")
	}
	return acc.String(), nil
}

// Build makes a new, initialized Bot from the Conf's scripts.
func (s *System) Build(ctx context.Context) (*core.Bot, error) {
	src, err := s.Source(ctx)
	if err != nil {
		return nil, err
	}
	return s.BuildFrom(ctx, src)
}

// BuildFrom makes a new, initialized Bot from the given source.
func (s *System) BuildFrom(ctx context.Context, src string) (*core.Bot, error) {
	b := core.NewBot()
	b.SetLogger(s.Logger.Named("bot"))
	b.Evaluator = &ecmascript.Evaluator{
		Timeout: s.Conf.Sandbox.Timeout,
	}
	b.Interpreters = s.interpreters()
	b.Invoker = s.invoker
	b.Formatter = s.formatter
	b.Loader = s.Loader
	if 0 < s.Conf.Limit {
		b.Control = &core.Control{
			Limit: s.Conf.Limit,
		}
	}

	for _, l := range s.listeners {
		b.On(l.event, l.f)
	}

	if err := b.Parse(src); err != nil {
		return nil, err
	}
	if err := b.Init(ctx); err != nil {
		return nil, err
	}

	s.Logger.Info("bot built",
		zap.Int("dialogues", b.Context.Dialogues.Len()),
		zap.Int("flows", b.Context.Flows.Len()),
		zap.Int("commands", b.Context.Commands.Len()),
		zap.Int("plugins", b.Context.Plugins.Len()))

	return b, nil
}

func (s *System) interpreters() core.InterpretersMap {
	is := interpreters.Standard()
	for lang, i := range is {
		if s.Conf.Sandbox.Disabled {
			n := noop.NewInterpreter()
			n.Logger = s.Logger.Named("noop")
			is[lang] = n
			continue
		}
		if es, ok := i.(*ecmascript.Interpreter); ok && 0 < s.Conf.Sandbox.Timeout {
			es.Timeout = s.Conf.Sandbox.Timeout
		}
	}
	return is
}

// On adds a listener to the current bot and to every bot built
// later.
func (s *System) On(event string, f core.Listener) {
	s.listeners = append(s.listeners, listener{event, f})
	if s.Bot != nil {
		s.Bot.Bot().On(event, f)
	}
}

// Reload builds a new bot and swaps it in.  On failure, the current
// bot stays.
func (s *System) Reload(ctx context.Context) error {
	b, err := s.Build(ctx)
	if err != nil {
		s.Logger.Warn("reload failed", zap.Error(err))
		return err
	}
	s.Bot.SetBot(b)
	s.Logger.Info("reloaded")
	return nil
}

// Close releases the include cache.
func (s *System) Close() error {
	if s.Cache != nil {
		return s.Cache.Close()
	}
	return nil
}
