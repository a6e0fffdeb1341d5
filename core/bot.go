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

package core

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/yeuai/botscript/match"

	"go.uber.org/zap"
)

// Bot is a dialogue engine: a Context plus the collaborators that
// handling a Request needs.
//
// Parse and Init should be called before any Requests are handled.
// After that, Handle can be called concurrently.
type Bot struct {
	Context *Context

	// Evaluator tests conditions.  When nil, DefaultEvaluator is
	// used.
	Evaluator Evaluator

	// Interpreters run "plugin:" directives.  When nil,
	// DefaultInterpreters are used.
	Interpreters InterpretersMap

	// Invoker calls commands.  Without one, command actions fail.
	Invoker Invoker

	// Formatter renders "/format:" interpolations.  Optional.
	Formatter Formatter

	// Loader fetches "/include" scripts.  Optional.
	Loader Loader

	Events  *Emitter
	Control *Control
	Logger  *zap.Logger

	last atomic.Pointer[Request]
}

// NewBot makes a Bot with an empty Context.
//
// The "intent:" pattern capability is registered.
func NewBot() *Bot {
	b := &Bot{
		Context: NewContext(),
		Events:  NewEmitter(nil),
		Control: DefaultControl,
		Logger:  zap.NewNop(),
	}
	b.Context.AddCapability(IntentCapability())
	return b
}

// SetLogger gives the logger to the Bot and its parts.
func (b *Bot) SetLogger(logger *zap.Logger) {
	b.Logger = logger
	b.Context.Logger = logger
	b.Events.Logger = logger
}

// Bot makes a Bot a Botter.
func (b *Bot) Bot() *Bot {
	return b
}

func (b *Bot) evaluator() Evaluator {
	if b.Evaluator == nil {
		return DefaultEvaluator
	}
	return b.Evaluator
}

func (b *Bot) machine() *Machine {
	return &Machine{
		Context:   b.Context,
		Evaluator: b.evaluator(),
		Logger:    b.Logger,
	}
}

func (b *Bot) control() *Control {
	if b.Control == nil {
		return DefaultControl
	}
	return b.Control
}

// Parse adds the script's Structs to the Context.
//
// When any block fails to parse, nothing is added.
func (b *Bot) Parse(src string) error {
	ss, err := Parse(src)
	if err != nil {
		return err
	}
	b.Context.Add(ss...)
	return nil
}

// Init resolves includes, binds plugins, and builds the ranked
// triggers.
//
// An include that can't be loaded or parsed is logged and skipped.
func (b *Bot) Init(ctx context.Context) error {
	loaded := make(map[string]bool)
	var todo []string
	if d, have := b.Context.Directives.Get("include"); have {
		todo = includes(d)
	}
	for 0 < len(todo) {
		loc := todo[0]
		todo = todo[1:]
		if loaded[loc] {
			continue
		}
		loaded[loc] = true
		todo = append(todo, b.include(ctx, loc)...)
	}

	b.bind(ctx)

	ts := b.Context.Triggers()
	b.Logger.Info("initialized",
		zap.Int("dialogues", b.Context.Dialogues.Len()),
		zap.Int("flows", b.Context.Flows.Len()),
		zap.Int("triggers", len(ts)))
	return nil
}

// includes are the locations given by an "include" directive, either
// inline or as "- location" body lines.
func includes(d *Struct) []string {
	var acc []string
	if len(d.Body) == 0 {
		if s := strings.TrimSpace(d.String()); s != "" {
			acc = append(acc, s)
		}
		return acc
	}
	for _, line := range d.Body {
		line = strings.TrimSpace(strings.TrimPrefix(line, "-"))
		if line != "" {
			acc = append(acc, line)
		}
	}
	return acc
}

// include loads, parses, and adds the script at loc.  It returns the
// locations that script includes in turn.
func (b *Bot) include(ctx context.Context, loc string) []string {
	if b.Loader == nil {
		b.Logger.Warn("no loader for include", zap.String("include", loc))
		return nil
	}
	src, err := b.Loader.Load(ctx, loc)
	if err != nil {
		b.Logger.Warn("include failed", zap.String("include", loc), zap.Error(err))
		return nil
	}
	ss, err := Parse(src)
	if err != nil {
		b.Logger.Warn("include didn't parse", zap.String("include", loc), zap.Error(err))
		return nil
	}
	b.Logger.Info("included", zap.String("include", loc), zap.Int("structs", len(ss)))
	b.Context.Add(ss...)

	var nested []string
	for _, s := range ss {
		if s.Kind == KindDirective && s.Name == "include" {
			nested = append(nested, includes(s)...)
		}
	}
	return nested
}

// Handle processes one turn.
//
// Plugins run first, then the Request is resolved, its dialogue's
// conditions are evaluated, and the reply is populated.  Then
// post-processors run, the reply is remembered, and EventReply is
// emitted.
//
// Collaborator failures are logged rather than returned.
func (b *Bot) Handle(ctx context.Context, req *Request) *Request {
	if req == nil {
		req = NewRequest("")
	}
	req.ensure()
	ctl := b.control()

	posts := b.plugins(ctx, req)

	b.machine().Resolve(ctx, req, ctl)
	if !req.IsNotResponse {
		b.conditions(ctx, req, ctl, 0)
	}

	b.populate(ctx, req)

	for _, post := range posts {
		post(ctx, req)
	}

	req.Remember(req.SpeechResponse)
	b.last.Store(req)
	b.Emit(EventReply, req)

	return req
}

// HandleAsync runs Handle in a goroutine.
func (b *Bot) HandleAsync(ctx context.Context, req *Request) <-chan *Request {
	c := make(chan *Request, 1)
	go func() {
		c <- b.Handle(ctx, req)
		close(c)
	}()
	return c
}

// NewRequest makes the Request for a message, continuing from the
// last Request handled.
func (b *Bot) NewRequest(message string) *Request {
	if last := b.LastRequest(); last != nil {
		return last.Enter(message)
	}
	return NewRequest(message)
}

// LastRequest is the last Request handled, if any.
func (b *Bot) LastRequest() *Request {
	return b.last.Load()
}

// RegisterPatternCapability adds a custom trigger syntax.
//
// Triggers that match the activation expression are compiled by the
// given function.
func (b *Bot) RegisterPatternCapability(name, activation string, compile match.CompileFunc) error {
	c, err := match.NewCapability(name, activation, compile)
	if err != nil {
		return err
	}
	b.Context.AddCapability(c)
	return nil
}

// Plugin registers a function for a plugin name.
func (b *Bot) Plugin(name string, f PluginFunc) {
	b.Context.Register(name, f)
	if s, have := b.Context.Plugins.Get(name); have {
		s.Value = f
	}
}

// On adds a listener for the event.
func (b *Bot) On(event string, f Listener) int {
	return b.Events.On(event, f)
}

// Once adds a listener that hears the event only once.
func (b *Bot) Once(event string, f Listener) int {
	return b.Events.Once(event, f)
}

// Off removes a listener.
func (b *Bot) Off(event string, id int) bool {
	return b.Events.Off(event, id)
}

// Emit sends an event to its listeners.
func (b *Bot) Emit(event string, args ...interface{}) {
	b.Events.Emit(event, args...)
}
