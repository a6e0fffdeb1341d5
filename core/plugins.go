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
	"fmt"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/yeuai/botscript/match"

	"go.uber.org/zap"
)

// PostProcessor runs after a reply has been populated.
type PostProcessor func(ctx context.Context, req *Request)

// PluginFunc runs before a Request is resolved.
//
// A PluginFunc can return a PostProcessor.
type PluginFunc func(ctx context.Context, req *Request, c *Context) (PostProcessor, error)

// DontUnderstand is what noReplyHandle says when nothing better is
// available.
const DontUnderstand = "Sorry! I don't understand!"

// UnknownIntent is the intent when the NLU service doesn't give one.
const UnknownIntent = "__UNKNOW__"

// DefaultNLU is the command used by the nlu plugin when the script
// doesn't define one.
const DefaultNLU = "@ nlu https://botscript.ai/api/nlu"

// now is a variable for testing.
var now = time.Now

// Builtins are the plugins that need nothing but the Context.
//
// The nlu plugin also needs a command Invoker, so a Bot provides it.
var Builtins = map[string]PluginFunc{
	"addTimeNow":        addTimeNow,
	"normalize":         normalize,
	"noReplyHandle":     noReplyHandle,
	"transformToNumber": transformToNumber,
}

func addTimeNow(ctx context.Context, req *Request, c *Context) (PostProcessor, error) {
	t := now()
	req.ensure()
	req.Variables["time"] = fmt.Sprintf("%d:%d", t.Hour(), t.Minute())
	return nil, nil
}

var trailingPunctuation = regexp2.MustCompile(`[-+?!.,]+$`, regexp2.None)

func normalize(ctx context.Context, req *Request, c *Context) (PostProcessor, error) {
	msg := Clean(req.Message)
	if s, err := trailingPunctuation.Replace(msg, "", -1, -1); err == nil {
		msg = s
	}
	req.Message = msg
	return nil, nil
}

func noReplyHandle(ctx context.Context, req *Request, c *Context) (PostProcessor, error) {
	return func(ctx context.Context, req *Request) {
		if req.SpeechResponse != NoReply {
			return
		}
		if s, have := c.Flows.Get(req.CurrentFlow); have && 0 < len(s.Replies) {
			req.SpeechResponse = Random(s.Replies)
			return
		}
		req.SpeechResponse = DontUnderstand
	}, nil
}

var numberWords = map[string]string{
	"một":  "1",
	"hai":  "2",
	"hay":  "2",
	"ba":   "3",
	"bốn":  "4",
	"năm":  "5",
	"sáu":  "6",
	"bảy":  "7",
	"tám":  "8",
	"chín": "9",
	"mười": "10",
}

func transformToNumber(ctx context.Context, req *Request, c *Context) (PostProcessor, error) {
	words := strings.Fields(req.Message)
	for i, w := range words {
		if n, have := numberWords[strings.ToLower(w)]; have {
			words[i] = n
		}
	}
	req.Message = strings.Join(words, " ")
	return nil, nil
}

// nlu asks the NLU command for the message's intent and entities.
//
// The "nlu" directive names the command.
func (b *Bot) nlu(ctx context.Context, req *Request, c *Context) (PostProcessor, error) {
	name := "nlu"
	if d, have := c.Directive("nlu"); have && d != "" {
		name = d
	}
	cmd, have := c.Commands.Get(name)
	if !have {
		var err error
		if cmd, err = ParseStruct(DefaultNLU); err != nil {
			return nil, err
		}
	}
	if b.Invoker == nil {
		return nil, ErrNoInvoker
	}

	result, err := b.Invoker.Invoke(ctx, cmd, req)
	if err != nil {
		return nil, err
	}

	req.Intent = UnknownIntent
	if s, is := result["intent"].(string); is && s != "" {
		req.Intent = s
	}
	req.Entities = map[string]interface{}{}
	switch vv := result["entities"].(type) {
	case map[string]interface{}:
		req.Entities = vv
	case []interface{}:
		req.Entities["list"] = vv
	}
	b.Logger.Debug("nlu", zap.String("intent", req.Intent))
	return nil, nil
}

// intentMatcher matches a Request's intent.
type intentMatcher struct {
	intent string
}

func (m *intentMatcher) TestRequest(req *Request) bool {
	return req.Intent != "" && strings.EqualFold(req.Intent, m.intent)
}

func (m *intentMatcher) Test(input string) bool {
	return false
}

func (m *intentMatcher) Exec(input string) match.Captures {
	return match.NewCaptures()
}

func (m *intentMatcher) String() string {
	return "intent:" + m.intent
}

// IntentCapability compiles "intent: name" triggers, which match
// Requests with that intent.
func IntentCapability() *match.Capability {
	c, err := match.NewCapability("intent", `^intent:`, func(text string, defs match.Definitions) (match.Matcher, error) {
		return &intentMatcher{
			intent: strings.TrimSpace(strings.TrimPrefix(text, "intent:")),
		}, nil
	})
	if err != nil {
		panic(err)
	}
	return c
}

// plugins runs the plugins whose conditions hold and returns their
// PostProcessors.
func (b *Bot) plugins(ctx context.Context, req *Request) []PostProcessor {
	var posts []PostProcessor
	for _, s := range b.Context.Plugins.All() {
		f, is := s.Value.(PluginFunc)
		if !is {
			continue
		}
		if !b.allHold(ctx, s, req) {
			continue
		}
		post, err := b.runPlugin(ctx, s.Name, f, req)
		if err != nil {
			b.Logger.Warn("plugin failed", zap.String("plugin", s.Name), zap.Error(err))
			continue
		}
		if post != nil {
			posts = append(posts, post)
		}
	}
	return posts
}

func (b *Bot) runPlugin(ctx context.Context, name string, f PluginFunc, req *Request) (post PostProcessor, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("plugin %s panicked: %v", name, r)
		}
	}()
	post, err = f(ctx, req, b.Context)
	if post != nil {
		post = b.safe(name, post)
	}
	return post, err
}

func (b *Bot) safe(name string, post PostProcessor) PostProcessor {
	return func(ctx context.Context, req *Request) {
		defer func() {
			if r := recover(); r != nil {
				b.Logger.Warn("post-processor panicked", zap.String("plugin", name), zap.Any("panic", r))
			}
		}()
		post(ctx, req)
	}
}

// allHold reports whether all of a plugin's conditions hold.
func (b *Bot) allHold(ctx context.Context, s *Struct, req *Request) bool {
	if len(s.Conditions) == 0 {
		return true
	}
	scope := req.Scope()
	for _, expr := range s.Conditions {
		ok, err := b.evaluator().Test(ctx, expr, scope)
		if err != nil {
			b.Logger.Warn("plugin condition failed", zap.String("plugin", s.Name), zap.String("condition", expr), zap.Error(err))
			return false
		}
		if !ok {
			return false
		}
	}
	return true
}

// bind finds the function for each plugin: a registered function, a
// "plugin:name" directive, or a built-in.
func (b *Bot) bind(ctx context.Context) {
	for _, s := range b.Context.Plugins.All() {
		if f := b.find(ctx, s.Name); f != nil {
			s.Value = f
			continue
		}
		s.Value = nil
		b.Logger.Warn("unknown plugin", zap.String("plugin", s.Name))
	}
}

func (b *Bot) find(ctx context.Context, name string) PluginFunc {
	if f, have := b.Context.Registered(name); have {
		return f
	}

	if d, have := b.Context.Directives.Get("plugin:" + squeeze(name)); have {
		f, err := b.compilePlugin(ctx, d)
		if err == nil {
			return f
		}
		b.Logger.Warn("plugin didn't compile", zap.String("plugin", name), zap.Error(err))
	}

	if name == "nlu" {
		return b.nlu
	}
	if f, have := Builtins[name]; have {
		return f
	}
	return nil
}

func (b *Bot) compilePlugin(ctx context.Context, d *Struct) (PluginFunc, error) {
	interpreters := b.Interpreters
	if interpreters == nil {
		interpreters = DefaultInterpreters
	}
	i, have := interpreters.Find(d.Language())
	if !have {
		return nil, fmt.Errorf("no interpreter for '%s'", d.Language())
	}
	code := d.String()
	compiled, err := i.Compile(ctx, code)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, req *Request, c *Context) (PostProcessor, error) {
		return i.Exec(ctx, compiled, b.env(ctx, req))
	}, nil
}

// env is the environment for plugin code.
func (b *Bot) env(ctx context.Context, req *Request) *Env {
	return &Env{
		Request: req,
		Context: b.Context,
		Logger:  b.Logger,
		Utils: map[string]interface{}{
			"random": Random,
			"clean":  Clean,
			"gensym": Gensym,
			"callHttpService": func(name string) (map[string]interface{}, error) {
				cmd, have := b.Context.Commands.Get(name)
				if !have {
					return nil, &UnknownCommand{Name: name}
				}
				if b.Invoker == nil {
					return nil, ErrNoInvoker
				}
				return b.Invoker.Invoke(ctx, cmd, req)
			},
		},
	}
}
