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

	"github.com/dlclark/regexp2"
	"go.uber.org/zap"
)

// Action is the kind of thing a condition does when its expression
// holds.
type Action string

const (
	ActionReply   Action = "-"
	ActionForward Action = ">"
	ActionCommand Action = "@"
	ActionPrompt  Action = "?"
	ActionEvent   Action = "+"
	ActionFlow    Action = "~"
)

// Condition is a parsed "expr TOKEN> value" line.
type Condition struct {
	Expr   string `json:"expr"`
	Action Action `json:"action"`
	Value  string `json:"value"`
}

var (
	conditionSyntax = regexp2.MustCompile(`^(.+?)\s*([-~>@?+=])>\s*(.+)$`, regexp2.None)
	genericValue    = regexp2.MustCompile(`^([-~>@?+])\s+(.+)$`, regexp2.None)
)

// ParseCondition parses a condition line (without its '*').
//
// A line without an action token is an activation condition, and
// ParseCondition returns false.
//
// The generic token "=>" takes its action from the first token of
// the value ("=> > greeting" forwards).  Without one, the value is a
// reply.
func ParseCondition(line string) (*Condition, bool) {
	m, err := conditionSyntax.FindStringMatch(strings.TrimSpace(line))
	if err != nil || m == nil {
		return nil, false
	}
	c := &Condition{
		Expr:   strings.TrimSpace(m.GroupByNumber(1).String()),
		Action: Action(m.GroupByNumber(2).String()),
		Value:  strings.TrimSpace(m.GroupByNumber(3).String()),
	}
	if c.Action == "=" {
		c.Action = ActionReply
		if g, err := genericValue.FindStringMatch(c.Value); err == nil && g != nil {
			c.Action = Action(g.GroupByNumber(1).String())
			c.Value = strings.TrimSpace(g.GroupByNumber(2).String())
		}
	}
	return c, true
}

// conditionLines gathers the conditions of the current dialogue and,
// if it's different, the original dialogue.
func (b *Bot) conditionLines(req *Request) []string {
	var acc []string
	seen := ""
	for _, name := range []string{req.CurrentDialogue, req.OriginalDialogue} {
		if name == "" || name == seen {
			continue
		}
		seen = name
		if s, have := b.Context.Dialogue(name); have {
			acc = append(acc, s.Conditions...)
		}
	}
	return acc
}

// conditions runs the action conditions that hold, in order.
//
// A forward resolves the target dialogue and runs its conditions
// instead of the remaining ones.  Re-entries are bounded by the
// Control's Limit.
func (b *Bot) conditions(ctx context.Context, req *Request, ctl *Control, depth int) {
	for _, line := range b.conditionLines(req) {
		c, isAction := ParseCondition(line)
		if !isAction {
			continue
		}

		ok, err := b.evaluator().Test(ctx, c.Expr, req.Scope())
		if err != nil {
			b.Logger.Warn("condition failed", zap.String("condition", line), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		b.Logger.Debug("condition", zap.String("action", string(c.Action)), zap.String("value", c.Value))

		switch c.Action {
		case ActionReply:
			req.SpeechResponse = c.Value

		case ActionForward:
			if ctl.Limit <= depth {
				b.Logger.Warn("forward limit reached", zap.String("dialogue", c.Value), zap.Int("limit", ctl.Limit))
				return
			}
			req.IsForward = true
			req.IsFlowing = false
			req.CurrentDialogue = c.Value
			b.machine().Resolve(ctx, req, ctl)
			if !req.IsNotResponse {
				b.conditions(ctx, req, ctl, depth+1)
			}
			return

		case ActionFlow:
			if req.isResolved(c.Value) || req.isMissing(c.Value) {
				continue
			}
			if ctl.Limit <= depth {
				b.Logger.Warn("flow limit reached", zap.String("flow", c.Value), zap.Int("limit", ctl.Limit))
				return
			}
			depth++
			req.MissingFlows = append(req.MissingFlows, c.Value)
			if !contains(req.Flows, c.Value) {
				req.Flows = append(req.Flows, c.Value)
			}
			req.IsFlowing = true
			req.SpeechResponse = ""
			req.Prompt = nil
			b.machine().Walk(ctx, req, StateFlow, ctl)

		case ActionPrompt:
			b.prompt(req, c.Value)

		case ActionCommand:
			b.command(ctx, req, c.Value)

		case ActionEvent:
			b.Emit(c.Value, req)

		default:
			b.Logger.Warn("unknown action", zap.String("condition", line))
		}
	}
}

// prompt offers a definition's options, or else a question's.
func (b *Bot) prompt(req *Request, name string) {
	if s, have := b.Context.Definitions.Get(name); have {
		req.Prompt = copyStrings(s.Options)
		return
	}
	if s, have := b.Context.Questions.Get(name); have {
		req.Prompt = copyStrings(s.Options)
		return
	}
	b.Logger.Warn("nothing to prompt", zap.String("name", name))
}

// command invokes a command and merges its result into the
// variables.
//
// A failure emits EventCommandError with the command name, the error,
// and the Request.
func (b *Bot) command(ctx context.Context, req *Request, name string) {
	var (
		result map[string]interface{}
		err    error
	)
	cmd, have := b.Context.Commands.Get(name)
	switch {
	case !have:
		err = &UnknownCommand{Name: name}
	case b.Invoker == nil:
		err = ErrNoInvoker
	default:
		result, err = b.Invoker.Invoke(ctx, cmd, req)
	}
	if err != nil {
		b.Logger.Warn("command failed", zap.String("command", name), zap.Error(err))
		b.Emit(EventCommandError, name, err, req)
		return
	}
	for k, v := range result {
		req.Variables[k] = v
	}
	req.Variables[name] = result
}
