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

	"github.com/yeuai/botscript/match"

	"go.uber.org/zap"
)

// State is a state of the resolution machine.
type State string

const (
	StatePending  State = "pending"
	StateDigest   State = "digest"
	StateDialogue State = "dialogue"
	StateFlow     State = "flow"
	StateNoMatch  State = "nomatch"
	StateOutput   State = "output"
)

// NoReply is the reply for a message that didn't match anything.
const NoReply = "NO REPLY!"

// StopReason is a label for why a walk stopped.
type StopReason int

const (
	// Done means that the walk reached the output state.
	Done StopReason = iota

	// Limited means that re-entries reached Control.Limit.
	Limited

	// BreakpointReached means that a Breakpoint returned true.
	BreakpointReached
)

var stopReasons = []string{"Done", "Limited", "BreakpointReached"}

// String returns a string representation of the StopReason.
func (r StopReason) String() string {
	if int(r) < len(stopReasons) {
		return stopReasons[r]
	}
	return "unknown"
}

// MarshalText makes a StopReason easy to read in JSON.
func (r StopReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Breakpoint is a predicate over a state that's about to be
// entered.
//
// A true result stops the walk.
type Breakpoint func(ctx context.Context, state State, req *Request) bool

// Control bounds the work done for one turn.
type Control struct {
	// Limit is the maximum number of times a turn re-enters the
	// machine (by forwarding or by injecting a flow).
	Limit int `json:"limit"`

	Breakpoints map[string]Breakpoint `json:"-"`
}

// DefaultControl is used when no Control is given.
var DefaultControl = &Control{
	Limit: 16,
}

// Walked is what happened during a walk.
type Walked struct {
	// States are the states that were entered.
	States []State `json:"states,omitempty"`

	StoppedBecause StopReason `json:"stoppedBecause"`

	// BreakpointID is the id of the breakpoint, if any, that
	// stopped the walk.
	BreakpointID string `json:"breakpoint,omitempty"`
}

// RequestMatcher is a Matcher that looks at the whole Request rather
// than just the message.
type RequestMatcher interface {
	TestRequest(req *Request) bool
}

// Machine resolves Requests against a Context.
type Machine struct {
	Context   *Context
	Evaluator Evaluator
	Logger    *zap.Logger
}

// Resolve resets the per-turn fields and walks the machine from the
// beginning.
func (m *Machine) Resolve(ctx context.Context, req *Request, ctl *Control) *Walked {
	req.ensure()
	req.Prompt = nil
	req.SpeechResponse = ""
	req.IsNotResponse = false
	if !req.IsForward {
		req.CurrentDialogue = ""
	}
	m.Logger.Debug("resolve", zap.String("message", req.Message), zap.Bool("flowing", req.IsFlowing))
	return m.Walk(ctx, req, StatePending, ctl)
}

// Walk runs the machine from the given state until it reaches the
// output state (or a breakpoint).
func (m *Machine) Walk(ctx context.Context, req *Request, from State, ctl *Control) *Walked {
	if ctl == nil {
		ctl = DefaultControl
	}
	w := &Walked{}
	state := from
	for {
		for id, bp := range ctl.Breakpoints {
			if bp(ctx, state, req) {
				w.StoppedBecause = BreakpointReached
				w.BreakpointID = id
				return w
			}
		}
		w.States = append(w.States, state)
		m.Logger.Debug("enter", zap.String("state", string(state)))
		if state == StateOutput {
			w.StoppedBecause = Done
			return w
		}
		state = m.step(ctx, req, state)
	}
}

func (m *Machine) step(ctx context.Context, req *Request, state State) State {
	switch state {
	case StatePending:
		return StateDigest

	case StateDigest:
		switch {
		case req.IsForward:
			if m.forward(ctx, req) {
				return StateDialogue
			}
			return StateNoMatch
		case m.isDialogue(ctx, req):
			return StateDialogue
		case m.isFlow(ctx, req):
			return StateFlow
		}
		return StateNoMatch

	case StateDialogue:
		if len(req.MissingFlows) == 0 {
			req.IsFlowing = false
			return StateOutput
		}
		req.IsFlowing = true
		return StateFlow

	case StateFlow:
		m.flow(req)
		return StateOutput

	case StateNoMatch:
		req.SpeechResponse = NoReply
		req.IsNotResponse = true
		return StateOutput
	}

	return StateOutput
}

// forward re-anchors the Request on the dialogue it was forwarded to.
func (m *Machine) forward(ctx context.Context, req *Request) bool {
	s, have := m.Context.Dialogues.Get(req.CurrentDialogue)
	if !have {
		m.Logger.Warn("forward to unknown dialogue", zap.String("dialogue", req.CurrentDialogue))
		return false
	}

	for _, t := range m.Context.Triggers() {
		if t.Flow || t.Owner != s.Name || !m.test(t, req) {
			continue
		}
		for k, v := range t.Matcher.Exec(req.Message) {
			req.Variables[k] = v
		}
		break
	}

	m.Logger.Debug("forwarded", zap.String("dialogue", s.Name))
	m.enter(req, s)
	return true
}

// enter starts the dialogue's flows.
func (m *Machine) enter(req *Request, s *Struct) {
	req.CurrentDialogue = s.Name
	req.OriginalDialogue = s.Name
	req.Flows = copyStrings(s.Flows)
	req.MissingFlows = copyStrings(s.Flows)
	req.ResolvedFlows = nil
	req.CurrentFlow = ""
	req.CurrentFlowIsResolved = false
}

func (m *Machine) test(t *Trigger, req *Request) bool {
	if rm, is := t.Matcher.(RequestMatcher); is {
		return rm.TestRequest(req)
	}
	return t.Matcher.Test(req.Message)
}

// isDialogue looks for the first dialogue trigger that matches the
// message and whose dialogue's activation conditions hold.
func (m *Machine) isDialogue(ctx context.Context, req *Request) bool {
	if req.IsFlowing {
		return false
	}
	for _, t := range m.Context.Triggers() {
		if t.Flow || !m.test(t, req) {
			continue
		}
		s, have := m.Context.Dialogues.Get(t.Owner)
		if !have {
			continue
		}
		cs := t.Matcher.Exec(req.Message)
		if !m.activated(ctx, s, req, cs) {
			continue
		}
		m.Logger.Debug("dialogue", zap.String("dialogue", s.Name), zap.String("trigger", t.Original))
		m.enter(req, s)
		for k, v := range cs {
			req.Variables[k] = v
		}
		return true
	}
	return false
}

// isFlow tries the current flow's triggers.
//
// Returns true whenever the Request is flowing, whether or not the
// message answered the flow.
func (m *Machine) isFlow(ctx context.Context, req *Request) bool {
	if !req.IsFlowing {
		return false
	}
	s, have := m.Context.Flows.Get(req.CurrentFlow)
	if !have {
		return true
	}
	for _, t := range m.Context.FlowTriggers(s.Name) {
		if !m.test(t, req) {
			continue
		}
		cs := t.Matcher.Exec(req.Message)
		if !m.activated(ctx, s, req, cs) {
			continue
		}
		m.Logger.Debug("flow", zap.String("flow", s.Name), zap.String("value", cs["$1"]))
		req.CurrentDialogue = s.Name
		req.CurrentFlowIsResolved = true
		for k, v := range cs {
			req.FlowsScope[k] = v
			req.Variables[k] = v
		}
		req.FlowsScope[s.Name] = cs["$1"]
		break
	}
	return true
}

// activated evaluates the activation conditions: the condition lines
// that don't specify an action.
func (m *Machine) activated(ctx context.Context, s *Struct, req *Request, cs match.Captures) bool {
	var scope map[string]interface{}
	for _, line := range s.Conditions {
		if _, isAction := ParseCondition(line); isAction {
			continue
		}
		if scope == nil {
			scope = req.Scope()
			for k, v := range cs {
				scope[k] = v
			}
		}
		ok, err := m.Evaluator.Test(ctx, line, scope)
		if err != nil {
			m.Logger.Warn("activation condition failed", zap.String("dialogue", s.Name), zap.String("condition", line), zap.Error(err))
			return false
		}
		if !ok {
			return false
		}
	}
	return true
}

// flow advances the flow queue.
func (m *Machine) flow(req *Request) {
	switch {
	case req.CurrentFlowIsResolved:
		m.resolved(req)
	case req.CurrentFlow == "":
		req.CurrentFlow = first(req.MissingFlows)
		req.CurrentFlowIsResolved = false
	default:
		m.Logger.Debug("prompt again", zap.String("flow", req.CurrentFlow))
	}

	for req.CurrentFlow != "" && !m.Context.Flows.Has(req.CurrentFlow) {
		m.Logger.Warn("undefined flow", zap.String("flow", req.CurrentFlow))
		m.resolved(req)
	}

	if s, have := m.Context.Flows.Get(req.CurrentFlow); have {
		for _, sub := range s.Flows {
			if !req.isResolved(sub) && !req.isMissing(sub) {
				req.MissingFlows = append(req.MissingFlows, sub)
			}
		}
		for _, f := range append(copyStrings(s.Flows), req.MissingFlows...) {
			if !contains(req.Flows, f) {
				req.Flows = append(req.Flows, f)
			}
		}
	}

	req.IsFlowing = req.CurrentFlow != ""
	m.Logger.Debug("flowing", zap.Bool("flowing", req.IsFlowing), zap.String("flow", req.CurrentFlow))
}

// resolved moves the current flow to the resolved list and starts the
// next one.
func (m *Machine) resolved(req *Request) {
	if req.CurrentFlow != "" && !req.isResolved(req.CurrentFlow) {
		req.ResolvedFlows = append(req.ResolvedFlows, req.CurrentFlow)
	}
	req.MissingFlows = remove(req.MissingFlows, req.CurrentFlow)
	req.CurrentFlow = first(req.MissingFlows)
	req.CurrentFlowIsResolved = false
}

func first(xs []string) string {
	if len(xs) == 0 {
		return ""
	}
	return xs[0]
}
