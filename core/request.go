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

// HistoryLimit is the maximum number of replies a Request remembers.
var HistoryLimit = 100

// Request is the state of one conversation turn.
//
// A Request for the next turn of the same conversation is made with
// Enter, which carries the conversation state forward.
type Request struct {
	SessionID string `json:"sessionId,omitempty"`
	AgentID   string `json:"agentId,omitempty"`

	Message        string   `json:"message"`
	SpeechResponse string   `json:"speechResponse"`
	Prompt         []string `json:"prompt,omitempty"`

	CurrentDialogue       string `json:"currentDialogue,omitempty"`
	OriginalDialogue      string `json:"originalDialogue,omitempty"`
	CurrentFlow           string `json:"currentFlow,omitempty"`
	CurrentFlowIsResolved bool   `json:"currentFlowIsResolved,omitempty"`

	// Flows accumulates every flow of the current dialogue.
	Flows []string `json:"flows,omitempty"`

	// MissingFlows and ResolvedFlows are disjoint.
	MissingFlows  []string `json:"missingFlows,omitempty"`
	ResolvedFlows []string `json:"resolvedFlows,omitempty"`

	IsFlowing     bool `json:"isFlowing"`
	IsForward     bool `json:"isForward"`
	IsNotResponse bool `json:"isNotResponse"`

	Variables  map[string]interface{} `json:"variables"`
	FlowsScope map[string]interface{} `json:"$flows"`

	// Previous replies, most recent first.
	Previous []string `json:"previous,omitempty"`

	Intent   string                 `json:"intent,omitempty"`
	Entities map[string]interface{} `json:"entities,omitempty"`
}

// NewRequest makes the first Request of a conversation.
func NewRequest(message string) *Request {
	return &Request{
		Message:    message,
		Variables:  make(map[string]interface{}),
		FlowsScope: make(map[string]interface{}),
	}
}

// Enter makes the Request for the next turn.
//
// Conversation state is copied; the reply of this turn is not.
func (r *Request) Enter(message string) *Request {
	next := *r
	next.Message = message
	next.SpeechResponse = ""
	next.Prompt = nil
	next.IsNotResponse = false
	next.IsForward = false
	next.CurrentFlowIsResolved = false
	next.Intent = ""
	next.Entities = nil

	next.Flows = copyStrings(r.Flows)
	next.MissingFlows = copyStrings(r.MissingFlows)
	next.ResolvedFlows = copyStrings(r.ResolvedFlows)
	next.Previous = copyStrings(r.Previous)
	next.Variables = copyMap(r.Variables)
	next.FlowsScope = copyMap(r.FlowsScope)

	return &next
}

// Remember adds a reply to the history.
func (r *Request) Remember(reply string) {
	prev := make([]string, 0, len(r.Previous)+1)
	prev = append(prev, reply)
	prev = append(prev, r.Previous...)
	if HistoryLimit < len(prev) {
		prev = prev[:HistoryLimit]
	}
	r.Previous = prev
}

// Scope is the environment for expressions and interpolation.
//
// Variables are overlaid with the flow scope.  The flow scope itself
// is "$flows", the reply history is "$previous", and the message is
// "$input".
func (r *Request) Scope() map[string]interface{} {
	scope := make(map[string]interface{}, len(r.Variables)+len(r.FlowsScope)+3)
	for k, v := range r.Variables {
		scope[k] = v
	}
	for k, v := range r.FlowsScope {
		scope[k] = v
	}
	flows := r.FlowsScope
	if flows == nil {
		flows = map[string]interface{}{}
	}
	scope["$flows"] = flows
	scope["$previous"] = copyStrings(r.Previous)
	scope["$input"] = r.Message
	return scope
}

// ensure makes the maps.
func (r *Request) ensure() {
	if r.Variables == nil {
		r.Variables = make(map[string]interface{})
	}
	if r.FlowsScope == nil {
		r.FlowsScope = make(map[string]interface{})
	}
}

func (r *Request) isResolved(flow string) bool {
	return contains(r.ResolvedFlows, flow)
}

func (r *Request) isMissing(flow string) bool {
	return contains(r.MissingFlows, flow)
}

func contains(xs []string, x string) bool {
	for _, y := range xs {
		if x == y {
			return true
		}
	}
	return false
}

func remove(xs []string, x string) []string {
	acc := xs[:0:0]
	for _, y := range xs {
		if x != y {
			acc = append(acc, y)
		}
	}
	return acc
}

func copyStrings(xs []string) []string {
	if xs == nil {
		return nil
	}
	return append(make([]string, 0, len(xs)), xs...)
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	acc := make(map[string]interface{}, len(m))
	for k, v := range m {
		acc[k] = v
	}
	return acc
}
