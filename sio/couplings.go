/* Copyright 2019 Comcast Cable Communications Management, LLC
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

// Package sio couples a bot to the outside world: a terminal, an
// MQTT broker, or an HTTP service with websockets.
package sio

import (
	"context"

	"github.com/yeuai/botscript/core"
)

// Message is an in-bound utterance.
type Message struct {
	// SessionID identifies the conversation.  When empty, a new
	// session is started.
	SessionID string `json:"sessionId,omitempty"`

	Message string `json:"message"`

	// ReplyTo is an optional, couplings-specific destination for
	// the result (an MQTT topic, for example).
	ReplyTo string `json:"replyTo,omitempty"`
}

// Result is the out-bound response to a Message.
type Result struct {
	SessionID string        `json:"sessionId"`
	Reply     string        `json:"reply"`
	Prompt    []string      `json:"prompt,omitempty"`
	Request   *core.Request `json:"request,omitempty"`
	ReplyTo   string        `json:"-"`
}

// NewResult summarizes a handled Request.
func NewResult(sessionID string, req *core.Request) *Result {
	return &Result{
		SessionID: sessionID,
		Reply:     req.SpeechResponse,
		Prompt:    req.Prompt,
		Request:   req,
	}
}

// Couplings provide channels for message input and results output.
//
// For example, an implementation could couple a bot to an MQTT
// broker.
type Couplings interface {
	// Start initializes the Couplings.
	Start(context.Context) error

	// IO returns the input and result channels and a channel
	// that's closed when input is exhausted.
	IO(context.Context) (chan *Message, chan *Result, chan bool, error)

	// Stop shuts down the Couplings.
	Stop(context.Context) error
}
