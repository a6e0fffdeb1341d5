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

package sio

import (
	"context"
	"strings"

	"github.com/yeuai/botscript/core"

	"go.uber.org/zap"
)

// Handler handles one turn.  Both core.Bot and core.UpdatableBot are
// Handlers.
type Handler interface {
	Handle(ctx context.Context, req *core.Request) *core.Request
}

// Chat connects a Handler to Couplings, keeping each conversation's
// state in Sessions.
type Chat struct {
	Handler  Handler
	Sessions *Sessions
	Logger   *zap.Logger

	in   chan *Message
	out  chan *Result
	done chan bool
}

// NewChat makes a Chat with the given Handler and couplings.
//
// The coupling's IO() method is called to obtain the chat's in/out
// channels.  The couplings can be nil if only Process is used.
func NewChat(ctx context.Context, h Handler, sessions *Sessions, couplings Couplings) (*Chat, error) {
	if sessions == nil {
		sessions = NewSessions(0)
	}
	c := &Chat{
		Handler:  h,
		Sessions: sessions,
		Logger:   zap.NewNop(),
	}
	if couplings != nil {
		in, out, done, err := couplings.IO(ctx)
		if err != nil {
			return nil, err
		}
		c.in, c.out, c.done = in, out, done
	}
	return c, nil
}

// Process handles a single Message synchronously.
func (c *Chat) Process(ctx context.Context, msg *Message) *Result {
	id := msg.SessionID
	if id == "" {
		id = NewSessionID()
	}
	req := c.Sessions.Next(id, strings.TrimSpace(msg.Message))
	req.SessionID = id
	req = c.Handler.Handle(ctx, req)
	c.Sessions.Put(id, req)

	c.Logger.Debug("turn",
		zap.String("session", id),
		zap.String("message", req.Message),
		zap.String("reply", req.SpeechResponse),
		zap.String("dialogue", req.CurrentDialogue),
		zap.Bool("flowing", req.IsFlowing))

	r := NewResult(id, req)
	r.ReplyTo = msg.ReplyTo
	return r
}

// Loop starts the input processing loop in the current goroutine.
//
// Stops when the context is done or the couplings' input is
// exhausted.
func (c *Chat) Loop(ctx context.Context) error {
	c.Logger.Info("chat loop starting")
	defer c.Logger.Info("chat loop done")
	for {
		select {
		case <-c.done:
			return nil
		case <-ctx.Done():
			return nil
		case msg := <-c.in:
			if msg == nil {
				continue
			}
			r := c.Process(ctx, msg)
			select {
			case <-ctx.Done():
				return nil
			case c.out <- r:
			}
		}
	}
}
