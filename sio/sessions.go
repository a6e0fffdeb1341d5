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
	"sync"
	"time"

	"github.com/yeuai/botscript/core"

	"github.com/google/uuid"
)

// DefaultSessionTTL is how long an idle conversation is kept.
var DefaultSessionTTL = 30 * time.Minute

// NewSessionID generates a random session id.
func NewSessionID() string {
	return uuid.NewString()
}

type session struct {
	req  *core.Request
	seen time.Time
}

// Sessions is an in-memory cache of each conversation's latest
// Request.  Sessions idle for longer than the TTL are forgotten.
type Sessions struct {
	TTL time.Duration

	mu       sync.Mutex
	sessions map[string]*session
	now      func() time.Time
}

// NewSessions makes an empty cache.  A non-positive ttl means
// DefaultSessionTTL.
func NewSessions(ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Sessions{
		TTL:      ttl,
		sessions: make(map[string]*session),
		now:      time.Now,
	}
}

// Get returns the session's latest Request, if any.
func (s *Sessions) Get(id string) (*core.Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	x, have := s.sessions[id]
	if !have {
		return nil, false
	}
	if s.now().Sub(x.seen) > s.TTL {
		delete(s.sessions, id)
		return nil, false
	}
	return x.req, true
}

// Put stores the session's latest Request.
func (s *Sessions) Put(id string, req *core.Request) {
	s.mu.Lock()
	s.sessions[id] = &session{
		req:  req,
		seen: s.now(),
	}
	s.mu.Unlock()
}

// Next returns the Request for the session's next turn.
func (s *Sessions) Next(id, message string) *core.Request {
	prev, have := s.Get(id)
	if !have {
		req := core.NewRequest(message)
		req.SessionID = id
		return req
	}
	return prev.Enter(message)
}

// Sweep forgets expired sessions and returns how many it forgot.
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	n := 0
	for id, x := range s.sessions {
		if now.Sub(x.seen) > s.TTL {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

// Len is the number of sessions, including expired ones that haven't
// been swept.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Run sweeps periodically until the context is done.
func (s *Sessions) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Sweep()
		}
	}
}
