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
	"sync"

	"go.uber.org/zap"
)

// Event names emitted by a Bot.
const (
	EventReply        = "reply"
	EventCommandError = "command:error"

	// EventAll listeners hear every event.
	EventAll = "*"
)

// Listener receives an event's name and arguments.
type Listener func(event string, args ...interface{})

type listener struct {
	id   int
	f    Listener
	once bool
}

// Emitter dispatches events to listeners in the order they were
// added.
//
// A listener that panics doesn't affect the other listeners or the
// emitter.
type Emitter struct {
	Logger *zap.Logger

	mu        sync.Mutex
	listeners map[string][]*listener
	next      int
}

// NewEmitter makes an Emitter.
func NewEmitter(logger *zap.Logger) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{
		Logger:    logger,
		listeners: make(map[string][]*listener),
	}
}

func (e *Emitter) add(event string, f Listener, once bool) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.next++
	e.listeners[event] = append(e.listeners[event], &listener{
		id:   e.next,
		f:    f,
		once: once,
	})
	return e.next
}

// On adds a listener and returns an id which Off can use.
func (e *Emitter) On(event string, f Listener) int {
	return e.add(event, f, false)
}

// Once adds a listener that's removed after its first event.
func (e *Emitter) Once(event string, f Listener) int {
	return e.add(event, f, true)
}

// Off removes the listener with the given id.
func (e *Emitter) Off(event string, id int) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	ls := e.listeners[event]
	for i, l := range ls {
		if l.id == id {
			e.listeners[event] = append(ls[:i:i], ls[i+1:]...)
			return true
		}
	}
	return false
}

// take returns the listeners for the event, removing the once ones.
func (e *Emitter) take(event string) []*listener {
	e.mu.Lock()
	defer e.mu.Unlock()
	ls := e.listeners[event]
	if len(ls) == 0 {
		return nil
	}
	acc := make([]*listener, len(ls))
	copy(acc, ls)
	keep := ls[:0:0]
	for _, l := range ls {
		if !l.once {
			keep = append(keep, l)
		}
	}
	e.listeners[event] = keep
	return acc
}

// Emit calls the event's listeners followed by the catch-all
// listeners.
func (e *Emitter) Emit(event string, args ...interface{}) {
	ls := e.take(event)
	if event != EventAll {
		ls = append(ls, e.take(EventAll)...)
	}
	for _, l := range ls {
		e.call(l, event, args)
	}
}

func (e *Emitter) call(l *listener, event string, args []interface{}) {
	defer func() {
		if r := recover(); r != nil {
			e.Logger.Warn("listener panic", zap.String("event", event), zap.Any("panic", r))
		}
	}()
	l.f(event, args...)
}
