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
	"strings"
	"sync"

	"github.com/yeuai/botscript/match"

	"go.uber.org/zap"
)

// Table holds the Structs of one Kind in declaration order.
//
// Putting a Struct under an existing name replaces the old one in
// place.
type Table struct {
	names []string
	m     map[string]*Struct
}

// NewTable makes an empty Table.
func NewTable() *Table {
	return &Table{
		m: make(map[string]*Struct),
	}
}

// Put adds or replaces the Struct.
func (t *Table) Put(s *Struct) {
	if _, have := t.m[s.Name]; !have {
		t.names = append(t.names, s.Name)
	}
	t.m[s.Name] = s
}

// Get returns the Struct with the given name, if any.
func (t *Table) Get(name string) (*Struct, bool) {
	s, have := t.m[name]
	return s, have
}

// Has reports whether there's a Struct with the given name.
func (t *Table) Has(name string) bool {
	_, have := t.m[name]
	return have
}

// Names returns the names in declaration order.
func (t *Table) Names() []string {
	return append([]string(nil), t.names...)
}

// All returns the Structs in declaration order.
func (t *Table) All() []*Struct {
	acc := make([]*Struct, 0, len(t.names))
	for _, name := range t.names {
		acc = append(acc, t.m[name])
	}
	return acc
}

// Len is the number of Structs.
func (t *Table) Len() int {
	return len(t.names)
}

// Context is everything a bot knows: its Structs by kind, custom
// pattern capabilities, registered plugin functions, and the ranked
// triggers.
//
// A Context should not be modified while requests are being handled.
type Context struct {
	Definitions *Table
	Dialogues   *Table
	Flows       *Table
	Commands    *Table
	Questions   *Table
	Plugins     *Table
	Directives  *Table
	Conditions  *Table

	Logger *zap.Logger

	capabilities []*match.Capability
	funcs        map[string]PluginFunc

	mu       sync.Mutex
	triggers []*Trigger
}

// NewContext makes an empty Context.
func NewContext() *Context {
	return &Context{
		Definitions: NewTable(),
		Dialogues:   NewTable(),
		Flows:       NewTable(),
		Commands:    NewTable(),
		Questions:   NewTable(),
		Plugins:     NewTable(),
		Directives:  NewTable(),
		Conditions:  NewTable(),
		Logger:      zap.NewNop(),
		funcs:       make(map[string]PluginFunc),
	}
}

// Table returns the Table for the given Kind.
//
// Comments aren't kept, so KindComment gives nil.
func (c *Context) Table(kind Kind) *Table {
	switch kind {
	case KindDefinition:
		return c.Definitions
	case KindDialogue:
		return c.Dialogues
	case KindFlow:
		return c.Flows
	case KindCommand:
		return c.Commands
	case KindQuestion:
		return c.Questions
	case KindPlugin:
		return c.Plugins
	case KindDirective:
		return c.Directives
	case KindCondition:
		return c.Conditions
	}
	return nil
}

// Add puts the Structs in their tables.
//
// A plugin block with several heads adds one plugin per head.
//
// Adding a definition, dialogue, or flow invalidates the ranked
// triggers.
func (c *Context) Add(ss ...*Struct) {
	for _, s := range ss {
		t := c.Table(s.Kind)
		if t == nil {
			continue
		}
		if s.Kind == KindPlugin && 1 < len(s.Head) {
			// Each head is a plugin with the block's conditions.
			for _, name := range s.Head {
				p := *s
				p.Name = name
				p.Head = []string{name}
				t.Put(&p)
			}
			continue
		}
		t.Put(s)
		switch s.Kind {
		case KindDefinition, KindDialogue, KindFlow:
			c.Invalidate()
		}
	}
}

// Dialogue finds a dialogue, or else a flow, with the given name.
func (c *Context) Dialogue(name string) (*Struct, bool) {
	if s, have := c.Dialogues.Get(name); have {
		return s, true
	}
	return c.Flows.Get(name)
}

// Directive returns the value of the named directive.
func (c *Context) Directive(name string) (string, bool) {
	s, have := c.Directives.Get(name)
	if !have {
		return "", false
	}
	return s.String(), true
}

// Options implements match.Definitions.
func (c *Context) Options(name string) ([]string, bool) {
	s, have := c.Definitions.Get(name)
	if !have {
		return nil, false
	}
	return s.Options, true
}

// AddCapability registers a custom pattern syntax.
//
// Capabilities are tried in the order they were added.
func (c *Context) AddCapability(capability *match.Capability) {
	c.mu.Lock()
	c.capabilities = append(c.capabilities, capability)
	c.triggers = nil
	c.mu.Unlock()
}

// Register binds a plugin name to a function.
func (c *Context) Register(name string, f PluginFunc) {
	c.funcs[name] = f
}

// Registered returns the function registered for a plugin name.
func (c *Context) Registered(name string) (PluginFunc, bool) {
	f, have := c.funcs[name]
	return f, have
}

// Invalidate discards the ranked triggers.
func (c *Context) Invalidate() {
	c.mu.Lock()
	c.triggers = nil
	c.mu.Unlock()
}

// Triggers returns the ranked triggers of all dialogues and flows,
// building them if necessary.
//
// The returned slice must not be modified.
func (c *Context) Triggers() []*Trigger {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.triggers == nil {
		c.triggers = c.rank()
	}
	return c.triggers
}

// Compile makes a Matcher for a trigger line.
//
// A leading '!' makes a negative trigger, which matches messages that
// don't match the rest of the line.
func (c *Context) Compile(text string) (match.Matcher, error) {
	c.mu.Lock()
	caps := c.capabilities
	c.mu.Unlock()
	return c.compile(text, caps)
}

func (c *Context) compile(text string, caps []*match.Capability) (match.Matcher, error) {
	notEqual := false
	if strings.HasPrefix(text, "!") {
		notEqual = true
		text = strings.TrimSpace(text[1:])
	}
	return match.Compile(text, c, caps, notEqual)
}

// rank builds the trigger list from scratch.  Caller holds the lock.
func (c *Context) rank() []*Trigger {
	acc := make([]*Trigger, 0, c.Dialogues.Len()+c.Flows.Len())

	add := func(s *Struct, flow bool) {
		for _, line := range s.Triggers {
			m, err := c.compile(line, c.capabilities)
			if err != nil {
				c.Logger.Warn("trigger skipped",
					zap.String("owner", s.Name),
					zap.String("trigger", line),
					zap.Error(err))
				continue
			}
			acc = append(acc, NewTrigger(s.Name, flow, line, m))
		}
	}

	for _, s := range c.Dialogues.All() {
		add(s, false)
	}
	for _, s := range c.Flows.All() {
		add(s, true)
	}

	return Rank(acc)
}

// FlowTriggers returns the ranked triggers owned by the named flow.
func (c *Context) FlowTriggers(name string) []*Trigger {
	var acc []*Trigger
	for _, t := range c.Triggers() {
		if t.Flow && t.Owner == name {
			acc = append(acc, t)
		}
	}
	return acc
}
