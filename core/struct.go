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
)

// Kind is the category of a Struct.
type Kind string

const (
	KindDefinition Kind = "definition"
	KindDialogue   Kind = "dialogue"
	KindFlow       Kind = "flow"
	KindCommand    Kind = "command"
	KindQuestion   Kind = "question"
	KindPlugin     Kind = "plugin"
	KindDirective  Kind = "directive"
	KindCondition  Kind = "condition"
	KindComment    Kind = "comment"
)

// Markers maps the first character of a block to the Kind of the
// block.
var Markers = map[byte]Kind{
	'!': KindDefinition,
	'+': KindDialogue,
	'@': KindCommand,
	'?': KindQuestion,
	'~': KindFlow,
	'#': KindComment,
	'*': KindCondition,
	'>': KindPlugin,
	'/': KindDirective,
}

// Code fences for directive bodies.
const (
	Fence1 = "```"
	Fence2 = "~~~"
)

// Struct is one parsed block of script.
type Struct struct {
	Kind    Kind   `json:"kind"`
	Name    string `json:"name"`
	Content string `json:"content,omitempty"`

	// Head lines are the lines that start with the block's
	// marker, with the marker removed.
	Head []string `json:"head,omitempty"`

	// Body lines are the others.
	Body []string `json:"body,omitempty"`

	Triggers   []string `json:"triggers,omitempty"`
	Replies    []string `json:"replies,omitempty"`
	Flows      []string `json:"flows,omitempty"`
	Conditions []string `json:"conditions,omitempty"`
	Options    []string `json:"options,omitempty"`

	// Lang is the fence language of a directive's code body.
	Lang string `json:"lang,omitempty"`

	// Value is a definition's value (a string or a []string), a
	// directive's value (a string), or, after Bot.Init, a
	// plugin's PluginFunc.
	Value interface{} `json:"-"`
}

// Key is the Struct's identity within a Context.
func (s *Struct) Key() string {
	return string(s.Kind) + ":" + s.Name
}

// String returns the value of a definition or directive as a string.
func (s *Struct) String() string {
	switch vv := s.Value.(type) {
	case string:
		return vv
	case []string:
		return strings.Join(vv, ", ")
	}
	return strings.Join(s.Options, ", ")
}

// Method is a command's HTTP method.
func (s *Struct) Method() string {
	if len(s.Options) < 1 {
		return "GET"
	}
	return s.Options[0]
}

// URL is a command's endpoint.
func (s *Struct) URL() string {
	if len(s.Options) < 2 {
		return ""
	}
	return s.Options[1]
}

// Headers parses a command's "header: value" body lines.
func (s *Struct) Headers() map[string]string {
	hs := make(map[string]string, len(s.Body))
	for _, line := range s.Body {
		line = strings.TrimSpace(strings.TrimPrefix(line, "-"))
		i := strings.IndexByte(line, ':')
		if i <= 0 {
			continue
		}
		hs[strings.TrimSpace(line[:i])] = strings.TrimSpace(line[i+1:])
	}
	return hs
}

// Language is the fence language of a directive's code body, if any.
func (s *Struct) Language() string {
	return s.Lang
}

// ParseStruct parses a single block.
//
// The block should already be normalized (see Normalize).  One
// exception: A command with the wrong number of tokens is a
// BadCommand.
func ParseStruct(block string) (*Struct, error) {
	block = strings.TrimSpace(block)
	if block == "" {
		return nil, EmptyBlock
	}

	lines := strings.Split(block, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}

	marker := lines[0][0]
	kind, have := Markers[marker]
	if !have {
		return nil, &UnknownMarker{Line: lines[0]}
	}

	s := &Struct{
		Kind:    kind,
		Content: block,
	}

	if kind == KindDirective {
		return s, s.parseDirective(lines)
	}

	for i, line := range lines {
		if line == "" {
			continue
		}
		// A flow's other '~' lines are its subflows.
		if line[0] == marker && (kind != KindFlow || i == 0) {
			s.Head = append(s.Head, strings.TrimSpace(line[1:]))
		} else {
			s.Body = append(s.Body, line)
		}
	}
	if 0 < len(s.Head) {
		s.Name = s.Head[0]
	}

	switch kind {
	case KindDefinition:
		if len(s.Body) == 0 {
			name, value := split(s.Head[0])
			s.Name = name
			s.Value = value
			s.Options = []string{value}
		} else {
			s.Options = s.marked('-')
			if 1 < len(s.Options) {
				s.Value = s.Options
			} else if 1 == len(s.Options) {
				s.Value = s.Options[0]
			}
		}

	case KindDialogue:
		s.Triggers = s.Head
		s.Replies = s.marked('-')
		s.Flows = s.marked('~')
		s.Conditions = s.marked('*')

	case KindFlow:
		s.Triggers = s.marked('+')
		s.Replies = s.marked('-')
		s.Flows = s.marked('~')
		s.Conditions = s.marked('*')

	case KindCommand:
		tokens := strings.Fields(s.Head[0])
		switch len(tokens) {
		case 2:
			s.Name = tokens[0]
			s.Options = []string{"GET", tokens[1]}
		case 3:
			s.Name = tokens[0]
			s.Options = []string{strings.ToUpper(tokens[1]), tokens[2]}
		default:
			return nil, &BadCommand{Head: s.Head[0]}
		}

	case KindQuestion:
		s.Options = s.marked('-')
		s.Value = s.Options

	case KindPlugin:
		s.Conditions = s.marked('*')

	case KindCondition:
		s.Conditions = s.Head
	}

	return s, nil
}

// marked returns the body lines that start with the given marker
// (with the marker removed).
func (s *Struct) marked(marker byte) []string {
	var acc []string
	for _, line := range s.Body {
		if line[0] == marker {
			acc = append(acc, strings.TrimSpace(line[1:]))
		}
	}
	return acc
}

// split returns the first token of the line and the rest.
func split(line string) (string, string) {
	line = strings.TrimSpace(line)
	i := strings.IndexAny(line, " \t")
	if i < 0 {
		return line, ""
	}
	return line[:i], strings.TrimSpace(line[i+1:])
}

// parseDirective handles "/name: value" and "/name:" followed by a
// body, which might be fenced code.
func (s *Struct) parseDirective(lines []string) error {
	head := strings.TrimSpace(lines[0][1:])
	s.Head = []string{head}
	s.Body = lines[1:]

	if len(s.Body) == 0 {
		name, value := head, ""
		if i := strings.IndexByte(head, ':'); 0 <= i {
			name, value = head[:i], strings.TrimSpace(head[i+1:])
		}
		s.Name = squeeze(name)
		s.Value = value
		return nil
	}

	s.Name = strings.TrimSuffix(squeeze(head), ":")

	if fence := s.Body[0]; strings.HasPrefix(fence, Fence1) || strings.HasPrefix(fence, Fence2) {
		marker := fence[:3]
		lang := strings.TrimSpace(fence[3:])
		var code []string
		for _, line := range s.Body[1:] {
			if strings.HasPrefix(line, marker) {
				break
			}
			code = append(code, line)
		}
		s.Lang = lang
		s.Options = code
		s.Value = strings.Join(code, "\n")
		return nil
	}

	s.Options = s.Body
	s.Value = strings.Join(s.Body, "\n")
	return nil
}

// squeeze removes all whitespace.
func squeeze(s string) string {
	return strings.Join(strings.Fields(s), "")
}
