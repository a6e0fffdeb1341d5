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

// Package match implements the trigger pattern compiler.
//
// A trigger is a line of botscript text such as
//
//    + buy # tickets
//    + my name is *{name}
//    + i like [fruits]
//    + /^I would (?<verb>.+) to/
//
// Compile turns that text into a Matcher, which can test a message
// and extract Captures from it.  The regular expressions follow
// ECMAScript conventions (lookahead, named groups written as
// (?<name>...)), so this package uses regexp2 rather than the
// standard library's RE2 engine.
package match

import (
	"strconv"
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// DefaultMatchTimeout bounds a single regular expression evaluation.
//
// Regex triggers are written by script authors, and regexp2 is a
// backtracking engine.
var DefaultMatchTimeout = time.Second

// Captures is a map from capture names to the text they captured.
//
// Positional groups are named "$1", "$2", and so on.  Named groups
// appear under their own name (and also positionally).
type Captures map[string]string

// NewCaptures makes an empty Captures.
func NewCaptures() Captures {
	return make(Captures, 4)
}

// Extend adds the property; modifies and returns the Captures.
func (cs Captures) Extend(p string, v string) Captures {
	cs[p] = v
	return cs
}

// Copy makes a shallow copy of the Captures.
func (cs Captures) Copy() Captures {
	acc := make(Captures, len(cs))
	for k, v := range cs {
		acc[k] = v
	}
	return acc
}

// Map returns the Captures as a generic map, which is the shape the
// rest of the engine uses for variables.
func (cs Captures) Map() map[string]interface{} {
	acc := make(map[string]interface{}, len(cs))
	for k, v := range cs {
		acc[k] = v
	}
	return acc
}

// Matcher is what a compiled trigger looks like.
//
// Both native patterns (see Pattern) and matchers made by custom
// capabilities implement it.
type Matcher interface {
	// Test reports whether the input activates the trigger.
	Test(input string) bool

	// Exec extracts captures.  No match gives empty Captures,
	// never an error.
	Exec(input string) Captures

	// String returns some representation of the matcher.
	String() string
}

// Definitions gives access to the option lists of named definitions,
// which triggers reference as [name].
type Definitions interface {
	Options(name string) ([]string, bool)
}

// NoDefinitions is an empty Definitions.
var NoDefinitions = definitions(nil)

type definitions map[string][]string

// MapDefinitions makes Definitions from a map.
func MapDefinitions(m map[string][]string) Definitions {
	return definitions(m)
}

func (ds definitions) Options(name string) ([]string, bool) {
	opts, have := ds[name]
	return opts, have
}

// Pattern is the native Matcher.
type Pattern struct {
	// Original is the trigger text.
	Original string

	// Source is the expression after substitutions but before the
	// boundary envelope.
	Source string

	// Atomic reports that no substitution (other than escaping
	// literal punctuation) changed the trigger.
	Atomic bool

	// NotEqual patterns match any input that the source
	// expression does not match entirely.
	NotEqual bool

	re   *regexp2.Regexp
	keys []string
}

// Regexp compiles a verbatim regular expression into a Pattern.
//
// Custom capabilities can use this function to build their
// matchers.
func Regexp(expr string) (*Pattern, error) {
	re, err := compile(expr)
	if err != nil {
		return nil, err
	}
	return &Pattern{
		Original: expr,
		Source:   expr,
		re:       re,
		keys:     groupKeys(expr),
	}, nil
}

func compile(expr string) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(expr, regexp2.IgnoreCase)
	if err != nil {
		return nil, &BadPattern{Expr: expr, Err: err}
	}
	re.MatchTimeout = DefaultMatchTimeout
	return re, nil
}

// Test implements the Matcher interface.
func (p *Pattern) Test(input string) bool {
	ok, err := p.re.MatchString(input)
	return err == nil && ok
}

// Exec implements the Matcher interface.
//
// Groups are numbered left to right by opening parenthesis, named or
// not, which is how ECMAScript numbers them.  (regexp2 numbers the
// unnamed groups first.)
func (p *Pattern) Exec(input string) Captures {
	cs := NewCaptures()

	m, err := p.re.FindStringMatch(input)
	if err != nil || m == nil {
		return cs
	}

	groups := m.Groups()
	positional := len(p.keys) == len(groups)-1
	pos := make(map[string]int, len(p.keys))
	for i, k := range p.keys {
		pos[k] = i + 1
	}

	for i, g := range groups {
		if i == 0 || len(g.Captures) == 0 {
			continue
		}
		n := i
		if positional {
			if j, have := pos[g.Name]; have {
				n = j
			}
		}
		s := g.String()
		cs["$"+strconv.Itoa(n)] = s
		if !numeric(g.Name) {
			cs[g.Name] = s
		}
	}

	return cs
}

// String returns the full regular expression.
func (p *Pattern) String() string {
	return p.re.String()
}

func numeric(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || '9' < c {
			return false
		}
	}
	return true
}

// Compile makes a Matcher for the given trigger text.
//
// The first capability whose activation expression matches the text
// compiles it.  Otherwise text wrapped in slashes is a verbatim
// regular expression, and anything else goes through Expand.
func Compile(text string, defs Definitions, caps []*Capability, notEqual bool) (Matcher, error) {
	if defs == nil {
		defs = NoDefinitions
	}

	for _, c := range caps {
		if c.Activates(text) {
			return c.Compile(text, defs)
		}
	}

	var (
		source string
		atomic bool
	)

	if 2 < len(text) && strings.HasPrefix(text, "/") && strings.HasSuffix(text, "/") {
		source = text[1 : len(text)-1]
		p, err := Regexp(source)
		if err != nil {
			return nil, err
		}
		p.Original = text
		return p, nil
	}

	source, atomic = Expand(text, defs)

	var expr string
	if notEqual {
		expr = `^(?!(?:` + source + `)$).+`
	} else {
		expr = `(?:^|[\s,;—])` + source + `(?!\w)`
	}

	re, err := compile(expr)
	if err != nil {
		return nil, err
	}

	return &Pattern{
		Original: text,
		Source:   source,
		Atomic:   atomic,
		NotEqual: notEqual,
		re:       re,
		keys:     groupKeys(expr),
	}, nil
}

// BadPattern reports a trigger that didn't compile.
type BadPattern struct {
	Expr string
	Err  error
}

func (e *BadPattern) Error() string {
	return "bad pattern '" + e.Expr + "': " + e.Err.Error()
}

func (e *BadPattern) Unwrap() error {
	return e.Err
}
