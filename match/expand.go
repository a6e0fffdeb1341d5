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

package match

import (
	"strings"

	"github.com/dlclark/regexp2"
)

// substitution is one textual rewrite of trigger syntax into regular
// expression syntax.
type substitution struct {
	search *regexp2.Regexp
	with   func(m regexp2.Match) string
}

func named(expr string) func(m regexp2.Match) string {
	return func(m regexp2.Match) string {
		return "(?<" + m.GroupByNumber(1).String() + ">" + expr + ")"
	}
}

func prefixed(expr string) func(m regexp2.Match) string {
	return func(m regexp2.Match) string {
		return m.GroupByNumber(1).String() + expr
	}
}

// substitutions are applied in this order.
var substitutions = []substitution{
	// #{age} => (?<age>\d[\d\,\.\s]*)
	{regexp2.MustCompile(`#\{([A-Za-z][\w]*)\}`, regexp2.None), named(`\d[\d\,\.\s]*`)},
	// ${name} => (?<name>[a-z]+)
	{regexp2.MustCompile(`\$\{([A-Za-z][\w]*)\}`, regexp2.None), named(`[a-z]+`)},
	// *{name} => (?<name>.*)
	{regexp2.MustCompile(`\*\{([A-Za-z][\w]*)\}`, regexp2.None), named(`.*`)},
	// $name => (?<name>[a-z]+)
	{regexp2.MustCompile(`\$([A-Za-z][\w]*)`, regexp2.None), named(`[a-z]+`)},
	// # => (\d+)
	{regexp2.MustCompile(`(^|[\s,;—])#(?!\w)`, regexp2.None), prefixed(`(\d+)`)},
	// * => (.*)
	{regexp2.MustCompile(`(^|[\s,;—])\*(?!\w)`, regexp2.None), prefixed(`(.*)`)},
}

// reference finds [definition] references.  The character classes
// of named captures and escaped brackets aren't references.
var reference = regexp2.MustCompile(`(?<!\(\?<\w+>|\\)\[([\w\- ]+)\]`, regexp2.None)

// escapeLiterals escapes the punctuation that commonly appears in
// literal triggers.
func escapeLiterals(s string) string {
	return strings.NewReplacer(".", `\.`, "?", `\?`).Replace(s)
}

// Expand applies the trigger substitutions to the text and returns
// the resulting expression along with whether the trigger is atomic.
//
// A definition reference [name] becomes a non-capturing alternation
// of that definition's options.  Options can themselves reference
// other definitions.  A reference to an unknown definition, or to one
// that is already being expanded, matches its literal text, and the
// trigger isn't atomic.
func Expand(text string, defs Definitions) (string, bool) {
	if defs == nil {
		defs = NoDefinitions
	}

	escaped := escapeLiterals(text)
	s := escaped
	for _, sub := range substitutions {
		if replaced, err := sub.search.ReplaceFunc(s, sub.with, -1, -1); err == nil {
			s = replaced
		}
	}
	s = expandReferences(s, defs, map[string]bool{})

	return s, s == escaped
}

func expandReferences(s string, defs Definitions, expanding map[string]bool) string {
	replaced, err := reference.ReplaceFunc(s, func(m regexp2.Match) string {
		name := m.GroupByNumber(1).String()
		opts, have := defs.Options(name)
		if !have || len(opts) == 0 || expanding[name] {
			return `\[` + name + `\]`
		}
		expanding[name] = true
		alts := make([]string, 0, len(opts))
		for _, opt := range opts {
			alts = append(alts, expandReferences(quote(opt), defs, expanding))
		}
		delete(expanding, name)
		return "(?:" + strings.Join(alts, "|") + ")"
	}, -1, -1)
	if err != nil {
		return s
	}
	return replaced
}

// quote escapes regular expression syntax in a definition option
// while keeping its [references].
func quote(opt string) string {
	var (
		acc  strings.Builder
		last = 0
	)
	m, _ := reference.FindStringMatch(opt)
	for m != nil {
		acc.WriteString(quoteMeta(opt[last:byteIndex(opt, m.Index)]))
		acc.WriteString(m.String())
		last = byteIndex(opt, m.Index+m.Length)
		m, _ = reference.FindNextMatch(m)
	}
	acc.WriteString(quoteMeta(opt[last:]))
	return acc.String()
}

// byteIndex converts a regexp2 rune index into a byte index.
func byteIndex(s string, runes int) int {
	n := 0
	for i := range s {
		if n == runes {
			return i
		}
		n++
	}
	return len(s)
}

func quoteMeta(s string) string {
	var acc strings.Builder
	for _, c := range s {
		if strings.ContainsRune(`\.+*?()|[]{}^$#`, c) {
			acc.WriteRune('\\')
		}
		acc.WriteRune(c)
	}
	return acc.String()
}
