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
	"strconv"
	"strings"
)

// groupKeys lists the capturing groups of the expression in the order
// of their opening parentheses.
//
// Unnamed groups are listed by their regexp2 number ("1", "2", ...),
// named groups by name.
func groupKeys(expr string) []string {
	var (
		keys    []string
		unnamed = 0
		inClass = false
	)

	for i := 0; i < len(expr); i++ {
		c := expr[i]
		switch {
		case c == '\\':
			i++
		case inClass:
			if c == ']' {
				inClass = false
			}
		case c == '[':
			inClass = true
			if i+1 < len(expr) && expr[i+1] == '^' {
				i++
			}
			if i+1 < len(expr) && expr[i+1] == ']' {
				i++
			}
		case c == '(':
			if i+1 < len(expr) && expr[i+1] == '?' {
				if name, ok := groupName(expr[i+2:]); ok {
					keys = append(keys, name)
				}
				continue
			}
			unnamed++
			keys = append(keys, strconv.Itoa(unnamed))
		}
	}

	return keys
}

// groupName parses the name of a named group given the text that
// follows "(?".
func groupName(rest string) (string, bool) {
	if strings.HasPrefix(rest, "P<") {
		rest = rest[1:]
	}
	if rest == "" {
		return "", false
	}
	var closer byte
	switch rest[0] {
	case '<':
		closer = '>'
	case '\'':
		closer = '\''
	default:
		return "", false
	}
	rest = rest[1:]
	if rest == "" || rest[0] == '=' || rest[0] == '!' {
		// Lookbehind.
		return "", false
	}
	end := strings.IndexByte(rest, closer)
	if end <= 0 {
		return "", false
	}
	return rest[:end], true
}
