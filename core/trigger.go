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
	"sort"
	"strings"

	"github.com/yeuai/botscript/match"
)

// Trigger is one compiled activation candidate.
type Trigger struct {
	// Owner is the name of the dialogue or flow.
	Owner string

	// Flow reports whether the Owner is a flow.
	Flow bool

	// Original is the trigger line as written.
	Original string

	// Source is the expression after substitutions.
	Source string

	// Atomic triggers had no substitutions.
	Atomic bool

	// Words is the number of words in the Source.
	Words int

	Matcher match.Matcher
}

// NewTrigger wraps a Matcher.
//
// Matchers made by custom capabilities are never atomic.
func NewTrigger(owner string, flow bool, original string, m match.Matcher) *Trigger {
	t := &Trigger{
		Owner:    owner,
		Flow:     flow,
		Original: original,
		Matcher:  m,
	}
	if p, is := m.(*match.Pattern); is {
		t.Source = p.Source
		t.Atomic = p.Atomic
	} else {
		t.Source = m.String()
	}
	t.Words = len(strings.Fields(t.Source))
	return t
}

// Before reports whether t ranks ahead of u.
//
// Atomic triggers come first, ordered by more words and then by the
// lexically later source.  Other triggers are ordered by longer
// source (and then lexically later).
func (t *Trigger) Before(u *Trigger) bool {
	switch {
	case t.Atomic && u.Atomic:
		if t.Words != u.Words {
			return t.Words > u.Words
		}
		return t.Source > u.Source
	case t.Atomic:
		return true
	case u.Atomic:
		return false
	}
	if len(t.Source) != len(u.Source) {
		return len(t.Source) > len(u.Source)
	}
	return t.Source > u.Source
}

// Rank sorts the triggers in place and returns them.
func Rank(ts []*Trigger) []*Trigger {
	sort.SliceStable(ts, func(i, j int) bool {
		return ts[i].Before(ts[j])
	})
	return ts
}
