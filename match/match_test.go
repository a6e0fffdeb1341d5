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
	"reflect"
	"strings"
	"testing"
)

const input = "I would like to buy 10 tickets"

func mustCompile(t *testing.T, text string, defs Definitions) Matcher {
	m, err := Compile(text, defs, nil, false)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestMatchBasic(t *testing.T) {
	tests := []struct {
		trigger string
		message string
		want    bool
	}{
		{"like", input, true},
		{"wou", input, false},
		{input, input, true},
		{"hello bot", "Hello Bot", true},
		{"what is your name?", "what is your name?", true},
		{"what is your name?", "what is your name", false},
		{"buy # tickets", input, true},
		{"buy # tickets", "buy some tickets", false},
		{"/^I would (?<verb>.+) to/", input, true},
	}

	for _, test := range tests {
		t.Run(test.trigger+" ~ "+test.message, func(t *testing.T) {
			m := mustCompile(t, test.trigger, nil)
			if got := m.Test(test.message); got != test.want {
				t.Fatalf("%s on %q: wanted %v", m, test.message, test.want)
			}
		})
	}
}

func TestMatchCaptures(t *testing.T) {
	tests := []struct {
		trigger string
		message string
		want    Captures
	}{
		{
			trigger: "/^I would (?<verb>.+) to/",
			message: input,
			want:    Captures{"$1": "like", "verb": "like"},
		},
		{
			trigger: `/^I (.*) to (?<verb>.+) (\d+) (?<what>.*)/`,
			message: input,
			want: Captures{
				"$1":   "would like",
				"$2":   "buy",
				"$3":   "10",
				"$4":   "tickets",
				"verb": "buy",
				"what": "tickets",
			},
		},
		{
			trigger: "I would like *",
			message: input,
			want:    Captures{"$1": "to buy 10 tickets"},
		},
		{
			trigger: "buy # tickets",
			message: input,
			want:    Captures{"$1": "10"},
		},
		{
			trigger: "my name is *{name}",
			message: "My name is Vu",
			want:    Captures{"$1": "Vu", "name": "Vu"},
		},
		{
			trigger: "I am #{age}",
			message: "I am 20",
			want:    Captures{"$1": "20", "age": "20"},
		},
		{
			trigger: "call me ${nick}",
			message: "call me bob",
			want:    Captures{"$1": "bob", "nick": "bob"},
		},
		{
			trigger: "hello",
			message: "goodbye",
			want:    Captures{},
		},
	}

	for _, test := range tests {
		t.Run(test.trigger, func(t *testing.T) {
			got := mustCompile(t, test.trigger, nil).Exec(test.message)
			if !reflect.DeepEqual(got, test.want) {
				t.Fatalf("got %#v, wanted %#v", got, test.want)
			}
		})
	}
}

func TestMatchDefinitions(t *testing.T) {
	defs := MapDefinitions(map[string][]string{
		"fruits": {"apple", "orange"},
		"food":   {"[fruits]", "rice"},
	})

	m := mustCompile(t, "i like [food]", defs)
	for _, msg := range []string{"I like apple", "i like ORANGE", "i like rice"} {
		if !m.Test(msg) {
			t.Fatalf("%s didn't match %q", m, msg)
		}
	}
	if m.Test("i like tacos") {
		t.Fatalf("%s shouldn't match tacos", m)
	}

	if _, atomic := Expand("i like [food]", defs); atomic {
		t.Fatal("a definition reference isn't atomic")
	}

	// Unknown definitions only match their own text.
	m = mustCompile(t, "i like [nope]", defs)
	if m.Test("i like s") || m.Test("i like n") {
		t.Fatalf("%s shouldn't match a single letter", m)
	}
	if !m.Test("i like [nope]") {
		t.Fatalf("%s should match its text", m)
	}
	if _, atomic := Expand("i like [nope]", defs); atomic {
		t.Fatal("an unknown definition reference isn't atomic")
	}

	// Named captures keep their character classes.
	m = mustCompile(t, "call me $name", defs)
	if got := m.Exec("call me bob"); got["name"] != "bob" {
		t.Fatalf("%s captured %v", m, got)
	}
}

func TestMatchDefinitionCycle(t *testing.T) {
	defs := MapDefinitions(map[string][]string{
		"a": {"x [b]"},
		"b": {"y [a]"},
	})

	s, _ := Expand("[a]", defs)
	if !strings.HasPrefix(s, "(?:x (?:y ") {
		t.Fatalf("didn't want %q", s)
	}

	m := mustCompile(t, "[a]", defs)
	if m.Test("x y a") {
		t.Fatalf("%s shouldn't match a single letter", m)
	}
	if !m.Test("x y [a]") {
		t.Fatalf("%s should match the literal reference", m)
	}
}

func TestMatchAtomic(t *testing.T) {
	tests := []struct {
		trigger string
		want    bool
	}{
		{"hello bot", true},
		{"what is your name?", true},
		{"today *", false},
		{"buy # tickets", false},
		{"my name is $name", false},
		{"#{n} items", false},
	}
	for _, test := range tests {
		if _, atomic := Expand(test.trigger, nil); atomic != test.want {
			t.Fatalf("%q atomic: wanted %v", test.trigger, test.want)
		}
	}
}

func TestMatchNotEqual(t *testing.T) {
	m, err := Compile("hello", nil, nil, true)
	if err != nil {
		t.Fatal(err)
	}
	if m.Test("hello") || m.Test("HELLO") {
		t.Fatalf("%s shouldn't match hello", m)
	}
	if !m.Test("hi there") {
		t.Fatalf("%s should match something else", m)
	}
}

func TestMatchCapability(t *testing.T) {
	c, err := NewCapability("shout", "^shout:", func(text string, defs Definitions) (Matcher, error) {
		return Regexp("^" + strings.ToUpper(strings.TrimSpace(strings.TrimPrefix(text, "shout:"))) + "!$")
	})
	if err != nil {
		t.Fatal(err)
	}

	m, err := Compile("shout: hey", nil, []*Capability{c}, false)
	if err != nil {
		t.Fatal(err)
	}
	if _, is := m.(*Pattern); !is {
		t.Fatalf("%T isn't a %T", m, &Pattern{})
	}
	if !m.Test("hey!") {
		t.Fatalf("%s should match", m)
	}
	if m.Test("hey") {
		t.Fatalf("%s shouldn't match", m)
	}

	if m = mustCompile(t, "no shouting", nil); m.Test("shout: hey") {
		t.Fatal("capability shouldn't be involved")
	}
}

func TestGroupKeys(t *testing.T) {
	tests := []struct {
		expr string
		want []string
	}{
		{`(a)(?<n>b)(?:c)(d)`, []string{"1", "n", "2"}},
		{`[(]\((x)(?=y)(?<!z)`, []string{"1"}},
		{`(?'q'x)(?P<r>y)`, []string{"q", "r"}},
		{`[\]()](z)`, []string{"1"}},
	}
	for _, test := range tests {
		if got := groupKeys(test.expr); !reflect.DeepEqual(got, test.want) {
			t.Fatalf("%s: got %v, wanted %v", test.expr, got, test.want)
		}
	}
}

func TestBadPattern(t *testing.T) {
	if _, err := Compile("/(unclosed/", nil, nil, false); err == nil {
		t.Fatal("should have complained")
	} else if _, is := err.(*BadPattern); !is {
		t.Fatalf("%T isn't a %T", err, &BadPattern{})
	}
}
