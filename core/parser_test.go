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
	"errors"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalize(t *testing.T) {
	src := "# a comment\r\n" +
		"  + hello bot\r\n" +
		"  - Hello\n" +
		"  ^ human!\n" +
		"/nlu: nlu\n" +
		"\n" +
		"/plugin: x\n" +
		"~~~js\n" +
		"# not a comment\n" +
		"\n" +
		"^ not joined\n" +
		"~~~\n"

	want := []string{
		"+ hello bot",
		"- Hello human!",
		"",
		"/nlu: nlu",
		"",
		"/plugin: x",
		"~~~js",
		"# not a comment",
		"",
		"^ not joined",
		"~~~",
		"",
	}

	if diff := cmp.Diff(want, Normalize(src)); diff != "" {
		t.Fatalf("Normalize (-want +got):\n%s", diff)
	}

	blocks := Blocks(src)
	if len(blocks) != 3 {
		t.Fatalf("blocks: %#v", blocks)
	}
}

func TestParseStruct(t *testing.T) {
	tests := []struct {
		block string
		want  *Struct
	}{
		{
			block: "! name Alice Smith",
			want: &Struct{
				Kind:    KindDefinition,
				Name:    "name",
				Options: []string{"Alice Smith"},
				Value:   "Alice Smith",
			},
		},
		{
			block: "! colors\n- red\n- blue",
			want: &Struct{
				Kind:    KindDefinition,
				Name:    "colors",
				Options: []string{"red", "blue"},
				Value:   []string{"red", "blue"},
			},
		},
		{
			block: "+ hi\n+ hello\n- Hello!\n~ age\n* true -> hey",
			want: &Struct{
				Kind:       KindDialogue,
				Name:       "hi",
				Triggers:   []string{"hi", "hello"},
				Replies:    []string{"Hello!"},
				Flows:      []string{"age"},
				Conditions: []string{"true -> hey"},
			},
		},
		{
			block: "~ user\n- Username?\n~ pass\n+ *{user}",
			want: &Struct{
				Kind:     KindFlow,
				Name:     "user",
				Triggers: []string{"*{user}"},
				Replies:  []string{"Username?"},
				Flows:    []string{"pass"},
			},
		},
		{
			block: "@ geoip https://api.ipify.org/?format=json",
			want: &Struct{
				Kind:    KindCommand,
				Name:    "geoip",
				Options: []string{"GET", "https://api.ipify.org/?format=json"},
			},
		},
		{
			block: "@ service post https://example.com\n- Content-Type: application/json",
			want: &Struct{
				Kind:    KindCommand,
				Name:    "service",
				Options: []string{"POST", "https://example.com"},
			},
		},
		{
			block: "? size\n- small\n- large",
			want: &Struct{
				Kind:    KindQuestion,
				Name:    "size",
				Options: []string{"small", "large"},
				Value:   []string{"small", "large"},
			},
		},
		{
			block: "/nlu: https://nlu.example.com",
			want: &Struct{
				Kind:  KindDirective,
				Name:  "nlu",
				Value: "https://nlu.example.com",
			},
		},
		{
			block: "/format: list\n<ul>\n</ul>",
			want: &Struct{
				Kind:    KindDirective,
				Name:    "format:list",
				Options: []string{"<ul>", "</ul>"},
				Value:   "<ul>\n</ul>",
			},
		},
		{
			block: "/plugin: shout\n```js\nreq.message = 1;\n```",
			want: &Struct{
				Kind:    KindDirective,
				Name:    "plugin:shout",
				Lang:    "js",
				Options: []string{"req.message = 1;"},
				Value:   "req.message = 1;",
			},
		},
	}

	for _, test := range tests {
		t.Run(test.block, func(t *testing.T) {
			s, err := ParseStruct(test.block)
			if err != nil {
				t.Fatal(err)
			}
			got := &Struct{
				Kind:       s.Kind,
				Name:       s.Name,
				Triggers:   s.Triggers,
				Replies:    s.Replies,
				Flows:      s.Flows,
				Conditions: s.Conditions,
				Options:    s.Options,
				Lang:       s.Lang,
				Value:      s.Value,
			}
			if diff := cmp.Diff(test.want, got); diff != "" {
				t.Fatalf("ParseStruct (-want +got):\n%s", diff)
			}
		})
	}
}

func TestParseCommandHeaders(t *testing.T) {
	s, err := ParseStruct("@ service POST https://example.com\n- Content-Type: application/json\nx-key: secret")
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{
		"Content-Type": "application/json",
		"x-key":        "secret",
	}
	if got := s.Headers(); !reflect.DeepEqual(got, want) {
		t.Fatalf("headers: %#v", got)
	}
}

func TestParseErrors(t *testing.T) {
	b := NewBot()
	err := b.Parse("+ hello\n- hi\n\n@ broken\n\n+ bye\n- bye")
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("%#v isn't a %T", err, pe)
	}
	if pe.Block != 1 {
		t.Fatalf("block %d", pe.Block)
	}
	var bc *BadCommand
	if !errors.As(err, &bc) {
		t.Fatalf("%#v doesn't wrap a %T", err, bc)
	}
	if b.Context.Dialogues.Len() != 0 {
		t.Fatal("registered something")
	}

	if _, err = ParseStruct("% what"); err == nil {
		t.Fatal("should have complained")
	}
	if _, err = ParseStruct("@ a b c d"); err == nil {
		t.Fatal("should have complained")
	}
}

func TestParseOverwrite(t *testing.T) {
	b := NewBot()
	if err := b.Parse("+ a\n- one\n\n+ b\n- two\n\n+ a\n- three"); err != nil {
		t.Fatal(err)
	}
	if got := b.Context.Dialogues.Names(); !reflect.DeepEqual(got, []string{"a", "b"}) {
		t.Fatalf("names: %v", got)
	}
	if s, _ := b.Context.Dialogues.Get("a"); s.Replies[0] != "three" {
		t.Fatalf("replies: %v", s.Replies)
	}
}
