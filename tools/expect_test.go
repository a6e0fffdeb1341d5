package tools

import (
	"context"
	"errors"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/yeuai/botscript/core"
	. "github.com/yeuai/botscript/util/testutil"
)

func expectBot(t *testing.T) *core.Bot {
	b := core.NewBot()
	err := b.Parse(Script(
		"+ hello bot",
		"- Hello human!",
		"",
		"+ my name is *{name}",
		"- Nice to meet you, $name.",
		"",
		"+ order",
		"~ item",
		"- Ordered $item.",
		"",
		"~ item",
		"- Which item?",
		"+ *{item}",
	))
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	return b
}

func TestSession(t *testing.T) {
	flowing, done := true, false
	s := &Session{
		SessionID: "test",
		Turns: []Turn{
			{Input: "hello bot", Reply: "Hello human!"},
			{Input: "my name is Vu", Pattern: `^Nice to meet you, \w+\.$`, Variables: map[string]interface{}{"name": "Vu"}},
			{Input: "order", Reply: "Which item?", Flowing: &flowing},
			{Input: "coffee", Reply: "Ordered coffee.", Flowing: &done},
		},
	}
	req, err := s.Run(context.Background(), expectBot(t))
	if err != nil {
		t.Fatal(err)
	}
	if req.SessionID != "test" {
		t.Fatalf("request: %s", JS(req))
	}
}

func TestSessionFailure(t *testing.T) {
	s := &Session{
		Turns: []Turn{
			{Input: "hello bot", Reply: "Hello human!"},
			{Input: "my name is Vu", Variables: map[string]interface{}{"name": "Bob", "age": 20}},
		},
	}
	_, err := s.Run(context.Background(), expectBot(t))
	var f *Failure
	if !errors.As(err, &f) {
		t.Fatalf("surprised by %v", err)
	}
	if f.Turn != 1 || f.Got == nil {
		t.Fatalf("failure: %s", JS(f))
	}
}

func TestReadSession(t *testing.T) {
	dir, err := ioutil.TempDir("", "expect")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	filename := filepath.Join(dir, "hello.yaml")
	src := `
doc: Say hello.
turns:
- input: hello bot
  reply: Hello human!
- input: my name is Vu
  variables:
    name: Vu
`
	if err := ioutil.WriteFile(filename, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}

	s, err := ReadSession(filename)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Turns) != 2 || s.Doc != "Say hello." {
		t.Fatalf("session: %s", JS(s))
	}
	if _, err := s.Run(context.Background(), expectBot(t)); err != nil {
		t.Fatal(err)
	}

	if _, err := ReadSession(filepath.Join(dir, "nope.yaml")); err == nil {
		t.Fatal("didn't protest")
	}
}
