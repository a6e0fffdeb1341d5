package core

import (
	"context"
	"fmt"
	"testing"
	"time"

	. "github.com/yeuai/botscript/util/testutil"
)

func TestPluginsBuiltin(t *testing.T) {
	then := time.Date(2019, 3, 4, 9, 5, 0, 0, time.UTC)
	now = func() time.Time { return then }
	defer func() { now = time.Now }()

	b := newTestBot(t,
		"> addTimeNow",
		"> noReplyHandle",
		"* true",
		"",
		"~ name",
		"- what is your name?",
		"+ my name is *{name}",
		"",
		"+ what is my name",
		"~ name",
		"- your name is $name",
		"",
		"+ what time is it",
		"- it is $time",
	)

	if b.Context.Plugins.Len() != 2 {
		t.Fatalf("plugins: %v", b.Context.Plugins.Names())
	}

	req := say(t, b, nil, "what time is it")
	if req.SpeechResponse != "it is 9:5" {
		t.Fatalf("reply: %s", req.SpeechResponse)
	}

	req = say(t, b, nil, "how is it today")
	if req.SpeechResponse != DontUnderstand {
		t.Fatalf("reply: %s", req.SpeechResponse)
	}
	if req.Previous[0] != DontUnderstand {
		t.Fatalf("previous: %v", req.Previous)
	}

	req = say(t, b, nil, "what is my name")
	if req.SpeechResponse != "what is your name?" {
		t.Fatalf("reply: %s", req.SpeechResponse)
	}
	req = say(t, b, req, "what?")
	if req.SpeechResponse != "what is your name?" {
		t.Fatalf("reply: %s", req.SpeechResponse)
	}
}

func TestPluginsRegistered(t *testing.T) {
	b := NewBot()
	b.Evaluator = testEvaluator{}
	err := b.Parse(Script(
		"! name Alice",
		"",
		"> human name",
		"> unknown plugin",
		"",
		"+ what is your name",
		"- my name is [name]",
		"",
		"+ what is my name",
		"- your name is $name",
	))
	if err != nil {
		t.Fatal(err)
	}
	b.Plugin("human name", func(ctx context.Context, req *Request, c *Context) (PostProcessor, error) {
		req.Variables["name"] = "Bob"
		req.Variables["intent"] = "ask name"
		return nil, nil
	})
	if err := b.Init(context.Background()); err != nil {
		t.Fatal(err)
	}

	req := say(t, b, nil, "what is your name?")
	if req.SpeechResponse != "my name is Alice" {
		t.Fatalf("reply: %s", req.SpeechResponse)
	}
	if req.Variables["intent"] != "ask name" {
		t.Fatalf("variables: %s", JS(req.Variables))
	}

	req = say(t, b, nil, "what is my name")
	if req.SpeechResponse != "your name is Bob" {
		t.Fatalf("reply: %s", req.SpeechResponse)
	}
}

func TestPluginsConditions(t *testing.T) {
	b := NewBot()
	b.Evaluator = testEvaluator{}
	err := b.Parse(Script(
		"> human name",
		"* true",
		"* $fired != true",
		"",
		"+ what is your name",
		"- my name is $flows.name",
	))
	if err != nil {
		t.Fatal(err)
	}
	calls := 0
	b.Plugin("human name", func(ctx context.Context, req *Request, c *Context) (PostProcessor, error) {
		calls++
		req.Variables["fired"] = "true"
		req.FlowsScope["name"] = "Bob"
		return func(ctx context.Context, req *Request) {
			req.SpeechResponse += "!"
		}, nil
	})
	if err := b.Init(context.Background()); err != nil {
		t.Fatal(err)
	}

	req := say(t, b, nil, "what is your name")
	if req.SpeechResponse != "my name is Bob!" {
		t.Fatalf("reply: %s", req.SpeechResponse)
	}

	req = say(t, b, req, "what is your name")
	if calls != 1 {
		t.Fatalf("calls: %d", calls)
	}
	if req.SpeechResponse != "my name is Bob" {
		t.Fatalf("reply: %s", req.SpeechResponse)
	}
}

func TestPluginsFailure(t *testing.T) {
	b := NewBot()
	if err := b.Parse("> flaky\n\n> boom\n\n+ hi\n- hello\n"); err != nil {
		t.Fatal(err)
	}
	b.Plugin("flaky", func(ctx context.Context, req *Request, c *Context) (PostProcessor, error) {
		return nil, fmt.Errorf("flaked")
	})
	b.Plugin("boom", func(ctx context.Context, req *Request, c *Context) (PostProcessor, error) {
		panic("boom")
	})
	if err := b.Init(context.Background()); err != nil {
		t.Fatal(err)
	}

	if req := say(t, b, nil, "hi"); req.SpeechResponse != "hello" {
		t.Fatalf("reply: %s", req.SpeechResponse)
	}
}

func TestPluginsNormalize(t *testing.T) {
	req := NewRequest("  what   is your name?!  ")
	if _, err := normalize(context.Background(), req, NewContext()); err != nil {
		t.Fatal(err)
	}
	if req.Message != "what is your name" {
		t.Fatalf("message: %q", req.Message)
	}

	req = NewRequest("I am 20")
	normalize(context.Background(), req, NewContext())
	if req.Message != "I am 20" {
		t.Fatalf("message: %q", req.Message)
	}
}

func TestPluginsTransformToNumber(t *testing.T) {
	req := NewRequest("tôi có hai con mèo và Ba con chó")
	transformToNumber(context.Background(), req, NewContext())
	if req.Message != "tôi có 2 con mèo và 3 con chó" {
		t.Fatalf("message: %q", req.Message)
	}
}

func TestPluginsNLU(t *testing.T) {
	b := NewBot()
	err := b.Parse(Script(
		"> nlu",
		"",
		"/nlu: understand",
		"",
		"@ understand POST https://nlu.example.com/parse",
		"",
		"+ intent: greeting",
		"- Hallo!",
		"",
		"+ intent: bye",
		"- Tschüss!",
	))
	if err != nil {
		t.Fatal(err)
	}

	b.Invoker = invokerFunc(func(ctx context.Context, cmd *Struct, req *Request) (map[string]interface{}, error) {
		if cmd.Name != "understand" || cmd.Method() != "POST" {
			return nil, fmt.Errorf("wrong command %s", JS(cmd))
		}
		if req.Message == "hello there" {
			return map[string]interface{}{
				"intent":   "greeting",
				"entities": map[string]interface{}{"who": "there"},
			}, nil
		}
		return map[string]interface{}{}, nil
	})
	if err := b.Init(context.Background()); err != nil {
		t.Fatal(err)
	}

	req := say(t, b, nil, "hello there")
	if req.Intent != "greeting" || req.SpeechResponse != "Hallo!" {
		t.Fatalf("request: %s", JS(req))
	}
	if req.Entities["who"] != "there" {
		t.Fatalf("entities: %s", JS(req.Entities))
	}

	req = say(t, b, req, "whatever")
	if req.Intent != UnknownIntent || req.SpeechResponse != NoReply {
		t.Fatalf("request: %s", JS(req))
	}
}

func TestPluginsDirective(t *testing.T) {
	b := NewBot()
	err := b.Parse(Script(
		"> shout",
		"",
		"/plugin: shout",
		"```fake",
		"upper",
		"```",
		"",
		"+ hi",
		"- hello",
	))
	if err != nil {
		t.Fatal(err)
	}
	b.Interpreters = InterpretersMap{
		"fake": fakeInterpreter{},
	}
	if err := b.Init(context.Background()); err != nil {
		t.Fatal(err)
	}

	if req := say(t, b, nil, "hi"); req.SpeechResponse != "HELLO" {
		t.Fatalf("reply: %s", req.SpeechResponse)
	}
}

// fakeInterpreter's only program is "upper", which makes a
// PostProcessor that capitalizes the reply.
type fakeInterpreter struct{}

func (i fakeInterpreter) Compile(ctx context.Context, code string) (interface{}, error) {
	if code != "upper" {
		return nil, fmt.Errorf("can't compile %q", code)
	}
	return code, nil
}

func (i fakeInterpreter) Exec(ctx context.Context, compiled interface{}, env *Env) (PostProcessor, error) {
	if env.Request == nil || env.Context == nil {
		return nil, fmt.Errorf("bad env")
	}
	return func(ctx context.Context, req *Request) {
		req.SpeechResponse = upper(req.SpeechResponse)
	}, nil
}

func upper(s string) string {
	bs := []byte(s)
	for i, b := range bs {
		if 'a' <= b && b <= 'z' {
			bs[i] = b - 'a' + 'A'
		}
	}
	return string(bs)
}
