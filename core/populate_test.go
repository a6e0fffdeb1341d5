package core

import (
	"context"
	"strings"
	"testing"
)

type upperFormatter struct {
	templates map[string]string
}

func (f *upperFormatter) Format(ctx context.Context, format, tmpl string, data map[string]interface{}) (string, error) {
	switch format {
	case "upper":
		return strings.ToUpper(Render(data["value"])), nil
	case "list":
		f.templates[format] = tmpl
		return "list:" + Render(data["value"]), nil
	}
	return "", ErrUnknownFormat
}

func TestPopulateDefinitions(t *testing.T) {
	b := newTestBot(t,
		"! name Alice",
		"",
		"! greeting",
		"- hi",
		"- hello",
		"- hey",
		"",
		"+ who are you",
		"- [greeting], my name is [name] [nobody]",
	)

	for i := 0; i < 20; i++ {
		req := say(t, b, nil, "who are you")
		parts := strings.SplitN(req.SpeechResponse, ",", 2)
		switch parts[0] {
		case "hi", "hello", "hey":
		default:
			t.Fatalf("reply: %s", req.SpeechResponse)
		}
		if parts[1] != " my name is Alice [nobody]" {
			t.Fatalf("reply: %s", req.SpeechResponse)
		}
	}
}

func TestPopulateVariables(t *testing.T) {
	b := NewBot()
	req := NewRequest("hello")
	req.Variables["name"] = "Vu"
	req.Variables["$1"] = "first"
	req.Variables["user"] = map[string]interface{}{
		"address": []interface{}{
			map[string]interface{}{"city": "Hanoi"},
		},
		"age": 20.0,
	}
	req.FlowsScope["email"] = "vu@example.com"

	tests := []struct {
		text string
		want string
	}{
		{"hi $name!", "hi Vu!"},
		{"hi ${name}.", "hi Vu."},
		{"hi #name", "hi Vu"},
		{"from $user.address[0].city", "from Hanoi"},
		{"age ${user.age}", "age 20"},
		{"got $1", "got first"},
		{"mail $email", "mail vu@example.com"},
		{"flows $flows.email", "flows vu@example.com"},
		{"said $input", "said hello"},
		{"who is $nobody?", "who is $nobody?"},
		{"first $user.address[3].city", "first $user.address[3].city"},
		{"addr $user.address", `addr [{"city":"Hanoi"}]`},
		{"Hi $name.Bye now", "Hi Vu.Bye now"},
		{"age $user.age.years", "age 20.years"},
		{"mail $email.Thanks", "mail vu@example.com.Thanks"},
	}

	ctx := context.Background()
	for _, test := range tests {
		t.Run(test.text, func(t *testing.T) {
			if got := b.Interpolate(ctx, test.text, req); got != test.want {
				t.Fatalf("got %q, wanted %q", got, test.want)
			}
		})
	}
}

func TestPopulateFormat(t *testing.T) {
	b := newTestBot(t,
		"/format: list",
		"<ul>{{#each value}}<li>{{this}}</li>{{/each}}</ul>",
	)
	f := &upperFormatter{templates: map[string]string{}}
	b.Formatter = f

	req := NewRequest("hello")
	req.Variables["name"] = "Alice"
	req.Variables["items"] = []interface{}{"a", "b"}

	ctx := context.Background()
	tests := []struct {
		text string
		want string
	}{
		{"$name:upper", "ALICE"},
		{"$name /format:upper", "ALICE"},
		{"$name:nope", "Alice:nope"},
		{"$name: hi", "Alice: hi"},
		{"$items /format:list", `list:["a","b"]`},
	}
	for _, test := range tests {
		if got := b.Interpolate(ctx, test.text, req); got != test.want {
			t.Fatalf("%s: got %q, wanted %q", test.text, got, test.want)
		}
	}
	if f.templates["list"] == "" {
		t.Fatal("template wasn't passed")
	}
}

func TestPopulateFlowReplies(t *testing.T) {
	b := newTestBot(t,
		"+ order",
		"~ item",
		"- Ordered $item.",
		"",
		"~ item",
		"- Which item?",
		"+ *{item}",
	)

	req := say(t, b, nil, "order")
	if got := b.replies(req); len(got) != 1 || got[0] != "Which item?" {
		t.Fatalf("replies: %v", got)
	}
	req = say(t, b, req, "coffee")
	if req.SpeechResponse != "Ordered coffee." {
		t.Fatalf("reply: %s", req.SpeechResponse)
	}
}
