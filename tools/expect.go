package tools

import (
	"context"
	"fmt"
	"io/ioutil"
	"strings"
	"time"

	"github.com/yeuai/botscript/core"

	"github.com/dlclark/regexp2"
	"github.com/google/go-cmp/cmp"
	"github.com/jsccast/yaml"
	"go.uber.org/zap"
)

// Handler is what a Session talks to.  Both core.Bot and
// core.UpdatableBot are Handlers.
type Handler interface {
	Handle(ctx context.Context, req *core.Request) *core.Request
}

// Turn is one message to the bot and what the reply should look like.
type Turn struct {
	// Doc is an opaque documentation string.
	Doc string `json:"doc,omitempty" yaml:"doc,omitempty"`

	// Input is the message to send.
	Input string `json:"input" yaml:"input"`

	// Reply, if not empty, must equal the bot's reply.
	Reply string `json:"reply,omitempty" yaml:"reply,omitempty"`

	// Pattern, if not empty, is a regular expression that the
	// bot's reply must match.
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty"`

	// Prompt, if not nil, must equal the reply's prompt.
	Prompt []string `json:"prompt,omitempty" yaml:"prompt,omitempty"`

	// Variables must be present in the reply's scope with these
	// (rendered) values.
	Variables map[string]interface{} `json:"variables,omitempty" yaml:"variables,omitempty"`

	// Flowing, if given, must match whether the bot is still in
	// a flow.
	Flowing *bool `json:"flowing,omitempty" yaml:"flowing,omitempty"`
}

// Session is a sequence of Turns in one conversation.
type Session struct {
	// Doc is an opaque documentation string.
	Doc string `json:"doc,omitempty" yaml:"doc,omitempty"`

	// Turns is sequence of Turns that this session will run.
	Turns []Turn `json:"turns" yaml:"turns"`

	// Timeout is the optional timeout for each Turn.
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// SessionID is given to every request.
	SessionID string `json:"sessionId,omitempty" yaml:"sessionId,omitempty"`

	Logger *zap.Logger `json:"-" yaml:"-"`
}

// ReadSession reads a Session from a YAML (or JSON) file.
func ReadSession(filename string) (*Session, error) {
	bs, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var s Session
	if err := yaml.Unmarshal(bs, &s); err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return &s, nil
}

// Failure describes a Turn that didn't go as expected.
type Failure struct {
	// Turn is the index of the Turn.
	Turn    int           `json:"turn"`
	Input   string        `json:"input"`
	Got     *core.Request `json:"got"`
	Problem string        `json:"problem"`
}

func (f *Failure) Error() string {
	return fmt.Sprintf("turn %d (%q): %s", f.Turn, f.Input, f.Problem)
}

// Run processes all the Turns in the Session.
//
// Returns the last request and a *Failure for the first Turn that
// wasn't satisfied.
func (s *Session) Run(ctx context.Context, h Handler) (*core.Request, error) {
	logger := s.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var req *core.Request
	for i, turn := range s.Turns {
		if req == nil {
			req = core.NewRequest(turn.Input)
			req.SessionID = s.SessionID
		} else {
			req = req.Enter(turn.Input)
		}

		tctx, cancel := ctx, context.CancelFunc(func() {})
		if 0 < s.Timeout {
			tctx, cancel = context.WithTimeout(ctx, s.Timeout)
		}
		req = h.Handle(tctx, req)
		cancel()

		logger.Debug("turn",
			zap.Int("turn", i),
			zap.String("input", turn.Input),
			zap.String("reply", req.SpeechResponse))

		if problem := turn.check(req); problem != "" {
			return req, &Failure{
				Turn:    i,
				Input:   turn.Input,
				Got:     req,
				Problem: problem,
			}
		}
	}
	return req, nil
}

// check returns a description of the first problem with the
// response, if any.
func (t *Turn) check(req *core.Request) string {
	if t.Reply != "" && req.SpeechResponse != t.Reply {
		return fmt.Sprintf("reply %q, wanted %q", req.SpeechResponse, t.Reply)
	}

	if t.Pattern != "" {
		re, err := regexp2.Compile(t.Pattern, regexp2.None)
		if err != nil {
			return fmt.Sprintf("bad pattern %q: %s", t.Pattern, err)
		}
		if ok, _ := re.MatchString(req.SpeechResponse); !ok {
			return fmt.Sprintf("reply %q doesn't match %q", req.SpeechResponse, t.Pattern)
		}
	}

	if t.Prompt != nil {
		if diff := cmp.Diff(t.Prompt, req.Prompt); diff != "" {
			return "prompt (-want +got):\n" + diff
		}
	}

	if 0 < len(t.Variables) {
		scope := req.Scope()
		var problems []string
		for k, want := range t.Variables {
			got, have := core.Lookup(scope, k)
			if !have {
				problems = append(problems, k+" is missing")
				continue
			}
			if core.Render(got) != core.Render(want) {
				problems = append(problems, fmt.Sprintf("%s is %s, wanted %s", k, core.Render(got), core.Render(want)))
			}
		}
		if 0 < len(problems) {
			return strings.Join(problems, "; ")
		}
	}

	if t.Flowing != nil && req.IsFlowing != *t.Flowing {
		return fmt.Sprintf("flowing %v, wanted %v", req.IsFlowing, *t.Flowing)
	}

	return ""
}
