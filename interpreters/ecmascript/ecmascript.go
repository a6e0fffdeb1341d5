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

// Package ecmascript provides a core.Evaluator and a core.Interpreter
// based on Goja, which is a Go implementation of ECMAScript 5.1+.
//
// See https://github.com/dop251/goja.
//
// Importing this package makes it the default evaluator for guards
// and conditions and the default sandbox for "js" and "javascript"
// plugin code.
package ecmascript

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/yeuai/botscript/core"

	"github.com/dlclark/regexp2"
	"github.com/dop251/goja"
	"github.com/gorhill/cronexpr"
	"go.uber.org/zap"
)

var (
	// InterruptedMessage is the string value of ErrInterrupted.
	InterruptedMessage = "RuntimeError: timeout"

	// ErrInterrupted is returned by Test and Exec if the
	// execution is interrupted.
	ErrInterrupted = errors.New(InterruptedMessage)

	// DefaultTimeout bounds a single evaluation or execution when
	// the caller's context doesn't have a deadline.
	DefaultTimeout = time.Second
)

// init makes this package's Evaluator and Interpreter the defaults.
func init() {
	core.DefaultEvaluator = NewEvaluator()
	i := NewInterpreter()
	core.DefaultInterpreters["js"] = i
	core.DefaultInterpreters["javascript"] = i
}

// identifier finds "$name" references in an expression.
var identifier = regexp2.MustCompile(`\$[A-Za-z_][A-Za-z0-9_]*`, regexp2.None)

// Evaluator implements core.Evaluator.
//
// Every scope key is visible as a global with a "$" prefix, so
// "$name == 'Vu'" and "$flows.age > 18" work.  References to unknown
// variables are undefined rather than errors.
type Evaluator struct {
	Timeout time.Duration
}

// NewEvaluator makes an Evaluator with the DefaultTimeout.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		Timeout: DefaultTimeout,
	}
}

// Test evaluates the expression as ECMAScript and returns its
// truthiness.
func (e *Evaluator) Test(ctx context.Context, expr string, scope map[string]interface{}) (ok bool, err error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return false, fmt.Errorf("empty expression")
	}

	o := newRuntime()
	for k, v := range scope {
		if !strings.HasPrefix(k, "$") {
			k = "$" + k
		}
		if err := o.Set(k, v); err != nil {
			return false, err
		}
	}
	for _, name := range references(expr) {
		if _, have := scope[name]; have {
			continue
		}
		if _, have := scope[strings.TrimPrefix(name, "$")]; have {
			continue
		}
		o.Set(name, goja.Undefined())
	}

	ctx, cancel := withTimeout(ctx, e.Timeout)
	defer cancel()

	v, err := run(ctx, o, func() (goja.Value, error) {
		return o.RunString(expr)
	})
	if err != nil {
		return false, err
	}
	return v.ToBoolean(), nil
}

func references(expr string) []string {
	var acc []string
	m, _ := identifier.FindStringMatch(expr)
	for m != nil {
		acc = append(acc, m.String())
		m, _ = identifier.FindNextMatch(m)
	}
	return acc
}

// Interpreter implements core.Interpreter.
//
// Plugin code is the body of a function, so it can "return".  The
// following globals are available:
//
//	req: the core.Request, with its JSON field names
//	ctx: definitions, dialogues, flows, commands, questions, and
//	  directives, each with get(name) and has(name)
//	utils: random(xs), clean(s), gensym(n), callHttpService(name),
//	  cronNext(s), esc(s)
//	logger: info, debug, warn, error
//
// If the code returns a function, that function is the plugin's
// post-processor, which is called with (req, ctx) after the reply is
// populated.
type Interpreter struct {
	Timeout time.Duration
}

// NewInterpreter makes an Interpreter with the DefaultTimeout.
func NewInterpreter() *Interpreter {
	return &Interpreter{
		Timeout: DefaultTimeout,
	}
}

func wrapSrc(src string) string {
	return fmt.Sprintf("(function() {\n%s\n}());\n", src)
}

// Compile calls goja.Compile.
func (i *Interpreter) Compile(ctx context.Context, code string) (interface{}, error) {
	code = wrapSrc(code)

	p, err := goja.Compile("", code, true)
	if err != nil {
		return nil, errors.New(err.Error() + ": " + code)
	}

	return p, nil
}

// Exec implements the Interpreter method of the same name.
func (i *Interpreter) Exec(ctx context.Context, compiled interface{}, env *core.Env) (core.PostProcessor, error) {
	p, is := compiled.(*goja.Program)
	if !is {
		return nil, fmt.Errorf("ECMAScript bad compilation: %T %#v", compiled, compiled)
	}
	if env == nil || env.Request == nil {
		return nil, fmt.Errorf("ECMAScript needs a request")
	}

	o := newRuntime()
	c := contextValue(env.Context)
	o.Set("req", env.Request)
	o.Set("ctx", c)
	o.Set("utils", utilsValue(o, env.Utils))
	o.Set("logger", loggerValue(env.Logger))

	tctx, cancel := withTimeout(ctx, i.Timeout)
	defer cancel()

	v, err := run(tctx, o, func() (goja.Value, error) {
		return o.RunProgram(p)
	})
	if err != nil {
		return nil, err
	}

	f, is := goja.AssertFunction(v)
	if !is {
		return nil, nil
	}

	timeout := i.Timeout
	logger := env.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(ctx context.Context, req *core.Request) {
		ctx, cancel := withTimeout(ctx, timeout)
		defer cancel()
		_, err := run(ctx, o, func() (goja.Value, error) {
			return f(goja.Undefined(), o.ToValue(req), o.ToValue(c))
		})
		if err != nil {
			logger.Warn("post-processor failed", zap.Error(err))
		}
	}, nil
}

func newRuntime() *goja.Runtime {
	o := goja.New()
	o.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	return o
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, has := ctx.Deadline(); has || d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// run calls f while watching ctx.  The runtime is interrupted if ctx
// is done first.  When run returns, the watcher has exited and the
// runtime's interrupt flag is clear, so the runtime can be used
// again.
func run(ctx context.Context, o *goja.Runtime, f func() (goja.Value, error)) (v goja.Value, err error) {
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		select {
		case <-ctx.Done():
			o.Interrupt(InterruptedMessage)
		case <-done:
		}
	}()

	defer func() {
		close(done)
		<-stopped
		o.ClearInterrupt()
		if r := recover(); r != nil {
			v, err = nil, fmt.Errorf("%v", r)
		}
		if _, is := err.(*goja.InterruptedError); is {
			err = ErrInterrupted
		}
	}()

	return f()
}

func protest(o *goja.Runtime, x interface{}) {
	panic(o.ToValue(x))
}

// table exposes a core.Table to plugin code.
type table struct {
	t *core.Table
}

func (t table) Get(name string) interface{} {
	if t.t == nil {
		return nil
	}
	s, have := t.t.Get(name)
	if !have {
		return nil
	}
	return s
}

func (t table) Has(name string) bool {
	return t.t != nil && t.t.Has(name)
}

func contextValue(c *core.Context) map[string]interface{} {
	if c == nil {
		c = core.NewContext()
	}
	return map[string]interface{}{
		"definitions": table{c.Definitions},
		"dialogues":   table{c.Dialogues},
		"flows":       table{c.Flows},
		"commands":    table{c.Commands},
		"questions":   table{c.Questions},
		"directives":  table{c.Directives},
	}
}

func utilsValue(o *goja.Runtime, given map[string]interface{}) map[string]interface{} {
	utils := make(map[string]interface{}, len(given)+2)
	for k, v := range given {
		utils[k] = v
	}

	// cronNext parses the given string as a crontab expression
	// using github.com/gorhill/cronexpr.  Returns the next time
	// as a string formatted in time.RFC3339Nano (UTC).
	utils["cronNext"] = func(x goja.Value) interface{} {
		cronExpr, is := x.Export().(string)
		if !is {
			protest(o, "not a string")
		}

		c, err := cronexpr.Parse(cronExpr)
		if err != nil {
			protest(o, err.Error())
		}
		return c.Next(time.Now()).UTC().Format(time.RFC3339Nano)
	}

	utils["esc"] = func(s string) string {
		return url.QueryEscape(s)
	}

	return utils
}

// logger exposes a zap.Logger to plugin code.
type logger struct {
	s *zap.SugaredLogger
}

func loggerValue(l *zap.Logger) logger {
	if l == nil {
		l = zap.NewNop()
	}
	return logger{l.Named("sandbox").Sugar()}
}

func (l logger) Info(args ...interface{})  { l.s.Info(args...) }
func (l logger) Debug(args ...interface{}) { l.s.Debug(args...) }
func (l logger) Warn(args ...interface{})  { l.s.Warn(args...) }
func (l logger) Error(args ...interface{}) { l.s.Error(args...) }
