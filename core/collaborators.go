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
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// Evaluator tests guard and condition expressions.
//
// The scope is a Request's Scope, possibly extended with captures.
type Evaluator interface {
	Test(ctx context.Context, expr string, scope map[string]interface{}) (bool, error)
}

// DefaultEvaluator is used by a Bot without its own Evaluator.
//
// An interpreter package can set this variable in its init().
var DefaultEvaluator Evaluator = LiteralEvaluator{}

// LiteralEvaluator only understands "true" and "false".
type LiteralEvaluator struct{}

func (e LiteralEvaluator) Test(ctx context.Context, expr string, scope map[string]interface{}) (bool, error) {
	switch strings.TrimSpace(expr) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, fmt.Errorf("can't evaluate '%s'", expr)
}

// Env is what plugin code gets to work with.
type Env struct {
	Request *Request
	Context *Context

	// Utils are helper functions for plugin code.
	Utils map[string]interface{}

	Logger *zap.Logger
}

// Interpreter compiles and executes plugin code.
//
// The result of executing plugin code can be a PostProcessor, which
// runs after the reply is populated.
type Interpreter interface {
	// Compile can return anything that Exec can use.
	Compile(ctx context.Context, code string) (interface{}, error)

	// Exec runs compiled code.  Implementations should bound
	// execution time.
	Exec(ctx context.Context, compiled interface{}, env *Env) (PostProcessor, error)
}

// InterpretersMap maps fence languages to Interpreters.
type InterpretersMap map[string]Interpreter

// Find the Interpreter for the language.  The empty language is "js".
func (m InterpretersMap) Find(lang string) (Interpreter, bool) {
	if lang == "" {
		lang = "js"
	}
	i, have := m[lang]
	return i, have
}

// DefaultInterpreters are used by a Bot without its own.
var DefaultInterpreters = InterpretersMap{}

// Invoker calls commands.
//
// The result is merged into the Request's variables.
type Invoker interface {
	Invoke(ctx context.Context, cmd *Struct, req *Request) (map[string]interface{}, error)
}

// Formatter renders a value for a "/format:name" directive or a
// named built-in format.
//
// The template is the directive's body, which is empty when there
// isn't a directive.  A Formatter that doesn't know a format without
// a template should return ErrUnknownFormat.
type Formatter interface {
	Format(ctx context.Context, format, template string, data map[string]interface{}) (string, error)
}

// Loader fetches the script at the given location for "/include".
type Loader interface {
	Load(ctx context.Context, location string) (string, error)
}
