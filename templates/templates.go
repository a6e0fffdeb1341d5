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

// Package templates renders "/format:name" directives as Handlebars
// templates and provides a few built-in formats.
//
// A template sees the request's scope plus "value", which is the
// value being formatted:
//
//	/format: bold
//	<strong>{{value}}</strong>
//
//	+ bold *{me}
//	- $me :bold
package templates

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/yeuai/botscript/core"

	"github.com/aymerick/raymond"
	md "github.com/russross/blackfriday/v2"
	"go.uber.org/zap"
)

func init() {
	raymond.RegisterHelper("json", func(x interface{}) raymond.SafeString {
		js, err := json.Marshal(x)
		if err != nil {
			return raymond.SafeString("")
		}
		return raymond.SafeString(js)
	})
}

// Builtin is a format that doesn't need a template.
type Builtin func(v interface{}) (string, error)

// Builtins are the formats available without directives.  A
// directive with the same name takes precedence.
var Builtins = map[string]Builtin{
	"json": func(v interface{}) (string, error) {
		js, err := json.Marshal(v)
		if err != nil {
			return "", err
		}
		return string(js), nil
	},
	"markdown": func(v interface{}) (string, error) {
		html := md.Run([]byte(core.Render(v)))
		return strings.TrimSpace(string(html)), nil
	},
}

// Formatter implements core.Formatter.
//
// Parsed templates are cached by source.
type Formatter struct {
	Logger *zap.Logger

	mu        sync.Mutex
	templates map[string]*raymond.Template
}

// NewFormatter makes a Formatter with an empty template cache.
func NewFormatter() *Formatter {
	return &Formatter{
		Logger:    zap.NewNop(),
		templates: make(map[string]*raymond.Template),
	}
}

func (f *Formatter) template(src string) (*raymond.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.templates == nil {
		f.templates = make(map[string]*raymond.Template)
	}
	if t, have := f.templates[src]; have {
		return t, nil
	}
	t, err := raymond.Parse(src)
	if err != nil {
		return nil, err
	}
	f.templates[src] = t
	return t, nil
}

// Format implements core.Formatter.
func (f *Formatter) Format(ctx context.Context, format, tmpl string, data map[string]interface{}) (string, error) {
	if tmpl == "" {
		b, have := Builtins[format]
		if !have {
			return "", core.ErrUnknownFormat
		}
		return b(data["value"])
	}

	t, err := f.template(tmpl)
	if err != nil {
		return "", err
	}
	s, err := t.Exec(data)
	if err != nil {
		return "", err
	}
	if f.Logger != nil {
		f.Logger.Debug("formatted", zap.String("format", format))
	}
	return strings.TrimSpace(s), nil
}

// Interpolate renders a template with the data.
//
// Command URLs and header values go through this to refer to
// variables: "/api/url?query={{param}}".
func Interpolate(tmpl string, data interface{}) (string, error) {
	return raymond.Render(tmpl, data)
}
