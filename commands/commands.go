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

// Package commands invokes "@ name [METHOD] url" commands over HTTP.
package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/yeuai/botscript/core"
	"github.com/yeuai/botscript/templates"

	"github.com/jsccast/yaml"
	"go.uber.org/zap"
	"golang.org/x/net/context/ctxhttp"
	"golang.org/x/net/publicsuffix"
)

// DefaultTimeout bounds a single command call.
var DefaultTimeout = 10 * time.Second

// StatusError reports a non-2xx response.
type StatusError struct {
	Command    string
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("command %s: status %s", e.Command, e.Status)
}

// Invoker implements core.Invoker with HTTP requests.
//
// A command's URL and header values are Handlebars templates over the
// request's scope, so "/api/weather?city={{city}}" uses $city.
//
// The request body for POST, PUT, and PATCH is the JSON
// representation of the core.Request.  A response body is parsed as
// YAML when its content type says so and as JSON otherwise.  A body
// that isn't an object is returned under "value".
type Invoker struct {
	Client *http.Client

	// BaseURL, if not empty, resolves relative command URLs.
	BaseURL string

	// Headers are added to every request before the command's
	// own headers.
	Headers map[string]string

	Timeout time.Duration

	Logger *zap.Logger
}

// NewInvoker makes an Invoker with its own cookie jar, so services
// that use sessions see the same one across commands.
func NewInvoker() (*Invoker, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, err
	}
	return &Invoker{
		Client: &http.Client{
			Jar: jar,
		},
		Timeout: DefaultTimeout,
		Logger:  zap.NewNop(),
	}, nil
}

func (i *Invoker) logger() *zap.Logger {
	if i.Logger == nil {
		return zap.NewNop()
	}
	return i.Logger
}

// render interpolates the request's scope into a URL or a header
// value.
func render(s string, req *core.Request) (string, error) {
	if req == nil || !strings.Contains(s, "{{") {
		return s, nil
	}
	return templates.Interpolate(s, req.Scope())
}

// Resolve returns the absolute URL for the command.  The request can
// be nil.
func (i *Invoker) Resolve(cmd *core.Struct, req *core.Request) (string, error) {
	raw := cmd.URL()
	if raw == "" {
		return "", fmt.Errorf("command %s has no url", cmd.Name)
	}
	raw, err := render(raw, req)
	if err != nil {
		return "", fmt.Errorf("command %s url: %w", cmd.Name, err)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.IsAbs() || i.BaseURL == "" {
		return u.String(), nil
	}
	base, err := url.Parse(i.BaseURL)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(u).String(), nil
}

func hasBody(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
		return true
	}
	return false
}

// Invoke implements core.Invoker.
func (i *Invoker) Invoke(ctx context.Context, cmd *core.Struct, req *core.Request) (map[string]interface{}, error) {
	target, err := i.Resolve(cmd, req)
	if err != nil {
		return nil, err
	}
	method := cmd.Method()

	var body io.Reader
	if hasBody(method) && req != nil {
		js, err := json.Marshal(req)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(js)
	}

	r, err := http.NewRequest(method, target, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	r.Header.Set("Accept", "application/json")
	for k, v := range i.Headers {
		r.Header.Set(k, v)
	}
	for k, v := range cmd.Headers() {
		if v, err = render(v, req); err != nil {
			return nil, fmt.Errorf("command %s header %s: %w", cmd.Name, k, err)
		}
		r.Header.Set(k, v)
	}

	if i.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.Timeout)
		defer cancel()
	}

	client := i.Client
	if client == nil {
		client = http.DefaultClient
	}

	then := time.Now()
	resp, err := ctxhttp.Do(ctx, client, r)
	if err != nil {
		return nil, fmt.Errorf("command %s: %w", cmd.Name, err)
	}
	defer resp.Body.Close()

	bs, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("command %s: %w", cmd.Name, err)
	}

	i.logger().Debug("command",
		zap.String("name", cmd.Name),
		zap.String("method", method),
		zap.String("url", target),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(then)))

	if resp.StatusCode < 200 || 300 <= resp.StatusCode {
		return nil, &StatusError{
			Command:    cmd.Name,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(bs),
		}
	}

	return Parse(resp.Header.Get("Content-Type"), bs)
}

// Parse decodes a response body.
func Parse(contentType string, bs []byte) (map[string]interface{}, error) {
	if len(bytes.TrimSpace(bs)) == 0 {
		return map[string]interface{}{}, nil
	}

	var x interface{}
	if strings.Contains(contentType, "yaml") {
		if err := yaml.Unmarshal(bs, &x); err != nil {
			return nil, err
		}
	} else if err := json.Unmarshal(bs, &x); err != nil {
		return nil, err
	}

	if m, is := x.(map[string]interface{}); is {
		return m, nil
	}
	return map[string]interface{}{
		"value": x,
	}, nil
}
