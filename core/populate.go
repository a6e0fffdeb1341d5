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
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dlclark/regexp2"
	"go.uber.org/zap"
)

var (
	// [definition]
	definitionRef = regexp2.MustCompile(`\[([\w\- ]+)\]`, regexp2.None)

	// ${path}, $1, $path, or #path, optionally followed by a
	// format: " /format:name" or ":name".
	variableRef = regexp2.MustCompile(
		`(?:\$\{([^}]+)\}|\$(\d+)|[$#]([A-Za-z_]\w*(?:\.[A-Za-z_]\w*|\[\d+\])*))(\s*(?:/format:|:)([\w\-]+))?`,
		regexp2.None)

	pathSegment = regexp2.MustCompile(`[^.\[\]]+|\[(\d+)\]`, regexp2.None)
)

// populate picks a reply (if there isn't one already) and
// interpolates it.
func (b *Bot) populate(ctx context.Context, req *Request) {
	if req.SpeechResponse == "" {
		req.SpeechResponse = Random(b.replies(req))
	}
	req.SpeechResponse = b.Interpolate(ctx, req.SpeechResponse, req)
}

// replies are the candidates for the reply: the current flow's when
// flowing, else the original dialogue's or the current one's.
func (b *Bot) replies(req *Request) []string {
	if req.IsFlowing && req.CurrentFlow != "" {
		if s, have := b.Context.Flows.Get(req.CurrentFlow); have {
			return s.Replies
		}
	}
	for _, name := range []string{req.OriginalDialogue, req.CurrentDialogue} {
		if s, have := b.Context.Dialogue(name); have && 0 < len(s.Replies) {
			return s.Replies
		}
	}
	return nil
}

// Interpolate expands [definition] references and then variables in
// the text.
//
// Unresolved references are left as they are.
func (b *Bot) Interpolate(ctx context.Context, text string, req *Request) string {
	text = b.definitions(text)
	return b.variables(ctx, text, req.Scope())
}

func (b *Bot) definitions(text string) string {
	out, err := definitionRef.ReplaceFunc(text, func(m regexp2.Match) string {
		opts, have := b.Context.Options(m.GroupByNumber(1).String())
		if !have || len(opts) == 0 {
			return m.String()
		}
		return Random(opts)
	}, -1, -1)
	if err != nil {
		return text
	}
	return out
}

func (b *Bot) variables(ctx context.Context, text string, scope map[string]interface{}) string {
	out, err := variableRef.ReplaceFunc(text, func(m regexp2.Match) string {
		var (
			v     interface{}
			found bool
			rest  string
		)
		switch {
		case m.GroupByNumber(1).Length > 0:
			v, found = Lookup(scope, m.GroupByNumber(1).String())
		case m.GroupByNumber(2).Length > 0:
			v, found = scope["$"+m.GroupByNumber(2).String()]
		default:
			v, rest, found = lookupPrefix(scope, m.GroupByNumber(3).String())
		}
		if !found {
			return m.String()
		}

		suffix := m.GroupByNumber(4).String()
		if rest != "" {
			// "$name.Bye" is $name followed by text.
			return Render(v) + rest + suffix
		}
		if format := m.GroupByNumber(5).String(); format != "" {
			if s, ok := b.format(ctx, format, v, scope); ok {
				return s
			}
		}
		return Render(v) + suffix
	}, -1, -1)
	if err != nil {
		return text
	}
	return out
}

// lookupPrefix resolves the path or else its longest prefix that
// drops only trailing ".field" segments.  The dropped text is
// returned as rest.
func lookupPrefix(scope map[string]interface{}, path string) (v interface{}, rest string, found bool) {
	for {
		if v, found = Lookup(scope, path); found {
			return v, rest, true
		}
		i := strings.LastIndexByte(path, '.')
		if i < 0 || strings.HasSuffix(path, "]") {
			return nil, "", false
		}
		rest = path[i:] + rest
		path = path[:i]
	}
}

// format renders the value through the Formatter.
func (b *Bot) format(ctx context.Context, format string, v interface{}, scope map[string]interface{}) (string, bool) {
	if b.Formatter == nil {
		return "", false
	}
	tmpl, _ := b.Context.Directive("format:" + format)
	data := make(map[string]interface{}, len(scope)+1)
	for k, x := range scope {
		data[k] = x
	}
	data["value"] = v
	s, err := b.Formatter.Format(ctx, format, tmpl, data)
	if err != nil {
		if !errors.Is(err, ErrUnknownFormat) {
			b.Logger.Warn("format failed", zap.String("format", format), zap.Error(err))
		}
		return "", false
	}
	return s, true
}

// Lookup resolves a path like "name", "user.address[0].city", or
// "flows.age" in the scope.
//
// The first segment is looked up as given and then with a '$'
// prefix, so "flows.age" finds "$flows".
func Lookup(scope map[string]interface{}, path string) (interface{}, bool) {
	var segs []string
	m, _ := pathSegment.FindStringMatch(strings.TrimSpace(path))
	for m != nil {
		if g := m.GroupByNumber(1); g.Length > 0 {
			segs = append(segs, "["+g.String())
		} else {
			segs = append(segs, m.String())
		}
		m, _ = pathSegment.FindNextMatch(m)
	}
	if len(segs) == 0 {
		return nil, false
	}

	v, have := scope[segs[0]]
	if !have {
		if v, have = scope["$"+segs[0]]; !have {
			return nil, false
		}
	}

	for _, seg := range segs[1:] {
		if v, have = step(v, seg); !have {
			return nil, false
		}
	}
	return v, true
}

// step goes one segment further into the value.  Index segments
// start with '['.
func step(v interface{}, seg string) (interface{}, bool) {
	switch vv := v.(type) {
	case map[string]interface{}:
		x, have := vv[strings.TrimPrefix(seg, "[")]
		return x, have
	case map[string]string:
		x, have := vv[strings.TrimPrefix(seg, "[")]
		return x, have
	case []interface{}:
		if i, ok := index(seg, len(vv)); ok {
			return vv[i], true
		}
		return nil, false
	case []string:
		if i, ok := index(seg, len(vv)); ok {
			return vv[i], true
		}
		return nil, false
	case nil:
		return nil, false
	}

	// Something else (maybe a struct).  Try a generic version.
	x, err := Canonicalize(v)
	if err != nil {
		return nil, false
	}
	switch x.(type) {
	case map[string]interface{}, []interface{}:
		return step(x, seg)
	}
	return nil, false
}

func index(seg string, n int) (int, bool) {
	if !strings.HasPrefix(seg, "[") {
		return 0, false
	}
	i, err := strconv.Atoi(seg[1:])
	if err != nil || i < 0 || n <= i {
		return 0, false
	}
	return i, true
}

// Render makes a string for a value.  Strings are themselves and
// everything else is JSON.
func Render(v interface{}) string {
	switch vv := v.(type) {
	case string:
		return vv
	case nil:
		return ""
	case fmt.Stringer:
		return vv.String()
	}
	js, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(js)
}
