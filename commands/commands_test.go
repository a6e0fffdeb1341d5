package commands

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeuai/botscript/core"
)

func command(t *testing.T, head string, body ...string) *core.Struct {
	src := "@ " + head + "\n"
	for _, line := range body {
		src += line + "\n"
	}
	s, err := core.ParseStruct(src)
	require.NoError(t, err)
	return s
}

func TestInvokeGet(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "secret", r.Header.Get("X-Token"))
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"message":"pong","n":3}`)
	}))
	defer ts.Close()

	i, err := NewInvoker()
	require.NoError(t, err)

	cmd := command(t, "ping "+ts.URL+"/ping", "X-Token: secret")
	result, err := i.Invoke(context.Background(), cmd, core.NewRequest("ping"))
	require.NoError(t, err)
	assert.Equal(t, "pong", result["message"])
	assert.Equal(t, 3.0, result["n"])
}

func TestInvokeMethods(t *testing.T) {
	var seen []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPut {
			var req core.Request
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "put me", req.Message)
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		}
		io.WriteString(w, `{"message":"result ok"}`)
	}))
	defer ts.Close()

	i, err := NewInvoker()
	require.NoError(t, err)
	i.BaseURL = ts.URL

	ctx := context.Background()
	_, err = i.Invoke(ctx, command(t, "service1 put /api/http/put"), core.NewRequest("put me"))
	require.NoError(t, err)
	_, err = i.Invoke(ctx, command(t, "service2 delete /api/http/delete"), core.NewRequest("delete me"))
	require.NoError(t, err)

	assert.Equal(t, []string{"PUT /api/http/put", "DELETE /api/http/delete"}, seen)
}

func TestInvokeStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusTeapot)
	}))
	defer ts.Close()

	i, err := NewInvoker()
	require.NoError(t, err)

	_, err = i.Invoke(context.Background(), command(t, "tea "+ts.URL), nil)
	var se *StatusError
	require.True(t, errors.As(err, &se), "error: %v", err)
	assert.Equal(t, http.StatusTeapot, se.StatusCode)
	assert.Equal(t, "tea", se.Command)
}

func TestInvokeTimeout(t *testing.T) {
	block := make(chan struct{})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()
	defer close(block)

	i, err := NewInvoker()
	require.NoError(t, err)
	i.Timeout = 20 * time.Millisecond

	_, err = i.Invoke(context.Background(), command(t, "slow "+ts.URL), nil)
	require.Error(t, err)
}

func TestInvokeNoURL(t *testing.T) {
	i := &Invoker{}
	_, err := i.Invoke(context.Background(), &core.Struct{Kind: core.KindCommand, Name: "empty"}, nil)
	require.Error(t, err)
}

func TestParse(t *testing.T) {
	m, err := Parse("application/json", []byte(`[1,2]`))
	require.NoError(t, err)
	assert.Equal(t, []interface{}{1.0, 2.0}, m["value"])

	m, err = Parse("application/x-yaml", []byte("intent: greeting\nscore: high\n"))
	require.NoError(t, err)
	assert.Equal(t, "greeting", m["intent"])

	m, err = Parse("", nil)
	require.NoError(t, err)
	assert.Empty(t, m)

	_, err = Parse("application/json", []byte(`{`))
	require.Error(t, err)
}

func TestInvokeFromBot(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"message":"pong"}`)
	}))
	defer ts.Close()

	b := core.NewBot()
	require.NoError(t, b.Parse("@ service1 "+ts.URL+"\n\n+ ping\n* true @> service1\n- Service says $message\n"))
	i, err := NewInvoker()
	require.NoError(t, err)
	b.Invoker = i
	require.NoError(t, b.Init(context.Background()))

	req := b.Handle(context.Background(), core.NewRequest("ping"))
	assert.Equal(t, "Service says pong", req.SpeechResponse)
}

func TestInvokeTemplates(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/weather", r.URL.Path)
		assert.Equal(t, "Hanoi", r.URL.Query().Get("city"))
		assert.Equal(t, "Bearer t0k3n", r.Header.Get("Authorization"))
		io.WriteString(w, `{"forecast":"rain"}`)
	}))
	defer ts.Close()

	i, err := NewInvoker()
	require.NoError(t, err)
	i.BaseURL = ts.URL

	req := core.NewRequest("weather in Hanoi")
	req.Variables["city"] = "Hanoi"
	req.Variables["token"] = "t0k3n"

	cmd := command(t, "weather get /api/weather?city={{city}}", "Authorization: Bearer {{token}}")
	result, err := i.Invoke(context.Background(), cmd, req)
	require.NoError(t, err)
	assert.Equal(t, "rain", result["forecast"])

	target, err := i.Resolve(cmd, nil)
	require.NoError(t, err)
	assert.Equal(t, ts.URL+"/api/weather?city={{city}}", target)
}
