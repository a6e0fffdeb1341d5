package includes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeuai/botscript/core"
	. "github.com/yeuai/botscript/util/testutil"
)

func TestFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hi.bot"), []byte("+ hi\n- hello\n"), 0644))

	ctx := context.Background()
	p := Files(dir)
	for _, loc := range []string{"hi.bot", "file://hi.bot"} {
		src, err := p.Load(ctx, loc)
		require.NoError(t, err)
		assert.Equal(t, "+ hi\n- hello\n", src)
	}
	_, err := p.Load(ctx, "nope.bot")
	require.Error(t, err)
}

func TestHTTP(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/hi.bot" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, "+ hi\n- hello\n")
	}))
	defer ts.Close()

	ctx := context.Background()
	p := Standard(t.TempDir())
	src, err := p.Load(ctx, ts.URL+"/hi.bot")
	require.NoError(t, err)
	assert.Equal(t, "+ hi\n- hello\n", src)

	_, err = p.Load(ctx, ts.URL+"/nope.bot")
	require.Error(t, err)

	_, err = p.Load(ctx, "gopher://hi.bot")
	require.Error(t, err)
}

func TestCache(t *testing.T) {
	srcs := map[string]string{
		"hi": "+ hi\n- hello\n",
	}
	c := NewCache(filepath.Join(t.TempDir(), "includes.db"), Map(srcs))
	require.NoError(t, c.Open())
	defer c.Close()

	ctx := context.Background()
	src, err := c.Load(ctx, "hi")
	require.NoError(t, err)
	assert.Equal(t, srcs["hi"], src)

	delete(srcs, "hi")
	src, err = c.Load(ctx, "hi")
	require.NoError(t, err, "should have used the cached copy")
	assert.Equal(t, "+ hi\n- hello\n", src)

	_, err = c.Load(ctx, "never")
	require.Error(t, err)

	locs, err := c.Locations()
	require.NoError(t, err)
	assert.Equal(t, []string{"hi"}, locs)
}

func TestBotIncludes(t *testing.T) {
	b := core.NewBot()
	b.Loader = Map(map[string]string{
		"greetings": Script(
			"/include:",
			"- farewells",
			"- missing",
			"",
			"+ hi",
			"- hello",
		),
		"farewells": Script(
			"+ bye",
			"- see you",
		),
	})
	require.NoError(t, b.Parse(Script(
		"/include: greetings",
		"",
		"+ hey",
		"- hey yourself",
	)))
	require.NoError(t, b.Init(context.Background()))

	ctx := context.Background()
	for msg, want := range map[string]string{
		"hey": "hey yourself",
		"hi":  "hello",
		"bye": "see you",
	} {
		req := b.Handle(ctx, core.NewRequest(msg))
		assert.Equal(t, want, req.SpeechResponse, msg)
	}
}

func TestBotIncludesNested(t *testing.T) {
	b := core.NewBot()
	b.Loader = Map(map[string]string{
		"a": Script(
			"/include: a2",
			"",
			"+ from a",
			"- a",
		),
		"b": Script(
			"/include: b2",
			"",
			"+ from b",
			"- b",
		),
		"a2": Script(
			"+ from a2",
			"- a2",
		),
		"b2": Script(
			"/include: a",
			"",
			"+ from b2",
			"- b2",
		),
	})
	require.NoError(t, b.Parse(Script(
		"/include:",
		"- a",
		"- b",
		"",
		"+ hi",
		"- hello",
	)))
	require.NoError(t, b.Init(context.Background()))

	assert.ElementsMatch(t,
		[]string{"hi", "from a", "from b", "from a2", "from b2"},
		b.Context.Dialogues.Names())

	ctx := context.Background()
	for _, msg := range []string{"from a", "from b", "from a2", "from b2"} {
		req := b.Handle(ctx, core.NewRequest(msg))
		assert.Equal(t, msg[len("from "):], req.SpeechResponse, msg)
	}
}
