package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	config "github.com/hanpama/contentgraph/internal/config"
	docstore "github.com/hanpama/contentgraph/internal/docstore"
	resolvers "github.com/hanpama/contentgraph/internal/resolvers"
)

func TestVersion(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"version"}, &out, io.Discard))
	require.Equal(t, "contentgraph dev\n", out.String())
}

func TestPrintSchema(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, run([]string{"print-schema"}, &out, io.Discard))
	require.Equal(t, resolvers.SDL, out.String())
}

func TestServeRejectsInvalidConfig(t *testing.T) {
	err := run([]string{"serve", "--store.driver=mongo"}, io.Discard, io.Discard)
	require.ErrorContains(t, err, "mongo")
}

func TestUnknownCommand(t *testing.T) {
	require.Error(t, run([]string{"compile"}, io.Discard, io.Discard))
}

func testConfig(t *testing.T, args ...string) *config.Config {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	v := viper.New()
	require.NoError(t, config.RegisterFlags(fs, v))
	require.NoError(t, fs.Parse(append([]string{"--store.driver=sqlite", "--store.sqlite.path=:memory:"}, args...)))
	cfg, err := config.Load(v, "")
	require.NoError(t, err)
	return cfg
}

func TestStoreOpenFailureIsFatal(t *testing.T) {
	cfg := testConfig(t, "--store.sqlite.path="+filepath.Join(t.TempDir(), "missing", "dir", "db.sqlite"))
	_, err := newApp(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	require.True(t, errors.Is(err, docstore.ErrUnavailable), "got %v", err)
}

type client struct {
	t    *testing.T
	http *http.Client
	base string
}

func (c *client) post(path string, body any) (*http.Response, map[string]any) {
	c.t.Helper()
	b, err := json.Marshal(body)
	require.NoError(c.t, err)
	resp, err := c.http.Post(c.base+path, "application/json", bytes.NewReader(b))
	require.NoError(c.t, err)
	defer resp.Body.Close()
	var out map[string]any
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(c.t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return resp, out
}

func (c *client) graphql(query string, vars map[string]any) map[string]any {
	c.t.Helper()
	resp, out := c.post("/graphql", map[string]any{"query": query, "variables": vars})
	require.Equal(c.t, http.StatusOK, resp.StatusCode)
	return out
}

func TestAppEndToEnd(t *testing.T) {
	a, err := newApp(context.Background(), testConfig(t), zap.NewNop())
	require.NoError(t, err)
	srv := httptest.NewServer(a.handler)
	t.Cleanup(func() {
		srv.Close()
		require.NoError(t, a.close(context.Background()))
	})

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	c := &client{t: t, http: &http.Client{Jar: jar}, base: srv.URL}

	// anonymous writes are refused
	out := c.graphql(`mutation { createPost(title: "x") { id } }`, nil)
	require.Equal(t, map[string]any{"createPost": nil}, out["data"])
	errs := out["errors"].([]any)
	require.Equal(t, "User not logged in.", errs[0].(map[string]any)["message"])

	resp, reg := c.post("/auth/register", map[string]any{"username": "alice", "password": "correct horse"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	userID := reg["user"].(map[string]any)["id"].(string)

	out = c.graphql(`{ me { id } }`, nil)
	require.Equal(t, map[string]any{"me": map[string]any{"id": userID}}, out["data"])

	out = c.graphql(`mutation($t: String) { createPost(title: $t, content: "body") { id authorId title } }`,
		map[string]any{"t": "Hello"})
	post := out["data"].(map[string]any)["createPost"].(map[string]any)
	require.Equal(t, userID, post["authorId"])
	require.Equal(t, "Hello", post["title"])

	out = c.graphql(`mutation($p: ID!) { createComment(postId: $p, content: "first") { authorId post { title } } }`,
		map[string]any{"p": post["id"]})
	require.Equal(t, map[string]any{"createComment": map[string]any{
		"authorId": userID,
		"post":     map[string]any{"title": "Hello"},
	}}, out["data"])

	out = c.graphql(`{ posts { title author { id } comments { content } } }`, nil)
	require.Equal(t, map[string]any{"posts": []any{map[string]any{
		"title":    "Hello",
		"author":   map[string]any{"id": userID},
		"comments": []any{map[string]any{"content": "first"}},
	}}}, out["data"])

	resp, _ = c.post("/auth/logout", map[string]any{})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)
	out = c.graphql(`{ me { id } }`, nil)
	require.Equal(t, map[string]any{"me": nil}, out["data"])

	mresp, err := c.http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer mresp.Body.Close()
	body, err := io.ReadAll(mresp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), `contentgraph_graphql_operations_total{outcome="ok",type="mutation"} 2`), string(body))
	require.NotEmpty(t, mresp.Header.Get("X-Request-Id"))
}

func TestAppCORS(t *testing.T) {
	a, err := newApp(context.Background(), testConfig(t, "--server.origins=http://app.example.com"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.close(context.Background()) })

	req := httptest.NewRequest("POST", "/graphql", strings.NewReader(`{"query":"{ posts { id } }"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "http://evil.example.com")
	w := httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest("POST", "/graphql", strings.NewReader(`{"query":"{ posts { id } }"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "http://app.example.com")
	w = httptest.NewRecorder()
	a.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}
