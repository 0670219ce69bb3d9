package resolvers

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/contentgraph/internal/docstore"
	"github.com/hanpama/contentgraph/internal/executor"
	"github.com/hanpama/contentgraph/internal/language"
	"github.com/hanpama/contentgraph/internal/viewer"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

// steppingClock advances one second per call.
type steppingClock struct {
	mu sync.Mutex
	n  int
}

func (c *steppingClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return epoch.Add(time.Duration(c.n) * time.Second)
}

type harness struct {
	exec  *executor.Executor
	store docstore.Store
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := docstore.OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return newHarnessWithStore(t, store)
}

func newHarnessWithStore(t *testing.T, store docstore.Store) *harness {
	t.Helper()
	clock := &steppingClock{}
	sch, rt, err := Build(store, WithClock(clock.now), WithMaxConcurrency(4))
	require.NoError(t, err)
	return &harness{exec: executor.NewExecutor(rt, sch), store: store}
}

// run executes query as userID; an empty userID is an anonymous request.
func (h *harness) run(t *testing.T, userID, query string, vars map[string]any) *executor.ExecutionResult {
	t.Helper()
	doc, errs := language.LoadQuery(h.exec.Schema().AST, query)
	require.Empty(t, errs)
	ctx := context.Background()
	if userID != "" {
		ctx = viewer.NewContext(ctx, viewer.ForUser(userID))
	}
	return h.exec.ExecuteRequest(ctx, doc, "", vars, nil)
}

func data(t *testing.T, res *executor.ExecutionResult) map[string]any {
	t.Helper()
	require.Empty(t, res.Errors)
	m, ok := res.Data.(map[string]any)
	require.True(t, ok, "data is %T", res.Data)
	return m
}

func (h *harness) count(t *testing.T, collection string) int {
	t.Helper()
	docs, err := h.store.Find(context.Background(), collection, nil, docstore.Sort{})
	require.NoError(t, err)
	return len(docs)
}

const createPost = `mutation($title: String, $content: String) {
	createPost(title: $title, content: $content) { id authorId title content createdAt }
}`

const createComment = `mutation($postId: ID!, $content: String) {
	createComment(postId: $postId, content: $content) { id postId authorId content }
}`

func TestCreatePost_ThenLookup(t *testing.T) {
	h := newHarness(t)

	created := data(t, h.run(t, "u1", createPost, map[string]any{"title": "T", "content": "C"}))["createPost"].(map[string]any)
	id := created["id"].(string)
	canonical, err := docstore.CanonicalID(id)
	require.NoError(t, err)
	require.Equal(t, canonical, id)

	want := map[string]any{
		"id":        id,
		"authorId":  "u1",
		"title":     "T",
		"content":   "C",
		"createdAt": "2024-03-01T09:00:01Z",
	}
	if diff := cmp.Diff(want, created); diff != "" {
		t.Fatalf("createPost mismatch (-want +got):\n%s", diff)
	}

	got := data(t, h.run(t, "", `query($id: ID!) { post(id: $id) { id authorId author { id } } }`, map[string]any{"id": id}))
	wantLookup := map[string]any{"post": map[string]any{"id": id, "authorId": "u1", "author": map[string]any{"id": "u1"}}}
	if diff := cmp.Diff(wantLookup, got); diff != "" {
		t.Fatalf("post lookup mismatch (-want +got):\n%s", diff)
	}
}

func TestAnonymous_MeIsNull(t *testing.T) {
	h := newHarness(t)
	got := data(t, h.run(t, "", `{ me { id } }`, nil))
	require.Equal(t, map[string]any{"me": nil}, got)

	got = data(t, h.run(t, "u9", `{ me { id } }`, nil))
	require.Equal(t, map[string]any{"me": map[string]any{"id": "u9"}}, got)
}

func TestAnonymous_WritesRejected(t *testing.T) {
	h := newHarness(t)
	postID := data(t, h.run(t, "u1", createPost, map[string]any{"title": "T"}))["createPost"].(map[string]any)["id"].(string)

	res := h.run(t, "", createPost, map[string]any{"title": "T", "content": "C"})
	wantRes := &executor.ExecutionResult{
		Data: map[string]any{"createPost": nil},
		Errors: []executor.GraphQLError{{
			Message:    "User not logged in.",
			Path:       executor.Path{"createPost"},
			Extensions: map[string]any{"code": CodeUnauthenticated},
		}},
	}
	if diff := cmp.Diff(wantRes, res); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}

	res = h.run(t, "", createComment, map[string]any{"postId": postID, "content": "hi"})
	require.Len(t, res.Errors, 1)
	require.Equal(t, "User not logged in.", res.Errors[0].Message)
	require.Equal(t, map[string]any{"createComment": nil}, res.Data)

	require.Equal(t, 1, h.count(t, docstore.Posts))
	require.Equal(t, 0, h.count(t, docstore.Comments))
}

func TestScenario_PostWithComment(t *testing.T) {
	h := newHarness(t)

	post := data(t, h.run(t, "u1", createPost, map[string]any{"title": "T", "content": "C"}))["createPost"].(map[string]any)
	postID := post["id"].(string)
	require.Equal(t, "u1", post["authorId"])

	comment := data(t, h.run(t, "u2", createComment, map[string]any{"postId": postID, "content": "hi"}))["createComment"].(map[string]any)
	require.Equal(t, "u2", comment["authorId"])
	require.Equal(t, postID, comment["postId"])

	got := data(t, h.run(t, "", `query($id: ID!) { post(id: $id) { comments { content author { id } post { id } } } }`, map[string]any{"id": postID}))
	want := map[string]any{"post": map[string]any{"comments": []any{
		map[string]any{"content": "hi", "author": map[string]any{"id": "u2"}, "post": map[string]any{"id": postID}},
	}}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("comments mismatch (-want +got):\n%s", diff)
	}
}

func TestOrdering(t *testing.T) {
	h := newHarness(t)

	var postIDs []string
	for _, title := range []string{"first", "second", "third"} {
		p := data(t, h.run(t, "u1", createPost, map[string]any{"title": title}))["createPost"].(map[string]any)
		postIDs = append(postIDs, p["id"].(string))
	}
	for _, content := range []string{"c1", "c2", "c3"} {
		data(t, h.run(t, "u2", createComment, map[string]any{"postId": postIDs[0], "content": content}))
	}

	got := data(t, h.run(t, "", `{ posts { title comments { content } } }`, nil))
	want := map[string]any{"posts": []any{
		map[string]any{"title": "third", "comments": []any{}},
		map[string]any{"title": "second", "comments": []any{}},
		map[string]any{"title": "first", "comments": []any{
			map[string]any{"content": "c1"},
			map[string]any{"content": "c2"},
			map[string]any{"content": "c3"},
		}},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ordering mismatch (-want +got):\n%s", diff)
	}
}

func TestIdentifiers(t *testing.T) {
	h := newHarness(t)
	postID := data(t, h.run(t, "u1", createPost, map[string]any{"title": "T"}))["createPost"].(map[string]any)["id"].(string)

	t.Run("Non canonical postId is stored canonically", func(t *testing.T) {
		c := data(t, h.run(t, "u2", createComment, map[string]any{"postId": strings.ToUpper(postID)}))["createComment"].(map[string]any)
		require.Equal(t, postID, c["postId"])

		got := data(t, h.run(t, "", `query($id: ID!) { comment(id: $id) { post { id } } }`, map[string]any{"id": c["id"]}))
		require.Equal(t, postID, got["comment"].(map[string]any)["post"].(map[string]any)["id"])
	})

	t.Run("Malformed id is a field error", func(t *testing.T) {
		res := h.run(t, "", `{ post(id: "nope") { id } me { id } }`, nil)
		require.Equal(t, map[string]any{"post": nil, "me": nil}, res.Data)
		require.Len(t, res.Errors, 1)
		require.Equal(t, executor.Path{"post"}, res.Errors[0].Path)
		require.Equal(t, CodeBadUserInput, res.Errors[0].Extensions["code"])
	})

	t.Run("Malformed postId performs no write", func(t *testing.T) {
		before := h.count(t, docstore.Comments)
		res := h.run(t, "u2", createComment, map[string]any{"postId": "nope", "content": "x"})
		require.Len(t, res.Errors, 1)
		require.Equal(t, CodeBadUserInput, res.Errors[0].Extensions["code"])
		require.Equal(t, before, h.count(t, docstore.Comments))
	})

	t.Run("Unknown id is null without error", func(t *testing.T) {
		missing, err := docstore.NewID()
		require.NoError(t, err)
		got := data(t, h.run(t, "", `query($id: ID!) { post(id: $id) { id } comment(id: $id) { id } }`, map[string]any{"id": docstore.FormatID(missing)}))
		require.Equal(t, map[string]any{"post": nil, "comment": nil}, got)
	})

	t.Run("Comment on missing post is accepted", func(t *testing.T) {
		missing, err := docstore.NewID()
		require.NoError(t, err)
		c := data(t, h.run(t, "u2", createComment, map[string]any{"postId": docstore.FormatID(missing)}))["createComment"].(map[string]any)
		got := data(t, h.run(t, "", `query($id: ID!) { comment(id: $id) { content post { id } } }`, map[string]any{"id": c["id"]}))
		require.Equal(t, map[string]any{"comment": map[string]any{"content": nil, "post": nil}}, got)
	})
}

func TestReadsAreIdempotent(t *testing.T) {
	h := newHarness(t)
	postID := data(t, h.run(t, "u1", createPost, map[string]any{"title": "T", "content": "C"}))["createPost"].(map[string]any)["id"].(string)
	data(t, h.run(t, "u2", createComment, map[string]any{"postId": postID, "content": "hi"}))

	q := `query($id: ID!) { post(id: $id) { id title createdAt comments { id content createdAt } } }`
	first := h.run(t, "", q, map[string]any{"id": postID})
	second := h.run(t, "", q, map[string]any{"id": postID})
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("repeated read differs (-first +second):\n%s", diff)
	}
}

func TestMutation_MultipleRootFieldsRunInOrder(t *testing.T) {
	h := newHarness(t)
	res := h.run(t, "u1", `mutation {
		a: createPost(title: "A") { title createdAt }
		b: createPost(title: "B") { title createdAt }
	}`, nil)
	want := map[string]any{
		"a": map[string]any{"title": "A", "createdAt": "2024-03-01T09:00:01Z"},
		"b": map[string]any{"title": "B", "createdAt": "2024-03-01T09:00:02Z"},
	}
	if diff := cmp.Diff(want, data(t, res)); diff != "" {
		t.Fatalf("mutation result mismatch (-want +got):\n%s", diff)
	}
}

type downStore struct{}

type downError struct{}

func (downError) Error() string        { return "connection refused" }
func (downError) Is(target error) bool { return target == docstore.ErrUnavailable }

func (downStore) FindOne(context.Context, string, string) (docstore.Document, error) {
	return nil, downError{}
}
func (downStore) Find(context.Context, string, docstore.Filter, docstore.Sort) ([]docstore.Document, error) {
	return nil, downError{}
}
func (downStore) InsertOne(context.Context, string, docstore.Document) (string, error) {
	return "", downError{}
}
func (downStore) Close() error { return nil }

func TestStoreUnavailable_IsFieldLevel(t *testing.T) {
	h := newHarnessWithStore(t, downStore{})
	res := h.run(t, "u1", `{ posts { id } me { id } }`, nil)
	require.Equal(t, map[string]any{"posts": nil, "me": map[string]any{"id": "u1"}}, res.Data)
	require.Len(t, res.Errors, 1)
	require.Equal(t, "Store unavailable.", res.Errors[0].Message)
	require.Equal(t, CodeStoreUnavailable, res.Errors[0].Extensions["code"])
}
