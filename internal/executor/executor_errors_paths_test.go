package executor

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// Pattern: Result comparison
func TestErrors_LocatedPaths_Result(t *testing.T) {
	t.Run("Root field", func(t *testing.T) {
		rt := contentRuntime()
		rt.SetResolver("Query", "me", NewMockErrorResolver(fmt.Errorf("session expired")))
		exec := NewExecutor(rt, contentSchema())
		doc := mustParseQuery(t, "{ me { name } }")

		gotRes := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)

		wantRes := &ExecutionResult{
			Data:   map[string]any{"me": nil},
			Errors: []GraphQLError{{Message: "session expired", Path: Path{"me"}}},
		}
		if diff := cmp.Diff(wantRes, gotRes); diff != "" {
			t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Nested under async parent", func(t *testing.T) {
		rt := contentRuntime()
		rt.SetResolver("Post", "author", NewMockErrorResolver(fmt.Errorf("user lookup failed")))
		exec := NewExecutor(rt, contentSchema())
		doc := mustParseQuery(t, `{ post(id: "p1") { title author { name } } }`)

		gotRes := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)

		wantRes := &ExecutionResult{
			Data:   map[string]any{"post": map[string]any{"title": "Hello", "author": nil}},
			Errors: []GraphQLError{{Message: "user lookup failed", Path: Path{"post", "author"}}},
		}
		if diff := cmp.Diff(wantRes, gotRes); diff != "" {
			t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("List indices in path", func(t *testing.T) {
		rt := contentRuntime()
		rt.SetResolver("Comment", "body", func(ctx context.Context, src any, args map[string]any) (any, error) {
			if src.(map[string]any)["id"] == "c3" {
				return nil, fmt.Errorf("body unavailable")
			}
			return src.(map[string]any)["body"], nil
		})
		exec := NewExecutor(rt, contentSchema())
		doc := mustParseQuery(t, "{ posts { comments { body } } }")

		gotRes := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)

		wantRes := &ExecutionResult{
			Data: map[string]any{"posts": []any{
				map[string]any{"comments": []any{map[string]any{"body": "first"}, map[string]any{"body": "second"}}},
				map[string]any{"comments": []any{map[string]any{"body": nil}}},
			}},
			Errors: []GraphQLError{{Message: "body unavailable", Path: Path{"posts", 1, "comments", 0, "body"}}},
		}
		if diff := cmp.Diff(wantRes, gotRes); diff != "" {
			t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("Async field error inside list", func(t *testing.T) {
		rt := contentRuntime()
		rt.SetResolver("Comment", "post", func(ctx context.Context, src any, args map[string]any) (any, error) {
			if src.(map[string]any)["id"] == "c2" {
				return nil, fmt.Errorf("post deleted")
			}
			return postP1, nil
		})
		exec := NewExecutor(rt, contentSchema())
		doc := mustParseQuery(t, `{ post(id: "p1") { comments { id post { title } } } }`)

		gotRes := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)

		wantRes := &ExecutionResult{
			Data: map[string]any{"post": map[string]any{"comments": []any{
				map[string]any{"id": "c1", "post": map[string]any{"title": "Hello"}},
				map[string]any{"id": "c2", "post": nil},
			}}},
			Errors: []GraphQLError{{Message: "post deleted", Path: Path{"post", "comments", 1, "post"}}},
		}
		if diff := cmp.Diff(wantRes, gotRes); diff != "" {
			t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
		}
	})
}
