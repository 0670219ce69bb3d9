package executor

import (
	"context"

	schema "github.com/hanpama/contentgraph/internal/schema"
)

func newSchemaWithQueryType(query *schema.Type, additional ...*schema.Type) *schema.Schema {
	sch := schema.NewSchema("")
	if query != nil {
		sch.SetQueryType(query.Name)
		sch.AddType(query)
	}
	for _, t := range additional {
		sch.AddType(t)
	}
	return sch
}

func newObjectType(name string, fields ...*schema.Field) *schema.Type {
	t := schema.NewType(name, schema.TypeKindObject, "")
	for _, field := range fields {
		t.AddField(field)
	}
	return t
}

func newScalarType(name string) *schema.Type {
	return schema.NewType(name, schema.TypeKindScalar, "")
}

// contentSchema is a small posts/comments graph:
//
//	type Query {
//	  me: User
//	  post(id: ID!): Post
//	  posts(first: Int, filter: PostFilter): [Post!]!
//	}
//	type User { id: ID! name: String }
//	type Post { id: ID! title: String author: User comments: [Comment!]! }
//	type Comment { id: ID! body: String post: Post }
//	input PostFilter { authorId: ID! tag: String }
//
// Query.post, Query.posts, Post.comments and Comment.post are async.
func contentSchema() *schema.Schema {
	id := func() *schema.TypeRef { return schema.NonNullType(schema.NamedType("ID")) }

	filter := schema.NewType("PostFilter", schema.TypeKindInputObject, "")
	filter.AddInputField(schema.NewInputValue("authorId", "", id()))
	filter.AddInputField(schema.NewInputValue("tag", "", schema.NamedType("String")))

	return newSchemaWithQueryType(
		newObjectType("Query",
			schema.NewField("me", "", schema.NamedType("User")),
			schema.NewField("post", "", schema.NamedType("Post")).
				SetAsync(true).
				AddArgument(schema.NewInputValue("id", "", id())),
			schema.NewField("posts", "", schema.NonNullType(schema.ListType(schema.NonNullType(schema.NamedType("Post"))))).
				SetAsync(true).
				AddArgument(schema.NewInputValue("first", "", schema.NamedType("Int"))).
				AddArgument(schema.NewInputValue("filter", "", schema.NamedType("PostFilter"))),
		),
		newObjectType("User",
			schema.NewField("id", "", id()),
			schema.NewField("name", "", schema.NamedType("String")),
		),
		newObjectType("Post",
			schema.NewField("id", "", id()),
			schema.NewField("title", "", schema.NamedType("String")),
			schema.NewField("author", "", schema.NamedType("User")),
			schema.NewField("comments", "", schema.NonNullType(schema.ListType(schema.NonNullType(schema.NamedType("Comment"))))).SetAsync(true),
		),
		newObjectType("Comment",
			schema.NewField("id", "", id()),
			schema.NewField("body", "", schema.NamedType("String")),
			schema.NewField("post", "", schema.NamedType("Post")).SetAsync(true),
		),
		filter,
		newScalarType("ID"),
		newScalarType("String"),
		newScalarType("Int"),
	)
}

// Fixture documents. Resolvers hand these maps out as sources, so tests can
// compare recorded calls against them directly.
var (
	userU1    = map[string]any{"id": "u1", "name": "Ada"}
	postP1    = map[string]any{"id": "p1", "title": "Hello"}
	postP2    = map[string]any{"id": "p2", "title": "World"}
	commentC1 = map[string]any{"id": "c1", "body": "first"}
	commentC2 = map[string]any{"id": "c2", "body": "second"}
	commentC3 = map[string]any{"id": "c3", "body": "third"}
)

// prop resolves a field by reading the same key from a map source.
func prop(key string) MockResolver {
	return func(ctx context.Context, src any, args map[string]any) (any, error) {
		return src.(map[string]any)[key], nil
	}
}

func contentRuntime() *MockRuntime {
	postByID := func(ctx context.Context, src any, args map[string]any) (any, error) {
		switch args["id"] {
		case "p1":
			return postP1, nil
		case "p2":
			return postP2, nil
		}
		return nil, nil
	}
	listPosts := func(ctx context.Context, src any, args map[string]any) (any, error) {
		all := []any{postP1, postP2}
		if n, ok := args["first"].(int); ok && n < len(all) {
			return all[:n], nil
		}
		return all, nil
	}
	commentsOf := func(ctx context.Context, src any, args map[string]any) (any, error) {
		if src.(map[string]any)["id"] == "p1" {
			return []any{commentC1, commentC2}, nil
		}
		return []any{commentC3}, nil
	}
	return NewMockRuntime(map[string]MockResolver{
		"Query.me":      NewMockValueResolver(userU1),
		"Query.post":    postByID,
		"Query.posts":   listPosts,
		"User.id":       prop("id"),
		"User.name":     prop("name"),
		"Post.id":       prop("id"),
		"Post.title":    prop("title"),
		"Post.author":   NewMockValueResolver(userU1),
		"Post.comments": commentsOf,
		"Comment.id":    prop("id"),
		"Comment.body":  prop("body"),
		"Comment.post":  NewMockValueResolver(postP1),
	})
}
