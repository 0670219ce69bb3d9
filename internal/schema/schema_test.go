package schema

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

const testSDL = `
scalar Time
type Query {
  post(id: ID!): Post
  posts(limit: Int = 10): [Post]
}
type Post {
  id: ID!
  title: String @deprecated(reason: "use headline")
  createdAt: Time
  comments: [Comment]!
}
type Comment { id: ID! }
type Mutation { createPost(title: String): Post }
schema { query: Query mutation: Mutation }
`

func TestBuildFromSDL_RootTypes(t *testing.T) {
	s, err := BuildFromSDL("test.graphql", testSDL)
	require.NoError(t, err)
	require.Equal(t, "Query", s.QueryType)
	require.Equal(t, "Mutation", s.MutationType)
	require.NotNil(t, s.AST)
	require.NotNil(t, s.GetQueryType())
	require.NotNil(t, s.GetMutationType())
}

func TestBuildFromSDL_SkipsIntrospection(t *testing.T) {
	s, err := BuildFromSDL("test.graphql", testSDL)
	require.NoError(t, err)
	for name := range s.Types {
		require.NotContains(t, name, "__")
	}
	require.Nil(t, s.Field("Query", "__schema"))
	require.Nil(t, s.Field("Query", "__type"))
	// built-in scalars stay available for leaf completion
	require.Equal(t, TypeKindScalar, s.Types["ID"].Kind)
	require.Equal(t, TypeKindScalar, s.Types["Time"].Kind)
}

func TestBuildFromSDL_FieldShapes(t *testing.T) {
	s, err := BuildFromSDL("test.graphql", testSDL)
	require.NoError(t, err)

	got := map[string]string{}
	for _, f := range s.Types["Post"].Fields {
		got[f.Name] = f.Type.String()
	}
	want := map[string]string{"id": "ID!", "title": "String", "createdAt": "Time", "comments": "[Comment]!"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("Post fields mismatch (-want +got):\n%s", diff)
	}

	title := s.Field("Post", "title")
	require.True(t, title.IsDeprecated)
	require.Equal(t, "use headline", title.DeprecationReason)

	post := s.Field("Query", "post")
	require.Len(t, post.Arguments, 1)
	require.Equal(t, "ID!", post.Arguments[0].Type.String())

	posts := s.Field("Query", "posts")
	require.Len(t, posts.Arguments, 1)
	require.EqualValues(t, 10, posts.Arguments[0].DefaultValue)
}

func TestBuildFromSDL_Invalid(t *testing.T) {
	_, err := BuildFromSDL("bad.graphql", `type Query { post: Missing }`)
	require.Error(t, err)
}

func TestTypeRefHelpers(t *testing.T) {
	ref := NonNullType(ListType(NamedType("Comment")))
	require.True(t, IsNonNull(ref))
	require.True(t, IsList(ref))
	require.Equal(t, "Comment", GetNamedType(ref))
	require.Equal(t, "[Comment]", Unwrap(ref).String())
}
