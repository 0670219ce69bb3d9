package docstore

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestBadgerConformance(t *testing.T) {
	runConformance(t, func(t *testing.T) Store {
		s, err := OpenBadger("", zap.NewNop())
		require.NoError(t, err)
		return s
	})
}

func TestSQLiteConformance(t *testing.T) {
	runConformance(t, func(t *testing.T) Store {
		s, err := OpenSQLite(context.Background(), ":memory:")
		require.NoError(t, err)
		return s
	})
}

func TestPostgresConformance(t *testing.T) {
	url := os.Getenv("CONTENTGRAPH_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("CONTENTGRAPH_TEST_POSTGRES_URL not set")
	}
	runConformance(t, func(t *testing.T) Store {
		ctx := context.Background()
		s, err := OpenPostgres(ctx, url)
		require.NoError(t, err)
		_, err = s.pool.Exec(ctx, `TRUNCATE posts, comments, users`)
		require.NoError(t, err)
		return s
	})
}

func TestCachedConformance(t *testing.T) {
	runConformance(t, func(t *testing.T) Store {
		s, err := OpenSQLite(context.Background(), ":memory:")
		require.NoError(t, err)
		c, err := NewCached(s, 100)
		require.NoError(t, err)
		return c
	})
}

var base = time.Date(2024, 5, 1, 12, 0, 0, 123456000, time.UTC)

func runConformance(t *testing.T, open func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("Insert then FindOne", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		id, err := s.InsertOne(ctx, Posts, Document{
			"authorId":  "u1",
			"title":     "T",
			"content":   "C",
			"createdAt": base,
		})
		require.NoError(t, err)
		canonical, err := CanonicalID(id)
		require.NoError(t, err)
		require.Equal(t, canonical, id)

		got, err := s.FindOne(ctx, Posts, id)
		require.NoError(t, err)
		want := Document{
			"id":        id,
			"authorId":  "u1",
			"title":     "T",
			"content":   "C",
			"createdAt": base,
		}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Fatalf("document mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("FindOne with non canonical id", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		id, err := s.InsertOne(ctx, Posts, Document{"title": "T"})
		require.NoError(t, err)
		got, err := s.FindOne(ctx, Posts, strings.ToUpper(id))
		require.NoError(t, err)
		require.Equal(t, id, got.ID())
	})

	t.Run("FindOne missing", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		id, err := NewID()
		require.NoError(t, err)
		_, err = s.FindOne(ctx, Posts, FormatID(id))
		require.True(t, errors.Is(err, ErrNotFound), "got %v", err)
	})

	t.Run("FindOne invalid id", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		_, err := s.FindOne(ctx, Posts, "not-an-id")
		require.True(t, errors.Is(err, ErrInvalidID), "got %v", err)
	})

	t.Run("Unknown collection", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		_, err := s.InsertOne(ctx, "widgets", Document{"a": "b"})
		require.True(t, errors.Is(err, ErrUnknownCollection), "got %v", err)
		_, err = s.Find(ctx, "widgets", nil, Sort{})
		require.True(t, errors.Is(err, ErrUnknownCollection), "got %v", err)
	})

	t.Run("Find filters and sorts", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		postA, err := s.InsertOne(ctx, Posts, Document{"title": "A", "createdAt": base})
		require.NoError(t, err)
		postB, err := s.InsertOne(ctx, Posts, Document{"title": "B", "createdAt": base.Add(time.Hour)})
		require.NoError(t, err)

		// inserted out of chronological order on purpose
		for i, offset := range []time.Duration{2 * time.Minute, time.Minute, 3 * time.Minute} {
			_, err := s.InsertOne(ctx, Comments, Document{
				"postId":    postA,
				"content":   []string{"second", "first", "third"}[i],
				"createdAt": base.Add(offset),
			})
			require.NoError(t, err)
		}
		_, err = s.InsertOne(ctx, Comments, Document{"postId": postB, "content": "other", "createdAt": base})
		require.NoError(t, err)

		comments, err := s.Find(ctx, Comments, Filter{"postId": postA}, Sort{Field: KeyCreatedAt})
		require.NoError(t, err)
		var contents []string
		for _, c := range comments {
			v, _ := c.String("content")
			contents = append(contents, v)
		}
		require.Equal(t, []string{"first", "second", "third"}, contents)

		posts, err := s.Find(ctx, Posts, nil, Sort{Field: KeyCreatedAt, Descending: true})
		require.NoError(t, err)
		require.Len(t, posts, 2)
		require.Equal(t, postB, posts[0].ID())
		require.Equal(t, postA, posts[1].ID())

		none, err := s.Find(ctx, Comments, Filter{"postId": "nobody"}, Sort{})
		require.NoError(t, err)
		require.Empty(t, none)
		require.NotNil(t, none)
	})

	t.Run("Find rejects reserved filter keys", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		_, err := s.Find(ctx, Posts, Filter{"id": "x"}, Sort{})
		require.True(t, errors.Is(err, ErrInvalidFilter), "got %v", err)
	})

	t.Run("Reads are idempotent", func(t *testing.T) {
		s := open(t)
		defer s.Close()

		id, err := s.InsertOne(ctx, Posts, Document{"title": "T", "views": 3})
		require.NoError(t, err)
		first, err := s.FindOne(ctx, Posts, id)
		require.NoError(t, err)
		second, err := s.FindOne(ctx, Posts, id)
		require.NoError(t, err)
		require.Empty(t, cmp.Diff(first, second))
		require.Equal(t, float64(3), first["views"])
	})
}

func TestParseID(t *testing.T) {
	id, err := NewID()
	require.NoError(t, err)

	got, err := ParseID(strings.ToUpper(FormatID(id)))
	require.NoError(t, err)
	require.Equal(t, id, got)

	for _, bad := range []string{"", "abc", "00000000-0000-0000-0000-000000000000", "0190f0a6-5b7e-7c3a-9d2e-3f1b2c4d5e6"} {
		_, err := ParseID(bad)
		require.True(t, errors.Is(err, ErrInvalidID), "input %q: %v", bad, err)
	}
}

func TestUnavailableWrapsDriverError(t *testing.T) {
	cause := errors.New("connection refused")
	err := unavailable("find", cause)
	require.True(t, errors.Is(err, ErrUnavailable))
	require.True(t, errors.Is(err, cause))
	require.Contains(t, err.Error(), "connection refused")
}

func TestCodec_NestedTimeRoundTrip(t *testing.T) {
	body, createdAt, err := encodeBody(Document{
		"createdAt": base,
		"meta":      map[string]any{"editedAt": base.Add(time.Second), "tags": []string{"a"}},
	})
	require.NoError(t, err)
	require.Equal(t, base, createdAt)

	id, err := NewID()
	require.NoError(t, err)
	raw, err := marshalProto(body, createdAt)
	require.NoError(t, err)
	doc, err := unmarshalProto(id, raw)
	require.NoError(t, err)

	want := Document{
		"id":        FormatID(id),
		"createdAt": base,
		"meta":      map[string]any{"editedAt": base.Add(time.Second), "tags": []any{"a"}},
	}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Fatalf("document mismatch (-want +got):\n%s", diff)
	}
}
