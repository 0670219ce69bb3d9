package model

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/contentgraph/internal/docstore"
)

func TestPostDocumentMapping(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	title := "T"
	d := NewPostDocument("u1", &title, nil, at)
	require.NotContains(t, d, FieldContent)

	d[docstore.KeyID] = "0190f0a6-5b7e-7c3a-9d2e-3f1b2c4d5e6f"
	got, err := PostFromDocument(d)
	require.NoError(t, err)
	want := &Post{
		ID:        "0190f0a6-5b7e-7c3a-9d2e-3f1b2c4d5e6f",
		AuthorID:  "u1",
		Title:     &title,
		CreatedAt: at,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("post mismatch (-want +got):\n%s", diff)
	}
}

func TestCommentDocumentMapping(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	content := "hi"
	d := NewCommentDocument("p1", nil, &content, at)
	d[docstore.KeyID] = "c1"

	got, err := CommentFromDocument(d)
	require.NoError(t, err)
	require.Nil(t, got.AuthorID)
	require.Equal(t, "p1", got.PostID)
	require.Equal(t, "hi", *got.Content)

	_, err = CommentFromDocument(docstore.Document{docstore.KeyID: "c2"})
	require.Error(t, err)
}
