// Package model holds the typed projections of stored documents handed to
// field resolvers.
package model

import (
	"time"

	"github.com/pkg/errors"

	"github.com/hanpama/contentgraph/internal/docstore"
)

// Document fields.
const (
	FieldAuthorID = "authorId"
	FieldPostID   = "postId"
	FieldTitle    = "title"
	FieldContent  = "content"
	FieldUsername = "username"
	FieldPassword = "passwordHash"
)

// User is a projection of an identity. It is never loaded from a store.
type User struct {
	ID string
}

type Post struct {
	ID        string
	AuthorID  string
	Title     *string
	Content   *string
	CreatedAt time.Time
}

type Comment struct {
	ID        string
	PostID    string
	AuthorID  *string
	Content   *string
	CreatedAt time.Time
}

// PostFromDocument maps a stored post.
func PostFromDocument(d docstore.Document) (*Post, error) {
	authorID, ok := d.String(FieldAuthorID)
	if !ok {
		return nil, errors.Errorf("post %s has no %s", d.ID(), FieldAuthorID)
	}
	return &Post{
		ID:        d.ID(),
		AuthorID:  authorID,
		Title:     optionalString(d, FieldTitle),
		Content:   optionalString(d, FieldContent),
		CreatedAt: d.CreatedAt(),
	}, nil
}

// CommentFromDocument maps a stored comment.
func CommentFromDocument(d docstore.Document) (*Comment, error) {
	postID, ok := d.String(FieldPostID)
	if !ok {
		return nil, errors.Errorf("comment %s has no %s", d.ID(), FieldPostID)
	}
	return &Comment{
		ID:        d.ID(),
		PostID:    postID,
		AuthorID:  optionalString(d, FieldAuthorID),
		Content:   optionalString(d, FieldContent),
		CreatedAt: d.CreatedAt(),
	}, nil
}

// NewPostDocument builds the document inserted by createPost. Nil strings
// are left out.
func NewPostDocument(authorID string, title, content *string, createdAt time.Time) docstore.Document {
	d := docstore.Document{
		FieldAuthorID:         authorID,
		docstore.KeyCreatedAt: createdAt,
	}
	setOptional(d, FieldTitle, title)
	setOptional(d, FieldContent, content)
	return d
}

// NewCommentDocument builds the document inserted by createComment.
func NewCommentDocument(postID string, authorID, content *string, createdAt time.Time) docstore.Document {
	d := docstore.Document{
		FieldPostID:           postID,
		docstore.KeyCreatedAt: createdAt,
	}
	setOptional(d, FieldAuthorID, authorID)
	setOptional(d, FieldContent, content)
	return d
}

func optionalString(d docstore.Document, key string) *string {
	if s, ok := d.String(key); ok {
		return &s
	}
	return nil
}

func setOptional(d docstore.Document, key string, v *string) {
	if v != nil {
		d[key] = *v
	}
}
