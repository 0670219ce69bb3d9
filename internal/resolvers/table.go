package resolvers

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/hanpama/contentgraph/internal/docstore"
	"github.com/hanpama/contentgraph/internal/model"
	"github.com/hanpama/contentgraph/internal/viewer"
)

// Kind tells the executor how a field is resolved.
type Kind int

const (
	// Projection reads from the parent value or the viewer without I/O.
	Projection Kind = iota
	// Lookup reads from the store.
	Lookup
	// Mutation writes to the store.
	Mutation
)

func (k Kind) String() string {
	switch k {
	case Projection:
		return "projection"
	case Lookup:
		return "lookup"
	case Mutation:
		return "mutation"
	}
	return "unknown"
}

// Async reports whether fields of this kind are batched.
func (k Kind) Async() bool { return k != Projection }

// FieldKey names one field of one type.
type FieldKey struct {
	Type  string
	Field string
}

func (k FieldKey) String() string { return k.Type + "." + k.Field }

// ResolveFunc computes a field value from its parent, arguments and viewer.
// A nil value with a nil error is GraphQL null.
type ResolveFunc func(ctx context.Context, v viewer.Viewer, source any, args map[string]any) (any, error)

// Binding attaches a resolver to a field.
type Binding struct {
	Kind    Kind
	Resolve ResolveFunc
}

// Table is the fixed field-to-resolver dispatch table.
type Table map[FieldKey]Binding

type fieldResolvers struct {
	store docstore.Store
	now   func() time.Time
}

// NewTable returns the binding for every field of schema.graphql.
func NewTable(store docstore.Store, now func() time.Time) Table {
	r := &fieldResolvers{store: store, now: now}
	return Table{
		{"Query", "me"}:      {Projection, r.me},
		{"Query", "post"}:    {Lookup, r.post},
		{"Query", "posts"}:   {Lookup, r.posts},
		{"Query", "comment"}: {Lookup, r.comment},

		{"Mutation", "createPost"}:    {Mutation, r.createPost},
		{"Mutation", "createComment"}: {Mutation, r.createComment},

		{"User", "id"}: {Projection, userField(func(u *model.User) any { return u.ID })},

		{"Post", "id"}:        {Projection, postField(func(p *model.Post) any { return p.ID })},
		{"Post", "authorId"}:  {Projection, postField(func(p *model.Post) any { return p.AuthorID })},
		{"Post", "title"}:     {Projection, postField(func(p *model.Post) any { return deref(p.Title) })},
		{"Post", "content"}:   {Projection, postField(func(p *model.Post) any { return deref(p.Content) })},
		{"Post", "createdAt"}: {Projection, postField(func(p *model.Post) any { return p.CreatedAt })},
		{"Post", "author"}:    {Projection, postField(func(p *model.Post) any { return &model.User{ID: p.AuthorID} })},
		{"Post", "comments"}:  {Lookup, r.postComments},

		{"Comment", "id"}:        {Projection, commentField(func(c *model.Comment) any { return c.ID })},
		{"Comment", "postId"}:    {Projection, commentField(func(c *model.Comment) any { return c.PostID })},
		{"Comment", "authorId"}:  {Projection, commentField(func(c *model.Comment) any { return deref(c.AuthorID) })},
		{"Comment", "content"}:   {Projection, commentField(func(c *model.Comment) any { return deref(c.Content) })},
		{"Comment", "createdAt"}: {Projection, commentField(func(c *model.Comment) any { return c.CreatedAt })},
		{"Comment", "author"}:    {Projection, commentField(commentAuthor)},
		{"Comment", "post"}:      {Lookup, r.commentPost},
	}
}

func (r *fieldResolvers) me(_ context.Context, v viewer.Viewer, _ any, _ map[string]any) (any, error) {
	id, ok := v.UserID()
	if !ok {
		return nil, nil
	}
	return &model.User{ID: id}, nil
}

func (r *fieldResolvers) post(ctx context.Context, _ viewer.Viewer, _ any, args map[string]any) (any, error) {
	id, _ := args["id"].(string)
	return r.findPost(ctx, id)
}

func (r *fieldResolvers) posts(ctx context.Context, _ viewer.Viewer, _ any, _ map[string]any) (any, error) {
	docs, err := r.store.Find(ctx, docstore.Posts, nil, docstore.Sort{Field: docstore.KeyCreatedAt, Descending: true})
	if err != nil {
		return nil, classify(err)
	}
	out := make([]*model.Post, 0, len(docs))
	for _, d := range docs {
		p, err := model.PostFromDocument(d)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *fieldResolvers) comment(ctx context.Context, _ viewer.Viewer, _ any, args map[string]any) (any, error) {
	id, _ := args["id"].(string)
	d, err := r.store.FindOne(ctx, docstore.Comments, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	return model.CommentFromDocument(d)
}

func (r *fieldResolvers) postComments(ctx context.Context, _ viewer.Viewer, source any, _ map[string]any) (any, error) {
	p, ok := source.(*model.Post)
	if !ok {
		return nil, errors.Errorf("Post.comments: unexpected source %T", source)
	}
	docs, err := r.store.Find(ctx, docstore.Comments, docstore.Filter{model.FieldPostID: p.ID}, docstore.Sort{Field: docstore.KeyCreatedAt})
	if err != nil {
		return nil, classify(err)
	}
	out := make([]*model.Comment, 0, len(docs))
	for _, d := range docs {
		c, err := model.CommentFromDocument(d)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (r *fieldResolvers) commentPost(ctx context.Context, _ viewer.Viewer, source any, _ map[string]any) (any, error) {
	c, ok := source.(*model.Comment)
	if !ok {
		return nil, errors.Errorf("Comment.post: unexpected source %T", source)
	}
	return r.findPost(ctx, c.PostID)
}

func (r *fieldResolvers) findPost(ctx context.Context, id string) (any, error) {
	d, err := r.store.FindOne(ctx, docstore.Posts, id)
	if errors.Is(err, docstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, classify(err)
	}
	return model.PostFromDocument(d)
}

func (r *fieldResolvers) createPost(ctx context.Context, v viewer.Viewer, _ any, args map[string]any) (any, error) {
	userID, ok := v.UserID()
	if !ok {
		return nil, ErrUnauthenticated
	}
	doc := model.NewPostDocument(userID, stringArg(args, "title"), stringArg(args, "content"), r.now())
	id, err := r.store.InsertOne(ctx, docstore.Posts, doc)
	if err != nil {
		return nil, classify(err)
	}
	stored, err := r.store.FindOne(ctx, docstore.Posts, id)
	if err != nil {
		return nil, classify(err)
	}
	return model.PostFromDocument(stored)
}

func (r *fieldResolvers) createComment(ctx context.Context, v viewer.Viewer, _ any, args map[string]any) (any, error) {
	userID, ok := v.UserID()
	if !ok {
		return nil, ErrUnauthenticated
	}
	raw, _ := args["postId"].(string)
	postID, err := docstore.CanonicalID(raw)
	if err != nil {
		return nil, classify(err)
	}
	doc := model.NewCommentDocument(postID, &userID, stringArg(args, "content"), r.now())
	id, err := r.store.InsertOne(ctx, docstore.Comments, doc)
	if err != nil {
		return nil, classify(err)
	}
	stored, err := r.store.FindOne(ctx, docstore.Comments, id)
	if err != nil {
		return nil, classify(err)
	}
	return model.CommentFromDocument(stored)
}

func commentAuthor(c *model.Comment) any {
	if c.AuthorID == nil {
		return nil
	}
	return &model.User{ID: *c.AuthorID}
}

func postField(get func(*model.Post) any) ResolveFunc {
	return func(_ context.Context, _ viewer.Viewer, source any, _ map[string]any) (any, error) {
		p, ok := source.(*model.Post)
		if !ok {
			return nil, errors.Errorf("expected *model.Post, got %T", source)
		}
		return get(p), nil
	}
}

func commentField(get func(*model.Comment) any) ResolveFunc {
	return func(_ context.Context, _ viewer.Viewer, source any, _ map[string]any) (any, error) {
		c, ok := source.(*model.Comment)
		if !ok {
			return nil, errors.Errorf("expected *model.Comment, got %T", source)
		}
		return get(c), nil
	}
}

func userField(get func(*model.User) any) ResolveFunc {
	return func(_ context.Context, _ viewer.Viewer, source any, _ map[string]any) (any, error) {
		u, ok := source.(*model.User)
		if !ok {
			return nil, errors.Errorf("expected *model.User, got %T", source)
		}
		return get(u), nil
	}
}

func stringArg(args map[string]any, name string) *string {
	if s, ok := args[name].(string); ok {
		return &s
	}
	return nil
}

func deref(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
