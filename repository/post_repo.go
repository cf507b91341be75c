package repository

import (
	"context"
	"time"

	"github.com/driftline/driftline/models"
	"github.com/driftline/driftline/store"
)

// Feed sort modes.
const (
	SortNew = "new"
	SortHot = "hot"
	SortTop = "top"
)

const hotWindow = 7 * 24 * time.Hour

// PostRepository owns post documents and their cached vote aggregates.
type PostRepository struct {
	store store.Client
}

func NewPostRepository(c store.Client) *PostRepository {
	return &PostRepository{store: c}
}

func (r *PostRepository) Get(ctx context.Context, id string) (*models.Post, error) {
	var p models.Post
	if err := r.store.Get(ctx, id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListOptions narrows a feed query.
type ListOptions struct {
	Sort        string // new, hot or top; defaults to new
	CommunityID string // restrict to one community when set
	Limit       int
	Offset      int
}

// List returns a post feed. "new" orders by publish time, "top" by score,
// and "hot" by score within the last seven days.
func (r *PostRepository) List(ctx context.Context, opts ListOptions) ([]models.Post, error) {
	q := store.Query{
		Type:   models.TypePost,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	}
	if opts.CommunityID != "" {
		q.Refs = map[string]string{"subreddit": opts.CommunityID}
	}
	switch opts.Sort {
	case SortHot:
		q.Order = "score"
		q.Desc = true
		q.Since = &store.TimeBound{Field: "publishedAt", After: time.Now().Add(-hotWindow)}
	case SortTop:
		q.Order = "score"
		q.Desc = true
	default:
		q.Order = "publishedAt"
		q.Desc = true
	}
	var out []models.Post
	err := r.store.Fetch(ctx, q, &out)
	return out, err
}

// Create persists a new post with zeroed vote aggregates.
func (r *PostRepository) Create(ctx context.Context, authorID, communityID, title, body string) (*models.Post, error) {
	doc := models.Post{
		Type:        models.TypePost,
		Title:       title,
		Body:        body,
		Author:      models.NewRef(authorID),
		Community:   models.NewRef(communityID),
		PublishedAt: time.Now().UTC(),
	}
	var created models.Post
	if err := r.store.Create(ctx, doc, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// SetVoteAggregates writes all three cached vote fields in one patch commit
// so they change together on the post document.
func (r *PostRepository) SetVoteAggregates(ctx context.Context, id string, up, down, score int64) error {
	return r.store.Patch(id).
		Set("upvoteCount", up).
		Set("downvoteCount", down).
		Set("score", score).
		Commit(ctx)
}
