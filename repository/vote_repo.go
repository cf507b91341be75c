package repository

import (
	"context"

	"github.com/driftline/driftline/models"
	"github.com/driftline/driftline/store"
)

// VoteRepository owns vote documents. One-vote-per-user-per-post is
// maintained by the vote service, not here.
type VoteRepository struct {
	store store.Client
}

func NewVoteRepository(c store.Client) *VoteRepository {
	return &VoteRepository{store: c}
}

// ListByPost returns every vote on a post, the ground truth for aggregates.
func (r *VoteRepository) ListByPost(ctx context.Context, postID string) ([]models.Vote, error) {
	var out []models.Vote
	err := r.store.Fetch(ctx, store.Query{
		Type: models.TypeVote,
		Refs: map[string]string{"post": postID},
	}, &out)
	return out, err
}

// Find returns the user's vote on the post, or nil when there is none.
func (r *VoteRepository) Find(ctx context.Context, userID, postID string) (*models.Vote, error) {
	var v models.Vote
	ok, err := r.store.First(ctx, store.Query{
		Type: models.TypeVote,
		Refs: map[string]string{"user": userID, "post": postID},
	}, &v)
	if err != nil || !ok {
		return nil, err
	}
	return &v, nil
}

func (r *VoteRepository) Create(ctx context.Context, userID, postID, voteType string) (*models.Vote, error) {
	doc := models.Vote{
		Type:     models.TypeVote,
		User:     models.NewRef(userID),
		Post:     models.NewRef(postID),
		VoteType: voteType,
	}
	var created models.Vote
	if err := r.store.Create(ctx, doc, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// SetType switches an existing vote's direction in place.
func (r *VoteRepository) SetType(ctx context.Context, voteID, voteType string) error {
	return r.store.Patch(voteID).Set("voteType", voteType).Commit(ctx)
}

func (r *VoteRepository) Delete(ctx context.Context, voteID string) error {
	return r.store.Delete(ctx, voteID)
}
