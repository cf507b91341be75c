package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/driftline/driftline/models"
	"github.com/driftline/driftline/repository"
	"github.com/driftline/driftline/store"
)

// VoteService records votes and keeps each post's cached aggregates in step.
// Unlike the member counter there is no incremental path: after every vote
// mutation the three fields are rebuilt from the vote documents, so any
// inconsistency lasts only until the post's next vote event.
type VoteService struct {
	votes *repository.VoteRepository
	posts *repository.PostRepository
	log   *zap.SugaredLogger
}

func NewVoteService(votes *repository.VoteRepository, posts *repository.PostRepository, log *zap.SugaredLogger) *VoteService {
	return &VoteService{votes: votes, posts: posts, log: log}
}

// Cast applies the user's vote to a post: a new vote is created, a repeat of
// the same direction retracts it, and the opposite direction switches it.
// The aggregate rebuild afterwards is best-effort; the vote document is
// authoritative once written.
func (s *VoteService) Cast(ctx context.Context, userID, postID, voteType string) (*models.Post, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if voteType != models.VoteUp && voteType != models.VoteDown {
		return nil, ErrInvalidVote
	}

	if _, err := s.posts.Get(ctx, postID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, s.storeErr("load post", err)
	}

	existing, err := s.votes.Find(ctx, userID, postID)
	if err != nil {
		return nil, s.storeErr("find vote", err)
	}
	switch {
	case existing == nil:
		if _, err := s.votes.Create(ctx, userID, postID, voteType); err != nil {
			return nil, s.storeErr("create vote", err)
		}
	case existing.VoteType == voteType:
		if err := s.votes.Delete(ctx, existing.ID); err != nil {
			return nil, s.storeErr("retract vote", err)
		}
	default:
		if err := s.votes.SetType(ctx, existing.ID, voteType); err != nil {
			return nil, s.storeErr("switch vote", err)
		}
	}

	if err := s.RefreshAggregates(ctx, postID); err != nil {
		s.log.Warnw("vote aggregate refresh failed, corrected on next vote event",
			"post", postID, "err", err)
	}

	post, err := s.posts.Get(ctx, postID)
	if err != nil {
		return nil, s.storeErr("reload post", err)
	}
	return post, nil
}

// RefreshAggregates recounts the post's votes and writes upvoteCount,
// downvoteCount and score = upvoteCount - downvoteCount in one patch.
func (s *VoteService) RefreshAggregates(ctx context.Context, postID string) error {
	votes, err := s.votes.ListByPost(ctx, postID)
	if err != nil {
		return err
	}
	var up, down int64
	for _, v := range votes {
		switch v.VoteType {
		case models.VoteUp:
			up++
		case models.VoteDown:
			down++
		}
	}
	return s.posts.SetVoteAggregates(ctx, postID, up, down, up-down)
}

func (s *VoteService) storeErr(op string, err error) error {
	s.log.Errorw("store call failed", "op", op, "err", err)
	return fmt.Errorf("%w: %s", ErrStoreUnavailable, op)
}
