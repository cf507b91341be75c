package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/driftline/driftline/models"
	"github.com/driftline/driftline/store"
)

func seedPost(t *testing.T, ms *store.MemStore, id, communityID string, score int64, publishedAt time.Time) {
	t.Helper()
	err := ms.Create(context.Background(), models.Post{
		ID:          id,
		Type:        models.TypePost,
		Title:       id,
		Author:      models.NewRef("author"),
		Community:   models.NewRef(communityID),
		PublishedAt: publishedAt,
		Score:       score,
	}, nil)
	require.NoError(t, err)
}

func TestPostFeedSorts(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemStore()
	repo := NewPostRepository(ms)
	now := time.Now().UTC()

	seedPost(t, ms, "fresh-low", "c1", 1, now.Add(-time.Hour))
	seedPost(t, ms, "fresh-high", "c1", 10, now.Add(-2*time.Hour))
	seedPost(t, ms, "stale-high", "c1", 50, now.Add(-30*24*time.Hour))
	seedPost(t, ms, "elsewhere", "c2", 5, now.Add(-time.Minute))

	newest, err := repo.List(ctx, ListOptions{Sort: SortNew, CommunityID: "c1"})
	require.NoError(t, err)
	require.Len(t, newest, 3)
	assert.Equal(t, "fresh-low", newest[0].ID)

	top, err := repo.List(ctx, ListOptions{Sort: SortTop, CommunityID: "c1"})
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "stale-high", top[0].ID)

	// Hot drops anything outside the recency window.
	hot, err := repo.List(ctx, ListOptions{Sort: SortHot, CommunityID: "c1"})
	require.NoError(t, err)
	require.Len(t, hot, 2)
	assert.Equal(t, "fresh-high", hot[0].ID)

	all, err := repo.List(ctx, ListOptions{Sort: SortNew})
	require.NoError(t, err)
	assert.Len(t, all, 4)

	paged, err := repo.List(ctx, ListOptions{Sort: SortNew, CommunityID: "c1", Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, paged, 1)
}

func TestPostVoteAggregates(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemStore()
	repo := NewPostRepository(ms)

	created, err := repo.Create(ctx, "author", "c1", "hello", "world")
	require.NoError(t, err)
	assert.Equal(t, int64(0), created.Score)

	require.NoError(t, repo.SetVoteAggregates(ctx, created.ID, 3, 1, 2))

	got, err := repo.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.UpvoteCount)
	assert.Equal(t, int64(1), got.DownvoteCount)
	assert.Equal(t, int64(2), got.Score)
}
