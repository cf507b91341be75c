package repository

import (
	"context"

	"github.com/driftline/driftline/models"
	"github.com/driftline/driftline/store"
)

// CommunityRepository reads community documents and mutates only their cached
// memberCount field. The community documents themselves are authored in the
// studio, not by this service.
type CommunityRepository struct {
	store store.Client
}

func NewCommunityRepository(c store.Client) *CommunityRepository {
	return &CommunityRepository{store: c}
}

// Get loads a community by id, returning store.ErrNotFound when missing.
func (r *CommunityRepository) Get(ctx context.Context, id string) (*models.Community, error) {
	var c models.Community
	if err := r.store.Get(ctx, id, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// List returns all communities, newest first.
func (r *CommunityRepository) List(ctx context.Context) ([]models.Community, error) {
	var out []models.Community
	err := r.store.Fetch(ctx, store.Query{
		Type:  models.TypeCommunity,
		Order: "createdAt",
		Desc:  true,
	}, &out)
	return out, err
}

// SetMemberCount overwrites the cached counter, used both to initialize an
// absent field and to correct drift.
func (r *CommunityRepository) SetMemberCount(ctx context.Context, id string, n int64) error {
	return r.store.Patch(id).Set("memberCount", n).Commit(ctx)
}

// IncMemberCount applies an atomic +1 to the counter field.
func (r *CommunityRepository) IncMemberCount(ctx context.Context, id string) error {
	return r.store.Patch(id).Inc("memberCount", 1).Commit(ctx)
}

// DecMemberCount applies an atomic -1 to the counter field.
func (r *CommunityRepository) DecMemberCount(ctx context.Context, id string) error {
	return r.store.Patch(id).Dec("memberCount", 1).Commit(ctx)
}
