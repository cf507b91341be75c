package repository

import (
	"context"
	"time"

	"github.com/driftline/driftline/models"
	"github.com/driftline/driftline/store"
)

// MembershipRepository owns communityMembership documents. It performs no
// uniqueness enforcement itself; callers check existence before Create, and
// the reconciler cleans up the duplicates that race can still produce.
type MembershipRepository struct {
	store store.Client
}

func NewMembershipRepository(c store.Client) *MembershipRepository {
	return &MembershipRepository{store: c}
}

func pairQuery(userID, communityID string) store.Query {
	return store.Query{
		Type: models.TypeMembership,
		Refs: map[string]string{"user": userID, "community": communityID},
	}
}

// Find returns the membership for the pair, or nil when there is none.
func (r *MembershipRepository) Find(ctx context.Context, userID, communityID string) (*models.Membership, error) {
	var m models.Membership
	ok, err := r.store.First(ctx, pairQuery(userID, communityID), &m)
	if err != nil || !ok {
		return nil, err
	}
	return &m, nil
}

// Exists reports whether a membership document exists for the pair. This is
// an advisory pre-condition check, not a lock.
func (r *MembershipRepository) Exists(ctx context.Context, userID, communityID string) (bool, error) {
	var m models.Membership
	return r.store.First(ctx, pairQuery(userID, communityID), &m)
}

// Create persists a new member-role membership stamped with the current time.
func (r *MembershipRepository) Create(ctx context.Context, userID, communityID string) (*models.Membership, error) {
	doc := models.Membership{
		Type:      models.TypeMembership,
		User:      models.NewRef(userID),
		Community: models.NewRef(communityID),
		Role:      models.RoleMember,
		JoinedAt:  time.Now().UTC(),
	}
	var created models.Membership
	if err := r.store.Create(ctx, doc, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// Delete removes a membership document by id.
func (r *MembershipRepository) Delete(ctx context.Context, membershipID string) error {
	return r.store.Delete(ctx, membershipID)
}

// ListByCommunity returns a community's memberships, earliest join first.
func (r *MembershipRepository) ListByCommunity(ctx context.Context, communityID string) ([]models.Membership, error) {
	var out []models.Membership
	err := r.store.Fetch(ctx, store.Query{
		Type:  models.TypeMembership,
		Refs:  map[string]string{"community": communityID},
		Order: "joinedAt",
	}, &out)
	return out, err
}

// ListByUser returns all memberships held by a user.
func (r *MembershipRepository) ListByUser(ctx context.Context, userID string) ([]models.Membership, error) {
	var out []models.Membership
	err := r.store.Fetch(ctx, store.Query{
		Type:  models.TypeMembership,
		Refs:  map[string]string{"user": userID},
		Order: "joinedAt",
	}, &out)
	return out, err
}

// CountByCommunity counts membership documents, the ground truth the cached
// member counter is reconciled against.
func (r *MembershipRepository) CountByCommunity(ctx context.Context, communityID string) (int64, error) {
	return r.store.Count(ctx, store.Query{
		Type: models.TypeMembership,
		Refs: map[string]string{"community": communityID},
	})
}
