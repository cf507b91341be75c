package services

import (
	"context"

	"github.com/driftline/driftline/repository"
)

// CounterReconciler applies relative adjustments to a community's cached
// member count right after a membership change. The read before each write
// does not guard against races; it only picks between first-initialization
// and steady-state delta semantics and enforces the floor at zero. The delta
// itself is the store's atomic per-field operation, which is safe under
// concurrent writers to the same document.
type CounterReconciler struct {
	communities *repository.CommunityRepository
}

func NewCounterReconciler(communities *repository.CommunityRepository) *CounterReconciler {
	return &CounterReconciler{communities: communities}
}

// IncrementMembers bumps the counter by one, initializing an absent field to
// 1 so the count never starts out undefined.
func (c *CounterReconciler) IncrementMembers(ctx context.Context, communityID string) error {
	community, err := c.communities.Get(ctx, communityID)
	if err != nil {
		return err
	}
	if community.MemberCount == nil {
		return c.communities.SetMemberCount(ctx, communityID, 1)
	}
	return c.communities.IncMemberCount(ctx, communityID)
}

// DecrementMembers drops the counter by one. When the field is absent or
// already at or below zero it is clamped to zero instead; the counter must
// never go negative.
func (c *CounterReconciler) DecrementMembers(ctx context.Context, communityID string) error {
	community, err := c.communities.Get(ctx, communityID)
	if err != nil {
		return err
	}
	if community.MemberCount != nil && *community.MemberCount > 0 {
		return c.communities.DecMemberCount(ctx, communityID)
	}
	return c.communities.SetMemberCount(ctx, communityID, 0)
}
