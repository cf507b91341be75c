package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/driftline/driftline/events"
	"github.com/driftline/driftline/models"
	"github.com/driftline/driftline/repository"
	"github.com/driftline/driftline/store"
)

// MemberInfo is one row of a community member listing.
type MemberInfo struct {
	MembershipID string       `json:"membership_id"`
	Role         string       `json:"role"`
	JoinedAt     time.Time    `json:"joined_at"`
	User         *models.User `json:"user,omitempty"`
}

// MembershipService drives the join/leave lifecycle. Each change is two
// independent store commits: the membership document first, then the cached
// counter. The membership write is authoritative; a failed counter write is
// logged and left for the reconciler, never rolled back.
type MembershipService struct {
	memberships *repository.MembershipRepository
	communities *repository.CommunityRepository
	users       *repository.UserRepository
	counter     *CounterReconciler
	producer    *events.Producer
	log         *zap.SugaredLogger
}

func NewMembershipService(
	memberships *repository.MembershipRepository,
	communities *repository.CommunityRepository,
	users *repository.UserRepository,
	counter *CounterReconciler,
	producer *events.Producer,
	log *zap.SugaredLogger,
) *MembershipService {
	return &MembershipService{
		memberships: memberships,
		communities: communities,
		users:       users,
		counter:     counter,
		producer:    producer,
		log:         log,
	}
}

// Join makes the user a member of the community and bumps the cached count.
// A second join without an intervening leave fails with ErrAlreadyMember;
// the existence check is advisory, so two concurrent joins can still slip
// through and are deduplicated by the reconciler.
func (s *MembershipService) Join(ctx context.Context, userID, communityID string) (*models.Membership, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	exists, err := s.memberships.Exists(ctx, userID, communityID)
	if err != nil {
		return nil, s.storeErr("check membership", err)
	}
	if exists {
		return nil, ErrAlreadyMember
	}

	membership, err := s.memberships.Create(ctx, userID, communityID)
	if err != nil {
		return nil, s.storeErr("create membership", err)
	}

	// Membership is durable from here on; the counter is best-effort.
	if err := s.counter.IncrementMembers(ctx, communityID); err != nil {
		s.log.Warnw("member count increment failed, leaving drift for reconciliation",
			"community", communityID, "user", userID, "err", err)
	}

	s.producer.Publish(ctx, events.Event{Kind: events.KindJoined, CommunityID: communityID, UserID: userID})
	return membership, nil
}

// Leave removes the user's membership and drops the cached count, with the
// same non-rollback policy as Join.
func (s *MembershipService) Leave(ctx context.Context, userID, communityID string) error {
	if userID == "" {
		return ErrUnauthenticated
	}

	membership, err := s.memberships.Find(ctx, userID, communityID)
	if err != nil {
		return s.storeErr("find membership", err)
	}
	if membership == nil {
		return ErrNotMember
	}

	if err := s.memberships.Delete(ctx, membership.ID); err != nil {
		return s.storeErr("delete membership", err)
	}

	if err := s.counter.DecrementMembers(ctx, communityID); err != nil {
		s.log.Warnw("member count decrement failed, leaving drift for reconciliation",
			"community", communityID, "user", userID, "err", err)
	}

	s.producer.Publish(ctx, events.Event{Kind: events.KindLeft, CommunityID: communityID, UserID: userID})
	return nil
}

// IsMember reports membership for UI gating. Any resolution failure,
// including a missing identity, reads as false rather than an error.
func (s *MembershipService) IsMember(ctx context.Context, userID, communityID string) bool {
	if userID == "" {
		return false
	}
	membership, err := s.memberships.Find(ctx, userID, communityID)
	if err != nil {
		s.log.Debugw("membership check failed", "community", communityID, "user", userID, "err", err)
		return false
	}
	return membership != nil
}

// ListMembers returns a community's members with their user documents
// expanded. Members whose user document no longer resolves are listed
// without it.
func (s *MembershipService) ListMembers(ctx context.Context, communityID string) ([]MemberInfo, error) {
	memberships, err := s.memberships.ListByCommunity(ctx, communityID)
	if err != nil {
		return nil, s.storeErr("list members", err)
	}
	out := make([]MemberInfo, 0, len(memberships))
	for _, m := range memberships {
		info := MemberInfo{MembershipID: m.ID, Role: m.Role, JoinedAt: m.JoinedAt}
		user, err := s.users.Get(ctx, m.User.Ref)
		if err == nil {
			info.User = user
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, s.storeErr("load member user", err)
		}
		out = append(out, info)
	}
	return out, nil
}

// JoinedCommunities lists the communities the user belongs to.
func (s *MembershipService) JoinedCommunities(ctx context.Context, userID string) ([]models.Community, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	memberships, err := s.memberships.ListByUser(ctx, userID)
	if err != nil {
		return nil, s.storeErr("list user memberships", err)
	}
	out := make([]models.Community, 0, len(memberships))
	for _, m := range memberships {
		community, err := s.communities.Get(ctx, m.Community.Ref)
		if errors.Is(err, store.ErrNotFound) {
			continue // community deleted out of band, membership is stale
		}
		if err != nil {
			return nil, s.storeErr("load joined community", err)
		}
		out = append(out, *community)
	}
	return out, nil
}

func (s *MembershipService) storeErr(op string, err error) error {
	s.log.Errorw("store call failed", "op", op, "err", err)
	return fmt.Errorf("%w: %s", ErrStoreUnavailable, op)
}
