package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/driftline/driftline/models"
	"github.com/driftline/driftline/repository"
	"github.com/driftline/driftline/store"
)

func (e *testEnv) seedMembership(t *testing.T, id, userID, communityID string, joinedAt time.Time) {
	t.Helper()
	err := e.store.Create(context.Background(), models.Membership{
		ID:        id,
		Type:      models.TypeMembership,
		User:      models.NewRef(userID),
		Community: models.NewRef(communityID),
		Role:      models.RoleMember,
		JoinedAt:  joinedAt,
	}, nil)
	require.NoError(t, err)
}

func TestReconcileOneCorrectsDrift(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	now := time.Now().UTC()

	// Cached counter says 5, ground truth is 2 memberships.
	env.seedCommunity(t, "c1", "golang", countOf(5))
	env.seedMembership(t, "m1", "u1", "c1", now.Add(-2*time.Hour))
	env.seedMembership(t, "m2", "u2", "c1", now.Add(-time.Hour))

	report, err := env.reconciler.ReconcileOne(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(5), report.Previous)
	assert.Equal(t, int64(2), report.New)
	assert.True(t, report.Changed)
	assert.Equal(t, int64(2), *env.memberCount(t, "c1"))

	// Idempotent: a second pass finds no drift and writes nothing.
	again, err := env.reconciler.ReconcileOne(ctx, "c1")
	require.NoError(t, err)
	assert.False(t, again.Changed)
	assert.Equal(t, again.Previous, again.New)
}

func TestReconcileAbsentCounterReadsAsZero(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedCommunity(t, "c1", "golang", nil)
	env.seedMembership(t, "m1", "u1", "c1", time.Now().UTC())

	report, err := env.reconciler.ReconcileOne(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), report.Previous)
	assert.Equal(t, int64(1), report.New)
	assert.True(t, report.Changed)
}

func TestReconcileRepairsNonNumericCounter(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.seedCommunityDoc(t, map[string]any{"_id": "c1", "title": "golang", "memberCount": "five"})
	env.seedMembership(t, "m1", "u1", "c1", time.Now().UTC())

	report, err := env.reconciler.ReconcileOne(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), report.Previous, "garbage counter reads as zero")
	assert.Equal(t, int64(1), report.New)
	assert.True(t, report.Changed)
	require.NotNil(t, env.memberCount(t, "c1"))
	assert.Equal(t, int64(1), *env.memberCount(t, "c1"))
}

func TestReconcileMissingCommunity(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.reconciler.ReconcileOne(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReconcileRemovesDuplicateMemberships(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	now := time.Now().UTC()

	// Two concurrent joins slipped past the advisory check for u1.
	env.seedCommunity(t, "c1", "golang", countOf(3))
	env.seedMembership(t, "m-early", "u1", "c1", now.Add(-3*time.Hour))
	env.seedMembership(t, "m-late", "u1", "c1", now.Add(-time.Hour))
	env.seedMembership(t, "m-other", "u2", "c1", now.Add(-2*time.Hour))

	report, err := env.reconciler.ReconcileOne(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, 1, report.Deduped)
	assert.Equal(t, int64(2), report.New)
	assert.True(t, report.Changed)

	// The earliest join is the one kept.
	var kept models.Membership
	require.NoError(t, env.store.Get(ctx, "m-early", &kept))
	require.ErrorIs(t, env.store.Get(ctx, "m-late", &models.Membership{}), store.ErrNotFound)
}

// countFailStore fails membership counting for one community, standing in
// for a store outage that hits mid-batch.
type countFailStore struct {
	store.Client
	failCommunity string
}

func (s *countFailStore) Count(ctx context.Context, q store.Query) (int64, error) {
	if q.Refs["community"] == s.failCommunity {
		return 0, errors.New("count unavailable")
	}
	return s.Client.Count(ctx, q)
}

// One community failing is recorded in its report; the rest of the batch
// still commits its corrections.
func TestReconcileAllContinuesPastFailure(t *testing.T) {
	ctx := context.Background()
	ms := store.NewMemStore()
	fs := &countFailStore{Client: ms, failCommunity: "bad"}
	memberships := repository.NewMembershipRepository(fs)
	communities := repository.NewCommunityRepository(fs)
	reconciler := NewReconciler(memberships, communities, nil, zap.NewNop().Sugar())
	now := time.Now().UTC()

	for _, c := range []models.Community{
		{ID: "good", Type: models.TypeCommunity, Title: "golang", MemberCount: countOf(5), CreatedAt: now},
		{ID: "bad", Type: models.TypeCommunity, Title: "rust", MemberCount: countOf(2), CreatedAt: now.Add(-time.Minute)},
	} {
		require.NoError(t, ms.Create(ctx, c, nil))
	}
	for _, m := range []models.Membership{
		{ID: "m1", Type: models.TypeMembership, User: models.NewRef("u1"), Community: models.NewRef("good"), Role: models.RoleMember, JoinedAt: now},
		{ID: "m2", Type: models.TypeMembership, User: models.NewRef("u2"), Community: models.NewRef("bad"), Role: models.RoleMember, JoinedAt: now},
	} {
		require.NoError(t, ms.Create(ctx, m, nil))
	}

	summary, err := reconciler.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Checked)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 1, summary.Failed)

	byID := map[string]ReconcileReport{}
	for _, r := range summary.Reports {
		byID[r.CommunityID] = r
	}
	assert.NotEmpty(t, byID["bad"].Error)
	assert.False(t, byID["bad"].Changed)
	assert.True(t, byID["good"].Changed)

	var good, bad models.Community
	require.NoError(t, ms.Get(ctx, "good", &good))
	require.NoError(t, ms.Get(ctx, "bad", &bad))
	assert.Equal(t, int64(1), good.Members(), "healthy community corrected despite the failure")
	assert.Equal(t, int64(2), bad.Members(), "failed community left untouched")
}

func TestReconcileAll(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	now := time.Now().UTC()

	env.seedCommunity(t, "drifted", "golang", countOf(5))
	env.seedMembership(t, "m1", "u1", "drifted", now)
	env.seedCommunity(t, "clean", "rust", countOf(1))
	env.seedMembership(t, "m2", "u2", "clean", now)

	summary, err := env.reconciler.ReconcileAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Checked)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 0, summary.Failed)
	require.Len(t, summary.Reports, 2)

	assert.Equal(t, int64(1), *env.memberCount(t, "drifted"))
	assert.Equal(t, int64(1), *env.memberCount(t, "clean"))
}
