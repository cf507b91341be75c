package services

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/driftline/driftline/events"
	"github.com/driftline/driftline/repository"
	"github.com/driftline/driftline/store"
)

// ReconcileReport describes one community's correction.
type ReconcileReport struct {
	CommunityID string `json:"community_id"`
	Title       string `json:"title,omitempty"`
	Previous    int64  `json:"previous"`
	New         int64  `json:"new"`
	Changed     bool   `json:"changed"`
	Deduped     int    `json:"deduped,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ReconcileSummary aggregates a full reconciliation pass.
type ReconcileSummary struct {
	Checked int               `json:"checked"`
	Updated int               `json:"updated"`
	Failed  int               `json:"failed"`
	Reports []ReconcileReport `json:"reports"`
}

// Reconciler recomputes cached member counts from the membership documents.
// It is the convergence half of the design: the request path applies cheap
// incremental deltas that can drift when the second write of a join or leave
// fails, and this job corrects whatever drift has accumulated. It runs off
// the request path, on demand.
type Reconciler struct {
	memberships *repository.MembershipRepository
	communities *repository.CommunityRepository
	producer    *events.Producer
	log         *zap.SugaredLogger
}

func NewReconciler(
	memberships *repository.MembershipRepository,
	communities *repository.CommunityRepository,
	producer *events.Producer,
	log *zap.SugaredLogger,
) *Reconciler {
	return &Reconciler{
		memberships: memberships,
		communities: communities,
		producer:    producer,
		log:         log,
	}
}

// ReconcileOne recounts a community's memberships and corrects the cached
// field when it disagrees. Duplicate membership documents for the same user,
// the residue of the advisory uniqueness check losing a race, are deleted
// before counting. Idempotent: a second run with no intervening changes
// reports Previous == New and writes nothing.
func (r *Reconciler) ReconcileOne(ctx context.Context, communityID string) (*ReconcileReport, error) {
	community, err := r.communities.Get(ctx, communityID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, r.storeErr("load community", err)
	}

	deduped, err := r.dedupMemberships(ctx, communityID)
	if err != nil {
		return nil, r.storeErr("dedup memberships", err)
	}

	actual, err := r.memberships.CountByCommunity(ctx, communityID)
	if err != nil {
		return nil, r.storeErr("count memberships", err)
	}

	report := &ReconcileReport{
		CommunityID: communityID,
		Title:       community.Title,
		Previous:    community.Members(),
		New:         actual,
		Deduped:     deduped,
	}
	if report.Previous == report.New {
		return report, nil
	}

	if err := r.communities.SetMemberCount(ctx, communityID, actual); err != nil {
		return nil, r.storeErr("correct member count", err)
	}
	report.Changed = true
	r.log.Infow("member count corrected",
		"community", communityID, "previous", report.Previous, "new", report.New)
	r.producer.Publish(ctx, events.Event{
		Kind:        events.KindCorrected,
		CommunityID: communityID,
		Previous:    report.Previous,
		New:         report.New,
	})
	return report, nil
}

// ReconcileAll walks every community and applies ReconcileOne. Corrections
// commit independently; one community failing is recorded in its report and
// does not stop or undo the rest of the batch.
func (r *Reconciler) ReconcileAll(ctx context.Context) (*ReconcileSummary, error) {
	communities, err := r.communities.List(ctx)
	if err != nil {
		return nil, r.storeErr("list communities", err)
	}

	summary := &ReconcileSummary{Reports: make([]ReconcileReport, 0, len(communities))}
	for _, community := range communities {
		summary.Checked++
		report, err := r.ReconcileOne(ctx, community.ID)
		if err != nil {
			summary.Failed++
			summary.Reports = append(summary.Reports, ReconcileReport{
				CommunityID: community.ID,
				Title:       community.Title,
				Error:       err.Error(),
			})
			continue
		}
		if report.Changed {
			summary.Updated++
		}
		summary.Reports = append(summary.Reports, *report)
	}
	return summary, nil
}

// dedupMemberships deletes surplus membership documents per user, keeping the
// earliest join. Returns how many documents were removed.
func (r *Reconciler) dedupMemberships(ctx context.Context, communityID string) (int, error) {
	memberships, err := r.memberships.ListByCommunity(ctx, communityID)
	if err != nil {
		return 0, err
	}
	seen := map[string]bool{}
	removed := 0
	for _, m := range memberships {
		if !seen[m.User.Ref] {
			seen[m.User.Ref] = true
			continue
		}
		if err := r.memberships.Delete(ctx, m.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return removed, err
		}
		removed++
		r.log.Infow("duplicate membership removed",
			"community", communityID, "user", m.User.Ref, "membership", m.ID)
	}
	return removed, nil
}

func (r *Reconciler) storeErr(op string, err error) error {
	r.log.Errorw("store call failed", "op", op, "err", err)
	return fmt.Errorf("%w: %s", ErrStoreUnavailable, op)
}
