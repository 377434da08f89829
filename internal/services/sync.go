package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/diaria/diaria-assistant/internal/model"
	"github.com/diaria/diaria-assistant/internal/reconcile"
	"github.com/diaria/diaria-assistant/internal/source"
	"github.com/diaria/diaria-assistant/internal/store"
)

// ActivitySource is the slice of the planner client the sync flow needs.
type ActivitySource interface {
	FetchActivities(ctx context.Context, date string) ([]source.APIActivity, error)
	FetchReviews(ctx context.Context, date string) (source.ReviewsPayload, error)
}

// SyncService reconciles the planner's current-day view against each
// user's persisted snapshot.
//
// Two concurrent syncs for the same user race on the read-recompute-
// replace cycle; the last replace wins. This is an accepted weak-
// consistency window, not an invariant violation: the next sync converges
// again in one pass.
type SyncService struct {
	store  store.Store
	src    ActivitySource
	filter reconcile.Filter
	log    zerolog.Logger

	// now is swappable for tests.
	now func() time.Time
}

func NewSyncService(s store.Store, src ActivitySource, filter reconcile.Filter, log zerolog.Logger) *SyncService {
	return &SyncService{store: s, src: src, filter: filter, log: log, now: time.Now}
}

// DetectChanges computes today's diff without writing anything. A missing
// snapshot yields a nil diff and firstSync=true.
func (s *SyncService) DetectChanges(ctx context.Context, userID, email string) (*model.SnapshotDiff, bool, error) {
	now := s.now().UTC()
	today := now.Format("2006-01-02")

	valid, err := s.fetchValidActivities(ctx, email, today, now)
	if err != nil {
		return nil, false, err
	}

	snap, err := s.store.Snapshots().Get(ctx, userID)
	if errors.Is(err, model.ErrNotFound) {
		return nil, true, nil
	}
	if err != nil {
		return nil, false, err
	}

	diff := reconcile.Diff(valid, snap.Activities, today)
	return &diff, false, nil
}

// SyncUser runs one full sync cycle: fetch, filter, diff, apply, persist.
// The snapshot write is a single full replace, so a failed cycle leaves
// the prior snapshot untouched.
func (s *SyncService) SyncUser(ctx context.Context, userID, email string) (*model.SyncResult, error) {
	now := s.now().UTC()
	today := now.Format("2006-01-02")
	result := &model.SyncResult{UserID: userID, SyncTime: now}

	valid, err := s.fetchValidActivities(ctx, email, today, now)
	if err != nil {
		return nil, err
	}

	snap, err := s.store.Snapshots().Get(ctx, userID)
	switch {
	case errors.Is(err, model.ErrNotFound):
		// First sync: no diffing, the whole valid view becomes the
		// initial snapshot.
		activities, stats := reconcile.InitialSnapshot(valid, now)
		if err := s.store.Snapshots().Replace(ctx, userID, activities, now); err != nil {
			return nil, err
		}
		result.FirstSync = true
		result.Stats = stats
		result.HasChanges = stats != (model.SyncStats{})
		s.log.Info().Str("user", userID).Int("activities", stats.NewActivities).
			Int("tasks", stats.NewTasks).Msg("initial snapshot written")
		return result, nil
	case err != nil:
		return nil, err
	}

	diff := reconcile.Diff(valid, snap.Activities, today)
	if !diff.HasChanges() {
		return result, nil
	}

	next, stats := reconcile.Apply(snap.Activities, diff, today, now)
	if err := s.store.Snapshots().Replace(ctx, userID, next, now); err != nil {
		return nil, err
	}
	result.HasChanges = true
	result.Stats = stats
	s.log.Info().Str("user", userID).
		Int("new_activities", stats.NewActivities).
		Int("new_tasks", stats.NewTasks).
		Int("removed_tasks", stats.RemovedTasks).
		Int("updated_tasks", stats.UpdatedTasks).
		Int("reassigned_tasks", stats.ReassignedTasks).
		Msg("snapshot reconciled")
	return result, nil
}

// ApplyChanges applies a previously computed diff on top of the user's
// current snapshot and persists the result. The caller owns the diff's
// freshness; a stale diff is applied as-is.
func (s *SyncService) ApplyChanges(ctx context.Context, userID string, diff model.SnapshotDiff) (model.SyncStats, error) {
	now := s.now().UTC()
	today := now.Format("2006-01-02")

	snap, err := s.store.Snapshots().Get(ctx, userID)
	if err != nil {
		return model.SyncStats{}, err
	}
	next, stats := reconcile.Apply(snap.Activities, diff, today, now)
	if err := s.store.Snapshots().Replace(ctx, userID, next, now); err != nil {
		return model.SyncStats{}, err
	}
	return stats, nil
}

// ActivitiesOn returns the user's persisted activities for one date.
func (s *SyncService) ActivitiesOn(ctx context.Context, userID, date string) ([]model.Activity, error) {
	snap, err := s.store.Snapshots().Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return snap.ActivitiesOn(date), nil
}

// fetchValidActivities pulls both planner payloads and filters them. An
// activities failure is fatal; a reviews failure degrades to an empty
// payload, which yields activities with zero attached tasks and therefore
// an empty valid set.
func (s *SyncService) fetchValidActivities(ctx context.Context, email, today string, now time.Time) ([]model.Activity, error) {
	acts, err := s.src.FetchActivities(ctx, today)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrExternalSource, err)
	}

	reviews, err := s.src.FetchReviews(ctx, today)
	if err != nil {
		s.log.Warn().Err(err).Msg("reviews fetch failed, continuing without tasks")
		reviews = source.ReviewsPayload{}
	}

	return s.filter.FilterActivities(acts, reviews, email, today, now), nil
}
