package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diaria/diaria-assistant/internal/model"
	"github.com/diaria/diaria-assistant/internal/reconcile"
	"github.com/diaria/diaria-assistant/internal/source"
	"github.com/diaria/diaria-assistant/internal/store/storetest"
)

const (
	syncUser  = "u-7"
	syncEmail = "ana@example.com"
)

var syncNow = time.Date(2026, 3, 2, 10, 30, 0, 0, time.UTC)

type fakeSource struct {
	activities    []source.APIActivity
	activitiesErr error
	reviews       source.ReviewsPayload
	reviewsErr    error
}

func (f *fakeSource) FetchActivities(context.Context, string) ([]source.APIActivity, error) {
	return f.activities, f.activitiesErr
}

func (f *fakeSource) FetchReviews(context.Context, string) (source.ReviewsPayload, error) {
	return f.reviews, f.reviewsErr
}

func newSyncService(st *storetest.Store, src ActivitySource) *SyncService {
	filter := reconcile.Filter{
		ExcludedTitlePrefix: "[BLOQUEO]",
		ExcludedStatus:      "cancelada",
		WorkdayStart:        7,
		WorkdayEnd:          17,
	}
	svc := NewSyncService(st, src, filter, zerolog.Nop())
	svc.now = func() time.Time { return syncNow }
	return svc
}

func plannerDay() *fakeSource {
	return &fakeSource{
		activities: []source.APIActivity{
			{ID: "A1", Title: "Sprint review", StartTime: "09:00", EndTime: "10:00", ProjectTitle: "Atlas"},
		},
		reviews: source.ReviewsPayload{
			syncEmail: {Items: source.ReviewItems{Activities: []source.ReviewActivity{
				{ID: "A1", Tasks: []source.ReviewTask{
					{ID: "T1", Name: "preparar demo", DurationMin: 30, Assignees: []string{syncEmail}},
					{ID: "T2", Name: "repasar metricas", DurationMin: 15, Assignees: []string{syncEmail}},
				}},
			}}},
		},
	}
}

func TestSyncUserFirstSync(t *testing.T) {
	st := storetest.New()
	svc := newSyncService(st, plannerDay())

	res, err := svc.SyncUser(context.Background(), syncUser, syncEmail)
	require.NoError(t, err)
	assert.True(t, res.FirstSync)
	assert.True(t, res.HasChanges)
	assert.Equal(t, model.SyncStats{NewActivities: 1, NewTasks: 2}, res.Stats)

	snap, err := st.Snapshots().Get(context.Background(), syncUser)
	require.NoError(t, err)
	acts := snap.ActivitiesOn("2026-03-02")
	require.Len(t, acts, 1)
	assert.Equal(t, "A1", acts[0].ActivityID)
	require.Len(t, acts[0].Tasks, 2)
}

func TestSyncUserNoChangesSecondPass(t *testing.T) {
	st := storetest.New()
	svc := newSyncService(st, plannerDay())
	ctx := context.Background()

	_, err := svc.SyncUser(ctx, syncUser, syncEmail)
	require.NoError(t, err)

	res, err := svc.SyncUser(ctx, syncUser, syncEmail)
	require.NoError(t, err)
	assert.False(t, res.FirstSync)
	assert.False(t, res.HasChanges)
	assert.Equal(t, model.SyncStats{}, res.Stats)
}

func TestSyncUserAppliesTaskChanges(t *testing.T) {
	st := storetest.New()
	src := plannerDay()
	svc := newSyncService(st, src)
	ctx := context.Background()

	_, err := svc.SyncUser(ctx, syncUser, syncEmail)
	require.NoError(t, err)

	// T2 disappears from the planner, T3 shows up.
	tasks := src.reviews[syncEmail].Items.Activities[0].Tasks
	tasks[1] = source.ReviewTask{ID: "T3", Name: "redactar acta", DurationMin: 20, Assignees: []string{syncEmail}}

	res, err := svc.SyncUser(ctx, syncUser, syncEmail)
	require.NoError(t, err)
	assert.True(t, res.HasChanges)
	assert.Equal(t, model.SyncStats{NewTasks: 1, RemovedTasks: 1}, res.Stats)

	snap, err := st.Snapshots().Get(ctx, syncUser)
	require.NoError(t, err)
	acts := snap.ActivitiesOn("2026-03-02")
	require.Len(t, acts, 1)
	ids := make([]string, 0, 2)
	for _, task := range acts[0].Tasks {
		ids = append(ids, task.TaskID)
	}
	assert.ElementsMatch(t, []string{"T1", "T3"}, ids)
}

func TestSyncUserActivitiesFetchFailureIsFatal(t *testing.T) {
	st := storetest.New()
	svc := newSyncService(st, &fakeSource{activitiesErr: errors.New("planner down")})

	_, err := svc.SyncUser(context.Background(), syncUser, syncEmail)
	assert.ErrorIs(t, err, model.ErrExternalSource)

	_, err = st.Snapshots().Get(context.Background(), syncUser)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestSyncUserReviewsFailureDegrades(t *testing.T) {
	st := storetest.New()
	src := plannerDay()
	src.reviewsErr = errors.New("reviews down")
	svc := newSyncService(st, src)

	// Without reviews no tasks attach, so the valid set is empty and the
	// first sync writes an empty snapshot rather than failing.
	res, err := svc.SyncUser(context.Background(), syncUser, syncEmail)
	require.NoError(t, err)
	assert.True(t, res.FirstSync)
	assert.False(t, res.HasChanges)
	assert.Equal(t, model.SyncStats{}, res.Stats)
}

func TestSyncUserPreservesOtherDates(t *testing.T) {
	st := storetest.New()
	svc := newSyncService(st, plannerDay())
	ctx := context.Background()

	yesterday := model.Activity{
		ActivityID: "OLD", Title: "Retro", Date: "2026-03-01",
		Tasks: []model.Task{{TaskID: "TOLD", Name: "notas retro", DurationMinutes: 10}},
	}
	require.NoError(t, st.Snapshots().Replace(ctx, syncUser, []model.Activity{yesterday}, syncNow.Add(-24*time.Hour)))

	res, err := svc.SyncUser(ctx, syncUser, syncEmail)
	require.NoError(t, err)
	assert.False(t, res.FirstSync)
	assert.Equal(t, model.SyncStats{NewActivities: 1, NewTasks: 2}, res.Stats)

	snap, err := st.Snapshots().Get(ctx, syncUser)
	require.NoError(t, err)
	assert.Len(t, snap.ActivitiesOn("2026-03-01"), 1)
	assert.Len(t, snap.ActivitiesOn("2026-03-02"), 1)
}

func TestDetectChangesIsDryRun(t *testing.T) {
	st := storetest.New()
	svc := newSyncService(st, plannerDay())
	ctx := context.Background()

	diff, first, err := svc.DetectChanges(ctx, syncUser, syncEmail)
	require.NoError(t, err)
	assert.True(t, first)
	assert.Nil(t, diff)

	_, err = svc.SyncUser(ctx, syncUser, syncEmail)
	require.NoError(t, err)

	diff, first, err = svc.DetectChanges(ctx, syncUser, syncEmail)
	require.NoError(t, err)
	assert.False(t, first)
	require.NotNil(t, diff)
	assert.False(t, diff.HasChanges())
}

func TestApplyChangesPersistsDetectedDiff(t *testing.T) {
	st := storetest.New()
	src := plannerDay()
	svc := newSyncService(st, src)
	ctx := context.Background()

	_, err := svc.SyncUser(ctx, syncUser, syncEmail)
	require.NoError(t, err)

	tasks := src.reviews[syncEmail].Items.Activities[0].Tasks
	tasks[1] = source.ReviewTask{ID: "T3", Name: "redactar acta", DurationMin: 20, Assignees: []string{syncEmail}}

	diff, first, err := svc.DetectChanges(ctx, syncUser, syncEmail)
	require.NoError(t, err)
	require.False(t, first)
	require.True(t, diff.HasChanges())

	stats, err := svc.ApplyChanges(ctx, syncUser, *diff)
	require.NoError(t, err)
	assert.Equal(t, model.SyncStats{NewTasks: 1, RemovedTasks: 1}, stats)

	snap, err := st.Snapshots().Get(ctx, syncUser)
	require.NoError(t, err)
	ids := make([]string, 0, 2)
	for _, task := range snap.ActivitiesOn("2026-03-02")[0].Tasks {
		ids = append(ids, task.TaskID)
	}
	assert.ElementsMatch(t, []string{"T1", "T3"}, ids)

	_, err = svc.ApplyChanges(ctx, "nobody", *diff)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestActivitiesOn(t *testing.T) {
	st := storetest.New()
	svc := newSyncService(st, plannerDay())
	ctx := context.Background()

	_, err := svc.SyncUser(ctx, syncUser, syncEmail)
	require.NoError(t, err)

	acts, err := svc.ActivitiesOn(ctx, syncUser, "2026-03-02")
	require.NoError(t, err)
	assert.Len(t, acts, 1)

	acts, err = svc.ActivitiesOn(ctx, syncUser, "2026-03-03")
	require.NoError(t, err)
	assert.Empty(t, acts)

	_, err = svc.ActivitiesOn(ctx, "nobody", "2026-03-02")
	assert.ErrorIs(t, err, model.ErrNotFound)
}
