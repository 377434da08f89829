package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diaria/diaria-assistant/internal/model"
	"github.com/diaria/diaria-assistant/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := New(":memory:")
	require.NoError(t, err)
	return st
}

func TestSnapshotReplaceAndGet(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	_, err := st.Snapshots().Get(ctx, "u-1")
	assert.ErrorIs(t, err, model.ErrNotFound)

	acts := []model.Activity{{
		ActivityID: "A1", Title: "Sprint review", Date: "2026-03-02",
		Tasks: []model.Task{{TaskID: "T1", Name: "preparar demo", DurationMinutes: 30}},
	}}
	require.NoError(t, st.Snapshots().Replace(ctx, "u-1", acts, now))

	snap, err := st.Snapshots().Get(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, snap.Activities, 1)
	assert.Equal(t, "A1", snap.Activities[0].ActivityID)
	assert.Equal(t, "preparar demo", snap.Activities[0].Tasks[0].Name)

	// Full replace, not merge.
	require.NoError(t, st.Snapshots().Replace(ctx, "u-1", nil, now.Add(time.Hour)))
	snap, err = st.Snapshots().Get(ctx, "u-1")
	require.NoError(t, err)
	assert.Empty(t, snap.Activities)
}

func TestSnapshotUpdateTask(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	acts := []model.Activity{{
		ActivityID: "A1", Date: "2026-03-02",
		Tasks: []model.Task{{TaskID: "T1", Name: "preparar demo"}},
	}}
	require.NoError(t, st.Snapshots().Replace(ctx, "u-1", acts, now))

	err := st.Snapshots().UpdateTask(ctx, "u-1", "A1", "T1", func(task *model.Task) error {
		task.ExplanationText = "grabe la demo"
		task.ReviewedByVoice = true
		task.TimesExplained++
		return nil
	})
	require.NoError(t, err)

	snap, err := st.Snapshots().Get(ctx, "u-1")
	require.NoError(t, err)
	task := snap.Activities[0].Tasks[0]
	assert.Equal(t, "grabe la demo", task.ExplanationText)
	assert.True(t, task.ReviewedByVoice)
	assert.Equal(t, 1, task.TimesExplained)

	err = st.Snapshots().UpdateTask(ctx, "u-1", "A1", "T404", func(*model.Task) error { return nil })
	assert.ErrorIs(t, err, model.ErrNotFound)

	err = st.Snapshots().UpdateTask(ctx, "nobody", "A1", "T1", func(*model.Task) error { return nil })
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestMemoryEnsureIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	rec, err := st.Memories().Ensure(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, 0.5, rec.Relevance)
	assert.True(t, rec.Active)
	for _, c := range model.MemoryCategories {
		assert.Empty(t, rec.Categories[c])
	}

	require.NoError(t, st.Memories().AppendFact(ctx, "u-1", "work", "usa tableros kanban"))

	// A second Ensure must not reset the record.
	rec, err = st.Memories().Ensure(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"usa tableros kanban"}, rec.Categories["work"])
}

func TestMemoryFactsAndTouch(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.Memories().Ensure(ctx, "u-1")
	require.NoError(t, err)

	require.NoError(t, st.Memories().AppendFact(ctx, "u-1", "preferences", "le gusta el cafe solo"))
	require.NoError(t, st.Memories().AppendFact(ctx, "u-1", "preferences", "odia las reuniones largas"))

	now := time.Now().UTC()
	require.NoError(t, st.Memories().Touch(ctx, "u-1", 0.8, now))

	rec, err := st.Memories().Get(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"le gusta el cafe solo", "odia las reuniones largas"}, rec.Categories["preferences"])
	assert.Equal(t, 0.8, rec.Relevance)
	assert.Equal(t, 1, rec.TimesAccessed)

	require.NoError(t, st.Memories().ReplaceCategory(ctx, "u-1", "preferences", []string{"le gusta el cafe solo"}))
	rec, err = st.Memories().Get(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"le gusta el cafe solo"}, rec.Categories["preferences"])

	assert.ErrorIs(t, st.Memories().Touch(ctx, "nobody", 0.5, now), model.ErrNotFound)
	assert.ErrorIs(t, st.Memories().AppendFact(ctx, "nobody", "work", "x"), model.ErrNotFound)
}

func TestMemoryConversationRing(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.Memories().Ensure(ctx, "u-1")
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		turn := model.ConversationTurn{Speaker: "user", Summary: string(rune('a' + i)), Timestamp: time.Now().UTC()}
		require.NoError(t, st.Memories().AppendConversation(ctx, "u-1", turn, 3))
	}

	rec, err := st.Memories().Get(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, rec.ConversationHistory, 3)
	assert.Equal(t, "c", rec.ConversationHistory[0].Summary)
	assert.Equal(t, "e", rec.ConversationHistory[2].Summary)
}

func TestMemoryDecay(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.Memories().Ensure(ctx, "idle")
	require.NoError(t, err)
	stale := time.Now().UTC().AddDate(0, 0, -30)
	require.NoError(t, st.Memories().Touch(ctx, "idle", 0.8, stale))

	_, err = st.Memories().Ensure(ctx, "floored")
	require.NoError(t, err)
	require.NoError(t, st.Memories().Touch(ctx, "floored", 0.1, stale))

	_, err = st.Memories().Ensure(ctx, "fresh")
	require.NoError(t, err)
	require.NoError(t, st.Memories().Touch(ctx, "fresh", 0.8, time.Now().UTC()))

	cutoff := time.Now().UTC().AddDate(0, 0, -7)
	n, err := st.Memories().Decay(ctx, cutoff, 0.9, 0.1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	rec, err := st.Memories().Get(ctx, "idle")
	require.NoError(t, err)
	assert.InDelta(t, 0.72, rec.Relevance, 1e-9)

	rec, err = st.Memories().Get(ctx, "floored")
	require.NoError(t, err)
	assert.Equal(t, 0.1, rec.Relevance)
}

func TestMemoryClear(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	_, err := st.Memories().Ensure(ctx, "u-1")
	require.NoError(t, err)
	require.NoError(t, st.Memories().AppendFact(ctx, "u-1", "work", "usa tableros kanban"))
	require.NoError(t, st.Memories().AppendFact(ctx, "u-1", "goals", "quiere correr un maraton"))

	require.NoError(t, st.Memories().ClearCategory(ctx, "u-1", "work"))
	rec, err := st.Memories().Get(ctx, "u-1")
	require.NoError(t, err)
	assert.Empty(t, rec.Categories["work"])
	assert.Len(t, rec.Categories["goals"], 1)

	require.NoError(t, st.Memories().Clear(ctx, "u-1"))
	_, err = st.Memories().Get(ctx, "u-1")
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.ErrorIs(t, st.Memories().Clear(ctx, "u-1"), model.ErrNotFound)
}
