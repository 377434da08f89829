package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diaria/diaria-assistant/internal/model"
	"github.com/diaria/diaria-assistant/internal/store/storetest"
)

const memUser = "u-42"

func newMemoryService(st *storetest.Store) *MemoryService {
	return NewMemoryService(st, nil, nil)
}

func TestCreateFactInsertsIntoEmptyRecord(t *testing.T) {
	st := storetest.New()
	svc := newMemoryService(st)

	res, err := svc.CreateFact(context.Background(), CreateFactRequest{
		UserID:   memUser,
		Category: "work",
		Text:     "  Trabaja con el equipo de plataforma.  ",
	})
	require.NoError(t, err)
	assert.True(t, res.Inserted)
	assert.False(t, res.Duplicate)
	assert.Equal(t, "work", res.Category)
	assert.Equal(t, "trabaja con el equipo de plataforma", res.Text)

	rec := st.Record(memUser)
	require.NotNil(t, rec)
	assert.Equal(t, []string{"trabaja con el equipo de plataforma"}, rec.Categories["work"])
	assert.Equal(t, 0.7, rec.Relevance)
	assert.Equal(t, 1, rec.TimesAccessed)
}

func TestCreateFactDuplicateReinforcesRelevance(t *testing.T) {
	st := storetest.New()
	svc := newMemoryService(st)

	_, err := svc.CreateFact(context.Background(), CreateFactRequest{
		UserID: memUser, Category: "work", Text: "prefiere reuniones por la manana",
	})
	require.NoError(t, err)

	res, err := svc.CreateFact(context.Background(), CreateFactRequest{
		UserID: memUser, Category: "work", Text: "Prefiere reuniones por la manana.",
	})
	require.NoError(t, err)
	assert.True(t, res.Duplicate)
	assert.False(t, res.Inserted)
	assert.Equal(t, 1.0, res.Similarity)
	assert.Equal(t, "prefiere reuniones por la manana", res.MatchedText)

	rec := st.Record(memUser)
	assert.Len(t, rec.Categories["work"], 1)
	assert.InDelta(t, 0.75, rec.Relevance, 1e-9)
	assert.Equal(t, 2, rec.TimesAccessed)
}

func TestCreateFactUnknownCategoryFallsBackToGeneral(t *testing.T) {
	st := storetest.New()
	svc := newMemoryService(st)

	res, err := svc.CreateFact(context.Background(), CreateFactRequest{
		UserID: memUser, Category: "hobbies", Text: "colecciona mapas antiguos",
	})
	require.NoError(t, err)
	assert.Equal(t, model.CategoryGeneral, res.Category)

	rec := st.Record(memUser)
	assert.Equal(t, []string{"colecciona mapas antiguos"}, rec.Categories[model.CategoryGeneral])
}

func TestCreateFactRejectsShortText(t *testing.T) {
	svc := newMemoryService(storetest.New())

	_, err := svc.CreateFact(context.Background(), CreateFactRequest{UserID: memUser, Text: "ok"})
	assert.ErrorIs(t, err, model.ErrValidation)

	// Long enough raw, too short once normalized.
	_, err = svc.CreateFact(context.Background(), CreateFactRequest{UserID: memUser, Text: "   cafe.;,   "})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestCreateFactRelevanceNeverDrops(t *testing.T) {
	st := storetest.New()
	now := time.Now().UTC()
	rec := model.NewMemoryRecord(memUser, now)
	rec.Relevance = 0.9
	st.SeedRecord(rec)
	svc := newMemoryService(st)

	_, err := svc.CreateFact(context.Background(), CreateFactRequest{
		UserID: memUser, Category: "personal", Text: "vive en valencia desde 2020", RelevanceHint: 0.3,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.9, st.Record(memUser).Relevance)
}

func TestGetRelevantRanksByHits(t *testing.T) {
	st := storetest.New()
	svc := newMemoryService(st)
	ctx := context.Background()

	for _, f := range []struct{ cat, text string }{
		{"preferences", "le gusta el cafe solo por la manana"},
		{"work", "presenta informes los viernes"},
		{"general", "toma cafe descafeinado por la tarde"},
	} {
		_, err := svc.CreateFact(ctx, CreateFactRequest{UserID: memUser, Category: f.cat, Text: f.text})
		require.NoError(t, err)
	}

	res, err := svc.GetRelevant(ctx, memUser, "cafe por la manana", 10)
	require.NoError(t, err)
	require.Len(t, res.Facts, 2)
	// "cafe", "por" and "manana" survive the keyword cut; "la" does not.
	assert.Equal(t, "le gusta el cafe solo por la manana", res.Facts[0].Text)
	assert.Equal(t, 3, res.Facts[0].Hits)
	assert.Equal(t, "toma cafe descafeinado por la tarde", res.Facts[1].Text)
	assert.Equal(t, 2, res.Facts[1].Hits)
}

func TestGetRelevantWithoutKeywordsReturnsWholeRecord(t *testing.T) {
	st := storetest.New()
	svc := newMemoryService(st)
	ctx := context.Background()

	_, err := svc.CreateFact(ctx, CreateFactRequest{UserID: memUser, Category: "goals", Text: "quiere aprender frances"})
	require.NoError(t, err)
	before := st.Record(memUser).TimesAccessed

	res, err := svc.GetRelevant(ctx, memUser, "a el", 10)
	require.NoError(t, err)
	assert.Nil(t, res.Facts)
	require.NotNil(t, res.Record)
	assert.Equal(t, []string{"quiere aprender frances"}, res.Record.Categories["goals"])
	assert.Equal(t, before+1, st.Record(memUser).TimesAccessed)
}

func TestGetRelevantNoMatchDoesNotTouch(t *testing.T) {
	st := storetest.New()
	svc := newMemoryService(st)
	ctx := context.Background()

	_, err := svc.CreateFact(ctx, CreateFactRequest{UserID: memUser, Category: "skills", Text: "programa en python"})
	require.NoError(t, err)
	before := st.Record(memUser).TimesAccessed

	res, err := svc.GetRelevant(ctx, memUser, "submarinismo", 10)
	require.NoError(t, err)
	assert.Empty(t, res.Facts)
	assert.Equal(t, before, st.Record(memUser).TimesAccessed)
}

func TestGetRelevantUnknownUser(t *testing.T) {
	svc := newMemoryService(storetest.New())
	_, err := svc.GetRelevant(context.Background(), "nobody", "cafe", 10)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func TestBuildAIContext(t *testing.T) {
	st := storetest.New()
	svc := newMemoryService(st)
	ctx := context.Background()

	_, err := svc.CreateFact(ctx, CreateFactRequest{UserID: memUser, Category: "work", Text: "lidera el proyecto atlas"})
	require.NoError(t, err)
	_, err = svc.CreateFact(ctx, CreateFactRequest{UserID: memUser, Category: "work", Text: "revisa codigo cada tarde"})
	require.NoError(t, err)
	_, err = svc.CreateFact(ctx, CreateFactRequest{UserID: memUser, Category: "personal", Text: "tiene dos hijos pequenos"})
	require.NoError(t, err)

	out, err := svc.BuildAIContext(ctx, memUser)
	require.NoError(t, err)
	assert.Equal(t, "PERSONAL: tiene dos hijos pequenos\nWORK: lidera el proyecto atlas; revisa codigo cada tarde", out)
}

func TestBuildAIContextAbsentUserIsEmpty(t *testing.T) {
	svc := newMemoryService(storetest.New())
	out, err := svc.BuildAIContext(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, "", out)
}

func TestDecayRelevanceRespectsFloor(t *testing.T) {
	st := storetest.New()
	svc := newMemoryService(st)
	stale := time.Now().UTC().AddDate(0, 0, -30)

	fresh := model.NewMemoryRecord("fresh", time.Now().UTC())
	fresh.Relevance = 0.8
	st.SeedRecord(fresh)

	idle := model.NewMemoryRecord("idle", stale)
	idle.Relevance = 0.8
	idle.LastAccessed = stale
	st.SeedRecord(idle)

	floored := model.NewMemoryRecord("floored", stale)
	floored.Relevance = 0.1
	floored.LastAccessed = stale
	st.SeedRecord(floored)

	n, err := svc.DecayRelevance(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.InDelta(t, 0.72, st.Record("idle").Relevance, 1e-9)
	assert.Equal(t, 0.8, st.Record("fresh").Relevance)
	assert.Equal(t, 0.1, st.Record("floored").Relevance)
}

func TestDeduplicateExisting(t *testing.T) {
	st := storetest.New()
	rec := model.NewMemoryRecord(memUser, time.Now().UTC())
	rec.Categories["preferences"] = []string{
		"le gusta el cafe solo",
		"le gusta el cafe solo.",
		"odia las reuniones largas",
	}
	st.SeedRecord(rec)
	svc := newMemoryService(st)

	removed, err := svc.DeduplicateExisting(context.Background(), memUser)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)
	assert.Equal(t,
		[]string{"le gusta el cafe solo", "odia las reuniones largas"},
		st.Record(memUser).Categories["preferences"])
}

func TestRecordConversationBoundsRing(t *testing.T) {
	st := storetest.New()
	svc := newMemoryService(st)
	ctx := context.Background()

	for i := 0; i < model.ConversationHistoryLimit+4; i++ {
		speaker := "user"
		if i%2 == 1 {
			speaker = "ai"
		}
		require.NoError(t, svc.RecordConversation(ctx, memUser, speaker, fmt.Sprintf("turno %d", i)))
	}

	rec := st.Record(memUser)
	require.Len(t, rec.ConversationHistory, model.ConversationHistoryLimit)
	// Oldest turns fell off the front.
	assert.Equal(t, "turno 4", rec.ConversationHistory[0].Summary)
	assert.Equal(t, fmt.Sprintf("turno %d", model.ConversationHistoryLimit+3),
		rec.ConversationHistory[len(rec.ConversationHistory)-1].Summary)
}

func TestRecordConversationRejectsUnknownSpeaker(t *testing.T) {
	svc := newMemoryService(storetest.New())
	err := svc.RecordConversation(context.Background(), memUser, "system", "hola")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestClearCategoryAndWholeRecord(t *testing.T) {
	st := storetest.New()
	svc := newMemoryService(st)
	ctx := context.Background()

	_, err := svc.CreateFact(ctx, CreateFactRequest{UserID: memUser, Category: "work", Text: "usa tableros kanban"})
	require.NoError(t, err)
	_, err = svc.CreateFact(ctx, CreateFactRequest{UserID: memUser, Category: "goals", Text: "quiere correr un maraton"})
	require.NoError(t, err)

	require.NoError(t, svc.Clear(ctx, memUser, "work"))
	rec := st.Record(memUser)
	assert.Empty(t, rec.Categories["work"])
	assert.Len(t, rec.Categories["goals"], 1)

	assert.ErrorIs(t, svc.Clear(ctx, memUser, "bogus"), model.ErrValidation)

	require.NoError(t, svc.Clear(ctx, memUser, ""))
	assert.Nil(t, st.Record(memUser))
}

func TestExtractAndStore(t *testing.T) {
	st := storetest.New()
	reply := "Claro, aqui va:\n```json\n" +
		`{"hayMemoria": true, "memorias": [` +
		`{"categoria": "work", "informacion": "trabaja en el proyecto atlas", "relevancia": 0.8},` +
		`{"categoria": "work", "informacion": "Trabaja en el proyecto Atlas.", "relevancia": 0.8},` +
		`{"categoria": "personal", "informacion": "x", "relevancia": 0.5}]}` +
		"\n```"
	svc := NewMemoryService(st, nil, poolWith(reply, nil))

	res, err := svc.ExtractAndStore(context.Background(), memUser, "hablemos del proyecto atlas", "claro")
	require.NoError(t, err)
	assert.True(t, res.HasMemory)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Duplicates)
	assert.Equal(t, "fake", res.Provider)

	rec := st.Record(memUser)
	assert.Equal(t, []string{"trabaja en el proyecto atlas"}, rec.Categories["work"])
	assert.Empty(t, rec.Categories["personal"])
}

func TestExtractAndStoreNoDurableFacts(t *testing.T) {
	st := storetest.New()
	svc := NewMemoryService(st, nil, poolWith(`{"hayMemoria": false, "memorias": []}`, nil))

	res, err := svc.ExtractAndStore(context.Background(), memUser, "que hora es", "las diez")
	require.NoError(t, err)
	assert.False(t, res.HasMemory)
	assert.Zero(t, res.Inserted)
	assert.Nil(t, st.Record(memUser))
}

func TestExtractAndStoreWithoutPool(t *testing.T) {
	svc := NewMemoryService(storetest.New(), nil, nil)
	_, err := svc.ExtractAndStore(context.Background(), memUser, "a", "b")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestCreateFactStorageFailure(t *testing.T) {
	st := storetest.New()
	svc := newMemoryService(st)
	ctx := context.Background()

	_, err := svc.CreateFact(ctx, CreateFactRequest{UserID: memUser, Category: "work", Text: "primer hecho valido"})
	require.NoError(t, err)

	st.FailNext = model.ErrStorage
	_, err = svc.CreateFact(ctx, CreateFactRequest{UserID: memUser, Category: "work", Text: "segundo hecho valido"})
	assert.ErrorIs(t, err, model.ErrStorage)
}
