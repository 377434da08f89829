package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/diaria/diaria-assistant/internal/ai"
	"github.com/diaria/diaria-assistant/internal/model"
	"github.com/diaria/diaria-assistant/internal/store"
)

// SummaryService renders one day's snapshot plus the user's memory context
// into a natural-language briefing.
type SummaryService struct {
	store  store.Store
	memory *MemoryService
	pool   *ai.Pool
	log    zerolog.Logger
}

func NewSummaryService(s store.Store, memory *MemoryService, pool *ai.Pool, log zerolog.Logger) *SummaryService {
	return &SummaryService{store: s, memory: memory, pool: pool, log: log}
}

type DailySummary struct {
	Date     string `json:"date"`
	Text     string `json:"text"`
	Provider string `json:"provider"`
}

func (s *SummaryService) DailySummary(ctx context.Context, userID, date string) (*DailySummary, error) {
	if userID == "" || date == "" {
		return nil, fmt.Errorf("%w: userID and date are required", model.ErrValidation)
	}

	snap, err := s.store.Snapshots().Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	activities := snap.ActivitiesOn(date)
	if len(activities) == 0 {
		return nil, fmt.Errorf("%w: no activities on %s", model.ErrNotFound, date)
	}

	memCtx, err := s.memory.BuildAIContext(ctx, userID)
	if err != nil {
		return nil, err
	}

	ans, err := s.pool.Complete(ctx, summaryPrompt(date, activities, memCtx))
	if err != nil {
		return nil, err
	}
	return &DailySummary{Date: date, Text: strings.TrimSpace(ans.Text), Provider: ans.Provider}, nil
}

func summaryPrompt(date string, activities []model.Activity, memCtx string) string {
	var b strings.Builder
	b.WriteString("Eres un asistente personal. Resume brevemente el dia " + date + " del usuario.\n\n")
	if memCtx != "" {
		b.WriteString("Lo que sabes del usuario:\n" + memCtx + "\n\n")
	}
	b.WriteString("Actividades:\n")
	for _, act := range activities {
		fmt.Fprintf(&b, "- %s (%s-%s, proyecto %s)\n", act.Title, act.StartTime, act.EndTime, act.ProjectTitle)
		for _, t := range act.Tasks {
			state := "pendiente"
			if t.Completed {
				state = "terminada"
			}
			fmt.Fprintf(&b, "  * %s [%d min, %s]\n", t.Name, t.DurationMinutes, state)
		}
	}
	b.WriteString("\nResponde en espanol, en tono cercano, maximo 6 frases.")
	return b.String()
}
