package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/diaria/diaria-assistant/internal/ai"
	"github.com/diaria/diaria-assistant/internal/model"
	"github.com/diaria/diaria-assistant/internal/store"
	"github.com/diaria/diaria-assistant/internal/textmatch"
)

const (
	minRawFactLen        = 5
	minNormalizedFactLen = 10
	duplicateRelevance   = 0.05
	defaultRelevanceHint = 0.7
	decayFactor          = 0.9
	decayFloor           = 0.1
)

// MemoryService owns per-user categorized memory: fuzzy-deduplicated fact
// insertion, relevance bookkeeping and decay, and AI-driven fact extraction.
type MemoryService struct {
	store store.Store
	det   *textmatch.Detector
	pool  *ai.Pool // nil disables ExtractAndStore
}

func NewMemoryService(s store.Store, det *textmatch.Detector, pool *ai.Pool) *MemoryService {
	if det == nil {
		det = textmatch.NewDetector()
	}
	return &MemoryService{store: s, det: det, pool: pool}
}

// CreateFactRequest is one candidate fact headed for a user's record.
type CreateFactRequest struct {
	UserID        string  `json:"userId"`
	Category      string  `json:"category"`
	Text          string  `json:"text"`
	RelevanceHint float64 `json:"relevanceHint"`
}

// FactResult reports the outcome of a fact write: either an insertion or a
// duplicate reinforcement, never both.
type FactResult struct {
	Inserted    bool    `json:"inserted"`
	Duplicate   bool    `json:"duplicate"`
	Similarity  float64 `json:"similarity,omitempty"`
	MatchedText string  `json:"matchedText,omitempty"`
	Category    string  `json:"category"`
	Text        string  `json:"text"`
}

// CreateFact validates, normalizes and stores a candidate fact. A near
// duplicate of an existing fact reinforces the record's relevance instead
// of inserting; a fresh fact is appended in insertion order.
func (s *MemoryService) CreateFact(ctx context.Context, req CreateFactRequest) (*FactResult, error) {
	if len(strings.TrimSpace(req.Text)) < minRawFactLen {
		return nil, fmt.Errorf("%w: fact text too short to carry information", model.ErrValidation)
	}

	category := strings.ToLower(strings.TrimSpace(req.Category))
	if !model.IsMemoryCategory(category) {
		category = model.CategoryGeneral
	}

	text := textmatch.Normalize(req.Text)
	if len(text) < minNormalizedFactLen {
		return nil, fmt.Errorf("%w: normalized fact shorter than %d characters", model.ErrValidation, minNormalizedFactLen)
	}

	rec, err := s.store.Memories().Ensure(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if m := s.det.IsDuplicate(rec.Categories[category], text); m.Duplicate {
		if err := s.store.Memories().Touch(ctx, req.UserID, rec.Relevance+duplicateRelevance, now); err != nil {
			return nil, err
		}
		return &FactResult{
			Duplicate:   true,
			Similarity:  m.Similarity,
			MatchedText: m.MatchedText,
			Category:    category,
			Text:        text,
		}, nil
	}

	if err := s.store.Memories().AppendFact(ctx, req.UserID, category, text); err != nil {
		return nil, err
	}
	hint := req.RelevanceHint
	if hint <= 0 {
		hint = defaultRelevanceHint
	}
	relevance := rec.Relevance
	if hint > relevance {
		relevance = hint
	}
	if err := s.store.Memories().Touch(ctx, req.UserID, relevance, now); err != nil {
		return nil, err
	}
	return &FactResult{Inserted: true, Category: category, Text: text}, nil
}

// RelevantFact is one fact matched against a query.
type RelevantFact struct {
	Category string `json:"category"`
	Text     string `json:"text"`
	Hits     int    `json:"hits"`
}

// RelevantResult is the outcome of a relevance query. With no usable
// keywords the whole record is returned instead of a fact list.
type RelevantResult struct {
	Facts  []RelevantFact      `json:"facts,omitempty"`
	Record *model.MemoryRecord `json:"record,omitempty"`
}

// GetRelevant returns the facts matching the query's keywords, ranked by
// substring hit count. Ties keep category/insertion order (stable sort).
// Access metadata is touched only when something matched.
func (s *MemoryService) GetRelevant(ctx context.Context, userID, query string, limit int) (*RelevantResult, error) {
	rec, err := s.store.Memories().Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	keywords := keywordsOf(query)
	now := time.Now().UTC()
	if len(keywords) == 0 {
		if err := s.store.Memories().Touch(ctx, userID, rec.Relevance, now); err != nil {
			return nil, err
		}
		return &RelevantResult{Record: rec}, nil
	}

	var matched []RelevantFact
	for _, category := range model.MemoryCategories {
		for _, fact := range rec.Categories[category] {
			hits := 0
			for _, kw := range keywords {
				if strings.Contains(fact, kw) {
					hits++
				}
			}
			if hits > 0 {
				matched = append(matched, RelevantFact{Category: category, Text: fact, Hits: hits})
			}
		}
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].Hits > matched[j].Hits })
	if len(matched) > limit {
		matched = matched[:limit]
	}

	if len(matched) > 0 {
		if err := s.store.Memories().Touch(ctx, userID, rec.Relevance, now); err != nil {
			return nil, err
		}
	}
	return &RelevantResult{Facts: matched}, nil
}

// BuildAIContext renders the user's memory as prompt context, one line per
// non-empty category. Returns "" for absent or empty records.
func (s *MemoryService) BuildAIContext(ctx context.Context, userID string) (string, error) {
	rec, err := s.store.Memories().Get(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return "", nil
		}
		return "", err
	}

	var lines []string
	for _, category := range model.MemoryCategories {
		facts := rec.Categories[category]
		if len(facts) == 0 {
			continue
		}
		lines = append(lines, strings.ToUpper(category)+": "+strings.Join(facts, "; "))
	}
	return strings.Join(lines, "\n"), nil
}

// DecayRelevance multiplies relevance by 0.9 for every active record not
// accessed in daysUnused days whose relevance is still above the 0.1
// floor. Idempotent until time advances: the gating date filter does not
// change within one instant.
func (s *MemoryService) DecayRelevance(ctx context.Context, daysUnused int) (int, error) {
	if daysUnused < 0 {
		return 0, fmt.Errorf("%w: negative daysUnused", model.ErrValidation)
	}
	cutoff := time.Now().UTC().AddDate(0, 0, -daysUnused)
	return s.store.Memories().Decay(ctx, cutoff, decayFactor, decayFloor)
}

// DeduplicateExisting re-runs duplicate detection over each category and
// drops later near-duplicates. Returns the total number removed. This is
// the repair pass for facts admitted by concurrent near-simultaneous
// inserts.
func (s *MemoryService) DeduplicateExisting(ctx context.Context, userID string) (int, error) {
	rec, err := s.store.Memories().Get(ctx, userID)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, category := range model.MemoryCategories {
		facts := rec.Categories[category]
		deduped := s.det.Deduplicate(facts)
		if len(deduped) == len(facts) {
			continue
		}
		if err := s.store.Memories().ReplaceCategory(ctx, userID, category, deduped); err != nil {
			return removed, err
		}
		removed += len(facts) - len(deduped)
	}
	return removed, nil
}

// RecordConversation pushes one turn onto the user's bounded conversation
// ring.
func (s *MemoryService) RecordConversation(ctx context.Context, userID, speaker, summary string) error {
	if speaker != "user" && speaker != "ai" {
		return fmt.Errorf("%w: unknown speaker %q", model.ErrValidation, speaker)
	}
	if strings.TrimSpace(summary) == "" {
		return fmt.Errorf("%w: empty conversation summary", model.ErrValidation)
	}
	if _, err := s.store.Memories().Ensure(ctx, userID); err != nil {
		return err
	}
	turn := model.ConversationTurn{Speaker: speaker, Summary: summary, Timestamp: time.Now().UTC()}
	return s.store.Memories().AppendConversation(ctx, userID, turn, model.ConversationHistoryLimit)
}

// Clear removes the user's whole memory record, or a single category when
// category is non-empty.
func (s *MemoryService) Clear(ctx context.Context, userID, category string) error {
	if category == "" {
		return s.store.Memories().Clear(ctx, userID)
	}
	if !model.IsMemoryCategory(category) {
		return fmt.Errorf("%w: unknown category %q", model.ErrValidation, category)
	}
	return s.store.Memories().ClearCategory(ctx, userID, category)
}

// ExtractionResult summarizes one AI extraction pass.
type ExtractionResult struct {
	HasMemory  bool   `json:"hasMemory"`
	Inserted   int    `json:"inserted"`
	Duplicates int    `json:"duplicates"`
	Provider   string `json:"provider"`
}

// ExtractAndStore asks the AI pool whether a user/assistant exchange holds
// durable facts and stores whatever comes back through CreateFact. Facts
// that fail validation individually are skipped, not fatal.
func (s *MemoryService) ExtractAndStore(ctx context.Context, userID, userMessage, aiMessage string) (*ExtractionResult, error) {
	if s.pool == nil {
		return nil, fmt.Errorf("%w: ai pool not configured", model.ErrValidation)
	}

	answer, err := s.pool.Complete(ctx, ai.MemoryExtractionPrompt(userMessage, aiMessage))
	if err != nil {
		return nil, err
	}
	extraction, err := ai.ParseMemoryExtraction(answer.Text)
	if err != nil {
		return nil, err
	}

	out := &ExtractionResult{HasMemory: extraction.HasMemory, Provider: answer.Provider}
	if !extraction.HasMemory {
		return out, nil
	}
	for _, fact := range extraction.Memories {
		res, err := s.CreateFact(ctx, CreateFactRequest{
			UserID:        userID,
			Category:      fact.Category,
			Text:          fact.Text,
			RelevanceHint: fact.Relevance,
		})
		if err != nil {
			continue
		}
		if res.Duplicate {
			out.Duplicates++
		} else {
			out.Inserted++
		}
	}
	return out, nil
}

// keywordsOf splits a query into search keywords the same way fact tokens
// are produced: normalized, whitespace-split, short tokens dropped.
func keywordsOf(query string) []string {
	norm := textmatch.Normalize(query)
	var out []string
	for _, f := range strings.Fields(norm) {
		if len(f) > 2 {
			out = append(out, f)
		}
	}
	return out
}
