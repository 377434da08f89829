package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/diaria/diaria-assistant/internal/ai"
	"github.com/diaria/diaria-assistant/internal/model"
	"github.com/diaria/diaria-assistant/internal/store"
)

// ExplanationService records voice-transcribed task explanations and asks
// the AI pool for a plausibility verdict before persisting them.
type ExplanationService struct {
	store store.Store
	pool  *ai.Pool
	log   zerolog.Logger

	now func() time.Time
}

func NewExplanationService(s store.Store, pool *ai.Pool, log zerolog.Logger) *ExplanationService {
	return &ExplanationService{store: s, pool: pool, log: log, now: time.Now}
}

type SubmitExplanationRequest struct {
	UserID      string
	ActivityID  string
	TaskID      string
	Text        string
	AuthorEmail string
}

type ExplanationResult struct {
	Accepted bool   `json:"accepted"`
	Verdict  string `json:"verdict"`
	Reason   string `json:"reason,omitempty"`
}

// SubmitExplanation validates the explanation against the task it claims
// to cover and appends it to the task's explanation history. An AI outage
// degrades to accepting the explanation unreviewed rather than losing it.
func (e *ExplanationService) SubmitExplanation(ctx context.Context, req SubmitExplanationRequest) (*ExplanationResult, error) {
	text := strings.TrimSpace(req.Text)
	switch {
	case req.UserID == "" || req.ActivityID == "" || req.TaskID == "":
		return nil, fmt.Errorf("%w: userID, activityID and taskID are required", model.ErrValidation)
	case text == "":
		return nil, fmt.Errorf("%w: explanation text is empty", model.ErrValidation)
	}

	taskName, err := e.taskName(ctx, req.UserID, req.ActivityID, req.TaskID)
	if err != nil {
		return nil, err
	}

	verdict := e.validate(ctx, taskName, text)

	record := model.ExplanationRecord{
		Text:        text,
		AuthorEmail: req.AuthorEmail,
		Timestamp:   e.now().UTC(),
		Verdict:     verdict.Verdict,
	}

	err = e.store.Snapshots().UpdateTask(ctx, req.UserID, req.ActivityID, req.TaskID, func(t *model.Task) error {
		t.ExplanationText = text
		t.ExplanationHistory = append(t.ExplanationHistory, record)
		t.ReviewedByVoice = true
		t.TimesExplained++
		return nil
	})
	if err != nil {
		return nil, err
	}
	return verdict, nil
}

func (e *ExplanationService) taskName(ctx context.Context, userID, activityID, taskID string) (string, error) {
	snap, err := e.store.Snapshots().Get(ctx, userID)
	if err != nil {
		return "", err
	}
	for i := range snap.Activities {
		act := &snap.Activities[i]
		if act.ActivityID != activityID {
			continue
		}
		for j := range act.Tasks {
			if act.Tasks[j].TaskID == taskID {
				return act.Tasks[j].Name, nil
			}
		}
	}
	return "", fmt.Errorf("%w: task %s not found in activity %s", model.ErrNotFound, taskID, activityID)
}

func (e *ExplanationService) validate(ctx context.Context, taskName, text string) *ExplanationResult {
	ans, err := e.pool.Complete(ctx, ai.ExplanationValidationPrompt(taskName, text))
	if err != nil {
		e.log.Warn().Err(err).Msg("explanation validation unavailable, accepting unreviewed")
		return &ExplanationResult{Accepted: true, Verdict: "unreviewed"}
	}
	v, err := ai.ParseExplanationVerdict(ans.Text)
	if err != nil {
		e.log.Warn().Err(err).Str("provider", ans.Provider).Msg("unparseable verdict, accepting unreviewed")
		return &ExplanationResult{Accepted: true, Verdict: "unreviewed"}
	}
	if v.Valid {
		return &ExplanationResult{Accepted: true, Verdict: "valid", Reason: v.Reason}
	}
	return &ExplanationResult{Accepted: true, Verdict: "questioned", Reason: v.Reason}
}
