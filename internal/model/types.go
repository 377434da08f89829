package model

import "time"

// Activity is a scheduled work block for a user on a given date.
// Within a user's snapshot (ActivityID, Date) is unique.
type Activity struct {
	ActivityID   string    `json:"activityId"`
	Title        string    `json:"title"`
	ProjectTitle string    `json:"projectTitle"`
	StartTime    string    `json:"startTime"` // HH:MM, time of day only
	EndTime      string    `json:"endTime"`
	Status       string    `json:"status"`
	Date         string    `json:"date"` // YYYY-MM-DD
	Tasks        []Task    `json:"tasks"`
	LastUpdated  time.Time `json:"lastUpdated"`
}

// Task is a unit of work within an activity.
type Task struct {
	TaskID          string     `json:"taskId"`
	Name            string     `json:"name"`
	DurationMinutes int        `json:"durationMinutes"` // 0 means no estimate
	Completed       bool       `json:"completed"`
	Confirmed       bool       `json:"confirmed"`
	CreatedAt       *time.Time `json:"createdAt,omitempty"`
	CompletedAt     *time.Time `json:"completedAt,omitempty"`
	Collaborators   []string   `json:"collaborators,omitempty"`

	ExplanationText    string              `json:"explanationText"`
	ExplanationHistory []ExplanationRecord `json:"explanationHistory,omitempty"`
	ReviewedByVoice    bool                `json:"reviewedByVoice"`
	TimesExplained     int                 `json:"timesExplained"`
}

// HasExplanation reports whether a human explanation exists for the task.
// Once true, completion/confirmation flags are no longer auto-synced from
// the external source.
func (t *Task) HasExplanation() bool {
	return t.ExplanationText != "" || len(t.ExplanationHistory) > 0
}

// ExplanationRecord is one entry of a task's append-only explanation history.
type ExplanationRecord struct {
	Text        string    `json:"text"`
	AuthorEmail string    `json:"authorEmail"`
	Timestamp   time.Time `json:"timestamp"`
	Verdict     string    `json:"verdict"` // AI validation verdict
}

// Snapshot is the full persisted set of a user's activities across all
// synced dates.
type Snapshot struct {
	UserID       string     `json:"userId"`
	Activities   []Activity `json:"activities"`
	LastSyncTime time.Time  `json:"lastSyncTime"`
}

// ActivitiesOn returns the subset of activities for a given date key.
func (s *Snapshot) ActivitiesOn(date string) []Activity {
	var out []Activity
	for _, a := range s.Activities {
		if a.Date == date {
			out = append(out, a)
		}
	}
	return out
}

// Memory categories form a closed set; unknown categories fall back to
// CategoryGeneral at the service boundary.
const (
	CategoryPreferences   = "preferences"
	CategoryPersonal      = "personal"
	CategoryWork          = "work"
	CategorySkills        = "skills"
	CategoryGoals         = "goals"
	CategoryGeneral       = "general"
	CategoryConversations = "conversations"
)

// MemoryCategories lists all valid categories in their canonical order.
var MemoryCategories = []string{
	CategoryPreferences,
	CategoryPersonal,
	CategoryWork,
	CategorySkills,
	CategoryGoals,
	CategoryGeneral,
	CategoryConversations,
}

// IsMemoryCategory reports whether name is one of the closed category set.
func IsMemoryCategory(name string) bool {
	for _, c := range MemoryCategories {
		if c == name {
			return true
		}
	}
	return false
}

// ConversationHistoryLimit bounds the per-user conversation ring.
const ConversationHistoryLimit = 15

// MemoryRecord holds a user's long-term memory facts grouped by category.
type MemoryRecord struct {
	UserID              string              `json:"userId"`
	Categories          map[string][]string `json:"categories"`
	ConversationHistory []ConversationTurn  `json:"conversationHistory,omitempty"`
	Relevance           float64             `json:"relevance"`
	TimesAccessed       int                 `json:"timesAccessed"`
	LastAccessed        time.Time           `json:"lastAccessed"`
	Active              bool                `json:"active"`
}

// NewMemoryRecord returns an empty active record with every category present.
func NewMemoryRecord(userID string, now time.Time) *MemoryRecord {
	cats := make(map[string][]string, len(MemoryCategories))
	for _, c := range MemoryCategories {
		cats[c] = []string{}
	}
	return &MemoryRecord{
		UserID:       userID,
		Categories:   cats,
		Relevance:    0.5,
		LastAccessed: now,
		Active:       true,
	}
}

// ConversationTurn is one entry of the bounded conversation ring.
type ConversationTurn struct {
	Speaker   string    `json:"speaker"` // "user" or "ai"
	Summary   string    `json:"summary"`
	Timestamp time.Time `json:"timestamp"`
}
