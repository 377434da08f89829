// Package source talks to the external project-management API. Wire shapes
// keep the upstream Spanish field names; they are decoded into tagged types
// and validated at this boundary so missing fields surface as decode errors
// instead of propagating as zero values.
package source

import (
	"fmt"
	"sort"
	"time"

	"github.com/diaria/diaria-assistant/internal/model"
)

// APIActivity is one scheduled activity as returned by the planner.
type APIActivity struct {
	ID           string `json:"id"`
	Title        string `json:"titulo"`
	Status       string `json:"status"`
	StartTime    string `json:"horaInicio"`
	EndTime      string `json:"horaFin"`
	ProjectTitle string `json:"tituloProyecto"`
}

// Validate rejects activities the upstream should never emit.
func (a *APIActivity) Validate() error {
	if a.ID == "" {
		return fmt.Errorf("%w: activity without id", model.ErrValidation)
	}
	if a.Title == "" {
		return fmt.Errorf("%w: activity %s without title", model.ErrValidation, a.ID)
	}
	return nil
}

// ReviewTask is a pending task inside the per-date reviews payload.
type ReviewTask struct {
	ID          string     `json:"id"`
	Name        string     `json:"nombre"`
	DurationMin int        `json:"duracionMin"`
	Done        bool       `json:"terminada"`
	Confirmed   bool       `json:"confirmada"`
	Assignees   []string   `json:"assignees"`
	CreatedAt   *time.Time `json:"fechaCreacion"`
	CompletedAt *time.Time `json:"fechaFinTerminada"`
}

// AssignedTo reports whether the given user appears among the assignees.
func (t *ReviewTask) AssignedTo(user string) bool {
	for _, a := range t.Assignees {
		if a == user {
			return true
		}
	}
	return false
}

// CollaboratorsFor returns the assignees excluding the owning user.
func (t *ReviewTask) CollaboratorsFor(user string) []string {
	var out []string
	for _, a := range t.Assignees {
		if a != user {
			out = append(out, a)
		}
	}
	return out
}

// ReviewActivity groups the pending tasks of one activity in the reviews
// payload.
type ReviewActivity struct {
	ID    string       `json:"id"`
	Title string       `json:"titulo"`
	Tasks []ReviewTask `json:"pendientes"`
}

// ReviewItems is the payload body under each collaborator key.
type ReviewItems struct {
	Activities []ReviewActivity `json:"actividades"`
}

// CollaboratorReview is one collaborator's slice of the reviews payload.
type CollaboratorReview struct {
	Items ReviewItems `json:"items"`
}

// ReviewsPayload is the per-date reviews document, keyed by collaborator.
// The zero value behaves as an empty payload; a failed reviews fetch
// degrades to it.
type ReviewsPayload map[string]CollaboratorReview

// TasksForActivity collects every review task belonging to the given
// activity id across all collaborators, in stable collaborator-key order.
// A multi-assignee task appears under each assignee's collaborator key, so
// duplicates are collapsed by task id, first occurrence wins.
func (p ReviewsPayload) TasksForActivity(activityID string) []ReviewTask {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var out []ReviewTask
	seen := make(map[string]bool)
	for _, k := range keys {
		for _, act := range p[k].Items.Activities {
			if act.ID != activityID {
				continue
			}
			for _, task := range act.Tasks {
				if seen[task.ID] {
					continue
				}
				seen[task.ID] = true
				out = append(out, task)
			}
		}
	}
	return out
}
