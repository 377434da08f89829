// Package reconcile implements the change-detection and reconciliation
// engine: filtering of raw planner activities, diffing against the
// persisted snapshot's current-day subset, and applying the resulting diff
// as a pure snapshot transform.
package reconcile

import (
	"strconv"
	"strings"
	"time"

	"github.com/diaria/diaria-assistant/internal/model"
	"github.com/diaria/diaria-assistant/internal/source"
)

// Filter holds the externally configured exclusion sentinels and working
// window used to narrow raw planner activities before diffing.
type Filter struct {
	ExcludedTitlePrefix string
	ExcludedStatus      string
	WorkdayStart        float64 // decimal hours, inclusive
	WorkdayEnd          float64 // decimal hours
}

// FilterActivities narrows raw planner activities to the valid set for one
// user and date: exclusion sentinels applied, both endpoints inside the
// working window, tasks attached from the reviews payload (assigned to the
// user with a positive duration), and task-less activities dropped.
func (f Filter) FilterActivities(apiActs []source.APIActivity, reviews source.ReviewsPayload, userEmail, date string, now time.Time) []model.Activity {
	var out []model.Activity
	for _, act := range apiActs {
		if f.ExcludedTitlePrefix != "" && strings.HasPrefix(act.Title, f.ExcludedTitlePrefix) {
			continue
		}
		if f.ExcludedStatus != "" && act.Status == f.ExcludedStatus {
			continue
		}

		start, okStart := parseClock(act.StartTime)
		end, okEnd := parseClock(act.EndTime)
		if !okStart || !okEnd {
			continue
		}
		if start < f.WorkdayStart || start >= f.WorkdayEnd || end > f.WorkdayEnd {
			continue
		}

		tasks := f.attachTasks(act.ID, reviews, userEmail)
		if len(tasks) == 0 {
			continue
		}

		out = append(out, model.Activity{
			ActivityID:   act.ID,
			Title:        act.Title,
			ProjectTitle: act.ProjectTitle,
			StartTime:    act.StartTime,
			EndTime:      act.EndTime,
			Status:       act.Status,
			Date:         date,
			Tasks:        tasks,
			LastUpdated:  now,
		})
	}
	return out
}

// attachTasks maps review tasks onto the activity, keeping only tasks that
// are assigned to the user and carry a positive duration estimate.
// Zero-duration or unassigned tasks never enter the local store.
func (f Filter) attachTasks(activityID string, reviews source.ReviewsPayload, userEmail string) []model.Task {
	var out []model.Task
	for _, rt := range reviews.TasksForActivity(activityID) {
		if !rt.AssignedTo(userEmail) {
			continue
		}
		if rt.DurationMin <= 0 {
			continue
		}
		out = append(out, model.Task{
			TaskID:          rt.ID,
			Name:            rt.Name,
			DurationMinutes: rt.DurationMin,
			Completed:       rt.Done,
			Confirmed:       rt.Confirmed,
			CreatedAt:       rt.CreatedAt,
			CompletedAt:     rt.CompletedAt,
			Collaborators:   rt.CollaboratorsFor(userEmail),
		})
	}
	return out
}

// parseClock converts an HH:MM time of day into decimal hours.
func parseClock(s string) (float64, bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return float64(h) + float64(m)/60.0, true
}
