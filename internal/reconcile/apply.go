package reconcile

import (
	"time"

	"github.com/diaria/diaria-assistant/internal/model"
)

// Apply transforms the persisted activity list with the given diff and
// returns the next list plus per-class change counts. It is a pure
// transform; persisting the result in a single replace is the caller's
// job, which keeps each sync all-or-nothing.
//
// Order matters: reassigned-task clears run before removed-task deletions,
// then task-less today-activities are dropped, then new activities, new
// tasks and field patches are applied.
func Apply(persisted []model.Activity, diff model.SnapshotDiff, today string, now time.Time) ([]model.Activity, model.SyncStats) {
	var stats model.SyncStats

	next := make([]model.Activity, len(persisted))
	copy(next, persisted)
	for i := range next {
		next[i].Tasks = append([]model.Task(nil), next[i].Tasks...)
	}

	// 1. Reassigned tasks: the whole activity vanished from today's
	// planner view, so clear its task list. The row itself survives until
	// the cleanup below.
	reassignedActs := make(map[string]bool)
	for _, ref := range diff.ReassignedTasks {
		reassignedActs[ref.ActivityID] = true
	}
	for i := range next {
		if next[i].Date == today && reassignedActs[next[i].ActivityID] {
			stats.ReassignedTasks += len(next[i].Tasks)
			next[i].Tasks = nil
		}
	}

	// 2. Individually removed tasks inside still-present activities.
	removed := make(map[model.TaskRef]bool, len(diff.RemovedTasks))
	for _, ref := range diff.RemovedTasks {
		removed[ref] = true
	}
	for i := range next {
		if next[i].Date != today {
			continue
		}
		kept := next[i].Tasks[:0]
		for _, task := range next[i].Tasks {
			if removed[model.TaskRef{ActivityID: next[i].ActivityID, TaskID: task.TaskID}] {
				stats.RemovedTasks++
				continue
			}
			kept = append(kept, task)
		}
		next[i].Tasks = kept
	}

	// 3. Drop today-dated activities left without tasks. Other dates keep
	// their rows regardless of task count.
	pruned := next[:0]
	for _, act := range next {
		if act.Date == today && len(act.Tasks) == 0 {
			continue
		}
		pruned = append(pruned, act)
	}
	next = pruned

	// 4. Fresh activities from the planner, tasks re-stamped with default
	// audit fields.
	for _, act := range diff.NewActivities {
		added := act
		added.LastUpdated = now
		added.Tasks = make([]model.Task, len(act.Tasks))
		for i, task := range act.Tasks {
			added.Tasks[i] = newStoredTask(task, now)
		}
		stats.NewActivities++
		stats.NewTasks += len(added.Tasks)
		next = append(next, added)
	}

	// 5. New tasks into their existing target activity.
	for _, change := range diff.NewTasks {
		for i := range next {
			if next[i].Date != today || next[i].ActivityID != change.ActivityID {
				continue
			}
			next[i].Tasks = append(next[i].Tasks, newStoredTask(change.Task, now))
			next[i].LastUpdated = now
			stats.NewTasks++
			break
		}
	}

	// 6. Field patches onto existing tasks.
	for _, change := range diff.UpdatedTasks {
		for i := range next {
			if next[i].Date != today || next[i].ActivityID != change.ActivityID {
				continue
			}
			for j := range next[i].Tasks {
				if next[i].Tasks[j].TaskID != change.TaskID {
					continue
				}
				applyPatch(&next[i].Tasks[j], change.Patch, now)
				next[i].LastUpdated = now
				stats.UpdatedTasks++
				break
			}
			break
		}
	}

	return next, stats
}

// InitialSnapshot maps the valid planner view straight into stored form for
// a user with no persisted record yet. No diffing is involved.
func InitialSnapshot(valid []model.Activity, now time.Time) ([]model.Activity, model.SyncStats) {
	var stats model.SyncStats
	out := make([]model.Activity, len(valid))
	for i, act := range valid {
		stored := act
		stored.LastUpdated = now
		stored.Tasks = make([]model.Task, len(act.Tasks))
		for j, task := range act.Tasks {
			stored.Tasks[j] = newStoredTask(task, now)
		}
		stats.NewActivities++
		stats.NewTasks += len(stored.Tasks)
		out[i] = stored
	}
	return out, stats
}

// newStoredTask stamps a planner task with the audit defaults every locally
// persisted task starts with.
func newStoredTask(t model.Task, now time.Time) model.Task {
	stored := t
	stored.Collaborators = append([]string(nil), t.Collaborators...)
	stored.ExplanationText = ""
	stored.ExplanationHistory = nil
	stored.ReviewedByVoice = false
	stored.TimesExplained = 0
	if stored.CreatedAt == nil {
		created := now
		stored.CreatedAt = &created
	}
	return stored
}

func applyPatch(task *model.Task, patch model.TaskPatch, now time.Time) {
	if patch.Name != nil {
		task.Name = *patch.Name
	}
	if patch.DurationMinutes != nil {
		task.DurationMinutes = *patch.DurationMinutes
	}
	if patch.Collaborators != nil {
		task.Collaborators = append([]string(nil), (*patch.Collaborators)...)
	}
	if patch.Completed != nil {
		task.Completed = *patch.Completed
		if *patch.Completed && task.CompletedAt == nil {
			done := now
			task.CompletedAt = &done
		}
	}
	if patch.Confirmed != nil {
		task.Confirmed = *patch.Confirmed
	}
}
