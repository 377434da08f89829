package reconcile

import (
	"sort"

	"github.com/diaria/diaria-assistant/internal/model"
)

// Diff computes the structural changes between the valid planner view of
// today and the persisted snapshot's today subset. The five change classes
// are disjoint: a task id that exists on exactly one side lands in exactly
// one of NewTasks, RemovedTasks or ReassignedTasks.
func Diff(valid []model.Activity, persisted []model.Activity, today string) model.SnapshotDiff {
	var diff model.SnapshotDiff

	persistedToday := make(map[string]*model.Activity)
	for i := range persisted {
		if persisted[i].Date == today {
			persistedToday[persisted[i].ActivityID] = &persisted[i]
		}
	}
	validByID := make(map[string]*model.Activity, len(valid))
	for i := range valid {
		validByID[valid[i].ActivityID] = &valid[i]
	}

	for i := range valid {
		api := &valid[i]
		stored, ok := persistedToday[api.ActivityID]
		if !ok {
			diff.NewActivities = append(diff.NewActivities, *api)
			continue
		}

		storedTasks := make(map[string]*model.Task, len(stored.Tasks))
		for j := range stored.Tasks {
			storedTasks[stored.Tasks[j].TaskID] = &stored.Tasks[j]
		}
		apiTasks := make(map[string]*model.Task, len(api.Tasks))
		for j := range api.Tasks {
			apiTasks[api.Tasks[j].TaskID] = &api.Tasks[j]
		}

		for j := range api.Tasks {
			apiTask := &api.Tasks[j]
			storedTask, exists := storedTasks[apiTask.TaskID]
			if !exists {
				diff.NewTasks = append(diff.NewTasks, model.TaskChange{
					ActivityID: api.ActivityID,
					Task:       *apiTask,
				})
				continue
			}
			if patch := diffTask(storedTask, apiTask); !patch.IsEmpty() {
				diff.UpdatedTasks = append(diff.UpdatedTasks, model.TaskPatchChange{
					ActivityID: api.ActivityID,
					TaskID:     apiTask.TaskID,
					Patch:      patch,
				})
			}
		}

		for j := range stored.Tasks {
			if _, exists := apiTasks[stored.Tasks[j].TaskID]; !exists {
				diff.RemovedTasks = append(diff.RemovedTasks, model.TaskRef{
					ActivityID: stored.ActivityID,
					TaskID:     stored.Tasks[j].TaskID,
				})
			}
		}
	}

	// Activities that vanished entirely from today's planner view: their
	// tasks were moved to another day or owner.
	for _, stored := range persistedToday {
		if _, stillThere := validByID[stored.ActivityID]; stillThere {
			continue
		}
		for j := range stored.Tasks {
			diff.ReassignedTasks = append(diff.ReassignedTasks, model.TaskRef{
				ActivityID: stored.ActivityID,
				TaskID:     stored.Tasks[j].TaskID,
			})
		}
	}
	sort.Slice(diff.ReassignedTasks, func(i, k int) bool {
		a, b := diff.ReassignedTasks[i], diff.ReassignedTasks[k]
		if a.ActivityID != b.ActivityID {
			return a.ActivityID < b.ActivityID
		}
		return a.TaskID < b.TaskID
	})

	return diff
}

// diffTask compares a persisted task with its planner counterpart and
// returns a patch holding only the changed fields. Completion and
// confirmation flags are auto-synced only while no human explanation
// exists; once someone has explained the task, stale planner status must
// not clobber it.
func diffTask(stored, api *model.Task) model.TaskPatch {
	var patch model.TaskPatch

	if stored.Name != api.Name {
		name := api.Name
		patch.Name = &name
	}
	if stored.DurationMinutes != api.DurationMinutes {
		dur := api.DurationMinutes
		patch.DurationMinutes = &dur
	}
	if !sameCollaborators(stored.Collaborators, api.Collaborators) {
		collabs := append([]string(nil), api.Collaborators...)
		patch.Collaborators = &collabs
	}

	if !stored.HasExplanation() {
		if stored.Completed != api.Completed {
			done := api.Completed
			patch.Completed = &done
		}
		if stored.Confirmed != api.Confirmed {
			conf := api.Confirmed
			patch.Confirmed = &conf
		}
	}
	return patch
}

// sameCollaborators compares collaborator sets order-insensitively.
func sameCollaborators(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	seen := make(map[string]int, len(a))
	for _, s := range a {
		seen[s]++
	}
	for _, s := range b {
		seen[s]--
		if seen[s] < 0 {
			return false
		}
	}
	return true
}
