package model

import "time"

// TaskRef identifies a task inside a persisted activity.
type TaskRef struct {
	ActivityID string `json:"activityId"`
	TaskID     string `json:"taskId"`
}

// TaskChange carries a freshly mapped task headed for an existing activity.
type TaskChange struct {
	ActivityID string `json:"activityId"`
	Task       Task   `json:"task"`
}

// TaskPatch holds only the fields that differ between the external source
// and the persisted task. Nil means "unchanged, do not touch".
type TaskPatch struct {
	Name            *string   `json:"name,omitempty"`
	DurationMinutes *int      `json:"durationMinutes,omitempty"`
	Collaborators   *[]string `json:"collaborators,omitempty"`
	Completed       *bool     `json:"completed,omitempty"`
	Confirmed       *bool     `json:"confirmed,omitempty"`
}

// IsEmpty reports whether the patch carries no changes at all.
func (p TaskPatch) IsEmpty() bool {
	return p.Name == nil && p.DurationMinutes == nil && p.Collaborators == nil &&
		p.Completed == nil && p.Confirmed == nil
}

// TaskPatchChange pairs a task reference with its field patch.
type TaskPatchChange struct {
	ActivityID string    `json:"activityId"`
	TaskID     string    `json:"taskId"`
	Patch      TaskPatch `json:"patch"`
}

// SnapshotDiff is the computed set of differences between the external
// source's current-day view and the persisted snapshot's current-day subset.
type SnapshotDiff struct {
	NewActivities   []Activity        `json:"newActivities"`
	NewTasks        []TaskChange      `json:"newTasks"`
	RemovedTasks    []TaskRef         `json:"removedTasks"`
	UpdatedTasks    []TaskPatchChange `json:"updatedTasks"`
	ReassignedTasks []TaskRef         `json:"reassignedTasks"`
}

// HasChanges reports whether any change class is non-empty.
func (d *SnapshotDiff) HasChanges() bool {
	return len(d.NewActivities) > 0 || len(d.NewTasks) > 0 ||
		len(d.RemovedTasks) > 0 || len(d.UpdatedTasks) > 0 ||
		len(d.ReassignedTasks) > 0
}

// SyncStats counts applied changes per class.
type SyncStats struct {
	NewActivities   int `json:"newActivities"`
	NewTasks        int `json:"newTasks"`
	RemovedTasks    int `json:"removedTasks"`
	UpdatedTasks    int `json:"updatedTasks"`
	ReassignedTasks int `json:"reassignedTasks"`
}

// SyncResult summarizes one sync cycle for a user.
type SyncResult struct {
	UserID     string    `json:"userId"`
	FirstSync  bool      `json:"firstSync"`
	HasChanges bool      `json:"hasChanges"`
	Stats      SyncStats `json:"stats"`
	SyncTime   time.Time `json:"syncTime"`
}
