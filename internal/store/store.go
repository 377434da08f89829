package store

import (
	"context"
	"time"

	"github.com/diaria/diaria-assistant/internal/model"
)

// Store exposes persistence operations required by services.
// Implementations live under internal/store/<driver>/ (postgres, sqlite).
//
// Per-user mutual exclusion is delegated to the driver's atomic
// read-modify-write primitives; there are no in-process locks. Two
// concurrent syncs for the same user can still race on the
// read-recompute-replace cycle; this is an accepted weak-consistency
// window, see DESIGN.md.
type Store interface {
	Snapshots() Snapshots
	Memories() Memories
}

// TaskMutator edits one task in place; returning an error aborts the update
// without persisting anything.
type TaskMutator func(*model.Task) error

// Snapshots persists the per-user activity snapshot as one document.
type Snapshots interface {
	// Get returns the full snapshot or model.ErrNotFound.
	Get(ctx context.Context, userID string) (*model.Snapshot, error)

	// Replace atomically upserts the user's entire activity list and sync
	// time in a single write; a failed call leaves the prior snapshot
	// visible.
	Replace(ctx context.Context, userID string, activities []model.Activity, syncTime time.Time) error

	// UpdateTask applies mutate to a single task inside its activity,
	// atomically with respect to other writers of the same user.
	UpdateTask(ctx context.Context, userID, activityID, taskID string, mutate TaskMutator) error
}

// Memories persists per-user categorized memory records.
type Memories interface {
	// Get returns the record or model.ErrNotFound.
	Get(ctx context.Context, userID string) (*model.MemoryRecord, error)

	// Ensure lazily creates an empty record for the user and returns the
	// current state.
	Ensure(ctx context.Context, userID string) (*model.MemoryRecord, error)

	// AppendFact appends a normalized fact to one category as a
	// push-style atomic operation: concurrent appends of different facts
	// do not lose updates.
	AppendFact(ctx context.Context, userID, category, fact string) error

	// ReplaceCategory swaps a category's fact list wholesale.
	ReplaceCategory(ctx context.Context, userID, category string, facts []string) error

	// Touch sets relevance and lastAccessed and increments timesAccessed.
	Touch(ctx context.Context, userID string, relevance float64, at time.Time) error

	// AppendConversation pushes a turn onto the conversation ring, keeping
	// only the most recent max entries.
	AppendConversation(ctx context.Context, userID string, turn model.ConversationTurn, max int) error

	// Decay multiplies relevance by factor for every active record whose
	// lastAccessed is older than cutoff and whose relevance is above
	// floor. Returns the number of records touched.
	Decay(ctx context.Context, cutoff time.Time, factor, floor float64) (int, error)

	// Clear removes the user's whole record.
	Clear(ctx context.Context, userID string) error

	// ClearCategory empties a single category.
	ClearCategory(ctx context.Context, userID, category string) error
}
