// Package storetest provides an in-memory store.Store for unit tests. It
// mirrors the drivers' semantics, including model.ErrNotFound behavior and
// conversation-ring bounding, but keeps everything under one mutex.
package storetest

import (
	"context"
	"sync"
	"time"

	"github.com/diaria/diaria-assistant/internal/model"
	"github.com/diaria/diaria-assistant/internal/store"
)

// Store is the in-memory implementation. Construct with New.
type Store struct {
	mu        sync.Mutex
	snapshots map[string]*model.Snapshot
	records   map[string]*model.MemoryRecord

	// FailNext makes the next mutating call return the given error, for
	// exercising storage-failure paths.
	FailNext error
}

func New() *Store {
	return &Store{
		snapshots: make(map[string]*model.Snapshot),
		records:   make(map[string]*model.MemoryRecord),
	}
}

func (s *Store) Snapshots() store.Snapshots { return &snapshots{s} }
func (s *Store) Memories() store.Memories   { return &memories{s} }

func (s *Store) takeFailure() error {
	err := s.FailNext
	s.FailNext = nil
	return err
}

// SeedRecord installs a memory record directly, bypassing Ensure.
func (s *Store) SeedRecord(rec *model.MemoryRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.UserID] = cloneRecord(rec)
}

// Record returns a copy of the stored record, or nil.
func (s *Store) Record(userID string) *model.MemoryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[userID]
	if !ok {
		return nil
	}
	return cloneRecord(rec)
}

// --- Snapshots ---

type snapshots struct{ p *Store }

func (s *snapshots) Get(_ context.Context, userID string) (*model.Snapshot, error) {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	snap, ok := s.p.snapshots[userID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return cloneSnapshot(snap), nil
}

func (s *snapshots) Replace(_ context.Context, userID string, activities []model.Activity, syncTime time.Time) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	if err := s.p.takeFailure(); err != nil {
		return err
	}
	snap := &model.Snapshot{UserID: userID, Activities: activities, LastSyncTime: syncTime}
	s.p.snapshots[userID] = cloneSnapshot(snap)
	return nil
}

func (s *snapshots) UpdateTask(_ context.Context, userID, activityID, taskID string, mutate store.TaskMutator) error {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	if err := s.p.takeFailure(); err != nil {
		return err
	}
	snap, ok := s.p.snapshots[userID]
	if !ok {
		return model.ErrNotFound
	}
	for i := range snap.Activities {
		if snap.Activities[i].ActivityID != activityID {
			continue
		}
		for j := range snap.Activities[i].Tasks {
			if snap.Activities[i].Tasks[j].TaskID != taskID {
				continue
			}
			if err := mutate(&snap.Activities[i].Tasks[j]); err != nil {
				return err
			}
			snap.Activities[i].LastUpdated = time.Now().UTC()
			return nil
		}
	}
	return model.ErrNotFound
}

// --- Memories ---

type memories struct{ p *Store }

func (m *memories) Get(_ context.Context, userID string) (*model.MemoryRecord, error) {
	m.p.mu.Lock()
	defer m.p.mu.Unlock()
	rec, ok := m.p.records[userID]
	if !ok {
		return nil, model.ErrNotFound
	}
	return cloneRecord(rec), nil
}

func (m *memories) Ensure(_ context.Context, userID string) (*model.MemoryRecord, error) {
	m.p.mu.Lock()
	defer m.p.mu.Unlock()
	if err := m.p.takeFailure(); err != nil {
		return nil, err
	}
	rec, ok := m.p.records[userID]
	if !ok {
		rec = model.NewMemoryRecord(userID, time.Now().UTC())
		m.p.records[userID] = rec
	}
	return cloneRecord(rec), nil
}

func (m *memories) AppendFact(_ context.Context, userID, category, fact string) error {
	m.p.mu.Lock()
	defer m.p.mu.Unlock()
	if err := m.p.takeFailure(); err != nil {
		return err
	}
	rec, ok := m.p.records[userID]
	if !ok || !rec.Active {
		return model.ErrNotFound
	}
	rec.Categories[category] = append(rec.Categories[category], fact)
	return nil
}

func (m *memories) ReplaceCategory(_ context.Context, userID, category string, facts []string) error {
	m.p.mu.Lock()
	defer m.p.mu.Unlock()
	if err := m.p.takeFailure(); err != nil {
		return err
	}
	rec, ok := m.p.records[userID]
	if !ok {
		return model.ErrNotFound
	}
	rec.Categories[category] = append([]string(nil), facts...)
	return nil
}

func (m *memories) Touch(_ context.Context, userID string, relevance float64, at time.Time) error {
	m.p.mu.Lock()
	defer m.p.mu.Unlock()
	if err := m.p.takeFailure(); err != nil {
		return err
	}
	rec, ok := m.p.records[userID]
	if !ok {
		return model.ErrNotFound
	}
	rec.Relevance = relevance
	rec.LastAccessed = at
	rec.TimesAccessed++
	return nil
}

func (m *memories) AppendConversation(_ context.Context, userID string, turn model.ConversationTurn, max int) error {
	m.p.mu.Lock()
	defer m.p.mu.Unlock()
	if err := m.p.takeFailure(); err != nil {
		return err
	}
	rec, ok := m.p.records[userID]
	if !ok {
		return model.ErrNotFound
	}
	rec.ConversationHistory = append(rec.ConversationHistory, turn)
	if len(rec.ConversationHistory) > max {
		rec.ConversationHistory = rec.ConversationHistory[len(rec.ConversationHistory)-max:]
	}
	return nil
}

func (m *memories) Decay(_ context.Context, cutoff time.Time, factor, floor float64) (int, error) {
	m.p.mu.Lock()
	defer m.p.mu.Unlock()
	if err := m.p.takeFailure(); err != nil {
		return 0, err
	}
	n := 0
	for _, rec := range m.p.records {
		if rec.Active && rec.LastAccessed.Before(cutoff) && rec.Relevance > floor {
			rec.Relevance *= factor
			n++
		}
	}
	return n, nil
}

func (m *memories) Clear(_ context.Context, userID string) error {
	m.p.mu.Lock()
	defer m.p.mu.Unlock()
	if _, ok := m.p.records[userID]; !ok {
		return model.ErrNotFound
	}
	delete(m.p.records, userID)
	return nil
}

func (m *memories) ClearCategory(_ context.Context, userID, category string) error {
	m.p.mu.Lock()
	defer m.p.mu.Unlock()
	rec, ok := m.p.records[userID]
	if !ok {
		return model.ErrNotFound
	}
	rec.Categories[category] = []string{}
	return nil
}

// --- copies ---

func cloneSnapshot(in *model.Snapshot) *model.Snapshot {
	out := &model.Snapshot{UserID: in.UserID, LastSyncTime: in.LastSyncTime}
	out.Activities = make([]model.Activity, len(in.Activities))
	for i, act := range in.Activities {
		cp := act
		cp.Tasks = append([]model.Task(nil), act.Tasks...)
		out.Activities[i] = cp
	}
	return out
}

func cloneRecord(in *model.MemoryRecord) *model.MemoryRecord {
	out := *in
	out.Categories = make(map[string][]string, len(in.Categories))
	for k, v := range in.Categories {
		out.Categories[k] = append([]string(nil), v...)
	}
	out.ConversationHistory = append([]model.ConversationTurn(nil), in.ConversationHistory...)
	return &out
}
