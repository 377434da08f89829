// Package sqlite implements store.Store on a local SQLite file for
// single-host deployments and tests. JSON documents are read-modified-
// written inside immediate transactions; SQLite serializes writers, which
// gives the same per-user atomicity the postgres driver gets from
// single-statement updates.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/diaria/diaria-assistant/internal/model"
	"github.com/diaria/diaria-assistant/internal/store"
)

// Open opens (or creates) a SQLite database at the given path with WAL
// journaling enabled.
func Open(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// New opens the database, bootstraps the schema and returns the store.
func New(path string) (store.Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := Bootstrap(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewWithDB(db), nil
}

// NewWithDB wires a store over an existing connection.
func NewWithDB(db *sql.DB) store.Store { return &sqliteStore{db: db} }

// Bootstrap creates the schema when missing. Idempotent.
func Bootstrap(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS activity_snapshots (
            user_id        TEXT PRIMARY KEY,
            activities     TEXT NOT NULL DEFAULT '[]',
            last_sync_time TIMESTAMP NOT NULL
        );
        CREATE TABLE IF NOT EXISTS memory_records (
            user_id              TEXT PRIMARY KEY,
            categories           TEXT NOT NULL,
            conversation_history TEXT NOT NULL DEFAULT '[]',
            relevance            REAL NOT NULL DEFAULT 0.5,
            times_accessed       INTEGER NOT NULL DEFAULT 0,
            last_accessed        TIMESTAMP NOT NULL,
            active               INTEGER NOT NULL DEFAULT 1
        );
    `)
	return err
}

type sqliteStore struct{ db *sql.DB }

func (s *sqliteStore) Snapshots() store.Snapshots { return &snapshots{db: s.db} }
func (s *sqliteStore) Memories() store.Memories   { return &memories{db: s.db} }

// HealthPing implements health.HealthPinger.
func (s *sqliteStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Snapshots ---

type snapshots struct{ db *sql.DB }

func (s *snapshots) Get(ctx context.Context, userID string) (*model.Snapshot, error) {
	var raw string
	out := model.Snapshot{UserID: userID}
	row := s.db.QueryRowContext(ctx, `
        SELECT activities, last_sync_time FROM activity_snapshots WHERE user_id=?
    `, userID)
	if err := row.Scan(&raw, &out.LastSyncTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("%w: get snapshot: %v", model.ErrStorage, err)
	}
	if err := json.Unmarshal([]byte(raw), &out.Activities); err != nil {
		return nil, fmt.Errorf("%w: decode snapshot: %v", model.ErrStorage, err)
	}
	return &out, nil
}

func (s *snapshots) Replace(ctx context.Context, userID string, activities []model.Activity, syncTime time.Time) error {
	if activities == nil {
		activities = []model.Activity{}
	}
	raw, err := json.Marshal(activities)
	if err != nil {
		return fmt.Errorf("%w: encode snapshot: %v", model.ErrStorage, err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO activity_snapshots (user_id, activities, last_sync_time)
        VALUES (?,?,?)
        ON CONFLICT (user_id)
        DO UPDATE SET activities=excluded.activities, last_sync_time=excluded.last_sync_time
    `, userID, string(raw), syncTime.UTC())
	if err != nil {
		return fmt.Errorf("%w: replace snapshot: %v", model.ErrStorage, err)
	}
	return nil
}

func (s *snapshots) UpdateTask(ctx context.Context, userID, activityID, taskID string, mutate store.TaskMutator) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		var raw string
		row := tx.QueryRowContext(ctx, `SELECT activities FROM activity_snapshots WHERE user_id=?`, userID)
		if err := row.Scan(&raw); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return model.ErrNotFound
			}
			return fmt.Errorf("%w: read snapshot: %v", model.ErrStorage, err)
		}
		var activities []model.Activity
		if err := json.Unmarshal([]byte(raw), &activities); err != nil {
			return fmt.Errorf("%w: decode snapshot: %v", model.ErrStorage, err)
		}
		if err := mutateTask(activities, activityID, taskID, mutate); err != nil {
			return err
		}
		updated, err := json.Marshal(activities)
		if err != nil {
			return fmt.Errorf("%w: encode snapshot: %v", model.ErrStorage, err)
		}
		if _, err := tx.ExecContext(ctx, `UPDATE activity_snapshots SET activities=? WHERE user_id=?`, string(updated), userID); err != nil {
			return fmt.Errorf("%w: update snapshot: %v", model.ErrStorage, err)
		}
		return nil
	})
}

func mutateTask(activities []model.Activity, activityID, taskID string, mutate store.TaskMutator) error {
	for i := range activities {
		if activities[i].ActivityID != activityID {
			continue
		}
		for j := range activities[i].Tasks {
			if activities[i].Tasks[j].TaskID != taskID {
				continue
			}
			if err := mutate(&activities[i].Tasks[j]); err != nil {
				return err
			}
			activities[i].LastUpdated = time.Now().UTC()
			return nil
		}
	}
	return model.ErrNotFound
}

// --- Memories ---

type memories struct{ db *sql.DB }

func (m *memories) Get(ctx context.Context, userID string) (*model.MemoryRecord, error) {
	return getRecord(ctx, m.db, userID)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getRecord(ctx context.Context, q querier, userID string) (*model.MemoryRecord, error) {
	out := model.MemoryRecord{UserID: userID}
	var cats, conv string
	var active int
	row := q.QueryRowContext(ctx, `
        SELECT categories, conversation_history, relevance, times_accessed, last_accessed, active
        FROM memory_records WHERE user_id=?
    `, userID)
	if err := row.Scan(&cats, &conv, &out.Relevance, &out.TimesAccessed, &out.LastAccessed, &active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("%w: get memory record: %v", model.ErrStorage, err)
	}
	out.Active = active != 0
	if err := json.Unmarshal([]byte(cats), &out.Categories); err != nil {
		return nil, fmt.Errorf("%w: decode categories: %v", model.ErrStorage, err)
	}
	if err := json.Unmarshal([]byte(conv), &out.ConversationHistory); err != nil {
		return nil, fmt.Errorf("%w: decode conversation: %v", model.ErrStorage, err)
	}
	return &out, nil
}

func (m *memories) Ensure(ctx context.Context, userID string) (*model.MemoryRecord, error) {
	fresh := model.NewMemoryRecord(userID, time.Now().UTC())
	cats, err := json.Marshal(fresh.Categories)
	if err != nil {
		return nil, fmt.Errorf("%w: encode categories: %v", model.ErrStorage, err)
	}
	if _, err := m.db.ExecContext(ctx, `
        INSERT INTO memory_records (user_id, categories, conversation_history, relevance, last_accessed)
        VALUES (?,?,'[]',?,?)
        ON CONFLICT (user_id) DO NOTHING
    `, userID, string(cats), fresh.Relevance, fresh.LastAccessed); err != nil {
		return nil, fmt.Errorf("%w: ensure memory record: %v", model.ErrStorage, err)
	}
	return m.Get(ctx, userID)
}

// updateRecord runs a read-modify-write of a record's JSON fields in one
// transaction.
func (m *memories) updateRecord(ctx context.Context, userID string, edit func(*model.MemoryRecord) error) error {
	return withTx(ctx, m.db, func(tx *sql.Tx) error {
		rec, err := getRecord(ctx, tx, userID)
		if err != nil {
			return err
		}
		if err := edit(rec); err != nil {
			return err
		}
		cats, err := json.Marshal(rec.Categories)
		if err != nil {
			return fmt.Errorf("%w: encode categories: %v", model.ErrStorage, err)
		}
		conv, err := json.Marshal(rec.ConversationHistory)
		if err != nil {
			return fmt.Errorf("%w: encode conversation: %v", model.ErrStorage, err)
		}
		if conv == nil || string(conv) == "null" {
			conv = []byte("[]")
		}
		_, err = tx.ExecContext(ctx, `
            UPDATE memory_records
            SET categories=?, conversation_history=?, relevance=?, times_accessed=?, last_accessed=?, active=?
            WHERE user_id=?
        `, string(cats), string(conv), rec.Relevance, rec.TimesAccessed, rec.LastAccessed, boolToInt(rec.Active), userID)
		if err != nil {
			return fmt.Errorf("%w: update memory record: %v", model.ErrStorage, err)
		}
		return nil
	})
}

func (m *memories) AppendFact(ctx context.Context, userID, category, fact string) error {
	return m.updateRecord(ctx, userID, func(rec *model.MemoryRecord) error {
		if !rec.Active {
			return model.ErrNotFound
		}
		rec.Categories[category] = append(rec.Categories[category], fact)
		return nil
	})
}

func (m *memories) ReplaceCategory(ctx context.Context, userID, category string, facts []string) error {
	if facts == nil {
		facts = []string{}
	}
	return m.updateRecord(ctx, userID, func(rec *model.MemoryRecord) error {
		rec.Categories[category] = facts
		return nil
	})
}

func (m *memories) Touch(ctx context.Context, userID string, relevance float64, at time.Time) error {
	res, err := m.db.ExecContext(ctx, `
        UPDATE memory_records
        SET relevance=?, last_accessed=?, times_accessed=times_accessed+1
        WHERE user_id=?
    `, relevance, at.UTC(), userID)
	if err != nil {
		return fmt.Errorf("%w: touch memory record: %v", model.ErrStorage, err)
	}
	return requireRow(res)
}

func (m *memories) AppendConversation(ctx context.Context, userID string, turn model.ConversationTurn, max int) error {
	return m.updateRecord(ctx, userID, func(rec *model.MemoryRecord) error {
		rec.ConversationHistory = append(rec.ConversationHistory, turn)
		if len(rec.ConversationHistory) > max {
			rec.ConversationHistory = rec.ConversationHistory[len(rec.ConversationHistory)-max:]
		}
		return nil
	})
}

func (m *memories) Decay(ctx context.Context, cutoff time.Time, factor, floor float64) (int, error) {
	res, err := m.db.ExecContext(ctx, `
        UPDATE memory_records
        SET relevance = relevance * ?
        WHERE active=1 AND last_accessed < ? AND relevance > ?
    `, factor, cutoff.UTC(), floor)
	if err != nil {
		return 0, fmt.Errorf("%w: decay relevance: %v", model.ErrStorage, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: decay relevance: %v", model.ErrStorage, err)
	}
	return int(n), nil
}

func (m *memories) Clear(ctx context.Context, userID string) error {
	res, err := m.db.ExecContext(ctx, `DELETE FROM memory_records WHERE user_id=?`, userID)
	if err != nil {
		return fmt.Errorf("%w: clear memory record: %v", model.ErrStorage, err)
	}
	return requireRow(res)
}

func (m *memories) ClearCategory(ctx context.Context, userID, category string) error {
	return m.updateRecord(ctx, userID, func(rec *model.MemoryRecord) error {
		rec.Categories[category] = []string{}
		return nil
	})
}

func withTx(ctx context.Context, db *sql.DB, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", model.ErrStorage, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", model.ErrStorage, err)
	}
	return nil
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %v", model.ErrStorage, err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
