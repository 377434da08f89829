package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/diaria/diaria-assistant/internal/model"
	"github.com/diaria/diaria-assistant/internal/store"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver and
// verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewWithDB constructs a Postgres-backed store over database/sql.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Snapshots() store.Snapshots { return &snapshots{db: s.db} }
func (s *pgStore) Memories() store.Memories   { return &memories{db: s.db} }

// HealthPing implements health.HealthPinger.
func (s *pgStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Bootstrap creates the schema when missing. Idempotent.
func Bootstrap(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
        CREATE TABLE IF NOT EXISTS activity_snapshots (
            user_id        TEXT PRIMARY KEY,
            activities     JSONB NOT NULL DEFAULT '[]',
            last_sync_time TIMESTAMPTZ NOT NULL
        );
        CREATE TABLE IF NOT EXISTS memory_records (
            user_id              TEXT PRIMARY KEY,
            categories           JSONB NOT NULL,
            conversation_history JSONB NOT NULL DEFAULT '[]',
            relevance            DOUBLE PRECISION NOT NULL DEFAULT 0.5,
            times_accessed       INTEGER NOT NULL DEFAULT 0,
            last_accessed        TIMESTAMPTZ NOT NULL,
            active               BOOLEAN NOT NULL DEFAULT TRUE
        );
    `)
	return err
}

// --- Snapshots ---

type snapshots struct{ db *sql.DB }

func (s *snapshots) Get(ctx context.Context, userID string) (*model.Snapshot, error) {
	var raw []byte
	out := model.Snapshot{UserID: userID}
	row := s.db.QueryRowContext(ctx, `
        SELECT activities, last_sync_time FROM activity_snapshots WHERE user_id=$1
    `, userID)
	if err := row.Scan(&raw, &out.LastSyncTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("%w: get snapshot: %v", model.ErrStorage, err)
	}
	if err := json.Unmarshal(raw, &out.Activities); err != nil {
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
        VALUES ($1,$2,$3)
        ON CONFLICT (user_id)
        DO UPDATE SET activities=EXCLUDED.activities, last_sync_time=EXCLUDED.last_sync_time
    `, userID, raw, syncTime.UTC())
	if err != nil {
		return fmt.Errorf("%w: replace snapshot: %v", model.ErrStorage, err)
	}
	return nil
}

func (s *snapshots) UpdateTask(ctx context.Context, userID, activityID, taskID string, mutate store.TaskMutator) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", model.ErrStorage, err)
	}
	defer func() { _ = tx.Rollback() }()

	var raw []byte
	var syncTime time.Time
	row := tx.QueryRowContext(ctx, `
        SELECT activities, last_sync_time FROM activity_snapshots WHERE user_id=$1 FOR UPDATE
    `, userID)
	if err := row.Scan(&raw, &syncTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.ErrNotFound
		}
		return fmt.Errorf("%w: lock snapshot: %v", model.ErrStorage, err)
	}

	var activities []model.Activity
	if err := json.Unmarshal(raw, &activities); err != nil {
		return fmt.Errorf("%w: decode snapshot: %v", model.ErrStorage, err)
	}
	if err := mutateTask(activities, activityID, taskID, mutate); err != nil {
		return err
	}

	updated, err := json.Marshal(activities)
	if err != nil {
		return fmt.Errorf("%w: encode snapshot: %v", model.ErrStorage, err)
	}
	if _, err := tx.ExecContext(ctx, `
        UPDATE activity_snapshots SET activities=$2 WHERE user_id=$1
    `, userID, updated); err != nil {
		return fmt.Errorf("%w: update snapshot: %v", model.ErrStorage, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", model.ErrStorage, err)
	}
	return nil
}

// mutateTask locates the task in place and applies mutate; shared with the
// sqlite driver.
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
	out := model.MemoryRecord{UserID: userID}
	var cats, conv []byte
	row := m.db.QueryRowContext(ctx, `
        SELECT categories, conversation_history, relevance, times_accessed, last_accessed, active
        FROM memory_records WHERE user_id=$1
    `, userID)
	if err := row.Scan(&cats, &conv, &out.Relevance, &out.TimesAccessed, &out.LastAccessed, &out.Active); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("%w: get memory record: %v", model.ErrStorage, err)
	}
	if err := json.Unmarshal(cats, &out.Categories); err != nil {
		return nil, fmt.Errorf("%w: decode categories: %v", model.ErrStorage, err)
	}
	if err := json.Unmarshal(conv, &out.ConversationHistory); err != nil {
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
        VALUES ($1,$2,'[]',$3,$4)
        ON CONFLICT (user_id) DO NOTHING
    `, userID, cats, fresh.Relevance, fresh.LastAccessed); err != nil {
		return nil, fmt.Errorf("%w: ensure memory record: %v", model.ErrStorage, err)
	}
	return m.Get(ctx, userID)
}

func (m *memories) AppendFact(ctx context.Context, userID, category, fact string) error {
	// Single-statement push keeps concurrent inserts of different facts
	// from losing updates.
	res, err := m.db.ExecContext(ctx, `
        UPDATE memory_records
        SET categories = jsonb_set(
            categories,
            ARRAY[$2],
            COALESCE(categories->$2, '[]'::jsonb) || to_jsonb($3::text)
        )
        WHERE user_id=$1 AND active
    `, userID, category, fact)
	if err != nil {
		return fmt.Errorf("%w: append fact: %v", model.ErrStorage, err)
	}
	return requireRow(res)
}

func (m *memories) ReplaceCategory(ctx context.Context, userID, category string, facts []string) error {
	if facts == nil {
		facts = []string{}
	}
	raw, err := json.Marshal(facts)
	if err != nil {
		return fmt.Errorf("%w: encode facts: %v", model.ErrStorage, err)
	}
	res, err := m.db.ExecContext(ctx, `
        UPDATE memory_records
        SET categories = jsonb_set(categories, ARRAY[$2], $3::jsonb)
        WHERE user_id=$1
    `, userID, category, raw)
	if err != nil {
		return fmt.Errorf("%w: replace category: %v", model.ErrStorage, err)
	}
	return requireRow(res)
}

func (m *memories) Touch(ctx context.Context, userID string, relevance float64, at time.Time) error {
	res, err := m.db.ExecContext(ctx, `
        UPDATE memory_records
        SET relevance=$2, last_accessed=$3, times_accessed=times_accessed+1
        WHERE user_id=$1
    `, userID, relevance, at.UTC())
	if err != nil {
		return fmt.Errorf("%w: touch memory record: %v", model.ErrStorage, err)
	}
	return requireRow(res)
}

func (m *memories) AppendConversation(ctx context.Context, userID string, turn model.ConversationTurn, max int) error {
	rawTurn, err := json.Marshal(turn)
	if err != nil {
		return fmt.Errorf("%w: encode turn: %v", model.ErrStorage, err)
	}
	// Append then keep the newest max entries, in one statement.
	res, err := m.db.ExecContext(ctx, `
        UPDATE memory_records
        SET conversation_history = (
            SELECT COALESCE(jsonb_agg(elem ORDER BY ord), '[]'::jsonb)
            FROM (
                SELECT elem, ord
                FROM jsonb_array_elements(conversation_history || $2::jsonb)
                     WITH ORDINALITY AS t(elem, ord)
                ORDER BY ord DESC
                LIMIT $3
            ) newest
        )
        WHERE user_id=$1
    `, userID, rawTurn, max)
	if err != nil {
		return fmt.Errorf("%w: append conversation: %v", model.ErrStorage, err)
	}
	return requireRow(res)
}

func (m *memories) Decay(ctx context.Context, cutoff time.Time, factor, floor float64) (int, error) {
	res, err := m.db.ExecContext(ctx, `
        UPDATE memory_records
        SET relevance = relevance * $1
        WHERE active AND last_accessed < $2 AND relevance > $3
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
	res, err := m.db.ExecContext(ctx, `DELETE FROM memory_records WHERE user_id=$1`, userID)
	if err != nil {
		return fmt.Errorf("%w: clear memory record: %v", model.ErrStorage, err)
	}
	return requireRow(res)
}

func (m *memories) ClearCategory(ctx context.Context, userID, category string) error {
	res, err := m.db.ExecContext(ctx, `
        UPDATE memory_records
        SET categories = jsonb_set(categories, ARRAY[$2], '[]'::jsonb)
        WHERE user_id=$1
    `, userID, category)
	if err != nil {
		return fmt.Errorf("%w: clear category: %v", model.ErrStorage, err)
	}
	return requireRow(res)
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
