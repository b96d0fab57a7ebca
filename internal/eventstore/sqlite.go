package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"git.home.luguber.info/inful/codegend/internal/errors"
)

// SQLiteJournal implements Journal using SQLite.
type SQLiteJournal struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteJournal opens (or creates) a journal database. Use ":memory:" for
// a process-lifetime journal, or a file path for persistent storage.
func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.StorageError("open", err)
	}

	j := &SQLiteJournal{db: db}
	if err := j.initialize(); err != nil {
		_ = db.Close()
		return nil, errors.StorageError("initialize", err)
	}
	return j, nil
}

func (j *SQLiteJournal) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS cycle_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cycle_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		timestamp INTEGER NOT NULL,
		payload BLOB,
		metadata TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_cycle_id ON cycle_events(cycle_id);
	CREATE INDEX IF NOT EXISTS idx_timestamp ON cycle_events(timestamp);
	`
	_, err := j.db.Exec(schema)
	return err
}

// Append adds a new event to the journal.
func (j *SQLiteJournal) Append(ctx context.Context, cycleID, eventType string, payload []byte, metadata map[string]string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	var metadataJSON []byte
	if metadata != nil {
		var err error
		metadataJSON, err = json.Marshal(metadata)
		if err != nil {
			return errors.StorageError("marshal metadata", err)
		}
	}

	_, err := j.db.ExecContext(ctx,
		"INSERT INTO cycle_events (cycle_id, event_type, timestamp, payload, metadata) VALUES (?, ?, ?, ?, ?)",
		cycleID, eventType, time.Now().UnixMilli(), payload, metadataJSON,
	)
	if err != nil {
		return errors.StorageError("append", err)
	}
	return nil
}

// GetByCycleID retrieves all events for a specific cycle.
func (j *SQLiteJournal) GetByCycleID(ctx context.Context, cycleID string) ([]Event, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	rows, err := j.db.QueryContext(ctx,
		"SELECT id, cycle_id, event_type, timestamp, payload, metadata FROM cycle_events WHERE cycle_id = ? ORDER BY id",
		cycleID,
	)
	if err != nil {
		return nil, errors.StorageError("query cycle", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// GetRange retrieves events within a time range.
func (j *SQLiteJournal) GetRange(ctx context.Context, start, end time.Time) ([]Event, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()

	rows, err := j.db.QueryContext(ctx,
		"SELECT id, cycle_id, event_type, timestamp, payload, metadata FROM cycle_events WHERE timestamp >= ? AND timestamp <= ? ORDER BY id",
		start.UnixMilli(), end.UnixMilli(),
	)
	if err != nil {
		return nil, errors.StorageError("query range", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	var out []Event
	for rows.Next() {
		var (
			ev           Event
			ts           int64
			metadataJSON []byte
		)
		if err := rows.Scan(&ev.ID, &ev.CycleID, &ev.Type, &ts, &ev.Payload, &metadataJSON); err != nil {
			return nil, errors.StorageError("scan", err)
		}
		ev.Timestamp = time.UnixMilli(ts)
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &ev.Metadata); err != nil {
				return nil, errors.StorageError("unmarshal metadata", err)
			}
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StorageError("iterate", err)
	}
	return out, nil
}

// Close closes the underlying database.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
