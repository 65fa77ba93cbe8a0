package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/punnkam/private-lending/core/events"
	"github.com/punnkam/private-lending/core/types"
)

const defaultListLimit = 100

// StoredEvent is a persisted ledger event with its position in the log.
type StoredEvent struct {
	Sequence   int64             `json:"sequence"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	CreatedAt  time.Time         `json:"createdAt"`
}

// Log is an append-only event log stored in SQLite. Sequences start at 1 and
// are assigned by the database.
type Log struct {
	db     *sql.DB
	logger *slog.Logger
	nowFn  func() time.Time
}

// Open creates or opens the log at path. ":memory:" is accepted for tests.
func Open(path string) (*Log, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases alive and serialises writers.
	db.SetMaxOpenConns(1)
	l := &Log{db: db, logger: slog.Default(), nowFn: time.Now}
	if err := l.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Log) init() error {
	const schema = `CREATE TABLE IF NOT EXISTS events (
            sequence INTEGER PRIMARY KEY AUTOINCREMENT,
            type TEXT NOT NULL,
            payload TEXT NOT NULL,
            created_at TIMESTAMP NOT NULL
        );`
	_, err := l.db.Exec(schema)
	return err
}

// SetLogger overrides the logger used to report append failures from Emit.
func (l *Log) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	l.logger = logger
}

// Close releases the database handle.
func (l *Log) Close() error {
	return l.db.Close()
}

// Append persists the event and returns its sequence number.
func (l *Log) Append(ctx context.Context, evt *types.Event) (int64, error) {
	if evt == nil {
		return 0, errors.New("eventlog: nil event")
	}
	payload, err := json.Marshal(evt.Attributes)
	if err != nil {
		return 0, fmt.Errorf("eventlog: encode payload: %w", err)
	}
	const stmt = `INSERT INTO events(type, payload, created_at) VALUES (?, ?, ?)`
	res, err := l.db.ExecContext(ctx, stmt, evt.Type, string(payload), l.nowFn().UTC())
	if err != nil {
		return 0, fmt.Errorf("eventlog: insert: %w", err)
	}
	return res.LastInsertId()
}

// List returns up to limit events with a sequence strictly greater than after,
// in ascending order.
func (l *Log) List(ctx context.Context, after int64, limit int) ([]StoredEvent, error) {
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	const query = `SELECT sequence, type, payload, created_at FROM events WHERE sequence > ? ORDER BY sequence ASC LIMIT ?`
	rows, err := l.db.QueryContext(ctx, query, after, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []StoredEvent
	for rows.Next() {
		var (
			evt     StoredEvent
			payload string
		)
		if err := rows.Scan(&evt.Sequence, &evt.Type, &payload, &evt.CreatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &evt.Attributes); err != nil {
			return nil, fmt.Errorf("eventlog: decode payload %d: %w", evt.Sequence, err)
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

// Emit implements events.Emitter. Events that cannot render an attribute
// payload are skipped.
func (l *Log) Emit(evt events.Event) {
	payload, ok := evt.(events.Payload)
	if !ok {
		return
	}
	if _, err := l.Append(context.Background(), payload.Event()); err != nil {
		l.logger.Error("append event", "type", evt.EventType(), "error", err)
	}
}
