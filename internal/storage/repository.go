package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"bilancio/internal/core"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteRepository stores help state blobs and the tour analytics log.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One writer at a time; concurrent writers would get SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Get implements KV.
func (r *SQLiteRepository) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Set implements KV.
func (r *SQLiteRepository) Set(ctx context.Context, key string, value []byte) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// TourEvent is one persisted lifecycle notification.
type TourEvent struct {
	ID         int64
	MessageID  string
	User       string
	Type       core.LifecycleType
	TourID     string
	StepID     string
	StepIndex  *int
	OccurredAt time.Time
}

// AppendEvent stores an event. Events carrying a MessageID already stored
// are ignored, so redelivered messages are recorded once; inserted reports
// whether a row was written.
func (r *SQLiteRepository) AppendEvent(ctx context.Context, e TourEvent) (inserted bool, err error) {
	var msgID any
	if e.MessageID != "" {
		msgID = e.MessageID
	}
	var stepIndex any
	if e.StepIndex != nil {
		stepIndex = *e.StepIndex
	}
	occurred := e.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO tour_events (message_id, user_id, type, tour_id, step_id, step_index, occurred_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		msgID, e.User, string(e.Type), e.TourID, e.StepID, stepIndex, occurred.UTC().Format(timeLayout))
	if err != nil {
		return false, fmt.Errorf("append tour event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("append tour event: %w", err)
	}
	if n == 0 {
		slog.DebugContext(ctx, "Duplicate tour event ignored", "message_id", e.MessageID)
	}
	return n > 0, nil
}

// ListEvents returns a user's most recent events, newest first.
func (r *SQLiteRepository) ListEvents(ctx context.Context, user string, limit int) ([]TourEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, COALESCE(message_id, ''), user_id, type, tour_id, step_id, step_index, occurred_at
		 FROM tour_events WHERE user_id = ? ORDER BY occurred_at DESC, id DESC LIMIT ?`,
		user, limit)
	if err != nil {
		return nil, fmt.Errorf("list tour events: %w", err)
	}
	defer rows.Close()

	var out []TourEvent
	for rows.Next() {
		var (
			e         TourEvent
			typ       string
			stepIndex sql.NullInt64
			occurred  string
		)
		if err := rows.Scan(&e.ID, &e.MessageID, &e.User, &typ, &e.TourID, &e.StepID, &stepIndex, &occurred); err != nil {
			return nil, fmt.Errorf("scan tour event: %w", err)
		}
		e.Type = core.LifecycleType(typ)
		if stepIndex.Valid {
			i := int(stepIndex.Int64)
			e.StepIndex = &i
		}
		if t, err := time.Parse(timeLayout, occurred); err == nil {
			e.OccurredAt = t
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tour events: %w", err)
	}
	return out, nil
}

// CountByType counts events of one type per tour.
func (r *SQLiteRepository) CountByType(ctx context.Context, typ core.LifecycleType) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT tour_id, COUNT(*) FROM tour_events WHERE type = ? GROUP BY tour_id`, string(typ))
	if err != nil {
		return nil, fmt.Errorf("count tour events: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			tourID string
			n      int
		)
		if err := rows.Scan(&tourID, &n); err != nil {
			return nil, fmt.Errorf("scan tour count: %w", err)
		}
		out[tourID] = n
	}
	return out, rows.Err()
}
