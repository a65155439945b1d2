package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/iconidentify/cardvault/internal/domain"
)

const notificationSchema = `
CREATE TABLE IF NOT EXISTS notifications (
	id       TEXT PRIMARY KEY,
	ts_ms    INTEGER NOT NULL,
	severity TEXT NOT NULL,
	category TEXT NOT NULL,
	source   TEXT NOT NULL DEFAULT '',
	message  TEXT NOT NULL,
	metadata TEXT
);
CREATE INDEX IF NOT EXISTS idx_notifications_ts ON notifications(ts_ms);
CREATE INDEX IF NOT EXISTS idx_notifications_category ON notifications(category, ts_ms);
`

// eventHistory is the SQLite notification archive. Timestamps are stored as
// Unix milliseconds so range filters compare integers.
type eventHistory struct {
	db *sql.DB
}

func openEventHistory(path string) (*eventHistory, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(notificationSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &eventHistory{db: db}, nil
}

func (h *eventHistory) close() error {
	return h.db.Close()
}

func (h *eventHistory) insert(ctx context.Context, e domain.Event) error {
	var metadata sql.NullString
	if len(e.Metadata) > 0 {
		metadata = sql.NullString{String: string(e.Metadata), Valid: true}
	}
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO notifications (id, ts_ms, severity, category, source, message, metadata) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(e.ID), e.Timestamp.UnixMilli(), string(e.Severity), string(e.Category), e.Source, e.Message, metadata)
	return err
}

// historyWhere translates f into a WHERE clause and its arguments.
func historyWhere(f domain.EventFilter) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		clauses = append(clauses, clause)
		args = append(args, arg)
	}
	if f.Severity != nil {
		add("severity = ?", string(*f.Severity))
	}
	if f.Category != nil {
		add("category = ?", string(*f.Category))
	}
	if f.Source != "" {
		add("source = ?", f.Source)
	}
	if f.StartTime != nil {
		add("ts_ms >= ?", f.StartTime.UnixMilli())
	}
	if f.EndTime != nil {
		add("ts_ms <= ?", f.EndTime.UnixMilli())
	}
	if f.SearchText != "" {
		add("message LIKE ?", "%"+f.SearchText+"%")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func (h *eventHistory) query(ctx context.Context, q domain.EventQuery) (*domain.EventQueryResult, error) {
	where, args := historyWhere(q.Filter)

	var total int
	if err := h.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM notifications"+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count notifications: %w", err)
	}

	rows, err := h.db.QueryContext(ctx,
		"SELECT id, ts_ms, severity, category, source, message, metadata FROM notifications"+where+
			" ORDER BY ts_ms DESC, rowid DESC LIMIT ? OFFSET ?",
		append(args, q.Limit, q.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	events := make([]domain.Event, 0, q.Limit)
	for rows.Next() {
		var (
			e        domain.Event
			tsMillis int64
			metadata sql.NullString
		)
		if err := rows.Scan(&e.ID, &tsMillis, &e.Severity, &e.Category, &e.Source, &e.Message, &metadata); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		e.Timestamp = time.UnixMilli(tsMillis).UTC()
		if metadata.Valid {
			e.Metadata = json.RawMessage(metadata.String)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read notifications: %w", err)
	}

	return &domain.EventQueryResult{
		Events:  events,
		Total:   total,
		HasMore: q.Offset+len(events) < total,
	}, nil
}

// prune deletes notifications older than cutoff and returns how many went.
func (h *eventHistory) prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := h.db.ExecContext(ctx, "DELETE FROM notifications WHERE ts_ms < ?", cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
