package observability

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// NavEvent is a single handled-command record.
type NavEvent struct {
	EventID   string
	Timestamp time.Time
	Channel   string // channel name the message arrived on
	SenderID  string
	Kind      string // "navigate", "click", "back", "section", "describe_images", "question"
	Target    string // link text, section name, or URL argument
	URL       string // resulting page URL, if any
	Status    string // "success" or "error"
	Error     string
	Duration  time.Duration
}

// EventLogger persists NavEvents. Record never returns an error: failures
// go to slog and the command proceeds.
type EventLogger struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewEventLogger creates a logger backed by the given audit database.
func NewEventLogger(db *sql.DB, logger *slog.Logger) *EventLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventLogger{db: db, logger: logger}
}

// Record inserts a navigation event.
func (l *EventLogger) Record(ctx context.Context, e NavEvent) {
	if e.EventID == "" {
		e.EventID = "nav_" + uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if e.Status == "" {
		if e.Error != "" {
			e.Status = "error"
		} else {
			e.Status = "success"
		}
	}

	_, err := l.db.ExecContext(ctx, `INSERT INTO nav_events
		(event_id, timestamp, channel, sender_id, kind, target, url,
		 status, error_message, duration_ms)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		e.EventID, e.Timestamp.Unix(), e.Channel, e.SenderID, e.Kind,
		e.Target, e.URL, e.Status, e.Error, e.Duration.Milliseconds())
	if err != nil {
		l.logger.Error("observability: nav event insert failed",
			"error", err, "kind", e.Kind)
	}
}

// Filter controls Query results.
type Filter struct {
	Since   *time.Time
	Until   *time.Time
	Kind    string
	Status  string
	Channel string
	Limit   int // default 100
	Offset  int
}

// Query retrieves navigation events matching the filter, newest first.
func (l *EventLogger) Query(ctx context.Context, f Filter) ([]NavEvent, error) {
	q := `SELECT event_id, timestamp, channel, sender_id, kind, target, url,
		status, error_message, duration_ms
		FROM nav_events WHERE 1=1`
	var args []any

	if f.Since != nil {
		q += " AND timestamp >= ?"
		args = append(args, f.Since.Unix())
	}
	if f.Until != nil {
		q += " AND timestamp <= ?"
		args = append(args, f.Until.Unix())
	}
	if f.Kind != "" {
		q += " AND kind = ?"
		args = append(args, f.Kind)
	}
	if f.Status != "" {
		q += " AND status = ?"
		args = append(args, f.Status)
	}
	if f.Channel != "" {
		q += " AND channel = ?"
		args = append(args, f.Channel)
	}
	q += " ORDER BY timestamp DESC"

	limit := 100
	if f.Limit > 0 {
		limit = f.Limit
	}
	q += " LIMIT ?"
	args = append(args, limit)
	if f.Offset > 0 {
		q += " OFFSET ?"
		args = append(args, f.Offset)
	}

	rows, err := l.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("observability: query nav events: %w", err)
	}
	defer rows.Close()

	var events []NavEvent
	for rows.Next() {
		var e NavEvent
		var ts, durationMs int64
		var sender, target, url, errMsg sql.NullString
		if err := rows.Scan(&e.EventID, &ts, &e.Channel, &sender, &e.Kind,
			&target, &url, &e.Status, &errMsg, &durationMs); err != nil {
			return nil, fmt.Errorf("observability: scan nav event: %w", err)
		}
		e.Timestamp = time.Unix(ts, 0)
		e.SenderID = sender.String
		e.Target = target.String
		e.URL = url.String
		e.Error = errMsg.String
		e.Duration = time.Duration(durationMs) * time.Millisecond
		events = append(events, e)
	}
	return events, rows.Err()
}

// KindCounts returns per-kind event counts since the given time, for the
// ops status endpoint.
func (l *EventLogger) KindCounts(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT kind, COUNT(*) FROM nav_events WHERE timestamp >= ? GROUP BY kind`,
		since.Unix())
	if err != nil {
		return nil, fmt.Errorf("observability: count nav events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("observability: scan count: %w", err)
		}
		counts[strings.ToLower(kind)] = n
	}
	return counts, rows.Err()
}

// Cleanup deletes navigation events older than retentionDays.
func (l *EventLogger) Cleanup(ctx context.Context, retentionDays int) (int64, error) {
	threshold := time.Now().AddDate(0, 0, -retentionDays).Unix()
	result, err := l.db.ExecContext(ctx,
		"DELETE FROM nav_events WHERE timestamp < ?", threshold)
	if err != nil {
		return 0, fmt.Errorf("observability: cleanup nav events: %w", err)
	}
	return result.RowsAffected()
}
