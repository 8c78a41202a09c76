package state

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/leapstack-labs/leaplineage/internal/jsoncodec"
	"github.com/leapstack-labs/leaplineage/pkg/core"
)

const eventColumns = `id, run_id, event_type, job_namespace, job_name, event_time, payload, created_at`

// InsertEvent persists ev and returns the id of the new row.
func (s *SQLiteStore) InsertEvent(ctx context.Context, ev *core.LineageEvent) (string, error) {
	if s.db == nil {
		return "", ErrNotOpen
	}

	payload, err := jsoncodec.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("failed to encode event: %w", err)
	}

	id := ulid.Make().String()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO lineage_events (`+eventColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		ev.Run.RunID,
		string(ev.EventType),
		ev.Job.Namespace,
		ev.Job.Name,
		formatTime(ev.EventTime),
		string(payload),
		formatTime(time.Now()),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert event: %w", err)
	}

	s.logger.Debug("event stored",
		slog.String("id", id),
		slog.String("run_id", ev.Run.RunID),
		slog.String("event_type", string(ev.EventType)))
	return id, nil
}

// ListEvents returns the events of runID in the order they happened.
func (s *SQLiteStore) ListEvents(ctx context.Context, runID string) ([]*EventRecord, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM lineage_events WHERE run_id = ? ORDER BY event_time, id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return scanEvents(rows)
}

// ListRecent returns up to limit events, newest first.
func (s *SQLiteStore) ListRecent(ctx context.Context, limit int) ([]*EventRecord, error) {
	if s.db == nil {
		return nil, ErrNotOpen
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+eventColumns+` FROM lineage_events ORDER BY event_time DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent events: %w", err)
	}
	return scanEvents(rows)
}

// Decode returns the lineage event stored in the record payload.
func (r *EventRecord) Decode() (*core.LineageEvent, error) {
	var ev core.LineageEvent
	if err := jsoncodec.Unmarshal(r.Payload, &ev); err != nil {
		return nil, fmt.Errorf("failed to decode event %s: %w", r.ID, err)
	}
	return &ev, nil
}

func scanEvents(rows *sql.Rows) ([]*EventRecord, error) {
	defer func() { _ = rows.Close() }()

	var out []*EventRecord
	for rows.Next() {
		var (
			rec                  EventRecord
			eventType            string
			eventTime, createdAt string
			payload              string
		)
		if err := rows.Scan(&rec.ID, &rec.RunID, &eventType, &rec.JobNamespace, &rec.JobName,
			&eventTime, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}

		var err error
		if rec.EventTime, err = parseTime(eventTime); err != nil {
			return nil, err
		}
		if rec.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		rec.EventType = core.EventType(eventType)
		rec.Payload = []byte(payload)
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return out, nil
}

// Times are stored as fixed-width UTC text so they sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored time %q: %w", s, err)
	}
	return t, nil
}
