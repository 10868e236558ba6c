package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

const (
	defaultRecentLimit = 50
	maxRecentLimit     = 200
)

// SQLiteRepository implements Repository using SQLite.
//
// Raw payloads are stored as JSON in the message_journal table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a journal repository on an open connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record appends an entry to the journal.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - entry: Entry to persist (ID and CreatedAt are assigned by the database)
//
// Returns:
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteRepository) Record(ctx context.Context, entry Entry) error {
	if entry.DeviceID == "" {
		return fmt.Errorf("device id is required")
	}
	if entry.Direction == "" {
		return fmt.Errorf("direction is required")
	}
	if entry.Source == "" {
		return fmt.Errorf("source is required")
	}

	payload := entry.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshalling payload: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO message_journal (device_id, message_id, direction, source, counterpart, body, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.DeviceID,
		entry.MessageID,
		entry.Direction,
		entry.Source,
		entry.Counterpart,
		entry.Body,
		string(payloadJSON),
	)
	if err != nil {
		return fmt.Errorf("inserting journal entry: %w", err)
	}

	return nil
}

// Recent returns the newest journal entries for a device.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - deviceID: Gateway device identifier
//   - limit: Maximum entries to return (default 50, max 200)
//
// Returns:
//   - []Entry: Entries ordered by created_at DESC
//   - error: nil on success, otherwise the underlying query error
func (r *SQLiteRepository) Recent(ctx context.Context, deviceID string, limit int) ([]Entry, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device id is required")
	}
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	if limit > maxRecentLimit {
		limit = maxRecentLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, device_id, message_id, direction, source, counterpart, body, payload, created_at
		 FROM message_journal
		 WHERE device_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		deviceID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var entry Entry
		var payloadJSON string
		var createdAt string

		if err := rows.Scan(
			&entry.ID,
			&entry.DeviceID,
			&entry.MessageID,
			&entry.Direction,
			&entry.Source,
			&entry.Counterpart,
			&entry.Body,
			&payloadJSON,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scanning journal entry: %w", err)
		}

		if err := json.Unmarshal([]byte(payloadJSON), &entry.Payload); err != nil {
			return nil, fmt.Errorf("unmarshalling payload: %w", err)
		}

		timestamp, err := parseJournalTimestamp(createdAt)
		if err != nil {
			return nil, err
		}
		entry.CreatedAt = timestamp

		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journal: %w", err)
	}

	return entries, nil
}

// Prune deletes journal entries older than the given duration.
//
// Parameters:
//   - ctx: Context for cancellation and timeout
//   - olderThan: Retention duration (entries older than now-olderThan are deleted)
//
// Returns:
//   - int64: Number of rows deleted
//   - error: nil on success, otherwise the underlying database error
func (r *SQLiteRepository) Prune(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().UTC().Add(-olderThan).Format("2006-01-02 15:04:05")
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM message_journal WHERE created_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting journal entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}

	return rowsAffected, nil
}

// parseJournalTimestamp parses a timestamp stored by SQLite.
// CURRENT_TIMESTAMP writes "2006-01-02 15:04:05"; RFC 3339 covers rows
// written by other tooling.
func parseJournalTimestamp(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("created_at is empty")
	}

	timestamp, err := time.Parse("2006-01-02 15:04:05", value)
	if err == nil {
		return timestamp.UTC(), nil
	}

	fallback, fallbackErr := time.Parse(time.RFC3339, value)
	if fallbackErr == nil {
		return fallback, nil
	}

	return time.Time{}, fmt.Errorf("parsing created_at: %w", err)
}
