// Package journal persists a local audit trail of message traffic.
//
// Every accepted incoming message and successful outbound send is
// recorded in SQLite, with the raw payload kept as JSON. The journal is
// diagnostic only: the in-memory aggregate is the source of truth and
// rebuilds from the first poll cycle after a restart.
package journal

import (
	"context"
	"time"
)

// Direction values for journal entries.
const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

// Source values identifying which path produced an entry.
const (
	SourcePoll      = "poll"
	SourceWebhook   = "webhook"
	SourceSend      = "send"
	SourceAutoReply = "autoreply"
)

// Entry represents a single journaled message.
type Entry struct {
	// ID is the auto-incremented primary key for the journal row.
	ID int64 `json:"id"`

	// DeviceID is the gateway device the message belongs to.
	DeviceID string `json:"device_id"`

	// MessageID is the vendor message identifier ("" for outbound sends).
	MessageID string `json:"message_id,omitempty"`

	// Direction is incoming or outgoing.
	Direction string `json:"direction"`

	// Source identifies the path that produced the entry
	// (poll, webhook, send, autoreply).
	Source string `json:"source"`

	// Counterpart is the remote phone number: the sender for incoming
	// messages, the recipient list for outgoing.
	Counterpart string `json:"counterpart,omitempty"`

	// Body is the message text.
	Body string `json:"body,omitempty"`

	// Payload is the raw vendor payload (nil for outbound sends).
	Payload map[string]any `json:"payload,omitempty"`

	// CreatedAt is the journaling timestamp (UTC).
	CreatedAt time.Time `json:"created_at"`
}

// Repository stores and retrieves journaled messages.
//
// Implementations must be thread-safe and use UTC timestamps.
type Repository interface {
	// Record appends an entry to the journal.
	Record(ctx context.Context, entry Entry) error

	// Recent returns the newest entries for a device, ordered
	// newest-first. Limit is clamped by the implementation.
	Recent(ctx context.Context, deviceID string, limit int) ([]Entry, error)

	// Prune deletes entries older than the given duration and returns
	// the number of rows removed.
	Prune(ctx context.Context, olderThan time.Duration) (int64, error)
}
