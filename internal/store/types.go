package store

import (
	"time"
)

// Direction values for DeviceRecord.LastDirection.
const (
	DirectionIncoming = "incoming"
	DirectionOutgoing = "outgoing"
)

// DeviceRecord is the reconciled state of one gateway device.
//
// Pointer fields distinguish "never reported" from a legitimate zero
// value (signal bars of 0 is a real reading).
type DeviceRecord struct {
	DeviceID string `json:"device_id"`

	// Identity
	Name         string `json:"name,omitempty"`
	PhoneNumber  string `json:"phone_number,omitempty"`
	Manufacturer string `json:"manufacturer,omitempty"`
	Model        string `json:"model,omitempty"`

	// Network / hardware
	SignalBars   *int     `json:"signal_bars,omitempty"`
	SignalValue  *float64 `json:"signal_value,omitempty"`
	BatteryLevel *float64 `json:"battery_level,omitempty"`
	RegisteredAt string   `json:"registered_at,omitempty"`
	Registered   *bool    `json:"registered,omitempty"`

	// Status & messages
	Status          string         `json:"status,omitempty"`
	LastMessage     map[string]any `json:"last_message,omitempty"`
	LastMessageID   string         `json:"last_message_id,omitempty"`
	NewMessagePulse bool           `json:"new_message_pulse"`
	LastError       string         `json:"last_error,omitempty"`

	// Counters, monotonic since process start
	SentCount     int `json:"sent_count"`
	ReceivedCount int `json:"received_count"`

	// RawDevice is the unmodified vendor device payload from the last poll.
	RawDevice map[string]any `json:"raw_device,omitempty"`

	// Direction of the most recent traffic and its endpoints
	LastDirection    string `json:"last_direction,omitempty"`
	LastIncomingFrom string `json:"last_incoming_from,omitempty"`
	LastIncomingText string `json:"last_incoming_text,omitempty"`
	LastOutgoingTo   string `json:"last_outgoing_to,omitempty"`
	LastOutgoingText string `json:"last_outgoing_text,omitempty"`
}

// clone returns a deep copy of the record. Maps are copied one level
// deep, which is sufficient: payload maps are treated as immutable
// after ingestion.
func (r *DeviceRecord) clone() *DeviceRecord {
	c := *r
	if r.SignalBars != nil {
		v := *r.SignalBars
		c.SignalBars = &v
	}
	if r.SignalValue != nil {
		v := *r.SignalValue
		c.SignalValue = &v
	}
	if r.BatteryLevel != nil {
		v := *r.BatteryLevel
		c.BatteryLevel = &v
	}
	if r.Registered != nil {
		v := *r.Registered
		c.Registered = &v
	}
	c.LastMessage = cloneMap(r.LastMessage)
	c.RawDevice = cloneMap(r.RawDevice)
	return &c
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Snapshot is a point-in-time deep copy of the account aggregate.
// Devices appear in first-registration order.
type Snapshot struct {
	Devices       []DeviceRecord `json:"devices"`
	TotalSent     int            `json:"total_sent"`
	TotalReceived int            `json:"total_received"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Device returns the snapshot record for a device ID, if present.
func (s Snapshot) Device(deviceID string) (DeviceRecord, bool) {
	for _, d := range s.Devices {
		if d.DeviceID == deviceID {
			return d, true
		}
	}
	return DeviceRecord{}, false
}

// IngestResult describes the outcome of processing one incoming message.
type IngestResult struct {
	// Accepted is false when the message was a duplicate of the
	// device's last message. Duplicates refresh the stored payload
	// but have no other effect.
	Accepted bool

	// DeviceID is the device the message was recorded against,
	// after any unknown-ID remap.
	DeviceID string

	// MessageID is the resolved message identifier ("" if the
	// payload carried none).
	MessageID string

	// Sender and Text are the resolved message fields, for
	// auto-reply and journaling.
	Sender string
	Text   string
}
