package coordinator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oakmere/smsbridge/internal/journal"
)

// StringList decodes from either a JSON array of strings or a single
// packed string split on commas and semicolons, the two shapes callers
// send recipient and media-URL lists in.
type StringList []string

func (l *StringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = splitList(single)
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*l = many
	return nil
}

// splitList breaks a packed string on commas and semicolons.
func splitList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';'
	})
}

// SendRequest describes an outbound SMS, from the HTTP API or the MQTT
// command topic.
type SendRequest struct {
	// DeviceID selects the sending device. Empty falls back to the
	// configured default, then the first-registered device.
	DeviceID string `json:"device_id"`

	Recipients StringList `json:"recipients"`
	Message    string     `json:"message"`
	MediaURLs  StringList `json:"media_urls,omitempty"`
}

// SendMessage delivers an outbound SMS through the gateway.
//
// Recipients are trimmed and blanks dropped. On success the sent
// counters bump and the send is journaled and announced on the event
// bus. Returns the device ID the send was recorded against.
func (c *Coordinator) SendMessage(ctx context.Context, req SendRequest) (string, error) {
	recipients := normalizeRecipients(req.Recipients)
	if len(recipients) == 0 {
		return "", ErrNoRecipients
	}
	if strings.TrimSpace(req.Message) == "" {
		return "", ErrEmptyMessage
	}

	deviceID := c.resolveSendDevice(req.DeviceID)
	if deviceID == "" {
		return "", ErrNoDevice
	}

	if err := c.client.Send(ctx, deviceID, recipients, req.Message, req.MediaURLs); err != nil {
		return "", fmt.Errorf("sending via device %s: %w", deviceID, err)
	}

	recorded := c.store.RecordSent(deviceID, recipients, req.Message)

	c.logger.Info("Message sent",
		"device_id", recorded,
		"recipients", len(recipients),
	)

	c.recordJournal(ctx, journal.Entry{
		DeviceID:    recorded,
		Direction:   journal.DirectionOutgoing,
		Source:      journal.SourceSend,
		Counterpart: strings.Join(recipients, ", "),
		Body:        req.Message,
	})

	c.publishEvent("message_sent", map[string]any{
		"event_id":   uuid.NewString(),
		"device_id":  recorded,
		"recipients": recipients,
		"timestamp":  c.now().UTC().Format(time.RFC3339),
	})

	if c.metrics != nil {
		if err := c.metrics.WriteEvent("message_sent", recorded); err != nil {
			c.logger.Warn("Telemetry write failed", "error", err)
		}
	}

	return recorded, nil
}

// HandleSendCommand parses a send request from the MQTT command topic
// and delivers it. Malformed payloads are rejected with an error that
// the bus client logs.
func (c *Coordinator) HandleSendCommand(ctx context.Context, payload []byte) error {
	var req SendRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("decoding send command: %w", err)
	}
	_, err := c.SendMessage(ctx, req)
	return err
}

// resolveSendDevice walks the fallback chain: explicit request device,
// configured default, first-registered device.
func (c *Coordinator) resolveSendDevice(requested string) string {
	if requested != "" {
		return requested
	}
	if c.cfg.DefaultDeviceID != "" {
		return c.cfg.DefaultDeviceID
	}
	return c.store.FirstDeviceID()
}

// normalizeRecipients trims whitespace and drops empty entries.
func normalizeRecipients(recipients []string) []string {
	out := make([]string, 0, len(recipients))
	for _, r := range recipients {
		if trimmed := strings.TrimSpace(r); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
