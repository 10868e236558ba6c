package coordinator

import (
	"context"
	"fmt"

	"github.com/oakmere/smsbridge/internal/journal"
	"github.com/oakmere/smsbridge/internal/store"
)

// HandleWebhook processes a push delivery from the vendor.
//
// The envelope carries the device ID under one of several keys and the
// message either nested under "data" or inline at the top level. The
// message then enters the same ingestion path as polled messages, so a
// webhook delivery followed by a poll of the same message (or the
// reverse) counts exactly once.
func (c *Coordinator) HandleWebhook(ctx context.Context, payload map[string]any) error {
	devID := store.WebhookDeviceID(payload)
	if devID == "" {
		c.logger.Warn("Webhook payload missing device id")
		return fmt.Errorf("%w: no device id", ErrBadWebhook)
	}

	msg := payload
	if nested, ok := payload["data"].(map[string]any); ok {
		msg = nested
	}

	smsID := store.MessageID(msg)
	if smsID == "" {
		if v, ok := payload["smsId"].(string); ok {
			smsID = v
		}
	}

	c.logger.Debug("Webhook received", "device_id", devID, "message_id", smsID)
	res := c.processIncoming(ctx, devID, msg, smsID, journal.SourceWebhook)
	if res.Accepted {
		c.publishEvent("webhook", map[string]any{
			"device_id":  res.DeviceID,
			"message_id": res.MessageID,
			"sender":     res.Sender,
		})
	}
	return nil
}
