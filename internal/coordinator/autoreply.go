package coordinator

import (
	"context"

	"github.com/oakmere/smsbridge/internal/journal"
)

// maybeAutoReply sends a throttled auto-reply to the sender of an
// accepted incoming message.
//
// The throttle slot is reserved atomically before the send, so two
// concurrent deliveries of the same message can never both reply. If
// the gateway send fails the reservation is rolled back and the next
// message from the sender retries immediately.
func (c *Coordinator) maybeAutoReply(ctx context.Context, deviceID, sender string) {
	reservedAt := c.now().UTC()
	message, ok := c.store.ReserveAutoReply(deviceID, sender, c.cfg.AutoReplyWindow, reservedAt)
	if !ok {
		return
	}

	if err := c.client.Send(ctx, deviceID, []string{sender}, message, nil); err != nil {
		c.logger.Error("Auto-reply failed",
			"device_id", deviceID,
			"sender", sender,
			"error", err,
		)
		c.store.RollbackAutoReply(deviceID, sender, reservedAt)
		return
	}

	c.logger.Info("Auto-reply sent", "device_id", deviceID, "sender", sender)

	recorded := c.store.RecordSent(deviceID, []string{sender}, message)

	c.recordJournal(ctx, journal.Entry{
		DeviceID:    recorded,
		Direction:   journal.DirectionOutgoing,
		Source:      journal.SourceAutoReply,
		Counterpart: sender,
		Body:        message,
	})

	if c.metrics != nil {
		if err := c.metrics.WriteEvent("auto_reply_sent", recorded); err != nil {
			c.logger.Warn("Telemetry write failed", "error", err)
		}
	}
}
