package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/oakmere/smsbridge/internal/journal"
	"github.com/oakmere/smsbridge/internal/store"
)

// Run polls the gateway until the context is cancelled.
//
// Cycles are strictly sequential: the next tick waits for the previous
// cycle to finish, so a slow vendor API never stacks concurrent polls.
// An immediate first cycle primes the aggregate on startup.
func (c *Coordinator) Run(ctx context.Context) {
	c.logger.Info("Poller started", "interval", c.cfg.PollInterval)

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	if err := c.pollOnce(ctx); err != nil {
		c.logger.Error("Poll cycle failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Poller stopped")
			return
		case <-ticker.C:
			if err := c.pollOnce(ctx); err != nil {
				c.logger.Error("Poll cycle failed", "error", err)
			}
		}
	}
}

// pollOnce runs a single reconciliation cycle.
//
// A device-list failure aborts the whole cycle and leaves the aggregate
// untouched. Per-device message fetch failures are isolated: the device
// gets its last error set and the cycle moves on.
func (c *Coordinator) pollOnce(ctx context.Context) error {
	devices, err := c.client.ListDevices(ctx)
	if err != nil {
		return fmt.Errorf("listing devices: %w", err)
	}

	for _, dev := range devices {
		devID := store.DeviceID(dev)
		if devID == "" {
			continue
		}

		c.store.MergeDevice(devID, dev)

		messages, err := c.client.ListReceivedMessages(ctx, devID)
		if err != nil {
			c.logger.Error("Fetching received SMS failed",
				"device_id", devID,
				"error", err,
			)
			c.store.SetLastError(devID, err.Error())
			continue
		}

		if latest := latestMessage(messages); latest != nil {
			c.processIncoming(ctx, devID, latest, "", journal.SourcePoll)
		}
	}

	// One snapshot per cycle batches the device merges for subscribers,
	// then push per-device state and telemetry.
	c.store.Publish()

	snap := c.store.Snapshot()
	for _, rec := range snap.Devices {
		c.publishDeviceState(rec)
		if c.metrics != nil {
			if err := c.metrics.WriteDeviceMetric(rec.DeviceID, deviceMetricFields(rec)); err != nil {
				c.logger.Warn("Telemetry write failed", "device_id", rec.DeviceID, "error", err)
			}
		}
	}

	return nil
}
