package coordinator

import (
	"time"

	"github.com/oakmere/smsbridge/internal/store"
)

// messageTimeKeys are the timestamp aliases on a message payload,
// checked in priority order.
var messageTimeKeys = []string{"receivedAt", "createdAt", "sentAt"}

// timeLayouts are tried in order when parsing vendor timestamps.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// parseMessageTime extracts and parses a message's timestamp.
//
// String timestamps go through the layout list; numeric values are
// treated as epoch seconds (or milliseconds when implausibly large).
// Returns ok=false when no field parses, which ranks the message
// oldest during latest-message selection.
func parseMessageTime(msg map[string]any) (time.Time, bool) {
	for _, key := range messageTimeKeys {
		v, present := msg[key]
		if !present || v == nil {
			continue
		}

		switch value := v.(type) {
		case string:
			if value == "" {
				continue
			}
			for _, layout := range timeLayouts {
				if t, err := time.Parse(layout, value); err == nil {
					return t, true
				}
			}
		case float64:
			// Epoch milliseconds start looking like this around 2001.
			if value > 1e12 {
				return time.UnixMilli(int64(value)), true
			}
			if value > 0 {
				return time.Unix(int64(value), 0), true
			}
		}
	}
	return time.Time{}, false
}

// latestMessage picks the newest message from a vendor list.
//
// Messages are compared by parsed timestamp. A message with no parseable
// timestamp ranks oldest. Ties keep the earlier list element, so the
// selection is deterministic for identical timestamps.
func latestMessage(messages []map[string]any) map[string]any {
	if len(messages) == 0 {
		return nil
	}

	best := messages[0]
	bestTime, bestOK := parseMessageTime(best)

	for _, msg := range messages[1:] {
		t, ok := parseMessageTime(msg)
		switch {
		case ok && !bestOK:
			best, bestTime, bestOK = msg, t, true
		case ok && bestOK && t.After(bestTime):
			best, bestTime = msg, t
		}
	}
	return best
}

// deviceMetricFields builds the telemetry field set for a device record.
// Only populated readings are written.
func deviceMetricFields(rec store.DeviceRecord) map[string]any {
	fields := map[string]any{
		"received_count": rec.ReceivedCount,
		"sent_count":     rec.SentCount,
	}
	if rec.SignalBars != nil {
		fields["signal_bars"] = *rec.SignalBars
	}
	if rec.SignalValue != nil {
		fields["signal_value"] = *rec.SignalValue
	}
	if rec.BatteryLevel != nil {
		fields["battery_level"] = *rec.BatteryLevel
	}
	return fields
}
