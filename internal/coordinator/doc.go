// Package coordinator drives reconciliation between the SMS gateway and
// the in-memory aggregate.
//
// The coordinator owns four responsibilities:
//
//   - Polling: a fixed-interval loop fetches the device list and each
//     device's received messages, merges device fields into the store,
//     and ingests the newest message per device. A device-list failure
//     aborts the cycle; a per-device message fetch failure only marks
//     that device's last error.
//
//   - Webhook ingestion: push deliveries from the vendor enter the same
//     ingestion path as polled messages, so a message seen on both
//     paths counts exactly once.
//
//   - The new-message pulse: ingestion raises a per-device flag that is
//     lowered after a fixed delay. Each new message cancels the
//     previous timer and schedules a fresh one, so a burst of messages
//     keeps the pulse up and only the final timer lowers it.
//
//   - Auto-reply and sends: accepted incoming messages may trigger a
//     throttled auto-reply, and the send service delivers outbound SMS
//     with a device fallback chain (explicit, configured default,
//     first-registered).
//
// Accepted messages fan out to the SQLite journal, MQTT events, and
// InfluxDB telemetry; each sink is optional and failures there never
// affect the aggregate.
package coordinator
