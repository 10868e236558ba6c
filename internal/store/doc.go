// Package store holds the in-memory account aggregate for SMS Bridge.
//
// The aggregate tracks one record per gateway device: identity fields,
// signal/battery telemetry, the latest received message, monotonic
// sent/received counters, the transient new-message pulse, and the last
// per-device error. Account-wide totals sit alongside the device map.
//
// # Concurrency
//
// A single sync.RWMutex guards the aggregate. Every read path returns
// deep copies so callers can never observe or cause a torn update.
// Message ingestion, counter updates, and the auto-reply throttle
// reservation all happen under the write lock, which is what makes
// dedup and the throttle race-free across the poll and webhook paths.
//
// # Ingestion
//
// Ingest is the single entry point for incoming messages from both the
// poller and the webhook. It deduplicates on the device's last message
// ID: a repeat delivery refreshes the stored payload without touching
// counters or the pulse. Unknown device IDs (webhooks sometimes carry a
// variant ID) are remapped to the first-registered device so consumers
// always see the event.
package store
