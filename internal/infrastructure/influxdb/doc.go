// Package influxdb provides time-series telemetry for SMS Bridge.
//
// Device telemetry (message counters, signal strength, battery level) is
// written to InfluxDB on every reconciliation cycle so operators can graph
// gateway health over time. The SQLite journal remains the source of truth
// for message history; InfluxDB is purely observational and the bridge runs
// fine with it disabled.
//
// # Write Model
//
// Writes use the non-blocking WriteAPI with client-side batching. Points are
// buffered and flushed on a timer or when the batch fills. A failed flush is
// reported through the error channel and logged; it never blocks or fails a
// reconciliation cycle.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB)
//	if err != nil {
//	    // telemetry is optional, log and continue
//	}
//	defer client.Close()
//
//	client.WriteDeviceMetric("dev-01", map[string]any{
//	    "received_count": 12,
//	    "signal_bars":    3,
//	})
package influxdb
