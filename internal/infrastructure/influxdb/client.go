package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/oakmere/smsbridge/internal/infrastructure/config"
)

// connectTimeout bounds the initial ping on startup.
const connectTimeout = 5 * time.Second

// Client wraps the InfluxDB v2 client with SMS Bridge-specific helpers.
//
// Writes go through the non-blocking WriteAPI: points are batched
// client-side and flushed asynchronously, so telemetry never stalls the
// reconciliation loop. A disabled client is valid and turns every write
// into a no-op.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.InfluxDBConfig
	enabled  bool

	// onError is invoked for asynchronous write failures (optional).
	onError func(err error)
	errMu   sync.RWMutex

	// done stops the error drain goroutine on Close.
	done     chan struct{}
	closeOne sync.Once
}

// Connect creates an InfluxDB client and verifies connectivity with a ping.
//
// If cfg.Enabled is false a disabled no-op client is returned with no error,
// so callers can wire telemetry unconditionally.
//
// Parameters:
//   - ctx: Context for the startup ping
//   - cfg: InfluxDB configuration from config.yaml
//
// Returns:
//   - *Client: Ready client (possibly disabled)
//   - error: If the server is unreachable or rejects the token
func Connect(ctx context.Context, cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{cfg: cfg, enabled: false}, nil
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := cfg.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 10
	}

	options := influxdb2.DefaultOptions().
		SetBatchSize(uint(batchSize)).
		SetFlushInterval(uint(flushInterval * 1000))

	underlying := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, options)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	ok, err := underlying.Ping(pingCtx)
	if err != nil {
		underlying.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if !ok {
		underlying.Close()
		return nil, ErrConnectionFailed
	}

	c := &Client{
		client:   underlying,
		writeAPI: underlying.WriteAPI(cfg.Org, cfg.Bucket),
		cfg:      cfg,
		enabled:  true,
		done:     make(chan struct{}),
	}

	go c.drainWriteErrors()

	return c, nil
}

// drainWriteErrors consumes the async error channel so batched write
// failures surface through the onError callback instead of being dropped.
func (c *Client) drainWriteErrors() {
	errCh := c.writeAPI.Errors()
	for {
		select {
		case err, open := <-errCh:
			if !open {
				return
			}
			c.errMu.RLock()
			callback := c.onError
			c.errMu.RUnlock()
			if callback != nil && err != nil {
				callback(err)
			}
		case <-c.done:
			return
		}
	}
}

// SetOnError sets a callback for asynchronous write failures.
func (c *Client) SetOnError(callback func(err error)) {
	c.errMu.Lock()
	c.onError = callback
	c.errMu.Unlock()
}

// WriteDeviceMetric records a telemetry point for a device.
//
// The point lands in the "device_metrics" measurement tagged with the
// device ID. Fields are whatever the caller supplies: received/sent
// counters, signal bars, battery percentage.
//
// The write is buffered and non-blocking; a nil return does not mean the
// point has reached the server.
func (c *Client) WriteDeviceMetric(deviceID string, fields map[string]any) error {
	if !c.enabled {
		return nil
	}
	if len(fields) == 0 {
		return nil
	}

	point := influxdb2.NewPoint(
		"device_metrics",
		map[string]string{"device_id": deviceID},
		fields,
		time.Now().UTC(),
	)

	c.writeAPI.WritePoint(point)
	return nil
}

// WriteEvent records a bridge event occurrence (message received, sent,
// auto-reply fired) for rate graphs.
func (c *Client) WriteEvent(eventType, deviceID string) error {
	if !c.enabled {
		return nil
	}

	point := influxdb2.NewPoint(
		"bridge_events",
		map[string]string{
			"event":     eventType,
			"device_id": deviceID,
		},
		map[string]any{"count": 1},
		time.Now().UTC(),
	)

	c.writeAPI.WritePoint(point)
	return nil
}

// Flush forces pending points to be written immediately.
// Useful before shutdown or in tests.
func (c *Client) Flush() {
	if !c.enabled {
		return
	}
	c.writeAPI.Flush()
}

// HealthCheck verifies connectivity with a ping.
//
// Returns ErrDisabled for a disabled client so health reporting can
// distinguish "off" from "broken".
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.enabled {
		return ErrDisabled
	}

	ok, err := c.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotConnected, err)
	}
	if !ok {
		return ErrNotConnected
	}
	return nil
}

// Enabled reports whether telemetry writes are active.
func (c *Client) Enabled() bool {
	return c.enabled
}

// Close flushes pending writes and releases the underlying client.
// Safe to call multiple times and on a disabled client.
func (c *Client) Close() {
	if !c.enabled {
		return
	}
	c.closeOne.Do(func() {
		close(c.done)
		c.writeAPI.Flush()
		c.client.Close()
	})
}
