package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oakmere/smsbridge/internal/infrastructure/logging"
	"github.com/oakmere/smsbridge/internal/infrastructure/mqtt"
	"github.com/oakmere/smsbridge/internal/journal"
	"github.com/oakmere/smsbridge/internal/store"
)

// Sentinel errors for coordinator operations.
var (
	// ErrNoDevice is returned when a send cannot be routed to any device.
	ErrNoDevice = errors.New("coordinator: no device available for send")

	// ErrNoRecipients is returned when a send request has no usable recipients.
	ErrNoRecipients = errors.New("coordinator: no recipients")

	// ErrEmptyMessage is returned when a send request has no text.
	ErrEmptyMessage = errors.New("coordinator: message text is required")

	// ErrBadWebhook is returned for webhook payloads missing a device ID
	// or a message object.
	ErrBadWebhook = errors.New("coordinator: malformed webhook payload")
)

// GatewayClient is the slice of the vendor API the coordinator needs.
type GatewayClient interface {
	ListDevices(ctx context.Context) ([]map[string]any, error)
	ListReceivedMessages(ctx context.Context, deviceID string) ([]map[string]any, error)
	Send(ctx context.Context, deviceID string, recipients []string, message string, mediaURLs []string) error
}

// EventPublisher publishes bridge events to the integration bus.
// Satisfied by *mqtt.Client; nil disables MQTT fan-out.
type EventPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Telemetry records device metrics and event counts.
// Satisfied by *influxdb.Client; nil disables telemetry.
type Telemetry interface {
	WriteDeviceMetric(deviceID string, fields map[string]any) error
	WriteEvent(eventType, deviceID string) error
}

// Config holds the coordinator's timing knobs.
type Config struct {
	// PollInterval is the gap between reconciliation cycles.
	PollInterval time.Duration

	// PulseClearDelay is how long the new-message pulse stays raised.
	PulseClearDelay time.Duration

	// AutoReplyWindow is the minimum gap between auto-replies to the
	// same sender on the same device.
	AutoReplyWindow time.Duration

	// DefaultDeviceID routes sends that name no device. Empty falls
	// through to the first-registered device.
	DefaultDeviceID string
}

// Coordinator reconciles gateway state into the store and fans out
// accepted messages to the journal, MQTT, and telemetry sinks.
type Coordinator struct {
	store   *store.Store
	client  GatewayClient
	journal journal.Repository
	bus     EventPublisher
	metrics Telemetry
	logger  *logging.Logger
	cfg     Config

	// pulseTimers holds the pending pulse-clear timer per device.
	// A new message cancels and replaces the device's timer, so the
	// pulse never drops early during a message burst. pulseGen guards
	// against a timer that fired before Stop could catch it: the
	// callback only clears when its generation is still current.
	pulseTimers map[string]*time.Timer
	pulseGen    map[string]uint64
	pulseMu     sync.Mutex

	// replyWG tracks in-flight auto-reply sends for clean shutdown.
	replyWG sync.WaitGroup

	now func() time.Time
}

// New creates a Coordinator. journal, bus, and metrics may be nil to
// disable the corresponding sink.
func New(s *store.Store, client GatewayClient, repo journal.Repository, bus EventPublisher, metrics Telemetry, logger *logging.Logger, cfg Config) *Coordinator {
	return &Coordinator{
		store:       s,
		client:      client,
		journal:     repo,
		bus:         bus,
		metrics:     metrics,
		logger:      logger.With("component", "coordinator"),
		cfg:         cfg,
		pulseTimers: make(map[string]*time.Timer),
		pulseGen:    make(map[string]uint64),
		now:         time.Now,
	}
}

// Store exposes the underlying aggregate for read paths.
func (c *Coordinator) Store() *store.Store {
	return c.store
}

// processIncoming runs one message through the shared ingestion path.
//
// Both the poller and the webhook land here. The store deduplicates on
// the device's last message ID; only accepted messages reach the
// journal, the event bus, the pulse timer, and the auto-reply check.
func (c *Coordinator) processIncoming(ctx context.Context, deviceID string, msg map[string]any, smsID, source string) store.IngestResult {
	res := c.store.Ingest(deviceID, msg, smsID)
	if !res.Accepted {
		c.logger.Debug("Duplicate message ignored",
			"device_id", res.DeviceID,
			"message_id", res.MessageID,
			"source", source,
		)
		return res
	}

	c.logger.Info("Incoming message",
		"device_id", res.DeviceID,
		"message_id", res.MessageID,
		"sender", res.Sender,
		"source", source,
	)

	c.recordJournal(ctx, journal.Entry{
		DeviceID:    res.DeviceID,
		MessageID:   res.MessageID,
		Direction:   journal.DirectionIncoming,
		Source:      source,
		Counterpart: res.Sender,
		Body:        res.Text,
		Payload:     msg,
	})

	c.publishEvent("message_received", map[string]any{
		"event_id":   uuid.NewString(),
		"device_id":  res.DeviceID,
		"message_id": res.MessageID,
		"sender":     res.Sender,
		"text":       res.Text,
		"source":     source,
		"timestamp":  c.now().UTC().Format(time.RFC3339),
	})

	if c.metrics != nil {
		if err := c.metrics.WriteEvent("message_received", res.DeviceID); err != nil {
			c.logger.Warn("Telemetry write failed", "error", err)
		}
	}

	c.schedulePulseClear(res.DeviceID)

	if res.Sender != "" {
		// Detach from the caller's context: a webhook's request context
		// is cancelled the moment the handler returns, and the reply
		// must outlive it. The gateway client's own timeout still bounds
		// the send.
		replyCtx := context.WithoutCancel(ctx)
		c.replyWG.Add(1)
		go func() {
			defer c.replyWG.Done()
			c.maybeAutoReply(replyCtx, res.DeviceID, res.Sender)
		}()
	}

	return res
}

// schedulePulseClear arms the pulse-clear timer for a device, replacing
// any pending timer so consecutive messages extend the pulse. The
// generation bump invalidates a replaced timer even if it already fired
// and is waiting to run.
func (c *Coordinator) schedulePulseClear(deviceID string) {
	c.pulseMu.Lock()
	defer c.pulseMu.Unlock()

	if existing, ok := c.pulseTimers[deviceID]; ok {
		existing.Stop()
	}
	c.pulseGen[deviceID]++
	gen := c.pulseGen[deviceID]

	c.pulseTimers[deviceID] = time.AfterFunc(c.cfg.PulseClearDelay, func() {
		c.clearPulseIfCurrent(deviceID, gen)
	})
}

// clearPulseIfCurrent clears a device's pulse when the calling timer is
// still the latest one scheduled. Stale callbacks from replaced timers
// are no-ops and must not touch the replacement's map entry.
func (c *Coordinator) clearPulseIfCurrent(deviceID string, gen uint64) {
	c.pulseMu.Lock()
	if c.pulseGen[deviceID] != gen {
		c.pulseMu.Unlock()
		return
	}
	delete(c.pulseTimers, deviceID)
	c.pulseMu.Unlock()

	c.store.ClearPulse(deviceID)
}

// StopPulseTimers cancels all pending pulse timers. Called on shutdown.
func (c *Coordinator) StopPulseTimers() {
	c.pulseMu.Lock()
	defer c.pulseMu.Unlock()
	for id, timer := range c.pulseTimers {
		timer.Stop()
		delete(c.pulseTimers, id)
		c.pulseGen[id]++
	}
}

// Wait blocks until in-flight auto-reply sends finish.
func (c *Coordinator) Wait() {
	c.replyWG.Wait()
}

// recordJournal persists an entry, logging instead of failing. The
// journal is an audit trail; losing a row never blocks ingestion.
func (c *Coordinator) recordJournal(ctx context.Context, entry journal.Entry) {
	if c.journal == nil {
		return
	}
	if err := c.journal.Record(ctx, entry); err != nil {
		c.logger.Warn("Journal write failed",
			"device_id", entry.DeviceID,
			"direction", entry.Direction,
			"error", err,
		)
	}
}

// publishEvent emits a JSON event on the integration bus.
func (c *Coordinator) publishEvent(eventType string, payload map[string]any) {
	if c.bus == nil {
		return
	}

	body, err := json.Marshal(payload)
	if err != nil {
		c.logger.Warn("Event encode failed", "event", eventType, "error", err)
		return
	}

	topic := mqtt.Topics{}.Event(eventType)
	if err := c.bus.Publish(topic, body, 1, false); err != nil {
		c.logger.Warn("Event publish failed", "event", eventType, "error", err)
	}
}

// publishDeviceState pushes a device's reconciled state to its retained
// MQTT topic so late subscribers see the current record.
func (c *Coordinator) publishDeviceState(rec store.DeviceRecord) {
	if c.bus == nil {
		return
	}

	body, err := json.Marshal(rec)
	if err != nil {
		c.logger.Warn("State encode failed", "device_id", rec.DeviceID, "error", err)
		return
	}

	topic := mqtt.Topics{}.DeviceState(rec.DeviceID)
	if err := c.bus.Publish(topic, body, 1, true); err != nil {
		c.logger.Warn("State publish failed", "device_id", rec.DeviceID, "error", err)
	}
}
