package store

import (
	"strings"
	"sync"
	"time"
)

// subscriberBuffer is the snapshot channel depth per subscriber.
// Slow consumers miss intermediate snapshots rather than blocking
// ingestion; every snapshot is complete so the latest one is enough.
const subscriberBuffer = 8

// Store is the mutex-guarded account aggregate.
//
// All mutations happen under the write lock, including the auto-reply
// throttle reservation, so concurrent deliveries of the same message on
// the poll and webhook paths cannot double-count or double-reply.
type Store struct {
	mu sync.RWMutex

	devices map[string]*DeviceRecord
	order   []string // device IDs in first-registration order

	totalSent     int
	totalReceived int
	updatedAt     time.Time

	autoReplyEnabled map[string]bool
	autoReplyMessage map[string]string
	// autoReplyLast tracks the last auto-reply time per (device, sender).
	autoReplyLast map[string]map[string]time.Time

	subscribers map[int]chan Snapshot
	nextSubID   int

	now func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		devices:          make(map[string]*DeviceRecord),
		autoReplyEnabled: make(map[string]bool),
		autoReplyMessage: make(map[string]string),
		autoReplyLast:    make(map[string]map[string]time.Time),
		subscribers:      make(map[int]chan Snapshot),
		now:              time.Now,
	}
}

// ensureDevice returns the record for deviceID, creating it if absent.
// Caller must hold the write lock.
func (s *Store) ensureDevice(deviceID string) *DeviceRecord {
	if rec, ok := s.devices[deviceID]; ok {
		return rec
	}
	rec := &DeviceRecord{DeviceID: deviceID}
	s.devices[deviceID] = rec
	s.order = append(s.order, deviceID)
	return rec
}

// remapDeviceID substitutes the first-registered device for an unknown
// ID. Webhook envelopes sometimes carry a variant of the device ID; the
// remap keeps their events visible on a device consumers know about.
// Caller must hold the write lock.
func (s *Store) remapDeviceID(deviceID string) string {
	if _, known := s.devices[deviceID]; known {
		return deviceID
	}
	if len(s.order) > 0 {
		return s.order[0]
	}
	return deviceID
}

// MergeDevice applies a vendor device payload to the aggregate.
//
// Identity and telemetry fields are resolved through their alias lists;
// a field absent from the payload keeps its previous value. Merging
// clears the device's last error, matching a successful device fetch.
func (s *Store) MergeDevice(deviceID string, payload map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.ensureDevice(deviceID)
	rec.RawDevice = cloneMap(payload)

	if v := firstString(payload, nameKeys); v != "" {
		rec.Name = v
	}
	if v := firstString(payload, phoneKeys); v != "" {
		rec.PhoneNumber = v
	}
	if v := firstString(payload, makerKeys); v != "" {
		rec.Manufacturer = v
	}
	if v := firstString(payload, modelKeys); v != "" {
		rec.Model = v
	}

	// Signal: explicit bar count wins over a raw reading.
	if bars, ok := firstNumber(payload, []string{"signalBars"}); ok {
		b := int(bars)
		rec.SignalBars = &b
	} else if v, ok := firstNumber(payload, signalKeys); ok {
		b := signalToBars(v)
		rec.SignalBars = &b
		rec.SignalValue = &v
	}

	if v, ok := firstNumber(payload, batteryKeys); ok {
		rec.BatteryLevel = &v
	}

	if v := firstString(payload, registeredAts); v != "" {
		rec.RegisteredAt = v
	}
	if raw, present := payload["registered"]; present {
		reg, _ := raw.(bool)
		rec.Registered = &reg
	} else if rec.RegisteredAt != "" {
		reg := true
		rec.Registered = &reg
	}

	status := firstString(payload, statusKeys)
	if status == "" {
		if online, ok := payload["online"].(bool); ok {
			if online {
				status = "online"
			} else {
				status = "offline"
			}
		}
	}
	if status == "" {
		status = rec.Status
	}
	if status == "" {
		status = "online"
	}
	rec.Status = status
	rec.LastError = ""

	s.updatedAt = s.now()
}

// Ingest processes one incoming message from either the poll or the
// webhook path.
//
// If the resolved message ID matches the device's last message ID, or
// no ID can be resolved at all, the stored payload is refreshed and
// Accepted=false is returned, with counters and pulse untouched. A new
// message updates the record, bumps the per-device and account counters,
// and raises the new-message pulse. The caller owns pulse expiry and
// any auto-reply.
func (s *Store) Ingest(deviceID string, msg map[string]any, smsID string) IngestResult {
	s.mu.Lock()

	deviceID = s.remapDeviceID(deviceID)
	rec := s.ensureDevice(deviceID)

	if smsID == "" {
		smsID = MessageID(msg)
	}

	// Duplicate delivery, or no resolvable id to dedup on: refresh the
	// payload only. Counting an id-less message would count it again on
	// every poll cycle.
	if smsID == "" || smsID == rec.LastMessageID {
		rec.LastMessage = cloneMap(msg)
		s.mu.Unlock()
		return IngestResult{Accepted: false, DeviceID: deviceID, MessageID: smsID}
	}

	sender := Sender(msg)
	text := Body(msg)

	rec.LastMessage = cloneMap(msg)
	rec.LastMessageID = smsID
	rec.LastDirection = DirectionIncoming
	rec.LastIncomingFrom = sender
	rec.LastIncomingText = text

	rec.ReceivedCount++
	s.totalReceived++

	rec.NewMessagePulse = true
	if rec.Status == "" {
		rec.Status = "online"
	}
	rec.LastError = ""

	s.updatedAt = s.now()
	s.mu.Unlock()

	s.notify()

	return IngestResult{
		Accepted:  true,
		DeviceID:  deviceID,
		MessageID: smsID,
		Sender:    sender,
		Text:      text,
	}
}

// RecordSent bumps the sent counters after a successful outbound send.
// Unknown device IDs are remapped the same way as incoming messages.
// Returns the device ID the send was recorded against.
func (s *Store) RecordSent(deviceID string, recipients []string, message string) string {
	s.mu.Lock()

	deviceID = s.remapDeviceID(deviceID)
	rec := s.ensureDevice(deviceID)

	rec.SentCount++
	s.totalSent++

	rec.LastDirection = DirectionOutgoing
	if len(recipients) > 0 {
		rec.LastOutgoingTo = strings.Join(recipients, ", ")
	}
	rec.LastOutgoingText = message

	s.updatedAt = s.now()
	s.mu.Unlock()

	s.notify()
	return deviceID
}

// ClearPulse lowers the new-message pulse for a device.
// No-op if the device is unknown or the pulse is already down.
func (s *Store) ClearPulse(deviceID string) {
	s.mu.Lock()
	rec, ok := s.devices[deviceID]
	if !ok || !rec.NewMessagePulse {
		s.mu.Unlock()
		return
	}
	rec.NewMessagePulse = false
	s.updatedAt = s.now()
	s.mu.Unlock()

	s.notify()
}

// SetLastError records a per-device fetch failure without disturbing
// the rest of the record. Other devices are unaffected.
func (s *Store) SetLastError(deviceID string, message string) {
	s.mu.Lock()
	rec := s.ensureDevice(deviceID)
	rec.LastError = message
	s.updatedAt = s.now()
	s.mu.Unlock()
}

// FirstDeviceID returns the first-registered device ID, or "" if the
// aggregate is empty.
func (s *Store) FirstDeviceID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.order) == 0 {
		return ""
	}
	return s.order[0]
}

// HasDevice reports whether a device ID is known to the aggregate.
func (s *Store) HasDevice(deviceID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.devices[deviceID]
	return ok
}

// Device returns a deep copy of one device record.
func (s *Store) Device(deviceID string) (DeviceRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.devices[deviceID]
	if !ok {
		return DeviceRecord{}, false
	}
	return *rec.clone(), true
}

// Snapshot returns a deep copy of the whole aggregate, devices in
// first-registration order.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// snapshotLocked builds a Snapshot. Caller must hold at least the read lock.
func (s *Store) snapshotLocked() Snapshot {
	snap := Snapshot{
		Devices:       make([]DeviceRecord, 0, len(s.order)),
		TotalSent:     s.totalSent,
		TotalReceived: s.totalReceived,
		UpdatedAt:     s.updatedAt,
	}
	for _, id := range s.order {
		snap.Devices = append(snap.Devices, *s.devices[id].clone())
	}
	return snap
}

//
// Auto-reply configuration and throttle
//

// SetAutoReplyEnabled toggles auto-reply for a device.
func (s *Store) SetAutoReplyEnabled(deviceID string, enabled bool) {
	s.mu.Lock()
	s.autoReplyEnabled[deviceID] = enabled
	s.mu.Unlock()
	s.notify()
}

// SetAutoReplyMessage sets the auto-reply text for a device.
func (s *Store) SetAutoReplyMessage(deviceID string, message string) {
	s.mu.Lock()
	s.autoReplyMessage[deviceID] = message
	s.mu.Unlock()
	s.notify()
}

// AutoReplyConfig returns the current auto-reply settings for a device.
func (s *Store) AutoReplyConfig(deviceID string) (enabled bool, message string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.autoReplyEnabled[deviceID], s.autoReplyMessage[deviceID]
}

// ReserveAutoReply atomically checks the throttle window and, if clear,
// reserves the (device, sender) slot at the given time.
//
// The reservation is taken before the send so two concurrent deliveries
// of the same message cannot both pass the window check. If the send
// then fails the caller releases the slot with RollbackAutoReply.
//
// Returns the configured reply text and true when the caller should
// send; false when auto-reply is disabled, the message is blank, or the
// sender is still inside the window.
func (s *Store) ReserveAutoReply(deviceID, sender string, window time.Duration, now time.Time) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.autoReplyEnabled[deviceID] {
		return "", false
	}
	message := s.autoReplyMessage[deviceID]
	if strings.TrimSpace(message) == "" {
		return "", false
	}

	perDevice := s.autoReplyLast[deviceID]
	if perDevice == nil {
		perDevice = make(map[string]time.Time)
		s.autoReplyLast[deviceID] = perDevice
	}
	if last, ok := perDevice[sender]; ok && now.Sub(last) < window {
		return "", false
	}

	perDevice[sender] = now
	return message, true
}

// RollbackAutoReply releases a reservation after a failed send, so the
// next message from the sender can retry immediately. The slot is only
// released if it still holds this reservation; a newer reservation from
// a subsequent message stands.
func (s *Store) RollbackAutoReply(deviceID, sender string, reservedAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	perDevice := s.autoReplyLast[deviceID]
	if perDevice == nil {
		return
	}
	if last, ok := perDevice[sender]; ok && last.Equal(reservedAt) {
		delete(perDevice, sender)
	}
}

//
// Snapshot subscriptions
//

// Subscribe registers for snapshot updates. Each mutation that changes
// observable state publishes a fresh snapshot. Slow subscribers skip
// intermediate snapshots instead of blocking writers.
//
// The returned cancel function must be called to release the channel.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	ch := make(chan Snapshot, subscriberBuffer)
	s.subscribers[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		if existing, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(existing)
		}
		s.mu.Unlock()
	}
	return ch, cancel
}

// Publish pushes the current snapshot to all subscribers. Mutating
// methods call this themselves; the poller calls it once per cycle to
// batch device merges into a single update.
func (s *Store) Publish() {
	s.notify()
}

// notify sends the current snapshot to every subscriber without blocking.
func (s *Store) notify() {
	s.mu.RLock()
	snap := s.snapshotLocked()
	for _, ch := range s.subscribers {
		select {
		case ch <- snap:
		default:
		}
	}
	s.mu.RUnlock()
}
