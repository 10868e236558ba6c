package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/oakmere/smsbridge/internal/infrastructure/config"
	"github.com/oakmere/smsbridge/internal/infrastructure/logging"
	"github.com/oakmere/smsbridge/internal/store"
)

// fakeGateway is a scriptable GatewayClient.
type fakeGateway struct {
	mu sync.Mutex

	devices    []map[string]any
	devicesErr error

	// messages maps device ID to its received-SMS list.
	messages    map[string][]map[string]any
	messagesErr map[string]error

	sendErr   error
	sendCalls []fakeSend
}

type fakeSend struct {
	deviceID   string
	recipients []string
	message    string
}

func (f *fakeGateway) ListDevices(_ context.Context) ([]map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.devicesErr != nil {
		return nil, f.devicesErr
	}
	return f.devices, nil
}

func (f *fakeGateway) ListReceivedMessages(_ context.Context, deviceID string) ([]map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.messagesErr[deviceID]; err != nil {
		return nil, err
	}
	return f.messages[deviceID], nil
}

func (f *fakeGateway) Send(ctx context.Context, deviceID string, recipients []string, message string, _ []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	// Honour cancellation like the real client would.
	if err := ctx.Err(); err != nil {
		return err
	}
	f.sendCalls = append(f.sendCalls, fakeSend{deviceID: deviceID, recipients: recipients, message: message})
	return nil
}

func (f *fakeGateway) sends() []fakeSend {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]fakeSend, len(f.sendCalls))
	copy(out, f.sendCalls)
	return out
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
}

func newTestCoordinator(gw *fakeGateway, cfg Config) *Coordinator {
	if cfg.PollInterval == 0 {
		cfg.PollInterval = time.Minute
	}
	if cfg.PulseClearDelay == 0 {
		cfg.PulseClearDelay = 30 * time.Millisecond
	}
	if cfg.AutoReplyWindow == 0 {
		cfg.AutoReplyWindow = time.Hour
	}
	return New(store.New(), gw, nil, nil, nil, testLogger(), cfg)
}

func TestPollOnce_IngestsLatestMessage(t *testing.T) {
	gw := &fakeGateway{
		devices: []map[string]any{{"_id": "d1", "name": "Pixel"}},
		messages: map[string][]map[string]any{
			"d1": {{"_id": "m1", "sender": "+1555", "message": "hi", "receivedAt": "2026-08-23T10:00:00Z"}},
		},
	}
	c := newTestCoordinator(gw, Config{})

	if err := c.pollOnce(context.Background()); err != nil {
		t.Fatalf("pollOnce() error = %v", err)
	}

	rec, ok := c.store.Device("d1")
	if !ok {
		t.Fatal("device d1 not in store")
	}
	if rec.Name != "Pixel" {
		t.Errorf("Name = %q", rec.Name)
	}
	if rec.ReceivedCount != 1 {
		t.Errorf("ReceivedCount = %d, want 1", rec.ReceivedCount)
	}
	if rec.LastIncomingFrom != "+1555" || rec.LastIncomingText != "hi" {
		t.Errorf("incoming = %q/%q", rec.LastIncomingFrom, rec.LastIncomingText)
	}

	// A second cycle over the same message must not count again.
	if err := c.pollOnce(context.Background()); err != nil {
		t.Fatalf("pollOnce() error = %v", err)
	}
	rec, _ = c.store.Device("d1")
	if rec.ReceivedCount != 1 {
		t.Errorf("ReceivedCount after repeat poll = %d, want 1", rec.ReceivedCount)
	}
}

func TestPollOnce_DeviceListFailureAbortsCycle(t *testing.T) {
	gw := &fakeGateway{devicesErr: errors.New("boom")}
	c := newTestCoordinator(gw, Config{})

	if err := c.pollOnce(context.Background()); err == nil {
		t.Fatal("pollOnce() should propagate the device-list failure")
	}
	if len(c.store.Snapshot().Devices) != 0 {
		t.Error("aggregate should be untouched after an aborted cycle")
	}
}

func TestPollOnce_PerDeviceFailureIsolated(t *testing.T) {
	gw := &fakeGateway{
		devices: []map[string]any{
			{"_id": "d1"},
			{"_id": "d2"},
		},
		messages: map[string][]map[string]any{
			"d2": {{"_id": "m2", "sender": "+1666", "message": "ok"}},
		},
		messagesErr: map[string]error{"d1": errors.New("fetch failed")},
	}
	c := newTestCoordinator(gw, Config{})

	if err := c.pollOnce(context.Background()); err != nil {
		t.Fatalf("pollOnce() error = %v", err)
	}

	r1, _ := c.store.Device("d1")
	if r1.LastError == "" {
		t.Error("d1 should carry the fetch error")
	}

	r2, _ := c.store.Device("d2")
	if r2.LastError != "" {
		t.Errorf("d2 LastError = %q, want empty", r2.LastError)
	}
	if r2.ReceivedCount != 1 {
		t.Errorf("d2 ReceivedCount = %d, want 1", r2.ReceivedCount)
	}
}

func TestHandleWebhook_NestedData(t *testing.T) {
	gw := &fakeGateway{}
	c := newTestCoordinator(gw, Config{})
	c.store.MergeDevice("d1", nil)

	err := c.HandleWebhook(context.Background(), map[string]any{
		"deviceId": "d1",
		"data":     map[string]any{"_id": "m1", "sender": "+1555", "message": "hi"},
	})
	if err != nil {
		t.Fatalf("HandleWebhook() error = %v", err)
	}

	rec, _ := c.store.Device("d1")
	if rec.ReceivedCount != 1 {
		t.Errorf("ReceivedCount = %d, want 1", rec.ReceivedCount)
	}
	if rec.LastMessageID != "m1" {
		t.Errorf("LastMessageID = %q", rec.LastMessageID)
	}
}

func TestHandleWebhook_MissingDeviceID(t *testing.T) {
	c := newTestCoordinator(&fakeGateway{}, Config{})

	err := c.HandleWebhook(context.Background(), map[string]any{"data": map[string]any{"_id": "m1"}})
	if !errors.Is(err, ErrBadWebhook) {
		t.Errorf("error = %v, want ErrBadWebhook", err)
	}
}

func TestWebhookThenPoll_CountsOnce(t *testing.T) {
	gw := &fakeGateway{
		devices: []map[string]any{{"_id": "d1"}},
		messages: map[string][]map[string]any{
			"d1": {{"_id": "m1", "sender": "+1555", "message": "hi"}},
		},
	}
	c := newTestCoordinator(gw, Config{})
	c.store.MergeDevice("d1", nil)

	err := c.HandleWebhook(context.Background(), map[string]any{
		"deviceId": "d1",
		"data":     map[string]any{"_id": "m1", "sender": "+1555", "message": "hi"},
	})
	if err != nil {
		t.Fatalf("HandleWebhook() error = %v", err)
	}

	if err := c.pollOnce(context.Background()); err != nil {
		t.Fatalf("pollOnce() error = %v", err)
	}

	rec, _ := c.store.Device("d1")
	if rec.ReceivedCount != 1 {
		t.Errorf("ReceivedCount = %d, want exactly 1 across both paths", rec.ReceivedCount)
	}
}

func TestPulse_ClearsAfterDelay(t *testing.T) {
	gw := &fakeGateway{}
	c := newTestCoordinator(gw, Config{PulseClearDelay: 20 * time.Millisecond})
	c.store.MergeDevice("d1", nil)

	c.processIncoming(context.Background(), "d1", map[string]any{"_id": "m1", "sender": "+1555", "message": "hi"}, "", "webhook")

	rec, _ := c.store.Device("d1")
	if !rec.NewMessagePulse {
		t.Fatal("pulse should be raised immediately after ingest")
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		rec, _ = c.store.Device("d1")
		if !rec.NewMessagePulse {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if rec.NewMessagePulse {
		t.Error("pulse should clear after the delay")
	}
	c.Wait()
}

func TestPulse_BurstExtendsWindow(t *testing.T) {
	gw := &fakeGateway{}
	c := newTestCoordinator(gw, Config{PulseClearDelay: 60 * time.Millisecond})
	c.store.MergeDevice("d1", nil)

	c.processIncoming(context.Background(), "d1", map[string]any{"_id": "m1", "sender": "+1555", "message": "a"}, "", "webhook")
	time.Sleep(40 * time.Millisecond)
	c.processIncoming(context.Background(), "d1", map[string]any{"_id": "m2", "sender": "+1555", "message": "b"}, "", "webhook")

	// The first timer would have fired by now; the second message must
	// have replaced it, keeping the pulse up.
	time.Sleep(35 * time.Millisecond)
	rec, _ := c.store.Device("d1")
	if !rec.NewMessagePulse {
		t.Error("second message should extend the pulse window")
	}

	time.Sleep(60 * time.Millisecond)
	rec, _ = c.store.Device("d1")
	if rec.NewMessagePulse {
		t.Error("pulse should clear after the extended window")
	}
	c.Wait()
}

func TestMaybeAutoReply_SendsAndThrottles(t *testing.T) {
	gw := &fakeGateway{}
	c := newTestCoordinator(gw, Config{})
	c.store.MergeDevice("d1", nil)
	c.store.SetAutoReplyEnabled("d1", true)
	c.store.SetAutoReplyMessage("d1", "away")

	c.maybeAutoReply(context.Background(), "d1", "+1555")

	sends := gw.sends()
	if len(sends) != 1 {
		t.Fatalf("got %d sends, want 1", len(sends))
	}
	if sends[0].message != "away" || sends[0].recipients[0] != "+1555" {
		t.Errorf("send = %+v", sends[0])
	}

	rec, _ := c.store.Device("d1")
	if rec.SentCount != 1 {
		t.Errorf("SentCount = %d, want 1", rec.SentCount)
	}

	// Same sender inside the window: throttled.
	c.maybeAutoReply(context.Background(), "d1", "+1555")
	if len(gw.sends()) != 1 {
		t.Error("second auto-reply inside window should be throttled")
	}
}

func TestMaybeAutoReply_RollbackOnSendFailure(t *testing.T) {
	gw := &fakeGateway{sendErr: errors.New("gateway down")}
	c := newTestCoordinator(gw, Config{})
	c.store.MergeDevice("d1", nil)
	c.store.SetAutoReplyEnabled("d1", true)
	c.store.SetAutoReplyMessage("d1", "away")

	c.maybeAutoReply(context.Background(), "d1", "+1555")

	rec, _ := c.store.Device("d1")
	if rec.SentCount != 0 {
		t.Errorf("SentCount = %d, want 0 after failed send", rec.SentCount)
	}

	// The reservation must be rolled back so the next message retries.
	gw.mu.Lock()
	gw.sendErr = nil
	gw.mu.Unlock()

	c.maybeAutoReply(context.Background(), "d1", "+1555")
	if len(gw.sends()) != 1 {
		t.Error("auto-reply should retry after a rolled-back failure")
	}
}

func TestPollOnce_MessageWithoutIDNotCounted(t *testing.T) {
	gw := &fakeGateway{
		devices: []map[string]any{{"_id": "d1"}},
		messages: map[string][]map[string]any{
			"d1": {{"sender": "+1555", "message": "no id here"}},
		},
	}
	c := newTestCoordinator(gw, Config{})

	// Without a resolvable message id there is nothing to dedup on, so
	// repeated cycles over the same payload must not inflate counters.
	for i := 0; i < 3; i++ {
		if err := c.pollOnce(context.Background()); err != nil {
			t.Fatalf("pollOnce() error = %v", err)
		}
	}

	rec, _ := c.store.Device("d1")
	if rec.ReceivedCount != 0 {
		t.Errorf("ReceivedCount = %d, want 0 for an id-less message", rec.ReceivedCount)
	}
	if c.store.Snapshot().TotalReceived != 0 {
		t.Errorf("TotalReceived = %d, want 0", c.store.Snapshot().TotalReceived)
	}
	if rec.NewMessagePulse {
		t.Error("pulse should not rise for an id-less message")
	}
	if rec.LastMessage == nil {
		t.Error("payload should still be refreshed")
	}
	if len(gw.sends()) != 0 {
		t.Error("auto-reply should not fire for an id-less message")
	}
	c.Wait()
}

func TestHandleWebhook_AutoReplyOutlivesRequest(t *testing.T) {
	gw := &fakeGateway{}
	c := newTestCoordinator(gw, Config{})
	c.store.MergeDevice("d1", nil)
	c.store.SetAutoReplyEnabled("d1", true)
	c.store.SetAutoReplyMessage("d1", "away")

	// The request context dies as soon as the HTTP handler returns;
	// the reply must still go out.
	reqCtx, cancel := context.WithCancel(context.Background())
	err := c.HandleWebhook(reqCtx, map[string]any{
		"deviceId": "d1",
		"data":     map[string]any{"_id": "m1", "sender": "+1555", "message": "hi"},
	})
	cancel()
	if err != nil {
		t.Fatalf("HandleWebhook() error = %v", err)
	}
	c.Wait()

	sends := gw.sends()
	if len(sends) != 1 {
		t.Fatalf("got %d sends, want 1 after request cancellation", len(sends))
	}
	if sends[0].recipients[0] != "+1555" || sends[0].message != "away" {
		t.Errorf("send = %+v", sends[0])
	}

	rec, _ := c.store.Device("d1")
	if rec.SentCount != 1 {
		t.Errorf("SentCount = %d, want 1", rec.SentCount)
	}
}

func TestPulse_StaleClearCallbackIgnored(t *testing.T) {
	gw := &fakeGateway{}
	c := newTestCoordinator(gw, Config{PulseClearDelay: time.Hour})
	c.store.MergeDevice("d1", nil)
	defer c.StopPulseTimers()

	c.store.Ingest("d1", map[string]any{"_id": "m1"}, "")
	c.schedulePulseClear("d1")
	c.store.Ingest("d1", map[string]any{"_id": "m2"}, "")
	c.schedulePulseClear("d1")

	// A replaced timer that fired before Stop caught it runs with a
	// stale generation and must leave the pulse and the current timer
	// entry alone.
	c.clearPulseIfCurrent("d1", 1)

	rec, _ := c.store.Device("d1")
	if !rec.NewMessagePulse {
		t.Fatal("stale callback must not clear the pulse")
	}
	c.pulseMu.Lock()
	_, present := c.pulseTimers["d1"]
	c.pulseMu.Unlock()
	if !present {
		t.Fatal("stale callback must not delete the current timer entry")
	}

	// The current generation clears normally.
	c.clearPulseIfCurrent("d1", 2)
	rec, _ = c.store.Device("d1")
	if rec.NewMessagePulse {
		t.Error("current callback should clear the pulse")
	}
	c.pulseMu.Lock()
	_, present = c.pulseTimers["d1"]
	c.pulseMu.Unlock()
	if present {
		t.Error("current callback should remove its timer entry")
	}
	c.Wait()
}

func TestMaybeAutoReply_Disabled(t *testing.T) {
	gw := &fakeGateway{}
	c := newTestCoordinator(gw, Config{})
	c.store.MergeDevice("d1", nil)

	c.maybeAutoReply(context.Background(), "d1", "+1555")
	if len(gw.sends()) != 0 {
		t.Error("auto-reply should not fire when disabled")
	}
}
