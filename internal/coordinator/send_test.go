package coordinator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func TestSendMessage(t *testing.T) {
	gw := &fakeGateway{}
	c := newTestCoordinator(gw, Config{})
	c.store.MergeDevice("d1", nil)

	got, err := c.SendMessage(context.Background(), SendRequest{
		DeviceID:   "d1",
		Recipients: []string{" +1555 ", "", "+1666"},
		Message:    "hello",
	})
	if err != nil {
		t.Fatalf("SendMessage() error = %v", err)
	}
	if got != "d1" {
		t.Errorf("device = %q, want d1", got)
	}

	sends := gw.sends()
	if len(sends) != 1 {
		t.Fatalf("got %d sends, want 1", len(sends))
	}
	if len(sends[0].recipients) != 2 || sends[0].recipients[0] != "+1555" {
		t.Errorf("recipients should be trimmed and blanks dropped: %v", sends[0].recipients)
	}

	rec, _ := c.store.Device("d1")
	if rec.SentCount != 1 {
		t.Errorf("SentCount = %d, want 1", rec.SentCount)
	}
	if rec.LastOutgoingText != "hello" {
		t.Errorf("LastOutgoingText = %q", rec.LastOutgoingText)
	}
}

func TestSendMessage_FallbackChain(t *testing.T) {
	t.Run("configured default", func(t *testing.T) {
		gw := &fakeGateway{}
		c := newTestCoordinator(gw, Config{DefaultDeviceID: "d-default"})
		c.store.MergeDevice("d1", nil)

		if _, err := c.SendMessage(context.Background(), SendRequest{
			Recipients: []string{"+1555"},
			Message:    "hi",
		}); err != nil {
			t.Fatalf("SendMessage() error = %v", err)
		}
		if gw.sends()[0].deviceID != "d-default" {
			t.Errorf("sent via %q, want d-default", gw.sends()[0].deviceID)
		}
	})

	t.Run("first-registered device", func(t *testing.T) {
		gw := &fakeGateway{}
		c := newTestCoordinator(gw, Config{})
		c.store.MergeDevice("d2", nil)
		c.store.MergeDevice("d1", nil)

		if _, err := c.SendMessage(context.Background(), SendRequest{
			Recipients: []string{"+1555"},
			Message:    "hi",
		}); err != nil {
			t.Fatalf("SendMessage() error = %v", err)
		}
		if gw.sends()[0].deviceID != "d2" {
			t.Errorf("sent via %q, want first-registered d2", gw.sends()[0].deviceID)
		}
	})

	t.Run("no device at all", func(t *testing.T) {
		c := newTestCoordinator(&fakeGateway{}, Config{})
		_, err := c.SendMessage(context.Background(), SendRequest{
			Recipients: []string{"+1555"},
			Message:    "hi",
		})
		if !errors.Is(err, ErrNoDevice) {
			t.Errorf("error = %v, want ErrNoDevice", err)
		}
	})
}

func TestSendMessage_Validation(t *testing.T) {
	c := newTestCoordinator(&fakeGateway{}, Config{})
	c.store.MergeDevice("d1", nil)

	_, err := c.SendMessage(context.Background(), SendRequest{
		DeviceID:   "d1",
		Recipients: []string{"  ", ""},
		Message:    "hi",
	})
	if !errors.Is(err, ErrNoRecipients) {
		t.Errorf("error = %v, want ErrNoRecipients", err)
	}

	_, err = c.SendMessage(context.Background(), SendRequest{
		DeviceID:   "d1",
		Recipients: []string{"+1555"},
		Message:    "   ",
	})
	if !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("error = %v, want ErrEmptyMessage", err)
	}
}

func TestSendMessage_GatewayFailureDoesNotCount(t *testing.T) {
	gw := &fakeGateway{sendErr: errors.New("down")}
	c := newTestCoordinator(gw, Config{})
	c.store.MergeDevice("d1", nil)

	_, err := c.SendMessage(context.Background(), SendRequest{
		DeviceID:   "d1",
		Recipients: []string{"+1555"},
		Message:    "hi",
	})
	if err == nil {
		t.Fatal("SendMessage() should propagate the gateway failure")
	}

	rec, _ := c.store.Device("d1")
	if rec.SentCount != 0 {
		t.Errorf("SentCount = %d, want 0", rec.SentCount)
	}
}

func TestStringList_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		json string
		want []string
	}{
		{"list form", `["+1555","+1666"]`, []string{"+1555", "+1666"}},
		{"single string", `"+1555"`, []string{"+1555"}},
		{"comma separated", `"+1555,+1666"`, []string{"+1555", "+1666"}},
		{"semicolon separated", `"+1555;+1666"`, []string{"+1555", "+1666"}},
		{"mixed separators with spaces", `"+1555, +1666; +1777"`, []string{"+1555", " +1666", " +1777"}},
		{"empty string", `""`, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got StringList
			if err := json.Unmarshal([]byte(tt.json), &got); err != nil {
				t.Fatalf("Unmarshal(%s) error = %v", tt.json, err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("got[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}

	var got StringList
	if err := json.Unmarshal([]byte(`42`), &got); err == nil {
		t.Error("non-string, non-list value should be rejected")
	}
}

func TestHandleSendCommand_PackedRecipients(t *testing.T) {
	gw := &fakeGateway{}
	c := newTestCoordinator(gw, Config{})
	c.store.MergeDevice("d1", nil)

	payload := []byte(`{"device_id":"d1","recipients":"+1555, +1666;+1777","message":"hi"}`)
	if err := c.HandleSendCommand(context.Background(), payload); err != nil {
		t.Fatalf("HandleSendCommand() error = %v", err)
	}

	sends := gw.sends()
	if len(sends) != 1 {
		t.Fatalf("got %d sends, want 1", len(sends))
	}
	want := []string{"+1555", "+1666", "+1777"}
	if len(sends[0].recipients) != 3 {
		t.Fatalf("recipients = %v, want %v", sends[0].recipients, want)
	}
	for i, r := range sends[0].recipients {
		if r != want[i] {
			t.Errorf("recipients[%d] = %q, want %q", i, r, want[i])
		}
	}
}

func TestHandleSendCommand(t *testing.T) {
	gw := &fakeGateway{}
	c := newTestCoordinator(gw, Config{})
	c.store.MergeDevice("d1", nil)

	payload := []byte(`{"device_id":"d1","recipients":["+1555"],"message":"from mqtt"}`)
	if err := c.HandleSendCommand(context.Background(), payload); err != nil {
		t.Fatalf("HandleSendCommand() error = %v", err)
	}
	if len(gw.sends()) != 1 || gw.sends()[0].message != "from mqtt" {
		t.Errorf("sends = %+v", gw.sends())
	}

	if err := c.HandleSendCommand(context.Background(), []byte("{not json")); err == nil {
		t.Error("malformed payload should be rejected")
	}
}
