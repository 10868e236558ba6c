package mqtt

import "testing"

func TestTopics_Builders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"device state", topics.DeviceState("dev-01"), "smsbridge/state/dev-01"},
		{"event", topics.Event("message_received"), "smsbridge/event/message_received"},
		{"command send", topics.CommandSend(), "smsbridge/command/send"},
		{"system status", topics.SystemStatus(), "smsbridge/system/status"},
		{"all events", topics.AllEvents(), "smsbridge/event/+"},
		{"all topics", topics.AllTopics(), "smsbridge/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}
