package coordinator

import (
	"testing"
	"time"
)

func TestParseMessageTime(t *testing.T) {
	tests := []struct {
		name string
		msg  map[string]any
		want time.Time
		ok   bool
	}{
		{
			"rfc3339",
			map[string]any{"receivedAt": "2026-08-23T10:00:00Z"},
			time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC),
			true,
		},
		{
			"rfc3339 nano",
			map[string]any{"createdAt": "2026-08-23T10:00:00.500Z"},
			time.Date(2026, 8, 23, 10, 0, 0, 500000000, time.UTC),
			true,
		},
		{
			"no timezone",
			map[string]any{"sentAt": "2026-08-23T10:00:00"},
			time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC),
			true,
		},
		{
			"epoch seconds",
			map[string]any{"receivedAt": float64(1787652000)},
			time.Unix(1787652000, 0),
			true,
		},
		{
			"epoch milliseconds",
			map[string]any{"receivedAt": float64(1787652000000)},
			time.UnixMilli(1787652000000),
			true,
		},
		{
			"receivedAt beats createdAt",
			map[string]any{
				"createdAt":  "2026-08-23T09:00:00Z",
				"receivedAt": "2026-08-23T10:00:00Z",
			},
			time.Date(2026, 8, 23, 10, 0, 0, 0, time.UTC),
			true,
		},
		{"garbage", map[string]any{"receivedAt": "not a time"}, time.Time{}, false},
		{"missing", map[string]any{"other": "x"}, time.Time{}, false},
		{"empty string", map[string]any{"receivedAt": ""}, time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseMessageTime(tt.msg)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("time = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLatestMessage(t *testing.T) {
	older := map[string]any{"_id": "old", "receivedAt": "2026-08-23T09:00:00Z"}
	newer := map[string]any{"_id": "new", "receivedAt": "2026-08-23T10:00:00Z"}
	unparseable := map[string]any{"_id": "bad", "receivedAt": "???"}

	tests := []struct {
		name string
		msgs []map[string]any
		want string
	}{
		{"empty", nil, ""},
		{"newest wins", []map[string]any{older, newer}, "new"},
		{"order independent", []map[string]any{newer, older}, "new"},
		{"unparseable ranks oldest", []map[string]any{unparseable, older}, "old"},
		{"all unparseable keeps first", []map[string]any{unparseable, {"_id": "bad2"}}, "bad"},
		{
			"tie keeps earlier element",
			[]map[string]any{
				{"_id": "first", "receivedAt": "2026-08-23T10:00:00Z"},
				{"_id": "second", "receivedAt": "2026-08-23T10:00:00Z"},
			},
			"first",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := latestMessage(tt.msgs)
			if tt.want == "" {
				if got != nil {
					t.Errorf("latestMessage() = %v, want nil", got)
				}
				return
			}
			if got == nil || got["_id"] != tt.want {
				t.Errorf("latestMessage() = %v, want _id=%s", got, tt.want)
			}
		})
	}
}
