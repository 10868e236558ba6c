package store

import "fmt"

// Vendor payloads use inconsistent field names across API versions and
// the webhook path. Each resolver checks its aliases in priority order
// and takes the first usable value.

var (
	deviceIDKeys  = []string{"id", "_id", "deviceId"}
	nameKeys      = []string{"name", "label", "deviceName"}
	phoneKeys     = []string{"phoneNumber", "phone_number", "msisdn", "phone"}
	makerKeys     = []string{"manufacturer", "brand", "oem"}
	modelKeys     = []string{"model", "deviceModel", "device_model"}
	signalKeys    = []string{"signal_strength", "signalStrength", "signal", "signal_level"}
	batteryKeys   = []string{"batteryLevel", "battery", "battery_percentage", "batteryPct", "battery_percent"}
	registeredAts = []string{"registeredAt", "createdAt", "lastSeen"}
	statusKeys    = []string{"status", "state"}

	messageIDKeys = []string{"_id", "id", "smsId"}
	senderKeys    = []string{"sender", "from", "senderNumber", "phoneNumber"}
	bodyKeys      = []string{"message", "body"}

	webhookDeviceKeys = []string{"deviceId", "device_id", "device", "gatewayId"}
)

// firstString returns the first non-empty string among the keys.
// Non-string values are stringified so numeric IDs still resolve.
func firstString(m map[string]any, keys []string) string {
	for _, key := range keys {
		v, ok := m[key]
		if !ok || v == nil {
			continue
		}
		switch s := v.(type) {
		case string:
			if s != "" {
				return s
			}
		case float64, int, int64, bool:
			return fmt.Sprintf("%v", s)
		}
	}
	return ""
}

// firstNumber returns the first numeric value among the keys.
// JSON decoding yields float64; int variants cover hand-built test maps.
func firstNumber(m map[string]any, keys []string) (float64, bool) {
	for _, key := range keys {
		v, ok := m[key]
		if !ok {
			continue
		}
		switch n := v.(type) {
		case float64:
			return n, true
		case int:
			return float64(n), true
		case int64:
			return float64(n), true
		}
	}
	return 0, false
}

// DeviceID resolves a device's identifier from a vendor device payload.
func DeviceID(device map[string]any) string {
	return firstString(device, deviceIDKeys)
}

// MessageID resolves a message's identifier from a vendor message payload.
func MessageID(msg map[string]any) string {
	return firstString(msg, messageIDKeys)
}

// Sender resolves the sending phone number from a message payload.
func Sender(msg map[string]any) string {
	return firstString(msg, senderKeys)
}

// Body resolves the text body from a message payload.
func Body(msg map[string]any) string {
	return firstString(msg, bodyKeys)
}

// WebhookDeviceID resolves the device identifier from a webhook envelope.
func WebhookDeviceID(payload map[string]any) string {
	return firstString(payload, webhookDeviceKeys)
}

// signalToBars buckets a raw signal reading (0-100 scale) into 0-4 bars.
func signalToBars(v float64) int {
	switch {
	case v <= 0:
		return 0
	case v < 25:
		return 1
	case v < 50:
		return 2
	case v < 75:
		return 3
	default:
		return 4
	}
}
