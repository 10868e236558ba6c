package mqtt

import "fmt"

// Topic prefixes for the SMS Bridge MQTT namespace.
//
// All topics use the flat scheme: smsbridge/{category}/{id}
const (
	// TopicPrefix is the base for all SMS Bridge topics.
	TopicPrefix = "smsbridge"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "smsbridge/system"
)

// Topics provides builders for SMS Bridge MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DeviceState("dev-01")
//	// Returns: "smsbridge/state/dev-01"
type Topics struct{}

// DeviceState returns the retained per-device state topic.
//
// Example: smsbridge/state/dev-01
func (Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/state/%s", TopicPrefix, deviceID)
}

// Event returns the topic for bridge events.
//
// Example: smsbridge/event/message_received
func (Topics) Event(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefix, eventType)
}

// CommandSend returns the topic automations publish send requests to.
//
// Example: smsbridge/command/send
func (Topics) CommandSend() string {
	return fmt.Sprintf("%s/command/send", TopicPrefix)
}

// SystemStatus returns the system status topic (online/offline, LWT).
//
// Example: smsbridge/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllEvents returns a pattern matching all bridge events.
//
// Pattern: smsbridge/event/+
func (Topics) AllEvents() string {
	return fmt.Sprintf("%s/event/+", TopicPrefix)
}

// AllTopics returns a pattern matching all SMS Bridge topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: smsbridge/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}
