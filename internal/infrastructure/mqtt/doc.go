// Package mqtt provides MQTT client connectivity for SMS Bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// MQTT is the optional integration bus: the bridge publishes message and
// snapshot events for home-automation consumers, and accepts a send command
// so automations can deliver SMS without touching the HTTP API.
//
//	SMS Bridge ↔ MQTT Broker ↔ Automation Consumers
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to send commands from automations
//	err = client.Subscribe(mqtt.Topics{}.CommandSend(), 1,
//	    func(topic string, payload []byte) error {
//	        return handleSend(payload)
//	    })
//
//	// Publish a message event
//	topic := mqtt.Topics{}.Event("message_received")
//	client.Publish(topic, payload, 1, false)
package mqtt
