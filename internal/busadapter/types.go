// Package busadapter wraps the MQTT broker connection that device
// telemetry arrives over: subscription management, a
// back-pressured message stream, and reconnect with capped backoff.
package busadapter

import "time"

// InboundMessage is a single broker delivery, handed to a pipeline
// unparsed; the Payload Decoder gives it meaning.
type InboundMessage struct {
	Topic      string
	Payload    []byte
	ReceivedAt time.Time
}

// Topics is the closed set of device topics, across all three families.
var Topics = []string{
	"ESP32_BLE_GW_TX",
	"dusun_pub",
	"CM4_BLE_GW_TX",
	"iMEDE_watch/VitalSign",
	"iMEDE_watch/AP55",
	"iMEDE_watch/hb",
	"iMEDE_watch/location",
	"iMEDE_watch/sleepdata",
	"iMEDE_watch/SOS",
	"iMEDE_watch/sos",
	"iMEDE_watch/fallDown",
	"iMEDE_watch/onlineTrigger",
}
