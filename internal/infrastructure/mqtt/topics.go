package mqtt

import (
	"fmt"
	"strings"
)

// DefaultTopicPrefix is the root of every gateway topic.
const DefaultTopicPrefix = "thingy"

// gatewayLevel is the reserved second level for gateway-wide topics. It
// contains no characters a device identity could not, so deployments must
// not name a device "gateway".
const gatewayLevel = "gateway"

// Topic suffixes below {prefix}/{device}/.
const (
	SuffixSensors  = "sensors"
	SuffixButton   = "sensors/button"
	SuffixLEDSet   = "actuators/led/set"
	SuffixLEDState = "actuators/led"
	SuffixSetup    = "setup"
)

// Topics builds and parses gateway topic names under a configurable prefix.
//
//	topics := mqtt.NewTopics("thingy")
//	topics.LEDState("c4:7b:1a:2f:00:01")
//	// Returns: "thingy/c4:7b:1a:2f:00:01/actuators/led"
type Topics struct {
	prefix string
}

// NewTopics returns a topic builder. An empty prefix selects DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the topic prefix.
func (t Topics) Prefix() string {
	return t.prefix
}

func (t Topics) device(id, suffix string) string {
	return fmt.Sprintf("%s/%s/%s", t.prefix, id, suffix)
}

// Sensors is where a device publishes sample batches.
func (t Topics) Sensors(id string) string { return t.device(id, SuffixSensors) }

// Button is where a device publishes button events.
func (t Topics) Button(id string) string { return t.device(id, SuffixButton) }

// LEDSet accepts LED commands from operators.
func (t Topics) LEDSet(id string) string { return t.device(id, SuffixLEDSet) }

// LEDState carries the retained current LED state.
func (t Topics) LEDState(id string) string { return t.device(id, SuffixLEDState) }

// Setup carries the retained setup configuration.
func (t Topics) Setup(id string) string { return t.device(id, SuffixSetup) }

// GatewayStatus is the retained online/offline topic, also used as the LWT.
//
// Example: thingy/gateway/status
func (t Topics) GatewayStatus() string {
	return fmt.Sprintf("%s/%s/status", t.prefix, gatewayLevel)
}

// AllSensors matches sample batches from every device.
func (t Topics) AllSensors() string { return t.device("+", SuffixSensors) }

// AllButtons matches button events from every device.
func (t Topics) AllButtons() string { return t.device("+", SuffixButton) }

// AllLEDSet matches LED commands for every device.
func (t Topics) AllLEDSet() string { return t.device("+", SuffixLEDSet) }

// ParseDevice splits a concrete device topic into the device identity and
// the suffix after it. ok is false for topics outside the prefix or for
// gateway-wide topics.
func (t Topics) ParseDevice(topic string) (id, suffix string, ok bool) {
	rest, found := strings.CutPrefix(topic, t.prefix+"/")
	if !found {
		return "", "", false
	}
	id, suffix, found = strings.Cut(rest, "/")
	if !found || id == "" || suffix == "" || id == gatewayLevel {
		return "", "", false
	}
	return id, suffix, true
}
