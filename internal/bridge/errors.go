package bridge

import "errors"

// Domain-specific errors for the MQTT bridge.
var (
	// ErrUnknownTopic is returned for messages on topics the bridge does not handle.
	ErrUnknownTopic = errors.New("bridge: unknown topic")

	// ErrInvalidPayload is returned when a message body cannot be decoded.
	ErrInvalidPayload = errors.New("bridge: invalid payload")
)
