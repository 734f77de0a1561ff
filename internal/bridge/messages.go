package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SensorsMessage is the body devices publish on their sensors topic.
//
//	{"timestamp":"2024-01-01T00:00:00Z","sensors":{"temperature":21.5}}
type SensorsMessage struct {
	Timestamp string             `json:"timestamp"`
	Sensors   map[string]float64 `json:"sensors"`
}

// ButtonMessage is the body devices publish on their button topic.
// Pressed is a pointer so a missing field is rejected rather than read as false.
type ButtonMessage struct {
	Pressed *bool `json:"pressed"`
}

// decode unmarshals payload into v, rejecting trailing data.
func decode(payload []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(payload))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", ErrInvalidPayload)
	}
	return nil
}
