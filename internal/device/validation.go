package device

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"
)

// MaxIdentityLength is the maximum identity length in bytes.
const MaxIdentityLength = 128

// ParseIdentity checks that s can be used as a device identity in URL
// paths and MQTT topic levels.
func ParseIdentity(s string) (Identity, error) {
	if s == "" {
		return "", fmt.Errorf("%w: %w: empty", ErrValidation, ErrInvalidIdentity)
	}
	if len(s) > MaxIdentityLength {
		return "", fmt.Errorf("%w: %w: longer than %d bytes", ErrValidation, ErrInvalidIdentity, MaxIdentityLength)
	}
	if strings.ContainsAny(s, "/+#") || strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return "", fmt.Errorf("%w: %w: %q contains a reserved character", ErrValidation, ErrInvalidIdentity, s)
	}
	return Identity(s), nil
}

// ParseChannel maps a wire channel name to a Channel.
func ParseChannel(s string) (Channel, error) {
	switch c := Channel(s); c {
	case ChannelTemperature, ChannelPressure, ChannelGas, ChannelHumidity:
		return c, nil
	default:
		return "", fmt.Errorf("%w: unknown channel %q", ErrValidation, s)
	}
}

// ParseTimestamp parses an RFC 3339 / ISO-8601 instant.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: timestamp %q is not RFC 3339", ErrValidation, s)
	}
	return t, nil
}

// Validate checks that all intervals and the gas mode are non-negative and finite.
func (c SetupConfig) Validate() error {
	fields := []struct {
		name  string
		value float64
	}{
		{"color.interval", c.Color.Interval},
		{"temperature.interval", c.Temperature.Interval},
		{"pressure.interval", c.Pressure.Interval},
		{"gas.mode", float64(c.Gas.Mode)},
		{"humidity.interval", c.Humidity.Interval},
	}
	for _, f := range fields {
		if err := checkNonNegative(f.name, f.value); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks that all fields are non-negative and finite.
func (s LEDState) Validate() error {
	if err := checkNonNegative("color", float64(s.Color)); err != nil {
		return err
	}
	if err := checkNonNegative("intensity", s.Intensity); err != nil {
		return err
	}
	return checkNonNegative("delay", s.Delay)
}

// LEDUpdate is an LED write as decoded from a request or MQTT payload.
// Every field is required; a write never merges with the stored state.
type LEDUpdate struct {
	Color     *int     `json:"color"`
	Intensity *float64 `json:"intensity"`
	Delay     *float64 `json:"delay"`
}

// State returns the complete LED state, or a validation error naming the
// first missing field.
func (u LEDUpdate) State() (LEDState, error) {
	switch {
	case u.Color == nil:
		return LEDState{}, missingField("color")
	case u.Intensity == nil:
		return LEDState{}, missingField("intensity")
	case u.Delay == nil:
		return LEDState{}, missingField("delay")
	}
	return LEDState{Color: *u.Color, Intensity: *u.Intensity, Delay: *u.Delay}, nil
}

func missingField(name string) error {
	return fmt.Errorf("%w: %s is required", ErrValidation, name)
}

func checkFinite(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s must be a finite number", ErrValidation, name)
	}
	return nil
}

func checkNonNegative(name string, v float64) error {
	if err := checkFinite(name, v); err != nil {
		return err
	}
	if v < 0 {
		return fmt.Errorf("%w: %s must not be negative, got %v", ErrValidation, name, v)
	}
	return nil
}
