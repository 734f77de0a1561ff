package device

import (
	"errors"
	"math"
	"strings"
	"testing"
)

func TestParseIdentity(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"mac address", "c4:7b:1a:2f:00:01", false},
		{"simple", "d1", false},
		{"max length", strings.Repeat("a", MaxIdentityLength), false},
		{"empty", "", true},
		{"too long", strings.Repeat("a", MaxIdentityLength+1), true},
		{"slash", "a/b", true},
		{"plus wildcard", "a+", true},
		{"hash wildcard", "#", true},
		{"space", "a b", true},
		{"tab", "a\tb", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ParseIdentity(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseIdentity(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err != nil {
				if !IsValidation(err) || !errors.Is(err, ErrInvalidIdentity) {
					t.Errorf("error %v should wrap ErrValidation and ErrInvalidIdentity", err)
				}
				return
			}
			if string(id) != tt.input {
				t.Errorf("ParseIdentity(%q) = %q", tt.input, id)
			}
		})
	}
}

func TestParseChannel(t *testing.T) {
	for _, ch := range AllChannels() {
		got, err := ParseChannel(string(ch))
		if err != nil || got != ch {
			t.Errorf("ParseChannel(%q) = %q, %v", ch, got, err)
		}
	}

	for _, bad := range []string{"", "color", "button", "led", "Temperature"} {
		if _, err := ParseChannel(bad); !IsValidation(err) {
			t.Errorf("ParseChannel(%q) error = %v, want validation error", bad, err)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	valid := []string{
		"2024-01-01T00:00:00Z",
		"2024-01-01T00:00:00.123Z",
		"2024-06-30T12:34:56+02:00",
	}
	for _, ts := range valid {
		if _, err := ParseTimestamp(ts); err != nil {
			t.Errorf("ParseTimestamp(%q) error = %v", ts, err)
		}
	}

	invalid := []string{"", "yesterday", "2024-01-01", "1704067200"}
	for _, ts := range invalid {
		if _, err := ParseTimestamp(ts); !IsValidation(err) {
			t.Errorf("ParseTimestamp(%q) error = %v, want validation error", ts, err)
		}
	}
}

func TestSetupConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SetupConfig
		wantErr bool
	}{
		{"zero", SetupConfig{}, false},
		{"all set", SetupConfig{
			Color:       IntervalConfig{Interval: 1},
			Temperature: IntervalConfig{Interval: 2},
			Pressure:    IntervalConfig{Interval: 3},
			Gas:         GasConfig{Mode: 2},
			Humidity:    IntervalConfig{Interval: 4.5},
		}, false},
		{"negative color", SetupConfig{Color: IntervalConfig{Interval: -1}}, true},
		{"negative temperature", SetupConfig{Temperature: IntervalConfig{Interval: -0.1}}, true},
		{"negative pressure", SetupConfig{Pressure: IntervalConfig{Interval: -5}}, true},
		{"negative gas mode", SetupConfig{Gas: GasConfig{Mode: -1}}, true},
		{"negative humidity", SetupConfig{Humidity: IntervalConfig{Interval: -2}}, true},
		{"NaN interval", SetupConfig{Humidity: IntervalConfig{Interval: math.NaN()}}, true},
		{"infinite interval", SetupConfig{Color: IntervalConfig{Interval: math.Inf(1)}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !IsValidation(err) {
				t.Errorf("Validate() error %v does not wrap ErrValidation", err)
			}
		})
	}
}

func TestLEDState_Validate(t *testing.T) {
	tests := []struct {
		name    string
		state   LEDState
		wantErr bool
	}{
		{"zero", LEDState{}, false},
		{"typical", LEDState{Color: 5, Intensity: 10, Delay: 0.5}, false},
		{"negative color", LEDState{Color: -1}, true},
		{"negative intensity", LEDState{Intensity: -1}, true},
		{"negative delay", LEDState{Delay: -0.01}, true},
		{"NaN intensity", LEDState{Intensity: math.NaN()}, true},
		{"infinite delay", LEDState{Delay: math.Inf(1)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.state.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLEDUpdate_State(t *testing.T) {
	color, intensity, delay := 5, 10.0, 0.5

	got, err := LEDUpdate{Color: &color, Intensity: &intensity, Delay: &delay}.State()
	if err != nil {
		t.Fatalf("State() error = %v", err)
	}
	if want := (LEDState{Color: 5, Intensity: 10, Delay: 0.5}); got != want {
		t.Errorf("State() = %+v, want %+v", got, want)
	}

	tests := []struct {
		name    string
		update  LEDUpdate
		missing string
	}{
		{"empty", LEDUpdate{}, "color"},
		{"no intensity", LEDUpdate{Color: &color, Delay: &delay}, "intensity"},
		{"no delay", LEDUpdate{Color: &color, Intensity: &intensity}, "delay"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.update.State()
			if !IsValidation(err) {
				t.Fatalf("State() error = %v, want validation error", err)
			}
			if !strings.Contains(err.Error(), tt.missing) {
				t.Errorf("State() error = %v, want mention of %s", err, tt.missing)
			}
		})
	}
}
