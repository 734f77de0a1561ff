package device

import "time"

// Identity is the opaque key naming one device, compared by exact match.
type Identity string

// Channel names one sensor data stream.
type Channel string

// Sensor channels accepted by IngestionService.Submit.
const (
	ChannelTemperature Channel = "temperature"
	ChannelPressure    Channel = "pressure"
	ChannelGas         Channel = "gas"
	ChannelHumidity    Channel = "humidity"
)

// AllChannels returns the sensor channels in a stable order.
func AllChannels() []Channel {
	return []Channel{ChannelTemperature, ChannelPressure, ChannelGas, ChannelHumidity}
}

// IntervalConfig is the reporting interval for one channel.
type IntervalConfig struct {
	Interval float64 `json:"interval"`
}

// GasConfig selects the gas sensor operating mode.
type GasConfig struct {
	Mode int `json:"mode"`
}

// SetupConfig is the per-device sampling configuration pushed to devices.
// The zero value is the default for devices that were never configured.
type SetupConfig struct {
	Color       IntervalConfig `json:"color"`
	Temperature IntervalConfig `json:"temperature"`
	Pressure    IntervalConfig `json:"pressure"`
	Gas         GasConfig      `json:"gas"`
	Humidity    IntervalConfig `json:"humidity"`
}

// SensorSample is one reading on one channel.
type SensorSample struct {
	Timestamp time.Time `json:"timestamp"`
	Channel   Channel   `json:"channel"`
	Value     float64   `json:"value"`
}

// ButtonEvent is the last reported button state.
type ButtonEvent struct {
	Pressed   bool       `json:"pressed"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// LEDState is the desired state of a device's LED actuator.
type LEDState struct {
	Color     int     `json:"color"`
	Intensity float64 `json:"intensity"`
	Delay     float64 `json:"delay"`
}

// Snapshot is a point-in-time copy of everything known about one device.
type Snapshot struct {
	ID          Identity                 `json:"id"`
	Setup       SetupConfig              `json:"setup"`
	Samples     map[Channel]SensorSample `json:"samples"`
	Button      ButtonEvent              `json:"button"`
	LED         LEDState                 `json:"led"`
	Subscribers int                      `json:"subscribers"`
}
