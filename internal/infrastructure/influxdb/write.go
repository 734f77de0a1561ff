package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/thingy-gateway/internal/device"
)

// Measurement names.
const (
	MeasurementSensors = "thingy_sensors"
	MeasurementButton  = "thingy_button"
)

// SamplesRecorded queues one point per sample, tagged with device and
// channel, at the timestamp the device reported.
func (c *Client) SamplesRecorded(id device.Identity, samples []device.SensorSample) {
	if !c.IsConnected() {
		return
	}

	for _, s := range samples {
		c.writeAPI.WritePoint(SamplePoint(id, s))
	}
}

// ButtonChanged queues a button event point.
func (c *Client) ButtonChanged(id device.Identity, ev device.ButtonEvent) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(ButtonPoint(id, ev))
}

// SamplePoint converts a sensor sample to an InfluxDB point.
//
// Example line protocol:
//
//	thingy_sensors,channel=temperature,device_id=d1 value=21.5 1704067200000000000
func SamplePoint(id device.Identity, s device.SensorSample) *write.Point {
	return write.NewPoint(
		MeasurementSensors,
		map[string]string{
			"device_id": string(id),
			"channel":   string(s.Channel),
		},
		map[string]interface{}{
			"value": s.Value,
		},
		s.Timestamp,
	)
}

// ButtonPoint converts a button event to an InfluxDB point.
func ButtonPoint(id device.Identity, ev device.ButtonEvent) *write.Point {
	ts := time.Now()
	if ev.UpdatedAt != nil {
		ts = *ev.UpdatedAt
	}
	return write.NewPoint(
		MeasurementButton,
		map[string]string{"device_id": string(id)},
		map[string]interface{}{"pressed": ev.Pressed},
		ts,
	)
}
