// Package device holds the per-device state of Thingy Gateway.
//
// Every device is identified by an opaque Identity (usually the Thingy's
// MAC address). The Registry maps identities to Records, creating a record
// with default state the first time an identity is referenced. A Record
// carries the device's setup configuration, last-known sensor samples,
// button state, LED actuator state and the set of live LED subscribers,
// all guarded by a single mutex.
//
// # Architecture
//
//	┌──────────────────────────────────────────────────────────────────┐
//	│                            Registry                              │
//	│   Identity ──▶ *Record{setup, samples, button, led, subscribers} │
//	└──────────────────────────────────────────────────────────────────┘
//	      ▲               ▲                 ▲                 ▲
//	┌─────┴──────┐ ┌──────┴──────────┐ ┌────┴──────────────┐ ┌┴───────────┐
//	│ConfigStore │ │IngestionService │ │ActuatorController │ │Broadcaster │
//	│ (setup.go) │ │  (ingest.go)    │ │  (actuator.go)    │ │(broadcast) │
//	└────────────┘ └─────────────────┘ └───────────────────┘ └────────────┘
//
// Side effects such as MQTT publishing, InfluxDB export and SQLite
// persistence are attached as Observers. Observers are called after the
// record lock has been released and must not block.
//
// # Usage
//
//	reg := device.NewRegistry()
//	setups := device.NewConfigStore(reg)
//	ingest := device.NewIngestionService(reg)
//	leds := device.NewActuatorController(reg)
//	streams := device.NewBroadcaster(leds, cfg.Stream.QueueSize)
//
//	_ = leds.SetLED("d1", device.LEDState{Color: 5, Intensity: 10})
//	sub, current := streams.Subscribe("d1")
//	defer sub.Close()
//
// # Thread Safety
//
// All exported types are safe for concurrent use. Writes to one device
// never wait on another device, and LED writes never wait on subscribers.
package device
