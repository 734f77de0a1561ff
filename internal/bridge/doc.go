// Package bridge connects Thingy devices on MQTT to the device core.
//
// Uplink, the bridge subscribes to every device's sensor, button and LED
// command topics and feeds them into the IngestionService and the
// ActuatorController with the same validation the HTTP API applies.
//
// Downlink, the bridge is a device.Observer: every accepted setup or LED
// change is published retained to the device's state topic so devices and
// late subscribers always see the current value.
//
//	thingy/{id}/sensors            → IngestionService.Submit
//	thingy/{id}/sensors/button     → IngestionService.SubmitButton
//	thingy/{id}/actuators/led/set  → ActuatorController.SetLED
//	SetupChanged                   → thingy/{id}/setup (retained)
//	LEDChanged                     → thingy/{id}/actuators/led (retained)
//
// Downlink publishes go through a coalescing outbox drained by one
// goroutine, so observer callbacks never wait on the broker and a burst of
// LED changes for one device collapses to its latest state.
package bridge
