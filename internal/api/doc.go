// Package api implements the HTTP API of Thingy Gateway.
//
// This package provides:
//   - REST endpoints for device setup, sensor samples, button state and LED state
//   - A Server-Sent Events stream of LED state per device
//   - A WebSocket stream of the same LED state for clients that prefer it
//   - Middleware stack (request ID, logging, recovery, CORS, body limit)
//   - Health and metrics endpoints
//
// # Routes
//
// Everything device-specific lives under /api/v1/things/{id}. Identities are
// validated here; an unknown but well-formed identity behaves as a freshly
// provisioned device, so there is no 404 for devices.
//
// # Streaming
//
// GET /api/v1/things/{id}/actuators/led with "Accept: text/event-stream"
// subscribes to the device's LED state. The first event is the current
// state; later events follow every accepted change, latest-wins for slow
// readers. Streams end when the client disconnects or the server closes.
package api
