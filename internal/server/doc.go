// Package server provides the optional HTTP API for a running light.
//
// The API covers what the browser extension's options page and popup used
// to do:
//
//   - State: GET /api/state returns the configuration and derived signal
//   - Push: PUT /api/status sets the presence label directly
//   - Settings: PATCH /api/config merges device and mapping settings
//   - Server-Sent Events: GET /api/sse streams configuration changes
//
// Plus GET /healthz and, when a metrics registry is supplied, GET /metrics.
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
package server
