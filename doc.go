// Package statuslight drives a two-channel signal light (red and yellow)
// from a presence label such as "Busy" or "Away".
//
// A [Light] runs two independent periodic tasks. The refresh task reads the
// current label from a [StatusSource] into an in-memory configuration. The
// sync task probes the device and, if it answers, maps the label to a
// [State] and writes both channels over HTTP.
//
// # Quick Start
//
//	src, _ := statuslight.HTTPStatusSource("http://presence.local/me",
//	    statuslight.WithLabelExtractor(statuslight.JSONField("availability")),
//	)
//	light, _ := statuslight.New(
//	    statuslight.WithDeviceURL("http://10.0.0.30"),
//	    statuslight.WithStatusSource(src),
//	)
//
//	// Set up graceful shutdown on SIGINT/SIGTERM
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	light.Start(ctx) // blocks until context is cancelled
//
// # Status Mapping
//
// Labels map to signals through a fixed table:
//
//   - "Busy", "Do not disturb": red on, yellow off
//   - "Away", "Appear away", "Be right back": red off, yellow on
//   - "Available": both off
//
// Any other label, including "", produces no signal and no device writes.
// [WithOverrides] reassigns labels to categories ahead of the table.
//
// # Status Sources
//
//   - [StaticStatus]: a fixed label
//   - [HTTPStatusSource]: polls a URL and extracts the label with a [LabelExtractor]
//   - [NewMQTTStatusSource]: the latest payload on an MQTT topic
//   - [StatusSourceFunc]: any function
//
// Without a source the label is pushed with [Light.SetStatus] or through the
// HTTP API enabled by [WithListenAddr].
//
// # Architecture
//
// The Light consists of several internal packages (under internal/):
//
//   - internal/signal: label to signal mapping
//   - internal/device: HTTP client for the light
//   - internal/source: HTTP, MQTT and static status sources
//   - internal/store: in-memory configuration with pub/sub
//   - internal/poller: the sync and refresh tasks
//   - internal/metrics: Prometheus collectors
//   - internal/server: HTTP API with Server-Sent Events
//
// The internal packages are not part of the public API and may change
// without notice.
package statuslight
