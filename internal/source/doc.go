// Package source provides the status sources that feed presence labels into
// the refresh task.
//
// Every source implements:
//
//	CurrentStatus(ctx context.Context) (string, error)
//
// The main components are:
//
//   - [HTTP]: polls a URL and pulls the label out with an [Extractor]
//   - [MQTT]: keeps the latest label published on a broker topic
//   - [Static]: a fixed label, useful for tests and manual overrides
//
// A source may return an empty label; the scheduler treats that as "no
// signal change". Errors leave the stored status untouched.
package source
