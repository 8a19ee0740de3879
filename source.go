package statuslight

import (
	"context"
	"log/slog"
	"time"

	"github.com/jpalmerr/statuslight/internal/source"
)

// StatusSource reports the current presence label.
//
// CurrentStatus is called once per refresh tick. Returning an error leaves
// the previous label in place; returning "" clears the signal.
type StatusSource interface {
	CurrentStatus(ctx context.Context) (string, error)
}

// StatusSourceFunc adapts a function to [StatusSource].
type StatusSourceFunc func(ctx context.Context) (string, error)

// CurrentStatus calls f.
func (f StatusSourceFunc) CurrentStatus(ctx context.Context) (string, error) {
	return f(ctx)
}

// StaticStatus returns a source that always reports label.
func StaticStatus(label string) StatusSource {
	return source.Static(label)
}

// ErrNoStatus is returned by push-style sources, such as MQTT, before the
// first label arrives.
var ErrNoStatus = source.ErrNoStatus

// LabelExtractor pulls a presence label out of a response body.
type LabelExtractor = source.Extractor

// JSONField extracts a field using dot notation, e.g. "presence.availability".
func JSONField(path string) LabelExtractor {
	return source.JSONField(path)
}

// RegexLabel extracts the first capture group of pattern.
func RegexLabel(pattern string) (LabelExtractor, error) {
	return source.Regex(pattern)
}

// TextLabel uses the whole trimmed body as the label.
func TextLabel() LabelExtractor {
	return source.Text()
}

// FirstLabel tries extractors in order and returns the first non-empty label.
func FirstLabel(extractors ...LabelExtractor) LabelExtractor {
	return source.FirstMatch(extractors...)
}

// ParseLabelExtractor parses the shorthand used in configuration files:
// "default", "text", "json:path" or "regex:pattern".
func ParseLabelExtractor(s string) (LabelExtractor, error) {
	return source.ParseExtractor(s)
}

// HTTPSourceOption configures [HTTPStatusSource].
type HTTPSourceOption = source.HTTPOption

// WithSourceHeaders adds request headers as key-value pairs.
func WithSourceHeaders(keyValues ...string) HTTPSourceOption {
	return source.WithHeaders(keyValues...)
}

// WithSourceTimeout sets the per-request timeout. Defaults to 5 seconds.
func WithSourceTimeout(d time.Duration) HTTPSourceOption {
	return source.WithTimeout(d)
}

// WithLabelExtractor sets how the label is read from the response body.
// Defaults to a JSON "status" field, then "availability", then the raw text.
func WithLabelExtractor(e LabelExtractor) HTTPSourceOption {
	return source.WithExtractor(e)
}

// HTTPStatusSource polls rawURL with GET on every refresh tick.
// Non-2xx responses are errors.
func HTTPStatusSource(rawURL string, opts ...HTTPSourceOption) (StatusSource, error) {
	src, err := source.NewHTTP(rawURL, opts...)
	if err != nil {
		return nil, err
	}
	return src, nil
}

// MQTTConfig configures [NewMQTTStatusSource].
type MQTTConfig = source.MQTTConfig

// MQTTStatusSource keeps the latest label published on an MQTT topic.
// Call Close when done.
type MQTTStatusSource = source.MQTT

// NewMQTTStatusSource connects to the broker and subscribes to the topic.
func NewMQTTStatusSource(cfg MQTTConfig, logger *slog.Logger) (*MQTTStatusSource, error) {
	return source.NewMQTT(cfg, logger)
}
