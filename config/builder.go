package config

import (
	"log/slog"
	"sort"

	"github.com/jpalmerr/statuslight"
)

// BuildOptions converts parsed configuration into SDK options.
//
// The status source is not included; build it with [BuildSource] so the
// caller controls its lifetime.
func BuildOptions(cfg *Config) ([]statuslight.Option, error) {
	opts := []statuslight.Option{
		statuslight.WithDeviceURL(cfg.Device.URL),
		statuslight.WithSignalInterval(cfg.SignalInterval.Duration()),
		statuslight.WithRefreshInterval(cfg.RefreshInterval.Duration()),
		statuslight.WithInitialStatus(cfg.Status.Initial),
	}

	if cfg.Device.ProbeTimeout != 0 {
		opts = append(opts, statuslight.WithProbeTimeout(cfg.Device.ProbeTimeout.Duration()))
	}
	if cfg.Device.WriteTimeout != 0 {
		opts = append(opts, statuslight.WithWriteTimeout(cfg.Device.WriteTimeout.Duration()))
	}

	if cfg.Device.Channels.Red != "" || cfg.Device.Channels.Yellow != "" {
		red, yellow := cfg.Device.Channels.resolved()
		opts = append(opts, statuslight.WithChannels(red, yellow))
	}

	if cfg.Listen != "" {
		opts = append(opts, statuslight.WithListenAddr(cfg.Listen))
	}

	overrides, err := cfg.Overrides()
	if err != nil {
		return nil, err
	}
	if len(overrides) > 0 {
		opts = append(opts, statuslight.WithOverrides(overrides))
	}

	return opts, nil
}

// BuildSource creates the status source described by sc.
//
// It returns a nil source for push mode. The returned close function is
// never nil; MQTT sources disconnect from the broker when it is called.
func BuildSource(sc SourceConfig, logger *slog.Logger) (statuslight.StatusSource, func(), error) {
	noop := func() {}

	switch sc.Type {
	case SourceStatic:
		return statuslight.StaticStatus(sc.Label), noop, nil

	case SourceHTTP:
		extractor, err := statuslight.ParseLabelExtractor(sc.Extractor)
		if err != nil {
			return nil, noop, err
		}
		opts := []statuslight.HTTPSourceOption{statuslight.WithLabelExtractor(extractor)}
		if sc.Timeout != 0 {
			opts = append(opts, statuslight.WithSourceTimeout(sc.Timeout.Duration()))
		}
		if len(sc.Headers) > 0 {
			opts = append(opts, statuslight.WithSourceHeaders(mapToKeyValuePairs(sc.Headers)...))
		}
		src, err := statuslight.HTTPStatusSource(sc.URL, opts...)
		if err != nil {
			return nil, noop, err
		}
		return src, noop, nil

	case SourceMQTT:
		mqttCfg, err := mqttConfig(sc)
		if err != nil {
			return nil, noop, err
		}
		src, err := statuslight.NewMQTTStatusSource(mqttCfg, logger)
		if err != nil {
			return nil, noop, err
		}
		return src, src.Close, nil

	default:
		return nil, noop, nil
	}
}

// mqttConfig maps the source section onto the MQTT source settings.
func mqttConfig(sc SourceConfig) (statuslight.MQTTConfig, error) {
	cfg := statuslight.MQTTConfig{
		Broker:   sc.Broker,
		Topic:    sc.Topic,
		ClientID: sc.ClientID,
		Username: sc.Username,
		Password: sc.Password,
		QoS:      byte(sc.QoS),
	}
	if sc.Timeout != 0 {
		cfg.ConnectTimeout = sc.Timeout.Duration()
	}
	if sc.Extractor != "" {
		extractor, err := statuslight.ParseLabelExtractor(sc.Extractor)
		if err != nil {
			return statuslight.MQTTConfig{}, err
		}
		cfg.Extractor = extractor
	}
	return cfg, cfg.Validate()
}

// mapToKeyValuePairs converts a map to a sorted slice of key-value pairs.
func mapToKeyValuePairs(m map[string]string) []string {
	// sort keys for deterministic ordering
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(m)*2)
	for _, k := range keys {
		pairs = append(pairs, k, m[k])
	}
	return pairs
}
