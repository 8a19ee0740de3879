package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
)

const defaultConnectTimeout = 10 * time.Second

// ErrNoStatus is returned by a push-style source before it has received
// its first label.
var ErrNoStatus = errors.New("no status received yet")

// MQTTConfig configures an [MQTT] source.
type MQTTConfig struct {
	// Broker is the broker URL, e.g. "tcp://localhost:1883" or "ssl://host:8883".
	Broker string

	// Topic carries the presence label as its payload.
	Topic string

	// ClientID defaults to "statuslight-" plus a random suffix.
	ClientID string

	Username string
	Password string

	// QoS is the subscription quality of service (0, 1 or 2).
	QoS byte

	// ConnectTimeout bounds the initial connection. Defaults to 10s.
	ConnectTimeout time.Duration

	// Extractor pulls the label out of the payload. Defaults to [Text].
	Extractor Extractor
}

// Validate checks the configuration without connecting.
func (c MQTTConfig) Validate() error {
	if strings.TrimSpace(c.Broker) == "" {
		return errors.New("mqtt broker is required")
	}
	if strings.TrimSpace(c.Topic) == "" {
		return errors.New("mqtt topic is required")
	}
	if c.QoS > 2 {
		return fmt.Errorf("mqtt qos must be 0, 1 or 2, got %d", c.QoS)
	}
	return nil
}

// MQTT keeps the latest label published on a topic.
//
// The broker pushes labels; [MQTT.CurrentStatus] returns whatever arrived
// last, so the refresh task samples it on its own schedule.
type MQTT struct {
	client    mqtt.Client
	topic     string
	qos       byte
	extractor Extractor
	logger    *slog.Logger

	mu         sync.RWMutex
	label      string
	received   bool
	receivedAt time.Time
}

// NewMQTT connects to the broker and subscribes to the topic. The
// subscription is re-established on every reconnect.
func NewMQTT(cfg MQTTConfig, logger *slog.Logger) (*MQTT, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "statuslight-" + uuid.NewString()[:8]
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}

	m := newMQTT(cfg, logger)

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(cfg.ConnectTimeout)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		token := c.Subscribe(m.topic, m.qos, m.handleMessage)
		if token.Wait() && token.Error() != nil {
			m.logger.Error("mqtt subscribe failed", "error", token.Error())
			return
		}
		m.logger.Info("mqtt subscribed")
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		m.logger.Warn("mqtt connection lost", "error", err)
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(cfg.ConnectTimeout) {
		client.Disconnect(0)
		return nil, fmt.Errorf("mqtt connect to %s timed out after %s", cfg.Broker, cfg.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("mqtt connect to %s: %w", cfg.Broker, err)
	}

	m.client = client
	return m, nil
}

// newMQTT builds the source without a broker connection.
func newMQTT(cfg MQTTConfig, logger *slog.Logger) *MQTT {
	extractor := cfg.Extractor
	if extractor == nil {
		extractor = Text()
	}
	return &MQTT{
		topic:     cfg.Topic,
		qos:       cfg.QoS,
		extractor: extractor,
		logger:    logger.With("broker", cfg.Broker, "topic", cfg.Topic),
	}
}

// CurrentStatus returns the last label received, or [ErrNoStatus] before
// the first message.
func (m *MQTT) CurrentStatus(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.received {
		return "", ErrNoStatus
	}
	return m.label, nil
}

// ReceivedAt returns when the last label arrived.
func (m *MQTT) ReceivedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.receivedAt
}

func (m *MQTT) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	label := strings.TrimSpace(m.extractor(msg.Payload(), 0))

	m.mu.Lock()
	previous := m.label
	m.label = label
	m.received = true
	m.receivedAt = time.Now()
	m.mu.Unlock()

	if label != previous {
		m.logger.Debug("mqtt status received", "status", label)
	}
}

// Close disconnects from the broker.
func (m *MQTT) Close() {
	if m == nil || m.client == nil {
		return
	}
	m.client.Disconnect(250)
}
