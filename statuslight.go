package statuslight

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jpalmerr/statuslight/internal/device"
	"github.com/jpalmerr/statuslight/internal/metrics"
	"github.com/jpalmerr/statuslight/internal/poller"
	"github.com/jpalmerr/statuslight/internal/server"
	"github.com/jpalmerr/statuslight/internal/store"
)

const (
	// DefaultDeviceURL is where the light lives unless configured otherwise.
	DefaultDeviceURL = "http://10.0.0.30"

	// DefaultInitialStatus is the label the light starts with.
	DefaultInitialStatus = "Away"

	// DefaultRedChannel and DefaultYellowChannel are the device-side
	// channel ids used unless [WithChannels] says otherwise.
	DefaultRedChannel    = device.DefaultRedChannel
	DefaultYellowChannel = device.DefaultYellowChannel

	defaultSignalInterval  = poller.DefaultSignalInterval
	defaultRefreshInterval = poller.DefaultRefreshInterval
)

// Light keeps a two-channel signal light in step with a presence label.
//
// Light coordinates two periodic tasks: a refresh task that reads the label
// from a [StatusSource] and a sync task that probes the device and writes the
// mapped [State]. It is created using [New] with functional options and
// started with [Light.Start].
//
// The typical lifecycle is:
//
//	light, err := statuslight.New(
//	    statuslight.WithDeviceURL("http://10.0.0.30"),
//	    statuslight.WithStatusSource(src),
//	)
//	if err != nil {
//	    slog.Error("failed to create light", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	light.Start(ctx) // blocks until context cancelled
type Light struct {
	endpoint        device.Endpoint
	signalInterval  time.Duration
	refreshInterval time.Duration
	source          StatusSource
	listenAddr      string
	logger          *slog.Logger
	syncCallbacks   []func(SyncResult)

	store   *store.MemoryStore
	metrics *metrics.Metrics

	mu      sync.Mutex
	running bool
}

// New creates a new [Light] with the given options.
//
// Every option has a default:
//   - Device: http://10.0.0.30, channels red=4 yellow=5, 5s probe and write timeouts
//   - Signal and refresh intervals: 1 second
//   - Initial status: "Away"
//   - No status source (push mode) and no HTTP API
//
// Returns an error if any option is invalid.
func New(opts ...Option) (*Light, error) {
	cfg := &lightConfig{
		deviceURL:       DefaultDeviceURL,
		signalInterval:  defaultSignalInterval,
		refreshInterval: defaultRefreshInterval,
		initialStatus:   DefaultInitialStatus,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	endpoint := device.Endpoint{
		BaseURL:       cfg.deviceURL,
		ProbeTimeout:  cfg.probeTimeout,
		WriteTimeout:  cfg.writeTimeout,
		RedChannel:    cfg.redChannel,
		YellowChannel: cfg.yellowChannel,
	}.WithDefaults()
	if err := endpoint.Validate(); err != nil {
		return nil, fmt.Errorf("invalid device settings: %w", err)
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Light{
		endpoint:        endpoint,
		signalInterval:  cfg.signalInterval,
		refreshInterval: cfg.refreshInterval,
		source:          cfg.source,
		listenAddr:      cfg.listenAddr,
		logger:          logger,
		syncCallbacks:   cfg.syncCallbacks,
		store: store.NewMemoryStore(store.Config{
			Endpoint:  endpoint,
			Status:    cfg.initialStatus,
			Overrides: cfg.overrides,
		}),
		metrics: metrics.New(cfg.initialStatus),
	}, nil
}

// Start runs both periodic tasks and, if configured, the HTTP API.
//
// Start is a blocking call that runs until the provided context is
// cancelled. Both tasks run once immediately and then on their intervals.
// Tick outcomes are recorded as metrics and passed to sync callbacks.
//
// Returns nil on graceful shutdown. Returns an error if the HTTP API fails
// to start or if the Light is already running.
func (l *Light) Start(ctx context.Context) error {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return errors.New("light is already running")
	}
	l.running = true
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	l.logger.Info("statuslight starting",
		"device", l.endpoint.BaseURL,
		"signal_interval", l.signalInterval.String(),
		"refresh_interval", l.refreshInterval.String(),
		"push_mode", l.source == nil,
	)

	scheduler := poller.NewScheduler(l.store, l.source, poller.Config{
		SignalInterval:  l.signalInterval,
		RefreshInterval: l.refreshInterval,
	}, l.logger)
	scheduler.Start(ctx)

	// track the results consumer goroutine to ensure clean shutdown
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for result := range scheduler.Results() {
			l.handleResult(result)
		}
	}()

	// cleanup function ensures scheduler is stopped and all results are processed
	cleanup := func() {
		scheduler.Stop() // closes results channel
		wg.Wait()        // wait for all results to be processed
	}

	if l.listenAddr != "" {
		api := server.NewServer(l.store, l.listenAddr, l.metrics, l.logger)
		if err := api.Start(ctx); err != nil {
			cleanup()
			return fmt.Errorf("failed to start HTTP API: %w", err)
		}
	}

	<-ctx.Done()
	cleanup()
	l.logger.Info("statuslight stopped")
	return nil
}

// handleResult records one tick and runs the callbacks.
func (l *Light) handleResult(r poller.Result) {
	l.metrics.Observe(r)

	if len(l.syncCallbacks) > 0 {
		public := toSyncResult(r)
		for _, cb := range l.syncCallbacks {
			invokeCallbackSafe(cb, public, l.logger)
		}
	}

	if !r.Skipped {
		l.logger.Debug("tick completed",
			"task", string(r.Task),
			"outcome", metrics.Outcome(r),
			"status", r.Status,
			"latency_ms", r.Latency.Milliseconds(),
		)
	}
}

// SyncOnce runs a single sync tick outside the scheduler: probe the device
// and, if it is alive and the current status is mapped, write both channels.
func (l *Light) SyncOnce(ctx context.Context) SyncResult {
	scheduler := poller.NewScheduler(l.store, nil, poller.Config{}, l.logger)
	defer scheduler.Stop()
	return toSyncResult(scheduler.SyncOnce(ctx))
}

// Probe checks whether the device answers, without writing anything.
func (l *Light) Probe(ctx context.Context) (ProbeResult, error) {
	client, err := device.NewClient(l.store.Get().Endpoint, l.logger)
	if err != nil {
		return ProbeResult{}, err
	}
	defer client.Close()
	return client.Probe(ctx), nil
}

// SetStatus replaces the current presence label. The next sync tick writes
// the corresponding signal.
func (l *Light) SetStatus(label string) {
	l.store.Set(store.StatusPatch(label))
}

// Status returns the current presence label.
func (l *Light) Status() string {
	return l.store.Get().Status
}

// State returns the signal the current label maps to. The second result is
// false when the label has no signal.
func (l *Light) State() (State, bool) {
	return l.store.Get().Signal()
}

// DeviceURL returns the device's base URL.
func (l *Light) DeviceURL() string {
	return l.store.Get().Endpoint.BaseURL
}

// SignalInterval returns the configured sync period.
func (l *Light) SignalInterval() time.Duration {
	return l.signalInterval
}

// RefreshInterval returns the configured refresh period.
func (l *Light) RefreshInterval() time.Duration {
	return l.refreshInterval
}

// ListenAddr returns the HTTP API address, or "" when the API is disabled.
func (l *Light) ListenAddr() string {
	return l.listenAddr
}

// invokeCallbackSafe calls a sync callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(SyncResult), result SyncResult, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("sync callback panicked",
				"panic", r,
				"task", string(result.Task),
			)
		}
	}()
	cb(result)
}
