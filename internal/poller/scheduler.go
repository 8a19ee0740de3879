package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/jpalmerr/statuslight/internal/device"
	"github.com/jpalmerr/statuslight/internal/signal"
	"github.com/jpalmerr/statuslight/internal/store"
)

const (
	// DefaultSignalInterval is the period of the sync task.
	DefaultSignalInterval = time.Second

	// DefaultRefreshInterval is the period of the refresh task.
	DefaultRefreshInterval = time.Second

	resultsBuffer = 16
)

// ErrNoSource is returned by [Scheduler.RefreshOnce] when no status source
// is configured.
var ErrNoSource = errors.New("no status source configured")

// StatusSource reports the current presence label.
//
// This is the poller-internal contract; any type with a matching method
// (internal/source types, SDK adapters) satisfies it.
type StatusSource interface {
	CurrentStatus(ctx context.Context) (string, error)
}

// Task names one of the scheduler's periodic tasks.
type Task string

const (
	// TaskSync probes the device and writes the signal state.
	TaskSync Task = "sync"

	// TaskRefresh reads the status source into the store.
	TaskRefresh Task = "refresh"
)

// Result holds the outcome of a single tick of one task.
type Result struct {
	// Task is the task that produced this result.
	Task Task

	// CheckedAt is when the tick started.
	CheckedAt time.Time

	// Latency is the duration of the whole tick.
	Latency time.Duration

	// Skipped is true when the tick fired while the previous tick of the
	// same task was still running. No other field but Task and CheckedAt
	// is set.
	Skipped bool

	// Status is the presence label the tick worked with. For the refresh
	// task this is the label stored after the tick.
	Status string

	// BaseURL is the device the sync task targeted.
	BaseURL string

	// Alive is the outcome of the liveness probe (sync only).
	Alive bool

	// ProbeLatency is the time the liveness probe took (sync only).
	ProbeLatency time.Duration

	// Mapped is false when Status has no signal state (sync only).
	Mapped bool

	// State is the signal state derived from Status, valid when Mapped.
	State signal.State

	// Sent is true when both channel writes succeeded.
	Sent bool

	// Error is the probe, write or source error, if any.
	Error error
}

// Config holds the scheduler's task periods. Zero values take defaults.
type Config struct {
	SignalInterval  time.Duration
	RefreshInterval time.Duration
}

// Scheduler runs the sync and refresh tasks on independent tickers.
//
// Both tasks run immediately on start, then once per interval. Each task is
// skip-if-running: a tick that fires while the previous tick of the same
// task is still in flight is dropped and reported as a skipped [Result].
// The two tasks never wait on each other; they share only the store.
//
// All lifecycle methods (Start, Stop) are safe for concurrent use.
type Scheduler struct {
	store   store.Store
	source  StatusSource
	cfg     Config
	results chan Result
	logger  *slog.Logger
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	mu        sync.Mutex
	started   bool
	stopped   bool
	closeOnce sync.Once

	syncRunning    atomic.Bool
	refreshRunning atomic.Bool

	clientMu  sync.Mutex
	client    *device.Client
	lastAlive *bool
}

// NewScheduler creates a new [Scheduler].
//
// Parameters:
//   - st: the configuration store read by the sync task and written by the
//     refresh task
//   - source: where the refresh task reads the presence label; nil disables
//     the refresh task and leaves status updates to the caller
//   - cfg: task periods
//   - logger: logger for tick outcomes and panic recovery
//
// The scheduler must be started with [Scheduler.Start] and stopped with
// [Scheduler.Stop]. Results are available via [Scheduler.Results].
func NewScheduler(st store.Store, source StatusSource, cfg Config, logger *slog.Logger) *Scheduler {
	if cfg.SignalInterval <= 0 {
		cfg.SignalInterval = DefaultSignalInterval
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		store:   st,
		source:  source,
		cfg:     cfg,
		results: make(chan Result, resultsBuffer),
		logger:  logger,
	}
}

// Results returns a receive-only channel that emits one [Result] per tick.
//
// The channel is closed when the scheduler stops. Consumers should read from
// this channel until it is closed; an unread channel eventually stalls both
// tasks.
func (s *Scheduler) Results() <-chan Result {
	return s.results
}

// Start begins both periodic tasks in background goroutines.
//
// Start is non-blocking and returns immediately. If ctx is nil,
// context.Background() is used as the parent context. Start is idempotent;
// subsequent calls after the first are no-ops. If Stop was called before
// Start, Start is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	loops := 1
	if s.source != nil {
		loops++
	}
	s.wg.Add(loops)
	s.mu.Unlock()

	go s.loop(runCtx, TaskSync, s.cfg.SignalInterval, &s.syncRunning, s.SyncOnce)
	if s.source != nil {
		go s.loop(runCtx, TaskRefresh, s.cfg.RefreshInterval, &s.refreshRunning, s.RefreshOnce)
	}

	// close results once both loops and their in-flight ticks are done,
	// whether via Stop or parent context cancellation
	go func() {
		s.wg.Wait()
		s.closeOnce.Do(func() { close(s.results) })
	}()
}

// Stop halts the scheduler and waits for all goroutines to complete.
//
// Stop cancels the scheduler's context and blocks until both loops exit and
// all in-flight ticks finish. It then releases the device client's idle
// connections and closes the results channel.
//
// Stop is idempotent and safe to call multiple times. Calling Stop before
// Start is a safe no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	s.wg.Wait()

	s.clientMu.Lock()
	s.client.Close()
	s.clientMu.Unlock()

	// ensure channel is closed even if Start() was never called
	s.closeOnce.Do(func() { close(s.results) })
}

// loop fires the task immediately and then on every tick until ctx is done.
func (s *Scheduler) loop(ctx context.Context, task Task, interval time.Duration, running *atomic.Bool, fn func(context.Context) Result) {
	defer s.wg.Done()

	s.fire(ctx, task, running, fn)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(ctx, task, running, fn)
		}
	}
}

// fire runs one tick in its own goroutine unless the previous tick of the
// same task is still running.
func (s *Scheduler) fire(ctx context.Context, task Task, running *atomic.Bool, fn func(context.Context) Result) {
	if !running.CompareAndSwap(false, true) {
		s.logger.Debug("tick skipped, previous still running", "task", string(task))
		s.emit(ctx, Result{Task: task, CheckedAt: time.Now(), Skipped: true})
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer running.Store(false)
		r := fn(ctx)
		// a tick interrupted by shutdown says nothing about the device
		if ctx.Err() != nil {
			return
		}
		s.emit(ctx, r)
	}()
}

func (s *Scheduler) emit(ctx context.Context, r Result) {
	select {
	case s.results <- r:
	case <-ctx.Done():
	}
}

// SyncOnce runs a single sync tick: probe the device and, if it is alive
// and the stored status is mapped, write both channels.
//
// SyncOnce never panics on device failures and never returns early with a
// partial write; the outcome is described by the returned [Result]. When ctx
// ends mid-tick the result carries the cancellation error, and the device is
// not logged as offline.
func (s *Scheduler) SyncOnce(ctx context.Context) (result Result) {
	start := time.Now()
	cfg := s.store.Get()

	result = Result{
		Task:      TaskSync,
		CheckedAt: start,
		Status:    cfg.Status,
		BaseURL:   cfg.Endpoint.BaseURL,
	}
	defer func() { result.Latency = time.Since(start) }()

	client, err := s.clientFor(cfg.Endpoint)
	if err != nil {
		result.Error = fmt.Errorf("device client: %w", err)
		s.logger.Warn("sync skipped, device misconfigured", "error", err)
		return result
	}
	result.BaseURL = client.Endpoint().BaseURL

	probe := client.Probe(ctx)
	result.Alive = probe.Alive
	result.ProbeLatency = probe.Latency
	if !probe.Alive {
		result.Error = probe.Err
		if ctx.Err() == nil {
			s.noteLiveness(result.BaseURL, false)
		}
		return result
	}
	s.noteLiveness(result.BaseURL, true)

	state, ok := cfg.Signal()
	result.State, result.Mapped = state, ok
	if !ok {
		s.logger.Debug("status not mapped, no signal sent", "status", cfg.Status)
		return result
	}

	if err := client.SendSignalState(ctx, state); err != nil {
		result.Error = err
		if ctx.Err() != nil {
			s.logger.Debug("signal write cancelled", "device", result.BaseURL, "error", err.Error())
			return result
		}
		s.logger.Warn("signal write failed",
			"device", result.BaseURL,
			"status", cfg.Status,
			"signal", state.String(),
			"error", err.Error(),
		)
		return result
	}

	result.Sent = true
	s.logger.Debug("signal sent",
		"device", result.BaseURL,
		"status", cfg.Status,
		"signal", state.String(),
	)
	return result
}

// RefreshOnce runs a single refresh tick: read the status source and merge
// the label into the store.
//
// A source error leaves the stored status unchanged. An empty label is
// stored as-is.
func (s *Scheduler) RefreshOnce(ctx context.Context) Result {
	start := time.Now()
	result := Result{Task: TaskRefresh, CheckedAt: start}

	if s.source == nil {
		result.Error = ErrNoSource
		return result
	}

	label, err := s.safeCurrentStatus(ctx)
	result.Latency = time.Since(start)
	if err != nil {
		result.Error = err
		result.Status = s.store.Get().Status
		s.logger.Warn("status refresh failed", "error", err.Error())
		return result
	}

	previous := s.store.Get().Status
	cfg := s.store.Set(store.StatusPatch(label))
	result.Status = cfg.Status

	if previous != label {
		s.logger.Info("status changed", "from", previous, "to", label)
	}
	return result
}

// safeCurrentStatus calls the source with panic recovery.
// If the source panics, it logs the full stack trace with a correlation ID
// and returns a user-friendly error containing the ID.
func (s *Scheduler) safeCurrentStatus(ctx context.Context) (label string, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			stack := debug.Stack()

			// log full context server-side for debugging
			s.logger.Error("status source panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(stack),
			)

			label = ""
			err = fmt.Errorf("status source panic (correlation_id: %s)", correlationID)
		}
	}()
	return s.source.CurrentStatus(ctx)
}

// clientFor returns the device client for ep, replacing the cached client
// when the endpoint changed since the last tick.
func (s *Scheduler) clientFor(ep device.Endpoint) (*device.Client, error) {
	ep = ep.WithDefaults()

	s.clientMu.Lock()
	defer s.clientMu.Unlock()

	if s.client != nil && s.client.Endpoint() == ep {
		return s.client, nil
	}

	client, err := device.NewClient(ep, s.logger)
	if err != nil {
		return nil, err
	}
	if s.client != nil {
		s.logger.Info("device endpoint changed", "from", s.client.Endpoint().BaseURL, "to", ep.BaseURL)
		s.client.Close()
		s.lastAlive = nil
	}
	s.client = client
	return client, nil
}

// noteLiveness logs device online/offline transitions at info level and
// every probe at debug level.
func (s *Scheduler) noteLiveness(baseURL string, alive bool) {
	s.clientMu.Lock()
	changed := s.lastAlive == nil || *s.lastAlive != alive
	s.lastAlive = &alive
	s.clientMu.Unlock()

	msg := "device offline"
	if alive {
		msg = "device online"
	}
	if changed {
		s.logger.Info(msg, "device", baseURL)
		return
	}
	s.logger.Debug(msg, "device", baseURL)
}
