package statuslight

import (
	"time"

	"github.com/jpalmerr/statuslight/internal/device"
	"github.com/jpalmerr/statuslight/internal/poller"
	"github.com/jpalmerr/statuslight/internal/signal"
)

// State is the on/off state of the red and yellow channels.
type State = signal.State

// Category names one of the three signal states a label can map to.
type Category = signal.Category

// Signal categories.
const (
	CategoryRed    = signal.CategoryRed
	CategoryYellow = signal.CategoryYellow
	CategoryOff    = signal.CategoryOff
)

// ProbeResult describes one liveness probe of the device.
type ProbeResult = device.ProbeResult

// WriteError reports a failed write to one channel. Use errors.As on a
// [SyncResult] error to find which channel failed.
type WriteError = device.WriteError

// MapStatus maps a presence label to a signal state using the fixed table.
// The second result is false for labels the table does not know.
func MapStatus(label string) (State, bool) {
	return signal.Map(label)
}

// KnownStatuses returns the labels the fixed table recognizes, sorted.
func KnownStatuses() []string {
	return signal.KnownLabels()
}

// ParseCategory parses "red", "yellow" or "off", ignoring case.
func ParseCategory(s string) (Category, error) {
	return signal.ParseCategory(s)
}

// Task names which periodic task produced a [SyncResult].
type Task string

const (
	// TaskSync probes the device and writes the signal.
	TaskSync Task = Task(poller.TaskSync)

	// TaskRefresh reads the status source.
	TaskRefresh Task = Task(poller.TaskRefresh)
)

// SyncResult is the outcome of one tick, passed to sync callbacks.
type SyncResult struct {
	// Task is the task that ran.
	Task Task

	// CheckedAt is when the tick started.
	CheckedAt time.Time

	// Latency is how long the tick took.
	Latency time.Duration

	// Skipped is true when the previous tick of the same task was still
	// running and this one did nothing.
	Skipped bool

	// Status is the presence label the tick worked with.
	Status string

	// BaseURL is the device targeted by a sync tick.
	BaseURL string

	// Alive reports whether the device answered the liveness probe.
	Alive bool

	// Mapped is false when Status has no signal.
	Mapped bool

	// State is the signal derived from Status, valid when Mapped.
	State State

	// Sent is true when both channel writes succeeded.
	Sent bool

	// Error is the probe, write or source error, if any.
	Error error
}

func toSyncResult(r poller.Result) SyncResult {
	return SyncResult{
		Task:      Task(r.Task),
		CheckedAt: r.CheckedAt,
		Latency:   r.Latency,
		Skipped:   r.Skipped,
		Status:    r.Status,
		BaseURL:   r.BaseURL,
		Alive:     r.Alive,
		Mapped:    r.Mapped,
		State:     r.State,
		Sent:      r.Sent,
		Error:     r.Error,
	}
}
