package store

import (
	"time"

	"github.com/jpalmerr/statuslight/internal/device"
	"github.com/jpalmerr/statuslight/internal/signal"
)

// Config is the process-wide state read by the scheduler on every tick.
//
// Config is returned by value from [Store.Get]; the Overrides map in a
// returned Config is a private copy and may be modified freely.
type Config struct {
	// Endpoint is the device the sync task talks to.
	Endpoint device.Endpoint `json:"endpoint"`

	// Status is the last observed presence label. Empty means none observed.
	Status string `json:"status"`

	// StatusUpdatedAt is when Status was last written.
	StatusUpdatedAt time.Time `json:"status_updated_at"`

	// Overrides reassigns labels to signal categories. Consulted before the
	// fixed status table.
	Overrides map[string]signal.Category `json:"overrides,omitempty"`
}

// Mapper returns the status mapper for this snapshot's overrides.
func (c Config) Mapper() signal.Mapper {
	return signal.NewMapper(c.Overrides)
}

// Signal derives the signal state for the current status.
// The second result is false when the status is not mapped.
func (c Config) Signal() (signal.State, bool) {
	return c.Mapper().Map(c.Status)
}

// Patch is a partial update for [Store.Set].
//
// Nil fields are left untouched. Set fields replace the corresponding field
// of the current Config; Overrides is replaced as a whole, not merged
// key-by-key.
type Patch struct {
	BaseURL       *string
	ProbeTimeout  *time.Duration
	WriteTimeout  *time.Duration
	RedChannel    *string
	YellowChannel *string
	Status        *string
	Overrides     map[string]signal.Category
}

// StatusPatch is shorthand for a Patch that only sets the status label.
func StatusPatch(label string) Patch {
	return Patch{Status: &label}
}

// Store defines the interface for reading and merging configuration.
//
// Store implementations must be safe for concurrent access. Every Get returns
// a consistent snapshot, but two Gets may observe different states.
type Store interface {
	// Get returns a snapshot of the current configuration.
	Get() Config

	// Set shallow-merges the non-nil fields of patch into the current
	// configuration and returns the merged result.
	Set(patch Patch) Config

	// Subscribe returns a channel that receives the configuration after
	// every change. The channel has a buffer; slow consumers may miss
	// updates. Caller must call Unsubscribe when done.
	Subscribe() <-chan Config

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Config)
}

func copyOverrides(m map[string]signal.Category) map[string]signal.Category {
	if m == nil {
		return nil
	}
	cp := make(map[string]signal.Category, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}

func sameOverrides(a, b map[string]signal.Category) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if w, ok := b[k]; !ok || w != v {
			return false
		}
	}
	return true
}
