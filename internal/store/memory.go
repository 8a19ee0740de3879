package store

import (
	"sync"
	"time"
)

const subscriberBuffer = 16

// MemoryStore is an in-memory implementation of [Store].
//
// MemoryStore keeps a single Config snapshot behind a read-write mutex and
// publishes the merged snapshot to subscribers after each change. Writes
// that only refresh the status timestamp are not published.
//
// Subscribers receive updates via buffered channels. Updates are sent
// non-blocking; if a subscriber's buffer is full, the update is dropped for
// that subscriber to prevent blocking the writer.
type MemoryStore struct {
	mu          sync.RWMutex
	cfg         Config
	now         func() time.Time
	subscribers map[chan Config]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a [MemoryStore] holding initial.
func NewMemoryStore(initial Config) *MemoryStore {
	initial.Overrides = copyOverrides(initial.Overrides)
	return &MemoryStore{
		cfg:         initial,
		now:         time.Now,
		subscribers: make(map[chan Config]struct{}),
	}
}

// Get returns a snapshot of the current configuration.
func (m *MemoryStore) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg := m.cfg
	cfg.Overrides = copyOverrides(m.cfg.Overrides)
	return cfg
}

// Set merges patch into the current configuration.
//
// A status write always stamps StatusUpdatedAt, even when the label is
// unchanged, so readers can tell how fresh the observation is.
func (m *MemoryStore) Set(patch Patch) Config {
	m.mu.Lock()
	before := m.cfg
	next := m.cfg

	if patch.BaseURL != nil {
		next.Endpoint.BaseURL = *patch.BaseURL
	}
	if patch.ProbeTimeout != nil {
		next.Endpoint.ProbeTimeout = *patch.ProbeTimeout
	}
	if patch.WriteTimeout != nil {
		next.Endpoint.WriteTimeout = *patch.WriteTimeout
	}
	if patch.RedChannel != nil {
		next.Endpoint.RedChannel = *patch.RedChannel
	}
	if patch.YellowChannel != nil {
		next.Endpoint.YellowChannel = *patch.YellowChannel
	}
	if patch.Status != nil {
		next.Status = *patch.Status
		next.StatusUpdatedAt = m.now()
	}
	if patch.Overrides != nil {
		next.Overrides = copyOverrides(patch.Overrides)
	}

	m.cfg = next
	changed := next.Endpoint != before.Endpoint ||
		next.Status != before.Status ||
		!sameOverrides(next.Overrides, before.Overrides)

	snapshot := next
	snapshot.Overrides = copyOverrides(next.Overrides)
	m.mu.Unlock()

	if changed {
		m.notifySubscribers(snapshot)
	}
	return snapshot
}

// Subscribe creates a new subscription and returns a channel for receiving
// configuration changes.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan Config {
	ch := make(chan Config, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Config) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the snapshot to all active subscribers without
// blocking. Each subscriber gets its own copy of the overrides map.
func (m *MemoryStore) notifySubscribers(cfg Config) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		c := cfg
		c.Overrides = copyOverrides(cfg.Overrides)
		select {
		case ch <- c:
		default:
			// subscriber is slow, drop the message
		}
	}
}
