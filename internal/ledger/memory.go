package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/taskfabric/taskfabric/internal/clock"
)

// Memory is an in-process ledger for tests and local development.
type Memory struct {
	mu      sync.Mutex
	clock   clock.Clock
	entries map[memoryKey]Entry
}

type memoryKey struct {
	eventID  string
	consumer string
}

// NewMemory creates an empty in-memory ledger.
func NewMemory(clk clock.Clock) *Memory {
	return &Memory{clock: clk, entries: make(map[memoryKey]Entry)}
}

func (m *Memory) Claim(_ context.Context, eventID, consumer, eventType string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memoryKey{eventID: eventID, consumer: consumer}
	if existing, ok := m.entries[key]; ok && existing.Status != StatusFailed {
		return false, nil
	}

	now := m.clock.Now()
	m.entries[key] = Entry{
		EventID:     eventID,
		EventType:   eventType,
		Consumer:    consumer,
		ProcessedAt: now,
		Status:      StatusProcessed,
		ExpiresAt:   now.Add(ttl),
	}
	return true, nil
}

func (m *Memory) RecordFailure(_ context.Context, eventID, consumer string, procErr error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memoryKey{eventID: eventID, consumer: consumer}
	entry, ok := m.entries[key]
	if !ok {
		return nil
	}

	msg := procErr.Error()
	entry.Status = StatusFailed
	entry.Error = &msg
	m.entries[key] = entry
	return nil
}

func (m *Memory) PurgeExpired(_ context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	var purged int64
	for key, entry := range m.entries {
		if entry.ExpiresAt.Before(now) {
			delete(m.entries, key)
			purged++
		}
	}
	return purged, nil
}

// Entry returns the stored entry for tests.
func (m *Memory) Entry(eventID, consumer string) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[memoryKey{eventID: eventID, consumer: consumer}]
	return e, ok
}
