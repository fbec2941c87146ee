package dedup

import (
	"context"
	"sync"
	"time"

	"EventGate/internal/model"
)

type memoryEntry struct {
	outcome  *model.Outcome
	beganAt  time.Time
	resolved bool
}

// MemoryAttemptLog 进程内的 AttemptLog，站端没有 redis 时本地去重用
type MemoryAttemptLog struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	ttl     time.Duration
}

func NewMemoryAttemptLog(ttl time.Duration) *MemoryAttemptLog {
	return &MemoryAttemptLog{
		entries: make(map[string]*memoryEntry),
		ttl:     ttl,
	}
}

func (m *MemoryAttemptLog) TryBegin(ctx context.Context, attemptID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry, ok := m.entries[attemptID]; ok && !m.expired(entry) {
		return false, nil
	}
	m.entries[attemptID] = &memoryEntry{beganAt: time.Now()}
	return true, nil
}

func (m *MemoryAttemptLog) GetOutcome(ctx context.Context, attemptID string) (*model.Outcome, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[attemptID]
	if !ok || m.expired(entry) || !entry.resolved {
		return nil, false, nil
	}
	outcome := *entry.outcome
	return &outcome, true, nil
}

func (m *MemoryAttemptLog) SetOutcome(ctx context.Context, attemptID string, outcome model.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[attemptID] = &memoryEntry{
		outcome:  &outcome,
		beganAt:  time.Now(),
		resolved: true,
	}
	return nil
}

func (m *MemoryAttemptLog) Clear(ctx context.Context, attemptID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.entries, attemptID)
	return nil
}

func (m *MemoryAttemptLog) expired(entry *memoryEntry) bool {
	return m.ttl > 0 && time.Since(entry.beganAt) > m.ttl
}
