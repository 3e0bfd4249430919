package sessions

import (
	"context"
	"sync"
	"time"
)

// MemoryRepository keeps revocations in process. Used when neither Redis
// nor MongoDB is configured.
type MemoryRepository struct {
	mu      sync.Mutex
	entries map[string]time.Time
	now     func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{entries: make(map[string]time.Time), now: time.Now}
}

func (m *MemoryRepository) Add(ctx context.Context, rev *Revocation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[rev.Key] = rev.ExpiresAt
	return nil
}

func (m *MemoryRepository) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	if !m.now().Before(exp) {
		delete(m.entries, key)
		return false, nil
	}
	return true, nil
}
