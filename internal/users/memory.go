package users

import (
	"context"
	"sync"
	"time"

	"github.com/ledgerly/ledgerly/backend/go-services/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryUserRepository is an in-process UserRepository used when no
// MongoDB URI is configured and in tests. Returned users are copies.
type MemoryUserRepository struct {
	mu         sync.RWMutex
	byID       map[string]*models.User
	byUsername map[string]string
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		byID:       make(map[string]*models.User),
		byUsername: make(map[string]string),
	}
}

func (m *MemoryUserRepository) Create(ctx context.Context, u *models.User) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byUsername[u.Username]; ok {
		return nil, ErrUsernameTaken
	}
	stored := *u
	if stored.ID == "" {
		stored.ID = primitive.NewObjectID().Hex()
	}
	now := time.Now().UTC()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	m.byID[stored.ID] = &stored
	m.byUsername[stored.Username] = stored.ID
	out := stored
	return &out, nil
}

func (m *MemoryUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if u, ok := m.byID[id]; ok {
		out := *u
		return &out, nil
	}
	return nil, nil
}

func (m *MemoryUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.RLock()
	id, ok := m.byUsername[username]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	return m.GetByID(ctx, id)
}
