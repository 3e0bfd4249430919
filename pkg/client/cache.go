package client

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/ledgerly/ledgerly/backend/go-services/internal/models"
	"github.com/ledgerly/ledgerly/backend/go-services/pkg/logger"
)

const (
	// CacheKey is the storage key of the cached user snapshot.
	CacheKey = "ledgerly_auth_cache"
	// CacheDuration is the age after which a cached snapshot is ignored.
	CacheDuration = 30 * 24 * time.Hour
	// RecheckWindow is how long a snapshot is trusted without asking the server.
	RecheckWindow = 5 * time.Minute
)

// Entry is a cached user snapshot. Timestamp is milliseconds since the epoch.
type Entry struct {
	User      *models.SessionUser `json:"user"`
	Timestamp int64               `json:"timestamp"`
}

// Time returns when the entry was written.
func (e Entry) Time() time.Time {
	return time.UnixMilli(e.Timestamp)
}

// Cache stores the last known authenticated user in a Storage.
type Cache struct {
	store Storage
	key   string
	now   func() time.Time
}

func NewCache(s Storage) *Cache {
	return &Cache{store: s, key: CacheKey, now: time.Now}
}

// Load returns the cached entry. Corrupt and expired entries are removed
// and reported as absent.
func (c *Cache) Load() (*Entry, bool) {
	b, err := c.store.Get(c.key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			logger.Warnf("session cache: read failed: %v", err)
		}
		return nil, false
	}
	var e Entry
	if err := json.Unmarshal(b, &e); err != nil || e.User == nil || e.Timestamp <= 0 {
		logger.Debugf("session cache: discarding corrupt entry")
		c.clear()
		return nil, false
	}
	if c.now().Sub(e.Time()) > CacheDuration {
		c.clear()
		return nil, false
	}
	return &e, true
}

// Save stores a snapshot of u stamped with the current time. A nil user
// clears the entry.
func (c *Cache) Save(u *models.SessionUser) error {
	if u == nil {
		return c.store.Delete(c.key)
	}
	snapshot := *u
	b, err := json.Marshal(Entry{User: &snapshot, Timestamp: c.now().UnixMilli()})
	if err != nil {
		return err
	}
	return c.store.Set(c.key, b)
}

func (c *Cache) clear() {
	if err := c.store.Delete(c.key); err != nil {
		logger.Warnf("session cache: delete failed: %v", err)
	}
}
