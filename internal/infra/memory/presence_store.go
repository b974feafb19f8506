package memory

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// PresenceStore is an in-memory implementation of app.PresenceRepository.
type PresenceStore struct {
	mu      sync.RWMutex
	now     func() time.Time
	expires map[string]time.Time
}

func NewPresenceStore() *PresenceStore {
	return NewPresenceStoreWithClock(time.Now)
}

// NewPresenceStoreWithClock is test-only for deterministic expiry.
func NewPresenceStoreWithClock(now func() time.Time) *PresenceStore {
	return &PresenceStore{
		now:     now,
		expires: make(map[string]time.Time),
	}
}

func (s *PresenceStore) Touch(_ context.Context, gameID, playerID int64, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expires[key(gameID, playerID)] = s.now().Add(ttl)
	return nil
}

func (s *PresenceStore) Alive(_ context.Context, gameID, playerID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exp, ok := s.expires[key(gameID, playerID)]
	return ok && exp.After(s.now()), nil
}

func (s *PresenceStore) Forget(_ context.Context, gameID, playerID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.expires, key(gameID, playerID))
	return nil
}

func key(gameID, playerID int64) string {
	return fmt.Sprintf("%d:%d", gameID, playerID)
}
