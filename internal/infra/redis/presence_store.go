package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// PresenceStore keeps one expiring liveness key per player, so presence is
// shared by every server instance.
type PresenceStore struct {
	client *redis.Client
}

func NewPresenceStore(client *redis.Client) *PresenceStore {
	return &PresenceStore{client: client}
}

func (s *PresenceStore) Touch(ctx context.Context, gameID, playerID int64, ttl time.Duration) error {
	return s.client.Set(ctx, s.key(gameID, playerID), "1", ttl).Err()
}

func (s *PresenceStore) Alive(ctx context.Context, gameID, playerID int64) (bool, error) {
	n, err := s.client.Exists(ctx, s.key(gameID, playerID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *PresenceStore) Forget(ctx context.Context, gameID, playerID int64) error {
	return s.client.Del(ctx, s.key(gameID, playerID)).Err()
}

func (s *PresenceStore) key(gameID, playerID int64) string {
	return "duel:presence:" + strconv.FormatInt(gameID, 10) + ":" + strconv.FormatInt(playerID, 10)
}
