package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// seenKey is the Redis set holding every transaction id already scored.
const seenKey = "safescore:seen"

// SeenStore implements domain.SeenCache on a Redis set. Membership only
// grows; entries are never expired or removed.
type SeenStore struct {
	rdb *redis.Client
}

// NewSeenStore creates a SeenStore over the given client.
func NewSeenStore(c *Client) *SeenStore {
	return &SeenStore{rdb: c.Underlying()}
}

// Load returns every cached transaction id.
func (s *SeenStore) Load(ctx context.Context) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, seenKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: load seen set: %w", err)
	}
	return ids, nil
}

// Add records ids as seen.
func (s *SeenStore) Add(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	members := make([]any, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	if err := s.rdb.SAdd(ctx, seenKey, members...).Err(); err != nil {
		return fmt.Errorf("redis: add seen ids: %w", err)
	}
	return nil
}
