package killswitch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const redisIndexKey = "killswitch:index"

// RedisStore shares flag state across processes. Each switch lives under its
// own key with membership tracked in an index set, so reads stay O(switches)
// and writes are two atomic commands.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(id string) string { return "killswitch:" + id }

func (s *RedisStore) Get(ctx context.Context, id string) (*Switch, error) {
	state, err := s.client.Get(ctx, redisKey(id)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("killswitch redis get: %w", err)
	}
	var sw Switch
	if err := json.Unmarshal([]byte(state), &sw); err != nil {
		return nil, fmt.Errorf("killswitch redis decode: %w", err)
	}
	return &sw, nil
}

func (s *RedisStore) Put(ctx context.Context, sw *Switch) error {
	state, err := json.Marshal(sw)
	if err != nil {
		return fmt.Errorf("killswitch redis encode: %w", err)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisKey(sw.ID), state, 0)
	pipe.SAdd(ctx, redisIndexKey, sw.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("killswitch redis put: %w", err)
	}
	return nil
}

func (s *RedisStore) List(ctx context.Context) ([]*Switch, error) {
	ids, err := s.client.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("killswitch redis index: %w", err)
	}
	out := make([]*Switch, 0, len(ids))
	for _, id := range ids {
		sw, err := s.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if sw != nil {
			out = append(out, sw)
		}
	}
	return out, nil
}
