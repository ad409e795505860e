package queue

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisStore keeps each queue as a Redis list (RPUSH to append, LTRIM to ack).
type RedisStore struct {
	client redis.Cmdable
	log    *zap.Logger
}

func NewRedisStore(client redis.Cmdable, log *zap.Logger) *RedisStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisStore{client: client, log: log}
}

func (s *RedisStore) Append(ctx context.Context, key Key, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode queue entry: %w", err)
	}
	if err := s.client.RPush(ctx, key.String(), data).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", key, err)
	}
	s.log.Debug("queued link", zap.String("queue_key", key.String()), zap.String("link_id", e.LinkID))
	return nil
}

func (s *RedisStore) Drain(ctx context.Context, key Key) ([]Entry, error) {
	raw, err := s.client.LRange(ctx, key.String(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", key, err)
	}
	entries := make([]Entry, 0, len(raw))
	for i, item := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			s.log.Warn("undecodable queue entry",
				zap.String("queue_key", key.String()),
				zap.Int("index", i),
				zap.Error(err),
			)
			e = Entry{Invalid: true}
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *RedisStore) Ack(ctx context.Context, key Key, n int) error {
	if n <= 0 {
		return nil
	}
	// LTRIM past the end leaves an empty list, which Redis removes.
	if err := s.client.LTrim(ctx, key.String(), int64(n), -1).Err(); err != nil {
		return fmt.Errorf("ltrim %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, key Key) error {
	if err := s.client.Del(ctx, key.String()).Err(); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

func (s *RedisStore) Len(ctx context.Context, key Key) (int64, error) {
	n, err := s.client.LLen(ctx, key.String()).Result()
	if err != nil {
		return 0, fmt.Errorf("llen %s: %w", key, err)
	}
	return n, nil
}
