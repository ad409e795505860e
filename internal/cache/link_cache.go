package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/shashankxrm/deskdrop/internal/models"
	"github.com/vmihailenco/msgpack/v5"
)

const DefaultLinkHistoryTTL = time.Minute

// LinkCache caches a user's link history page. A nil *LinkCache, or one
// without Redis, is a valid always-miss cache.
type LinkCache struct {
	redis *RedisCache
	ttl   time.Duration
}

func NewLinkCache(redis *RedisCache, ttl time.Duration) *LinkCache {
	if ttl <= 0 {
		ttl = DefaultLinkHistoryTTL
	}
	return &LinkCache{redis: redis, ttl: ttl}
}

func historyKey(userID string, limit int) string {
	return fmt.Sprintf("links:%s:%d", userID, limit)
}

func historyIndexKey(userID string) string {
	return fmt.Sprintf("links:%s:pages", userID)
}

// GetHistory returns the cached history page for userID, if any.
func (lc *LinkCache) GetHistory(ctx context.Context, userID string, limit int) ([]models.LinkResponse, bool) {
	if lc == nil || lc.redis == nil {
		return nil, false
	}
	data, err := lc.redis.Get(ctx, historyKey(userID, limit))
	if err != nil || data == nil {
		return nil, false
	}

	var links []models.LinkResponse
	if err := msgpack.Unmarshal(data, &links); err != nil {
		return nil, false
	}
	return links, true
}

// SetHistory caches a history page and remembers its key for invalidation.
func (lc *LinkCache) SetHistory(ctx context.Context, userID string, limit int, links []models.LinkResponse) error {
	if lc == nil || lc.redis == nil {
		return nil
	}
	data, err := msgpack.Marshal(links)
	if err != nil {
		return err
	}
	if err := lc.redis.Set(ctx, historyKey(userID, limit), data, lc.ttl); err != nil {
		return err
	}
	return lc.redis.Client().SAdd(ctx, historyIndexKey(userID), limit).Err()
}

// InvalidateHistory drops every cached history page for userID.
func (lc *LinkCache) InvalidateHistory(ctx context.Context, userID string) error {
	if lc == nil || lc.redis == nil {
		return nil
	}
	client := lc.redis.Client()
	limits, err := client.SMembers(ctx, historyIndexKey(userID)).Result()
	if err != nil {
		return err
	}
	keys := make([]string, 0, len(limits)+1)
	for _, l := range limits {
		keys = append(keys, fmt.Sprintf("links:%s:%s", userID, l))
	}
	keys = append(keys, historyIndexKey(userID))
	return client.Del(ctx, keys...).Err()
}
