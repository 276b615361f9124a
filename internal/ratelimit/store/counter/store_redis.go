package counter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"portal/internal/ratelimit/models"
)

// incrementScript increments the counter and sets its expiry on first hit in
// one round trip. Returns {count, ttl_ms}.
var incrementScript = redis.NewScript(`
local c = redis.call("INCR", KEYS[1])
if c == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {c, ttl}
`)

// RedisStore keeps fixed-window counters in Redis so limits hold across
// server instances.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedis(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Increment(ctx context.Context, key models.Key, ttl time.Duration) (models.Counter, error) {
	ttlms := ttl.Milliseconds()
	if ttlms <= 0 {
		ttlms = time.Minute.Milliseconds()
	}
	res, err := incrementScript.Run(ctx, s.client, []string{key.String()}, ttlms).Slice()
	if err != nil {
		return models.Counter{}, fmt.Errorf("ratelimit redis eval: %w", err)
	}
	if len(res) != 2 {
		return models.Counter{}, errors.New("ratelimit redis eval: unexpected result")
	}
	count, ok1 := res[0].(int64)
	pttl, ok2 := res[1].(int64)
	if !ok1 || !ok2 {
		return models.Counter{}, errors.New("ratelimit redis eval: unexpected result type")
	}
	return models.Counter{Count: int(count), TTL: clampTTL(pttl)}, nil
}

func (s *RedisStore) Get(ctx context.Context, key models.Key) (models.Counter, error) {
	pipe := s.client.Pipeline()
	getCmd := pipe.Get(ctx, key.String())
	ttlCmd := pipe.PTTL(ctx, key.String())
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return models.Counter{}, fmt.Errorf("ratelimit redis get: %w", err)
	}
	count, err := getCmd.Int()
	if errors.Is(err, redis.Nil) {
		return models.Counter{}, nil
	}
	if err != nil {
		return models.Counter{}, fmt.Errorf("ratelimit redis get: %w", err)
	}
	return models.Counter{Count: count, TTL: max(ttlCmd.Val(), 0)}, nil
}

func (s *RedisStore) Reset(ctx context.Context, key models.Key) error {
	if err := s.client.Del(ctx, key.String()).Err(); err != nil {
		return fmt.Errorf("ratelimit redis del: %w", err)
	}
	return nil
}

func clampTTL(ms int64) time.Duration {
	if ms < 0 {
		return 0
	}
	return time.Duration(ms) * time.Millisecond
}
