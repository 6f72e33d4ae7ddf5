package ratelimit

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// allowScript is the fixed-window check-and-increment, run atomically on the
// server. Returns {allowed, count, pttl}.
var allowScript = redis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if cur and tonumber(cur) >= tonumber(ARGV[1]) then
  return {0, tonumber(cur), redis.call("PTTL", KEYS[1])}
end
local n = redis.call("INCR", KEYS[1])
if n == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return {1, n, redis.call("PTTL", KEYS[1])}
`)

// RedisStore shares limiter windows between instances. Expiry is delegated to
// Redis key TTLs, so no sweep is needed.
type RedisStore struct {
	rdb  *redis.Client
	opts Options
}

var _ Store = (*RedisStore)(nil)
var _ Inspector = (*RedisStore)(nil)

func NewRedisStore(rdb *redis.Client, opts Options) *RedisStore {
	return &RedisStore{rdb: rdb, opts: opts.withDefaults()}
}

func (s *RedisStore) key(client string) string { return s.opts.KeyPrefix + client }

func (s *RedisStore) Allow(ctx context.Context, key string) (Decision, error) {
	now := s.opts.Clock()
	res, err := allowScript.Run(ctx, s.rdb, []string{s.key(key)},
		s.opts.MaxRequests, s.opts.Window.Milliseconds()).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit script: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("rate limit script: unexpected reply %v", res)
	}

	ttl := time.Duration(res[2]) * time.Millisecond
	if ttl < 0 {
		ttl = s.opts.Window
	}
	return Decision{
		Allowed: res[0] == 1,
		Count:   int(res[1]),
		ResetAt: now.Add(ttl),
	}, nil
}

// Entries scans every limiter key under the configured prefix.
func (s *RedisStore) Entries(ctx context.Context) ([]Entry, error) {
	now := s.opts.Clock()
	var (
		cursor uint64
		out    []Entry
	)
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, s.opts.KeyPrefix+"*", 200).Result()
		if err != nil {
			return nil, fmt.Errorf("scan rate limit keys: %w", err)
		}
		for _, k := range keys {
			count, err := s.rdb.Get(ctx, k).Int()
			if err == redis.Nil {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("get %s: %w", k, err)
			}
			ttl, err := s.rdb.PTTL(ctx, k).Result()
			if err != nil {
				return nil, fmt.Errorf("pttl %s: %w", k, err)
			}
			out = append(out, Entry{
				Key:     strings.TrimPrefix(k, s.opts.KeyPrefix),
				Count:   count,
				ResetAt: now.Add(ttl),
			})
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) (bool, error) {
	n, err := s.rdb.Del(ctx, s.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", key, err)
	}
	return n > 0, nil
}
