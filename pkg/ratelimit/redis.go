package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// slidingWindowScript атомарно чистит окно, считает и добавляет запрос.
// Возвращает {allowed, remaining, retry_after_ms}.
var slidingWindowScript = redis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])
	local now = tonumber(ARGV[3])
	local member = ARGV[4]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
	local current = redis.call('ZCARD', key)

	if current < limit then
		redis.call('ZADD', key, now, member)
		redis.call('PEXPIRE', key, window)
		return {1, limit - current - 1, 0}
	end

	local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
	local retry = window
	if oldest[2] then
		retry = tonumber(oldest[2]) + window - now
	end
	if retry < 1 then
		retry = 1
	end
	return {0, 0, retry}
`)

// RedisLimiter распределённый sliding window поверх sorted set
type RedisLimiter struct {
	client redis.UniversalClient
	config *Config
	seq    func() int64
}

// NewRedisLimiter создаёт Redis rate limiter и проверяет соединение
func NewRedisLimiter(cfg *Config) (*RedisLimiter, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr, err)
	}

	return NewRedisLimiterWithClient(client, cfg), nil
}

// NewRedisLimiterWithClient оборачивает готовый клиент
func NewRedisLimiterWithClient(client redis.UniversalClient, cfg *Config) *RedisLimiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &RedisLimiter{
		client: client,
		config: cfg,
		seq:    func() int64 { return time.Now().UnixNano() },
	}
}

func (l *RedisLimiter) key(k string) string {
	return l.config.RedisKeyPrefix + k
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := time.Now().UnixMilli()
	member := fmt.Sprintf("%d:%d", now, l.seq())

	result, err := slidingWindowScript.Run(ctx, l.client, []string{l.key(key)},
		l.config.Requests, l.config.Window.Milliseconds(), now, member).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("ratelimit script: %w", err)
	}
	if len(result) != 3 {
		return Decision{}, fmt.Errorf("ratelimit script: unexpected reply %v", result)
	}

	return Decision{
		Allowed:    result[0] == 1,
		Limit:      l.config.Requests,
		Remaining:  int(result[1]),
		RetryAfter: time.Duration(result[2]) * time.Millisecond,
	}, nil
}

func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
