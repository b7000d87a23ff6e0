package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// MemoryLimiter in-memory реализация rate limiter
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	config  *Config
	now     func() time.Time
	stopCh  chan struct{}
	closed  bool
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
	requests  []time.Time // для sliding window, по возрастанию
}

// NewMemoryLimiter создаёт in-memory rate limiter
func NewMemoryLimiter(cfg *Config) *MemoryLimiter {
	return newMemoryLimiter(cfg, time.Now)
}

func newMemoryLimiter(cfg *Config, now func() time.Time) *MemoryLimiter {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}

	l := &MemoryLimiter{
		buckets: make(map[string]*bucket),
		config:  cfg,
		now:     now,
		stopCh:  make(chan struct{}),
	}

	go l.cleanup()

	return l
}

func (l *MemoryLimiter) capacity() int {
	return l.config.Requests + l.config.BurstSize
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return Decision{}, ErrLimiterClosed
	}

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{
			tokens:    float64(l.capacity()),
			lastCheck: now,
		}
		l.buckets[key] = b
	}

	if l.config.Strategy == StrategyTokenBucket {
		return l.allowTokenBucket(b, now), nil
	}
	return l.allowSlidingWindow(b, now), nil
}

func (l *MemoryLimiter) allowTokenBucket(b *bucket, now time.Time) Decision {
	rate := float64(l.config.Requests) / l.config.Window.Seconds()

	b.tokens += now.Sub(b.lastCheck).Seconds() * rate
	b.lastCheck = now
	if maxTokens := float64(l.capacity()); b.tokens > maxTokens {
		b.tokens = maxTokens
	}

	d := Decision{Limit: l.capacity()}
	if b.tokens >= 1 {
		b.tokens--
		d.Allowed = true
		d.Remaining = int(b.tokens)
		return d
	}

	// Время до появления целого токена
	wait := (1 - b.tokens) / rate
	d.RetryAfter = time.Duration(math.Ceil(wait*1000)) * time.Millisecond
	return d
}

func (l *MemoryLimiter) allowSlidingWindow(b *bucket, now time.Time) Decision {
	b.requests = trimBefore(b.requests, now.Add(-l.config.Window))
	b.lastCheck = now

	d := Decision{Limit: l.config.Requests}
	if len(b.requests) < l.config.Requests {
		b.requests = append(b.requests, now)
		d.Allowed = true
		d.Remaining = l.config.Requests - len(b.requests)
		return d
	}

	// Освободится, когда старейший запрос выйдет из окна
	d.RetryAfter = b.requests[0].Add(l.config.Window).Sub(now)
	if d.RetryAfter <= 0 {
		d.RetryAfter = time.Millisecond
	}
	return d
}

// trimBefore отбрасывает отметки не позже границы окна
func trimBefore(requests []time.Time, windowStart time.Time) []time.Time {
	i := 0
	for i < len(requests) && !requests[i].After(windowStart) {
		i++
	}
	if i == 0 {
		return requests
	}
	return append(requests[:0], requests[i:]...)
}

func (l *MemoryLimiter) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}

	l.closed = true
	close(l.stopCh)
	l.buckets = nil

	return nil
}

func (l *MemoryLimiter) cleanup() {
	ticker := time.NewTicker(l.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopCh:
			return
		case <-ticker.C:
			l.doCleanup()
		}
	}
}

// doCleanup удаляет ключи, не активные дольше двух окон
func (l *MemoryLimiter) doCleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	staleBefore := l.now().Add(-2 * l.config.Window)
	for key, b := range l.buckets {
		b.requests = trimBefore(b.requests, staleBefore)
		if len(b.requests) == 0 && b.lastCheck.Before(staleBefore) {
			delete(l.buckets, key)
		}
	}
}
