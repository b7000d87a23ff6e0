// Package ratelimit ограничивает частоту запросов к API симуляций.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"guestrisk/pkg/config"
)

// Стратегии и хранилища
const (
	StrategySlidingWindow = "sliding_window"
	StrategyTokenBucket   = "token_bucket"

	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// ErrLimiterClosed возвращается после Close
var ErrLimiterClosed = errors.New("limiter is closed")

// Limiter интерфейс ограничителя запросов
type Limiter interface {
	// Allow списывает один запрос с ключа и сообщает, пропущен ли он
	Allow(ctx context.Context, key string) (Decision, error)

	// Close закрывает лимитер
	Close() error
}

// Decision результат проверки лимита
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration // > 0 только для отклонённых запросов
}

// Config конфигурация rate limiter
type Config struct {
	Requests        int
	Window          time.Duration
	Strategy        string
	Backend         string
	BurstSize       int
	CleanupInterval time.Duration

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string

	// TrustedProxies сети, чьим X-Forwarded-For и X-Real-IP можно верить
	TrustedProxies []netip.Prefix
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		Requests:        60,
		Window:          time.Minute,
		Strategy:        StrategySlidingWindow,
		Backend:         BackendMemory,
		BurstSize:       0,
		CleanupInterval: 5 * time.Minute,
		RedisKeyPrefix:  "guestrisk:ratelimit:",
	}
}

// FromConfig переносит настройки сервиса в конфигурацию лимитера
func FromConfig(cfg config.RateLimitConfig) *Config {
	out := DefaultConfig()
	if cfg.Requests > 0 {
		out.Requests = cfg.Requests
	}
	if cfg.Window > 0 {
		out.Window = cfg.Window
	}
	if cfg.Strategy != "" {
		out.Strategy = cfg.Strategy
	}
	if cfg.Backend != "" {
		out.Backend = cfg.Backend
	}
	if cfg.CleanupInterval > 0 {
		out.CleanupInterval = cfg.CleanupInterval
	}
	out.BurstSize = cfg.BurstSize
	out.RedisAddr = cfg.RedisAddr
	// адреса уже проверены config.Validate
	out.TrustedProxies, _ = ParseTrustedProxies(cfg.TrustedProxies)
	return out
}

// ParseTrustedProxies разбирает список адресов и CIDR.
// Одиночный адрес превращается в префикс полной длины.
func ParseTrustedProxies(entries []string) ([]netip.Prefix, error) {
	out := make([]netip.Prefix, 0, len(entries))
	for _, e := range entries {
		if prefix, err := netip.ParsePrefix(e); err == nil {
			out = append(out, prefix.Masked())
			continue
		}
		addr, err := netip.ParseAddr(e)
		if err != nil {
			return out, fmt.Errorf("trusted proxy %q: not an address or CIDR", e)
		}
		addr = addr.Unmap()
		out = append(out, netip.PrefixFrom(addr, addr.BitLen()))
	}
	return out, nil
}

// New создаёт лимитер на основе конфигурации
func New(cfg *Config) (Limiter, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	switch cfg.Backend {
	case BackendRedis:
		return NewRedisLimiter(cfg)
	default:
		return NewMemoryLimiter(cfg), nil
	}
}

// ClientIP извлекает ключ клиента из запроса.
// Заголовки X-Forwarded-For и X-Real-IP учитываются, только если соединение
// пришло от доверенного прокси. Цепочка X-Forwarded-For читается справа,
// доверенные прокси пропускаются, первый чужой адрес и есть клиент.
func ClientIP(r *http.Request, trusted []netip.Prefix) string {
	remote := remoteHost(r.RemoteAddr)
	if !isTrusted(remote, trusted) {
		return remote
	}

	if xff := r.Header.Values("X-Forwarded-For"); len(xff) > 0 {
		hops := strings.Split(strings.Join(xff, ","), ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !isTrusted(hop, trusted) || i == 0 {
				return hop
			}
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	return remote
}

func remoteHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		if remoteAddr == "" {
			return "unknown"
		}
		return remoteAddr
	}
	return host
}

func isTrusted(host string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, p := range trusted {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}
