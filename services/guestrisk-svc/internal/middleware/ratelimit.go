package middleware

import (
	"math"
	"net/http"
	"net/netip"
	"strconv"

	"guestrisk/pkg/apperror"
	"guestrisk/pkg/logger"
	"guestrisk/pkg/metrics"
	"guestrisk/pkg/ratelimit"
)

// KeyExtractor функция извлечения ключа лимита из запроса
type KeyExtractor func(r *http.Request) string

// RateLimitConfig конфигурация rate limiting
type RateLimitConfig struct {
	Limiter      ratelimit.Limiter
	KeyExtractor KeyExtractor // по умолчанию IPKeyExtractor(TrustedProxies)

	TrustedProxies []netip.Prefix
}

// IPKeyExtractor ключ по IP клиента. Заголовки прокси учитываются
// только для соединений из trusted.
func IPKeyExtractor(trusted []netip.Prefix) KeyExtractor {
	return func(r *http.Request) string {
		return "ip:" + ratelimit.ClientIP(r, trusted)
	}
}

// RateLimit отклоняет запросы сверх лимита с 429 и Retry-After.
// Ошибка хранилища лимитов запрос не блокирует.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	if cfg.KeyExtractor == nil {
		cfg.KeyExtractor = IPKeyExtractor(cfg.TrustedProxies)
	}

	return func(next http.Handler) http.Handler {
		if cfg.Limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			key := cfg.KeyExtractor(r)
			decision, err := cfg.Limiter.Allow(r.Context(), key)
			if err != nil {
				logger.FromContext(r.Context()).Warn("Rate limiter unavailable", "key", key, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

			if !decision.Allowed {
				retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
				if retryAfter < 1 {
					retryAfter = 1
				}

				route := RouteTemplate(r)
				metrics.Get().RecordRateLimited(route)
				logger.FromContext(r.Context()).Warn("Rate limit exceeded", "key", key, "route", route)

				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				apperror.WriteHTTP(w, apperror.New(apperror.CodeRateLimited, "rate limit exceeded").
					WithDetails("retry_after_seconds", retryAfter))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
