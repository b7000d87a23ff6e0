package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ResultCache хранит JSON-представления результатов прогонов поверх Cache
type ResultCache struct {
	cache      Cache
	defaultTTL time.Duration
}

// NewResultCache создаёт кэш результатов
func NewResultCache(cache Cache, defaultTTL time.Duration) *ResultCache {
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}
	return &ResultCache{
		cache:      cache,
		defaultTTL: defaultTTL,
	}
}

// Load декодирует значение по ключу в dst.
// Промах и повреждённая запись возвращают false без ошибки.
func (rc *ResultCache) Load(ctx context.Context, key string, dst any) (bool, error) {
	data, err := rc.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrKeyNotFound) {
			return false, nil
		}
		return false, err
	}

	if err := json.Unmarshal(data, dst); err != nil {
		// Повреждённая запись, удаляем
		_ = rc.cache.Delete(ctx, key) //nolint:errcheck // best effort cleanup
		return false, nil
	}

	return true, nil
}

// Store сохраняет значение под ключом
func (rc *ResultCache) Store(ctx context.Context, key string, value any, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = rc.defaultTTL
	}

	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	return rc.cache.Set(ctx, key, data, ttl)
}

// Stats статистика нижележащего кэша
func (rc *ResultCache) Stats(ctx context.Context) (*Stats, error) {
	return rc.cache.Stats(ctx)
}

// Close закрывает нижележащий кэш
func (rc *ResultCache) Close() error {
	return rc.cache.Close()
}
