package settings

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/GriffinCanCode/ride-copilot/platform/internal/errors"
)

// HashStore is the subset of Redis the provider needs.
type HashStore interface {
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key string, values map[string]interface{}) error
}

type redisAdapter struct{ c *redis.Client }

func (r redisAdapter) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	return r.c.HGetAll(ctx, key).Result()
}

func (r redisAdapter) HSet(ctx context.Context, key string, values map[string]interface{}) error {
	return r.c.HSet(ctx, key, values).Err()
}

// NewRedisClient creates and verifies a Redis connection.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis.ParseURL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// RedisProvider reads settings from one Redis hash. Fields that are missing
// or not numbers keep their fallback value.
type RedisProvider struct {
	store    HashStore
	key      string
	fallback Settings
}

func NewRedisProvider(c *redis.Client, key string, fallback Settings) *RedisProvider {
	return NewHashProvider(redisAdapter{c}, key, fallback)
}

// NewHashProvider builds a provider over any HashStore.
func NewHashProvider(store HashStore, key string, fallback Settings) *RedisProvider {
	return &RedisProvider{store: store, key: key, fallback: fallback}
}

func (p *RedisProvider) Current(ctx context.Context) (Settings, error) {
	m, err := p.store.HGetAll(ctx, p.key)
	if err != nil {
		return p.fallback, apperrors.Wrap(err, apperrors.CodeUnavailable, "read settings").
			WithMetadata("key", p.key)
	}

	s := p.fallback
	for name, dst := range fields(&s) {
		raw, ok := m[name]
		if !ok {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			slog.Warn("ignoring malformed setting", "key", p.key, "field", name, "value", raw)
			continue
		}
		*dst = v
	}
	return s, nil
}

func (p *RedisProvider) Save(ctx context.Context, s Settings) error {
	values := make(map[string]interface{}, 17)
	for name, v := range fields(&s) {
		values[name] = strconv.FormatFloat(*v, 'f', -1, 64)
	}
	if err := p.store.HSet(ctx, p.key, values); err != nil {
		return apperrors.Wrap(err, apperrors.CodeStorageFailed, "save settings").
			WithMetadata("key", p.key)
	}
	return nil
}
