package identify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/matheus3301/sightings/internal/sighting"
	"github.com/redis/go-redis/v9"
)

// Cache stores lookup results keyed by normalized term.
type Cache interface {
	Get(ctx context.Context, term string) ([]sighting.Candidate, bool, error)
	Set(ctx context.Context, term string, c []sighting.Candidate, ttl time.Duration) error
}

const keyPrefix = "sightings:lookup:"

type RedisCache struct {
	rdb *redis.Client
}

func NewRedisCache(addr, password string, db int) *RedisCache {
	return &RedisCache{rdb: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

func (r *RedisCache) Get(ctx context.Context, term string) ([]sighting.Candidate, bool, error) {
	raw, err := r.rdb.Get(ctx, keyPrefix+term).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	var out []sighting.Candidate
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (r *RedisCache) Set(ctx context.Context, term string, c []sighting.Candidate, ttl time.Duration) error {
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return r.rdb.Set(ctx, keyPrefix+term, raw, ttl).Err()
}

func (r *RedisCache) Close() error {
	return r.rdb.Close()
}
