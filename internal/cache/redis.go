package cache

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/mcncl/jsonflat/internal/errors"
	"github.com/mcncl/jsonflat/internal/models"
)

const keyPrefix = "jsonflat:result:"

// Redis shares results between server instances.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis connects to addr and checks the connection with a PING.
func NewRedis(ctx context.Context, addr string, ttl time.Duration) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.NewStorageError("could not connect to Redis at "+addr, err)
	}
	return &Redis{client: rdb, ttl: ttl}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (*models.ConversionResult, bool, error) {
	data, err := r.client.Get(ctx, keyPrefix+key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewStorageError("failed to read cached result", err)
	}

	var result models.ConversionResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false, errors.NewStorageError("failed to decode cached result", err)
	}
	return &result, true, nil
}

func (r *Redis) Put(ctx context.Context, key string, result *models.ConversionResult) error {
	data, err := json.Marshal(result)
	if err != nil {
		return errors.NewStorageError("failed to encode result", err)
	}
	if err := r.client.Set(ctx, keyPrefix+key, data, r.ttl).Err(); err != nil {
		return errors.NewStorageError("failed to cache result", err)
	}
	return nil
}

// Close closes the Redis client.
func (r *Redis) Close() error {
	return r.client.Close()
}
