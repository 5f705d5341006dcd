package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrRedisNil key does not exist
var ErrRedisNil = errors.New("redis: nil")

// RedisRepository JSON value store keyed by string
type RedisRepository[T any] interface {
	// Set ttl 0 表示不過期
	Set(ctx context.Context, key string, value T, ttl time.Duration) error
	// Get ErrRedisNil when the key is missing
	Get(ctx context.Context, key string) (T, error)
}

type redisRepository[T any] struct {
	client *redis.Client
}

// NewRedisClient connect Redis, through sentinel when MasterName is set
func NewRedisClient(c RedisConnection) (*redis.Client, error) {
	return dialWithRetry("redis", retryPolicy(c.RetryCount, c.RetryInterval), func() (*redis.Client, error) {
		var rdb *redis.Client
		if c.MasterName != "" {
			rdb = redis.NewFailoverClient(&redis.FailoverOptions{
				MasterName:    c.MasterName,    // 哨兵主节点名称
				SentinelAddrs: c.SentinelAddrs, // 哨兵地址列表
				Password:      c.Password,
				DB:            c.DB,
			})
		} else {
			rdb = redis.NewClient(&redis.Options{
				Addr:     c.Address,
				Password: c.Password,
				DB:       c.DB,
			})
		}

		if err := rdb.Ping(context.Background()).Err(); err != nil {
			_ = rdb.Close()
			return nil, err
		}
		return rdb, nil
	})
}

// NewRedisRepository typed store on an open client
func NewRedisRepository[T any](client *redis.Client) RedisRepository[T] {
	return &redisRepository[T]{client: client}
}

func (r *redisRepository[T]) Set(ctx context.Context, key string, value T, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return r.client.Set(ctx, key, data, ttl).Err()
}

func (r *redisRepository[T]) Get(ctx context.Context, key string) (T, error) {
	var result T
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return result, ErrRedisNil
	}
	if err != nil {
		return result, fmt.Errorf("get %s: %w", key, err)
	}
	if err := json.Unmarshal(val, &result); err != nil {
		return result, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return result, nil
}
