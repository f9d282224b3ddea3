package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOption configures NewRedisCache.
type RedisOption func(*redis.Options, *redisSettings)

type redisSettings struct {
	prefix      string
	pingTimeout time.Duration
}

func WithRedisAddr(addr string) RedisOption {
	return func(o *redis.Options, _ *redisSettings) {
		if addr != "" {
			o.Addr = addr
		}
	}
}

// WithRedisAuth sets the password and database index.
func WithRedisAuth(password string, db int) RedisOption {
	return func(o *redis.Options, _ *redisSettings) {
		o.Password = password
		o.DB = db
	}
}

func WithRedisPoolSize(n int) RedisOption {
	return func(o *redis.Options, _ *redisSettings) {
		if n > 0 {
			o.PoolSize = n
		}
	}
}

// WithRedisPrefix namespaces every key as prefix:key.
func WithRedisPrefix(prefix string) RedisOption {
	return func(_ *redis.Options, s *redisSettings) { s.prefix = prefix }
}

// RedisCache implements Service on a single Redis node.
type RedisCache struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisCache connects and pings once so a bad address fails at startup.
func NewRedisCache(opts ...RedisOption) (*RedisCache, error) {
	o := &redis.Options{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 1,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	}
	s := &redisSettings{prefix: "pairflow", pingTimeout: 5 * time.Second}
	for _, opt := range opts {
		opt(o, s)
	}

	client := redis.NewClient(o)
	ctx, cancel := context.WithTimeout(context.Background(), s.pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", o.Addr, err)
	}
	return NewRedisCacheFromClient(client, s.prefix), nil
}

// NewRedisCacheFromClient wraps an existing client, e.g. a cluster client.
func NewRedisCacheFromClient(client redis.UniversalClient, prefix string) *RedisCache {
	return &RedisCache{client: client, prefix: prefix}
}

func (r *RedisCache) key(k string) string {
	if r.prefix == "" {
		return k
	}
	return r.prefix + ":" + k
}

func (r *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	if err != nil {
		return fmt.Errorf("redis get %s: %w", key, err)
	}
	return unmarshal(data, dest)
}

// Set writes with ttl; zero keeps the key until deleted.
func (r *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := marshal(value)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(key), data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, r.key(k))
	}
	return r.client.Unlink(ctx, full...).Err()
}

func (r *RedisCache) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }
func (r *RedisCache) Backend() string                { return "redis" }
func (r *RedisCache) Close() error                   { return r.client.Close() }
