package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jonathan/ats-analyzer/internal/logger"
	"github.com/jonathan/ats-analyzer/internal/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultRedisPrefix namespaces analysis keys in a shared Redis
const DefaultRedisPrefix = "ats:analysis:"

// RedisOptions configures a Redis cache
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// TTL of stored entries. Zero keeps entries until evicted by Redis.
	TTL    time.Duration
	Prefix string
	Logger *zap.Logger
}

// Redis stores results as JSON documents in Redis.
type Redis struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
	logger *zap.Logger
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, opts RedisOptions) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	c := NewRedisFromClient(client, opts.TTL, opts.Prefix, opts.Logger)
	c.logger.Info("redis cache initialized", zap.String("addr", opts.Addr))
	return c, nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client redis.UniversalClient, ttl time.Duration, prefix string, log *zap.Logger) *Redis {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &Redis{
		client: client,
		ttl:    ttl,
		prefix: prefix,
		logger: logger.OrNop(log),
	}
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Ping checks the connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Get implements Cache.
func (r *Redis) Get(ctx context.Context, key string) (*types.AnalysisResult, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &StoreError{Backend: "redis", Op: "get", Cause: err}
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, &StoreError{Backend: "redis", Op: "decode", Cause: err}
	}
	if entry.Result == nil {
		return nil, false, nil
	}

	r.logger.Debug("analysis cache hit", zap.String("key", key))
	return entry.Result, true, nil
}

// Put implements Cache.
func (r *Redis) Put(ctx context.Context, key string, result *types.AnalysisResult) error {
	data, err := json.Marshal(Entry{Key: key, Result: result, CreatedAt: time.Now().UTC()})
	if err != nil {
		return &StoreError{Backend: "redis", Op: "encode", Cause: err}
	}
	if err := r.client.Set(ctx, r.prefix+key, data, r.ttl).Err(); err != nil {
		return &StoreError{Backend: "redis", Op: "set", Cause: err}
	}

	r.logger.Debug("analysis cached", zap.String("key", key), zap.Duration("ttl", r.ttl))
	return nil
}
