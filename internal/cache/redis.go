package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/shieldsocial/commentsync/internal/ingest"
	"github.com/shieldsocial/commentsync/pkg/config"
	"github.com/shieldsocial/commentsync/pkg/logging"
)

const keyPrefix = "commentsync:"

// ErrCacheDisabled is returned when cache operations are attempted but cache is disabled
var ErrCacheDisabled = errors.New("cache is disabled")

// Cache keeps the last ingestion result per account in Redis. A nil *Cache
// is a valid, disabled cache.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ingest.ResultStore = (*Cache)(nil)

// New creates a new Redis cache client. It returns nil, nil when Redis is
// not configured.
func New(cfg *config.RedisConfig) (*Cache, error) {
	if !cfg.Enabled {
		logging.GetLogger().Info("Redis cache disabled")
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.GetLogger().Info("Redis connection established")

	return &Cache{client: client, ttl: cfg.ResultTTL}, nil
}

func (c *Cache) namespaceKey(key string) string {
	return keyPrefix + key
}

func resultKey(accountID string) string {
	return "result:" + accountID
}

// SaveResult stores r as the account's last result
func (c *Cache) SaveResult(ctx context.Context, r ingest.Result) error {
	if c == nil || c.client == nil {
		return ErrCacheDisabled
	}
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return c.client.Set(ctx, c.namespaceKey(resultKey(r.AccountID)), payload, c.ttl).Err()
}

// GetResult returns the account's last result, or nil when none is cached
func (c *Cache) GetResult(ctx context.Context, accountID string) (*ingest.Result, error) {
	if c == nil || c.client == nil {
		return nil, ErrCacheDisabled
	}
	payload, err := c.client.Get(ctx, c.namespaceKey(resultKey(accountID))).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var r ingest.Result
	if err := json.Unmarshal(payload, &r); err != nil {
		return nil, fmt.Errorf("failed to decode cached result: %w", err)
	}
	return &r, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Health checks Redis health
func (c *Cache) Health(ctx context.Context) error {
	if c == nil || c.client == nil {
		return ErrCacheDisabled
	}
	return c.client.Ping(ctx).Err()
}
