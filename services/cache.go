package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"churn-prediction-api/config"
	"churn-prediction-api/logger"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"
)

const (
	ChannelPredictions = "churn:predictions"
	ChannelAlerts      = "churn:alerts"

	AnalyticsKeyPrefix = "analytics:"
	AnalyticsTTL       = 30 * time.Second

	connectAttempts = 10
)

func AnalyticsKey(name string) string { return AnalyticsKeyPrefix + name }

// CacheService wraps redis for response caching and pub/sub. A service
// without a client is valid: reads miss and writes are dropped.
type CacheService struct {
	client *redis.Client
}

// NewCacheService connects and pings with backoff. On failure it still
// returns a usable, disabled service alongside the error.
func NewCacheService(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*CacheService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	attempt := 0
	b := retry.WithMaxRetries(connectAttempts-1, retry.NewConstant(2*time.Second))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			log.Warn("redis ping failed", "attempt", attempt, "max", connectAttempts, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = client.Close()
		return Disabled(), fmt.Errorf("redis ping failed after %d attempts: %w", attempt, err)
	}
	return &CacheService{client: client}, nil
}

// NewCacheServiceFromClient wraps an existing client.
func NewCacheServiceFromClient(client *redis.Client) *CacheService {
	return &CacheService{client: client}
}

func Disabled() *CacheService { return &CacheService{} }

func (s *CacheService) Client() *redis.Client {
	return s.client
}

func (s *CacheService) Available() bool {
	return s != nil && s.client != nil
}

// Get decodes the cached JSON value into dest and reports whether the key
// was present.
func (s *CacheService) Get(ctx context.Context, key string, dest any) (bool, error) {
	if !s.Available() {
		return false, nil
	}
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (s *CacheService) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if !s.Available() {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

// DeletePrefix removes every key starting with prefix.
func (s *CacheService) DeletePrefix(ctx context.Context, prefix string) error {
	if !s.Available() {
		return nil
	}
	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.client.Del(ctx, keys...).Err()
}

func (s *CacheService) Publish(ctx context.Context, channel string, message any) error {
	if !s.Available() {
		return nil
	}
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, channel, data).Err()
}

// Subscribe returns nil when no client is configured.
func (s *CacheService) Subscribe(ctx context.Context, channels ...string) *redis.PubSub {
	if !s.Available() {
		return nil
	}
	return s.client.Subscribe(ctx, channels...)
}

func (s *CacheService) Close() error {
	if !s.Available() {
		return nil
	}
	return s.client.Close()
}
