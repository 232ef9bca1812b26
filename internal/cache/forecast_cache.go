package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/dairyplan/backend-go/internal/config"
	"github.com/andresuchdata/dairyplan/backend-go/internal/domain"
)

const (
	forecastKeyPrefix     = "forecast"
	forecastScanBatchSize = 100
)

// ForecastRequest identifies one generated forecast. TrainedAt ties the
// entry to the model revision it came from.
type ForecastRequest struct {
	ProductKey     string
	Horizon        int
	IncludeHistory bool
	TrainedAt      time.Time
}

type ForecastCache interface {
	Get(ctx context.Context, req ForecastRequest) (domain.ForecastSeries, bool, error)
	Set(ctx context.Context, req ForecastRequest, series domain.ForecastSeries) error
	Invalidate(ctx context.Context, productKey string) error
	InvalidateAll(ctx context.Context) error
}

type redisForecastCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopForecastCache struct{}

// NewForecastCache returns a Redis cache, or a no-op cache when caching is disabled.
func NewForecastCache(cfg config.CacheConfig) (ForecastCache, error) {
	if !cfg.Enabled {
		return &noopForecastCache{}, nil
	}

	client, err := newRedisClient(context.Background(), cfg)
	if err != nil {
		return nil, err
	}

	return &redisForecastCache{
		client: client,
		ttl:    forecastTTL(cfg),
	}, nil
}

func NewNoopForecastCache() ForecastCache {
	return &noopForecastCache{}
}

func (c *redisForecastCache) Get(ctx context.Context, req ForecastRequest) (domain.ForecastSeries, bool, error) {
	payload, err := c.client.Get(ctx, buildForecastKey(req)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.ForecastSeries{}, false, nil
	}
	if err != nil {
		return domain.ForecastSeries{}, false, fmt.Errorf("redis get failed: %w", err)
	}

	var series domain.ForecastSeries
	if err := json.Unmarshal(payload, &series); err != nil {
		return domain.ForecastSeries{}, false, fmt.Errorf("decode forecast cache: %w", err)
	}
	return series, true, nil
}

func (c *redisForecastCache) Set(ctx context.Context, req ForecastRequest, series domain.ForecastSeries) error {
	payload, err := json.Marshal(series)
	if err != nil {
		return fmt.Errorf("encode forecast cache: %w", err)
	}
	if err := c.client.Set(ctx, buildForecastKey(req), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisForecastCache) Invalidate(ctx context.Context, productKey string) error {
	return unlinkPrefix(ctx, c.client, productPrefix(productKey), forecastScanBatchSize)
}

func (c *redisForecastCache) InvalidateAll(ctx context.Context) error {
	return unlinkPrefix(ctx, c.client, forecastKeyPrefix+":", forecastScanBatchSize)
}

func (n *noopForecastCache) Get(ctx context.Context, req ForecastRequest) (domain.ForecastSeries, bool, error) {
	return domain.ForecastSeries{}, false, nil
}

func (n *noopForecastCache) Set(ctx context.Context, req ForecastRequest, series domain.ForecastSeries) error {
	return nil
}

func (n *noopForecastCache) Invalidate(ctx context.Context, productKey string) error {
	return nil
}

func (n *noopForecastCache) InvalidateAll(ctx context.Context) error {
	return nil
}

// product keys are hashed so SCAN patterns never see glob characters
func productPrefix(productKey string) string {
	sum := sha1.Sum([]byte(productKey))
	return fmt.Sprintf("%s:%s:", forecastKeyPrefix, hex.EncodeToString(sum[:]))
}

func buildForecastKey(req ForecastRequest) string {
	return fmt.Sprintf("%sh=%d|hist=%t|rev=%d", productPrefix(req.ProductKey), req.Horizon, req.IncludeHistory, req.TrainedAt.UnixNano())
}
