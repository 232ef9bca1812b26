package cache

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/andresuchdata/dairyplan/backend-go/internal/config"
)

const (
	defaultForecastTTL = 5 * time.Minute
	redisPingTimeout   = 5 * time.Second
	redisOpTimeout     = 2 * time.Second
)

// newRedisClient connects and pings; the client is closed again when the
// ping fails.
func newRedisClient(ctx context.Context, cfg config.CacheConfig) (*redis.Client, error) {
	opts, err := buildRedisOptions(cfg)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func forecastTTL(cfg config.CacheConfig) time.Duration {
	if cfg.ForecastTTLSeconds <= 0 {
		return defaultForecastTTL
	}
	return time.Duration(cfg.ForecastTTLSeconds) * time.Second
}

func buildRedisOptions(cfg config.CacheConfig) (*redis.Options, error) {
	var opts *redis.Options
	if cfg.RedisURL != "" {
		parsed, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		opts = parsed
	} else {
		host, port := cfg.RedisHost, cfg.RedisPort
		if host == "" {
			host = "127.0.0.1"
		}
		if port == "" {
			port = "6379"
		}
		opts = &redis.Options{
			Addr:     net.JoinHostPort(host, port),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}
	}

	opts.ReadTimeout = redisOpTimeout
	opts.WriteTimeout = redisOpTimeout
	return opts, nil
}

// unlinkPrefix removes every key under prefix, scanning batch keys at a time.
func unlinkPrefix(ctx context.Context, client *redis.Client, prefix string, batch int64) error {
	iter := client.Scan(ctx, 0, prefix+"*", batch).Iterator()
	keys := make([]string, 0, batch)
	flush := func() error {
		if len(keys) == 0 {
			return nil
		}
		if err := client.Unlink(ctx, keys...).Err(); err != nil {
			return fmt.Errorf("redis unlink failed: %w", err)
		}
		keys = keys[:0]
		return nil
	}

	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if int64(len(keys)) >= batch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan failed: %w", err)
	}
	return flush()
}
