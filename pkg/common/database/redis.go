package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/synaptica-ai/hospital-import/pkg/common/config"
	"github.com/synaptica-ai/hospital-import/pkg/common/logger"
)

var (
	redisClient *redis.Client
	redisErr    error
	redisOnce   sync.Once
)

// GetRedis returns the shared client used for import run locks. The ping error is
// returned so callers relying on the lock can refuse to start without it.
func GetRedis(ctx context.Context) (*redis.Client, error) {
	redisOnce.Do(func() {
		cfg := config.Load()
		redisClient = redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%s", cfg.RedisHost, cfg.RedisPort),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if redisErr = redisClient.Ping(pingCtx).Err(); redisErr != nil {
			logger.Log.WithError(redisErr).Error("Failed to connect to Redis")
			return
		}
		logger.Log.Info("Connected to Redis")
	})

	return redisClient, redisErr
}

func CloseRedis() error {
	if redisClient != nil {
		return redisClient.Close()
	}
	return nil
}
