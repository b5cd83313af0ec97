// db/redis.go
package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	arbiter_errors "github.com/arbiterhq/arbiter/errors"
	logger "github.com/arbiterhq/arbiter/logging"
	"github.com/arbiterhq/arbiter/model"
)

var RedisClient *redis.Client

func InitRedis() error {
	RedisClient = redis.NewClient(&redis.Options{
		Addr:         viper.GetString("redis.addr"),
		Password:     viper.GetString("redis.password"),
		DB:           viper.GetInt("redis.db"),
		DialTimeout:  viper.GetDuration("redis.dialTimeout"),
		ReadTimeout:  viper.GetDuration("redis.readTimeout"),
		WriteTimeout: viper.GetDuration("redis.writeTimeout"),
		PoolSize:     viper.GetInt("redis.poolSize"),
		PoolTimeout:  viper.GetDuration("redis.poolTimeout"),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, err := RedisClient.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Successfully connected to Redis")
	return nil
}

func CloseRedis() {
	if RedisClient != nil {
		if err := RedisClient.Close(); err != nil {
			logger.Error("Error closing Redis connection", zap.Error(err))
		}
	}
}

func entitlementKey(tenantID, principalID string) string {
	return fmt.Sprintf("entitlements:%s:%s", tenantID, principalID)
}

// CacheEntitlements stores one principal's entitlement snapshot with a TTL.
func CacheEntitlements(ctx context.Context, snapshot *model.Entitlements, ttl time.Duration) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal entitlement snapshot: %w", err)
	}

	key := entitlementKey(snapshot.TenantID, snapshot.PrincipalID)
	if err := RedisClient.Set(ctx, key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", arbiter_errors.ErrCacheUnavailable, err)
	}

	logger.Debug("Entitlement snapshot cached",
		zap.String("tenantID", snapshot.TenantID),
		zap.String("principalID", snapshot.PrincipalID))
	return nil
}

// GetCachedEntitlements returns the cached snapshot, or nil on a clean miss.
func GetCachedEntitlements(ctx context.Context, tenantID, principalID string) (*model.Entitlements, error) {
	key := entitlementKey(tenantID, principalID)
	payload, err := RedisClient.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", arbiter_errors.ErrCacheUnavailable, err)
	}

	var snapshot model.Entitlements
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal entitlement snapshot: %w", err)
	}
	return &snapshot, nil
}

// DeleteCachedEntitlements proactively busts one principal's snapshot.
func DeleteCachedEntitlements(ctx context.Context, tenantID, principalID string) error {
	key := entitlementKey(tenantID, principalID)
	if err := RedisClient.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: %v", arbiter_errors.ErrCacheUnavailable, err)
	}
	logger.Debug("Entitlement snapshot invalidated",
		zap.String("tenantID", tenantID),
		zap.String("principalID", principalID))
	return nil
}

func RateLimit(ctx context.Context, key string, limit int, per time.Duration) (bool, error) {
	pipe := RedisClient.Pipeline()
	now := time.Now().UnixNano()
	key = fmt.Sprintf("ratelimit:%s", key)

	pipe.ZRemRangeByScore(ctx, key, "0", fmt.Sprintf("%d", now-(per.Nanoseconds())))
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(now), Member: now})
	pipe.ZCard(ctx, key)
	pipe.Expire(ctx, key, per)

	cmds, err := pipe.Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to execute rate limit commands: %w", err)
	}

	count := cmds[2].(*redis.IntCmd).Val()
	allowed := count <= int64(limit)
	logger.Debug("Rate limit check",
		zap.String("key", key),
		zap.Int64("count", count),
		zap.Int("limit", limit),
		zap.Bool("allowed", allowed))
	return allowed, nil
}
