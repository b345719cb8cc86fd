package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spendhub/spendhub/internal/money"
)

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RedisTotals caches monthly spend totals in redis. It is best-effort:
// redis errors degrade to a cache miss and are logged at warn, never
// surfaced to the caller.
//
// Invalidation uses a per-owner version key instead of SCAN: every
// cached total embeds the owner's current version, so bumping the
// version orphans all of the owner's entries at once and TTL reaps them.
type RedisTotals struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRedisTotals(cfg RedisConfig, ttl time.Duration, logger *slog.Logger) *RedisTotals {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})

	return &RedisTotals{rdb: rdb, ttl: ttl, logger: logger}
}

func (c *RedisTotals) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

func (c *RedisTotals) Close() error {
	return c.rdb.Close()
}

func (c *RedisTotals) versionKey(ownerID string) string {
	return "totals_ver:" + ownerID
}

func (c *RedisTotals) totalKey(ownerID string, ver int64, ym string) string {
	return fmt.Sprintf("totals:%s:%d:%s", ownerID, ver, ym)
}

func (c *RedisTotals) version(ctx context.Context, ownerID string) (int64, error) {
	v, err := c.rdb.Get(ctx, c.versionKey(ownerID)).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

func (c *RedisTotals) GetTotal(ctx context.Context, ownerID string, ym string) (money.Amount, bool) {
	ver, err := c.version(ctx, ownerID)
	if err != nil {
		c.logger.WarnContext(ctx, "totals cache read failed", "error", err)
		return 0, false
	}

	v, err := c.rdb.Get(ctx, c.totalKey(ownerID, ver, ym)).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.WarnContext(ctx, "totals cache read failed", "error", err)
		}
		return 0, false
	}

	cents, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}

	return money.Amount(cents), true
}

func (c *RedisTotals) SetTotal(ctx context.Context, ownerID string, ym string, total money.Amount) {
	ver, err := c.version(ctx, ownerID)
	if err != nil {
		c.logger.WarnContext(ctx, "totals cache write failed", "error", err)
		return
	}

	key := c.totalKey(ownerID, ver, ym)
	if err := c.rdb.Set(ctx, key, int64(total), c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "totals cache write failed", "error", err)
	}
}

func (c *RedisTotals) InvalidateOwner(ctx context.Context, ownerID string) {
	if err := c.rdb.Incr(ctx, c.versionKey(ownerID)).Err(); err != nil {
		c.logger.WarnContext(ctx, "totals cache invalidate failed", "error", err)
	}
}
