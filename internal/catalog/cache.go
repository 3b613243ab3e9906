package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/mesavia/restaurant-ai-platform/pkg/logging"
)

var cacheTracer = otel.Tracer("mesavia.internal.catalog.cache")

const menuCacheKeyPrefix = "menu:"

// Cache wraps the repository with a Redis read-through cache for the menu.
// The menu is read on every ordering turn to build AI instructions, so it
// is the one catalog read worth caching. A nil Redis client degrades to
// direct repository reads.
type Cache struct {
	repo   *Repository
	redis  *redis.Client
	ttl    time.Duration
	logger *logging.Logger
}

// NewCache creates the read-through cache.
func NewCache(repo *Repository, redisClient *redis.Client, ttl time.Duration, logger *logging.Logger) *Cache {
	if logger == nil {
		logger = logging.Default()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cache{repo: repo, redis: redisClient, ttl: ttl, logger: logger}
}

// Branch passes through to the repository; branch rows are small and carry
// the QR token, which must never be read stale.
func (c *Cache) Branch(ctx context.Context, branchID string) (*Branch, error) {
	return c.repo.Branch(ctx, branchID)
}

// BranchByNumber passes through to the repository.
func (c *Cache) BranchByNumber(ctx context.Context, whatsappNumber string) (*Branch, error) {
	return c.repo.BranchByNumber(ctx, whatsappNumber)
}

// ActiveMenu returns the cached menu when fresh, falling back to the
// repository and repopulating on miss. Cache failures degrade to direct
// reads, never to request failures.
func (c *Cache) ActiveMenu(ctx context.Context, branchID string) ([]MenuItem, error) {
	if c.redis == nil {
		return c.repo.ActiveMenu(ctx, branchID)
	}

	ctx, span := cacheTracer.Start(ctx, "catalog.cache.active_menu")
	defer span.End()

	key := menuCacheKeyPrefix + branchID
	raw, err := c.redis.Get(ctx, key).Result()
	if err == nil {
		var items []MenuItem
		if err := json.Unmarshal([]byte(raw), &items); err == nil {
			return items, nil
		}
		c.logger.Warn("menu cache entry corrupted, refetching", "branch_id", branchID)
	} else if err != redis.Nil {
		c.logger.Warn("menu cache read failed", "branch_id", branchID, "error", err)
	}

	items, err := c.repo.ActiveMenu(ctx, branchID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(items); err == nil {
		if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
			c.logger.Warn("menu cache write failed", "branch_id", branchID, "error", err)
		}
	}
	return items, nil
}

// Invalidate drops the cached menu for a branch, e.g. after a menu edit.
func (c *Cache) Invalidate(ctx context.Context, branchID string) error {
	if c.redis == nil {
		return nil
	}
	if err := c.redis.Del(ctx, menuCacheKeyPrefix+branchID).Err(); err != nil {
		return fmt.Errorf("catalog: failed to invalidate menu cache: %w", err)
	}
	return nil
}

// RotateQRToken rotates through to the repository.
func (c *Cache) RotateQRToken(ctx context.Context, branchID string) (string, error) {
	return c.repo.RotateQRToken(ctx, branchID)
}
