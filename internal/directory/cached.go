package directory

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"loan-assistant/internal/common/logger"
	"loan-assistant/internal/models"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const cacheKeyPrefix = "loan:customer:"

// CachedDirectory puts a Redis cache in front of another directory. Only hits
// are cached so new customers show up without waiting for the TTL. A Redis
// outage degrades to direct lookups.
type CachedDirectory struct {
	next   Directory
	redis  redis.Cmdable
	ttl    time.Duration
	logger logger.Logger
	group  singleflight.Group
}

func NewCachedDirectory(next Directory, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *CachedDirectory {
	return &CachedDirectory{
		next:   next,
		redis:  rdb,
		ttl:    ttl,
		logger: logger.ForComponent(log, "directory.cache"),
	}
}

func (c *CachedDirectory) Lookup(ctx context.Context, phone string) (*models.Customer, error) {
	key := cacheKeyPrefix + phone

	if raw, err := c.redis.Get(ctx, key).Bytes(); err == nil {
		var cust models.Customer
		if err := json.Unmarshal(raw, &cust); err == nil {
			return &cust, nil
		}
		c.logger.Warn("discarding undecodable cache entry", map[string]interface{}{"key": key})
	} else if !errors.Is(err, redis.Nil) {
		c.logger.Warn("customer cache read failed", map[string]interface{}{"error": err.Error()})
	}

	// The shared lookup outlives any one caller; each caller still stops
	// waiting when its own context ends.
	lookupCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(phone, func() (interface{}, error) {
		cust, err := c.next.Lookup(lookupCtx, phone)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(cust); err == nil {
			if err := c.redis.Set(lookupCtx, key, raw, c.ttl).Err(); err != nil {
				c.logger.Warn("customer cache write failed", map[string]interface{}{"error": err.Error()})
			}
		}
		return cust, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*models.Customer).Clone(), nil
	}
}

// Invalidate drops a cached record.
func (c *CachedDirectory) Invalidate(ctx context.Context, phone string) error {
	return c.redis.Del(ctx, cacheKeyPrefix+phone).Err()
}
