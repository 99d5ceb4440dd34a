package directory

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache is a read-through Redis cache in front of a Store. A nil client
// disables caching and every call passes straight through. Cache failures
// are logged and degrade to the inner store; they never fail a request.
type Cache struct {
	inner  Store
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	log    *zap.SugaredLogger
}

var _ Store = (*Cache)(nil)

// NewCache wraps inner with a Redis lookup cache.
func NewCache(inner Store, rdb *redis.Client, ttl time.Duration, prefix string, log *zap.SugaredLogger) *Cache {
	return &Cache{inner: inner, rdb: rdb, ttl: ttl, prefix: prefix, log: log}
}

func (c *Cache) key(employeeID string) string {
	return c.prefix + "employee:" + employeeID
}

func (c *Cache) Lookup(ctx context.Context, employeeID string) (*Employee, error) {
	if c.rdb == nil {
		return c.inner.Lookup(ctx, employeeID)
	}

	key := c.key(employeeID)
	val, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		var e Employee
		if err := json.Unmarshal([]byte(val), &e); err == nil {
			return &e, nil
		}
		c.log.Warnw("directory cache entry corrupt, falling through", "key", key)
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warnw("directory cache read failed", "key", key, "error", err)
	}

	e, err := c.inner.Lookup(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	if data, merr := json.Marshal(e); merr == nil {
		if serr := c.rdb.Set(ctx, key, data, c.ttl).Err(); serr != nil {
			c.log.Warnw("directory cache write failed", "key", key, "error", serr)
		}
	}
	return e, nil
}

// Exists always consults the inner store. Duplicate detection must see the
// source of truth; a stale cached absence would let two records through.
func (c *Cache) Exists(ctx context.Context, employeeID string) (bool, error) {
	return c.inner.Exists(ctx, employeeID)
}

func (c *Cache) Insert(ctx context.Context, e *Employee) error {
	if err := c.inner.Insert(ctx, e); err != nil {
		return err
	}
	if c.rdb != nil {
		if err := c.rdb.Del(ctx, c.key(e.EmployeeID)).Err(); err != nil {
			c.log.Warnw("directory cache invalidation failed", "employee_id", e.EmployeeID, "error", err)
		}
	}
	return nil
}
