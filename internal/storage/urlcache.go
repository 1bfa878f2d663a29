package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Resolver is the read side of a BlobStore.
type Resolver interface {
	URL(ctx context.Context, key string) (string, error)
}

// CachedURLs memoizes signed URLs in Redis so history reads do not
// presign every attachment again. Entries expire before the signature.
type CachedURLs struct {
	next   Resolver
	client *redis.Client
	prefix string
	ttl    time.Duration
	log    *zap.SugaredLogger
}

// NewCachedURLs caches for ttl minus a safety margin of a tenth.
func NewCachedURLs(next Resolver, client *redis.Client, prefix string, ttl time.Duration, log *zap.SugaredLogger) *CachedURLs {
	return &CachedURLs{next: next, client: client, prefix: prefix, ttl: ttl - ttl/10, log: log}
}

func (c *CachedURLs) key(k string) string { return fmt.Sprintf("%s:blob_url:%s", c.prefix, k) }

func (c *CachedURLs) URL(ctx context.Context, key string) (string, error) {
	v, err := c.client.Get(ctx, c.key(key)).Result()
	if err == nil {
		return v, nil
	}
	if !errors.Is(err, redis.Nil) {
		c.log.Debugw("url cache get", "key", key, "err", err)
	}

	u, err := c.next.URL(ctx, key)
	if err != nil {
		return "", err
	}
	if c.ttl > 0 {
		if err := c.client.Set(ctx, c.key(key), u, c.ttl).Err(); err != nil {
			c.log.Debugw("url cache set", "key", key, "err", err)
		}
	}
	return u, nil
}
