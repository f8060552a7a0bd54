package s3

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kondrei/TalkieMartin-BE/application/ports"
)

// CachedURLStore serves repeated DownloadURL calls from a cache. Entries
// live for half the URL lifetime so a cached URL always has at least half
// of its validity left when returned.
type CachedURLStore struct {
	ports.ObjectStore
	cache  ports.Cache
	ttl    int
	logger *zap.Logger
}

// NewCachedURLStore wraps store with a URL cache. urlTTL is the lifetime of
// URLs issued by the wrapped store.
func NewCachedURLStore(store ports.ObjectStore, cache ports.Cache, urlTTL time.Duration, logger *zap.Logger) *CachedURLStore {
	return &CachedURLStore{
		ObjectStore: store,
		cache:       cache,
		ttl:         int(urlTTL / 2 / time.Second),
		logger:      logger,
	}
}

func urlCacheKey(bucket, key string) string {
	return "url:" + bucket + "/" + key
}

// DownloadURL returns a cached URL or signs a new one
func (c *CachedURLStore) DownloadURL(ctx context.Context, bucket, key string) (string, error) {
	cacheKey := urlCacheKey(bucket, key)
	if v, ok := c.cache.Get(ctx, cacheKey); ok {
		if url, ok := v.(string); ok {
			return url, nil
		}
	}

	url, err := c.ObjectStore.DownloadURL(ctx, bucket, key)
	if err != nil {
		return "", err
	}

	if err := c.cache.Set(ctx, cacheKey, url, c.ttl); err != nil {
		c.logger.Debug("Failed to cache download URL", zap.String("key", key), zap.Error(err))
	}
	return url, nil
}

// DeleteFiles deletes the objects and drops their cached URLs
func (c *CachedURLStore) DeleteFiles(ctx context.Context, bucket string, keys []string) error {
	err := c.ObjectStore.DeleteFiles(ctx, bucket, keys)
	for _, key := range keys {
		_ = c.cache.Delete(ctx, urlCacheKey(bucket, key))
	}
	return err
}
