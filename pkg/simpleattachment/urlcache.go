package simpleattachment

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// ReadURLCache holds presigned read URLs per object key for a short time so
// listings do not presign every item on every request. The TTL must stay
// well below the read URL validity so a cached URL is never handed out
// after it expired.
type ReadURLCache struct {
	cache *expirable.LRU[string, string]
}

// NewReadURLCache creates a cache holding at most size URLs for ttl.
func NewReadURLCache(size int, ttl time.Duration) *ReadURLCache {
	return &ReadURLCache{cache: expirable.NewLRU[string, string](size, nil, ttl)}
}

// Get returns the cached URL for key.
func (c *ReadURLCache) Get(key string) (string, bool) {
	url, ok := c.cache.Get(key)
	if ok {
		readURLCacheHitsTotal.Inc()
		return url, true
	}
	readURLCacheMissesTotal.Inc()
	return "", false
}

// Set stores url for key.
func (c *ReadURLCache) Set(key, url string) {
	c.cache.Add(key, url)
}

// Remove drops key.
func (c *ReadURLCache) Remove(key string) {
	c.cache.Remove(key)
}
