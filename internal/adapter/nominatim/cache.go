package nominatim

import (
	"context"

	"github.com/couchcryptid/fd2w-etl/internal/domain"
	"github.com/couchcryptid/fd2w-etl/internal/lru"
	"github.com/couchcryptid/fd2w-etl/internal/observability"
)

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache keyed by query.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *lru.Cache[string, domain.GeocodingResult]
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		cache:   lru.New[string, domain.GeocodingResult](maxEntries),
		metrics: metrics,
	}
}

func (c *CachedGeocoder) Search(ctx context.Context, query string) (domain.GeocodingResult, error) {
	key := domain.QueryKey(query)
	if result, ok := c.cache.Get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("memory", "hit").Inc()
		return result, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("memory", "miss").Inc()

	result, err := c.inner.Search(ctx, query)
	if err != nil {
		return result, err
	}
	// Only cache matches so "not found" answers are asked again next run.
	if result.Found {
		c.cache.Put(key, result)
	}
	return result, nil
}

// Len returns the number of cached queries.
func (c *CachedGeocoder) Len() int {
	return c.cache.Len()
}
