package sqlite

import (
	"context"
	"log/slog"

	"github.com/couchcryptid/fd2w-etl/internal/domain"
	"github.com/couchcryptid/fd2w-etl/internal/observability"
)

// CachedGeocoder consults the store before the inner geocoder and saves every
// found result. Store failures are logged and never fail a lookup.
type CachedGeocoder struct {
	inner   domain.Geocoder
	store   *Store
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewCachedGeocoder creates a persistent cache decorator around a geocoder.
func NewCachedGeocoder(inner domain.Geocoder, store *Store, metrics *observability.Metrics, logger *slog.Logger) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		store:   store,
		metrics: metrics,
		logger:  logger,
	}
}

func (c *CachedGeocoder) Search(ctx context.Context, query string) (domain.GeocodingResult, error) {
	result, ok, err := c.store.Get(ctx, query)
	if err != nil {
		c.logger.Warn("geocode store read failed", "query", query, "error", err)
	}
	if ok {
		c.metrics.GeocodeCache.WithLabelValues("sqlite", "hit").Inc()
		return result, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("sqlite", "miss").Inc()

	result, err = c.inner.Search(ctx, query)
	if err != nil {
		return result, err
	}
	if result.Found {
		if err := c.store.Put(ctx, query, result); err != nil {
			c.logger.Warn("geocode store write failed", "query", query, "error", err)
		}
	}
	return result, nil
}
