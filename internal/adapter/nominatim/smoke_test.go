//go:build nominatim

package nominatim

import (
	"context"
	"io"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/fd2w-etl/internal/observability"
)

// These tests hit a real Nominatim instance (public by default, or NOMINATIM_URL).
// Run with: go test -tags=nominatim ./internal/adapter/nominatim/ -v -count=1

func smokeClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(Options{
		BaseURL:    os.Getenv("NOMINATIM_URL"),
		UserAgent:  "fd2w-etl-smoke-test",
		Timeout:    10 * time.Second,
		MaxRetries: 2,
	}, observability.NewMetricsForTesting(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return c
}

func TestSmoke_Search(t *testing.T) {
	c := smokeClient(t)

	result, err := c.Search(context.Background(), "Lyon, France")
	require.NoError(t, err)

	require.True(t, result.Found)
	assert.InDelta(t, 45.76, result.Lat, 0.1, "lat should be near Lyon")
	assert.InDelta(t, 4.83, result.Lon, 0.1, "lon should be near Lyon")
	assert.Contains(t, result.DisplayName, "Lyon")
}

func TestSmoke_Search_NoMatch(t *testing.T) {
	c := smokeClient(t)

	result, err := c.Search(context.Background(), "XYZNONEXISTENT99, ZZ")
	require.NoError(t, err)
	assert.False(t, result.Found)
}

func TestSmoke_CachedGeocoder(t *testing.T) {
	c := smokeClient(t)
	cached := NewCachedGeocoder(c, 10, observability.NewMetricsForTesting())

	r1, err := cached.Search(context.Background(), "Berlin, Germany")
	require.NoError(t, err)
	assert.Contains(t, r1.DisplayName, "Berlin")

	r2, err := cached.Search(context.Background(), "Berlin, Germany")
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}
