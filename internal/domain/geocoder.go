package domain

import (
	"context"
	"strings"
)

// GeocodingResult is the first match returned by a geocoding provider.
// Found is false when the provider answered but had no match.
type GeocodingResult struct {
	Lat         float64
	Lon         float64
	DisplayName string
	Found       bool
}

// Geocoder resolves free-text address queries to coordinates.
type Geocoder interface {
	// Search returns the best match for query. An empty result is not an error.
	Search(ctx context.Context, query string) (GeocodingResult, error)
}

// QueryKey folds case and inner whitespace of a geocoding query so trivially
// different spellings of one address share a cache entry.
func QueryKey(query string) string {
	return strings.ToLower(strings.Join(strings.Fields(query), " "))
}
