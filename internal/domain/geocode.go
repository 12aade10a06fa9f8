package domain

import (
	"context"
	"log/slog"
	"strings"
)

// GeocodeOptions bounds a geocoding run.
type GeocodeOptions struct {
	// MaxEntries caps the number of entries looked up per run. Zero means no cap.
	// Entries past the cap keep nil coordinates.
	MaxEntries int

	// Progress, when set, is called after every entry.
	Progress func(GeocodeProgress)
}

// GeocodeProgress reports the outcome of one entry of a geocoding run.
type GeocodeProgress struct {
	Done     int    // entries handled so far, including this one
	Total    int    // entries in the run
	Location string // join key of the entry just handled
	Source   string // GeoSource recorded on the entry
}

// GeocodeStats counts entries by outcome.
type GeocodeStats struct {
	Registry int
	Primary  int
	Fallback int
	NotFound int
	Failed   int
	Skipped  int
}

// Resolved returns the number of entries that ended with coordinates.
func (s GeocodeStats) Resolved() int {
	return s.Registry + s.Primary + s.Fallback
}

func (s *GeocodeStats) count(source string) {
	switch source {
	case GeoSourceRegistry:
		s.Registry++
	case GeoSourcePrimary:
		s.Primary++
	case GeoSourceFallback:
		s.Fallback++
	case GeoSourceNotFound:
		s.NotFound++
	case GeoSourceFailed:
		s.Failed++
	default:
		s.Skipped++
	}
}

// PrimaryQuery builds the full-address query: street, city and country,
// skipping empty parts.
func PrimaryQuery(e LocationEntry) string {
	return joinQuery(e.StreetAddress, e.City, e.Country)
}

// FallbackQuery builds the coarse query from city and country only.
func FallbackQuery(e LocationEntry) string {
	return joinQuery(e.City, e.Country)
}

func joinQuery(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ", ")
}

// GeocodeLocations resolves coordinates for every entry lacking them and
// returns new entries; the input slice is not modified. Lookups run one at a
// time in entry order. Pacing between outbound requests is the geocoder's
// job, so cached decorators can answer without waiting.
//
// A nil geocoder returns a copy of the entries unchanged.
func GeocodeLocations(ctx context.Context, entries []LocationEntry, geocoder Geocoder, opts GeocodeOptions, logger *slog.Logger) ([]LocationEntry, GeocodeStats) {
	out := make([]LocationEntry, len(entries))
	copy(out, entries)

	var stats GeocodeStats
	if geocoder == nil {
		return out, stats
	}

	looked := 0
	for i, e := range out {
		switch {
		case e.HasCoordinates():
			if e.GeoSource == "" {
				e.GeoSource = GeoSourceRegistry
			}
		case PrimaryQuery(e) == "":
			e.GeoSource = GeoSourceSkipped
		case opts.MaxEntries > 0 && looked >= opts.MaxEntries, ctx.Err() != nil:
			e.GeoSource = GeoSourceSkipped
		default:
			looked++
			e = GeocodeEntry(ctx, e, geocoder, logger)
		}
		out[i] = e
		stats.count(e.GeoSource)

		if opts.Progress != nil {
			opts.Progress(GeocodeProgress{Done: i + 1, Total: len(out), Location: e.Location, Source: e.GeoSource})
		}
	}

	if stats.Skipped > 0 {
		logger.Info("geocoding left entries without coordinates",
			"skipped", stats.Skipped,
			"max_entries", opts.MaxEntries,
		)
	}
	return out, stats
}

// GeocodeEntry looks up one entry with the full address first and falls back
// to city and country when the full address has no match. Errors never
// propagate: the entry is returned with nil coordinates and GeoSource "failed"
// (graceful degradation).
func GeocodeEntry(ctx context.Context, entry LocationEntry, geocoder Geocoder, logger *slog.Logger) LocationEntry {
	if geocoder == nil || entry.HasCoordinates() {
		return entry
	}

	primary := PrimaryQuery(entry)
	if primary == "" {
		entry.GeoSource = GeoSourceSkipped
		return entry
	}

	result, err := geocoder.Search(ctx, primary)
	if err != nil {
		logger.Warn("geocoding failed",
			"location", entry.Location,
			"query", primary,
			"error", err,
		)
		entry.GeoSource = GeoSourceFailed
		return entry
	}
	if result.Found {
		return entry.WithCoordinates(result.Lat, result.Lon, GeoSourcePrimary)
	}

	fallback := FallbackQuery(entry)
	if fallback == "" || fallback == primary {
		entry.GeoSource = GeoSourceNotFound
		return entry
	}

	result, err = geocoder.Search(ctx, fallback)
	if err != nil {
		logger.Warn("fallback geocoding failed",
			"location", entry.Location,
			"query", fallback,
			"error", err,
		)
		entry.GeoSource = GeoSourceFailed
		return entry
	}
	if result.Found {
		logger.Debug("geocoded with fallback query", "location", entry.Location, "query", fallback)
		return entry.WithCoordinates(result.Lat, result.Lon, GeoSourceFallback)
	}

	entry.GeoSource = GeoSourceNotFound
	return entry
}
