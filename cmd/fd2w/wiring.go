package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/spf13/cobra"

	"github.com/couchcryptid/fd2w-etl/internal/adapter/nominatim"
	"github.com/couchcryptid/fd2w-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/fd2w-etl/internal/app"
	"github.com/couchcryptid/fd2w-etl/internal/config"
	"github.com/couchcryptid/fd2w-etl/internal/domain"
	"github.com/couchcryptid/fd2w-etl/internal/forecast"
	"github.com/couchcryptid/fd2w-etl/internal/observability"
	"github.com/couchcryptid/fd2w-etl/internal/pipeline"
)

// loadConfig reads the environment and applies the flags that were set.
func loadConfig(cmd *cobra.Command, flags *sourceFlags) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("forecast") {
		if cfg.LocationsFile == cfg.ForecastFile {
			cfg.LocationsFile = flags.forecast
		}
		cfg.ForecastFile = flags.forecast
	}
	if changed("forecast-sheet") {
		cfg.ForecastSheet = flags.forecastSheet
	}
	if changed("locations") {
		cfg.LocationsFile = flags.locations
	}
	if changed("locations-sheet") {
		cfg.LocationsSheet = flags.locationsSheet
	}
	if changed("skip-rows") {
		cfg.SkipRows = nil
		if flags.skipRows >= 0 {
			n := flags.skipRows
			cfg.SkipRows = &n
		}
	}
	if changed("profile") {
		cfg.LayoutProfile = flags.profile
	}
	if changed("layout-file") {
		cfg.LayoutFile = flags.layoutFile
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadProfile resolves the configured layout profile. The profile's sheet is
// used unless a forecast sheet was given explicitly.
func loadProfile(cmd *cobra.Command, cfg *config.Config) (forecast.Profile, error) {
	profiles, err := forecast.LoadProfiles(cfg.LayoutFile)
	if err != nil {
		return forecast.Profile{}, err
	}
	profile, err := forecast.FindProfile(profiles, cfg.LayoutProfile)
	if err != nil {
		return forecast.Profile{}, err
	}
	if os.Getenv("FORECAST_SHEET") == "" && !cmd.Flags().Changed("forecast-sheet") {
		cfg.ForecastSheet = profile.Sheet
	}
	return profile, nil
}

// runtime holds what every command builds from the configuration.
type runtime struct {
	cfg     *config.Config
	logger  *slog.Logger
	metrics *observability.Metrics
	store   *sqlite.Store
}

func (rt *runtime) Close() error {
	if rt.store != nil {
		return rt.store.Close()
	}
	return nil
}

func newRuntime(cfg *config.Config, metrics *observability.Metrics) *runtime {
	return &runtime{
		cfg:     cfg,
		logger:  sharedobs.NewLogger(cfg.LogLevel, cfg.LogFormat),
		metrics: metrics,
	}
}

// geocoder builds the lookup chain: in-memory LRU, then the SQLite store when
// configured, then the rate-limited Nominatim client. It returns nil when
// geocoding is disabled.
func (rt *runtime) geocoder() (domain.Geocoder, error) {
	cfg := rt.cfg
	if !cfg.GeocoderEnabled {
		rt.metrics.GeocodeEnabled.Set(0)
		rt.logger.Info("geocoding disabled")
		return nil, nil
	}

	minInterval := geocodePacing(cfg)
	client, err := nominatim.NewClient(nominatim.Options{
		BaseURL:     cfg.GeocoderURL,
		UserAgent:   cfg.GeocoderUserAgent,
		Timeout:     cfg.GeocoderTimeout,
		MinInterval: minInterval,
		MaxRetries:  cfg.GeocoderMaxRetries,
	}, rt.metrics, rt.logger)
	if err != nil {
		return nil, err
	}

	var geocoder domain.Geocoder = client
	if cfg.GeocoderDBPath != "" {
		store, err := sqlite.Open(cfg.GeocoderDBPath)
		if err != nil {
			return nil, fmt.Errorf("open geocode store: %w", err)
		}
		rt.store = store
		geocoder = sqlite.NewCachedGeocoder(geocoder, store, rt.metrics, rt.logger)
	}
	geocoder = nominatim.NewCachedGeocoder(geocoder, cfg.GeocoderCacheSize, rt.metrics)

	rt.metrics.GeocodeEnabled.Set(1)
	rt.logger.Info("geocoding enabled",
		"url", cfg.GeocoderURL,
		"cache_size", cfg.GeocoderCacheSize,
		"db_path", cfg.GeocoderDBPath,
		"min_interval", max(minInterval, 0),
		"max_entries", cfg.GeocoderMaxEntries,
	)
	return geocoder, nil
}

// geocodePacing returns the client MinInterval for cfg. A zero interval turns
// pacing off only against a self-hosted instance; the public one never goes
// faster than one request per second.
func geocodePacing(cfg *config.Config) time.Duration {
	url := strings.TrimRight(cfg.GeocoderURL, "/")
	if url == "" || url == nominatim.DefaultBaseURL {
		return max(cfg.GeocoderMinInterval, time.Second)
	}
	if cfg.GeocoderMinInterval <= 0 {
		return -1
	}
	return cfg.GeocoderMinInterval
}

func (rt *runtime) pipeline(profile forecast.Profile, geocoder domain.Geocoder, progress func(domain.GeocodeProgress)) (*pipeline.Pipeline, error) {
	resolver, err := forecast.NewResolver(profile)
	if err != nil {
		return nil, err
	}
	opts := pipeline.Options{MaxGeocode: rt.cfg.GeocoderMaxEntries, Progress: progress}
	return pipeline.New(resolver, geocoder, opts, rt.logger, rt.metrics), nil
}

func (rt *runtime) source() app.Source {
	return app.Source{
		ForecastFile:   rt.cfg.ForecastFile,
		ForecastSheet:  rt.cfg.ForecastSheet,
		LocationsFile:  rt.cfg.LocationsFile,
		LocationsSheet: rt.cfg.LocationsSheet,
		SkipRows:       rt.cfg.SkipRows,
	}
}

// closeAll closes rt and joins the error with err.
func closeAll(rt *runtime, err error) error {
	if cerr := rt.Close(); cerr != nil {
		return errors.Join(err, fmt.Errorf("close geocode store: %w", cerr))
	}
	return err
}
