package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	ForecastFile   string
	ForecastSheet  string
	LocationsFile  string
	LocationsSheet string
	SkipRows       *int
	LayoutProfile  string
	LayoutFile     string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
	RunCacheSize    int

	// Geocoding configuration.
	GeocoderEnabled     bool
	GeocoderURL         string
	GeocoderUserAgent   string
	GeocoderTimeout     time.Duration
	GeocoderMinInterval time.Duration
	GeocoderMaxEntries  int
	GeocoderMaxRetries  int
	GeocoderCacheSize   int
	GeocoderDBPath      string

	// Kafka publication configuration.
	KafkaEnabled bool
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	skipRows, err := parseSkipRows()
	if err != nil {
		return nil, err
	}

	geocoderTimeout, err := parseDuration("GEOCODER_TIMEOUT", "10s", false)
	if err != nil {
		return nil, err
	}
	minInterval, err := parseDuration("GEOCODER_MIN_INTERVAL", "1s", true)
	if err != nil {
		return nil, err
	}

	maxEntries, err := parseNonNegative("GEOCODER_MAX_ENTRIES", 0)
	if err != nil {
		return nil, err
	}
	maxRetries, err := parseNonNegative("GEOCODER_MAX_RETRIES", 2)
	if err != nil {
		return nil, err
	}

	forecastFile := os.Getenv("FORECAST_FILE")
	cfg := &Config{
		ForecastFile:   forecastFile,
		ForecastSheet:  sharedcfg.EnvOrDefault("FORECAST_SHEET", "full"),
		LocationsFile:  sharedcfg.EnvOrDefault("LOCATIONS_FILE", forecastFile),
		LocationsSheet: sharedcfg.EnvOrDefault("LOCATIONS_SHEET", "Sheet1"),
		SkipRows:       skipRows,
		LayoutProfile:  sharedcfg.EnvOrDefault("LAYOUT_PROFILE", "default"),
		LayoutFile:     os.Getenv("LAYOUT_FILE"),

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		RunCacheSize:    parsePositive("RUN_CACHE_SIZE", 8),

		GeocoderEnabled:     os.Getenv("GEOCODER_ENABLED") == "true",
		GeocoderURL:         sharedcfg.EnvOrDefault("GEOCODER_URL", "https://nominatim.openstreetmap.org"),
		GeocoderUserAgent:   sharedcfg.EnvOrDefault("GEOCODER_USER_AGENT", "fd2w-etl/1.0"),
		GeocoderTimeout:     geocoderTimeout,
		GeocoderMinInterval: minInterval,
		GeocoderMaxEntries:  maxEntries,
		GeocoderMaxRetries:  maxRetries,
		GeocoderCacheSize:   parsePositive("GEOCODER_CACHE_SIZE", 1000),
		GeocoderDBPath:      os.Getenv("GEOCODER_DB_PATH"),

		KafkaEnabled: os.Getenv("KAFKA_ENABLED") == "true",
		KafkaBrokers: sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "fd2w-records"),
	}

	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}

	return cfg, nil
}

// Validate checks the settings needed to load data, which CLI flags may fill
// in after Load.
func (c *Config) Validate() error {
	if c.ForecastFile == "" {
		return errors.New("FORECAST_FILE is required")
	}
	if c.GeocoderEnabled && c.GeocoderUserAgent == "" {
		return errors.New("GEOCODER_ENABLED is true but GEOCODER_USER_AGENT is not set")
	}
	return nil
}

func parseSkipRows() (*int, error) {
	s := os.Getenv("SKIP_ROWS")
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return nil, errors.New("invalid SKIP_ROWS: must be a non-negative integer")
	}
	return &n, nil
}

func parseDuration(key, fallback string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseNonNegative(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s: must be a non-negative integer", key)
	}
	return n, nil
}

func parsePositive(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
