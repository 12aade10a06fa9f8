package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testForecastFile = "/data/fd2w.xlsx"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Empty(t, cfg.ForecastFile)
	assert.Equal(t, "full", cfg.ForecastSheet)
	assert.Empty(t, cfg.LocationsFile)
	assert.Equal(t, "Sheet1", cfg.LocationsSheet)
	assert.Nil(t, cfg.SkipRows)
	assert.Equal(t, "default", cfg.LayoutProfile)
	assert.Empty(t, cfg.LayoutFile)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 8, cfg.RunCacheSize)

	assert.False(t, cfg.GeocoderEnabled)
	assert.Equal(t, "https://nominatim.openstreetmap.org", cfg.GeocoderURL)
	assert.Equal(t, "fd2w-etl/1.0", cfg.GeocoderUserAgent)
	assert.Equal(t, 10*time.Second, cfg.GeocoderTimeout)
	assert.Equal(t, time.Second, cfg.GeocoderMinInterval)
	assert.Zero(t, cfg.GeocoderMaxEntries)
	assert.Equal(t, 2, cfg.GeocoderMaxRetries)
	assert.Equal(t, 1000, cfg.GeocoderCacheSize)
	assert.Empty(t, cfg.GeocoderDBPath)

	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "fd2w-records", cfg.KafkaTopic)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("FORECAST_FILE", testForecastFile)
	t.Setenv("FORECAST_SHEET", "forecast")
	t.Setenv("LOCATIONS_FILE", "/data/sites.xlsx")
	t.Setenv("LOCATIONS_SHEET", "sites")
	t.Setenv("SKIP_ROWS", "8")
	t.Setenv("LAYOUT_PROFILE", "preamble-8")
	t.Setenv("LAYOUT_FILE", "/etc/fd2w/layouts.yaml")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("RUN_CACHE_SIZE", "3")
	t.Setenv("GEOCODER_ENABLED", "true")
	t.Setenv("GEOCODER_URL", "http://nominatim.local")
	t.Setenv("GEOCODER_USER_AGENT", "acme-fd2w/2.0")
	t.Setenv("GEOCODER_TIMEOUT", "3s")
	t.Setenv("GEOCODER_MIN_INTERVAL", "0s")
	t.Setenv("GEOCODER_MAX_ENTRIES", "25")
	t.Setenv("GEOCODER_MAX_RETRIES", "0")
	t.Setenv("GEOCODER_CACHE_SIZE", "50")
	t.Setenv("GEOCODER_DB_PATH", "/var/lib/fd2w/geocode.db")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_TOPIC", "fd2w")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, testForecastFile, cfg.ForecastFile)
	assert.Equal(t, "forecast", cfg.ForecastSheet)
	assert.Equal(t, "/data/sites.xlsx", cfg.LocationsFile)
	assert.Equal(t, "sites", cfg.LocationsSheet)
	require.NotNil(t, cfg.SkipRows)
	assert.Equal(t, 8, *cfg.SkipRows)
	assert.Equal(t, "preamble-8", cfg.LayoutProfile)
	assert.Equal(t, "/etc/fd2w/layouts.yaml", cfg.LayoutFile)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 3, cfg.RunCacheSize)
	assert.True(t, cfg.GeocoderEnabled)
	assert.Equal(t, "http://nominatim.local", cfg.GeocoderURL)
	assert.Equal(t, "acme-fd2w/2.0", cfg.GeocoderUserAgent)
	assert.Equal(t, 3*time.Second, cfg.GeocoderTimeout)
	assert.Zero(t, cfg.GeocoderMinInterval)
	assert.Equal(t, 25, cfg.GeocoderMaxEntries)
	assert.Zero(t, cfg.GeocoderMaxRetries)
	assert.Equal(t, 50, cfg.GeocoderCacheSize)
	assert.Equal(t, "/var/lib/fd2w/geocode.db", cfg.GeocoderDBPath)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "fd2w", cfg.KafkaTopic)
}

func TestLoad_LocationsFileDefaultsToForecastFile(t *testing.T) {
	t.Setenv("FORECAST_FILE", testForecastFile)
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, testForecastFile, cfg.LocationsFile)
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"SHUTDOWN_TIMEOUT", "not-a-duration"},
		{"SHUTDOWN_TIMEOUT", "-1s"},
		{"SKIP_ROWS", "-2"},
		{"SKIP_ROWS", "eight"},
		{"GEOCODER_TIMEOUT", "bad"},
		{"GEOCODER_TIMEOUT", "0s"},
		{"GEOCODER_MIN_INTERVAL", "-1s"},
		{"GEOCODER_MAX_ENTRIES", "-1"},
		{"GEOCODER_MAX_RETRIES", "many"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_KafkaEnabledWithoutBrokers(t *testing.T) {
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", " , ")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}

func TestLoad_InvalidCacheSizeFallsBack(t *testing.T) {
	t.Setenv("GEOCODER_CACHE_SIZE", "-5")
	t.Setenv("RUN_CACHE_SIZE", "x")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.GeocoderCacheSize)
	assert.Equal(t, 8, cfg.RunCacheSize)
}

func TestConfig_Validate(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Error(t, cfg.Validate(), "forecast file is required")

	cfg.ForecastFile = testForecastFile
	require.NoError(t, cfg.Validate())

	cfg.GeocoderEnabled = true
	cfg.GeocoderUserAgent = ""
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEOCODER_USER_AGENT")
}
