// Package app loads the configured workbooks, runs the pipeline over them and
// keeps the latest result for the HTTP surface and the CLI.
package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/fd2w-etl/internal/adapter/excel"
	"github.com/couchcryptid/fd2w-etl/internal/observability"
	"github.com/couchcryptid/fd2w-etl/internal/pipeline"
	"github.com/couchcryptid/fd2w-etl/internal/runcache"
)

// ErrNotLoaded is returned by CheckReadiness before the first successful load.
var ErrNotLoaded = errors.New("no forecast loaded yet")

// Runner executes one pipeline pass.
type Runner interface {
	Run(ctx context.Context, in pipeline.Input) (*pipeline.Result, error)
}

// Publisher ships a fresh result downstream.
type Publisher interface {
	Publish(ctx context.Context, res *pipeline.Result) error
}

// Source names the workbooks and sheets to load. An empty LocationsFile
// disables the location stages.
type Source struct {
	ForecastFile   string
	ForecastSheet  string
	LocationsFile  string
	LocationsSheet string
	SkipRows       *int
}

// Service serializes loads and holds the latest successful result.
type Service struct {
	source    Source
	runner    Runner
	cache     *runcache.Cache[*pipeline.Result]
	publisher Publisher
	metrics   *observability.Metrics
	logger    *slog.Logger

	loadMu sync.Mutex
	mu     sync.RWMutex
	latest *pipeline.Result
	ready  atomic.Bool
}

// NewService creates a Service. cache and publisher may be nil.
func NewService(src Source, runner Runner, cache *runcache.Cache[*pipeline.Result], publisher Publisher, metrics *observability.Metrics, logger *slog.Logger) *Service {
	return &Service{
		source:    src,
		runner:    runner,
		cache:     cache,
		publisher: publisher,
		metrics:   metrics,
		logger:    logger,
	}
}

// Load reads the source workbooks and returns the result for their current
// content. Unchanged inputs are served from the run cache without running
// the pipeline or publishing again.
func (s *Service) Load(ctx context.Context) (*pipeline.Result, error) {
	s.loadMu.Lock()
	defer s.loadMu.Unlock()

	in, key, err := s.readInput()
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if res, ok := s.cache.Get(key); ok {
			s.metrics.Runs.WithLabelValues("cached").Inc()
			s.logger.Info("forecast unchanged, serving cached result", "generated_at", res.GeneratedAt)
			s.setLatest(res)
			return res, nil
		}
	}

	res, err := s.runner.Run(ctx, in)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Put(key, res)
	}
	s.setLatest(res)

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, res); err != nil {
			return res, fmt.Errorf("publish result: %w", err)
		}
	}
	return res, nil
}

// Reload drops every cached result and loads again.
func (s *Service) Reload(ctx context.Context) (*pipeline.Result, error) {
	if s.cache != nil {
		s.cache.Purge()
	}
	return s.Load(ctx)
}

// Latest returns the most recent result, or nil before the first load.
func (s *Service) Latest() *pipeline.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// CheckReadiness reports ready once a result has been loaded.
func (s *Service) CheckReadiness(_ context.Context) error {
	if !s.ready.Load() {
		return ErrNotLoaded
	}
	return nil
}

func (s *Service) setLatest(res *pipeline.Result) {
	s.mu.Lock()
	s.latest = res
	s.mu.Unlock()
	s.ready.Store(true)
}

func (s *Service) readInput() (pipeline.Input, string, error) {
	src := s.source
	forecastData, err := os.ReadFile(src.ForecastFile)
	if err != nil {
		return pipeline.Input{}, "", fmt.Errorf("read forecast file: %w", err)
	}
	fc, err := excel.Read(bytes.NewReader(forecastData), src.ForecastSheet)
	if err != nil {
		return pipeline.Input{}, "", fmt.Errorf("forecast %s: %w", src.ForecastFile, err)
	}
	if src.ForecastSheet != "" && !strings.EqualFold(fc.Name, src.ForecastSheet) {
		s.logger.Warn("forecast sheet not found, using first sheet", "want", src.ForecastSheet, "using", fc.Name)
	}

	in := pipeline.Input{Forecast: fc.Grid, SkipRows: src.SkipRows}
	var locationData []byte
	if src.LocationsFile != "" {
		locationData = forecastData
		if src.LocationsFile != src.ForecastFile {
			if locationData, err = os.ReadFile(src.LocationsFile); err != nil {
				return pipeline.Input{}, "", fmt.Errorf("read locations file: %w", err)
			}
		}
		loc, err := excel.Read(bytes.NewReader(locationData), src.LocationsSheet)
		if err != nil {
			return pipeline.Input{}, "", fmt.Errorf("locations %s: %w", src.LocationsFile, err)
		}
		if src.LocationsFile == src.ForecastFile && loc.Name == fc.Name {
			s.logger.Warn("locations sheet missing from forecast workbook, map points disabled", "sheet", src.LocationsSheet)
			locationData = nil
		} else {
			in.Locations = loc.Grid
		}
	}

	key := runcache.Key(
		forecastData,
		[]byte(src.ForecastSheet),
		locationData,
		[]byte(src.LocationsSheet),
		[]byte(skipRowsText(src.SkipRows)),
	)
	return in, key, nil
}

func skipRowsText(n *int) string {
	if n == nil {
		return "auto"
	}
	return strconv.Itoa(*n)
}
