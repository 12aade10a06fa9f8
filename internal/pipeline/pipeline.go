// Package pipeline runs the FD2W stages over one forecast grid and one
// optional location grid.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/fd2w-etl/internal/domain"
	"github.com/couchcryptid/fd2w-etl/internal/forecast"
	"github.com/couchcryptid/fd2w-etl/internal/observability"
	"github.com/couchcryptid/fd2w-etl/internal/registry"
)

// Stage names reported in StageError and the stage_duration metric.
const (
	StageHeader    = "header"
	StageReshape   = "reshape"
	StageClassify  = "classify"
	StageAggregate = "aggregate"
	StageRegistry  = "registry"
	StageGeocode   = "geocode"
	StageJoin      = "join"
)

// ErrNoData is returned for an empty forecast grid.
var ErrNoData = errors.New("forecast grid has no rows")

// StageError is a structural failure that aborts a run. No partial result is
// returned alongside it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Input is what one run consumes. Locations may be nil when no registry is
// available; the run then produces no map points.
type Input struct {
	Forecast  forecast.Grid
	Locations forecast.Grid
	SkipRows  *int
}

// Stats summarizes one run.
type Stats struct {
	Reshape    forecast.ReshapeStats `json:"reshape"`
	Roles      map[domain.Role]int   `json:"roles"`
	Aggregated int                   `json:"aggregated"`
	Registry   registry.Stats        `json:"registry"`
	Geocode    domain.GeocodeStats   `json:"geocode"`
	Points     int                   `json:"points"`
	Duration   time.Duration         `json:"duration"`
}

// Result is the output of a successful run.
type Result struct {
	Plan           forecast.HeaderPlan        `json:"plan"`
	Volumes        []domain.AggregatedRow     `json:"volumes"`
	Locations      []domain.LocationEntry     `json:"locations"`
	Points         []domain.MappablePoint     `json:"points"`
	MarketTotals   []domain.MarketRoleTotal   `json:"market_totals"`
	LocationTotals []domain.LocationRoleTotal `json:"location_totals"`
	Markets        []string                   `json:"markets"`
	Stats          Stats                      `json:"stats"`
	GeneratedAt    time.Time                  `json:"generated_at"`
}

// Options tunes the geocoding stage.
type Options struct {
	MaxGeocode int                           // per-run lookup cap, 0 for none
	Progress   func(domain.GeocodeProgress) // optional
}

// Pipeline runs the stages in order: header, reshape, classify, aggregate,
// then registry, geocode and join when location data is given.
type Pipeline struct {
	resolver *forecast.Resolver
	geocoder domain.Geocoder
	opts     Options
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// New creates a Pipeline. A nil geocoder leaves registry coordinates as the
// only source of map points.
func New(resolver *forecast.Resolver, geocoder domain.Geocoder, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		resolver: resolver,
		geocoder: geocoder,
		opts:     opts,
		logger:   logger,
		metrics:  metrics,
	}
}

// Run executes one pass over in. The same input always yields the same
// records; only GeneratedAt and durations differ between runs.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Result, error) {
	res, err := p.run(ctx, in)
	if err != nil {
		p.metrics.Runs.WithLabelValues("error").Inc()
		p.logger.Error("pipeline run failed", "error", err)
		return nil, err
	}
	p.metrics.Runs.WithLabelValues("success").Inc()
	p.metrics.LastSuccess.Set(float64(res.GeneratedAt.Unix()))
	p.logger.Info("pipeline run complete",
		"header_row", res.Plan.HeaderRow,
		"strategy", res.Plan.Strategy,
		"records", res.Stats.Reshape.Records,
		"aggregated", res.Stats.Aggregated,
		"locations", len(res.Locations),
		"points", res.Stats.Points,
		"duration", res.Stats.Duration,
	)
	return res, nil
}

func (p *Pipeline) run(ctx context.Context, in Input) (*Result, error) {
	start := time.Now()
	if len(in.Forecast) == 0 {
		return nil, &StageError{Stage: StageHeader, Err: ErrNoData}
	}

	res := &Result{}

	var err error
	p.timed(StageHeader, func() {
		res.Plan, err = p.resolver.Resolve(in.Forecast, in.SkipRows)
	})
	if err != nil {
		return nil, &StageError{Stage: StageHeader, Err: err}
	}
	p.logger.Debug("header resolved",
		"header_row", res.Plan.HeaderRow,
		"data_start_row", res.Plan.DataStartRow,
		"strategy", res.Plan.Strategy,
		"columns", len(res.Plan.Columns),
	)

	var records []domain.VolumeRecord
	p.timed(StageReshape, func() {
		records, res.Stats.Reshape = forecast.Reshape(in.Forecast, res.Plan, p.logger)
	})
	p.metrics.Records.WithLabelValues("cells").Add(float64(res.Stats.Reshape.Records))
	p.metrics.CoercedCells.Add(float64(res.Stats.Reshape.Coerced))

	var classified []domain.ClassifiedRecord
	p.timed(StageClassify, func() {
		classified = domain.Classify(records)
	})
	res.Stats.Roles = make(map[domain.Role]int)
	for _, c := range classified {
		res.Stats.Roles[c.WhRole]++
	}
	if n := res.Stats.Roles[domain.RoleUnknown]; n > 0 {
		p.logger.Debug("records with unknown role dropped", "count", n)
	}

	p.timed(StageAggregate, func() {
		res.Volumes = domain.Aggregate(classified)
		res.MarketTotals = domain.TotalsByMarketRole(res.Volumes)
		res.LocationTotals = domain.TotalsByLocationRole(res.Volumes)
		res.Markets = domain.Markets(res.Volumes)
	})
	res.Stats.Aggregated = len(res.Volumes)
	p.metrics.Records.WithLabelValues("aggregated").Add(float64(len(res.Volumes)))

	if in.Locations != nil {
		if err := p.locate(ctx, in.Locations, res); err != nil {
			return nil, err
		}
	}

	res.Stats.Duration = time.Since(start)
	res.GeneratedAt = domain.Now()
	return res, nil
}

// locate runs the registry, geocode and join stages.
func (p *Pipeline) locate(ctx context.Context, g forecast.Grid, res *Result) error {
	var err error
	var entries []domain.LocationEntry
	p.timed(StageRegistry, func() {
		entries, res.Stats.Registry, err = registry.Normalize(g, p.logger)
	})
	if err != nil {
		return &StageError{Stage: StageRegistry, Err: err}
	}
	p.metrics.Records.WithLabelValues("locations").Add(float64(len(entries)))

	p.timed(StageGeocode, func() {
		res.Locations, res.Stats.Geocode = domain.GeocodeLocations(ctx, entries, p.geocoder,
			domain.GeocodeOptions{MaxEntries: p.opts.MaxGeocode, Progress: p.opts.Progress}, p.logger)
	})
	if err := ctx.Err(); err != nil {
		return &StageError{Stage: StageGeocode, Err: err}
	}
	for _, e := range res.Locations {
		if e.GeoSource != "" {
			p.metrics.GeocodeOutcomes.WithLabelValues(e.GeoSource).Inc()
		}
	}

	p.timed(StageJoin, func() {
		res.Points = domain.Join(res.Volumes, res.Locations)
	})
	res.Stats.Points = len(res.Points)
	p.metrics.Records.WithLabelValues("points").Add(float64(len(res.Points)))

	if dropped := len(res.Volumes) - len(res.Points); dropped > 0 {
		p.logger.Info("rows without coordinates left off the map", "rows", dropped)
	}
	return nil
}

func (p *Pipeline) timed(stage string, fn func()) {
	start := time.Now()
	fn()
	p.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
