// Package nominatim geocodes free-text addresses with an OpenStreetMap
// Nominatim-compatible search API.
package nominatim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/couchcryptid/storm-data-shared/retry"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/fd2w-etl/internal/domain"
	"github.com/couchcryptid/fd2w-etl/internal/observability"
)

// DefaultBaseURL is the public OpenStreetMap Nominatim instance.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

// ErrNoUserAgent is returned by NewClient without a User-Agent; the public
// instance rejects anonymous clients.
var ErrNoUserAgent = errors.New("nominatim: user agent is required")

// Options configures a Client. Zero values take the defaults noted.
type Options struct {
	BaseURL        string        // DefaultBaseURL
	UserAgent      string        // required
	Timeout        time.Duration // 10s
	MinInterval    time.Duration // 1s between outbound requests; negative disables pacing
	MaxRetries     int           // retries after a 429 or 5xx response
	InitialBackoff time.Duration // 1s
	MaxBackoff     time.Duration // 30s; also caps a server's Retry-After
}

// Client implements domain.Geocoder against the Nominatim search endpoint.
// Requests are serialized and spaced at least MinInterval apart.
type Client struct {
	httpClient     *http.Client
	baseURL        string
	userAgent      string
	minInterval    time.Duration
	maxRetries     int
	initialBackoff time.Duration
	maxBackoff     time.Duration
	clock          clockwork.Clock
	metrics        *observability.Metrics
	logger         *slog.Logger

	mu   sync.Mutex
	last time.Time
}

// NewClient creates a Nominatim geocoding client.
func NewClient(opts Options, metrics *observability.Metrics, logger *slog.Logger) (*Client, error) {
	if opts.UserAgent == "" {
		return nil, ErrNoUserAgent
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.MinInterval == 0 {
		opts.MinInterval = time.Second
	}
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
		baseURL:        opts.BaseURL,
		userAgent:      opts.UserAgent,
		minInterval:    max(opts.MinInterval, 0),
		maxRetries:     max(opts.MaxRetries, 0),
		initialBackoff: opts.InitialBackoff,
		maxBackoff:     opts.MaxBackoff,
		clock:          clockwork.NewRealClock(),
		metrics:        metrics,
		logger:         logger,
	}, nil
}

// StatusError is a non-200 response from the search endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("nominatim API error: status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the request may succeed when retried.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// Search returns the best match for query. A query with no match returns a
// zero GeocodingResult and a nil error.
func (c *Client) Search(ctx context.Context, query string) (domain.GeocodingResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	backoff := c.initialBackoff
	for attempt := 0; ; attempt++ {
		if err := c.pace(ctx); err != nil {
			return domain.GeocodingResult{}, err
		}

		result, retryAfter, err := c.doRequest(ctx, query)
		c.last = c.clock.Now()
		if err == nil {
			return result, nil
		}

		var se *StatusError
		if !errors.As(err, &se) || !se.Temporary() || attempt >= c.maxRetries {
			return domain.GeocodingResult{}, err
		}

		wait := min(max(backoff, retryAfter), c.maxBackoff)
		c.metrics.GeocodeRequests.WithLabelValues("retry").Inc()
		c.logger.Warn("geocoding request throttled, retrying",
			"status", se.StatusCode,
			"attempt", attempt+1,
			"backoff", wait,
		)
		if err := c.sleep(ctx, wait); err != nil {
			return domain.GeocodingResult{}, err
		}
		backoff = retry.NextBackoff(backoff, c.maxBackoff)
	}
}

// pace blocks until MinInterval has passed since the previous request.
func (c *Client) pace(ctx context.Context) error {
	if c.last.IsZero() || c.minInterval <= 0 {
		return ctx.Err()
	}
	return c.sleep(ctx, c.minInterval-c.clock.Since(c.last))
}

func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.clock.After(d):
		return nil
	}
}

func (c *Client) doRequest(ctx context.Context, query string) (domain.GeocodingResult, time.Duration, error) {
	params := url.Values{
		"q":      {query},
		"format": {"json"},
		"limit":  {"1"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return domain.GeocodingResult{}, 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.GeocodeAPIDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return domain.GeocodingResult{}, 0, fmt.Errorf("geocode request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.GeocodingResult{}, retryAfter(resp.Header.Get("Retry-After")),
			&StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var places []place
	if err := json.NewDecoder(resp.Body).Decode(&places); err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return domain.GeocodingResult{}, 0, fmt.Errorf("decode response: %w", err)
	}

	if len(places) == 0 {
		c.metrics.GeocodeRequests.WithLabelValues("empty").Inc()
		return domain.GeocodingResult{}, 0, nil
	}

	result, err := places[0].result()
	if err != nil {
		c.metrics.GeocodeRequests.WithLabelValues("error").Inc()
		return domain.GeocodingResult{}, 0, err
	}
	c.metrics.GeocodeRequests.WithLabelValues("success").Inc()
	return result, 0, nil
}

// retryAfter parses a Retry-After header given in seconds.
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(v)
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// Nominatim API response types.

type place struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

func (p place) result() (domain.GeocodingResult, error) {
	lat, err := strconv.ParseFloat(p.Lat, 64)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("malformed latitude %q: %w", p.Lat, err)
	}
	lon, err := strconv.ParseFloat(p.Lon, 64)
	if err != nil {
		return domain.GeocodingResult{}, fmt.Errorf("malformed longitude %q: %w", p.Lon, err)
	}
	return domain.GeocodingResult{
		Lat:         lat,
		Lon:         lon,
		DisplayName: p.DisplayName,
		Found:       true,
	}, nil
}
