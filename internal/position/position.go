package position

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/njoyaf/mboa-location/internal/types"
)

const (
	// DefaultTimeout bounds how long a single acquisition may take before
	// giving up. Mirrors the 5s wait the web client used.
	DefaultTimeout = 5 * time.Second

	// DefaultMaxFixAge allows reuse of a recent fix instead of forcing a
	// fresh lookup for every resolution.
	DefaultMaxFixAge = 5 * time.Minute
)

// Source acquires a single position fix. Implementations are single-shot:
// no streaming or continuous tracking.
type Source interface {
	Acquire(ctx context.Context, clientIP string) (types.Coordinate, error)
}

var _ Source = (*HTTPSource)(nil)

// HTTPSource resolves a client IP to a coordinate via a geolocation
// endpoint. Recent fixes are served from an in-process cache so repeated
// resolutions within the fix-age window cost nothing.
type HTTPSource struct {
	logger   *slog.Logger
	client   *http.Client
	endpoint string
	timeout  time.Duration
	fixes    *cache.Cache
}

type geoResponse struct {
	Lat float64 `json:"latitude"`
	Lon float64 `json:"longitude"`
}

// NewHTTPSource creates a position source against the given geolocation
// endpoint. Zero timeout or maxFixAge select the defaults.
func NewHTTPSource(endpoint string, timeout, maxFixAge time.Duration, logger *slog.Logger) *HTTPSource {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxFixAge <= 0 {
		maxFixAge = DefaultMaxFixAge
	}
	return &HTTPSource{
		logger:   logger,
		client:   &http.Client{Timeout: timeout},
		endpoint: endpoint,
		timeout:  timeout,
		fixes:    cache.New(maxFixAge, 10*time.Minute),
	}
}

// Acquire returns a coordinate for the client, from cache when a recent
// fix exists. Every failure mode (timeout, transport error, bad status,
// malformed body, out-of-range coordinates) surfaces as
// types.ErrPositionUnavailable.
func (s *HTTPSource) Acquire(ctx context.Context, clientIP string) (types.Coordinate, error) {
	if cached, found := s.fixes.Get(clientIP); found {
		return cached.(types.Coordinate), nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	reqURL := fmt.Sprintf("%s?ip=%s&accuracy=city", s.endpoint, url.QueryEscape(clientIP))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return types.Coordinate{}, fmt.Errorf("%w: building request: %w", types.ErrPositionUnavailable, err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.DebugContext(ctx, "Position lookup failed", slog.Any("error", err))
		return types.Coordinate{}, fmt.Errorf("%w: %w", types.ErrPositionUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.Coordinate{}, fmt.Errorf("%w: status %d", types.ErrPositionUnavailable, resp.StatusCode)
	}

	var body geoResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return types.Coordinate{}, fmt.Errorf("%w: decoding response: %w", types.ErrPositionUnavailable, err)
	}

	coord := types.Coordinate{Lat: body.Lat, Lon: body.Lon}
	if !coord.Valid() {
		return types.Coordinate{}, fmt.Errorf("%w: coordinates out of range", types.ErrPositionUnavailable)
	}

	s.fixes.Set(clientIP, coord, cache.DefaultExpiration)
	return coord, nil
}
