// Package geolocation resolves a best-effort coordinate for a submission.
// Resolution failure is never fatal to callers; the pipeline records an
// absent location instead.
package geolocation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/cattle-scans/backend/internal/errors"
	"github.com/cattle-scans/backend/internal/logging"
)

var logger *slog.Logger

func init() {
	logger = logging.ForService("geolocation")
}

// Coordinates is a resolved location with its accuracy radius in meters.
type Coordinates struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
	Accuracy  float64 `json:"accuracy"`
}

// Resolver is the contract the pipeline resolves locations through.
type Resolver interface {
	Resolve(ctx context.Context) (*Coordinates, error)
}

// Config holds the configuration for the HTTP resolver.
type Config struct {
	URL     string
	Timeout time.Duration
}

// HTTPResolver queries a geolocation service over HTTP.
type HTTPResolver struct {
	config     Config
	httpClient *http.Client
}

// NewHTTPResolver creates a resolver against the configured geo endpoint.
func NewHTTPResolver(config Config) *HTTPResolver {
	if config.Timeout == 0 {
		config.Timeout = 5 * time.Second
	}
	return &HTTPResolver{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Resolve performs the lookup. Errors degrade to "no location" at call
// sites, so they carry the location category rather than a pipeline stage.
func (r *HTTPResolver) Resolve(ctx context.Context) (*Coordinates, error) {
	reqCtx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, r.config.URL, http.NoBody)
	if err != nil {
		return nil, locationError(fmt.Errorf("building geolocation request: %w", err))
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, locationError(fmt.Errorf("geolocation service unreachable: %w", err))
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, locationError(fmt.Errorf("geolocation service returned status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return nil, locationError(fmt.Errorf("reading geolocation response: %w", err))
	}

	var coords Coordinates
	if err := json.Unmarshal(body, &coords); err != nil {
		return nil, locationError(fmt.Errorf("malformed geolocation response: %w", err))
	}

	if coords.Latitude < -90 || coords.Latitude > 90 || coords.Longitude < -180 || coords.Longitude > 180 {
		return nil, locationError(fmt.Errorf("geolocation out of range: %f, %f", coords.Latitude, coords.Longitude))
	}

	logger.Debug("location resolved",
		"lat", coords.Latitude,
		"lon", coords.Longitude,
		"accuracy_m", coords.Accuracy)

	return &coords, nil
}

func locationError(err error) error {
	return errors.New(err).
		Category(errors.CategoryLocation).
		Component("geolocation").
		Build()
}
