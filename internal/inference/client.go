// Package inference provides the client for the remote breed classifier
// service. The classifier accepts raw image bytes and answers with a mapping
// of breed label to confidence percentage.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"path/filepath"
	"sort"
	"time"

	"github.com/cattle-scans/backend/internal/errors"
	"github.com/cattle-scans/backend/internal/logging"
)

// Package-level logger specific to the inference service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar) // Dynamic level control
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "inference.log")
	serviceLevelVar.Set(slog.LevelDebug)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "inference", serviceLevelVar)
	if err != nil {
		log.Printf("FATAL: Failed to initialize inference file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "inference")
		closeLogger = func() error { return nil }
	}
}

// Client sends images to the remote classifier.
type Client struct {
	config      Config
	httpClient  *http.Client
	rateLimiter *time.Ticker
}

// NewClient creates a new inference client.
func NewClient(config Config) (*Client, error) {
	if config.URL == "" {
		return nil, errors.Newf("inference service URL is required").
			Category(errors.CategoryConfiguration).
			Component("inference").
			Build()
	}

	if config.Timeout == 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	if config.RateLimitMS == 0 {
		config.RateLimitMS = DefaultConfig().RateLimitMS
	}

	client := &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		rateLimiter: time.NewTicker(time.Duration(config.RateLimitMS) * time.Millisecond),
	}

	logger.Info("inference client initialized",
		"url", config.URL,
		"timeout", config.Timeout,
		"rate_limit_ms", config.RateLimitMS,
		"api_key_configured", config.APIKey != "")

	return client, nil
}

// Close cleans up client resources.
func (c *Client) Close() {
	c.rateLimiter.Stop()

	if closeLogger != nil {
		if err := closeLogger(); err != nil {
			log.Printf("Error closing inference logger: %v", err)
		}
	}
}

// Classify submits image bytes to the classifier and returns the ranked
// prediction list, sorted descending by confidence with ties broken by
// ascending label so the ordering is deterministic.
func (c *Client) Classify(ctx context.Context, image []byte) ([]Prediction, error) {
	if len(image) == 0 {
		return nil, errors.Newf("empty image payload").
			Category(errors.CategoryValidation).
			Component("inference").
			Build()
	}

	select {
	case <-c.rateLimiter.C:
	case <-ctx.Done():
		return nil, inferenceError(fmt.Errorf("classification cancelled: %w", ctx.Err()), c.config)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	start := time.Now()
	labels, err := c.doClassify(reqCtx, image)
	if err != nil {
		logger.Error("classification failed",
			"error", err,
			"image_bytes", len(image),
			"duration_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	predictions := rankPredictions(labels)

	logger.Debug("classification complete",
		"labels", len(predictions),
		"headline", predictions[0].Label,
		"headline_confidence", predictions[0].Confidence,
		"duration_ms", time.Since(start).Milliseconds())

	return predictions, nil
}

// doClassify performs the HTTP round trip and decodes the label map.
func (c *Client) doClassify(ctx context.Context, image []byte) (map[string]float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(image))
	if err != nil {
		return nil, inferenceError(fmt.Errorf("building classify request: %w", err), c.config)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if c.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, inferenceError(fmt.Errorf("inference service unreachable: %w", err), c.config)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Warn("failed to close response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, inferenceError(fmt.Errorf("inference service returned status %d: %s", resp.StatusCode, string(body)), c.config)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, inferenceError(fmt.Errorf("reading inference response: %w", err), c.config)
	}

	labels, err := decodeLabelMap(body)
	if err != nil {
		return nil, inferenceError(err, c.config)
	}

	return labels, nil
}

// decodeLabelMap accepts either a wrapped or a bare label->confidence map.
func decodeLabelMap(body []byte) (map[string]float64, error) {
	var wrapped classifyResponse
	if err := json.Unmarshal(body, &wrapped); err == nil && len(wrapped.Predictions) > 0 {
		return wrapped.Predictions, nil
	}

	var bare map[string]float64
	if err := json.Unmarshal(body, &bare); err != nil {
		return nil, fmt.Errorf("malformed inference response: %w", err)
	}
	if len(bare) == 0 {
		return nil, fmt.Errorf("inference service returned no predictions")
	}

	return bare, nil
}

// rankPredictions sorts the label map into the canonical prediction order.
func rankPredictions(labels map[string]float64) []Prediction {
	predictions := make([]Prediction, 0, len(labels))
	for label, confidence := range labels {
		predictions = append(predictions, Prediction{Label: label, Confidence: confidence})
	}

	sort.Slice(predictions, func(i, j int) bool {
		if predictions[i].Confidence != predictions[j].Confidence {
			return predictions[i].Confidence > predictions[j].Confidence
		}
		return predictions[i].Label < predictions[j].Label
	})

	return predictions
}

// inferenceError wraps a failure of the classifier round trip.
func inferenceError(err error, config Config) error {
	return errors.New(err).
		Category(errors.CategoryInference).
		Component("inference").
		NetworkContext(config.URL, config.Timeout).
		Build()
}
