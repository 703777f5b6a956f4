package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/noah-isme/backend-dapur/internal/obs"
	"github.com/noah-isme/backend-dapur/internal/resilience"
)

// ErrClassifierUnavailable is returned when the dish classifier cannot produce a prediction.
var ErrClassifierUnavailable = errors.New("analysis: classifier unavailable")

// Classifier predicts the dish shown in an image.
type Classifier interface {
	Classify(ctx context.Context, image []byte) (Prediction, error)
}

// ClassifierConfig configures HTTPClassifier.
type ClassifierConfig struct {
	URL         string
	Timeout     time.Duration
	MaxAttempts int
	Breaker     *resilience.Breaker
	// Transport overrides the base round tripper; it is wrapped with otelhttp.
	Transport http.RoundTripper
	Meter     metric.Meter
}

// HTTPClassifier calls an image-classification endpoint that accepts raw image
// bytes and answers with [{"label": "...", "score": 0.93}, ...].
type HTTPClassifier struct {
	url     string
	client  resilience.HTTPClient
	latency metric.Float64Histogram
}

// NewHTTPClassifier constructs an HTTPClassifier.
func NewHTTPClassifier(cfg ClassifierConfig) (*HTTPClassifier, error) {
	if cfg.URL == "" {
		return nil, errors.New("analysis: classifier url is required")
	}
	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	meter := cfg.Meter
	if meter == nil {
		meter = otel.Meter("github.com/noah-isme/backend-dapur/internal/analysis")
	}
	latency, err := meter.Float64Histogram("classifier.request.duration",
		metric.WithUnit("ms"),
		metric.WithDescription("Duration of dish classifier attempts."))
	if err != nil {
		return nil, fmt.Errorf("create classifier histogram: %w", err)
	}
	breaker := cfg.Breaker
	if breaker == nil {
		breaker = resilience.New(resilience.Settings{Target: "classifier", MinRequests: 5, OpenFor: 30 * time.Second})
	}
	c := &HTTPClassifier{url: cfg.URL, latency: latency}
	c.client = resilience.HTTPClient{
		Client:      &http.Client{Transport: otelhttp.NewTransport(base)},
		Breaker:     breaker,
		BaseBackoff: 200 * time.Millisecond,
		MaxAttempts: max(cfg.MaxAttempts, 1),
		Jitter:      0.2,
		Timeout:     cfg.Timeout,
		Observe:     c.observe,
	}
	return c, nil
}

func (c *HTTPClassifier) observe(d time.Duration, err error) {
	ms := float64(d) / float64(time.Millisecond)
	obs.ObserveClassifierLatency(ms)
	c.latency.Record(context.Background(), ms, metric.WithAttributes(attribute.Bool("error", err != nil)))
}

type classification struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classify posts the image and returns the highest scoring label.
func (c *HTTPClassifier) Classify(ctx context.Context, image []byte) (Prediction, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(image))
	if err != nil {
		return Prediction{}, fmt.Errorf("build classifier request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(ctx, req)
	if err != nil {
		return Prediction{}, fmt.Errorf("%w: %v", ErrClassifierUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Prediction{}, fmt.Errorf("%w: status %d: %s", ErrClassifierUnavailable, resp.StatusCode, bytes.TrimSpace(msg))
	}
	var results []classification
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return Prediction{}, fmt.Errorf("%w: decode response: %v", ErrClassifierUnavailable, err)
	}
	if len(results) == 0 {
		return Prediction{}, fmt.Errorf("%w: empty response", ErrClassifierUnavailable)
	}
	best := results[0]
	for _, r := range results[1:] {
		if r.Score > best.Score {
			best = r
		}
	}
	return Prediction{Label: best.Label, Confidence: best.Score}, nil
}
