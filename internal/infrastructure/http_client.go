package infrastructure

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"adpivot/internal/domain"
	"adpivot/pkg/logger"
	"adpivot/pkg/metrics"

	"golang.org/x/time/rate"
)

const productCombinationPath = "/api/advertising/product-combination"

// upstream error bodies are truncated to this many bytes in error messages
const maxErrorBody = 512

// HTTPClientConfig configures the upstream ads API and the export sink
type HTTPClientConfig struct {
	AdsURL             string
	Member             string
	SinkURL            string
	SinkSecret         string
	Timeout            time.Duration
	InsecureTLS        bool
	RateLimitPerSecond int
	RateLimitBurst     int
}

// implements domain.AdSource and domain.ExportClient
type HTTPClient struct {
	client      *http.Client
	adsURL      string
	member      string
	sinkURL     string
	sinkSecret  string
	logger      *logger.Logger
	metrics     *metrics.Metrics
	rateLimiter *rate.Limiter
}

// creates a new HTTP client
func NewHTTPClient(cfg HTTPClientConfig, logger *logger.Logger, metrics *metrics.Metrics) *HTTPClient {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}
	if cfg.InsecureTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 1
	}

	return &HTTPClient{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		adsURL:      cfg.AdsURL,
		member:      cfg.Member,
		sinkURL:     cfg.SinkURL,
		sinkSecret:  cfg.SinkSecret,
		logger:      logger,
		metrics:     metrics,
		rateLimiter: rate.NewLimiter(rate.Limit(cfg.RateLimitPerSecond), burst),
	}
}

// FetchAds loads the ad list for params from the upstream API. A response
// whose data.results is not an array yields an empty list, not an error.
func (c *HTTPClient) FetchAds(ctx context.Context, params domain.FetchParams) ([]domain.Ad, error) {
	if c.adsURL == "" {
		return nil, fmt.Errorf("ads API URL not configured")
	}

	start := time.Now()

	// Apply rate limiting
	if err := c.rateLimiter.Wait(ctx); err != nil {
		c.metrics.RecordExternalAPIFailure("ads", "rate_limit")
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	endpoint, err := c.adsEndpoint(params)
	if err != nil {
		c.metrics.RecordExternalAPIFailure("ads", "request_creation")
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		c.metrics.RecordExternalAPIFailure("ads", "request_creation")
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.RecordExternalAPIFailure("ads", "network_error")
		return nil, fmt.Errorf("failed to fetch ads data: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	duration := time.Since(start)
	if err != nil {
		c.metrics.RecordExternalAPIFailure("ads", "read_body")
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.RecordExternalAPICall("ads", fmt.Sprintf("error_%d", resp.StatusCode), duration)
		return nil, fmt.Errorf("ads API returned status %d: %s", resp.StatusCode, truncate(body, maxErrorBody))
	}

	var payload domain.AdsPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		c.metrics.RecordExternalAPIFailure("ads", "json_parse")
		return nil, fmt.Errorf("failed to parse ads data: %w", err)
	}

	c.metrics.RecordExternalAPICall("ads", "success", duration)

	ads, skipped, ok := payload.Ads()
	if !ok {
		c.metrics.RecordExternalAPIFailure("ads", "non_array_results")
		c.logger.WithContext(ctx).WithField("query", params.Query).Warn("Ads API results is not an array, treating as empty")
	}
	for range skipped {
		c.metrics.RecordExternalAPIFailure("ads", "malformed_row")
	}
	if skipped > 0 {
		c.logger.WithContext(ctx).WithFields(map[string]any{
			"query":   params.Query,
			"skipped": skipped,
		}).Warn("Dropped malformed ads from API results")
	}

	c.metrics.RecordAdsFetched(params.Platform, len(ads))

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"query":    params.Query,
		"platform": params.Platform,
		"duration": duration,
		"records":  len(ads),
	}).Info("Successfully fetched ads data")

	return ads, nil
}

func (c *HTTPClient) adsEndpoint(params domain.FetchParams) (string, error) {
	u, err := url.Parse(c.adsURL + productCombinationPath)
	if err != nil {
		return "", fmt.Errorf("failed to parse ads API URL: %w", err)
	}

	q := u.Query()
	if c.member != "" {
		q.Set("member", c.member)
	}
	q.Set("query", params.Query)
	if params.Platform != "" {
		q.Set("platform", params.Platform)
	}
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// implements domain.ExportClient
func (c *HTTPClient) Export(ctx context.Context, data domain.ExportData) error {
	if c.sinkURL == "" {
		return fmt.Errorf("sink URL not configured")
	}

	start := time.Now()

	// Apply rate limiting
	if err := c.rateLimiter.Wait(ctx); err != nil {
		c.metrics.RecordExternalAPIFailure("sink", "rate_limit")
		return fmt.Errorf("rate limit exceeded: %w", err)
	}

	payload, err := json.Marshal(data)
	if err != nil {
		c.metrics.RecordExternalAPIFailure("sink", "json_marshal")
		return fmt.Errorf("failed to marshal export data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sinkURL, bytes.NewReader(payload))
	if err != nil {
		c.metrics.RecordExternalAPIFailure("sink", "request_creation")
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	// Add HMAC signature if secret is provided
	if c.sinkSecret != "" {
		req.Header.Set("X-Signature", Sign(c.sinkSecret, payload))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.RecordExternalAPIFailure("sink", "network_error")
		return fmt.Errorf("failed to export data: %w", err)
	}
	defer resp.Body.Close()

	duration := time.Since(start)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.RecordExternalAPICall("sink", fmt.Sprintf("error_%d", resp.StatusCode), duration)
		return fmt.Errorf("sink API returned status %d", resp.StatusCode)
	}

	c.metrics.RecordExternalAPICall("sink", "success", duration)

	c.logger.WithContext(ctx).WithFields(map[string]any{
		"url":      c.sinkURL,
		"duration": duration,
		"view":     data.View,
		"rows":     len(data.Rows),
	}).Info("Successfully exported data")

	return nil
}

// Sign returns the hex HMAC-SHA256 of payload, sent as X-Signature
func Sign(secret string, payload []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

func truncate(body []byte, n int) string {
	if len(body) > n {
		return string(body[:n]) + "..."
	}
	return string(body)
}
