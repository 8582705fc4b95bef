// Package logsource fetches parsed combat logs from a dps.report compatible
// host.
package logsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/tiergate/internal/adapters/cache"
	"github.com/okian/tiergate/internal/domain/model"
	"github.com/okian/tiergate/pkg/logger"
	"github.com/okian/tiergate/pkg/metrics"
)

const (
	DefaultBaseURL   = "https://dps.report"
	DefaultTimeout   = 15 * time.Second
	DefaultRateLimit = 2 // requests per second

	// maxBody bounds a single log document.
	maxBody = 64 << 20
)

// Client downloads Elite Insights JSON for a log permalink.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	cache      cache.Provider
	ttl        time.Duration
	log        logger.Logger
}

// NewClient creates a client with the given options.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		cache:      cache.Noop{},
		ttl:        time.Hour,
		log:        logger.Named("logsource"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.baseURL = strings.TrimRight(c.baseURL, "/")
	return c
}

// Fetch returns the decoded record behind logURL.
func (c *Client) Fetch(ctx context.Context, logURL string) (*model.EncounterRecord, error) {
	start := time.Now()
	body, cached, err := c.fetchRaw(ctx, logURL)
	elapsed := float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		metrics.RecordLogFetch("error", elapsed)
		return nil, err
	}
	if cached {
		metrics.RecordLogFetch("cached", elapsed)
	} else {
		metrics.RecordLogFetch("ok", elapsed)
	}

	var rec model.EncounterRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, logURL, err)
	}
	if !cached {
		if err := c.cache.Set(ctx, cacheKey(logURL), body, c.ttl); err != nil {
			c.log.Warn(ctx, "cache write failed", logger.String("log_url", logURL), logger.Error(err))
		}
	}
	return &rec, nil
}

func cacheKey(logURL string) string {
	return strings.TrimRight(strings.TrimSpace(logURL), "/")
}

func (c *Client) fetchRaw(ctx context.Context, logURL string) ([]byte, bool, error) {
	if b, err := c.cache.Get(ctx, cacheKey(logURL)); err == nil {
		return b, true, nil
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		c.log.Warn(ctx, "cache read failed", logger.String("log_url", logURL), logger.Error(err))
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, false, fmt.Errorf("%w: rate limit wait: %w", ErrFetch, err)
	}

	reqURL := c.baseURL + "/getJson?" + url.Values{"permalink": {logURL}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, fmt.Errorf("%w: build request: %w", ErrFetch, err)
	}
	req.Header.Set("Accept", "application/json")

	c.log.Debug(ctx, "fetching log", logger.String("log_url", logURL))
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, false, fmt.Errorf("%w: read body: %w", ErrFetch, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, false, fmt.Errorf("%w: status %d: %s", ErrFetch, resp.StatusCode, msg)
	}
	return body, false, nil
}
