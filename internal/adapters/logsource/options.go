package logsource

import (
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/tiergate/internal/adapters/cache"
	"github.com/okian/tiergate/pkg/logger"
)

// ClientOption configures the client.
type ClientOption func(*Client)

// WithBaseURL sets the log host.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = baseURL
		}
	}
}

// WithRateLimit caps outgoing requests per second.
func WithRateLimit(requestsPerSecond float64) ClientOption {
	return func(c *Client) {
		if requestsPerSecond > 0 {
			burst := int(requestsPerSecond)
			if burst < 1 {
				burst = 1
			}
			c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
		}
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithCache stores fetched documents in p for ttl.
func WithCache(p cache.Provider, ttl time.Duration) ClientOption {
	return func(c *Client) {
		if p != nil {
			c.cache = p
			c.ttl = ttl
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l logger.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}
