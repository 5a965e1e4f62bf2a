package undl

import (
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is the production UNDL API root.
const DefaultBaseURL = "https://digitallibrary.un.org/api/v1"

// Defaults for the request policy. The API throttles aggressively, so
// the client stays well under the documented limits unless overridden.
const (
	// defaultRequestsPerSecond is the client-side rate cap.
	defaultRequestsPerSecond = 2

	// defaultMaxRetries is the number of retry attempts after a
	// retryable failure (429 or 5xx) before giving up.
	defaultMaxRetries = 4

	// defaultRetryInitialWait seeds the exponential backoff schedule.
	defaultRetryInitialWait = 5 * time.Second

	// defaultRetryMaxWait caps a single backoff interval. The UNDL API
	// has been observed to demand multi-minute waits under throttling.
	defaultRetryMaxWait = 5 * time.Minute

	// defaultProgressInterval is how many harvested records pass between
	// progress log lines.
	defaultProgressInterval = 1000

	// defaultHTTPTimeout bounds a single API request. Large pages of
	// full MARC records can take a while to stream.
	defaultHTTPTimeout = 2 * time.Minute
)

// Client talks to the UNDL search API. Construct with NewClient; the
// zero value is not usable.
type Client struct {
	httpClient       *http.Client
	baseURL          string
	apiKey           string
	limiter          *rate.Limiter
	logger           *logrus.Logger
	maxRetries       int
	retryInitialWait time.Duration
	retryMaxWait     time.Duration
	progressInterval int
}

// Option customizes a Client. Options follow the functional option
// pattern so NewClient keeps a stable signature.
type Option func(*Client)

// WithBaseURL overrides the API root. Used by tests (httptest servers)
// and by deployments that front the API with a proxy.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithHTTPClient substitutes the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.httpClient = httpClient }
}

// WithLogger routes client logging to the given logrus logger.
func WithLogger(logger *logrus.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithRateLimit sets the client-side request rate in requests per
// second. Zero or negative disables client-side limiting entirely.
func WithRateLimit(requestsPerSecond float64) Option {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
}

// WithRetryPolicy sets the retry budget and backoff bounds for
// retryable API failures.
func WithRetryPolicy(maxRetries int, initialWait, maxWait time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.retryInitialWait = initialWait
		c.retryMaxWait = maxWait
	}
}

// WithProgressInterval sets how many records pass between progress log
// lines during a harvest.
func WithProgressInterval(records int) Option {
	return func(c *Client) {
		if records > 0 {
			c.progressInterval = records
		}
	}
}

// NewClient creates a UNDL API client authenticating with the given key.
// The key is required: the search API rejects anonymous requests.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key must not be empty")
	}

	c := &Client{
		httpClient:       &http.Client{Timeout: defaultHTTPTimeout},
		baseURL:          DefaultBaseURL,
		apiKey:           apiKey,
		limiter:          rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), 1),
		logger:           logrus.StandardLogger(),
		maxRetries:       defaultMaxRetries,
		retryInitialWait: defaultRetryInitialWait,
		retryMaxWait:     defaultRetryMaxWait,
		progressInterval: defaultProgressInterval,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// StatusError reports a non-200 response from the UNDL API.
type StatusError struct {
	// StatusCode is the HTTP status of the failed request.
	StatusCode int

	// RetryAfter is the server-requested wait parsed from the
	// Retry-After header, or zero when absent.
	RetryAfter time.Duration
}

// Error satisfies the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("UNDL API returned status %d", e.StatusCode)
}

// retryable reports whether the failure class is worth retrying:
// throttling and server-side errors are, client errors are not.
func (e *StatusError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}
