package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/rickgao/eludris-client/internal/entity"
)

// Default endpoints of the reference instance.
const (
	DefaultBaseURL = "https://api.eludris.gay"
	DefaultCDNURL  = "https://cdn.eludris.gay"
)

// Client provides access to the Eludris REST API.
type Client struct {
	baseURL    string
	cdnURL     string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter // nil means unlimited
	entities   entity.Factory

	maxRetries   int
	retryBackoff time.Duration
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client. An empty baseURL uses
// DefaultBaseURL.
func NewClient(baseURL, token string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		cdnURL:  DefaultCDNURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger:       slog.Default(),
		entities:     entity.NewFactory(),
		maxRetries:   3,
		retryBackoff: time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithRetries sets the retry configuration.
func WithRetries(max int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = max
		c.retryBackoff = backoff
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit limits outgoing requests to rps per second with the given
// burst. A non-positive rps removes the limit.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithCDNURL sets the file server URL.
func WithCDNURL(url string) ClientOption {
	return func(c *Client) {
		if url != "" {
			c.cdnURL = strings.TrimRight(url, "/")
		}
	}
}

// WithEntityFactory sets the factory used to decode responses.
func WithEntityFactory(f entity.Factory) ClientOption {
	return func(c *Client) {
		if f != nil {
			c.entities = f
		}
	}
}

// Token returns the session token used for authentication.
func (c *Client) Token() string {
	return c.token
}

// Close releases idle connections held by the HTTP client.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}
