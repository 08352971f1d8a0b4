package ingest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"golang.org/x/time/rate"
)

// ClientOptions configures the outbound HTTP client
type ClientOptions struct {
	Timeout      time.Duration
	MaxRetries   int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	// RequestsPerSecond caps outbound fetches across all sources
	// (0 = unlimited)
	RequestsPerSecond float64
	Burst             int
	UserAgent         string
}

// Client is the HTTP client shared by the rest_api and html fetchers. All
// requests pass the rate limiter before going out, so many fast-polling
// sources cannot stampede a remote host.
type Client struct {
	resty   *resty.Client
	limiter *rate.Limiter
}

// NewClient creates the outbound client with retrying transport and rate
// limiting
func NewClient(opts ClientOptions) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	// Zero means default, negative disables retries entirely
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 2
	} else if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.RetryWaitMin <= 0 {
		opts.RetryWaitMin = 500 * time.Millisecond
	}
	if opts.RetryWaitMax <= 0 {
		opts.RetryWaitMax = 5 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "dashcore/1.0"
	}

	// Retries live in the transport; the resty timeout above it caps the
	// whole attempt chain
	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = opts.MaxRetries
	retryClient.RetryWaitMin = opts.RetryWaitMin
	retryClient.RetryWaitMax = opts.RetryWaitMax
	retryClient.Logger = nil
	// Error statuses pass through untouched: upstream failures belong to
	// the per-source backoff, only transport errors are retried here
	retryClient.CheckRetry = func(ctx context.Context, resp *http.Response, err error) (bool, error) {
		if err == nil {
			return false, nil
		}
		return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
	}

	rc := resty.New().
		SetTimeout(opts.Timeout).
		SetHeader("User-Agent", opts.UserAgent)
	rc.SetTransport(&retryablehttp.RoundTripper{Client: retryClient})

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = int(opts.RequestsPerSecond)
			if burst < 1 {
				burst = 1
			}
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}

	return &Client{resty: rc, limiter: limiter}
}

// Get performs a rate-limited GET
func (c *Client) Get(ctx context.Context, url, accept string) (*resty.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return c.resty.R().
		SetContext(ctx).
		SetHeader("Accept", accept).
		Get(url)
}
