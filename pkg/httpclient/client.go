package httpclient

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Config holds HTTP client configuration
type Config struct {
	Timeout         time.Duration
	MaxRetries      int
	RetryWaitMin    time.Duration
	RetryWaitMax    time.Duration
	MaxConnsPerHost int

	// RateLimit caps outgoing requests per second across all callers of the client.
	// Zero disables limiting.
	RateLimit float64
	// Burst is the token bucket size used with RateLimit. Values below 1 are treated as 1.
	Burst int
}

// DefaultConfig returns the settings used for third-party APIs: two quick
// retries and 10 requests per second with a burst of 5.
func DefaultConfig() Config {
	return Config{
		Timeout:         10 * time.Second,
		MaxRetries:      2,
		RetryWaitMin:    200 * time.Millisecond,
		RetryWaitMax:    2 * time.Second,
		MaxConnsPerHost: 20,
		RateLimit:       10,
		Burst:           5,
	}
}

// MaxElapsed is the longest Do can take when every attempt runs into Timeout
// and every backoff draws the top of its jitter range. Rate limiter waits are
// not included.
func (c Config) MaxElapsed() time.Duration {
	total := c.Timeout * time.Duration(c.MaxRetries+1)
	for attempt := 1; attempt <= c.MaxRetries; attempt++ {
		total += maxJitter(c.backoff(attempt))
	}
	return total
}

// backoff is the wait before the given retry attempt, before jitter.
func (c Config) backoff(attempt int) time.Duration {
	wait := c.RetryWaitMin * time.Duration(1<<uint(attempt-1))
	if wait > c.RetryWaitMax {
		wait = c.RetryWaitMax
	}
	return wait
}

// Client wraps http.Client with retry logic, rate limiting and pooled connections.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	config     Config
}

// New creates a new HTTP client with retry and connection pooling
func New(cfg Config) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	c := &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		config: cfg,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c
}

// HTTPClient exposes the pooled *http.Client for libraries that accept one,
// such as the oauth2 token endpoint exchange. Calls made through it bypass
// retries and rate limiting.
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// Do executes HTTP request with retry logic
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)

	var resp *http.Response
	var err error

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(addJitter(c.config.backoff(attempt))):
			case <-ctx.Done():
				return nil, ctx.Err()
			}

			if req.GetBody != nil {
				body, bodyErr := req.GetBody()
				if bodyErr != nil {
					return nil, fmt.Errorf("rewind request body: %w", bodyErr)
				}
				req.Body = body
			}
		}

		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		resp, err = c.httpClient.Do(req)
		if err != nil {
			if isRetryableError(err) && ctx.Err() == nil && attempt < c.config.MaxRetries {
				continue
			}
			return nil, fmt.Errorf("http request failed after %d attempts: %w", attempt+1, err)
		}

		// Retry on 5xx errors (except 501 Not Implemented)
		if resp.StatusCode >= 500 && resp.StatusCode != http.StatusNotImplemented && attempt < c.config.MaxRetries {
			_ = resp.Body.Close()
			continue
		}

		return resp, nil
	}

	return resp, err
}

// isRetryableError determines if an error is retryable
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	// Network errors are retryable. context.DeadlineExceeded satisfies net.Error too.
	var netErr net.Error
	return errors.As(err, &netErr)
}

// addJitter spreads d by up to ±25% so concurrent retries do not line up.
// maxJitter is the largest value addJitter can return for d.
func maxJitter(d time.Duration) time.Duration {
	spread := int64(d) / 2
	return time.Duration(int64(d) - spread/2 + spread)
}

func addJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return d
	}
	spread := int64(d) / 2
	if spread == 0 {
		return d
	}
	return time.Duration(int64(d) - spread/2 + rand.Int64N(spread+1))
}
