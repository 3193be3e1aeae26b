package archive

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"

	"newsarchive/kinderr"
	"newsarchive/logging"
)

// httpClient wraps net/http with the archive's rate limiting and
// retry/backoff policy: token-bucket throttling per host, exponential
// backoff with ±25% jitter on 429/5xx, Retry-After honored when present,
// and any other 4xx surfaced immediately as non-retryable.
type httpClient struct {
	client  *http.Client
	limiter *hostLimiters
	log     *logging.ContextLogger

	maxAttempts  int
	initialDelay time.Duration
}

func newHTTPClient(requestsPerSecond float64, maxAttempts int, timeout time.Duration, log *logging.ContextLogger) *httpClient {
	return &httpClient{
		client:       &http.Client{Timeout: timeout},
		limiter:      newHostLimiters(requestsPerSecond),
		log:          log.WithField("component", "archive.http"),
		maxAttempts:  maxAttempts,
		initialDelay: time.Second,
	}
}

// get performs a rate-limited, retried GET request and returns the
// response body.
func (c *httpClient) get(ctx context.Context, rawURL string) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, kinderr.Wrap(kinderr.Validation, err, "parse request URL")
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.initialDelay
	eb.Multiplier = 2
	eb.RandomizationFactor = 0.25
	eb.MaxInterval = 30 * time.Second

	body, err := backoff.Retry(ctx, func() ([]byte, error) {
		if err := c.limiter.Wait(ctx, u.Host); err != nil {
			return nil, err
		}

		start := time.Now()
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, backoff.Permanent(kinderr.Wrap(kinderr.Internal, err, "build request"))
		}
		req.Header.Set("User-Agent", "newsarchive-pipeline/1.0")

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, kinderr.Wrap(kinderr.TransientUpstream, err, "request failed")
		}
		defer func() { _ = resp.Body.Close() }()

		data, readErr := io.ReadAll(resp.Body)
		c.log.WithFields(logging.HTTPFields(http.MethodGet, rawURL, resp.StatusCode, time.Since(start))).Debug("archive request")

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			if wait := retryAfter(resp.Header.Get("Retry-After")); wait > 0 {
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return nil, backoff.Permanent(ctx.Err())
				}
			}
			return nil, kinderr.New(kinderr.TransientUpstream, "rate limited (429)")
		case resp.StatusCode >= 500:
			return nil, kinderr.New(kinderr.TransientUpstream, fmt.Sprintf("upstream error %d", resp.StatusCode))
		case resp.StatusCode >= 400:
			return nil, backoff.Permanent(kinderr.New(kinderr.PermanentUpstream, fmt.Sprintf("upstream error %d", resp.StatusCode)))
		}
		if readErr != nil {
			return nil, kinderr.Wrap(kinderr.TransientUpstream, readErr, "read response body")
		}
		return data, nil
	}, backoff.WithBackOff(eb), backoff.WithMaxTries(uint(c.maxAttempts)))

	if err != nil {
		return nil, err
	}
	return body, nil
}

func retryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	if secs, err := strconv.Atoi(header); err == nil {
		return time.Duration(secs) * time.Second
	}
	if when, err := http.ParseTime(header); err == nil {
		return time.Until(when)
	}
	return 0
}
