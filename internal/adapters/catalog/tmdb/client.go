// Package tmdb provides a resilient client for the two catalog endpoints the
// ingest pipeline needs: discover-by-date and movie detail
package tmdb

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	perr "marquee/internal/platform/errors"
	"marquee/internal/platform/logger"
	"marquee/internal/platform/retry"
)

const (
	baseURLDefault  = "https://api.themoviedb.org/3"
	defaultTimeout  = 10 * time.Second
	defaultUA       = "marquee-ingest"
	defaultLanguage = "en-US"
)

// Options configures the Client
type Options struct {
	// APIKey is required; the catalog rejects unauthenticated calls
	APIKey string

	BaseURL   string
	UserAgent string
	Language  string
	Timeout   time.Duration

	// Retry policy shared by both endpoints
	Retry retry.Policy
}

// Client is a minimal catalog client for the discover and detail endpoints
type Client struct {
	http *http.Client
	opts Options
	log  logger.Logger
}

// NewClient creates a new Client with sane defaults
func NewClient(o Options) *Client {
	if o.BaseURL == "" {
		o.BaseURL = baseURLDefault
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUA
	}
	if o.Language == "" {
		o.Language = defaultLanguage
	}
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	return &Client{
		http: &http.Client{Timeout: o.Timeout},
		opts: o,
		log:  *logger.Named("tmdb"),
	}
}

// get fetches path once under the retry policy and decodes the body into out.
// Transient failures (network, 5xx, rate limit) are retried with backoff; a
// 429 Retry-After is honored by delaying the next attempt
func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) error {
	return c.opts.Retry.Do(ctx, op, func() error {
		return c.getOnce(ctx, path, query, out)
	})
}

// getOnce issues one attempt and classifies the outcome
func (c *Client) getOnce(ctx context.Context, path string, query url.Values, out any) error {
	q := url.Values{}
	for k, vs := range query {
		q[k] = vs
	}
	q.Set("api_key", c.opts.APIKey)
	q.Set("language", c.opts.Language)

	u := c.opts.BaseURL + path + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return perr.Wrapf(err, perr.ErrorCodeUnknown, "tmdb new request failed")
	}
	req.Header.Set("User-Agent", c.opts.UserAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return perr.Wrapf(err, perr.ErrorCodeUnavailable, "tmdb %s transport error", path)
	}
	defer func() {
		if cerr := drainAndClose(resp.Body); cerr != nil {
			c.log.Error().Err(cerr).Str("path", path).Msg("tmdb close body failed")
		}
	}()

	c.log.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("tmdb http response")

	switch {
	case resp.StatusCode == http.StatusOK:
		lim := io.LimitReader(resp.Body, 4<<20)
		b, err := io.ReadAll(lim)
		if err != nil {
			return perr.Wrapf(err, perr.ErrorCodeUnavailable, "tmdb %s read body failed", path)
		}
		if err := json.Unmarshal(b, out); err != nil {
			return perr.Wrapf(err, perr.ErrorCodeMalformed, "tmdb %s malformed response", path)
		}
		return nil

	case resp.StatusCode == http.StatusNotFound:
		return perr.NotFoundf("tmdb %s not found", path)

	case resp.StatusCode == http.StatusUnauthorized:
		return perr.Configf("tmdb rejected api key")

	case resp.StatusCode == http.StatusTooManyRequests:
		after := parseRetryAfter(resp.Header)
		err := perr.RateLimitedf("tmdb %s rate limited", path)
		if after > 0 {
			return &rateLimited{err: err, after: after}
		}
		return err

	case resp.StatusCode >= 500:
		return perr.Unavailablef("tmdb %s server error %d", path, resp.StatusCode)

	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return perr.Newf(perr.ErrorCodeUnknown, "tmdb %s unexpected status %d body %s", path, resp.StatusCode, string(body))
	}
}

// rateLimited carries the server-provided minimum wait to the retry policy
type rateLimited struct {
	err   error
	after time.Duration
}

func (e *rateLimited) Error() string             { return e.err.Error() }
func (e *rateLimited) Unwrap() error             { return e.err }
func (e *rateLimited) RetryAfter() time.Duration { return e.after }

func parseRetryAfter(h http.Header) time.Duration {
	s := h.Get("Retry-After")
	if s == "" {
		return 0
	}
	if secs, err := strconv.Atoi(s); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}

func drainAndClose(rc io.ReadCloser) error {
	_, _ = io.Copy(io.Discard, io.LimitReader(rc, 1<<20))
	return rc.Close()
}
