// CLAUDE:SUMMARY Polite HTTP fetcher: rotating User-Agent, jittered delay, linear backoff retries split by failure kind.
// Package fetch implements polite, resilient HTTP fetching for catalog sites.
//
// Every request carries a freshly rotated User-Agent. Successful fetches are
// followed by a randomized politeness delay so a run never hammers a host.
// Timeouts and other network failures are retried with linearly increasing
// backoff; after MaxRetries the error is returned and the caller is expected
// to skip that unit of work, never to abort the run.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// Config configures the fetcher.
type Config struct {
	// Timeout is the per-attempt connect/read timeout. Default: 10s.
	Timeout time.Duration
	// MaxRetries is the number of attempts before giving up. Default: 3.
	MaxRetries int
	// MaxBytes caps the response body size. Default: 10MB.
	MaxBytes int64
	// DelayMin/DelayMax bound the politeness delay after a successful
	// fetch. Defaults: 1s and 3s.
	DelayMin time.Duration
	DelayMax time.Duration
	// TimeoutBackoff is multiplied by the attempt index after a timeout.
	// Default: 5s (so 5s, 10s, 15s).
	TimeoutBackoff time.Duration
	// ErrorBackoff is multiplied by the attempt index after any other
	// network-class failure. Default: 2s.
	ErrorBackoff time.Duration
	// RateLimit is a global requests-per-second cap shared by all callers
	// of this Fetcher. <= 0 disables the limiter.
	RateLimit float64
	// UserAgents is the identity pool rotated per request.
	// Default: a built-in set of current browser strings.
	UserAgents []string
	// Headers are extra headers sent with every request.
	Headers map[string]string
	// Logger for retry/skip diagnostics. Default: slog.Default().
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
	if c.DelayMin <= 0 {
		c.DelayMin = time.Second
	}
	if c.DelayMax <= c.DelayMin {
		// Anchor to DelayMin so a wide configured minimum keeps a
		// positive jitter span.
		c.DelayMax = c.DelayMin + 2*time.Second
	}
	if c.TimeoutBackoff <= 0 {
		c.TimeoutBackoff = 5 * time.Second
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = 2 * time.Second
	}
	if len(c.UserAgents) == 0 {
		c.UserAgents = defaultUserAgents
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Result is the outcome of a successful fetch.
type Result struct {
	Body       []byte
	StatusCode int
	Attempts   int // 1-based attempt that succeeded
}

// Fetcher performs GET requests with retry, backoff, and politeness delay.
type Fetcher struct {
	client  *http.Client
	config  Config
	limiter *rate.Limiter
}

// New creates a Fetcher.
func New(cfg Config) *Fetcher {
	cfg.defaults()
	f := &Fetcher{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
	}
	if cfg.RateLimit > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return f
}

// Fetch retrieves a URL, retrying transient failures up to MaxRetries.
// On success the body is returned after a randomized politeness delay.
// A non-2xx/3xx status is treated as a retryable failure like any other
// network error. The returned error after exhaustion means "skip this
// unit of work", not "abort the run".
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Result, error) {
	var lastErr error

	for attempt := 1; attempt <= f.config.MaxRetries; attempt++ {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		body, status, err := f.attempt(ctx, url)
		if err == nil {
			if err := sleepCtx(ctx, f.politenessDelay()); err != nil {
				// Interrupted during the delay; the fetch itself succeeded.
				return &Result{Body: body, StatusCode: status, Attempts: attempt}, nil
			}
			return &Result{Body: body, StatusCode: status, Attempts: attempt}, nil
		}
		lastErr = err

		if attempt == f.config.MaxRetries {
			break
		}

		var wait time.Duration
		if isTimeout(err) {
			wait = time.Duration(attempt) * f.config.TimeoutBackoff
			f.config.Logger.Warn("fetch: timeout, backing off",
				"url", url, "attempt", attempt, "wait", wait)
		} else {
			wait = time.Duration(attempt) * f.config.ErrorBackoff
			f.config.Logger.Warn("fetch: request failed, backing off",
				"url", url, "attempt", attempt, "wait", wait, "error", err)
		}
		if err := sleepCtx(ctx, wait); err != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("fetch %s after %d attempts: %w", url, f.config.MaxRetries, lastErr)
}

// attempt issues one GET with a rotated User-Agent.
func (f *Fetcher) attempt(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgents[rand.IntN(len(f.config.UserAgents))])
	for k, v := range f.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, resp.StatusCode, fmt.Errorf("http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return body, resp.StatusCode, nil
}

func (f *Fetcher) politenessDelay() time.Duration {
	span := f.config.DelayMax - f.config.DelayMin
	return f.config.DelayMin + time.Duration(rand.Int64N(int64(span)))
}

// isTimeout reports whether err is a read/connect timeout (as opposed to
// a reset, refused connection, bad status, or DNS failure).
func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}
	return false
}

// sleepCtx sleeps for d or until the context is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
