// CLAUDE:SUMMARY Bulk dataset retrieval: streamed direct downloads with the crawl retry contract.
// Package download retrieves whole published datasets instead of
// crawling them page by page. Two shapes exist: a plain export URL that
// streams straight to disk, and an export behind a browser-only
// download button (see Browser).
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Config tunes a Client.
type Config struct {
	// Timeout is the per-attempt timeout. Bulk exports are slow to
	// assemble server-side. Default: 30s.
	Timeout time.Duration
	// MaxRetries is the number of attempts before giving up. Default: 3.
	MaxRetries int
	// TimeoutBackoff is multiplied by the attempt index after a timeout.
	// Default: 10s.
	TimeoutBackoff time.Duration
	// ErrorBackoff is multiplied by the attempt index after other
	// failures. Default: 5s.
	ErrorBackoff time.Duration
	// OutputDir receives downloaded files. Default "data_new".
	OutputDir string
	// UserAgents is the identity pool rotated per attempt.
	UserAgents []string
	Logger     *slog.Logger
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.TimeoutBackoff <= 0 {
		c.TimeoutBackoff = 10 * time.Second
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = 5 * time.Second
	}
	if c.OutputDir == "" {
		c.OutputDir = "data_new"
	}
	if len(c.UserAgents) == 0 {
		c.UserAgents = defaultUserAgents
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:121.0) Gecko/20100101 Firefox/121.0",
}

// Client downloads bulk exports.
type Client struct {
	cfg    Config
	client *http.Client
}

// New creates a Client.
func New(cfg Config) *Client {
	cfg.defaults()
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Direct streams url into filename under the output directory, retrying
// transient failures. The file is written through a temporary name and
// renamed only after the stream completes and verifies, so an
// interrupted download never leaves a truncated file behind.
func (c *Client) Direct(ctx context.Context, url, filename string) (string, error) {
	if err := os.MkdirAll(c.cfg.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("download: mkdir %s: %w", c.cfg.OutputDir, err)
	}
	dest := filepath.Join(c.cfg.OutputDir, filename)

	var lastErr error
	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		n, err := c.stream(ctx, url, dest)
		if err == nil {
			c.cfg.Logger.Info("download complete", "url", url, "path", dest, "bytes", n)
			if err := Verify(dest); err != nil {
				return "", err
			}
			return dest, nil
		}
		lastErr = err

		if attempt == c.cfg.MaxRetries || ctx.Err() != nil {
			break
		}
		var wait time.Duration
		if isTimeout(err) {
			wait = time.Duration(attempt) * c.cfg.TimeoutBackoff
		} else {
			wait = time.Duration(attempt) * c.cfg.ErrorBackoff
		}
		c.cfg.Logger.Warn("download attempt failed, backing off",
			"url", url, "attempt", attempt, "wait", wait, "error", err)
		if err := sleepCtx(ctx, wait); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("download %s after %d attempts: %w", url, c.cfg.MaxRetries, lastErr)
}

// stream performs one download attempt into dest via a temp file.
func (c *Client) stream(ctx context.Context, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgents[rand.IntN(len(c.cfg.UserAgents))])

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return 0, fmt.Errorf("http %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("stream body: %w", err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return 0, fmt.Errorf("move into place: %w", err)
	}
	return n, nil
}

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

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
