// CLAUDE:SUMMARY Headless-browser export: stealth page, click the export button, wait for the file to land.
package download

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// BrowserConfig tunes a browser export.
type BrowserConfig struct {
	// OutputDir receives the exported file. Default "data_new".
	OutputDir string
	// ElementTimeout bounds the wait for the export button. Default 100s.
	ElementTimeout time.Duration
	// DownloadTimeout bounds the wait for the file to finish landing on
	// disk. Default 5m.
	DownloadTimeout time.Duration
	Logger          *slog.Logger
}

func (c *BrowserConfig) defaults() {
	if c.OutputDir == "" {
		c.OutputDir = "data_new"
	}
	if c.ElementTimeout <= 0 {
		c.ElementTimeout = 100 * time.Second
	}
	if c.DownloadTimeout <= 0 {
		c.DownloadTimeout = 5 * time.Minute
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// BrowserExport drives a headless browser to a page whose export is
// only reachable through a download button, clicks it, and waits for
// the matching file to appear in the output directory. Returns the
// downloaded file's path.
//
// Exports that sit behind interactive buttons cannot be fetched with a
// plain GET; the site assembles the file in the session after a script
// click.
func BrowserExport(ctx context.Context, pageURL, buttonSelector, pattern string, cfg BrowserConfig) (string, error) {
	cfg.defaults()

	dir, err := filepath.Abs(cfg.OutputDir)
	if err != nil {
		return "", fmt.Errorf("download: resolve output dir: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("download: mkdir %s: %w", dir, err)
	}

	u, err := launcher.New().Headless(true).Launch()
	if err != nil {
		return "", fmt.Errorf("download: launch browser: %w", err)
	}
	browser := rod.New().ControlURL(u).Context(ctx)
	if err := browser.Connect(); err != nil {
		return "", fmt.Errorf("download: connect browser: %w", err)
	}
	defer browser.Close()

	if err := (proto.BrowserSetDownloadBehavior{
		Behavior:     proto.BrowserSetDownloadBehaviorBehaviorAllow,
		DownloadPath: dir,
	}).Call(browser); err != nil {
		return "", fmt.Errorf("download: set download dir: %w", err)
	}

	page, err := stealth.Page(browser)
	if err != nil {
		return "", fmt.Errorf("download: open page: %w", err)
	}
	if err := page.Navigate(pageURL); err != nil {
		return "", fmt.Errorf("download: navigate %s: %w", pageURL, err)
	}

	cfg.Logger.Info("waiting for export button", "url", pageURL, "selector", buttonSelector)
	el, err := page.Timeout(cfg.ElementTimeout).Element(buttonSelector)
	if err != nil {
		return "", fmt.Errorf("download: export button %q: %w", buttonSelector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return "", fmt.Errorf("download: click export button: %w", err)
	}

	cfg.Logger.Info("export started, waiting for file", "dir", dir, "pattern", pattern)
	path, err := waitForFile(ctx, dir, pattern, cfg.DownloadTimeout)
	if err != nil {
		return "", err
	}
	if err := Verify(path); err != nil {
		return "", err
	}
	cfg.Logger.Info("export complete", "path", path)
	return path, nil
}

// waitForFile polls dir until a file matching pattern exists with no
// in-progress partial download alongside it.
func waitForFile(ctx context.Context, dir, pattern string, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		partials, _ := filepath.Glob(filepath.Join(dir, "*.crdownload"))
		if len(partials) == 0 {
			matches, _ := filepath.Glob(filepath.Join(dir, pattern))
			if latest := newest(matches); latest != "" {
				return latest, nil
			}
		}
		if err := sleepCtx(ctx, 2*time.Second); err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("download: no %s file appeared in %s within %s",
		strings.TrimPrefix(pattern, "*"), dir, timeout)
}

// newest returns the most recently modified file no older than a
// minute, so a stale export from an earlier run is never picked up.
func newest(paths []string) string {
	var best string
	var bestMod time.Time
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if time.Since(info.ModTime()) > time.Minute {
			continue
		}
		if info.ModTime().After(bestMod) {
			best, bestMod = p, info.ModTime()
		}
	}
	return best
}
