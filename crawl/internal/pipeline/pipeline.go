// CLAUDE:SUMMARY Crawl orchestrator: page loop with empty-streak termination, per-item worker pool, single-owner aggregation.
// Package pipeline runs one source's crawl end to end.
//
// The page loop always advances: a page whose fetch exhausts its retries
// is logged and skipped, never retried again within the run. Listing
// pages that yield no items feed a consecutive-empty-page streak; when
// the streak reaches the configured threshold the listing is considered
// exhausted and the loop stops early, regardless of the page estimate.
//
// Items on a page are processed by a small worker pool. Workers only
// fetch and extract; every outcome is sent to a single aggregator
// goroutine per page, which owns the CSV writes, the run stats, and the
// ledger entries, so no counter or row is ever written from two places.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/vanessagd15/GCCMPD-climate-policy-dataset/crawl/internal/csvstore"
	"github.com/vanessagd15/GCCMPD-climate-policy-dataset/crawl/internal/fetch"
	"github.com/vanessagd15/GCCMPD-climate-policy-dataset/crawl/internal/fields"
	"github.com/vanessagd15/GCCMPD-climate-policy-dataset/crawl/internal/filter"
	"github.com/vanessagd15/GCCMPD-climate-policy-dataset/crawl/internal/listing"
	"github.com/vanessagd15/GCCMPD-climate-policy-dataset/crawl/internal/paginate"
	"github.com/vanessagd15/GCCMPD-climate-policy-dataset/crawl/internal/runlog"
)

// ErrFatalSetup marks a source whose pagination root could not be
// reached on first contact. The source run is terminal; other sources
// are unaffected.
var ErrFatalSetup = errors.New("pipeline: source setup failed")

// Config tunes a Runner.
type Config struct {
	// MinYear is the acceptance threshold for numeric years.
	MinYear int
	// Workers bounds concurrent detail fetches per page. Default 1
	// (sequential, the polite mode).
	Workers int
	// MaxEmptyPages is the consecutive-empty-page streak that terminates
	// a listing. Default 3.
	MaxEmptyPages int
	// OutputDir receives the per-source CSV tables. Default "data_new".
	OutputDir string

	Logger   *slog.Logger
	RunLog   *runlog.Log
	Counters *Counters
}

func (c *Config) defaults() {
	if c.MinYear == 0 {
		c.MinYear = 2021
	}
	if c.Workers < 1 {
		c.Workers = 1
	}
	if c.MaxEmptyPages < 1 {
		c.MaxEmptyPages = 3
	}
	if c.OutputDir == "" {
		c.OutputDir = "data_new"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Stats summarizes one source run. Owned by the aggregator; read after
// RunSource returns.
type Stats struct {
	Source     string `json:"source"`
	Pages      int    `json:"pages"`
	EmptyPages int    `json:"empty_pages"`
	PageErrors int    `json:"page_errors"`

	Items         int `json:"items"`
	Saved         int `json:"saved"`
	SkippedYear   int `json:"skipped_year"`
	SkippedError  int `json:"skipped_error"`
	Discarded     int `json:"discarded"`
	Indeterminate int `json:"indeterminate"`

	// FallbackPagination is true when the page count came from the
	// source's hardcoded default rather than a matched heuristic.
	FallbackPagination bool `json:"fallback_pagination"`
}

// Runner crawls sources.
type Runner struct {
	cfg       Config
	fetcher   *fetch.Fetcher
	extractor *fields.Extractor
	estimator *paginate.Estimator
}

// NewRunner wires a Runner over the given fetcher.
func NewRunner(f *fetch.Fetcher, cfg Config) *Runner {
	cfg.defaults()
	body := func(ctx context.Context, url string) ([]byte, error) {
		res, err := f.Fetch(ctx, url)
		if err != nil {
			return nil, err
		}
		return res.Body, nil
	}
	return &Runner{
		cfg:       cfg,
		fetcher:   f,
		extractor: fields.New(),
		estimator: paginate.New(body, cfg.Logger),
	}
}

// RunSource crawls one source to completion. The returned error is
// non-nil only for a fatal setup failure (every listing root
// unreachable) or context cancellation; all per-page and per-item
// failures are absorbed into Stats.
func (r *Runner) RunSource(ctx context.Context, src Source) (Stats, error) {
	log := r.cfg.Logger.With("source", src.Name)
	stats := Stats{Source: src.Name}
	store := csvstore.Open(filepath.Join(r.cfg.OutputDir, src.OutputFile), src.Columns)

	log.Info("source run starting", "listings", len(src.Listings), "workers", r.cfg.Workers)

	rootsFailed := 0
	for _, root := range src.Listings {
		err := r.runListing(ctx, src, root, store, log, &stats)
		switch {
		case err == nil:
		case errors.Is(err, ErrFatalSetup):
			rootsFailed++
			log.Error("listing root unreachable", "root", root.Root(), "error", err)
		default:
			return stats, err
		}
	}
	if len(src.Listings) > 0 && rootsFailed == len(src.Listings) {
		return stats, fmt.Errorf("%s: all listing roots unreachable: %w", src.Name, ErrFatalSetup)
	}

	log.Info("source run finished",
		"pages", stats.Pages, "items", stats.Items, "saved", stats.Saved,
		"skipped_year", stats.SkippedYear, "skipped_error", stats.SkippedError,
		"discarded", stats.Discarded)
	return stats, nil
}

func (r *Runner) runListing(ctx context.Context, src Source, root ListingRoot, store *csvstore.Store, log *slog.Logger, stats *Stats) error {
	est, err := r.estimator.Estimate(ctx, root.Root(), src.Paginate)
	if err != nil {
		return fmt.Errorf("resolve pagination for %s: %w", root.Root(), ErrFatalSetup)
	}
	if est.Fallback {
		stats.FallbackPagination = true
	}

	emptyStreak := 0
	for page := root.StartPage; page < root.StartPage+est.TotalPages; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		pageURL := root.PageURL(page)
		start := time.Now()
		res, err := r.fetcher.Fetch(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Retries exhausted. The page is skipped for this run; the
			// index still advances.
			stats.PageErrors++
			r.count(func(c *Counters) { c.Errors.Add(1) })
			r.record(ctx, runlog.Entry{
				Source: src.Name, Kind: runlog.KindPage, URL: pageURL,
				Status: runlog.StatusError, Error: err.Error(),
				DurationMs: time.Since(start).Milliseconds(),
			})
			log.Warn("page skipped after retries", "url", pageURL, "page", page, "error", err)
			continue
		}

		stats.Pages++
		r.count(func(c *Counters) { c.Pages.Add(1) })

		items := listing.Extract(res.Body, src.Listing)
		if len(items) == 0 {
			stats.EmptyPages++
			emptyStreak++
			r.count(func(c *Counters) { c.EmptyPages.Add(1) })
			r.record(ctx, runlog.Entry{
				Source: src.Name, Kind: runlog.KindPage, URL: pageURL,
				Status: runlog.StatusEmpty, StatusCode: res.StatusCode,
				DurationMs: time.Since(start).Milliseconds(),
			})
			if emptyStreak >= r.cfg.MaxEmptyPages {
				log.Info("listing exhausted, consecutive empty pages reached",
					"page", page, "streak", emptyStreak)
				return nil
			}
			continue
		}
		emptyStreak = 0

		r.record(ctx, runlog.Entry{
			Source: src.Name, Kind: runlog.KindPage, URL: pageURL,
			Status: runlog.StatusOK, StatusCode: res.StatusCode,
			DurationMs: time.Since(start).Milliseconds(),
		})
		log.Debug("listing page read", "url", pageURL, "page", page, "items", len(items))

		r.processItems(ctx, src, store, items, log, stats)
	}
	return nil
}

// Per-item outcome kinds.
const (
	itemAccepted = iota
	itemRejected
	itemDiscarded
	itemError
)

type outcome struct {
	kind       int
	url        string
	rec        fields.Record
	reason     filter.Reason
	err        error
	durationMs int64
}

// processItems runs the page's items through the worker pool and
// aggregates every outcome in this goroutine.
func (r *Runner) processItems(ctx context.Context, src Source, store *csvstore.Store, items []listing.ItemRef, log *slog.Logger, stats *Stats) {
	workers := r.cfg.Workers
	if workers > len(items) {
		workers = len(items)
	}

	jobs := make(chan listing.ItemRef)
	results := make(chan outcome, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ref := range jobs {
				results <- r.processItem(ctx, src, ref)
			}
		}()
	}
	go func() {
		defer close(jobs)
		for _, ref := range items {
			select {
			case jobs <- ref:
			case <-ctx.Done():
				return
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	for o := range results {
		stats.Items++
		r.count(func(c *Counters) { c.Items.Add(1) })

		switch o.kind {
		case itemError:
			stats.SkippedError++
			r.count(func(c *Counters) { c.Errors.Add(1) })
			r.record(ctx, runlog.Entry{
				Source: src.Name, Kind: runlog.KindItem, URL: o.url,
				Status: runlog.StatusError, Error: o.err.Error(),
				DurationMs: o.durationMs,
			})
			log.Warn("item skipped", "url", o.url, "error", o.err)

		case itemDiscarded:
			stats.Discarded++
			r.count(func(c *Counters) { c.Skipped.Add(1) })
			r.record(ctx, runlog.Entry{
				Source: src.Name, Kind: runlog.KindItem, URL: o.url,
				Status: runlog.StatusSkipped, Error: "no title",
				DurationMs: o.durationMs,
			})
			log.Debug("item discarded, no title", "url", o.url)

		case itemRejected:
			stats.SkippedYear++
			r.count(func(c *Counters) { c.Skipped.Add(1) })
			r.record(ctx, runlog.Entry{
				Source: src.Name, Kind: runlog.KindItem, URL: o.url,
				Status: runlog.StatusSkipped, Error: string(o.reason),
				DurationMs: o.durationMs,
			})

		case itemAccepted:
			if o.reason == filter.ReasonYearIndeterminate {
				stats.Indeterminate++
			}
			if err := store.Append(o.rec); err != nil {
				stats.SkippedError++
				r.count(func(c *Counters) { c.Errors.Add(1) })
				log.Error("record write failed", "url", o.url, "error", err)
				continue
			}
			stats.Saved++
			r.count(func(c *Counters) { c.Saved.Add(1) })
			r.record(ctx, runlog.Entry{
				Source: src.Name, Kind: runlog.KindItem, URL: o.url,
				Status: runlog.StatusOK, DurationMs: o.durationMs,
			})
		}
	}
}

// processItem resolves one item reference into an outcome. It never
// panics the run: any failure becomes an itemError outcome.
func (r *Runner) processItem(ctx context.Context, src Source, ref listing.ItemRef) outcome {
	start := time.Now()

	rec := make(fields.Record)
	if len(ref.Embedded) > 0 {
		if len(src.Schema.Embedded) > 0 {
			rec = r.extractor.ExtractEmbedded(ref.Embedded, src.Schema)
		} else {
			// HTML listings embed fields under their final column names.
			for k, v := range ref.Embedded {
				rec[k] = fields.Normalize(v)
			}
		}
	}

	if ref.URL != "" && src.needsDetail() {
		res, err := r.fetcher.Fetch(ctx, ref.URL)
		if err != nil {
			return outcome{kind: itemError, url: ref.URL, err: err,
				durationMs: time.Since(start).Milliseconds()}
		}
		detail := r.extractor.ExtractHTML(res.Body, src.Schema)
		// Listing-embedded values win; the detail page fills the gaps.
		for k, v := range detail {
			if rec[k] == "" {
				rec[k] = v
			}
		}
	}

	for col, v := range src.Constants {
		if rec[col] == "" {
			rec[col] = v
		}
	}
	if src.URLColumn != "" && ref.URL != "" {
		rec[src.URLColumn] = ref.URL
	}
	if src.Schema.YearFrom != "" {
		if y := fields.YearOf(rec[src.Schema.YearFrom]); y != "" {
			rec["Year"] = y
		}
	}

	elapsed := time.Since(start).Milliseconds()

	if rec[src.Schema.Title()] == "" {
		return outcome{kind: itemDiscarded, url: ref.URL, durationMs: elapsed}
	}

	d := filter.ShouldAccept(rec["Year"], r.cfg.MinYear)
	if !d.Accept {
		return outcome{kind: itemRejected, url: ref.URL, reason: d.Reason, durationMs: elapsed}
	}
	return outcome{kind: itemAccepted, url: ref.URL, rec: rec, reason: d.Reason, durationMs: elapsed}
}

func (r *Runner) count(fn func(*Counters)) {
	if r.cfg.Counters != nil {
		fn(r.cfg.Counters)
	}
}

func (r *Runner) record(ctx context.Context, e runlog.Entry) {
	r.cfg.RunLog.Record(ctx, e)
}
