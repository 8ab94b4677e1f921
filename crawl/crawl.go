// CLAUDE:SUMMARY Crawl service: wires fetcher, runner, and ledger; runs sources individually or as an isolated batch.
// Package crawl collects climate policy records from public catalog
// sites into per-source CSV tables.
//
// A Service owns one polite fetcher, one orchestrator, and optionally a
// SQLite run ledger. Sources are declarative definitions (see the
// catalog package); running one source never affects another, and a
// batch run reports per-source outcomes instead of failing as a whole.
package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vanessagd15/GCCMPD-climate-policy-dataset/crawl/internal/fetch"
	"github.com/vanessagd15/GCCMPD-climate-policy-dataset/crawl/internal/pipeline"
	"github.com/vanessagd15/GCCMPD-climate-policy-dataset/crawl/internal/runlog"
)

// Service runs crawls.
type Service struct {
	cfg      Config
	logger   *slog.Logger
	runner   *pipeline.Runner
	ledger   *runlog.Log
	counters *pipeline.Counters
}

// New builds a Service from cfg. Close releases the ledger.
func New(cfg Config, logger *slog.Logger) (*Service, error) {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	var ledger *runlog.Log
	if cfg.RunLogPath != "" {
		var err error
		ledger, err = runlog.Open(cfg.RunLogPath, logger)
		if err != nil {
			return nil, fmt.Errorf("crawl: open run ledger: %w", err)
		}
	}

	counters := &pipeline.Counters{}
	fcfg := cfg.fetchConfig()
	fcfg.Logger = logger
	runner := pipeline.NewRunner(fetch.New(fcfg), pipeline.Config{
		MinYear:       cfg.MinYear,
		Workers:       cfg.Workers,
		MaxEmptyPages: cfg.MaxEmptyPages,
		OutputDir:     cfg.OutputDir,
		Logger:        logger,
		RunLog:        ledger,
		Counters:      counters,
	})

	return &Service{
		cfg:      cfg,
		logger:   logger,
		runner:   runner,
		ledger:   ledger,
		counters: counters,
	}, nil
}

// Close releases the run ledger, if any.
func (s *Service) Close() error {
	return s.ledger.Close()
}

// Counters returns a snapshot of the process-wide crawl totals, for a
// status endpoint or a progress printout.
func (s *Service) Counters() Snapshot {
	return s.counters.Snapshot()
}

// RunSource crawls one source to completion.
func (s *Service) RunSource(ctx context.Context, src Source) (Stats, error) {
	return s.runner.RunSource(ctx, src)
}

// SourceResult is one source's outcome within a batch run.
type SourceResult struct {
	Source   string
	Stats    Stats
	Err      error
	Duration time.Duration
}

// Report summarizes a batch run.
type Report struct {
	Started  time.Time
	Finished time.Time
	Results  []SourceResult
}

// Failed returns the results whose source run errored.
func (r Report) Failed() []SourceResult {
	var out []SourceResult
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res)
		}
	}
	return out
}

// RunAll crawls every source in order. A failing source is recorded in
// the report and the batch moves on; only context cancellation stops
// the batch early.
func (s *Service) RunAll(ctx context.Context, sources []Source) Report {
	report := Report{Started: time.Now()}
	for _, src := range sources {
		if ctx.Err() != nil {
			break
		}
		start := time.Now()
		stats, err := s.RunSource(ctx, src)
		report.Results = append(report.Results, SourceResult{
			Source:   src.Name,
			Stats:    stats,
			Err:      err,
			Duration: time.Since(start),
		})
		if err != nil {
			s.logger.Error("source run failed", "source", src.Name, "error", err)
		}
	}
	report.Finished = time.Now()

	s.logger.Info("batch run finished",
		"sources", len(report.Results), "failed", len(report.Failed()),
		"elapsed", report.Finished.Sub(report.Started))
	return report
}
