// CLAUDE:SUMMARY CLI entry point: crawl, merge, and download subcommands plus an optional chi status endpoint.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/vanessagd15/GCCMPD-climate-policy-dataset/crawl"
	"github.com/vanessagd15/GCCMPD-climate-policy-dataset/crawl/catalog"
	"github.com/vanessagd15/GCCMPD-climate-policy-dataset/crawl/download"
	"github.com/vanessagd15/GCCMPD-climate-policy-dataset/merge"
)

func main() {
	logLevel := env("LOG_LEVEL", "info")
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "crawl":
		err = runCrawl(ctx, logger, os.Args[2:])
	case "merge":
		err = runMerge(logger, os.Args[2:])
	case "download":
		err = runDownload(ctx, logger, os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		slog.Error("command failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: gccmpd <command> [flags]

commands:
  crawl      collect policy records from the source catalog
  merge      reconcile old and new crawl snapshots
  download   fetch bulk dataset exports

run "gccmpd <command> -h" for the command's flags`)
}

func runCrawl(ctx context.Context, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("crawl", flag.ExitOnError)
	configPath := fs.String("config", "", "YAML config file")
	sources := fs.String("sources", "", "comma-separated source names (default: all)")
	minYear := fs.Int("min-year", 0, "minimum acceptance year (overrides config)")
	out := fs.String("out", "", "output directory (overrides config)")
	workers := fs.Int("workers", 0, "concurrent detail fetches per page (overrides config)")
	runlogPath := fs.String("runlog", "", "SQLite run ledger path (overrides config)")
	statusAddr := fs.String("status", "", "serve live counters on this address (e.g. :8080)")
	listSources := fs.Bool("list", false, "print source names and exit")
	fs.Parse(args)

	if *listSources {
		for _, name := range catalog.Names() {
			fmt.Println(name)
		}
		return nil
	}

	var cfg crawl.Config
	if *configPath != "" {
		var err error
		cfg, err = crawl.LoadConfig(*configPath)
		if err != nil {
			return err
		}
	}
	if *minYear > 0 {
		cfg.MinYear = *minYear
	}
	if *out != "" {
		cfg.OutputDir = *out
	}
	if *workers > 0 {
		cfg.Workers = *workers
	}
	if *runlogPath != "" {
		cfg.RunLogPath = *runlogPath
	}

	selected, err := selectSources(*sources)
	if err != nil {
		return err
	}

	svc, err := crawl.New(cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	if *statusAddr != "" {
		go serveStatus(ctx, *statusAddr, svc, logger)
	}

	report := svc.RunAll(ctx, selected)
	for _, res := range report.Results {
		if res.Err != nil {
			continue
		}
		logger.Info("source finished",
			"source", res.Source, "saved", res.Stats.Saved,
			"skipped_year", res.Stats.SkippedYear, "errors", res.Stats.SkippedError,
			"elapsed", res.Duration)
	}
	if failed := report.Failed(); len(failed) == len(report.Results) && len(failed) > 0 {
		return fmt.Errorf("all %d sources failed", len(failed))
	}
	return ctx.Err()
}

func selectSources(names string) ([]crawl.Source, error) {
	if names == "" {
		return catalog.Sources(), nil
	}
	var out []crawl.Source
	for _, name := range strings.Split(names, ",") {
		src, err := catalog.ByName(strings.TrimSpace(name))
		if err != nil {
			return nil, err
		}
		out = append(out, src)
	}
	return out, nil
}

// serveStatus exposes the live crawl counters while a run is in flight.
func serveStatus(ctx context.Context, addr string, svc *crawl.Service, logger *slog.Logger) {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})
	r.Get("/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, svc.Counters())
	})

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("status endpoint starting", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("status endpoint", "error", err)
	}
}

func runMerge(logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("merge", flag.ExitOnError)
	oldDir := fs.String("old", "files", "directory with the older snapshots")
	newDir := fs.String("new", "data_new", "directory with the newer snapshots")
	outDir := fs.String("out", "files_merged", "directory for reconciled tables")
	sources := fs.String("sources", "", "comma-separated source names (default: catalog plus bulk exports)")
	fs.Parse(args)

	names := catalog.Names()
	for _, t := range download.Targets() {
		names = append(names, t.Name)
	}
	if *sources != "" {
		names = nil
		for _, name := range strings.Split(*sources, ",") {
			names = append(names, strings.TrimSpace(name))
		}
	}

	results := merge.All(*oldDir, *newDir, *outDir, names, logger)
	var failed int
	for _, res := range results {
		if res.Err != nil {
			failed++
		}
	}
	logger.Info("merge finished", "sources", len(results), "failed", failed)
	if failed == len(results) {
		return fmt.Errorf("no source had a snapshot to reconcile")
	}
	return nil
}

func runDownload(ctx context.Context, logger *slog.Logger, args []string) error {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	out := fs.String("out", "data_new", "output directory")
	only := fs.String("target", "", "download a single named target")
	fs.Parse(args)

	client := download.New(download.Config{OutputDir: *out, Logger: logger})

	var failed, matched int
	for _, tgt := range download.Targets() {
		if *only != "" && tgt.Name != *only {
			continue
		}
		matched++
		path, err := download.Fetch(ctx, client, tgt)
		if err != nil {
			logger.Error("target failed", "target", tgt.Name, "error", err)
			failed++
			continue
		}
		logger.Info("target downloaded", "target", tgt.Name, "path", path)
	}
	if matched == 0 {
		return fmt.Errorf("unknown download target %q", *only)
	}
	if failed == matched {
		return fmt.Errorf("all %d downloads failed", failed)
	}
	return ctx.Err()
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
