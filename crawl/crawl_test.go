package crawl

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/vanessagd15/GCCMPD-climate-policy-dataset/crawl/internal/fields"
	"github.com/vanessagd15/GCCMPD-climate-policy-dataset/crawl/internal/listing"
	"github.com/vanessagd15/GCCMPD-climate-policy-dataset/crawl/internal/paginate"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestLoadConfig(t *testing.T) {
	// WHAT: A YAML file populates the config; unknown keys are an error.
	// WHY: A typo in the config must fail loudly, not crawl with defaults.
	dir := t.TempDir()
	path := filepath.Join(dir, "crawl.yaml")
	good := []byte(`
min_year: 2015
workers: 3
output_dir: out
fetch:
  timeout_ms: 20000
  rate_limit: 0.5
`)
	if err := os.WriteFile(path, good, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.MinYear != 2015 || cfg.Workers != 3 || cfg.Fetch.TimeoutMs != 20000 {
		t.Errorf("config: got %+v", cfg)
	}

	bad := []byte("min_yaer: 2015\n")
	if err := os.WriteFile(path, bad, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Error("unknown key should fail")
	}
}

func TestRunAll_IsolatesFailingSources(t *testing.T) {
	// WHAT: A batch where one source's root is dead still completes the
	// other source and reports both outcomes.
	// WHY: One broken catalog site must never cost the rest of the run.
	mux := http.NewServeMux()
	mux.HandleFunc("/good/list", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			io.WriteString(w, `<html><body>
				<div class="item"><a href="/good/p1">x</a></div>
				<a class="pager">1</a></body></html>`)
			return
		}
		io.WriteString(w, `<html><body><a class="pager">1</a></body></html>`)
	})
	mux.HandleFunc("/good/p1", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, `<html><body><h1 class="title">Solar Act</h1><span class="year">2022</span></body></html>`)
	})
	mux.HandleFunc("/dead/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mkSource := func(name, prefix string) Source {
		return Source{
			Name:       name,
			OutputFile: name + ".csv",
			Columns:    []string{"Policy", "Year", "URL"},
			URLColumn:  "URL",
			Listings: []ListingRoot{{
				URLTemplate: srv.URL + prefix + "/list?page={page}",
				StartPage:   1,
			}},
			Paginate: paginate.Config{
				Heuristics: []paginate.Heuristic{{Kind: paginate.KindPagerText, Selector: "a.pager"}},
				Default:    2,
			},
			Listing: listing.Config{ItemSelector: "div.item", LinkSelector: "a", BaseURL: srv.URL},
			Schema: fields.Schema{
				Fields: []fields.Field{
					{Name: "Policy", Rules: []fields.Rule{{Selector: "h1.title"}}},
					{Name: "Year", Rules: []fields.Rule{{Selector: "span.year"}}},
				},
			},
		}
	}

	svc, err := New(Config{
		OutputDir: t.TempDir(),
		Fetch:     FetchSettings{MaxRetries: 1, DelayMinMs: 1, DelayMaxMs: 2},
	}, quietLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer svc.Close()

	report := svc.RunAll(context.Background(), []Source{
		mkSource("DEAD", "/dead"),
		mkSource("GOOD", "/good"),
	})

	if len(report.Results) != 2 {
		t.Fatalf("results: got %d, want 2", len(report.Results))
	}
	failed := report.Failed()
	if len(failed) != 1 || failed[0].Source != "DEAD" {
		t.Fatalf("failed: got %+v", failed)
	}
	if !errors.Is(failed[0].Err, ErrFatalSetup) {
		t.Errorf("dead source error: got %v", failed[0].Err)
	}
	var good SourceResult
	for _, res := range report.Results {
		if res.Source == "GOOD" {
			good = res
		}
	}
	if good.Err != nil || good.Stats.Saved != 1 {
		t.Errorf("good source: err=%v stats=%+v", good.Err, good.Stats)
	}
	if snap := svc.Counters(); snap.Saved != 1 {
		t.Errorf("counters: got %+v", snap)
	}
}
