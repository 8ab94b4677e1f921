package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/vanessagd15/GCCMPD-climate-policy-dataset/crawl/internal/fetch"
	"github.com/vanessagd15/GCCMPD-climate-policy-dataset/crawl/internal/fields"
	"github.com/vanessagd15/GCCMPD-climate-policy-dataset/crawl/internal/listing"
	"github.com/vanessagd15/GCCMPD-climate-policy-dataset/crawl/internal/paginate"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testFetcher() *fetch.Fetcher {
	return fetch.New(fetch.Config{
		Timeout:        2 * time.Second,
		MaxRetries:     2,
		DelayMin:       time.Millisecond,
		DelayMax:       2 * time.Millisecond,
		TimeoutBackoff: time.Millisecond,
		ErrorBackoff:   time.Millisecond,
		Logger:         testLogger(),
	})
}

func testRunner(t *testing.T, cfg Config) (*Runner, string) {
	t.Helper()
	dir := t.TempDir()
	cfg.OutputDir = dir
	cfg.Logger = testLogger()
	return NewRunner(testFetcher(), cfg), dir
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	raw = bytes.TrimPrefix(raw, []byte{0xEF, 0xBB, 0xBF})
	rows, err := csv.NewReader(bytes.NewReader(raw)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	return rows
}

func detailPage(title, year string) string {
	h1 := ""
	if title != "" {
		h1 = "<h1 class=\"title\">" + title + "</h1>"
	}
	return "<html><body>" + h1 + "<span class=\"year\">" + year + "</span></body></html>"
}

func listingPage(pager string, hrefs ...string) string {
	var b bytes.Buffer
	b.WriteString("<html><body>")
	for _, h := range hrefs {
		fmt.Fprintf(&b, `<div class="item"><a href=%q>x</a></div>`, h)
	}
	b.WriteString(pager)
	b.WriteString("</body></html>")
	return b.String()
}

func htmlSource(base string) Source {
	return Source{
		Name:       "TEST",
		OutputFile: "TEST.csv",
		Columns:    []string{"Policy", "Year", "URL", "Source"},
		URLColumn:  "URL",
		Constants:  map[string]string{"Source": "TEST"},
		Listings: []ListingRoot{{
			URLTemplate: base + "/list?page={page}",
			StartPage:   1,
		}},
		Paginate: paginate.Config{
			Heuristics: []paginate.Heuristic{
				{Kind: paginate.KindPagerText, Selector: "a.pager", Index: -1},
			},
			Default: 10,
		},
		Listing: listing.Config{
			ItemSelector: "div.item",
			LinkSelector: "a",
			BaseURL:      base,
		},
		Schema: fields.Schema{
			Fields: []fields.Field{
				{Name: "Policy", Rules: []fields.Rule{{Selector: "h1.title"}}},
				{Name: "Year", Rules: []fields.Rule{{Selector: "span.year"}}},
			},
		},
	}
}

func TestRunSource_CrawlsPagesAndFiltersItems(t *testing.T) {
	// WHAT: A two-page listing yields saved, rejected, and discarded items
	// with the right stats and CSV content.
	// WHY: This is the whole contract of a source run in one pass.
	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		pager := `<a class="pager">1</a><a class="pager">2</a>`
		switch r.URL.Query().Get("page") {
		case "1":
			io.WriteString(w, listingPage(pager, "/policy/solar", "/policy/old"))
		case "2":
			io.WriteString(w, listingPage(pager, "/policy/wind", "/policy/untitled"))
		default:
			io.WriteString(w, listingPage(pager))
		}
	})
	mux.HandleFunc("/policy/solar", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, detailPage("Solar Act", "2022"))
	})
	mux.HandleFunc("/policy/old", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, detailPage("Coal Act", "1990"))
	})
	mux.HandleFunc("/policy/wind", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, detailPage("Wind Act", "2023"))
	})
	mux.HandleFunc("/policy/untitled", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, detailPage("", "2022"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var counters Counters
	r, dir := testRunner(t, Config{Counters: &counters})
	stats, err := r.RunSource(context.Background(), htmlSource(srv.URL))
	if err != nil {
		t.Fatalf("RunSource: %v", err)
	}

	if stats.Pages != 2 || stats.Items != 4 {
		t.Errorf("pages/items: got %d/%d, want 2/4", stats.Pages, stats.Items)
	}
	if stats.Saved != 2 || stats.SkippedYear != 1 || stats.Discarded != 1 {
		t.Errorf("outcomes: got %+v", stats)
	}
	if stats.FallbackPagination {
		t.Error("pagination should come from the pager heuristic")
	}
	if got := counters.Snapshot(); got.Saved != 2 || got.Items != 4 {
		t.Errorf("counters: got %+v", got)
	}

	rows := readCSV(t, filepath.Join(dir, "TEST.csv"))
	if len(rows) != 3 {
		t.Fatalf("csv rows: got %d, want header + 2", len(rows))
	}
	// Columns: Policy, Year, URL, Source.
	for _, row := range rows[1:] {
		if row[3] != "TEST" {
			t.Errorf("Source column not stamped: %v", row)
		}
		if row[2] == "" {
			t.Errorf("URL column empty: %v", row)
		}
	}
}

func TestRunSource_EmptyStreakStopsEarly(t *testing.T) {
	// WHAT: Three consecutive empty pages terminate the listing before the
	// estimated page count is reached.
	// WHY: Page estimates are heuristic; the streak rule bounds the waste.
	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("page") {
		case "1", "2":
			io.WriteString(w, listingPage("", "/policy/p"))
		default:
			io.WriteString(w, listingPage(""))
		}
	})
	mux.HandleFunc("/policy/p", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, detailPage("Policy", "2022"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r, _ := testRunner(t, Config{})
	stats, err := r.RunSource(context.Background(), htmlSource(srv.URL))
	if err != nil {
		t.Fatalf("RunSource: %v", err)
	}

	// No pager matches, so the default of 10 applies; pages 3, 4, 5 are
	// empty and the run stops there.
	if !stats.FallbackPagination {
		t.Error("expected fallback pagination")
	}
	if stats.Pages != 5 || stats.EmptyPages != 3 {
		t.Errorf("pages/empty: got %d/%d, want 5/3", stats.Pages, stats.EmptyPages)
	}
}

func TestRunSource_EmptyStreakResetsOnContent(t *testing.T) {
	// WHAT: A non-empty page resets the streak counter.
	// WHY: Gaps in a listing must not end the run prematurely.
	mux := http.NewServeMux()
	empty := map[string]bool{"2": true, "3": true, "4": true}
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Query().Get("page")
		if empty[p] {
			io.WriteString(w, listingPage(""))
			return
		}
		io.WriteString(w, listingPage("", "/policy/p"))
	})
	mux.HandleFunc("/policy/p", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, detailPage("Policy", "2022"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	src := htmlSource(srv.URL)
	src.Paginate.Default = 6
	src.Paginate.Heuristics = nil

	r, _ := testRunner(t, Config{MaxEmptyPages: 4})
	stats, err := r.RunSource(context.Background(), src)
	if err != nil {
		t.Fatalf("RunSource: %v", err)
	}
	// Pages 2-4 are empty (streak 3 < 4), page 5 resets, page 6 ends the
	// estimate; all six pages are visited.
	if stats.Pages != 6 || stats.EmptyPages != 3 {
		t.Errorf("pages/empty: got %d/%d, want 6/3", stats.Pages, stats.EmptyPages)
	}
}

func TestRunSource_UnreachableRootIsFatal(t *testing.T) {
	// WHAT: A root page that never answers fails the whole source run.
	// WHY: Without a first contact there is nothing to crawl; the caller
	// isolates the failure per source.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r, _ := testRunner(t, Config{})
	_, err := r.RunSource(context.Background(), htmlSource(srv.URL))
	if !errors.Is(err, ErrFatalSetup) {
		t.Fatalf("error: got %v, want ErrFatalSetup", err)
	}
}

func TestRunSource_DetailFailureSkipsItemOnly(t *testing.T) {
	// WHAT: An item whose detail fetch exhausts retries is skipped; its
	// page-mates still persist.
	// WHY: One broken record must never cost the rest of the page.
	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			io.WriteString(w, listingPage(`<a class="pager">1</a>`, "/policy/good", "/policy/broken"))
			return
		}
		io.WriteString(w, listingPage(`<a class="pager">1</a>`))
	})
	mux.HandleFunc("/policy/good", func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, detailPage("Good Act", "2022"))
	})
	mux.HandleFunc("/policy/broken", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r, dir := testRunner(t, Config{})
	stats, err := r.RunSource(context.Background(), htmlSource(srv.URL))
	if err != nil {
		t.Fatalf("RunSource: %v", err)
	}
	if stats.Saved != 1 || stats.SkippedError != 1 {
		t.Errorf("outcomes: got %+v", stats)
	}
	rows := readCSV(t, filepath.Join(dir, "TEST.csv"))
	if len(rows) != 2 || rows[1][0] != "Good Act" {
		t.Errorf("csv: got %v", rows)
	}
}

func TestRunSource_EmbeddedJSONListing(t *testing.T) {
	// WHAT: A JSON source with no detail markup persists straight from the
	// listing payload through the embedded mapping.
	// WHY: Some catalogs only exist as a paginated JSON API.
	mux := http.NewServeMux()
	mux.HandleFunc("/api", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			io.WriteString(w, `{"result":{"rows":[
				{"policy_title":"Peak Carbon Plan","pub_year":2022,"link":"/doc/1"},
				{"policy_title":"Legacy Rule","pub_year":1999,"link":"/doc/2"}
			]}}`)
			return
		}
		io.WriteString(w, `{"result":{"rows":[]}}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	src := Source{
		Name:       "API",
		OutputFile: "API.csv",
		Columns:    []string{"Policy", "Year", "URL", "Source"},
		URLColumn:  "URL",
		Constants:  map[string]string{"Source": "API"},
		Listings: []ListingRoot{{
			URLTemplate: srv.URL + "/api?page={page}",
			StartPage:   1,
		}},
		Paginate: paginate.Config{Default: 5},
		Listing: listing.Config{
			Mode:       listing.ModeJSON,
			ResultPath: "result.rows",
			URLField:   "link",
			BaseURL:    srv.URL,
		},
		Schema: fields.Schema{
			Embedded: map[string]string{
				"Policy": "policy_title",
				"Year":   "pub_year",
			},
		},
	}

	r, dir := testRunner(t, Config{})
	stats, err := r.RunSource(context.Background(), src)
	if err != nil {
		t.Fatalf("RunSource: %v", err)
	}
	if stats.Saved != 1 || stats.SkippedYear != 1 {
		t.Errorf("outcomes: got %+v", stats)
	}
	rows := readCSV(t, filepath.Join(dir, "API.csv"))
	if len(rows) != 2 {
		t.Fatalf("csv rows: got %d", len(rows))
	}
	if row := rows[1]; row[0] != "Peak Carbon Plan" || row[1] != "2022" || row[2] != srv.URL+"/doc/1" {
		t.Errorf("row: got %v", row)
	}
}

func TestRunSource_WorkerPoolRunsConcurrently(t *testing.T) {
	// WHAT: With Workers=3 detail fetches overlap.
	// WHY: The pool must actually parallelize, not just queue.
	var mu sync.Mutex
	inFlight, peak := 0, 0

	mux := http.NewServeMux()
	mux.HandleFunc("/list", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "1" {
			io.WriteString(w, listingPage(`<a class="pager">1</a>`,
				"/policy/a", "/policy/b", "/policy/c", "/policy/d", "/policy/e", "/policy/f"))
			return
		}
		io.WriteString(w, listingPage(`<a class="pager">1</a>`))
	})
	mux.HandleFunc("/policy/", func(w http.ResponseWriter, _ *http.Request) {
		mu.Lock()
		inFlight++
		if inFlight > peak {
			peak = inFlight
		}
		mu.Unlock()
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		inFlight--
		mu.Unlock()
		io.WriteString(w, detailPage("Policy", "2022"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r, _ := testRunner(t, Config{Workers: 3})
	stats, err := r.RunSource(context.Background(), htmlSource(srv.URL))
	if err != nil {
		t.Fatalf("RunSource: %v", err)
	}
	if stats.Saved != 6 {
		t.Errorf("saved: got %d, want 6", stats.Saved)
	}
	mu.Lock()
	defer mu.Unlock()
	if peak < 2 {
		t.Errorf("peak concurrency: got %d, want >= 2", peak)
	}
}

func TestListingRoot_PageURL(t *testing.T) {
	// WHAT: The first page can use an unnumbered index URL while later
	// pages follow the template.
	r := ListingRoot{
		URLTemplate:  "https://example.org/policies/index_{page}.html",
		FirstPageURL: "https://example.org/policies/index.html",
		StartPage:    0,
	}
	if got := r.PageURL(0); got != "https://example.org/policies/index.html" {
		t.Errorf("first page: got %s", got)
	}
	if got := r.PageURL(2); got != "https://example.org/policies/index_2.html" {
		t.Errorf("page 2: got %s", got)
	}
	if got := r.Root(); got != "https://example.org/policies/index.html" {
		t.Errorf("root: got %s", got)
	}
}
