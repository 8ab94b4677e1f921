// CLAUDE:SUMMARY Pagination estimation via a prioritized chain of structural heuristics with a hardcoded fallback.
// Package paginate determines how many listing pages a catalog source has.
//
// The root listing page is fetched once and a prioritized chain of
// structural heuristics is applied: the first heuristic that yields a
// parseable page number wins. Any failure degrades to the source's
// hardcoded default, because the page loop downstream is self-terminating
// on consecutive empty pages and a wrong estimate only costs time, never
// correctness.
package paginate

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Heuristic kinds, in the order sources typically prefer them.
const (
	// KindLastLink reads a page-number query parameter from the href of a
	// "last page" link. The found index is 0-based, so total = index + 1.
	KindLastLink = "last-link"
	// KindPagerText reads the text of an enumerated page-link element
	// (already a 1-based total).
	KindPagerText = "pager-text"
	// KindTotalCount reads a total item count and divides by PageSize,
	// rounding up.
	KindTotalCount = "total-count"
	// KindLastAttr reads the page total straight from an attribute of a
	// pagination element (faceted pagers carry it in a data attribute).
	KindLastAttr = "last-attr"
)

// Heuristic is one declarative pagination probe.
type Heuristic struct {
	Kind     string `yaml:"kind"`
	Selector string `yaml:"selector"`
	// Param is the page query parameter for KindLastLink. Default "page".
	Param string `yaml:"param,omitempty"`
	// Attr is the attribute read by KindLastAttr.
	Attr string `yaml:"attr,omitempty"`
	// Index selects which match to read (negative counts from the end,
	// -1 being the last). Default 0.
	Index int `yaml:"index,omitempty"`
	// PageSize divides the total count for KindTotalCount. Default 30.
	PageSize int `yaml:"page_size,omitempty"`
}

// Config is the pagination configuration for one source.
type Config struct {
	Heuristics []Heuristic `yaml:"heuristics"`
	// Default is the hardcoded fallback page count. Default 1.
	Default int `yaml:"default"`
}

// Estimate is the derived page count for one run.
type Estimate struct {
	TotalPages int
	// Fallback is true when no heuristic matched and Default was used.
	Fallback bool
}

// Estimator applies pagination heuristics to a fetched root page.
type Estimator struct {
	fetch  func(ctx context.Context, url string) ([]byte, error)
	logger *slog.Logger
}

// New creates an Estimator over the given fetch function.
func New(fetch func(ctx context.Context, url string) ([]byte, error), logger *slog.Logger) *Estimator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Estimator{fetch: fetch, logger: logger}
}

// Estimate fetches rootURL and runs the heuristic chain. The returned
// error is non-nil only when the root page itself could not be fetched;
// even then a usable fallback Estimate is returned, so the caller decides
// whether an unreachable root is fatal for the source.
func (e *Estimator) Estimate(ctx context.Context, rootURL string, cfg Config) (Estimate, error) {
	fallback := Estimate{TotalPages: max(cfg.Default, 1), Fallback: true}

	body, err := e.fetch(ctx, rootURL)
	if err != nil {
		e.logger.Warn("paginate: root page unreachable, using default",
			"url", rootURL, "default", fallback.TotalPages, "error", err)
		return fallback, fmt.Errorf("paginate: fetch root: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		e.logger.Warn("paginate: unparseable root page, using default",
			"url", rootURL, "default", fallback.TotalPages)
		return fallback, nil
	}

	for _, h := range cfg.Heuristics {
		if pages, ok := apply(doc, h); ok {
			e.logger.Info("paginate: estimated page count",
				"url", rootURL, "pages", pages, "heuristic", h.Kind)
			return Estimate{TotalPages: pages}, nil
		}
	}

	e.logger.Warn("paginate: no heuristic matched, using default",
		"url", rootURL, "default", fallback.TotalPages)
	return fallback, nil
}

var countRe = regexp.MustCompile(`\d[\d,]*`)

// apply runs one heuristic. ok is false when the heuristic does not
// match or its text cannot be parsed.
func apply(doc *goquery.Document, h Heuristic) (pages int, ok bool) {
	sel := doc.Find(h.Selector)
	if sel.Length() == 0 {
		return 0, false
	}
	node := pick(sel, h.Index)
	if node == nil {
		return 0, false
	}

	switch h.Kind {
	case KindLastLink:
		href, exists := node.Attr("href")
		if !exists {
			return 0, false
		}
		param := h.Param
		if param == "" {
			param = "page"
		}
		re := regexp.MustCompile(regexp.QuoteMeta(param) + `=(\d+)`)
		m := re.FindStringSubmatch(href)
		if m == nil {
			return 0, false
		}
		last, err := strconv.Atoi(m[1])
		if err != nil || last < 0 {
			return 0, false
		}
		return last + 1, true // 0-indexed last page

	case KindLastAttr:
		raw, exists := node.Attr(h.Attr)
		if !exists {
			return 0, false
		}
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil || n < 1 {
			return 0, false
		}
		return n, true

	case KindPagerText:
		n, err := strconv.Atoi(strings.TrimSpace(node.Text()))
		if err != nil || n < 1 {
			return 0, false
		}
		return n, true

	case KindTotalCount:
		// Counts render with thousands separators ("1,234 policies").
		m := countRe.FindString(node.Text())
		if m == "" {
			return 0, false
		}
		total, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
		if err != nil || total < 0 {
			return 0, false
		}
		size := h.PageSize
		if size <= 0 {
			size = 30
		}
		pages := int(math.Ceil(float64(total) / float64(size)))
		if pages < 1 {
			pages = 1
		}
		return pages, true
	}

	return 0, false
}

// pick returns the idx-th selection (negative from the end), or nil.
func pick(sel *goquery.Selection, idx int) *goquery.Selection {
	n := sel.Length()
	if idx < 0 {
		idx = n + idx
	}
	if idx < 0 || idx >= n {
		return nil
	}
	return sel.Eq(idx)
}
