// CLAUDE:SUMMARY Listing-page extraction: CSS-selected detail links, JSON/JSONP envelopes, and ID-list expansion.
// Package listing extracts the ordered set of detail-item references from
// one fetched listing page.
//
// Three source shapes are supported: HTML listings (a selector per item,
// optionally with listing-level embedded fields), JSON or JSONP envelopes
// (dot-notation result path, per-item field mapping), and ID lists (a JSON
// array of record IDs expanded through a URL template).
//
// Extraction never fails: malformed input yields an empty sequence, which
// the orchestrator reads as "this page had nothing".
package listing

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Source shapes.
const (
	ModeHTML   = "html"
	ModeJSON   = "json"
	ModeJSONP  = "jsonp"
	ModeIDList = "idlist"
	// ModeScript reads a JSON array embedded in an inline script on the
	// page, delimited by fixed prefix and suffix markers.
	ModeScript = "script"
)

// Config describes how to read one source's listing pages.
type Config struct {
	// Mode is one of html, json, jsonp, idlist. Default html.
	Mode string `yaml:"mode"`

	// HTML mode.
	ItemSelector string `yaml:"item_selector"` // one match per item
	LinkSelector string `yaml:"link_selector"` // within item; empty = the item node
	LinkAttr     string `yaml:"link_attr"`     // default "href"
	// Fields maps embedded field names to selectors evaluated within each
	// item, for listings that already carry structured columns.
	Fields map[string]string `yaml:"fields"`

	// StripPrefix removes a leading path fragment from extracted links
	// before BaseURL is applied (catalogs whose hrefs climb out of the
	// section with "../../..").
	StripPrefix string `yaml:"strip_prefix,omitempty"`

	// JSON/JSONP/idlist mode.
	ResultPath  string `yaml:"result_path"`  // dot notation, "" = root array
	URLField    string `yaml:"url_field"`    // json: item field holding the detail URL
	IDField     string `yaml:"id_field"`     // idlist: item field holding the record ID
	URLTemplate string `yaml:"url_template"` // idlist: template with {id}

	// Script mode: the JSON array sits between these two markers in the
	// page body.
	ScriptPrefix string `yaml:"script_prefix,omitempty"`
	ScriptSuffix string `yaml:"script_suffix,omitempty"`

	// BaseURL prefixes relative detail links.
	BaseURL string `yaml:"base_url"`

	// Lookups resolve embedded ID-list fields through auxiliary id-to-label
	// tables shipped on the same page.
	Lookups []Lookup `yaml:"lookups,omitempty"`
}

// Lookup joins one item field holding a list of record IDs against an
// id-to-label table embedded elsewhere in the page body, writing the
// comma-joined labels to a new embedded field.
type Lookup struct {
	// Field receives the joined labels.
	Field string `yaml:"field"`
	// From is the item key holding the ID list.
	From string `yaml:"from"`
	// Prefix/Suffix delimit the table's JSON array in the page body.
	Prefix string `yaml:"prefix"`
	Suffix string `yaml:"suffix"`
}

// ItemRef locates one detail item: a URL to fetch, or an embedded payload
// (or both, for JSON listings whose items link to detail pages).
type ItemRef struct {
	URL      string
	Embedded map[string]string
}

// Extract returns the ordered item references on one listing page.
// It never returns an error: any parse failure yields an empty slice.
func Extract(body []byte, cfg Config) []ItemRef {
	var items []ItemRef
	switch cfg.Mode {
	case ModeJSON:
		items = extractJSON(body, cfg)
	case ModeJSONP:
		items = extractJSON(stripCallback(body), cfg)
	case ModeIDList:
		items = extractIDList(body, cfg)
	case ModeScript:
		items = extractJSON(scriptPayload(body, cfg), cfg)
	default:
		items = extractHTML(body, cfg)
	}
	for _, lk := range cfg.Lookups {
		applyLookup(body, lk, items)
	}
	return items
}

func extractHTML(body []byte, cfg Config) []ItemRef {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil
	}

	attr := cfg.LinkAttr
	if attr == "" {
		attr = "href"
	}

	var items []ItemRef
	doc.Find(cfg.ItemSelector).Each(func(_ int, item *goquery.Selection) {
		link := item
		if cfg.LinkSelector != "" {
			link = item.Find(cfg.LinkSelector).First()
		}
		href, ok := link.Attr(attr)
		if !ok || strings.TrimSpace(href) == "" {
			return
		}

		href = strings.TrimSpace(href)
		if cfg.StripPrefix != "" {
			href = strings.TrimPrefix(href, cfg.StripPrefix)
		}
		ref := ItemRef{URL: absolute(cfg.BaseURL, href)}
		for name, sel := range cfg.Fields {
			if ref.Embedded == nil {
				ref.Embedded = make(map[string]string, len(cfg.Fields))
			}
			ref.Embedded[name] = strings.TrimSpace(item.Find(sel).First().Text())
		}
		items = append(items, ref)
	})
	return items
}

func extractJSON(body []byte, cfg Config) []ItemRef {
	arr, err := resultArray(body, cfg.ResultPath)
	if err != nil {
		return nil
	}

	var items []ItemRef
	for _, raw := range arr {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		ref := ItemRef{Embedded: make(map[string]string, len(obj))}
		for k, v := range obj {
			ref.Embedded[k] = asString(v)
		}
		if cfg.URLField != "" {
			ref.URL = absolute(cfg.BaseURL, ref.Embedded[cfg.URLField])
		}
		items = append(items, ref)
	}
	return items
}

func extractIDList(body []byte, cfg Config) []ItemRef {
	arr, err := resultArray(body, cfg.ResultPath)
	if err != nil {
		return nil
	}

	idField := cfg.IDField
	if idField == "" {
		idField = "id"
	}

	var items []ItemRef
	for _, raw := range arr {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id := asString(obj[idField])
		if id == "" {
			continue
		}
		items = append(items, ItemRef{
			URL: strings.ReplaceAll(cfg.URLTemplate, "{id}", id),
		})
	}
	return items
}

// scriptPayload cuts the JSON array out of an inline script, between
// the configured prefix and suffix markers. Missing markers yield an
// empty payload.
func scriptPayload(body []byte, cfg Config) []byte {
	return cutMarkers(body, cfg.ScriptPrefix, cfg.ScriptSuffix)
}

func cutMarkers(body []byte, prefix, suffix string) []byte {
	start := bytes.Index(body, []byte(prefix))
	if start < 0 {
		return nil
	}
	start += len(prefix)
	end := bytes.Index(body[start:], []byte(suffix))
	if end < 0 {
		return nil
	}
	return body[start : start+end]
}

// applyLookup resolves one ID-list field across all items. A missing or
// unparseable table leaves the target field empty rather than failing
// the page.
func applyLookup(body []byte, lk Lookup, items []ItemRef) {
	table := lookupTable(body, lk)
	for _, ref := range items {
		if ref.Embedded == nil {
			continue
		}
		ref.Embedded[lk.Field] = joinLabels(ref.Embedded[lk.From], table)
	}
}

// lookupTable reads an id-to-label table embedded between the lookup's
// markers: a JSON array of objects carrying "id" and "label".
func lookupTable(body []byte, lk Lookup) map[string]string {
	arr, err := resultArray(cutMarkers(body, lk.Prefix, lk.Suffix), "")
	if err != nil {
		return nil
	}
	table := make(map[string]string, len(arr))
	for _, raw := range arr {
		obj, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if id := asString(obj["id"]); id != "" {
			table[id] = asString(obj["label"])
		}
	}
	return table
}

// joinLabels maps a comma-separated ID list through the table, joining
// the labels found. IDs without a table entry are dropped.
func joinLabels(ids string, table map[string]string) string {
	if ids == "" || len(table) == 0 {
		return ""
	}
	var labels []string
	for _, id := range strings.Split(ids, ",") {
		if label := table[strings.TrimSpace(id)]; label != "" {
			labels = append(labels, label)
		}
	}
	return strings.Join(labels, ",")
}

// stripCallback removes a JSONP callback wrapper: everything up to the
// first '(' and after the last ')' is discarded. The callback name is a
// fixed string boundary, never evaluated.
func stripCallback(body []byte) []byte {
	open := bytes.IndexByte(body, '(')
	last := bytes.LastIndexByte(body, ')')
	if open < 0 || last <= open {
		return body
	}
	return body[open+1 : last]
}

// resultArray parses a JSON body and walks a dot-notation path to the
// array of items. An empty path means the root must be an array.
func resultArray(body []byte, path string) ([]any, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("listing: json decode: %w", err)
	}

	current := raw
	if path != "" {
		for _, part := range strings.Split(path, ".") {
			obj, ok := current.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("listing: expected object at %q", part)
			}
			current, ok = obj[part]
			if !ok {
				return nil, fmt.Errorf("listing: key %q not found", part)
			}
		}
	}

	arr, ok := current.([]any)
	if !ok {
		return nil, fmt.Errorf("listing: path %q is not an array", path)
	}
	return arr, nil
}

func absolute(base, link string) string {
	if link == "" || strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	return base + link
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		// JSON numbers decode as float64; IDs and years must not gain ".0".
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	case []any:
		// ID lists flatten to a comma-separated string.
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s := asString(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprintf("%v", t)
	}
}
