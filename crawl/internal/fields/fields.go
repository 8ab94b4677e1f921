// CLAUDE:SUMMARY Declarative field extraction: fallback rule chains, label-block vocabularies, uniform text normalization.
// Package fields extracts a structured record from one fetched detail page
// or one embedded JSON payload, driven by a declarative schema.
//
// Each field names an ordered chain of extraction rules; the primary rule
// is tried first, then each fallback in order, and the first rule that
// yields a non-empty value wins. A field whose every rule fails degrades
// to the empty string; extraction of one field never aborts the record.
//
// Label-driven detail pages ("label: value" blocks) are matched by
// substring containment against a small fixed vocabulary; order of the
// vocabulary is irrelevant and matching is exact-substring, not positional.
package fields

import (
	"bytes"
	"regexp"
	"strings"

	htmltomd "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/microcosm-cc/bluemonday"
)

// Record maps field names to normalized string values.
type Record map[string]string

// Value transforms applied after a rule resolves.
const (
	TransformBeforeColon = "before-colon" // "Country: Policy" → "Country"
	TransformAfterColon  = "after-colon"  // "Country: Policy" → "Policy"
	TransformBeforeDash  = "before-dash"  // "Notice - MEE" → "Notice"
)

// Rendering formats for a rule's value.
const (
	FormatText     = ""          // plain node text
	FormatMarkdown = "markdown"  // node HTML rendered to markdown
	FormatStripped = "striptags" // value sanitized of any markup
)

// Rule is one declarative extraction step.
type Rule struct {
	// Selector locates candidate nodes.
	Selector string `yaml:"selector"`
	// Contains filters candidates to those whose text contains this
	// substring (for label-anchored lookups like `span` + "Topics").
	Contains string `yaml:"contains,omitempty"`
	// Next moves from each candidate to its first following sibling
	// matching this selector (label → value-list navigation).
	Next string `yaml:"next,omitempty"`
	// Find descends from the current nodes.
	Find string `yaml:"find,omitempty"`
	// Attr reads an attribute instead of text.
	Attr string `yaml:"attr,omitempty"`
	// Index picks one match (negative from the end). Used when Join is
	// empty. Default 0.
	Index int `yaml:"index,omitempty"`
	// Join concatenates all distinct non-empty matches with this
	// separator instead of picking one.
	Join string `yaml:"join,omitempty"`
	// Format renders the value: "", "markdown", or "striptags".
	Format string `yaml:"format,omitempty"`
	// Transform post-processes the value ("before-colon"/"after-colon").
	Transform string `yaml:"transform,omitempty"`
	// MaxLen truncates the normalized value, appending "...".
	MaxLen int `yaml:"max_len,omitempty"`
}

// Field is a named chain of rules, primary first.
type Field struct {
	Name  string `yaml:"name"`
	Rules []Rule `yaml:"rules"`
}

// LabelBlock describes a label-driven region of a detail page.
type LabelBlock struct {
	// BlockSelector selects either one container per label/value pair
	// (default), or, with Pairs, the single container holding parallel
	// label and value lists (a <dl> with <dt>/<dd> children).
	BlockSelector string `yaml:"block_selector"`
	LabelSelector string `yaml:"label_selector"`
	ValueSelector string `yaml:"value_selector"`
	Pairs         bool   `yaml:"pairs,omitempty"`
	// Vocabulary maps label substrings to field names.
	Vocabulary map[string]string `yaml:"vocabulary"`
}

// Schema drives extraction for one source's detail pages.
type Schema struct {
	// TitleField names the field whose absence discards the record
	// upstream. Default "Policy".
	TitleField string       `yaml:"title_field"`
	Fields     []Field      `yaml:"fields"`
	Labels     []LabelBlock `yaml:"labels,omitempty"`
	// Embedded maps field names to keys of a listing-embedded payload,
	// for JSON-backed sources with no detail markup to parse.
	Embedded map[string]string `yaml:"embedded,omitempty"`
	// YearFrom names a field holding a date; the first four-digit year
	// found in it replaces Year. It may name Year itself to clean a
	// prose date in place.
	YearFrom string `yaml:"year_from,omitempty"`
}

// Title returns the schema's title field name.
func (s Schema) Title() string {
	if s.TitleField == "" {
		return "Policy"
	}
	return s.TitleField
}

// Extractor evaluates schemas against page bodies.
type Extractor struct {
	sanitizer *bluemonday.Policy
}

// New creates an Extractor.
func New() *Extractor {
	return &Extractor{sanitizer: bluemonday.StrictPolicy()}
}

// ExtractHTML extracts every schema field from a detail page body.
// It never fails: a body matching nothing yields a Record of empty
// strings, possibly including an empty title, which the caller discards.
func (e *Extractor) ExtractHTML(body []byte, schema Schema) Record {
	rec := make(Record, len(schema.Fields))
	for _, f := range schema.Fields {
		rec[f.Name] = ""
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return rec
	}

	for _, f := range schema.Fields {
		for _, rule := range f.Rules {
			if v := e.eval(doc, rule); v != "" {
				rec[f.Name] = v
				break
			}
		}
	}

	for _, lb := range schema.Labels {
		e.extractLabels(doc, lb, rec)
	}

	return rec
}

// ExtractEmbedded maps a listing-embedded payload through the schema's
// Embedded mapping, sanitizing any markup carried inside string values.
func (e *Extractor) ExtractEmbedded(payload map[string]string, schema Schema) Record {
	rec := make(Record, len(schema.Embedded))
	for field, key := range schema.Embedded {
		rec[field] = Normalize(e.sanitizer.Sanitize(payload[key]))
	}
	return rec
}

// eval applies one rule against the document. Empty string means the
// rule failed.
func (e *Extractor) eval(doc *goquery.Document, rule Rule) string {
	sel := doc.Find(rule.Selector)
	if rule.Contains != "" {
		sel = sel.FilterFunction(func(_ int, s *goquery.Selection) bool {
			return strings.Contains(s.Text(), rule.Contains)
		})
	}
	if rule.Next != "" {
		sel = sel.NextAllFiltered(rule.Next).First()
	}
	if rule.Find != "" {
		sel = sel.Find(rule.Find)
	}
	if sel.Length() == 0 {
		return ""
	}

	var value string
	if rule.Join != "" {
		value = joinDistinct(e.values(sel, rule), rule.Join)
	} else {
		n := sel.Length()
		idx := rule.Index
		if idx < 0 {
			idx = n + idx
		}
		if idx < 0 || idx >= n {
			return ""
		}
		value = e.value(sel.Eq(idx), rule)
	}

	switch rule.Transform {
	case TransformBeforeColon:
		if before, _, ok := strings.Cut(value, ":"); ok {
			value = strings.TrimSpace(before)
		} else {
			value = ""
		}
	case TransformAfterColon:
		_, after, _ := strings.Cut(value, ":")
		value = strings.TrimSpace(after)
	case TransformBeforeDash:
		before, _, _ := strings.Cut(value, "-")
		value = strings.TrimSpace(before)
	}

	if rule.MaxLen > 0 {
		value = Truncate(value, rule.MaxLen)
	}
	return value
}

func (e *Extractor) values(sel *goquery.Selection, rule Rule) []string {
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, e.value(s, rule))
	})
	return out
}

func (e *Extractor) value(s *goquery.Selection, rule Rule) string {
	if rule.Attr != "" {
		v, _ := s.Attr(rule.Attr)
		return strings.TrimSpace(v)
	}
	switch rule.Format {
	case FormatMarkdown:
		raw, err := goquery.OuterHtml(s)
		if err != nil || strings.TrimSpace(raw) == "" {
			return Normalize(s.Text())
		}
		md, err := htmltomd.ConvertString(raw)
		if err != nil || strings.TrimSpace(md) == "" {
			return Normalize(s.Text())
		}
		return Normalize(md)
	case FormatStripped:
		return Normalize(e.sanitizer.Sanitize(s.Text()))
	default:
		return Normalize(s.Text())
	}
}

// extractLabels fills rec from a label-driven block. Existing non-empty
// values are kept (rule-based extraction has priority).
func (e *Extractor) extractLabels(doc *goquery.Document, lb LabelBlock, rec Record) {
	set := func(label, value string) {
		label = Normalize(label)
		if label == "" {
			return
		}
		for substr, field := range lb.Vocabulary {
			if strings.Contains(label, substr) {
				if rec[field] == "" {
					rec[field] = Normalize(value)
				}
				return
			}
		}
	}

	if lb.Pairs {
		container := doc.Find(lb.BlockSelector).First()
		labels := container.Find(lb.LabelSelector)
		values := container.Find(lb.ValueSelector)
		n := labels.Length()
		if values.Length() < n {
			n = values.Length()
		}
		for i := 0; i < n; i++ {
			set(labels.Eq(i).Text(), values.Eq(i).Text())
		}
		return
	}

	doc.Find(lb.BlockSelector).Each(func(_ int, block *goquery.Selection) {
		label := block.Find(lb.LabelSelector).First().Text()
		value := block.Find(lb.ValueSelector).First().Text()
		set(label, value)
	})
}

// joinDistinct joins non-empty values with sep, dropping duplicates while
// preserving first-seen order.
func joinDistinct(values []string, sep string) string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return strings.Join(out, sep)
}

var yearRe = regexp.MustCompile(`(19|20)\d{2}`)

// YearOf extracts the first four-digit year from a date string, or ""
// when none is present.
func YearOf(s string) string {
	return yearRe.FindString(s)
}

// Normalize applies the uniform text cleanup: non-breaking spaces and
// newlines become plain spaces, runs of whitespace collapse to one, and
// the result is trimmed.
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.Join(strings.Fields(s), " ")
}

// Truncate bounds s to max runes, appending an explicit truncation
// marker when content was dropped.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
