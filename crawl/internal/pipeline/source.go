// CLAUDE:SUMMARY Declarative source definition: listing roots, pagination, listing shape, field schema, output table.
package pipeline

import (
	"strconv"
	"strings"

	"github.com/vanessagd15/GCCMPD-climate-policy-dataset/crawl/internal/fields"
	"github.com/vanessagd15/GCCMPD-climate-policy-dataset/crawl/internal/listing"
	"github.com/vanessagd15/GCCMPD-climate-policy-dataset/crawl/internal/paginate"
)

// ListingRoot is one paginated listing of a source. Most sources have
// exactly one; category-partitioned catalogs carry one per category.
type ListingRoot struct {
	// URLTemplate builds page URLs; "{page}" is replaced by the index.
	URLTemplate string `yaml:"url_template"`
	// FirstPageURL overrides the template for the first page, for catalogs
	// whose index page is unnumbered.
	FirstPageURL string `yaml:"first_page_url,omitempty"`
	// RootURL is fetched once for pagination estimation. Empty means the
	// first page.
	RootURL string `yaml:"root_url,omitempty"`
	// StartPage is the first page index. Some catalogs count from 0.
	StartPage int `yaml:"start_page"`
}

// PageURL returns the URL of the given page index.
func (r ListingRoot) PageURL(page int) string {
	if page == r.StartPage && r.FirstPageURL != "" {
		return r.FirstPageURL
	}
	return strings.ReplaceAll(r.URLTemplate, "{page}", strconv.Itoa(page))
}

// Root returns the URL used for pagination estimation.
func (r ListingRoot) Root() string {
	if r.RootURL != "" {
		return r.RootURL
	}
	return r.PageURL(r.StartPage)
}

// Source is the full declarative definition of one catalog: where its
// listing pages are, how to read them, how to extract each record, and
// which CSV table the records land in.
type Source struct {
	Name       string `yaml:"name"`
	OutputFile string `yaml:"output_file"`
	// Columns is the output table header, in order.
	Columns []string `yaml:"columns"`
	// URLColumn, when set, receives each record's detail URL.
	URLColumn string `yaml:"url_column,omitempty"`
	// Constants are fixed column values stamped on every record, such as
	// the origin tag in the Source column.
	Constants map[string]string `yaml:"constants,omitempty"`

	Listings []ListingRoot   `yaml:"listings"`
	Paginate paginate.Config `yaml:"paginate"`
	Listing  listing.Config  `yaml:"listing"`
	Schema   fields.Schema   `yaml:"schema"`
}

// needsDetail reports whether items carry a detail page worth fetching.
// Embedded-only sources read everything off the listing payload.
func (s Source) needsDetail() bool {
	return len(s.Schema.Fields) > 0 || len(s.Schema.Labels) > 0
}
