// CLAUDE:SUMMARY Public aliases for the source-definition and stats types callers and the catalog share.
package crawl

import "github.com/vanessagd15/GCCMPD-climate-policy-dataset/crawl/internal/pipeline"

// Source definitions and run results are declared in the internal
// pipeline package; these aliases are the public names the catalog and
// callers use.
type (
	Source      = pipeline.Source
	ListingRoot = pipeline.ListingRoot
	Stats       = pipeline.Stats
	Snapshot    = pipeline.Snapshot
)
