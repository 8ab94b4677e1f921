// CLAUDE:SUMMARY Sentinel errors for source runs.
package crawl

import (
	"errors"

	"github.com/vanessagd15/GCCMPD-climate-policy-dataset/crawl/internal/pipeline"
)

var (
	// ErrFatalSetup marks a source whose pagination root could not be
	// reached on first contact. Other sources in the same run continue.
	ErrFatalSetup = pipeline.ErrFatalSetup

	// ErrUnknownSource is returned when a requested source name is not in
	// the catalog.
	ErrUnknownSource = errors.New("crawl: unknown source")
)
