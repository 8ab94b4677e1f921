// CLAUDE:SUMMARY Process-wide atomic crawl counters with a JSON-friendly snapshot for the status endpoint.
package pipeline

import "sync/atomic"

// Counters are process-wide crawl totals, safe for concurrent update
// from worker goroutines and concurrent read from a status endpoint.
type Counters struct {
	Pages      atomic.Int64
	EmptyPages atomic.Int64
	Items      atomic.Int64
	Saved      atomic.Int64
	Skipped    atomic.Int64
	Errors     atomic.Int64
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Pages      int64 `json:"pages"`
	EmptyPages int64 `json:"empty_pages"`
	Items      int64 `json:"items"`
	Saved      int64 `json:"saved"`
	Skipped    int64 `json:"skipped"`
	Errors     int64 `json:"errors"`
}

// Snapshot copies the current totals. Safe on a nil receiver.
func (c *Counters) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	return Snapshot{
		Pages:      c.Pages.Load(),
		EmptyPages: c.EmptyPages.Load(),
		Items:      c.Items.Load(),
		Saved:      c.Saved.Load(),
		Skipped:    c.Skipped.Load(),
		Errors:     c.Errors.Load(),
	}
}
