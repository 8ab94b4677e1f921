// CLAUDE:SUMMARY Year-acceptance policy: numeric years compared to the threshold, empty and unparsed years accepted.
// Package filter decides whether a record's year puts it in scope.
//
// The policy deliberately favors recall: a record with no year at all is
// accepted (absence is not evidence of exclusion), and a year that is
// present but not a plain integer (a prose date, a range) is accepted
// and flagged indeterminate so a later stage can re-parse it. Only a
// well-formed year below the threshold rejects.
package filter

import "strconv"

// Reason explains an acceptance decision.
type Reason string

const (
	ReasonAccepted          Reason = "accepted"
	ReasonBelowThreshold    Reason = "below_threshold"
	ReasonYearIndeterminate Reason = "year_indeterminate"
)

// Decision is the outcome of the year policy for one record.
type Decision struct {
	Accept bool
	Reason Reason
}

// ShouldAccept classifies a record's year against minYear.
func ShouldAccept(year string, minYear int) Decision {
	if year == "" {
		return Decision{Accept: true, Reason: ReasonAccepted}
	}
	n, err := strconv.Atoi(year)
	if err != nil || n < 0 {
		return Decision{Accept: true, Reason: ReasonYearIndeterminate}
	}
	if n < minYear {
		return Decision{Accept: false, Reason: ReasonBelowThreshold}
	}
	return Decision{Accept: true, Reason: ReasonAccepted}
}
