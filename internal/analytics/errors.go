// Package analytics turns fetched YouTube analytics into monthly reports and rolling trends.
//
// Everything here is a pure function over already-fetched data: no I/O, no retries.
package analytics

import "errors"

var (
	// ErrDataUnavailable means the Analytics API returned no rows for the requested month.
	ErrDataUnavailable = errors.New("analytics data unavailable for the requested month")

	// ErrInvalidRange means the set of prior months handed to BuildTrend is unusable.
	ErrInvalidRange = errors.New("invalid prior month range")
)
