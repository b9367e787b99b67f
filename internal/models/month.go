package models

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
	_ "time/tzdata"

	"github.com/pkg/errors"
)

// FirstReportYear is the earliest year YouTube has data for.
const FirstReportYear = 2005

var monthPattern = regexp.MustCompile(`^(\d{2})/(\d{4})$`)

// ReportingLocation is the time zone YouTube Analytics uses for day boundaries.
var ReportingLocation = mustLoadLocation("America/Los_Angeles")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// Month identifies a calendar month.
type Month struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
}

// ParseMonth parses a month in MM/YYYY form, e.g. "09/2025".
func ParseMonth(s string) (Month, error) {
	matches := monthPattern.FindStringSubmatch(s)
	if matches == nil {
		return Month{}, errors.Errorf("month must be in MM/YYYY format (e.g., 09/2025), got %q", s)
	}

	mm, _ := strconv.Atoi(matches[1])
	yyyy, _ := strconv.Atoi(matches[2])
	if mm < 1 || mm > 12 {
		return Month{}, errors.Errorf("invalid month %02d in %q", mm, s)
	}
	if yyyy < FirstReportYear {
		return Month{}, errors.Errorf("invalid year %d in %q: YouTube data starts in %d", yyyy, s, FirstReportYear)
	}

	return Month{Year: yyyy, Month: time.Month(mm)}, nil
}

// MonthOf returns the calendar month t falls in, in t's own location.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// String returns the display name used for sheet tabs, e.g. "September 2025".
func (m Month) String() string {
	return fmt.Sprintf("%s %d", m.Month, m.Year)
}

// Short returns the compact label used as a trend column header, e.g. "Sep 2025".
func (m Month) Short() string {
	return m.Start().Format("Jan 2006")
}

// Key returns a sortable identifier, e.g. "2025-09".
func (m Month) Key() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// Start returns midnight UTC on the first day of the month.
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End returns midnight UTC on the last day of the month.
func (m Month) End() time.Time {
	return m.Start().AddDate(0, 1, -1)
}

// DateRange returns the first and last day of the month as YYYY-MM-DD.
func (m Month) DateRange() (string, string) {
	return m.Start().Format("2006-01-02"), m.End().Format("2006-01-02")
}

// Contains reports whether t falls on any calendar day of the month in ReportingLocation, the
// same days the month's analytics cover.
func (m Month) Contains(t time.Time) bool {
	return !t.IsZero() && MonthOf(t.In(ReportingLocation)) == m
}

// AddMonths returns the month n months after m (n may be negative).
func (m Month) AddMonths(n int) Month {
	return MonthOf(m.Start().AddDate(0, n, 0))
}

// Prev returns the preceding month.
func (m Month) Prev() Month {
	return m.AddMonths(-1)
}

// Before reports whether m is strictly earlier than o.
func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

// MonthsBetween returns how many months o is after m.
func (m Month) MonthsBetween(o Month) int {
	return (o.Year-m.Year)*12 + int(o.Month-m.Month)
}

// Trailing returns the n months before m, oldest first.
func (m Month) Trailing(n int) []Month {
	months := make([]Month, 0, n)
	for i := n; i >= 1; i-- {
		months = append(months, m.AddMonths(-i))
	}
	return months
}
