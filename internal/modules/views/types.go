package views

import (
	"errors"
	"fmt"
)

// Granularity is the bucketing resolution used to aggregate raw daily
// metrics.
type Granularity string

const (
	GranularityDaily   Granularity = "daily"
	GranularityWeekly  Granularity = "weekly"
	GranularityMonthly Granularity = "monthly"
)

// ValidPeriods are the only period lengths the API accepts, each mapped to a
// fixed granularity.
var ValidPeriods = map[int]Granularity{
	30:  GranularityDaily,
	90:  GranularityWeekly,
	365: GranularityMonthly,
}

// RawPoint is one day of raw pageview data as returned by the upstream
// metrics API. Timestamps are ten digits, "YYYYMMDDHH" with the hour fixed
// at 00.
type RawPoint struct {
	Timestamp string `json:"timestamp"`
	Views     int    `json:"views"`
}

// AggregatedPoint is one bucket of the aggregated series. The date label
// format depends on granularity: "YYYY-MM-DD", "YYYY-Www" or "YYYY/MM".
type AggregatedPoint struct {
	Date  string `json:"date"`
	Views int    `json:"views"`
}

// DateRange is an inclusive window in upstream timestamp form.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// PeriodWindows pairs the current window with the immediately preceding one
// of equal length. Previous always ends exactly one day before Current
// starts.
type PeriodWindows struct {
	Current     DateRange   `json:"current"`
	Previous    DateRange   `json:"previous"`
	Granularity Granularity `json:"granularity"`
}

// Result is the aggregated response for one page and period.
type Result struct {
	Current     []AggregatedPoint `json:"current"`
	Previous    []AggregatedPoint `json:"previous"`
	Granularity Granularity       `json:"granularity"`
}

// PageResult carries the per-page outcome of a batch fetch.
type PageResult struct {
	Data *Result
	Err  error
}

// ErrInvalidPeriod is returned when the requested period is not one of the
// supported window lengths.
var ErrInvalidPeriod = errors.New("invalid period")

// UpstreamError reports a failed upstream metrics call, either after retry
// exhaustion or on a permanent (non-retryable) response.
type UpstreamError struct {
	Page     string
	Attempts int
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("pageviews upstream failed for %q after %d attempt(s): %v", e.Page, e.Attempts, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }
