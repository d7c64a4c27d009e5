package views

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Aggregate groups a raw daily series into buckets for the given
// granularity. Output order follows the chronological appearance of each
// bucket's first point; buckets are never re-sorted.
func Aggregate(points []RawPoint, granularity Granularity) []AggregatedPoint {
	switch granularity {
	case GranularityWeekly:
		return aggregateBuckets(points, weekKey)
	case GranularityMonthly:
		return aggregateBuckets(points, monthKey)
	default:
		return convertDaily(points)
	}
}

// convertDaily is a 1:1 reformat: views pass through unchanged.
func convertDaily(points []RawPoint) []AggregatedPoint {
	out := make([]AggregatedPoint, 0, len(points))
	for _, p := range points {
		if len(p.Timestamp) < 8 {
			continue
		}
		date := p.Timestamp[0:4] + "-" + p.Timestamp[4:6] + "-" + p.Timestamp[6:8]
		out = append(out, AggregatedPoint{Date: date, Views: p.Views})
	}
	return out
}

type bucket struct {
	sum   int
	count int
}

func aggregateBuckets(points []RawPoint, keyFn func(RawPoint) (string, bool)) []AggregatedPoint {
	buckets := make(map[string]*bucket)
	order := make([]string, 0)

	for _, p := range points {
		key, ok := keyFn(p)
		if !ok {
			continue
		}
		b, seen := buckets[key]
		if !seen {
			b = &bucket{}
			buckets[key] = b
			order = append(order, key)
		}
		b.sum += p.Views
		b.count++
	}

	out := make([]AggregatedPoint, 0, len(order))
	for _, key := range order {
		b := buckets[key]
		out = append(out, AggregatedPoint{Date: key, Views: roundHalfUp(b.sum, b.count)})
	}
	return out
}

// weekKey buckets by a simplified week-of-year: day-of-year counted from
// "Jan 0" (Dec 31 of the prior year), week = doy/7 + 1. This is deliberately
// not ISO-8601 week numbering; it mirrors the scheme clients already depend
// on for the "YYYY-Www" labels.
func weekKey(p RawPoint) (string, bool) {
	if len(p.Timestamp) < 8 {
		return "", false
	}
	year, err1 := strconv.Atoi(p.Timestamp[0:4])
	month, err2 := strconv.Atoi(p.Timestamp[4:6])
	day, err3 := strconv.Atoi(p.Timestamp[6:8])
	if err1 != nil || err2 != nil || err3 != nil {
		return "", false
	}

	date := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	janZero := time.Date(year, time.January, 0, 0, 0, 0, 0, time.UTC)
	dayOfYear := int(date.Sub(janZero) / (24 * time.Hour))
	week := dayOfYear/7 + 1
	return fmt.Sprintf("%d-W%02d", year, week), true
}

// monthKey buckets by calendar month, "YYYY/MM".
func monthKey(p RawPoint) (string, bool) {
	if len(p.Timestamp) < 6 {
		return "", false
	}
	return p.Timestamp[0:4] + "/" + p.Timestamp[4:6], true
}

// roundHalfUp is the arithmetic mean rounded half-up, matching how the
// aggregated labels have always been computed.
func roundHalfUp(sum, count int) int {
	if count == 0 {
		return 0
	}
	return int(math.Floor(float64(sum)/float64(count) + 0.5))
}
