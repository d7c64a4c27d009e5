package views

import "time"

// ComputeWindows derives the current and previous comparable windows for a
// period of periodDays days. The current window ends yesterday (UTC) so the
// upstream never has to serve a partial day, and the previous window of the
// same length ends exactly one day before the current one starts.
//
// Pure: deterministic for a fixed now, no I/O.
func ComputeWindows(now time.Time, periodDays int) PeriodWindows {
	end := now.UTC().AddDate(0, 0, -1)
	start := end.AddDate(0, 0, -(periodDays - 1))
	prevEnd := start.AddDate(0, 0, -1)
	prevStart := prevEnd.AddDate(0, 0, -(periodDays - 1))

	granularity := GranularityDaily
	if g, ok := ValidPeriods[periodDays]; ok {
		granularity = g
	}

	return PeriodWindows{
		Current:     DateRange{Start: formatStamp(start), End: formatStamp(end)},
		Previous:    DateRange{Start: formatStamp(prevStart), End: formatStamp(prevEnd)},
		Granularity: granularity,
	}
}

// formatStamp renders a date in the upstream's "YYYYMMDD00" form, hour fixed
// at midnight.
func formatStamp(t time.Time) string {
	return t.Format("20060102") + "00"
}
