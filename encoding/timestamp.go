package encoding

import (
	"fmt"
	"time"
)

// TimestampLayout is the only timestamp grammar this protocol accepts:
// second precision, literal "Z" suffix, no fractional seconds, no numeric
// offset (spec §4.1).
const TimestampLayout = "2006-01-02T15:04:05Z"

// FormatTimestamp truncates t to second precision (UTC) and formats it per
// TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(TimestampLayout)
}

// ParseTimestamp parses s strictly: fractional seconds, non-"Z" offsets, or
// a missing "Z" suffix are all rejected, even though time.Parse alone would
// accept some of them via its reference-layout leniency.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(TimestampLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp: %w", err)
	}
	// Reject any input that round-trips to a different string than it
	// started as (e.g. "2026-07-31T00:00:00.5Z" parses past the layout's
	// seconds field silently in some Go versions' leniency around trailing
	// input; re-formatting and comparing closes that gap without relying on
	// undocumented parser strictness).
	if FormatTimestamp(t) != s {
		return time.Time{}, fmt.Errorf("timestamp: %q is not a canonical RFC3339-second timestamp", s)
	}
	return t, nil
}
