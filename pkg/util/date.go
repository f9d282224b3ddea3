package util

import (
	"strconv"
	"strings"
	"time"
)

var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
}

// ParseTime tries the ISO-8601 layouts and then an integer epoch in
// milliseconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil && ms > 0 {
		return time.UnixMilli(ms), true
	}
	return time.Time{}, false
}

// ParseMillis is ParseTime returning epoch milliseconds.
func ParseMillis(s string) (int64, bool) {
	t, ok := ParseTime(s)
	if !ok {
		return 0, false
	}
	return t.UnixMilli(), true
}

// FormatMillis renders epoch ms as RFC3339 UTC with millisecond precision.
func FormatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
