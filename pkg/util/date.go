package util

import (
    "strconv"
    "strings"
    "time"
)

// dateLayouts are tried in order by ParseDate.
var dateLayouts = []string{
    "2006-01-02",
    time.RFC3339,
    time.RFC3339Nano,
    "2006-01-02 15:04:05",
    "2006-01-02T15:04:05",
    "2006/01/02",
    "01/02/2006",
}

// ParseDate parses a calendar date in any supported layout and truncates it
// to UTC midnight. Returns (d, true) if any layout worked.
func ParseDate(s string) (time.Time, bool) {
    s = strings.TrimSpace(s)
    if s == "" {
        return time.Time{}, false
    }
    for _, layout := range dateLayouts {
        if t, err := time.Parse(layout, s); err == nil {
            y, m, d := t.Date()
            return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
        }
    }
    return time.Time{}, false
}

// ParseDateDefault parses a date or returns def if empty/invalid.
func ParseDateDefault(s string, def time.Time) time.Time {
    if d, ok := ParseDate(s); ok {
        return d
    }
    return def
}

// ParseTime tries RFC3339, RFC3339Nano, and unix seconds. Returns (t, true) if any worked.
func ParseTime(s string) (time.Time, bool) {
    if s == "" {
        return time.Time{}, false
    }
    if t, err := time.Parse(time.RFC3339, s); err == nil {
        return t, true
    }
    if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
        return t, true
    }
    if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
        return time.Unix(ts, 0), true
    }
    return time.Time{}, false
}
