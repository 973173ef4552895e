package history

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var agoRE = regexp.MustCompile(`^(\d+|an?)\s+(second|minute|hour|day|week|month|year)s?\s+ago$`)

var absoluteLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	time.DateOnly,
}

// ParseWhen turns a human time expression into a point in time relative to
// now. It accepts "now", "today", "yesterday", "N units ago" (also "a week
// ago"), RFC 3339 and "YYYY-MM-DD[ HH:MM[:SS]]" in now's location.
func ParseWhen(s string, now time.Time) (time.Time, error) {
	expr := strings.ToLower(strings.Join(strings.Fields(s), " "))
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch expr {
	case "now", "":
		return now, nil
	case "today":
		return midnight, nil
	case "yesterday":
		return midnight.AddDate(0, 0, -1), nil
	}

	if m := agoRE.FindStringSubmatch(expr); m != nil {
		n := 1
		if m[1] != "a" && m[1] != "an" {
			var err error
			if n, err = strconv.Atoi(m[1]); err != nil {
				return time.Time{}, fmt.Errorf("parse time %q: %w", s, err)
			}
		}
		switch m[2] {
		case "second":
			return now.Add(-time.Duration(n) * time.Second), nil
		case "minute":
			return now.Add(-time.Duration(n) * time.Minute), nil
		case "hour":
			return now.Add(-time.Duration(n) * time.Hour), nil
		case "day":
			return now.AddDate(0, 0, -n), nil
		case "week":
			return now.AddDate(0, 0, -7*n), nil
		case "month":
			return now.AddDate(0, -n, 0), nil
		case "year":
			return now.AddDate(-n, 0, 0), nil
		}
	}

	raw := strings.TrimSpace(s)
	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, raw, now.Location()); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("parse time %q: unrecognised format", s)
}
