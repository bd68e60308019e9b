package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const unknownDate = "Unknown"

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	"Jan 2, 2006",
	"January 2, 2006",
	"01/02/2006",
}

// ParseTimestamp parses the date formats the search surfaces emit, including
// epoch seconds and epoch milliseconds.
func ParseTimestamp(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		// 1e11 seconds is year 5138; anything larger is milliseconds.
		if n > 1e11 {
			return time.UnixMilli(n).UTC(), true
		}
		return time.Unix(n, 0).UTC(), true
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// FormatPostedDate humanizes raw relative to now: "Today", "Yesterday",
// "N days ago", "N week(s) ago", or "Jan 2, 2006" for older dates. Empty input
// yields "Unknown"; unparseable input is returned unchanged.
func FormatPostedDate(raw string, now time.Time) string {
	if strings.TrimSpace(raw) == "" {
		return unknownDate
	}
	posted, ok := ParseTimestamp(raw)
	if !ok {
		return raw
	}
	diff := now.Sub(posted)
	if diff < 0 {
		diff = -diff
	}
	days := int(diff / (24 * time.Hour))
	switch {
	case days == 0:
		return "Today"
	case days == 1:
		return "Yesterday"
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	case days < 30:
		weeks := days / 7
		if weeks == 1 {
			return "1 week ago"
		}
		return fmt.Sprintf("%d weeks ago", weeks)
	default:
		return posted.Format("Jan 2, 2006")
	}
}
