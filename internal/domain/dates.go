package domain

import (
	"strings"
	"time"
)

// DateLayout is the date-only upload_date form.
const DateLayout = "2006-01-02"

var uploadDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	DateLayout,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
}

// ParseUploadDate parses the upload date forms seen in uploads. Values
// without a zone are UTC. dateOnly reports whether s carried no time of day.
func ParseUploadDate(s string) (t time.Time, dateOnly bool, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, false
	}
	for _, layout := range uploadDateLayouts {
		parsed, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		return parsed.UTC(), !strings.Contains(layout, "15"), true
	}
	return time.Time{}, false, false
}

// FormatUploadDate renders t in the stored ISO-8601 form.
func FormatUploadDate(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
