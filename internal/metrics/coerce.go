package metrics

import (
	"strings"
	"time"

	"github.com/wesm/barview/internal/db"
	"github.com/wesm/barview/internal/query"
)

func toTextPtr(v any) *string {
	if v == nil {
		return nil
	}
	s := db.Text(v)
	return &s
}

func toIntPtr(v any) *int64 {
	if v == nil {
		return nil
	}
	n := db.Int(v)
	return &n
}

var timestampLayouts = []string{
	query.TimestampLayout,
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
}

// toTime parses an emission timestamp. Naive timestamps are read
// in loc.
func toTime(v any, loc *time.Location) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		return x, true
	case []byte:
		return toTime(string(x), loc)
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range timestampLayouts {
			if t, err := time.ParseInLocation(layout, s, loc); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
