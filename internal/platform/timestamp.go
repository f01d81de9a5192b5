package platform

import "time"

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05-0700",     // Graph API
	"2006-01-02T15:04:05.000-0700", // Graph API, fractional
}

// parseTimestamp accepts the ISO-8601 variants the platforms emit. It
// returns nil for empty or unparsable input rather than guessing.
func parseTimestamp(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// unixTimestamp converts unix seconds, treating zero as absent
func unixTimestamp(sec int64) *time.Time {
	if sec <= 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}
