// Package silence evaluates do-not-disturb windows.
package silence

import (
	"time"

	"recap_server/core/domain"
)

// IsActive reports whether a silence window covers now's time-of-day.
// Pure function of settings and now; malformed ranges are skipped.
//
// Each range is evaluated literally: start <= tod < end for ordinary
// ranges, and for ranges where end precedes start (e.g. 22:00-02:00) the
// window wraps midnight, active when tod >= start or tod < end. A range
// with start == end is empty, never full-day.
func IsActive(settings *domain.SilenceSettings, now time.Time) bool {
	if settings == nil || !settings.Enabled {
		return false
	}

	tod := now.Hour()*60 + now.Minute()

	for _, r := range settings.Ranges {
		start, ok := parseMinutes(r.Start)
		if !ok {
			continue
		}
		end, ok := parseMinutes(r.End)
		if !ok {
			continue
		}

		switch {
		case start == end:
			continue
		case start < end:
			if tod >= start && tod < end {
				return true
			}
		default: // wraps past midnight
			if tod >= start || tod < end {
				return true
			}
		}
	}

	return false
}

// parseMinutes converts "HH:MM" to minutes since midnight.
func parseMinutes(s string) (int, bool) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}
