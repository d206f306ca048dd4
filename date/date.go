// Package date normalizes the human-readable due strings the portal
// renders into timestamps. Parsing is strictly best effort: the raw
// string is always kept by the caller, the normalized value is a bonus.
package date

import (
	"strings"
	"time"

	"github.com/goodsign/monday"
)

// layouts observed across assignment-center deployments. The list is
// ordered from most to least specific.
var layouts = []string{
	"1/2/2006 3:04 PM",
	"1/2/2006",
	"Jan 2, 2006 3:04 PM",
	"Jan 2, 2006",
	"January 2, 2006 3:04 PM",
	"January 2, 2006",
	"Monday, January 2, 2006",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02",
}

// prefixes the portal prepends to the actual date.
var prefixes = []string{"Due:", "Due", "Assigned:", "Assigned"}

// Normalize tries to parse a rendered due string. It returns the zero
// time and false when no known layout matches.
func Normalize(raw string, locale monday.Locale) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			s = strings.TrimSpace(strings.TrimPrefix(s, p))
			break
		}
	}
	if s == "" {
		return time.Time{}, false
	}
	if locale == "" {
		locale = monday.LocaleEnUS
	}
	for _, layout := range layouts {
		if t, err := monday.ParseInLocation(layout, s, time.UTC, locale); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
