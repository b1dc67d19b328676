package parsing

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Date patterns tried in order; the first one whose first match is a valid
// calendar date wins.
var datePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(\d{1,2})[/\-](\d{1,2})[/\-](\d{2,4})\b`),                                               // D/M/Y, day-first when ambiguous
	regexp.MustCompile(`\b(\d{4})[/\-](\d{1,2})[/\-](\d{1,2})\b`),                                                 // Y/M/D with 4-digit year
	regexp.MustCompile(`(?i)\b(\d{1,2})\s+(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\s+(\d{2,4})\b`), // D Monthname Y
}

var monthsByPrefix = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March,
	"apr": time.April, "may": time.May, "jun": time.June,
	"jul": time.July, "aug": time.August, "sep": time.September,
	"oct": time.October, "nov": time.November, "dec": time.December,
}

// ParseDate finds the first parseable date in the text. Two-digit years are
// interpreted as 2000+. Matches that are not valid calendar dates (month 13,
// February 30) are skipped and the next pattern is tried. Returns nil when
// nothing parses.
func ParseDate(text string) *time.Time {
	for i, pattern := range datePatterns {
		m := pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}

		var year, month, day int
		switch i {
		case 0:
			day, _ = strconv.Atoi(m[1])
			month, _ = strconv.Atoi(m[2])
			year, _ = strconv.Atoi(m[3])
		case 1:
			year, _ = strconv.Atoi(m[1])
			month, _ = strconv.Atoi(m[2])
			day, _ = strconv.Atoi(m[3])
		case 2:
			day, _ = strconv.Atoi(m[1])
			month = int(monthsByPrefix[strings.ToLower(m[2][:3])])
			year, _ = strconv.Atoi(m[3])
		}
		if year < 100 {
			year += 2000
		}

		if t, ok := calendarDate(year, month, day); ok {
			return &t
		}
	}
	return nil
}

// calendarDate builds the date and rejects combinations that normalize to a
// different day (the round-trip check catches month 13, day 32, Feb 30).
func calendarDate(year, month, day int) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
		return time.Time{}, false
	}
	return t, true
}
