package query

import (
	"regexp"
	"strconv"
	"time"
)

// trekCutover is the Earth date at which the fleet's calendar offset changed:
// Earth dates before it map +404 years into the Star Trek era, later dates
// map +430.
var trekCutover = time.Date(2024, time.June, 1, 0, 0, 0, 0, time.UTC)

// Supported textual date layouts, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	"2006/1/2",
	"1/2/2006",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
}

var datePatternRe = regexp.MustCompile(
	`\b(\d{4}[-/]\d{1,2}[-/]\d{1,2}|\d{1,2}/\d{1,2}/\d{4}|` +
		`(?:January|February|March|April|May|June|July|August|September|October|November|December|` +
		`Jan|Feb|Mar|Apr|Jun|Jul|Aug|Sep|Oct|Nov|Dec)\.? \d{1,2},? \d{4}|` +
		`\d{1,2} (?:January|February|March|April|May|June|July|August|September|October|November|December) \d{4})\b`)

var bareYearRe = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)

// ParseDate parses a textual date in any supported layout and returns it
// normalised to UTC midnight.
func ParseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
		}
	}
	// "March 14, 2025" with the comma already consumed by the regex
	// alternation arrives as "March 14 2025".
	if t, err := time.Parse("January 2 2006", s); err == nil {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// DetectDate finds the first recognisable date in text.
func DetectDate(text string) (time.Time, bool) {
	m := datePatternRe.FindString(text)
	if m == "" {
		return time.Time{}, false
	}
	return ParseDate(m)
}

// EarthToStarTrek converts an Earth calendar date to its in-universe year:
// +404 years before the June 2024 cutover, +430 after.
func EarthToStarTrek(d time.Time) time.Time {
	if d.Before(trekCutover) {
		return d.AddDate(404, 0, 0)
	}
	return d.AddDate(430, 0, 0)
}

// StarTrekToEarth inverts [EarthToStarTrek].
func StarTrekToEarth(d time.Time) time.Time {
	if !d.AddDate(-430, 0, 0).Before(trekCutover) {
		return d.AddDate(-430, 0, 0)
	}
	return d.AddDate(-404, 0, 0)
}

// earthYearToTrek converts a bare year using the same offsets; without a
// month the cutover falls between 2023 and 2024.
func earthYearToTrek(year int) int {
	if year < 2024 {
		return year + 404
	}
	return year + 430
}

// ConvertDatesToStarTrek rewrites every recognisable Earth date and bare
// 19xx/20xx year in text into the Star Trek era. Retrieved wiki content runs
// through this before prompt assembly on all non-OOC paths; OOC scheduling
// content keeps real Earth dates.
func ConvertDatesToStarTrek(text string) string {
	out := datePatternRe.ReplaceAllStringFunc(text, func(m string) string {
		d, ok := ParseDate(m)
		if !ok {
			return m
		}
		return EarthToStarTrek(d).Format("2006-01-02")
	})
	return bareYearRe.ReplaceAllStringFunc(out, func(m string) string {
		year, err := strconv.Atoi(m)
		if err != nil {
			return m
		}
		return strconv.Itoa(earthYearToTrek(year))
	})
}
