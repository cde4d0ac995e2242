package schedule

import (
	"regexp"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// Common timezone abbreviations (esp. AU) mapped to fixed UTC offsets.
// Abbreviations are inherently ambiguous, so free-text parsers cannot resolve
// them on their own.
var tzOffsets = map[string]*time.Location{
	// Australia
	"AEST": time.FixedZone("AEST", 10*3600),
	"AEDT": time.FixedZone("AEDT", 11*3600),
	"ACST": time.FixedZone("ACST", 9*3600+1800),
	"ACDT": time.FixedZone("ACDT", 10*3600+1800),
	"AWST": time.FixedZone("AWST", 8*3600),
	// US
	"PST": time.FixedZone("PST", -8*3600),
	"PDT": time.FixedZone("PDT", -7*3600),
	"MST": time.FixedZone("MST", -7*3600),
	"MDT": time.FixedZone("MDT", -6*3600),
	"CST": time.FixedZone("CST", -6*3600),
	"CDT": time.FixedZone("CDT", -5*3600),
	"EST": time.FixedZone("EST", -5*3600),
	"EDT": time.FixedZone("EDT", -4*3600),
	// Other commons
	"NPT": time.FixedZone("NPT", 5*3600+2700), // Nepal
	"IST": time.FixedZone("IST", 5*3600+1800), // India
	"BST": time.FixedZone("BST", 1*3600),      // British Summer Time
	"GMT": time.UTC,
	"UTC": time.UTC,
}

var monthsByName = map[string]time.Month{
	"january":   time.January,
	"february":  time.February,
	"march":     time.March,
	"april":     time.April,
	"may":       time.May,
	"june":      time.June,
	"july":      time.July,
	"august":    time.August,
	"september": time.September,
	"october":   time.October,
	"november":  time.November,
	"december":  time.December,
}

var (
	tzAbbrevRe = regexp.MustCompile(`\b(AEST|AEDT|ACST|ACDT|AWST|PST|PDT|MST|MDT|CST|CDT|EST|EDT|NPT|IST|BST|GMT|UTC)\b`)

	// monthDayRe matches explicit dates like "August 30th at 2:30 PM" and
	// "August 21, 2025 at 4:58 PM", with the time-of-day part optional.
	monthDayRe = regexp.MustCompile(`(?i)\b(January|February|March|April|May|June|July|August|September|October|November|December)\s+(\d{1,2})(?:st|nd|rd|th)?(?:,?\s*(\d{4}))?(?:\s+at\s+(\d{1,2})(?::(\d{2}))?\s*(AM|PM))?`)

	// Clock-time backstops. Lowercase meridiems are handled by the
	// normalization pre-pass, so these match uppercase only.
	clockRe = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\s*(AM|PM)\b`)
	hourRe  = regexp.MustCompile(`\b(\d{1,2})\s*(AM|PM)\b`)
)

// fuzzyParser resolves relative expressions ("tomorrow at 2pm", "next
// tuesday") against a base time.
var fuzzyParser = func() *when.Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return w
}()

// normalizeMeridiem uppercases lowercase am/pm tokens before parsing. It is a
// plain substring replace, so unrelated words containing "am" or "pm" get
// mangled too. Known rough edge.
func normalizeMeridiem(text string) string {
	text = strings.ReplaceAll(text, "am", "AM")
	text = strings.ReplaceAll(text, "pm", "PM")
	return text
}

// clockHour converts a 12-hour clock reading to a 24-hour one.
func clockHour(hour int, meridiem string) int {
	if hour == 12 {
		hour = 0
	}
	if strings.EqualFold(meridiem, "PM") {
		hour += 12
	}
	return hour
}

// Extract parses the first date/time expression out of free text and returns
// it in loc. A bare time-of-day resolves to today's date, not to whatever
// instant parsing runs at. Returns ok=false when no usable expression is
// found.
func Extract(text string, loc *time.Location) (time.Time, bool) {
	return ExtractAt(text, loc, time.Now())
}

// ExtractAt is Extract with an explicit notion of the current time, so
// today-relative resolution is testable.
func ExtractAt(text string, loc *time.Location, now time.Time) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}
	text = normalizeMeridiem(text)

	// A mentioned abbreviation pins the wall-clock reading to that zone; the
	// result is then converted into loc.
	zone := loc
	explicitZone := false
	if m := tzAbbrevRe.FindStringSubmatch(text); m != nil {
		zone = tzOffsets[m[1]]
		explicitZone = true
	}

	local := now.In(loc)
	year, month, day := local.Date()

	if m, ok := monthDayMatch(text); ok {
		if t, ok := buildMonthDay(m, year, zone); ok {
			return t.In(loc), true
		}
	}

	// Relative and casual expressions, seeded with today at local midnight so
	// a bare time-of-day lands on today rather than inheriting the current
	// wall clock.
	base := time.Date(year, month, day, 0, 0, 0, 0, zone)
	if r, err := fuzzyParser.Parse(text, base); err == nil && r != nil {
		t := r.Time
		if explicitZone {
			t = t.In(loc)
		}
		return t, true
	}

	if m := clockRe.FindStringSubmatch(text); m != nil {
		hour := atoi(m[1])
		minute := atoi(m[2])
		if hour >= 1 && hour <= 12 && minute <= 59 {
			t := time.Date(year, month, day, clockHour(hour, m[3]), minute, 0, 0, zone)
			return t.In(loc), true
		}
	}
	if m := hourRe.FindStringSubmatch(text); m != nil {
		hour := atoi(m[1])
		if hour >= 1 && hour <= 12 {
			t := time.Date(year, month, day, clockHour(hour, m[2]), 0, 0, 0, zone)
			return t.In(loc), true
		}
	}

	return time.Time{}, false
}

// monthDayMatch returns the first monthDayRe match whose day digits do not
// run into a longer number, so "May 2025" is not read as May 20.
func monthDayMatch(text string) ([]string, bool) {
	for _, idx := range monthDayRe.FindAllStringSubmatchIndex(text, -1) {
		if dayEnd := idx[5]; dayEnd < len(text) && text[dayEnd] >= '0' && text[dayEnd] <= '9' {
			continue
		}
		groups := make([]string, monthDayRe.NumSubexp()+1)
		for i := range groups {
			if s, e := idx[2*i], idx[2*i+1]; s >= 0 {
				groups[i] = text[s:e]
			}
		}
		return groups, true
	}
	return nil, false
}

// buildMonthDay assembles a time from a monthDayRe match. The year defaults
// to the current one and a missing time-of-day means local midnight.
func buildMonthDay(m []string, currentYear int, zone *time.Location) (time.Time, bool) {
	month, ok := monthsByName[strings.ToLower(m[1])]
	if !ok {
		return time.Time{}, false
	}
	day := atoi(m[2])
	if day < 1 || day > 31 {
		return time.Time{}, false
	}
	year := currentYear
	if m[3] != "" {
		year = atoi(m[3])
	}
	hour, minute := 0, 0
	if m[4] != "" {
		h := atoi(m[4])
		if h < 1 || h > 12 {
			return time.Time{}, false
		}
		hour = clockHour(h, m[6])
		if m[5] != "" {
			minute = atoi(m[5])
			if minute > 59 {
				return time.Time{}, false
			}
		}
	}
	return time.Date(year, month, day, hour, minute, 0, 0, zone), true
}

// atoi parses digits already vetted by a regexp; malformed input yields zero.
func atoi(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
