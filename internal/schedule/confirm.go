package schedule

import (
	"regexp"
	"strings"
	"time"
)

// Phrases that signal a scheduling confirmation. Intentionally broad: a false
// positive only triggers a harmless no-op confirmation attempt.
var confirmationKeywords = []string{
	"anytime is fine", "anytime is ok", "anytime works", "any time is fine",
	"first option", "second option", "third option",
	"yes, that works", "sounds good", "perfect", "confirmed",
	"i'll take", "let's go with", "book it", "schedule it",
}

// Phrases that signal the sender is flexible about the time.
var flexibilityKeywords = []string{
	"anytime", "any time", "flexible", "whatever works",
}

// Ordinal references resolved against the suggested-time sequence, checked
// in declared order.
var ordinalPatterns = []string{"first", "second", "third", "1st", "2nd", "3rd"}

var (
	// Clock-time shapes scanned against lowercased bodies.
	confirmTimeRes = []*regexp.Regexp{
		regexp.MustCompile(`\d{1,2}:\d{2}\s*[ap]m`), // 4:58 pm, 5:13 pm
		regexp.MustCompile(`\d{1,2}\s*[ap]m`),       // 4 pm, 5 pm
	}

	// Time mentions harvested from a whole thread: bare clock times and
	// fully qualified "Month Day, Year at H:MM AM/PM" phrases.
	suggestedTimeRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d{1,2}:\d{2}\s*[AP]M)`),
		regexp.MustCompile(`(?i)([A-Za-z]+\s+\d{1,2},\s+\d{4}\s+at\s+\d{1,2}:\d{2}\s*[AP]M)`),
	}
)

// IsConfirmationReply reports whether a body reads like a reply confirming a
// previously proposed meeting.
func IsConfirmationReply(body string) bool {
	lower := strings.ToLower(body)
	for _, keyword := range confirmationKeywords {
		if strings.Contains(lower, keyword) {
			return true
		}
	}
	for _, re := range confirmTimeRes {
		if re.MatchString(lower) {
			return true
		}
	}
	return false
}

// SuggestedTimes extracts previously suggested meeting times from a thread
// body, in order of first occurrence, deduplicated by exact instant.
func SuggestedTimes(body string, loc *time.Location) []time.Time {
	return SuggestedTimesAt(body, loc, time.Now())
}

// SuggestedTimesAt is SuggestedTimes with an explicit notion of the current
// time.
func SuggestedTimesAt(body string, loc *time.Location, now time.Time) []time.Time {
	var times []time.Time
	for _, re := range suggestedTimeRes {
		for _, m := range re.FindAllStringSubmatch(body, -1) {
			t, ok := ExtractAt(m[1], loc, now)
			if !ok {
				continue
			}
			if !containsInstant(times, t) {
				times = append(times, t)
			}
		}
	}
	return times
}

func containsInstant(times []time.Time, t time.Time) bool {
	for _, existing := range times {
		if existing.Equal(t) {
			return true
		}
	}
	return false
}

// mentionedInstants resolves every distinct date/time mention in the body. A
// clock time inside a fully qualified phrase counts as part of that phrase,
// not as a second mention.
func mentionedInstants(body string, loc *time.Location, now time.Time) []time.Time {
	qualified := suggestedTimeRes[1].FindAllStringIndex(body, -1)
	spans := append([][]int{}, qualified...)
	for _, m := range suggestedTimeRes[0].FindAllStringIndex(body, -1) {
		nested := false
		for _, q := range qualified {
			if m[0] >= q[0] && m[1] <= q[1] {
				nested = true
				break
			}
		}
		if !nested {
			spans = append(spans, m)
		}
	}

	var times []time.Time
	for _, span := range spans {
		t, ok := ExtractAt(body[span[0]:span[1]], loc, now)
		if ok && !containsInstant(times, t) {
			times = append(times, t)
		}
	}
	return times
}

// ConfirmedTime resolves which meeting time a confirmation reply selects.
//
// Priority: a date/time restated in the reply wins, but only when the body
// mentions at most one distinct instant; a reply quoting an alternatives
// list carries several, and the sender's cue decides instead. Then a
// flexibility phrase takes the first suggested time (or a synthesized
// fallback when the thread suggested none); then an ordinal reference picks
// from the suggested sequence; then the first suggested time. Returns
// ok=false when nothing resolves.
func ConfirmedTime(body string, loc *time.Location) (time.Time, bool) {
	return ConfirmedTimeAt(body, loc, time.Now())
}

// ConfirmedTimeAt is ConfirmedTime with an explicit notion of the current
// time.
func ConfirmedTimeAt(body string, loc *time.Location, now time.Time) (time.Time, bool) {
	if loc == nil {
		loc = time.UTC
	}

	if len(mentionedInstants(body, loc, now)) <= 1 {
		if t, ok := ExtractAt(body, loc, now); ok {
			return t, true
		}
	}

	suggested := SuggestedTimesAt(body, loc, now)
	lower := strings.ToLower(body)

	for _, keyword := range flexibilityKeywords {
		if !strings.Contains(lower, keyword) {
			continue
		}
		if len(suggested) > 0 {
			return suggested[0], true
		}
		return flexibleFallback(now.In(loc), loc), true
	}

	for i, pattern := range ordinalPatterns {
		if !strings.Contains(lower, pattern) {
			continue
		}
		if i < len(suggested) {
			return suggested[i], true
		}
		// Matched an ordinal the sequence cannot satisfy; fall through.
		break
	}

	if len(suggested) > 0 {
		return suggested[0], true
	}
	return time.Time{}, false
}

// flexibleFallback synthesizes a time for a flexible sender with no suggested
// times on record: next business morning after 5 PM, otherwise the next whole
// hour.
func flexibleFallback(local time.Time, loc *time.Location) time.Time {
	if local.Hour() >= 17 {
		next := local.AddDate(0, 0, 1)
		return time.Date(next.Year(), next.Month(), next.Day(), 9, 0, 0, 0, loc)
	}
	return time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), 0, 0, 0, loc).Add(time.Hour)
}
