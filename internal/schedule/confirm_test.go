package schedule

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsConfirmationReply(t *testing.T) {
	positives := []string{
		"Sounds good, see you then!",
		"Let's go with the first option.",
		"Perfect, book it.",
		"4:58 pm works for me",
		"Anytime is fine by me",
	}
	for _, body := range positives {
		assert.True(t, IsConfirmationReply(body), "body=%q", body)
	}

	negatives := []string{
		"Could you share the agenda beforehand?",
		"We should cancel this.",
		"",
	}
	for _, body := range negatives {
		assert.False(t, IsConfirmationReply(body), "body=%q", body)
	}
}

func TestSuggestedTimesAt(t *testing.T) {
	body := "Here are some options:\n" +
		"- August 21, 2025 at 4:58 PM\n" +
		"- 5:13 PM\n" +
		"I mentioned 4:58 PM above already."

	times := SuggestedTimesAt(body, kathmandu, testNow)
	require.Len(t, times, 3)

	// Bare clock times resolve to today, the qualified phrase to its own date.
	assert.True(t, times[0].Equal(time.Date(2025, time.August, 20, 16, 58, 0, 0, kathmandu)))
	assert.True(t, times[1].Equal(time.Date(2025, time.August, 20, 17, 13, 0, 0, kathmandu)))
	assert.True(t, times[2].Equal(time.Date(2025, time.August, 21, 16, 58, 0, 0, kathmandu)))
}

func TestSuggestedTimesAt_Deduplicates(t *testing.T) {
	body := "Either 4:58 PM or 4:58 PM again."
	times := SuggestedTimesAt(body, kathmandu, testNow)
	require.Len(t, times, 1)
}

func TestConfirmedTimeAt_ExplicitTimeWins(t *testing.T) {
	body := "Actually the first option is out, let's lock August 21, 2025 at 4:58 PM."
	got, ok := ConfirmedTimeAt(body, kathmandu, testNow)
	require.True(t, ok)
	assert.True(t, got.Equal(time.Date(2025, time.August, 21, 16, 58, 0, 0, kathmandu)), "got %v", got)
}

func TestMentionedInstants_NestedClockCountsOnce(t *testing.T) {
	body := "Let's lock August 21, 2025 at 4:58 PM."
	times := mentionedInstants(body, kathmandu, testNow)
	require.Len(t, times, 1)
	assert.True(t, times[0].Equal(time.Date(2025, time.August, 21, 16, 58, 0, 0, kathmandu)))
}

func TestConfirmedTimeAt_OrdinalOverQuotedThread(t *testing.T) {
	// The quoted alternatives must not be mistaken for a restated choice; the
	// ordinal picks from the suggested sequence, where bare clock times come
	// first and resolve to today.
	body := "Let's go with the second option.\n" +
		"> - August 21, 2025 at 4:58 PM\n" +
		"> - August 22, 2025 at 9:00 AM\n" +
		"> - August 23, 2025 at 1:00 PM"
	got, ok := ConfirmedTimeAt(body, kathmandu, testNow)
	require.True(t, ok)
	assert.True(t, got.Equal(time.Date(2025, time.August, 20, 9, 0, 0, 0, kathmandu)), "got %v", got)
}

func TestConfirmedTimeAt_FlexibleOverQuotedThread(t *testing.T) {
	body := "Anytime works for us, let's go with the first option.\n" +
		"> - August 21, 2025 at 4:58 PM\n" +
		"> - August 22, 2025 at 9:00 AM"
	got, ok := ConfirmedTimeAt(body, kathmandu, testNow)
	require.True(t, ok)
	// Flexibility takes the first suggested time, not the first quoted date.
	assert.True(t, got.Equal(time.Date(2025, time.August, 20, 16, 58, 0, 0, kathmandu)), "got %v", got)
}

func TestConfirmedTimeAt_FlexibleBeforeCutoff(t *testing.T) {
	// 10:00 local is before the 17:00 cutoff: next whole hour.
	got, ok := ConfirmedTimeAt("I'm flexible, whatever works.", kathmandu, testNow)
	require.True(t, ok)
	assert.True(t, got.Equal(time.Date(2025, time.August, 20, 11, 0, 0, 0, kathmandu)), "got %v", got)
}

func TestConfirmedTimeAt_FlexibleAfterCutoff(t *testing.T) {
	evening := time.Date(2025, time.August, 20, 18, 30, 0, 0, kathmandu)
	got, ok := ConfirmedTimeAt("anytime is fine", kathmandu, evening)
	require.True(t, ok)
	// After 17:00 the fallback is the next business morning.
	assert.True(t, got.Equal(time.Date(2025, time.August, 21, 9, 0, 0, 0, kathmandu)), "got %v", got)
}

func TestConfirmedTimeAt_OrdinalWithoutSuggestionsFails(t *testing.T) {
	_, ok := ConfirmedTimeAt("the second option sounds good", kathmandu, testNow)
	assert.False(t, ok)
}

func TestConfirmedTimeAt_NothingResolves(t *testing.T) {
	_, ok := ConfirmedTimeAt("thanks for the update", kathmandu, testNow)
	assert.False(t, ok)
}

func TestFlexibleFallback(t *testing.T) {
	afternoon := time.Date(2025, time.August, 20, 14, 45, 0, 0, kathmandu)
	assert.True(t, flexibleFallback(afternoon, kathmandu).
		Equal(time.Date(2025, time.August, 20, 15, 0, 0, 0, kathmandu)))

	atCutoff := time.Date(2025, time.August, 20, 17, 0, 0, 0, kathmandu)
	assert.True(t, flexibleFallback(atCutoff, kathmandu).
		Equal(time.Date(2025, time.August, 21, 9, 0, 0, 0, kathmandu)))
}

// Suggested-time harvesting never produces duplicate instants and preserves
// first-occurrence order.
func TestProperty_SuggestedTimesUnique(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	hourGen := gen.IntRange(1, 11)
	minuteGen := gen.IntRange(0, 59)

	properties.Property("no_duplicate_instants", prop.ForAll(
		func(h1, m1, h2, m2 int) bool {
			body := "Options: " +
				time.Date(2025, time.August, 20, h1, m1, 0, 0, kathmandu).Format("3:04 PM") +
				" or " +
				time.Date(2025, time.August, 20, h2, m2, 0, 0, kathmandu).Format("3:04 PM")
			times := SuggestedTimesAt(body, kathmandu, testNow)
			seen := make(map[int64]bool)
			for _, tm := range times {
				if seen[tm.UnixNano()] {
					return false
				}
				seen[tm.UnixNano()] = true
			}
			return len(times) >= 1
		},
		hourGen, minuteGen, hourGen, minuteGen,
	))

	properties.TestingRun(t)
}
