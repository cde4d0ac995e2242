package schedule

import (
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NksEBP/gc-agent/internal/calendar"
	"github.com/NksEBP/gc-agent/internal/compose"
	"github.com/NksEBP/gc-agent/internal/mail"
)

type window struct {
	start, end time.Time
}

// fakeCalendar serves busy windows from memory and records inserts.
type fakeCalendar struct {
	busy      []window
	insertErr error
	inserted  []calendar.Slot
}

func (f *fakeCalendar) EventsBetween(start, end time.Time) ([]calendar.Event, error) {
	var events []calendar.Event
	for _, w := range f.busy {
		if start.Before(w.end) && w.start.Before(end) {
			events = append(events, calendar.Event{
				ID:      "busy",
				Summary: "busy",
				Start:   w.start,
				End:     w.end,
			})
		}
	}
	return events, nil
}

func (f *fakeCalendar) Insert(slot calendar.Slot, timeZone string) (*calendar.CreatedEvent, error) {
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	f.inserted = append(f.inserted, slot)
	return &calendar.CreatedEvent{ID: "ev1", HTMLLink: "https://calendar.example/ev1"}, nil
}

type fakeCompleter struct {
	reply string
	err   error
}

func (f *fakeCompleter) Complete(system, user string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func newTestResolver(cal *fakeCalendar, reply string) *Resolver {
	return NewResolver(cal, compose.NewComposer(&fakeCompleter{reply: reply}))
}

var testEmail = &mail.Email{
	ID:      "m1",
	Subject: "Project sync",
	From:    "alice@example.com",
	Body:    "Can we meet tomorrow?",
}

func TestResolve_FreeSlotIsBooked(t *testing.T) {
	cal := &fakeCalendar{}
	r := newTestResolver(cal, "Looking forward to it.")
	start := time.Date(2025, time.August, 21, 16, 0, 0, 0, time.UTC)

	reply, outcome, err := r.Resolve(Request{
		Start:    start,
		Attendee: "alice@example.com",
		Title:    "Project sync",
		Email:    testEmail,
		TimeZone: "UTC",
		Loc:      time.UTC,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeBooked, outcome)
	assert.Equal(t, "Looking forward to it.", reply)

	require.Len(t, cal.inserted, 1)
	assert.True(t, cal.inserted[0].Start.Equal(start))
	assert.Equal(t, DefaultDuration, cal.inserted[0].Duration)
	assert.Equal(t, "alice@example.com", cal.inserted[0].Attendee)
}

func TestResolve_FreeSlotWithoutEmailUsesTemplate(t *testing.T) {
	cal := &fakeCalendar{}
	r := newTestResolver(cal, "unused")
	start := time.Date(2025, time.August, 21, 16, 0, 0, 0, time.UTC)

	reply, outcome, err := r.Resolve(Request{Start: start, Title: "Sync", TimeZone: "UTC"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeBooked, outcome)
	assert.Contains(t, reply, "https://calendar.example/ev1")
	assert.Contains(t, reply, compose.FormatWhen(start))
}

func TestResolve_ConflictSuggestsAlternatives(t *testing.T) {
	start := time.Date(2025, time.August, 21, 16, 0, 0, 0, time.UTC)
	cal := &fakeCalendar{busy: []window{{start, start.Add(time.Hour)}}}
	r := newTestResolver(cal, "How about one of these?")

	reply, outcome, err := r.Resolve(Request{
		Start:    start,
		Email:    testEmail,
		TimeZone: "UTC",
		Loc:      time.UTC,
	})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuggested, outcome)
	assert.Equal(t, "How about one of these?", reply)
	assert.Empty(t, cal.inserted)
}

func TestResolve_ConflictWithoutEmailUsesCannedReply(t *testing.T) {
	start := time.Date(2025, time.August, 21, 16, 0, 0, 0, time.UTC)
	cal := &fakeCalendar{busy: []window{{start, start.Add(time.Hour)}}}
	r := newTestResolver(cal, "unused")

	reply, outcome, err := r.Resolve(Request{Start: start, TimeZone: "UTC"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuggested, outcome)
	assert.Equal(t, compose.BusyReply, reply)
}

func TestResolve_InsertFailureIsReportedNotReturned(t *testing.T) {
	cal := &fakeCalendar{insertErr: errors.New("backend unavailable")}
	r := newTestResolver(cal, "unused")
	start := time.Date(2025, time.August, 21, 16, 0, 0, 0, time.UTC)

	reply, outcome, err := r.Resolve(Request{Start: start, Email: testEmail, TimeZone: "UTC"})
	require.NoError(t, err)
	assert.Equal(t, OutcomeError, outcome)
	assert.Equal(t, compose.CreationTroubleReply, reply)
}

func TestBook_InsertsDirectly(t *testing.T) {
	cal := &fakeCalendar{busy: []window{{time.Time{}, time.Now().AddDate(1, 0, 0)}}}
	r := newTestResolver(cal, "unused")
	start := time.Date(2025, time.August, 21, 16, 0, 0, 0, time.UTC)

	created, err := r.Book(Request{Start: start, Title: "Sync", TimeZone: "UTC"})
	require.NoError(t, err)
	assert.Equal(t, "ev1", created.ID)
	// Book ignores conflicts; the confirmed time is committed as-is.
	require.Len(t, cal.inserted, 1)
}

func TestFindNextAvailableSlots_ImmediatelyFree(t *testing.T) {
	start := time.Date(2025, time.August, 21, 16, 0, 0, 0, time.UTC)
	cal := &fakeCalendar{busy: []window{{start.Add(2 * time.Hour), start.Add(3 * time.Hour)}}}
	r := newTestResolver(cal, "unused")

	slots, err := r.FindNextAvailableSlots(start, time.Hour, time.UTC)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	assert.True(t, slots[0].Equal(start))
	assert.True(t, slots[1].Equal(start.Add(15*time.Minute)))
	assert.True(t, slots[2].Equal(start.Add(30*time.Minute)))
}

func TestFindNextAvailableSlots_JumpsPastConflict(t *testing.T) {
	start := time.Date(2025, time.August, 21, 16, 0, 0, 0, time.UTC)
	busyEnd := start.Add(time.Hour)
	cal := &fakeCalendar{busy: []window{{start, busyEnd}}}
	r := newTestResolver(cal, "unused")

	slots, err := r.FindNextAvailableSlots(start, time.Hour, time.UTC)
	require.NoError(t, err)
	require.Len(t, slots, 3)
	// The search jumps to the conflicting event's end plus a buffer.
	assert.True(t, slots[0].Equal(busyEnd.Add(15*time.Minute)), "got %v", slots[0])
}

// Slot search invariants: results are deterministic, strictly increasing and
// never overlap a busy window.
func TestProperty_SlotSearch(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 20
	properties := gopter.NewProperties(parameters)

	base := time.Date(2025, time.August, 21, 9, 0, 0, 0, time.UTC)

	// Busy window offset and length, in 15-minute units.
	offsetGen := gen.IntRange(0, 16)
	lengthGen := gen.IntRange(1, 8)

	search := func(offset, length int) ([]time.Time, window) {
		w := window{
			start: base.Add(time.Duration(offset) * 15 * time.Minute),
			end:   base.Add(time.Duration(offset+length) * 15 * time.Minute),
		}
		cal := &fakeCalendar{busy: []window{w}}
		r := newTestResolver(cal, "unused")
		slots, _ := r.FindNextAvailableSlots(base, time.Hour, time.UTC)
		return slots, w
	}

	properties.Property("slots_strictly_increasing", prop.ForAll(
		func(offset, length int) bool {
			slots, _ := search(offset, length)
			for i := 1; i < len(slots); i++ {
				if !slots[i].After(slots[i-1]) {
					return false
				}
			}
			return len(slots) <= DefaultSuggestions
		},
		offsetGen, lengthGen,
	))

	properties.Property("slots_never_overlap_busy_window", prop.ForAll(
		func(offset, length int) bool {
			slots, w := search(offset, length)
			for _, s := range slots {
				if s.Before(w.end) && w.start.Before(s.Add(time.Hour)) {
					return false
				}
			}
			return true
		},
		offsetGen, lengthGen,
	))

	properties.Property("search_deterministic", prop.ForAll(
		func(offset, length int) bool {
			a, _ := search(offset, length)
			b, _ := search(offset, length)
			if len(a) != len(b) {
				return false
			}
			for i := range a {
				if !a[i].Equal(b[i]) {
					return false
				}
			}
			return true
		},
		offsetGen, lengthGen,
	))

	properties.TestingRun(t)
}
