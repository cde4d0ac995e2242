package schedule

import (
	"time"

	"github.com/NksEBP/gc-agent/internal/calendar"
	"github.com/NksEBP/gc-agent/internal/compose"
	"github.com/NksEBP/gc-agent/internal/mail"
)

// Outcome describes how availability resolution concluded.
type Outcome string

const (
	// OutcomeBooked means the slot was free and the event was created.
	OutcomeBooked Outcome = "booked"
	// OutcomeSuggested means the slot was busy; alternatives were proposed
	// or promised.
	OutcomeSuggested Outcome = "suggested"
	// OutcomeError means the slot was free but remote creation failed.
	OutcomeError Outcome = "error"
)

// Calendar is the slice of calendar capability the resolver consumes.
type Calendar interface {
	EventsBetween(start, end time.Time) ([]calendar.Event, error)
	Insert(slot calendar.Slot, timeZone string) (*calendar.CreatedEvent, error)
}

const (
	// DefaultDuration is the meeting length assumed for requests that do not
	// state one.
	DefaultDuration = 60 * time.Minute

	// DefaultSuggestions is how many alternative slots to propose after a
	// conflict.
	DefaultSuggestions = 3

	slotStep       = 15 * time.Minute
	conflictBuffer = 15 * time.Minute

	// maxSlotSteps bounds the slot search to one week of 15-minute steps.
	maxSlotSteps = 672
)

// Request carries one candidate booking through resolution.
type Request struct {
	Start    time.Time
	Duration time.Duration
	Attendee string
	Title    string

	// Email is the original message, used for generated replies. When nil,
	// replies fall back to templates.
	Email *mail.Email

	// TimeZone is the IANA name attached to the created event.
	TimeZone string

	// Loc anchors alternative-slot times for rendering.
	Loc *time.Location
}

// Resolver reconciles a candidate meeting time against the calendar's
// busy/free state and produces a deterministic decision: book it, suggest
// alternatives, or report a creation failure.
type Resolver struct {
	cal            Calendar
	composer       *compose.Composer
	numSuggestions int
}

// NewResolver creates a Resolver over a calendar and a reply composer.
func NewResolver(cal Calendar, composer *compose.Composer) *Resolver {
	return &Resolver{cal: cal, composer: composer, numSuggestions: DefaultSuggestions}
}

// Resolve checks the requested window and either books it or proposes
// alternatives.
//
// The returned error covers calendar queries and reply generation; a failed
// event insert is not an error but a (canned reply, OutcomeError) result, so
// the sender still hears back.
func (r *Resolver) Resolve(req Request) (string, Outcome, error) {
	if req.Duration <= 0 {
		req.Duration = DefaultDuration
	}

	events, err := r.cal.EventsBetween(req.Start, req.Start.Add(req.Duration))
	if err != nil {
		return "", OutcomeError, err
	}

	if len(events) > 0 {
		if req.Email == nil {
			return compose.BusyReply, OutcomeSuggested, nil
		}
		slots, err := r.FindNextAvailableSlots(req.Start, req.Duration, req.Loc)
		if err != nil {
			return "", OutcomeError, err
		}
		if len(slots) == 0 {
			return compose.NoSlotsReply, OutcomeSuggested, nil
		}
		reply, err := r.composer.AlternativeTimes(req.Email, req.Start, slots, req.Title)
		if err != nil {
			return "", OutcomeError, err
		}
		return reply, OutcomeSuggested, nil
	}

	created, err := r.cal.Insert(calendar.Slot{
		Start:    req.Start,
		Duration: req.Duration,
		Title:    req.Title,
		Attendee: req.Attendee,
	}, req.TimeZone)
	if err != nil {
		return compose.CreationTroubleReply, OutcomeError, nil
	}

	if req.Email == nil {
		return compose.BookedReply(req.Start, created.HTMLLink), OutcomeBooked, nil
	}
	reply, err := r.composer.BookingConfirmation(req.Email, created.HTMLLink, req.Start, req.Title)
	if err != nil {
		return "", OutcomeError, err
	}
	return reply, OutcomeBooked, nil
}

// Book inserts the slot without searching for alternatives, used when a
// confirmed time should be committed directly.
func (r *Resolver) Book(req Request) (*calendar.CreatedEvent, error) {
	if req.Duration <= 0 {
		req.Duration = DefaultDuration
	}
	return r.cal.Insert(calendar.Slot{
		Start:    req.Start,
		Duration: req.Duration,
		Title:    req.Title,
		Attendee: req.Attendee,
	}, req.TimeZone)
}

// FindNextAvailableSlots searches forward from the requested time for free
// windows of the given duration, stepping in 15-minute increments for at
// most a week. A conflicting window does not advance one step at a time:
// the search jumps past the conflicting event's end plus a buffer, which
// changes the candidate cadence but not which slots qualify.
func (r *Resolver) FindNextAvailableSlots(requested time.Time, duration time.Duration, loc *time.Location) ([]time.Time, error) {
	if loc == nil {
		loc = requested.Location()
	}

	var slots []time.Time
	current := requested
	for i := 0; i < maxSlotSteps; i++ {
		events, err := r.cal.EventsBetween(current, current.Add(duration))
		if err != nil {
			return nil, err
		}

		if len(events) == 0 {
			slots = append(slots, current)
			if len(slots) >= r.numSuggestions {
				break
			}
			current = current.Add(slotStep)
			continue
		}

		// Jump past the first conflicting event that carries a concrete end.
		// All-day entries have no end instant to jump from.
		for _, ev := range events {
			if !ev.End.IsZero() {
				current = ev.End.In(loc).Add(conflictBuffer)
				break
			}
		}
	}
	return slots, nil
}
