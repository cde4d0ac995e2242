package workflow

import (
	"time"

	"github.com/NksEBP/gc-agent/internal/calendar"
	"github.com/NksEBP/gc-agent/internal/logging"
	"github.com/NksEBP/gc-agent/internal/mail"
)

// ActionTag records the terminal or intermediate decision reached for an
// email. Once a stage sets a terminal tag, routing prevents any later stage
// from overriding it.
type ActionTag string

const (
	// ActionNone means no stage has decided anything yet.
	ActionNone ActionTag = ""
	// ActionIgnoredNoReply marks mail from an automated sender, suppressed.
	ActionIgnoredNoReply ActionTag = "ignored_no_reply"
	// ActionBookingCompleted marks a handled meeting request.
	ActionBookingCompleted ActionTag = "calendar_booking_completed"
	// ActionBookingFailed marks a meeting request whose reply or labeling
	// failed; later stages still run.
	ActionBookingFailed ActionTag = "calendar_booking_failed"
	// ActionCalendarSuggested marks a conflict answered with alternatives
	// (multi-agent pipeline).
	ActionCalendarSuggested ActionTag = "calendar_suggested"
	// ActionCalendarError marks a failed event creation that was still
	// answered (multi-agent pipeline).
	ActionCalendarError ActionTag = "calendar_error"
	// ActionMeetingConfirmed marks a confirmation reply that was booked.
	ActionMeetingConfirmed ActionTag = "meeting_confirmed"
	// ActionConfirmationFailed marks a confirmation whose follow-through
	// failed.
	ActionConfirmationFailed ActionTag = "meeting_confirmation_failed"
	// ActionNotUrgentProcessed marks mail triaged as not urgent.
	ActionNotUrgentProcessed ActionTag = "not_urgent_processed"
	// ActionDraftCreated marks an urgent email answered with a draft.
	ActionDraftCreated ActionTag = "draft_created"
	// ActionDraftFailed marks a failed draft creation.
	ActionDraftFailed ActionTag = "draft_creation_failed"
)

// Context carries one email through the workflow. It is created fresh per
// email, mutated single-threaded by the stages, and discarded when the
// workflow terminates. The resolved timezone is the only state shared across
// emails within a run, cached by the engine.
type Context struct {
	Email mail.Email

	// TimezoneName and Location hold the operator's resolved timezone.
	TimezoneName string
	Location     *time.Location

	// DetectedTime is the meeting time extracted from the body, if any.
	DetectedTime *time.Time

	MeetingConfirmed bool
	Action           ActionTag

	// UrgencyResult is the triage verdict, expected to start with "urgent"
	// or "not urgent".
	UrgencyResult string

	CalendarReply string
	DraftContent  string

	LogSeq   int
	Counters logging.Counters
}

// MailService is the slice of mail capability the workflow consumes.
type MailService interface {
	ListUnprocessed(maxResults int64) ([]mail.Email, error)
	MarkProcessed(emailID string) error
	SendReply(emailID, content string) error
	CreateDraft(emailID, content string) error
}

// CalendarService is the slice of calendar capability the workflow consumes.
type CalendarService interface {
	Timezone() (string, error)
	EventsBetween(start, end time.Time) ([]calendar.Event, error)
	Insert(slot calendar.Slot, timeZone string) (*calendar.CreatedEvent, error)
}

// PolicySource retrieves reply-policy snippets for a query. Empty results
// are fine; drafting proceeds without them.
type PolicySource interface {
	Retrieve(query string) []string
}

// timezoneCache resolves the operator timezone once per run and hands the
// same value to every Context.
type timezoneCache struct {
	cal      CalendarService
	fallback string

	name string
	loc  *time.Location
}

// fill populates the Context's timezone fields, resolving on first use.
// Resolution order: calendar settings, configured fallback, Asia/Kathmandu.
func (t *timezoneCache) fill(ctx *Context) {
	if ctx.TimezoneName != "" && ctx.Location != nil {
		return
	}
	if t.loc == nil {
		name, err := t.cal.Timezone()
		if err != nil || name == "" {
			name = t.fallback
		}
		loc, err := time.LoadLocation(name)
		if err != nil {
			name = "Asia/Kathmandu"
			if loc, err = time.LoadLocation(name); err != nil {
				loc = time.UTC
			}
		}
		t.name, t.loc = name, loc
	}
	ctx.TimezoneName, ctx.Location = t.name, t.loc
}
