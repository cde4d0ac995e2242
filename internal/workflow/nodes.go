package workflow

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/NksEBP/gc-agent/internal/compose"
	"github.com/NksEBP/gc-agent/internal/logging"
	"github.com/NksEBP/gc-agent/internal/mail"
	"github.com/NksEBP/gc-agent/internal/notify"
	"github.com/NksEBP/gc-agent/internal/schedule"
)

// Engine runs the single-model workflow: datetime detection, meeting
// confirmation, urgency triage and draft creation, in that order.
type Engine struct {
	mail     MailService
	composer *compose.Composer
	resolver *schedule.Resolver
	notifier *notify.Notifier
	log      *logging.EventLogger
	tz       *timezoneCache

	stages map[Stage]func(*Context)
}

// NewEngine wires the workflow over its collaborators. fallbackTZ is the IANA
// name used when the calendar does not expose one.
func NewEngine(mailSvc MailService, cal CalendarService, llm compose.Completer, notifier *notify.Notifier, log *logging.EventLogger, fallbackTZ string) *Engine {
	composer := compose.NewComposer(llm)
	e := &Engine{
		mail:     mailSvc,
		composer: composer,
		resolver: schedule.NewResolver(cal, composer),
		notifier: notifier,
		log:      log,
		tz:       &timezoneCache{cal: cal, fallback: fallbackTZ},
	}
	e.stages = map[Stage]func(*Context){
		StageDatetimeDetection:   e.datetimeDetection,
		StageMeetingConfirmation: e.meetingConfirmation,
		StageUrgencyAnalysis:     e.urgencyAnalysis,
		StageDraftCreation:       e.draftCreation,
	}
	return e
}

// Run processes a batch of emails. A failure in one email never stops the
// batch; panics are contained per email and logged at the run level.
func (e *Engine) Run(emails []mail.Email) {
	e.log.Main("start", slog.Int("count", len(emails)))
	for i := range emails {
		email := emails[i]
		e.log.Main("processing_email",
			slog.String("email_id", email.ID),
			slog.String("subject", email.Subject),
			slog.String("from", email.From))
		ctx := runContained(e.log, email.ID, func() *Context { return e.Process(email) })
		if ctx != nil {
			e.log.Main("final_action",
				slog.String("email_id", email.ID),
				slog.String("action", string(ctx.Action)))
		}
	}
	e.log.Main("done")
}

// Process carries a single email through the stage graph and returns the
// final context.
func (e *Engine) Process(email mail.Email) *Context {
	ctx := &Context{Email: email}
	for stage := StageDatetimeDetection; stage != StageEnd; stage = Next(stage, ctx) {
		e.stages[stage](ctx)
	}
	return ctx
}

// runContained executes one email's workflow, converting a panic into a
// run-level error event and a nil context.
func runContained(log *logging.EventLogger, emailID string, fn func() *Context) (ctx *Context) {
	defer func() {
		if r := recover(); r != nil {
			log.MainError("error",
				slog.String("email_id", emailID),
				slog.String("exception", fmt.Sprint(r)))
			ctx = nil
		}
	}()
	return fn()
}

// datetimeDetection looks for a concrete meeting time in the body and, when
// found, resolves it against the calendar and replies.
func (e *Engine) datetimeDetection(ctx *Context) {
	node := StageDatetimeDetection.String()
	email := &ctx.Email

	if mail.IsNoReply(email.From) {
		if err := e.mail.MarkProcessed(email.ID); err != nil {
			e.log.Error(node, &ctx.LogSeq, &ctx.Counters, "error", slog.String("exception", err.Error()))
			return
		}
		ctx.Action = ActionIgnoredNoReply
		return
	}

	e.tz.fill(ctx)
	detected, ok := schedule.Extract(email.Body, ctx.Location)
	if !ok {
		return
	}
	ctx.DetectedTime = &detected
	e.log.Event(node, &ctx.LogSeq, &ctx.Counters, "datetime_detected",
		slog.String("detected_time", detected.Format(time.RFC3339)),
		slog.String("from", email.From))

	reply, outcome, err := e.resolver.Resolve(schedule.Request{
		Start:    detected,
		Duration: schedule.DefaultDuration,
		Attendee: mail.ParseAddress(email.From),
		Title:    email.Title(),
		Email:    email,
		TimeZone: ctx.TimezoneName,
		Loc:      ctx.Location,
	})
	if err != nil {
		e.log.Error(node, &ctx.LogSeq, &ctx.Counters, "error", slog.String("exception", err.Error()))
		ctx.Action = ActionBookingFailed
		return
	}

	if err := e.mail.SendReply(email.ID, reply); err != nil {
		e.log.Error(node, &ctx.LogSeq, &ctx.Counters, "error", slog.String("exception", err.Error()))
		ctx.Action = ActionBookingFailed
		return
	}

	switch outcome {
	case schedule.OutcomeBooked:
		e.log.Event(node, &ctx.LogSeq, &ctx.Counters, logging.EventBooked,
			slog.String("start", detected.Format(time.RFC3339)),
			slog.String("attendee", mail.ParseAddress(email.From)))
		e.notifier.Post(fmt.Sprintf("Booked: %s on %s for %s.",
			email.Title(), compose.FormatWhen(detected), mail.ParseAddress(email.From)))
	case schedule.OutcomeSuggested:
		e.log.Event(node, &ctx.LogSeq, &ctx.Counters, logging.EventSuggested,
			slog.String("requested", detected.Format(time.RFC3339)))
	default:
		e.log.Error(node, &ctx.LogSeq, &ctx.Counters, "error",
			slog.String("exception", "calendar event creation failed"))
	}

	if err := e.mail.MarkProcessed(email.ID); err != nil {
		e.log.Error(node, &ctx.LogSeq, &ctx.Counters, "error", slog.String("exception", err.Error()))
		ctx.Action = ActionBookingFailed
		return
	}
	e.log.Event(node, &ctx.LogSeq, &ctx.Counters, logging.EventProcessed, slog.String("email_id", email.ID))

	ctx.CalendarReply = reply
	ctx.Action = ActionBookingCompleted
}

// meetingConfirmation handles replies that accept a previously suggested
// time, booking the chosen slot directly.
func (e *Engine) meetingConfirmation(ctx *Context) {
	node := StageMeetingConfirmation.String()
	email := &ctx.Email

	if mail.IsNoReply(email.From) {
		if err := e.mail.MarkProcessed(email.ID); err != nil {
			e.log.Warn(node, &ctx.LogSeq, &ctx.Counters, "error", slog.String("exception", err.Error()))
			return
		}
		ctx.Action = ActionIgnoredNoReply
		return
	}

	if !schedule.IsConfirmationReply(email.Body) {
		return
	}
	e.log.Event(node, &ctx.LogSeq, &ctx.Counters, "confirmation_detected",
		slog.String("from", email.From),
		slog.String("subject", email.Subject))

	e.tz.fill(ctx)
	confirmed, ok := schedule.ConfirmedTime(email.Body, ctx.Location)
	if !ok {
		return
	}

	created, bookErr := e.resolver.Book(schedule.Request{
		Start:    confirmed,
		Duration: schedule.DefaultDuration,
		Attendee: mail.ParseAddress(email.From),
		Title:    email.Title(),
		TimeZone: ctx.TimezoneName,
	})
	reply := compose.ConfirmedFallback
	if bookErr == nil {
		reply = compose.ConfirmedReply(confirmed, created.HTMLLink)
	}

	if err := e.mail.SendReply(email.ID, reply); err != nil {
		e.log.Error(node, &ctx.LogSeq, &ctx.Counters, "error", slog.String("exception", err.Error()))
		ctx.Action = ActionConfirmationFailed
		return
	}

	if bookErr == nil {
		e.log.Event(node, &ctx.LogSeq, &ctx.Counters, logging.EventBooked,
			slog.String("start", confirmed.Format(time.RFC3339)),
			slog.String("attendee", mail.ParseAddress(email.From)))
	} else {
		e.log.Error(node, &ctx.LogSeq, &ctx.Counters, "error", slog.String("exception", bookErr.Error()))
	}

	if err := e.mail.MarkProcessed(email.ID); err != nil {
		e.log.Error(node, &ctx.LogSeq, &ctx.Counters, "error", slog.String("exception", err.Error()))
		ctx.Action = ActionConfirmationFailed
		return
	}
	e.log.Event(node, &ctx.LogSeq, &ctx.Counters, logging.EventProcessed, slog.String("email_id", email.ID))

	ctx.MeetingConfirmed = true
	ctx.CalendarReply = reply
	ctx.Action = ActionMeetingConfirmed
	e.notifier.Post(fmt.Sprintf("Confirmed: %s on %s for %s.",
		email.Title(), compose.FormatWhen(confirmed), mail.ParseAddress(email.From)))
}

// urgencyAnalysis asks the model for an urgency verdict. Not-urgent mail is
// marked processed here; urgent mail falls through to drafting.
func (e *Engine) urgencyAnalysis(ctx *Context) {
	node := StageUrgencyAnalysis.String()
	email := &ctx.Email

	if mail.IsNoReply(email.From) {
		ctx.UrgencyResult = "not urgent"
		if err := e.mail.MarkProcessed(email.ID); err != nil {
			e.log.Warn(node, &ctx.LogSeq, &ctx.Counters, "error", slog.String("exception", err.Error()))
		}
		ctx.Action = ActionNotUrgentProcessed
		return
	}

	result, err := e.composer.ClassifyUrgency(email)
	if err != nil {
		// Leave the email unlabeled so the next run retries it.
		e.log.Error(node, &ctx.LogSeq, &ctx.Counters, "error", slog.String("exception", err.Error()))
		return
	}
	ctx.UrgencyResult = result

	if !strings.HasPrefix(result, "urgent") {
		if err := e.mail.MarkProcessed(email.ID); err != nil {
			e.log.Error(node, &ctx.LogSeq, &ctx.Counters, "error", slog.String("exception", err.Error()))
			return
		}
		e.log.Event(node, &ctx.LogSeq, &ctx.Counters, logging.EventProcessed,
			slog.String("email_id", email.ID),
			slog.String("urgency", result))
		ctx.Action = ActionNotUrgentProcessed
	}
}

// draftCreation writes a draft reply for urgent mail.
func (e *Engine) draftCreation(ctx *Context) {
	node := StageDraftCreation.String()
	email := &ctx.Email

	if !strings.HasPrefix(ctx.UrgencyResult, "urgent") {
		e.log.Event(node, &ctx.LogSeq, &ctx.Counters, "skipped", slog.String("reason", "not_urgent"))
		if err := e.mail.MarkProcessed(email.ID); err != nil {
			e.log.Warn(node, &ctx.LogSeq, &ctx.Counters, "error", slog.String("exception", err.Error()))
		}
		ctx.Action = ActionNotUrgentProcessed
		return
	}

	e.log.Event(node, &ctx.LogSeq, &ctx.Counters, "urgent_detected",
		slog.String("from", email.From),
		slog.String("subject", email.Subject))

	draft, err := e.composer.UrgentDraft(email)
	if err != nil {
		e.log.Error(node, &ctx.LogSeq, &ctx.Counters, "error", slog.String("exception", err.Error()))
		ctx.Action = ActionDraftFailed
		return
	}
	if err := e.mail.CreateDraft(email.ID, draft); err != nil {
		e.log.Error(node, &ctx.LogSeq, &ctx.Counters, "error", slog.String("exception", err.Error()))
		ctx.Action = ActionDraftFailed
		return
	}
	e.log.Event(node, &ctx.LogSeq, &ctx.Counters, logging.EventDrafted, slog.String("email_id", email.ID))

	if err := e.mail.MarkProcessed(email.ID); err != nil {
		e.log.Error(node, &ctx.LogSeq, &ctx.Counters, "error", slog.String("exception", err.Error()))
		ctx.Action = ActionDraftFailed
		return
	}
	e.log.Event(node, &ctx.LogSeq, &ctx.Counters, logging.EventProcessed, slog.String("email_id", email.ID))

	ctx.DraftContent = draft
	ctx.Action = ActionDraftCreated
	e.notifier.Post(fmt.Sprintf("Draft created for: %s from %s.", email.Subject, email.From))
}
