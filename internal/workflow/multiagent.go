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

// MultiStage identifies a node in the multi-agent pipeline, which reorders
// the stages as calendar, confirmation, triage, draft and assigns each agent
// its own model.
type MultiStage int

const (
	MultiCalendar MultiStage = iota
	MultiConfirmation
	MultiTriage
	MultiDraft
	MultiEnd
)

// String returns the agent name used in log events.
func (s MultiStage) String() string {
	switch s {
	case MultiCalendar:
		return "calendar_agent"
	case MultiConfirmation:
		return "confirmation_agent"
	case MultiTriage:
		return "triage_agent"
	case MultiDraft:
		return "draft_agent"
	}
	return "end"
}

// multiTerminal maps each agent to the action tags that end the pipeline
// after it. A suggested or failed calendar pass still reaches the
// confirmation agent: the body may also confirm a previously offered slot.
var multiTerminal = map[MultiStage]map[ActionTag]bool{
	MultiCalendar: {
		ActionBookingCompleted:   true,
		ActionIgnoredNoReply:     true,
		ActionNotUrgentProcessed: true,
	},
	MultiConfirmation: {
		ActionMeetingConfirmed:   true,
		ActionIgnoredNoReply:     true,
		ActionNotUrgentProcessed: true,
	},
}

var multiSuccessor = map[MultiStage]MultiStage{
	MultiCalendar:     MultiConfirmation,
	MultiConfirmation: MultiTriage,
	MultiTriage:       MultiDraft,
	MultiDraft:        MultiEnd,
}

// NextMulti routes from a completed agent.
func NextMulti(stage MultiStage, ctx *Context) MultiStage {
	if multiTerminal[stage][ctx.Action] {
		return MultiEnd
	}
	if stage == MultiTriage && !strings.HasPrefix(ctx.UrgencyResult, "urgent") {
		return MultiEnd
	}
	return multiSuccessor[stage]
}

// MultiEngine runs the multi-agent pipeline. Scheduling, triage and drafting
// each use their own completer, and drafting is grounded in retrieved policy
// snippets when a PolicySource is configured.
type MultiEngine struct {
	mail     MailService
	resolver *schedule.Resolver
	calendar *compose.Composer
	triage   *compose.Composer
	drafting *compose.Composer
	policies PolicySource
	notifier *notify.Notifier
	log      *logging.EventLogger
	tz       *timezoneCache

	stages map[MultiStage]func(*Context)
}

// NewMultiEngine wires the multi-agent pipeline. policies may be nil, in
// which case drafts are written without policy context.
func NewMultiEngine(mailSvc MailService, cal CalendarService, calendarLLM, triageLLM, draftLLM compose.Completer, policies PolicySource, notifier *notify.Notifier, log *logging.EventLogger, fallbackTZ string) *MultiEngine {
	calendarComposer := compose.NewComposer(calendarLLM)
	e := &MultiEngine{
		mail:     mailSvc,
		resolver: schedule.NewResolver(cal, calendarComposer),
		calendar: calendarComposer,
		triage:   compose.NewComposer(triageLLM),
		drafting: compose.NewComposer(draftLLM),
		policies: policies,
		notifier: notifier,
		log:      log,
		tz:       &timezoneCache{cal: cal, fallback: fallbackTZ},
	}
	e.stages = map[MultiStage]func(*Context){
		MultiCalendar:     e.calendarAgent,
		MultiConfirmation: e.confirmationAgent,
		MultiTriage:       e.triageAgent,
		MultiDraft:        e.draftAgent,
	}
	return e
}

// Run processes a batch of emails with per-email failure containment.
func (e *MultiEngine) Run(emails []mail.Email) {
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

// Process carries a single email through the agent graph.
func (e *MultiEngine) Process(email mail.Email) *Context {
	ctx := &Context{Email: email}
	for stage := MultiCalendar; stage != MultiEnd; stage = NextMulti(stage, ctx) {
		e.stages[stage](ctx)
	}
	return ctx
}

// calendarAgent extracts a meeting time and resolves it against the
// calendar, tagging the outcome rather than folding everything into one
// completion tag.
func (e *MultiEngine) calendarAgent(ctx *Context) {
	node := MultiCalendar.String()
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
		ctx.Action = ActionCalendarError
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
		ctx.Action = ActionBookingCompleted
		e.notifier.Post(fmt.Sprintf("Booked: %s on %s for %s.",
			email.Title(), compose.FormatWhen(detected), mail.ParseAddress(email.From)))
	case schedule.OutcomeSuggested:
		e.log.Event(node, &ctx.LogSeq, &ctx.Counters, logging.EventSuggested,
			slog.String("requested", detected.Format(time.RFC3339)))
		ctx.Action = ActionCalendarSuggested
	default:
		e.log.Error(node, &ctx.LogSeq, &ctx.Counters, "error",
			slog.String("exception", "calendar event creation failed"))
		ctx.Action = ActionCalendarError
	}

	if err := e.mail.MarkProcessed(email.ID); err != nil {
		e.log.Error(node, &ctx.LogSeq, &ctx.Counters, "error", slog.String("exception", err.Error()))
		ctx.Action = ActionBookingFailed
		return
	}
	e.log.Event(node, &ctx.LogSeq, &ctx.Counters, logging.EventProcessed, slog.String("email_id", email.ID))
	ctx.CalendarReply = reply
}

// confirmationAgent books a confirmed slot, but unlike the single-model
// pipeline it re-checks availability first and only reports success when the
// slot was actually booked.
func (e *MultiEngine) confirmationAgent(ctx *Context) {
	node := MultiConfirmation.String()
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

	reply, outcome, err := e.resolver.Resolve(schedule.Request{
		Start:    confirmed,
		Duration: schedule.DefaultDuration,
		Attendee: mail.ParseAddress(email.From),
		Title:    email.Title(),
		Email:    email,
		TimeZone: ctx.TimezoneName,
		Loc:      ctx.Location,
	})
	if err != nil {
		e.log.Error(node, &ctx.LogSeq, &ctx.Counters, "error", slog.String("exception", err.Error()))
		ctx.Action = ActionConfirmationFailed
		return
	}

	if err := e.mail.SendReply(email.ID, reply); err != nil {
		e.log.Error(node, &ctx.LogSeq, &ctx.Counters, "error", slog.String("exception", err.Error()))
		ctx.Action = ActionConfirmationFailed
		return
	}

	if outcome == schedule.OutcomeBooked {
		e.log.Event(node, &ctx.LogSeq, &ctx.Counters, logging.EventBooked,
			slog.String("start", confirmed.Format(time.RFC3339)),
			slog.String("attendee", mail.ParseAddress(email.From)))
	} else {
		e.log.Error(node, &ctx.LogSeq, &ctx.Counters, "error",
			slog.String("exception", "confirmed slot could not be booked"),
			slog.String("outcome", string(outcome)))
	}

	if err := e.mail.MarkProcessed(email.ID); err != nil {
		e.log.Error(node, &ctx.LogSeq, &ctx.Counters, "error", slog.String("exception", err.Error()))
		ctx.Action = ActionConfirmationFailed
		return
	}
	e.log.Event(node, &ctx.LogSeq, &ctx.Counters, logging.EventProcessed, slog.String("email_id", email.ID))

	ctx.CalendarReply = reply
	if outcome == schedule.OutcomeBooked {
		ctx.MeetingConfirmed = true
		ctx.Action = ActionMeetingConfirmed
		e.notifier.Post(fmt.Sprintf("Confirmed: %s on %s for %s.",
			email.Title(), compose.FormatWhen(confirmed), mail.ParseAddress(email.From)))
	} else {
		ctx.Action = ActionConfirmationFailed
	}
}

// triageAgent classifies urgency with the triage model and normalizes any
// off-vocabulary verdict to "not urgent".
func (e *MultiEngine) triageAgent(ctx *Context) {
	node := MultiTriage.String()
	email := &ctx.Email

	if mail.IsNoReply(email.From) {
		ctx.UrgencyResult = "not urgent"
		if err := e.mail.MarkProcessed(email.ID); err != nil {
			e.log.Warn(node, &ctx.LogSeq, &ctx.Counters, "error", slog.String("exception", err.Error()))
		}
		ctx.Action = ActionNotUrgentProcessed
		return
	}

	result, err := e.triage.ClassifyUrgency(email)
	if err != nil {
		e.log.Error(node, &ctx.LogSeq, &ctx.Counters, "error", slog.String("exception", err.Error()))
		return
	}
	if result != "urgent" && result != "not urgent" {
		e.log.Warn(node, &ctx.LogSeq, &ctx.Counters, "off_vocabulary_verdict", slog.String("verdict", result))
		result = "not urgent"
	}
	ctx.UrgencyResult = result

	if result != "urgent" {
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

// draftAgent writes a policy-grounded draft for urgent mail.
func (e *MultiEngine) draftAgent(ctx *Context) {
	node := MultiDraft.String()
	email := &ctx.Email

	if ctx.UrgencyResult != "urgent" {
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

	var snippets []string
	if e.policies != nil {
		snippets = e.policies.Retrieve(email.Subject + "\n" + email.Body)
		if len(snippets) > 0 {
			e.log.Event(node, &ctx.LogSeq, &ctx.Counters, "policy_used", slog.Int("snippets", len(snippets)))
		}
	}

	draft, err := e.drafting.PolicyDraft(email, snippets)
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
