package compose

import (
	"fmt"
	"strings"
	"time"

	"github.com/NksEBP/gc-agent/internal/mail"
)

// Completer is the text-completion capability: a system instruction plus a
// user prompt in, generated prose out.
type Completer interface {
	Complete(system, user string) (string, error)
}

// System instructions for the different authorial roles.
const (
	CoordinatorSystem    = "You are a calendar & meeting coordinator expert at scheduling and confirming meetings (body only)."
	AnalystSystem        = "You are a senior email analyst expert at triaging urgent matters."
	CommunicationsSystem = "You are an executive communications specialist who crafts executive-level communications (body only)"
)

// Canned replies used when no generation context is available or a remote
// step already failed.
const (
	NoSlotsReply         = "That time seems to be booked in my calendar. I couldn't find alternative slots in the next week, but I will get back to you with other options asap."
	BusyReply            = "That time seems to be booked in my calendar, but I will get back to you with confirmation asap."
	CreationTroubleReply = "That time is available, but I had trouble creating the calendar event. I'll get back to you with confirmation asap."
	ConfirmedFallback    = "Thank you for confirming. I'll send you a calendar invite shortly."
)

// FormatWhen renders a time the way replies spell it out.
func FormatWhen(t time.Time) string {
	return t.Format("January 2, 2006 at 3:04 PM")
}

// BookedReply is the templated booking confirmation used when no original
// email context is available for generation.
func BookedReply(start time.Time, link string) string {
	return fmt.Sprintf("Perfect! I've booked that time in my calendar. Meeting scheduled for %s. Calendar link: %s",
		FormatWhen(start), link)
}

// ConfirmedReply acknowledges a confirmed meeting with the invite link.
func ConfirmedReply(start time.Time, link string) string {
	return fmt.Sprintf("Thank you for confirming! I've scheduled our meeting for %s. Calendar invite sent. Link: %s",
		FormatWhen(start), link)
}

// Composer produces model-generated reply bodies from structured facts. The
// completion call is a black box; output is trimmed and returned verbatim,
// and generation failures propagate to the caller with no retry.
type Composer struct {
	llm Completer
}

// NewComposer creates a Composer over a text-completion capability.
func NewComposer(llm Completer) *Composer {
	return &Composer{llm: llm}
}

// BookingConfirmation writes a confirmation reply for a freshly booked
// meeting.
func (c *Composer) BookingConfirmation(email *mail.Email, link string, start time.Time, title string) (string, error) {
	prompt := fmt.Sprintf(`Write a professional calendar confirmation email based on this meeting request:

ORIGINAL EMAIL:
FROM: %s
SUBJECT: %s
CONTENT: %s

MEETING DETAILS:
Title: %s
Date & Time: %s
Calendar Link: %s

Guidelines:
- Confirm the meeting is scheduled
- Reference the original request context
- Include all meeting details
- Provide the calendar link
- Keep professional and friendly tone
- Keep under 4 sentences`,
		email.From, email.Subject, email.Body, title, FormatWhen(start), link)

	reply, err := c.llm.Complete(CoordinatorSystem, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

// AlternativeTimes writes a reply proposing alternative slots after a
// conflict.
func (c *Composer) AlternativeTimes(email *mail.Email, requested time.Time, slots []time.Time, title string) (string, error) {
	lines := make([]string, 0, len(slots))
	for _, slot := range slots {
		lines = append(lines, "- "+FormatWhen(slot))
	}

	prompt := fmt.Sprintf(`Write a professional email suggesting alternative meeting times:

ORIGINAL EMAIL:
FROM: %s
SUBJECT: %s
CONTENT: %s

SITUATION:
Requested time: %s is not available
Meeting title: %s

ALTERNATIVE TIME OPTIONS:
%s

Guidelines:
- Apologize that requested time is not available
- Reference the original request context
- Suggest the alternative times clearly
- Ask them to confirm preferred time
- Keep professional and helpful tone
- Keep under 5 sentences`,
		email.From, email.Subject, email.Body, FormatWhen(requested), title, strings.Join(lines, "\n"))

	reply, err := c.llm.Complete(CoordinatorSystem, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(reply), nil
}

// ClassifyUrgency asks for a near-literal "urgent" or "not urgent" verdict.
// The answer is trimmed and lowercased but otherwise returned as-is.
func (c *Composer) ClassifyUrgency(email *mail.Email) (string, error) {
	prompt := fmt.Sprintf(`Analyze this email for urgency:

FROM: %s
SUBJECT: %s
CONTENT:
%s

Respond with exactly one word: either 'urgent' or 'not urgent'.`,
		email.From, email.Subject, email.Body)

	result, err := c.llm.Complete(AnalystSystem, prompt)
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(result)), nil
}

// UrgentDraft writes a draft response for an urgent email.
func (c *Composer) UrgentDraft(email *mail.Email) (string, error) {
	prompt := fmt.Sprintf(`Write a professional draft response for this urgent email:

Original email content:
%s

Guidelines:
- Acknowledge receipt and show empathy
- Keep response under 3 sentences
- Offer immediate next steps if needed
- Maintain professional tone`,
		email.Body)

	draft, err := c.llm.Complete(CommunicationsSystem, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(draft), nil
}

// PolicyDraft writes a draft response constrained by retrieved policy
// snippets. An empty snippet list falls back to placeholder guidance.
func (c *Composer) PolicyDraft(email *mail.Email, policies []string) (string, error) {
	policyContext := "(No policy context retrieved; follow brevity, professional tone, no sensitive info.)"
	if len(policies) > 0 {
		policyContext = strings.Join(policies, "\n\n")
	}

	prompt := fmt.Sprintf(`Write a professional, policy-compliant draft response for this urgent email.

POLICY CONTEXT (follow strictly):
%s

ORIGINAL EMAIL CONTENT:
%s

Guidelines:
- Acknowledge receipt and show empathy
- Keep response under 3 sentences
- Offer immediate next steps if needed
- Maintain professional tone
- Do not include sensitive information or commitments you cannot verify
- If scheduling is referenced, propose clear next steps without overcommitting`,
		policyContext, email.Body)

	draft, err := c.llm.Complete(CommunicationsSystem, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(draft), nil
}
