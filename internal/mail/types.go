package mail

// Email is the immutable per-message input to the workflow. The body is
// truncated plain text, suitable for prompting.
type Email struct {
	ID       string
	ThreadID string
	Subject  string
	From     string
	Body     string
}

// Title returns the meeting title derived from the email subject, falling
// back to a generic title for subjectless messages.
func (e *Email) Title() string {
	if e.Subject == "" || e.Subject == "No Subject" {
		return "Meeting"
	}
	return e.Subject
}
