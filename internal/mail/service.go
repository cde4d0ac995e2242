package mail

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	gomail "github.com/emersion/go-message/mail"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

const (
	user = "me"

	// ProcessedLabel marks messages already handled so a later run skips them.
	ProcessedLabel = "ai-processed"

	// maxBodyLength truncates bodies before they reach any prompt.
	maxBodyLength = 2000
)

var (
	// ErrMessageFetch indicates a message could not be retrieved
	ErrMessageFetch = errors.New("unable to fetch message")
	// ErrLabelNotFound indicates the processed label could not be resolved
	ErrLabelNotFound = errors.New("processed label not found")
)

// Service wraps the Gmail API for the operations the workflow needs: listing
// unprocessed mail, labeling, sending replies and creating drafts.
type Service struct {
	srv *gmail.Service

	// labelID caches the resolved id of ProcessedLabel for the run.
	labelID string
}

// NewService builds a Gmail-backed Service over an authorized HTTP client.
func NewService(ctx context.Context, client *http.Client) (*Service, error) {
	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return &Service{srv: srv}, nil
}

// ListUnprocessed retrieves unread inbox messages that have not been labeled
// as processed. maxResults <= 0 leaves the page size to the server.
func (s *Service) ListUnprocessed(maxResults int64) ([]Email, error) {
	call := s.srv.Users.Messages.List(user).
		LabelIds("INBOX", "UNREAD").
		Q("-label:" + ProcessedLabel)
	if maxResults > 0 {
		call = call.MaxResults(maxResults)
	}
	list, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("unable to list messages: %w", err)
	}

	emails := make([]Email, 0, len(list.Messages))
	for _, m := range list.Messages {
		msg, err := s.srv.Users.Messages.Get(user, m.Id).Format("full").Do()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMessageFetch, m.Id, err)
		}

		email := Email{
			ID:       m.Id,
			ThreadID: msg.ThreadId,
			Subject:  "No Subject",
		}
		if msg.Payload != nil {
			for _, h := range msg.Payload.Headers {
				switch h.Name {
				case "Subject":
					email.Subject = h.Value
				case "From":
					email.From = h.Value
				}
			}
			email.Body = truncateBody(plainTextBody(msg.Payload))
		}
		emails = append(emails, email)
	}
	return emails, nil
}

// truncateBody caps a body at maxBodyLength characters, cutting on a rune
// boundary so multibyte text stays valid UTF-8.
func truncateBody(body string) string {
	if len(body) <= maxBodyLength {
		return body
	}
	runes := []rune(body)
	if len(runes) <= maxBodyLength {
		return body
	}
	return string(runes[:maxBodyLength])
}

// plainTextBody walks the MIME tree for the first text/plain part.
func plainTextBody(payload *gmail.MessagePart) string {
	if payload.MimeType == "text/plain" && payload.Body != nil && payload.Body.Data != "" {
		data, err := base64.URLEncoding.DecodeString(payload.Body.Data)
		if err == nil {
			return string(data)
		}
	}
	for _, part := range payload.Parts {
		mt := strings.ToLower(part.MimeType)
		if strings.HasPrefix(mt, "text/") || strings.HasPrefix(mt, "multipart/") {
			if body := plainTextBody(part); body != "" {
				return body
			}
		}
	}
	return ""
}

// MarkProcessed applies the processed label to a message, creating the label
// on first use. The label is hidden from both the label and message lists.
func (s *Service) MarkProcessed(emailID string) error {
	if s.labelID == "" {
		// Creation fails harmlessly when the label already exists.
		_, _ = s.srv.Users.Labels.Create(user, &gmail.Label{
			Name:                  ProcessedLabel,
			LabelListVisibility:   "labelHide",
			MessageListVisibility: "hide",
		}).Do()

		labels, err := s.srv.Users.Labels.List(user).Do()
		if err != nil {
			return fmt.Errorf("unable to list labels: %w", err)
		}
		for _, l := range labels.Labels {
			if l.Name == ProcessedLabel {
				s.labelID = l.Id
				break
			}
		}
		if s.labelID == "" {
			return ErrLabelNotFound
		}
	}

	_, err := s.srv.Users.Messages.Modify(user, emailID, &gmail.ModifyMessageRequest{
		AddLabelIds: []string{s.labelID},
	}).Do()
	if err != nil {
		return fmt.Errorf("unable to label message %s: %w", emailID, err)
	}
	return nil
}

// replyTarget fetches the headers needed to address a reply.
func (s *Service) replyTarget(emailID string) (threadID, subject, from string, err error) {
	msg, err := s.srv.Users.Messages.Get(user, emailID).
		Format("metadata").
		MetadataHeaders("Subject", "From").
		Do()
	if err != nil {
		return "", "", "", fmt.Errorf("%w: %s: %v", ErrMessageFetch, emailID, err)
	}
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch h.Name {
			case "Subject":
				subject = h.Value
			case "From":
				from = h.Value
			}
		}
	}
	return msg.ThreadId, subject, from, nil
}

// encodeReply composes the raw reply MIME and returns it base64url-encoded
// the way the Gmail API expects.
func encodeReply(to, subject, content string) (string, error) {
	var buf bytes.Buffer
	var h gomail.Header
	h.SetAddressList("To", []*gomail.Address{{Address: to}})
	h.SetSubject("Re: " + subject)

	w, err := gomail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return "", fmt.Errorf("unable to compose reply: %w", err)
	}
	if _, err := io.WriteString(w, content); err != nil {
		w.Close()
		return "", fmt.Errorf("unable to compose reply: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("unable to compose reply: %w", err)
	}
	return base64.URLEncoding.EncodeToString(buf.Bytes()), nil
}

// SendReply sends a direct reply on the message's thread. Replies to no-reply
// style recipients are silently suppressed as a fail-safe.
func (s *Service) SendReply(emailID, content string) error {
	threadID, subject, from, err := s.replyTarget(emailID)
	if err != nil {
		return err
	}
	replyTo := ParseAddress(from)
	if IsNoReply(replyTo) {
		return nil
	}

	raw, err := encodeReply(replyTo, subject, content)
	if err != nil {
		return err
	}
	_, err = s.srv.Users.Messages.Send(user, &gmail.Message{
		Raw:      raw,
		ThreadId: threadID,
	}).Do()
	if err != nil {
		return fmt.Errorf("unable to send reply to %s: %w", emailID, err)
	}
	return nil
}

// CreateDraft creates a draft reply on the message's thread. Drafts are never
// auto-sent. Drafts addressed to no-reply recipients are suppressed.
func (s *Service) CreateDraft(emailID, content string) error {
	threadID, subject, from, err := s.replyTarget(emailID)
	if err != nil {
		return err
	}
	replyTo := ParseAddress(from)
	if IsNoReply(replyTo) {
		return nil
	}

	raw, err := encodeReply(replyTo, subject, content)
	if err != nil {
		return err
	}
	_, err = s.srv.Users.Drafts.Create(user, &gmail.Draft{
		Message: &gmail.Message{
			Raw:      raw,
			ThreadId: threadID,
		},
	}).Do()
	if err != nil {
		return fmt.Errorf("unable to create draft for %s: %w", emailID, err)
	}
	return nil
}
