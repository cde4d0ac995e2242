package notify

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"
)

// Notifier posts plain-text messages to a Slack-style webhook. It is
// fire-and-forget: failures are swallowed and a missing webhook disables it.
type Notifier struct {
	webhookURL string
	enabled    bool
	httpClient *http.Client
}

// New creates a Notifier. It stays inert unless enabled with a webhook URL.
func New(webhookURL string, enabled bool) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		enabled:    enabled && webhookURL != "",
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Post sends a message. Errors are deliberately discarded; notification is
// never allowed to affect email processing.
func (n *Notifier) Post(text string) {
	if !n.enabled {
		return
	}
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return
	}
	resp, err := n.httpClient.Post(n.webhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return
	}
	resp.Body.Close()
}
