package mail

import (
	netmail "net/mail"
	"strings"
)

// Local-part fragments that identify automated senders which must never
// receive a reply.
var noReplyPatterns = []string{
	"no-reply",
	"noreply",
	"no_reply",
	"do-not-reply",
	"donotreply",
	"do_not_reply",
}

// ParseAddress extracts the bare address from a From header such as
// "Jane Doe <jane@example.com>". Unparseable headers are returned trimmed.
func ParseAddress(header string) string {
	addr, err := netmail.ParseAddress(strings.TrimSpace(header))
	if err != nil {
		return strings.TrimSpace(header)
	}
	return addr.Address
}

// IsNoReply reports whether the sender appears to be a no-reply style
// address. The check is against the local part only, case-insensitive.
func IsNoReply(fromHeader string) bool {
	sender := ParseAddress(fromHeader)
	if sender == "" {
		return false
	}
	local := strings.ToLower(strings.SplitN(sender, "@", 2)[0])
	for _, p := range noReplyPatterns {
		if strings.Contains(local, p) {
			return true
		}
	}
	return false
}
