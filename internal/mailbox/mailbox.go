// internal/mailbox/mailbox.go
package mailbox

import (
	"context"
	"strings"
	"time"
)

// DefaultPort is the implicit-TLS IMAP port.
const DefaultPort = 993

// Message is a fetched email reduced to what verification needs.
type Message struct {
	ID       uint32
	Subject  string
	From     string
	To       []string
	Date     time.Time
	TextBody string
	HTMLBody string
}

// Mailbox is the mailbox capability the poller consumes.
type Mailbox interface {
	Connect(ctx context.Context) error
	// Search returns ids of messages whose sender contains fromDomain and that
	// arrived on or after since.
	Search(ctx context.Context, fromDomain string, since time.Time) ([]uint32, error)
	Fetch(ctx context.Context, id uint32) (Message, error)
	Disconnect() error
}

var knownServers = map[string]string{
	"gmail.com":   "imap.gmail.com",
	"outlook.com": "imap-mail.outlook.com",
	"hotmail.com": "imap-mail.outlook.com",
	"yahoo.com":   "imap.mail.yahoo.com",
	"icloud.com":  "imap.mail.me.com",
}

// DetectServer guesses the IMAP host for an address from its domain.
func DetectServer(address string) string {
	at := strings.LastIndex(address, "@")
	if at < 0 || at == len(address)-1 {
		return ""
	}
	domain := strings.ToLower(strings.TrimSpace(address[at+1:]))
	if host, ok := knownServers[domain]; ok {
		return host
	}
	return "imap." + domain
}
