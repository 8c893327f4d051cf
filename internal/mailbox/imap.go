// internal/mailbox/imap.go
package mailbox

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"go.uber.org/zap"

	"github.com/Enroleai/Uni-Automation/internal/config"
)

const (
	dialTimeout    = 30 * time.Second
	commandTimeout = time.Minute
)

// ErrNotConnected is returned when Search or Fetch run before Connect.
var ErrNotConnected = errors.New("mailbox is not connected")

// IMAPMailbox implements Mailbox over an implicit-TLS IMAP session.
type IMAPMailbox struct {
	cfg    config.MailboxConfig
	addr   string
	logger *zap.Logger

	mu sync.Mutex
	c  *client.Client
}

var _ Mailbox = (*IMAPMailbox)(nil)

// NewIMAPMailbox builds an adapter. When no server is configured it is derived
// from the mailbox address.
func NewIMAPMailbox(cfg config.MailboxConfig, logger *zap.Logger) (*IMAPMailbox, error) {
	if cfg.Address == "" {
		return nil, errors.New("mailbox address is required")
	}
	server := cfg.Server
	if server == "" {
		server = DetectServer(cfg.Address)
	}
	if server == "" {
		return nil, fmt.Errorf("cannot determine IMAP server for %q", cfg.Address)
	}
	port := cfg.Port
	if port == 0 {
		port = DefaultPort
	}
	if cfg.Mailbox == "" {
		cfg.Mailbox = "INBOX"
	}
	return &IMAPMailbox{
		cfg:    cfg,
		addr:   net.JoinHostPort(server, strconv.Itoa(port)),
		logger: logger.Named("imap").With(zap.String("server", server)),
	}, nil
}

// withCancel aborts the session if ctx ends mid-command; go-imap v1 commands
// are not context aware.
func withCancel(ctx context.Context, c *client.Client) func() bool {
	return context.AfterFunc(ctx, func() {
		_ = c.Terminate()
	})
}

func (m *IMAPMailbox) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.c != nil {
		return nil
	}

	dialer := &net.Dialer{Timeout: dialTimeout}
	c, err := client.DialWithDialerTLS(dialer, m.addr, nil)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", m.addr, err)
	}
	c.Timeout = commandTimeout
	stop := withCancel(ctx, c)
	defer stop()

	if err := c.Login(m.cfg.Address, m.cfg.Password); err != nil {
		_ = c.Logout()
		return fmt.Errorf("failed to log in as %s: %w", m.cfg.Address, err)
	}
	if _, err := c.Select(m.cfg.Mailbox, true); err != nil {
		_ = c.Logout()
		return fmt.Errorf("failed to select %s: %w", m.cfg.Mailbox, err)
	}
	m.c = c
	m.logger.Debug("Connected to mailbox.", zap.String("mailbox", m.cfg.Mailbox))
	return nil
}

func (m *IMAPMailbox) client() (*client.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.c == nil {
		return nil, ErrNotConnected
	}
	return m.c, nil
}

func (m *IMAPMailbox) Search(ctx context.Context, fromDomain string, since time.Time) ([]uint32, error) {
	c, err := m.client()
	if err != nil {
		return nil, err
	}
	stop := withCancel(ctx, c)
	defer stop()

	// The mailbox may have received new mail since it was selected.
	if err := c.Noop(); err != nil {
		return nil, fmt.Errorf("mailbox refresh failed: %w", err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Header.Add("From", fromDomain)
	if !since.IsZero() {
		criteria.Since = since
	}
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("search from %s failed: %w", fromDomain, err)
	}
	return uids, nil
}

func (m *IMAPMailbox) Fetch(ctx context.Context, id uint32) (Message, error) {
	c, err := m.client()
	if err != nil {
		return Message{}, err
	}
	stop := withCancel(ctx, c)
	defer stop()

	seq := new(imap.SeqSet)
	seq.AddNum(id)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchInternalDate, section.FetchItem()}

	messages := make(chan *imap.Message, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seq, items, messages)
	}()

	var fetched *imap.Message
	for msg := range messages {
		if fetched == nil {
			fetched = msg
		}
	}
	if err := <-done; err != nil {
		return Message{}, fmt.Errorf("fetch of message %d failed: %w", id, err)
	}
	if fetched == nil {
		return Message{}, fmt.Errorf("message %d no longer exists", id)
	}

	body := fetched.GetBody(section)
	if body == nil {
		return Message{}, fmt.Errorf("message %d has no body", id)
	}
	msg, err := ParseMessage(body)
	if err != nil {
		return Message{}, fmt.Errorf("message %d: %w", id, err)
	}
	msg.ID = id

	if env := fetched.Envelope; env != nil {
		if msg.Subject == "" {
			msg.Subject = env.Subject
		}
		if msg.From == "" && len(env.From) > 0 {
			msg.From = env.From[0].Address()
		}
		if len(msg.To) == 0 {
			for _, list := range [][]*imap.Address{env.To, env.Cc} {
				for _, addr := range list {
					msg.To = append(msg.To, addr.Address())
				}
			}
		}
		if msg.Date.IsZero() {
			msg.Date = env.Date
		}
	}
	if msg.Date.IsZero() {
		msg.Date = fetched.InternalDate
	}
	return msg, nil
}

func (m *IMAPMailbox) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.c == nil {
		return nil
	}
	c := m.c
	m.c = nil
	if err := c.Logout(); err != nil && !errors.Is(err, client.ErrAlreadyLoggedOut) {
		return fmt.Errorf("logout failed: %w", err)
	}
	return nil
}
