// internal/mailbox/imap_test.go
package mailbox

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Enroleai/Uni-Automation/internal/config"
)

func TestNewIMAPMailbox(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("server detected from address", func(t *testing.T) {
		mb, err := NewIMAPMailbox(config.MailboxConfig{Address: "me@gmail.com"}, logger)
		require.NoError(t, err)
		assert.Equal(t, "imap.gmail.com:993", mb.addr)
		assert.Equal(t, "INBOX", mb.cfg.Mailbox)
	})

	t.Run("explicit server and port", func(t *testing.T) {
		mb, err := NewIMAPMailbox(config.MailboxConfig{Address: "me@u.edu", Server: "mail.u.edu", Port: 1993, Mailbox: "Admissions"}, logger)
		require.NoError(t, err)
		assert.Equal(t, "mail.u.edu:1993", mb.addr)
		assert.Equal(t, "Admissions", mb.cfg.Mailbox)
	})

	t.Run("address required", func(t *testing.T) {
		_, err := NewIMAPMailbox(config.MailboxConfig{}, logger)
		assert.Error(t, err)
	})
}

func TestIMAPMailboxRequiresConnect(t *testing.T) {
	mb, err := NewIMAPMailbox(config.MailboxConfig{Address: "me@u.edu"}, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = mb.Search(context.Background(), "u.edu", time.Now())
	assert.ErrorIs(t, err, ErrNotConnected)
	_, err = mb.Fetch(context.Background(), 1)
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.NoError(t, mb.Disconnect())
}
