// internal/mailbox/poller_mock_test.go
package mailbox_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/Enroleai/Uni-Automation/internal/mailbox"
	"github.com/Enroleai/Uni-Automation/internal/mocks"
)

// Drives the poller through the exact call sequence of a flaky server: a
// refused connection, a failed search, then a failed and a good fetch.
func TestAwaitRecoversFromFlakyMailbox(t *testing.T) {
	defer goleak.VerifyNone(t)

	mb := new(mocks.MockMailbox)
	mb.On("Connect", mock.Anything).Return(errors.New("connection reset")).Once()
	mb.On("Connect", mock.Anything).Return(nil).Once()
	mb.On("Search", mock.Anything, "state.edu", mock.AnythingOfType("time.Time")).Return(nil, errors.New("BAD command")).Once()
	mb.On("Search", mock.Anything, "state.edu", mock.AnythingOfType("time.Time")).Return([]uint32{4, 5}, nil).Once()
	mb.On("Fetch", mock.Anything, uint32(4)).Return(mailbox.Message{}, errors.New("fetch aborted")).Once()
	mb.On("Fetch", mock.Anything, uint32(5)).Return(mailbox.Message{
		ID:       5,
		Subject:  "Confirm your State University account",
		From:     "no-reply@mail.state.edu",
		TextBody: "Finish setup at https://apply.state.edu/account/confirm?token=xyz.",
	}, nil).Once()
	mb.On("Disconnect").Return(nil).Once()

	link, err := mailbox.NewPoller(mb, zaptest.NewLogger(t)).Await(context.Background(), mailbox.Request{
		SenderDomain:    "state.edu",
		SubjectKeywords: []string{"verify", "confirm"},
		Timeout:         5 * time.Second,
		PollInterval:    10 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, "https://apply.state.edu/account/confirm?token=xyz", link.URL)
	assert.Equal(t, uint32(5), link.MessageID)
	mb.AssertExpectations(t)
}

func TestAwaitSkipsDisconnectWhenNeverConnected(t *testing.T) {
	mb := new(mocks.MockMailbox)
	mb.On("Connect", mock.Anything).Return(errors.New("auth failed"))

	_, err := mailbox.NewPoller(mb, zaptest.NewLogger(t)).Await(context.Background(), mailbox.Request{
		SenderDomain: "state.edu",
		Timeout:      50 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
	})
	assert.ErrorIs(t, err, mailbox.ErrTimedOut)
	mb.AssertNotCalled(t, "Search", mock.Anything, mock.Anything, mock.Anything)
	mb.AssertNotCalled(t, "Disconnect")
}
