// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/Enroleai/Uni-Automation/api/schemas"
	"github.com/Enroleai/Uni-Automation/internal/browser"
	"github.com/Enroleai/Uni-Automation/internal/config"
	"github.com/Enroleai/Uni-Automation/internal/mailbox"
	"github.com/Enroleai/Uni-Automation/internal/store"
)

// -- Config Mock --

// MockConfig mocks the config.Interface.
type MockConfig struct {
	mock.Mock
}

var _ config.Interface = (*MockConfig)(nil)

// --- Getters ---

func (m *MockConfig) Logger() config.LoggerConfig {
	args := m.Called()
	return args.Get(0).(config.LoggerConfig)
}

func (m *MockConfig) Database() config.DatabaseConfig {
	args := m.Called()
	return args.Get(0).(config.DatabaseConfig)
}

func (m *MockConfig) Browser() config.BrowserConfig {
	args := m.Called()
	return args.Get(0).(config.BrowserConfig)
}

func (m *MockConfig) Network() config.NetworkConfig {
	args := m.Called()
	return args.Get(0).(config.NetworkConfig)
}

func (m *MockConfig) Mailbox() config.MailboxConfig {
	args := m.Called()
	return args.Get(0).(config.MailboxConfig)
}

func (m *MockConfig) Automation() config.AutomationConfig {
	args := m.Called()
	return args.Get(0).(config.AutomationConfig)
}

// --- Setters ---

func (m *MockConfig) SetAutomationBatchDelay(d time.Duration) {
	m.Called(d)
}

func (m *MockConfig) SetAutomationDefaultPassword(p string) {
	m.Called(p)
}

func (m *MockConfig) SetBrowserHeadless(b bool) {
	m.Called(b)
}

// -- Browser Mocks --

// MockPage mocks browser.Page.
type MockPage struct {
	mock.Mock
}

var _ browser.Page = (*MockPage)(nil)

func (m *MockPage) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockPage) WaitForIdle(ctx context.Context, timeout time.Duration) error {
	return m.Called(ctx, timeout).Error(0)
}

func (m *MockPage) Query(ctx context.Context, selector string, timeout time.Duration) (browser.Element, bool, error) {
	args := m.Called(ctx, selector, timeout)
	return args.Get(0).(browser.Element), args.Bool(1), args.Error(2)
}

func (m *MockPage) FindByRole(ctx context.Context, role, nameHint string, timeout time.Duration) (browser.Element, bool, error) {
	args := m.Called(ctx, role, nameHint, timeout)
	return args.Get(0).(browser.Element), args.Bool(1), args.Error(2)
}

func (m *MockPage) FindByLabel(ctx context.Context, text string, timeout time.Duration) (browser.Element, bool, error) {
	args := m.Called(ctx, text, timeout)
	return args.Get(0).(browser.Element), args.Bool(1), args.Error(2)
}

func (m *MockPage) FindByPlaceholder(ctx context.Context, text string, timeout time.Duration) (browser.Element, bool, error) {
	args := m.Called(ctx, text, timeout)
	return args.Get(0).(browser.Element), args.Bool(1), args.Error(2)
}

func (m *MockPage) Fill(ctx context.Context, el browser.Element, value string) error {
	return m.Called(ctx, el, value).Error(0)
}

func (m *MockPage) SelectOption(ctx context.Context, el browser.Element, value string) error {
	return m.Called(ctx, el, value).Error(0)
}

func (m *MockPage) Click(ctx context.Context, el browser.Element) error {
	return m.Called(ctx, el).Error(0)
}

func (m *MockPage) ReadContent(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockPage) Screenshot(ctx context.Context, path string) (string, error) {
	args := m.Called(ctx, path)
	return args.String(0), args.Error(1)
}

func (m *MockPage) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// MockLauncher mocks browser.Launcher.
type MockLauncher struct {
	mock.Mock
}

var _ browser.Launcher = (*MockLauncher)(nil)

func (m *MockLauncher) NewPage(ctx context.Context) (browser.Page, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(browser.Page), args.Error(1)
}

// -- Mailbox Mock --

// MockMailbox mocks mailbox.Mailbox.
type MockMailbox struct {
	mock.Mock
}

var _ mailbox.Mailbox = (*MockMailbox)(nil)

func (m *MockMailbox) Connect(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockMailbox) Search(ctx context.Context, fromDomain string, since time.Time) ([]uint32, error) {
	args := m.Called(ctx, fromDomain, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uint32), args.Error(1)
}

func (m *MockMailbox) Fetch(ctx context.Context, id uint32) (mailbox.Message, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(mailbox.Message), args.Error(1)
}

func (m *MockMailbox) Disconnect() error {
	return m.Called().Error(0)
}

// -- Store Mock --

// MockRepository mocks store.Repository.
type MockRepository struct {
	mock.Mock
}

var _ store.Repository = (*MockRepository)(nil)

func (m *MockRepository) CreateSubmission(ctx context.Context, sub *schemas.Submission) error {
	return m.Called(ctx, sub).Error(0)
}

func (m *MockRepository) UpdateSubmission(ctx context.Context, sub *schemas.Submission) error {
	return m.Called(ctx, sub).Error(0)
}

func (m *MockRepository) GetSubmission(ctx context.Context, id string) (*schemas.Submission, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.Submission), args.Error(1)
}

func (m *MockRepository) ListSubmissions(ctx context.Context, recordID *int64) ([]schemas.Submission, error) {
	args := m.Called(ctx, recordID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schemas.Submission), args.Error(1)
}

func (m *MockRepository) SaveRecords(ctx context.Context, records []schemas.Record) error {
	return m.Called(ctx, records).Error(0)
}

func (m *MockRepository) GetRecord(ctx context.Context, id int64) (*schemas.Record, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.Record), args.Error(1)
}

func (m *MockRepository) ListRecords(ctx context.Context) ([]schemas.Record, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]schemas.Record), args.Error(1)
}

func (m *MockRepository) Close() {
	m.Called()
}
