package schemas

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the stage a submission is in.
type Status string

const (
	StatusPending           Status = "pending"
	StatusAccountCreation   Status = "account_creation"
	StatusEmailVerification Status = "email_verification"
	StatusLogin             Status = "login"
	StatusFormFill          Status = "form_fill"
	StatusSubmission        Status = "submission"
	StatusSubmitted         Status = "submitted"
	StatusFailed            Status = "failed"
)

// stageOrder is the fixed forward order of the workflow. Failed is deliberately
// absent; it is reachable from every non-terminal status.
var stageOrder = map[Status]int{
	StatusPending:           0,
	StatusAccountCreation:   1,
	StatusEmailVerification: 2,
	StatusLogin:             3,
	StatusFormFill:          4,
	StatusSubmission:        5,
	StatusSubmitted:         6,
}

var (
	ErrInvalidTransition         = errors.New("invalid status transition")
	ErrVerificationBeforeAccount = errors.New("email cannot be verified before the account is created")
)

// IsTerminal reports whether no further transitions are allowed.
func (s Status) IsTerminal() bool {
	return s == StatusSubmitted || s == StatusFailed
}

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	_, ok := stageOrder[s]
	return ok || s == StatusFailed
}

// CanTransition reports whether a submission may move from one status to
// another. Forward moves go one stage at a time; only email verification may
// be skipped.
func CanTransition(from, to Status) bool {
	if from.IsTerminal() || !from.Valid() {
		return false
	}
	if to == StatusFailed {
		return true
	}
	fi, okFrom := stageOrder[from]
	ti, okTo := stageOrder[to]
	if !okFrom || !okTo {
		return false
	}
	return ti == fi+1 || (from == StatusAccountCreation && to == StatusLogin)
}

// Submission is one attempt to push a record through a target's workflow. It
// is never deleted; a retry creates a new Submission.
type Submission struct {
	ID              string     `json:"id"`
	RecordID        int64      `json:"record_id"`
	Target          string     `json:"target"`
	Status          Status     `json:"status"`
	AccountEmail    string     `json:"account_email,omitempty"`
	AccountPassword string     `json:"-"`
	AccountCreated  bool       `json:"account_created"`
	EmailVerified   bool       `json:"email_verified"`
	ConfirmationID  string     `json:"confirmation_id,omitempty"`
	LastError       string     `json:"last_error,omitempty"`
	RetryCount      int        `json:"retry_count"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	SubmissionDate  *time.Time `json:"submission_date,omitempty"`
}

// NewSubmission starts a pending submission for a (record, target) pair.
func NewSubmission(recordID int64, target, email, password string, now time.Time) *Submission {
	now = now.UTC()
	return &Submission{
		ID:              uuid.NewString(),
		RecordID:        recordID,
		Target:          target,
		Status:          StatusPending,
		AccountEmail:    email,
		AccountPassword: password,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Advance moves the submission to a later stage.
func (s *Submission) Advance(to Status, now time.Time) error {
	if to == StatusFailed || !CanTransition(s.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, to)
	}
	s.Status = to
	s.UpdatedAt = now.UTC()
	return nil
}

// MarkAccountCreated records a successful signup.
func (s *Submission) MarkAccountCreated(now time.Time) {
	s.AccountCreated = true
	s.UpdatedAt = now.UTC()
}

// MarkEmailVerified records a confirmed verification link.
func (s *Submission) MarkEmailVerified(now time.Time) error {
	if !s.AccountCreated {
		return ErrVerificationBeforeAccount
	}
	s.EmailVerified = true
	s.UpdatedAt = now.UTC()
	return nil
}

// MarkSubmitted completes the workflow.
func (s *Submission) MarkSubmitted(confirmationID string, now time.Time) error {
	if err := s.Advance(StatusSubmitted, now); err != nil {
		return err
	}
	at := now.UTC()
	s.SubmissionDate = &at
	s.ConfirmationID = confirmationID
	return nil
}

// Fail moves the submission to failed, recording the cause and counting the
// attempt.
func (s *Submission) Fail(cause error, now time.Time) error {
	if !CanTransition(s.Status, StatusFailed) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, StatusFailed)
	}
	s.Status = StatusFailed
	if cause != nil {
		s.LastError = cause.Error()
	} else {
		s.LastError = "unknown failure"
	}
	s.RetryCount++
	s.UpdatedAt = now.UTC()
	return nil
}
