// internal/submission/machine.go
package submission

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/Enroleai/Uni-Automation/api/schemas"
	"github.com/Enroleai/Uni-Automation/internal/browser"
	"github.com/Enroleai/Uni-Automation/internal/config"
	"github.com/Enroleai/Uni-Automation/internal/form"
	"github.com/Enroleai/Uni-Automation/internal/mailbox"
	"github.com/Enroleai/Uni-Automation/internal/resolver"
)

// DefaultPassword is used for new accounts when the caller supplies none.
const DefaultPassword = "TempPassword123!"

// cleanupTimeout bounds the screenshot, persistence and page release that run
// after a failure or cancellation.
const cleanupTimeout = 15 * time.Second

// Store is the persistence the machine needs.
type Store interface {
	CreateSubmission(ctx context.Context, sub *schemas.Submission) error
	UpdateSubmission(ctx context.Context, sub *schemas.Submission) error
}

// Verifier waits for a verification link.
type Verifier interface {
	Await(ctx context.Context, req mailbox.Request) (mailbox.Link, error)
}

// Settings are the timing and artifact knobs of a run.
type Settings struct {
	ScreenshotDir       string
	NavigationTimeout   time.Duration
	ElementTimeout      time.Duration
	SemanticTimeout     time.Duration
	ControlTimeout      time.Duration
	LoginFieldTimeout   time.Duration
	VerificationTimeout time.Duration
	PollInterval        time.Duration
	Jitter              form.Jitter
}

// SettingsFromConfig derives run settings from the application config.
func SettingsFromConfig(cfg config.Interface) Settings {
	net := cfg.Network()
	auto := cfg.Automation()
	return Settings{
		ScreenshotDir:       auto.ScreenshotDir,
		NavigationTimeout:   net.NavigationTimeout,
		ElementTimeout:      net.ElementTimeout,
		SemanticTimeout:     net.LoginFieldTimeout,
		ControlTimeout:      net.LoginFieldTimeout,
		LoginFieldTimeout:   net.LoginFieldTimeout,
		VerificationTimeout: auto.VerificationTimeout,
		PollInterval:        auto.PollInterval,
		Jitter:              form.Jitter{Min: auto.MinJitter, Max: auto.MaxJitter},
	}
}

// Deps are the collaborators of the machine. Verifier may be nil, in which case
// verification is skipped with a warning.
type Deps struct {
	Launcher browser.Launcher
	Store    Store
	Verifier Verifier
	Logger   *zap.Logger
	Now      func() time.Time
}

// Machine drives one (record, target) pair through the submission workflow.
type Machine struct {
	launcher browser.Launcher
	store    Store
	verifier Verifier
	logger   *zap.Logger
	now      func() time.Time
	settings Settings
}

// NewMachine validates the dependencies and builds a machine.
func NewMachine(deps Deps, settings Settings) (*Machine, error) {
	if deps.Launcher == nil {
		return nil, errors.New("browser launcher is required")
	}
	if deps.Store == nil {
		return nil, errors.New("submission store is required")
	}
	if deps.Logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if settings.ControlTimeout <= 0 {
		settings.ControlTimeout = 2 * time.Second
	}
	if settings.LoginFieldTimeout <= 0 {
		settings.LoginFieldTimeout = 2 * time.Second
	}
	if settings.NavigationTimeout <= 0 {
		settings.NavigationTimeout = 30 * time.Second
	}
	return &Machine{
		launcher: deps.Launcher,
		store:    deps.Store,
		verifier: deps.Verifier,
		logger:   deps.Logger.Named("submission"),
		now:      deps.Now,
		settings: settings,
	}, nil
}

// Outcome is the result of one run. Err is a *StageError when the submission
// failed; Warnings carries non-fatal stage problems such as a verification
// timeout.
type Outcome struct {
	Submission        *schemas.Submission
	SignupReport      *schemas.FillReport
	ApplicationReport *schemas.FillReport
	Screenshot        string
	Warnings          []error
	Err               error
}

// Success reports whether the submission reached submitted.
func (o Outcome) Success() bool {
	return o.Err == nil && o.Submission != nil && o.Submission.Status == schemas.StatusSubmitted
}

// run is the per-submission working state.
type run struct {
	sub       *schemas.Submission
	record    schemas.Record
	target    schemas.Target
	password  string
	page      browser.Page
	populator *form.Populator
	logger    *zap.Logger
	outcome   *Outcome
	created   bool
}

type stage struct {
	status schemas.Status
	exec   func(ctx context.Context, r *run) error
	skip   bool
}

// Run executes the whole workflow for one pair. It never panics or returns an
// error; every failure is recorded on the submission and in the outcome.
func (m *Machine) Run(ctx context.Context, record schemas.Record, target schemas.Target, password string) Outcome {
	if password == "" {
		password = DefaultPassword
	}
	sub := schemas.NewSubmission(record.ID, target.Name, record.Email, password, m.now())
	out := &Outcome{Submission: sub}
	r := &run{
		sub:      sub,
		record:   record,
		target:   target,
		password: password,
		outcome:  out,
		logger: m.logger.With(
			zap.String("submission_id", sub.ID),
			zap.Int64("record_id", record.ID),
			zap.String("target", target.Name),
		),
	}

	if err := m.store.CreateSubmission(ctx, sub); err != nil {
		return m.fail(ctx, r, stageErr(sub.Status, CodeStoreFailure, err))
	}
	r.created = true
	r.logger.Info("Starting submission.")

	page, err := m.launcher.NewPage(ctx)
	if err != nil {
		return m.fail(ctx, r, stageErr(sub.Status, CodeNavigationFailure, fmt.Errorf("failed to open browser page: %w", err)))
	}
	r.page = page
	defer m.release(ctx, r)

	res := resolver.New(page, r.logger, resolver.WithTimeouts(m.settings.ElementTimeout, m.settings.SemanticTimeout))
	r.populator = form.NewPopulator(page, res, m.settings.Jitter, r.logger)

	stages := []stage{
		{status: schemas.StatusAccountCreation, exec: m.createAccount},
		{status: schemas.StatusEmailVerification, exec: m.verifyEmail, skip: !target.RequiresEmailVerification},
		{status: schemas.StatusLogin, exec: m.login},
		{status: schemas.StatusFormFill, exec: m.fillApplication},
		{status: schemas.StatusSubmission, exec: m.submit},
	}
	for _, st := range stages {
		if st.skip {
			continue
		}
		if err := ctx.Err(); err != nil {
			return m.fail(ctx, r, stageErr(st.status, CodeFromContext(st.status), err))
		}
		if err := sub.Advance(st.status, m.now()); err != nil {
			return m.fail(ctx, r, stageErr(sub.Status, CodeStoreFailure, err))
		}
		if err := m.persist(ctx, sub); err != nil {
			return m.fail(ctx, r, stageErr(st.status, CodeStoreFailure, err))
		}
		r.logger.Info("Entering stage.", zap.String("stage", string(st.status)))
		if err := st.exec(ctx, r); err != nil {
			return m.fail(ctx, r, err)
		}
	}

	r.logger.Info("Submission complete.",
		zap.Bool("email_verified", sub.EmailVerified),
		zap.String("confirmation_id", sub.ConfirmationID),
		zap.String("screenshot", out.Screenshot))
	return *out
}

// CodeFromContext maps a cancellation observed before a stage to the failure
// code of that stage.
func CodeFromContext(stage schemas.Status) ErrorCode {
	switch stage {
	case schemas.StatusLogin:
		return CodeLoginFailure
	case schemas.StatusSubmission:
		return CodeSubmissionFailure
	default:
		return CodeNavigationFailure
	}
}

func (m *Machine) persist(ctx context.Context, sub *schemas.Submission) error {
	if err := m.store.UpdateSubmission(ctx, sub); err != nil {
		return fmt.Errorf("failed to persist submission state: %w", err)
	}
	return nil
}

// fail records the error on the submission, captures a diagnostic screenshot
// when a page exists and persists the failed state.
func (m *Machine) fail(ctx context.Context, r *run, err error) Outcome {
	var se *StageError
	if !errors.As(err, &se) {
		se = stageErr(r.sub.Status, CodeSubmissionFailure, err)
	}
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	r.logger.Error("Submission failed.",
		zap.String("stage", string(se.Stage)),
		zap.String("code", string(se.Code)),
		zap.Error(se.Err))

	if r.page != nil {
		path := filepath.Join(m.settings.ScreenshotDir, screenshotName("error", r.record.ID, r.target.Name))
		if shot, shotErr := r.page.Screenshot(cleanupCtx, path); shotErr != nil {
			r.logger.Warn("Could not capture error screenshot.", zap.Error(shotErr))
		} else {
			r.outcome.Screenshot = shot
		}
	}

	if failErr := r.sub.Fail(se, m.now()); failErr != nil {
		r.logger.Error("Could not mark submission failed.", zap.Error(failErr))
	} else if r.created {
		if perr := m.persist(cleanupCtx, r.sub); perr != nil {
			r.logger.Error("Could not persist failed submission.", zap.Error(perr))
		}
	}

	r.outcome.Err = se
	return *r.outcome
}

func (m *Machine) release(ctx context.Context, r *run) {
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()
	if err := r.page.Close(closeCtx); err != nil {
		r.logger.Warn("Failed to release browser page.", zap.Error(err))
	}
}
