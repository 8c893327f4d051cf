// internal/submission/stages.go
package submission

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Enroleai/Uni-Automation/api/schemas"
	"github.com/Enroleai/Uni-Automation/internal/form"
	"github.com/Enroleai/Uni-Automation/internal/mailbox"
)

// settleTimeout bounds the wait for the page to go quiet after a click.
const settleTimeout = 10 * time.Second

// open navigates to url and waits for the page to load. A load that never goes
// idle is only logged; the next lookup will fail if the page is unusable.
func (m *Machine) open(ctx context.Context, r *run, url string) error {
	if err := r.page.Navigate(ctx, url); err != nil {
		return err
	}
	if err := r.page.WaitForIdle(ctx, m.settings.NavigationTimeout); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.logger.Warn("Page did not settle after navigation.", zap.String("url", url), zap.Error(err))
	}
	return nil
}

func (m *Machine) settle(ctx context.Context, r *run) {
	if err := r.page.WaitForIdle(ctx, settleTimeout); err != nil && ctx.Err() == nil {
		r.logger.Debug("Page still busy after click.", zap.Error(err))
	}
}

func (m *Machine) createAccount(ctx context.Context, r *run) error {
	if err := m.open(ctx, r, r.target.SignupURL); err != nil {
		return stageErr(schemas.StatusAccountCreation, CodeNavigationFailure, err)
	}

	overrides := map[string]string{"email": r.sub.AccountEmail}
	for _, spec := range r.target.SignupFieldMapping {
		if strings.Contains(strings.ToLower(spec.Name), "password") {
			overrides[spec.Name] = r.password
		}
	}
	values := form.BuildValues(r.target.SignupFieldMapping, r.record.FieldValues(), overrides)
	report := r.populator.Fill(ctx, values)
	r.outcome.SignupReport = report
	r.logger.Info("Signup form populated.",
		zap.Int("filled", report.Count(schemas.FillFilled)),
		zap.Strings("missing", report.Missing()))

	control, err := m.findControl(ctx, r.page, signupControlLabels)
	if err != nil {
		return stageErr(schemas.StatusAccountCreation, CodeControlNotFound, err)
	}
	if err := r.page.Click(ctx, control); err != nil {
		return stageErr(schemas.StatusAccountCreation, CodeSubmissionFailure, fmt.Errorf("failed to click signup control: %w", err))
	}
	m.settle(ctx, r)

	r.sub.MarkAccountCreated(m.now())
	if err := m.persist(ctx, r.sub); err != nil {
		return stageErr(schemas.StatusAccountCreation, CodeStoreFailure, err)
	}
	r.logger.Info("Account created.", zap.String("email", r.sub.AccountEmail))
	return nil
}

// verifyEmail never fails the submission on its own. A missing link, a mailbox
// problem or a confirmation page without a success message are warnings.
func (m *Machine) verifyEmail(ctx context.Context, r *run) error {
	if m.verifier == nil {
		m.warn(r, stageErr(schemas.StatusEmailVerification, CodeVerificationTimeout, errors.New("no mailbox configured, skipping verification")))
		return nil
	}

	link, err := m.verifier.Await(ctx, mailbox.Request{
		SenderDomain:    r.target.EmailDomain,
		Recipient:       r.sub.AccountEmail,
		SubjectKeywords: verificationKeywords,
		Timeout:         m.settings.VerificationTimeout,
		PollInterval:    m.settings.PollInterval,
	})
	if err != nil {
		if ctx.Err() != nil {
			return stageErr(schemas.StatusEmailVerification, CodeVerificationTimeout, ctx.Err())
		}
		m.warn(r, stageErr(schemas.StatusEmailVerification, CodeVerificationTimeout, err))
		return nil
	}
	r.logger.Info("Verification link received.", zap.String("subject", link.Subject), zap.String("from", link.From))

	if err := m.open(ctx, r, link.URL); err != nil {
		if ctx.Err() != nil {
			return stageErr(schemas.StatusEmailVerification, CodeNavigationFailure, ctx.Err())
		}
		m.warn(r, stageErr(schemas.StatusEmailVerification, CodeNavigationFailure, err))
		return nil
	}
	content, err := r.page.ReadContent(ctx)
	if err != nil {
		m.warn(r, stageErr(schemas.StatusEmailVerification, CodeVerificationTimeout, fmt.Errorf("failed to read confirmation page: %w", err)))
		return nil
	}
	if !hasSuccessIndicator(content) {
		m.warn(r, stageErr(schemas.StatusEmailVerification, CodeVerificationTimeout, errors.New("confirmation page shows no success message")))
		return nil
	}

	if err := r.sub.MarkEmailVerified(m.now()); err != nil {
		m.warn(r, stageErr(schemas.StatusEmailVerification, CodeVerificationTimeout, err))
		return nil
	}
	if err := m.persist(ctx, r.sub); err != nil {
		return stageErr(schemas.StatusEmailVerification, CodeStoreFailure, err)
	}
	r.logger.Info("Email verified.")
	return nil
}

func (m *Machine) warn(r *run, err *StageError) {
	r.outcome.Warnings = append(r.outcome.Warnings, err)
	r.logger.Warn("Continuing after stage warning.",
		zap.String("stage", string(err.Stage)),
		zap.String("code", string(err.Code)),
		zap.Error(err.Err))
}

func (m *Machine) login(ctx context.Context, r *run) error {
	if err := m.open(ctx, r, r.target.LoginURL); err != nil {
		return stageErr(schemas.StatusLogin, CodeLoginFailure, err)
	}
	if _, err := m.fillFirst(ctx, r.page, identityLocators, r.sub.AccountEmail); err != nil {
		return stageErr(schemas.StatusLogin, CodeLoginFailure, fmt.Errorf("identity field: %w", err))
	}
	if _, err := m.fillFirst(ctx, r.page, passwordLocators, r.password); err != nil {
		return stageErr(schemas.StatusLogin, CodeLoginFailure, fmt.Errorf("password field: %w", err))
	}
	control, err := m.findControl(ctx, r.page, loginControlLabels)
	if err != nil {
		return stageErr(schemas.StatusLogin, CodeLoginFailure, err)
	}
	if err := r.page.Click(ctx, control); err != nil {
		return stageErr(schemas.StatusLogin, CodeLoginFailure, fmt.Errorf("failed to click login control: %w", err))
	}
	m.settle(ctx, r)
	r.logger.Info("Logged in.")
	return nil
}

func (m *Machine) fillApplication(ctx context.Context, r *run) error {
	if err := m.open(ctx, r, r.target.ApplicationURL); err != nil {
		return stageErr(schemas.StatusFormFill, CodeNavigationFailure, err)
	}
	values := form.BuildValues(r.target.FieldMapping, r.record.FieldValues(), nil)
	report := r.populator.Fill(ctx, values)
	r.outcome.ApplicationReport = report
	r.logger.Info("Application form populated.",
		zap.Int("filled", report.Count(schemas.FillFilled)),
		zap.Int("skipped", report.Count(schemas.FillSkipped)),
		zap.Int("unfillable", report.Count(schemas.FillUnfillable)),
		zap.Strings("missing", report.Missing()))
	if err := ctx.Err(); err != nil {
		return stageErr(schemas.StatusFormFill, CodeNavigationFailure, err)
	}
	return nil
}

func (m *Machine) submit(ctx context.Context, r *run) error {
	control, err := m.findControl(ctx, r.page, submitControlLabels)
	if err != nil {
		return stageErr(schemas.StatusSubmission, CodeControlNotFound, err)
	}
	if err := r.page.Click(ctx, control); err != nil {
		return stageErr(schemas.StatusSubmission, CodeSubmissionFailure, fmt.Errorf("failed to click submit control: %w", err))
	}
	m.settle(ctx, r)

	var confirmation string
	if content, err := r.page.ReadContent(ctx); err != nil {
		r.logger.Warn("Could not read confirmation page.", zap.Error(err))
	} else {
		confirmation = scrapeConfirmationID(content)
	}

	path := filepath.Join(m.settings.ScreenshotDir, screenshotName("submission", r.record.ID, r.target.Name))
	if shot, err := r.page.Screenshot(ctx, path); err != nil {
		r.logger.Warn("Could not capture submission screenshot.", zap.Error(err))
	} else {
		r.outcome.Screenshot = shot
	}

	if err := r.sub.MarkSubmitted(confirmation, m.now()); err != nil {
		return stageErr(schemas.StatusSubmission, CodeSubmissionFailure, err)
	}
	if err := m.persist(ctx, r.sub); err != nil {
		// The site accepted the application; only the bookkeeping is behind.
		r.logger.Error("Submitted but could not persist final state.", zap.Error(err))
		r.outcome.Warnings = append(r.outcome.Warnings, stageErr(schemas.StatusSubmitted, CodeStoreFailure, err))
	}
	return nil
}
