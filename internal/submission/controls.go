// internal/submission/controls.go
package submission

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/Enroleai/Uni-Automation/internal/browser"
)

// genericSubmitSelector is the last resort when no labelled button matched.
const genericSubmitSelector = `button[type="submit"], input[type="submit"]`

var (
	signupControlLabels = []string{"Sign Up", "Create Account", "Register", "Submit"}
	loginControlLabels  = []string{"Login", "Sign In", "Log In", "Submit"}
	submitControlLabels = []string{"Submit", "Submit Application", "Send", "Apply"}
)

var (
	identityLocators = []string{
		"#email", "#username", `[name="email"]`, `[name="username"]`,
		`input[type="email"]`, `input[placeholder*="Email"]`,
	}
	passwordLocators = []string{"#password", `[name="password"]`, `input[type="password"]`}
)

var verificationKeywords = []string{"verify", "confirm", "activate"}

var successIndicators = []string{"verified", "confirmed", "activated", "success", "thank you"}

var confirmationIDPattern = regexp.MustCompile(`(?i)(application|confirmation|reference)\s*(?:id|number|#|no\.?)\s*[:#]?\s*([A-Z0-9-]{4,})`)

// findControl looks for a button by each label in turn, then for the generic
// submit control.
func (m *Machine) findControl(ctx context.Context, page browser.Page, labels []string) (browser.Element, error) {
	for _, label := range labels {
		el, found, err := page.FindByRole(ctx, "button", label, m.settings.ControlTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return browser.Element{}, ctx.Err()
			}
			m.logger.Debug("Button lookup failed.", zap.String("label", label), zap.Error(err))
			continue
		}
		if found {
			return el, nil
		}
	}
	el, found, err := page.Query(ctx, genericSubmitSelector, m.settings.ControlTimeout)
	if err != nil {
		if ctx.Err() != nil {
			return browser.Element{}, ctx.Err()
		}
		m.logger.Debug("Generic submit lookup failed.", zap.Error(err))
	}
	if found {
		return el, nil
	}
	return browser.Element{}, fmt.Errorf("%w (tried %s and %s)", ErrControlNotFound, strings.Join(labels, ", "), genericSubmitSelector)
}

// fillFirst types value into the first locator that resolves and accepts it.
func (m *Machine) fillFirst(ctx context.Context, page browser.Page, locators []string, value string) (string, error) {
	for _, sel := range locators {
		el, found, err := page.Query(ctx, sel, m.settings.LoginFieldTimeout)
		if err != nil || !found {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}
		if err := page.Fill(ctx, el, value); err != nil {
			m.logger.Debug("Credential field rejected input.", zap.String("selector", sel), zap.Error(err))
			continue
		}
		return sel, nil
	}
	return "", fmt.Errorf("none of %s could be filled", strings.Join(locators, ", "))
}

// hasSuccessIndicator reports whether page text confirms a verification.
func hasSuccessIndicator(content string) bool {
	content = strings.ToLower(content)
	for _, s := range successIndicators {
		if strings.Contains(content, s) {
			return true
		}
	}
	return false
}

// scrapeConfirmationID finds an application or confirmation number in page text.
func scrapeConfirmationID(content string) string {
	m := confirmationIDPattern.FindStringSubmatch(content)
	if m == nil {
		return ""
	}
	return m[2]
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// screenshotName builds the artifact file name for a record and target.
func screenshotName(prefix string, recordID int64, target string) string {
	safe := strings.Trim(unsafeFileChars.ReplaceAllString(target, "_"), "_")
	if safe == "" {
		safe = "target"
	}
	return fmt.Sprintf("%s_%d_%s.png", prefix, recordID, safe)
}
