// internal/browser/interface.go
package browser

import (
	"context"
	"errors"
	"time"
)

// ErrUnfillable is returned by Fill and SelectOption when the element exists but
// cannot take the value (not an input, read-only, disabled, or no matching
// option).
var ErrUnfillable = errors.New("element cannot be filled")

// Element is a handle to a control located on a page. Handles are only valid on
// the page that produced them and only until the next navigation.
type Element struct {
	// Selector addresses exactly this element.
	Selector string
	// Description is a human readable hint for logs, e.g. `label "First Name"`.
	Description string
}

// Page is the browser capability the automation core drives. Finder methods
// report a miss as (Element{}, false, nil); an error means the lookup itself
// could not run.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// WaitForIdle blocks until the DOM is ready and the network has been quiet
	// for a short period, or the timeout elapses.
	WaitForIdle(ctx context.Context, timeout time.Duration) error

	// Query finds the first visible element matching a CSS selector group.
	Query(ctx context.Context, selector string, timeout time.Duration) (Element, bool, error)
	// FindByRole finds a visible element with the given ARIA role whose
	// accessible name contains nameHint (case-insensitive).
	FindByRole(ctx context.Context, role, nameHint string, timeout time.Duration) (Element, bool, error)
	// FindByLabel finds the control associated with a label whose text contains
	// text (case-insensitive).
	FindByLabel(ctx context.Context, text string, timeout time.Duration) (Element, bool, error)
	// FindByPlaceholder finds a visible input whose placeholder contains text
	// (case-insensitive).
	FindByPlaceholder(ctx context.Context, text string, timeout time.Duration) (Element, bool, error)

	Fill(ctx context.Context, el Element, value string) error
	SelectOption(ctx context.Context, el Element, value string) error
	Click(ctx context.Context, el Element) error

	// ReadContent returns the rendered text of the current document.
	ReadContent(ctx context.Context) (string, error)
	// Screenshot writes a full-page PNG to path and returns the path written.
	Screenshot(ctx context.Context, path string) (string, error)

	// Close releases the page. It is safe to call more than once.
	Close(ctx context.Context) error
}

// Launcher creates isolated pages. Each submission owns exactly one page.
type Launcher interface {
	NewPage(ctx context.Context) (Page, error)
}
