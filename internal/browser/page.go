// internal/browser/page.go
package browser

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/Enroleai/Uni-Automation/internal/config"
)

const findPollInterval = 100 * time.Millisecond

// chromePage implements Page on a single chromedp browser context.
type chromePage struct {
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *zap.Logger
	netCfg  config.NetworkConfig
	tracker *inflightTracker

	seq atomic.Uint64

	mu     sync.Mutex
	closed bool
}

var _ Page = (*chromePage)(nil)

// run executes chromedp actions bound to both the page lifetime and ctx.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := CombineContext(p.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

func (p *chromePage) evaluate(ctx context.Context, script string, res interface{}) error {
	return p.run(ctx, chromedp.Evaluate(script, res, func(ep *runtime.EvaluateParams) *runtime.EvaluateParams {
		return ep.WithReturnByValue(true).WithAwaitPromise(true)
	}))
}

func (p *chromePage) Navigate(ctx context.Context, url string) error {
	opCtx, cancel := context.WithTimeout(ctx, p.netCfg.NavigationTimeout)
	defer cancel()

	p.logger.Debug("Navigating.", zap.String("url", url))
	if err := p.run(opCtx, chromedp.Navigate(url)); err != nil {
		if opCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("navigation to %s timed out after %v: %w", url, p.netCfg.NavigationTimeout, opCtx.Err())
		}
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

func (p *chromePage) WaitForIdle(ctx context.Context, timeout time.Duration) error {
	opCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := p.run(opCtx, chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("document did not become ready: %w", err)
	}
	if err := p.tracker.wait(opCtx, p.netCfg.IdleQuietPeriod); err != nil {
		return fmt.Errorf("network did not become idle within %v: %w", timeout, err)
	}
	return nil
}

// find polls a locator script until it tags an element or the timeout passes.
func (p *chromePage) find(ctx context.Context, timeout time.Duration, desc string, script func(id string) string) (Element, bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		id := fmt.Sprintf("h%d", p.seq.Add(1))
		var raw json.RawMessage
		if err := p.evaluate(ctx, script(id), &raw); err != nil {
			return Element{}, false, fmt.Errorf("locating %s: %w", desc, err)
		}

		handle, found, err := decodeHandle(raw)
		if err != nil {
			return Element{}, false, fmt.Errorf("locating %s: %w", desc, err)
		}
		if found {
			return Element{Selector: handleSelector(handle), Description: desc}, true, nil
		}

		if time.Now().Add(findPollInterval).After(deadline) {
			return Element{}, false, nil
		}
		select {
		case <-ctx.Done():
			return Element{}, false, ctx.Err()
		case <-time.After(findPollInterval):
		}
	}
}

// decodeHandle interprets a locator script result: a handle id, null, or an
// {error} object.
func decodeHandle(raw json.RawMessage) (string, bool, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return "", false, nil
	}
	var handle string
	if err := json.Unmarshal(raw, &handle); err == nil {
		return handle, handle != "", nil
	}
	var failure struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &failure); err != nil {
		return "", false, fmt.Errorf("unexpected locator result %s", string(raw))
	}
	return "", false, errors.New(failure.Error)
}

func handleSelector(handle string) string {
	return fmt.Sprintf(`[%s=%s]`, handleAttr, jsonEncode(handle))
}

func (p *chromePage) Query(ctx context.Context, selector string, timeout time.Duration) (Element, bool, error) {
	return p.find(ctx, timeout, fmt.Sprintf("selector %q", selector), func(id string) string {
		return queryScript(selector, id)
	})
}

func (p *chromePage) FindByRole(ctx context.Context, role, nameHint string, timeout time.Duration) (Element, bool, error) {
	return p.find(ctx, timeout, fmt.Sprintf("%s %q", role, nameHint), func(id string) string {
		return roleScript(role, nameHint, id)
	})
}

func (p *chromePage) FindByLabel(ctx context.Context, text string, timeout time.Duration) (Element, bool, error) {
	return p.find(ctx, timeout, fmt.Sprintf("label %q", text), func(id string) string {
		return labelScript(text, id)
	})
}

func (p *chromePage) FindByPlaceholder(ctx context.Context, text string, timeout time.Duration) (Element, bool, error) {
	return p.find(ctx, timeout, fmt.Sprintf("placeholder %q", text), func(id string) string {
		return placeholderScript(text, id)
	})
}

// assign runs a fill or select script and maps its verdict to an error.
func (p *chromePage) assign(ctx context.Context, el Element, script string) error {
	opCtx, cancel := context.WithTimeout(ctx, p.netCfg.ElementTimeout)
	defer cancel()

	var verdict string
	if err := p.evaluate(opCtx, script, &verdict); err != nil {
		return fmt.Errorf("assigning value to %s: %w", el.Description, err)
	}
	switch verdict {
	case "ok":
		return nil
	case "missing":
		return fmt.Errorf("%s is no longer attached to the document", el.Description)
	default:
		return fmt.Errorf("%w: %s (%s)", ErrUnfillable, el.Description, verdict)
	}
}

func (p *chromePage) Fill(ctx context.Context, el Element, value string) error {
	return p.assign(ctx, el, fillScript(el.Selector, value))
}

func (p *chromePage) SelectOption(ctx context.Context, el Element, value string) error {
	return p.assign(ctx, el, selectScript(el.Selector, value))
}

func (p *chromePage) Click(ctx context.Context, el Element) error {
	opCtx, cancel := context.WithTimeout(ctx, p.netCfg.ElementTimeout)
	defer cancel()

	err := p.run(opCtx,
		chromedp.ScrollIntoView(el.Selector, chromedp.ByQuery),
		chromedp.WaitVisible(el.Selector, chromedp.ByQuery),
		chromedp.Click(el.Selector, chromedp.ByQuery, chromedp.NodeVisible),
	)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}

	// Overlays can swallow synthetic mouse events; fall back to a DOM click.
	p.logger.Debug("Mouse click failed, falling back to DOM click.", zap.String("element", el.Description), zap.Error(err))
	var clicked bool
	script := fmt.Sprintf(`(function(sel){ const el = document.querySelector(sel); if (!el) return false; el.click(); return true; })(%s)`, jsonEncode(el.Selector))
	if jsErr := p.evaluate(ctx, script, &clicked); jsErr != nil {
		return fmt.Errorf("clicking %s: %w", el.Description, errors.Join(err, jsErr))
	}
	if !clicked {
		return fmt.Errorf("clicking %s: element is no longer attached: %w", el.Description, err)
	}
	return nil
}

func (p *chromePage) ReadContent(ctx context.Context) (string, error) {
	opCtx, cancel := context.WithTimeout(ctx, p.netCfg.ElementTimeout)
	defer cancel()

	var text string
	if err := p.evaluate(opCtx, readContentScript, &text); err != nil {
		return "", fmt.Errorf("reading page content: %w", err)
	}
	return text, nil
}

func (p *chromePage) Screenshot(ctx context.Context, path string) (string, error) {
	opCtx, cancel := context.WithTimeout(ctx, p.netCfg.NavigationTimeout)
	defer cancel()

	var buf []byte
	// Quality 100 makes chromedp emit PNG.
	if err := p.run(opCtx, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return "", fmt.Errorf("capturing screenshot: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating screenshot directory: %w", err)
	}
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		return "", fmt.Errorf("writing screenshot: %w", err)
	}
	return path, nil
}

func (p *chromePage) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	// chromedp.Cancel closes the tab and the browser process it owns.
	err := chromedp.Cancel(p.ctx)
	p.cancel()
	if err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Debug("Browser did not shut down cleanly.", zap.Error(err))
		return fmt.Errorf("closing page: %w", err)
	}
	return nil
}
