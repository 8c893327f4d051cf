// internal/browser/context_utils.go
package browser

import "context"

// CombineContext returns a context that carries primary's values (for chromedp,
// the CDP target) and is canceled when either primary or secondary is done.
// secondary usually carries the operation deadline.
func CombineContext(primary, secondary context.Context) (context.Context, context.CancelFunc) {
	combined, cancel := context.WithCancelCause(primary)
	stop := context.AfterFunc(secondary, func() {
		cancel(context.Cause(secondary))
	})
	return combined, func() {
		stop()
		cancel(context.Canceled)
	}
}
