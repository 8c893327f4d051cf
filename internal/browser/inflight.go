// internal/browser/inflight.go
package browser

import (
	"context"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"go.uber.org/zap"
)

// inflightTracker counts outstanding network requests for one page so
// WaitForIdle can detect a quiet network.
type inflightTracker struct {
	mu           sync.Mutex
	inflight     map[network.RequestID]struct{}
	lastActivity time.Time
	logger       *zap.Logger
	now          func() time.Time
}

func newInflightTracker(logger *zap.Logger) *inflightTracker {
	return &inflightTracker{
		inflight:     make(map[network.RequestID]struct{}),
		lastActivity: time.Now(),
		logger:       logger,
		now:          time.Now,
	}
}

// handleEvent is registered with chromedp.ListenTarget.
func (t *inflightTracker) handleEvent(ev interface{}) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		t.started(e.RequestID)
	case *network.EventLoadingFinished:
		t.finished(e.RequestID)
	case *network.EventLoadingFailed:
		t.finished(e.RequestID)
	}
}

func (t *inflightTracker) started(id network.RequestID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inflight[id] = struct{}{}
	t.lastActivity = t.now()
}

func (t *inflightTracker) finished(id network.RequestID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.inflight, id)
	t.lastActivity = t.now()
}

// idle reports whether nothing is in flight and nothing has changed for quiet.
func (t *inflightTracker) idle(quiet time.Duration) (bool, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := len(t.inflight)
	return n == 0 && t.now().Sub(t.lastActivity) >= quiet, n
}

// wait blocks until the network is idle for quiet or ctx ends.
func (t *inflightTracker) wait(ctx context.Context, quiet time.Duration) error {
	interval := quiet / 2
	if interval <= 0 {
		interval = 50 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if ok, n := t.idle(quiet); ok {
			return nil
		} else if n > 0 {
			t.logger.Debug("Waiting for network idle...", zap.Int("inflight_requests", n))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
