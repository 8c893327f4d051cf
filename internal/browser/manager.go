// internal/browser/manager.go
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/Enroleai/Uni-Automation/internal/config"
)

// ErrManagerClosed is returned by NewPage after Shutdown.
var ErrManagerClosed = errors.New("browser manager is shut down")

// Manager launches Chrome through chromedp. Every page gets its own browser
// process, so cookies and storage never leak between submissions.
type Manager struct {
	allocCtx    context.Context
	allocCancel context.CancelFunc
	cfg         config.BrowserConfig
	netCfg      config.NetworkConfig
	logger      *zap.Logger

	mu     sync.Mutex
	closed bool
}

var _ Launcher = (*Manager)(nil)

// NewManager prepares the exec allocator. No browser starts until NewPage.
func NewManager(ctx context.Context, cfg config.BrowserConfig, netCfg config.NetworkConfig, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, AllocatorOptions(cfg)...)
	return &Manager{
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		cfg:         cfg,
		netCfg:      netCfg,
		logger:      logger.Named("browser"),
	}, nil
}

// AllocatorOptions translates the browser config into chromedp flags.
func AllocatorOptions(cfg config.BrowserConfig) []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", cfg.Headless),
		chromedp.Flag("disable-gpu", cfg.DisableGPU),
		chromedp.Flag("no-sandbox", cfg.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(cfg.ViewportWidth, cfg.ViewportHeight),
	)
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}
	if cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(cfg.ExecPath))
	}
	for _, arg := range cfg.Args {
		name, value, hasValue := strings.Cut(strings.TrimLeft(arg, "-"), "=")
		if name == "" {
			continue
		}
		if hasValue {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}
	return opts
}

// NewPage starts a fresh browser and returns its first tab.
func (m *Manager) NewPage(ctx context.Context) (Page, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return nil, ErrManagerClosed
	}

	sugar := m.logger.Sugar()
	tabCtx, tabCancel := chromedp.NewContext(m.allocCtx,
		chromedp.WithLogf(sugar.Debugf),
		chromedp.WithErrorf(sugar.Debugf),
	)

	page := &chromePage{
		ctx:     tabCtx,
		cancel:  tabCancel,
		logger:  m.logger.With(zap.String("component", "page")),
		netCfg:  m.netCfg,
		tracker: newInflightTracker(m.logger),
	}
	chromedp.ListenTarget(tabCtx, page.tracker.handleEvent)

	startCtx, cancel := context.WithTimeout(ctx, m.netCfg.NavigationTimeout)
	defer cancel()
	if err := page.run(startCtx,
		network.Enable(),
		chromedp.EmulateViewport(int64(m.cfg.ViewportWidth), int64(m.cfg.ViewportHeight)),
	); err != nil {
		tabCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	return page, nil
}

// Shutdown stops the allocator, killing any browser still running.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.closed = true
	m.allocCancel()
}
