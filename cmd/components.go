// File: cmd/components.go
package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Enroleai/Uni-Automation/internal/browser"
	"github.com/Enroleai/Uni-Automation/internal/config"
	"github.com/Enroleai/Uni-Automation/internal/mailbox"
	"github.com/Enroleai/Uni-Automation/internal/observability"
	"github.com/Enroleai/Uni-Automation/internal/store"
	"github.com/Enroleai/Uni-Automation/internal/submission"
)

// storeProvider creates the repository a command works against. Tests inject a
// mock repository through it.
type storeProvider interface {
	// Create returns the repository and a cleanup function releasing it.
	Create(ctx context.Context, cfg config.Interface) (store.Repository, func(), error)
}

type defaultStoreProvider struct{}

// NewStoreProvider returns the production provider: PostgreSQL when a database
// URL is configured, otherwise an in-memory store.
func NewStoreProvider() storeProvider {
	return &defaultStoreProvider{}
}

func (p *defaultStoreProvider) Create(ctx context.Context, cfg config.Interface) (store.Repository, func(), error) {
	logger := observability.GetLogger()
	if cfg.Database().URL == "" {
		logger.Warn("No database configured (UNIAUTO_DATABASE_URL); submissions are kept in memory only.")
		mem := store.NewMemoryStore()
		return mem, mem.Close, nil
	}

	db, err := store.Connect(ctx, cfg.Database().URL, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := db.EnsureSchema(ctx); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to prepare database schema: %w", err)
	}

	cleanup := func() {
		db.Close()
		logger.Debug("Database connection pool closed.")
	}
	return db, cleanup, nil
}

// launcherFactory creates the browser launcher for a batch.
type launcherFactory func(ctx context.Context, cfg config.Interface, logger *zap.Logger) (browser.Launcher, func(), error)

func newBrowserLauncher(ctx context.Context, cfg config.Interface, logger *zap.Logger) (browser.Launcher, func(), error) {
	manager, err := browser.NewManager(ctx, cfg.Browser(), cfg.Network(), logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize browser manager: %w", err)
	}
	return manager, manager.Shutdown, nil
}

// newVerifier builds the verification link poller, or returns nil when no
// mailbox is configured.
func newVerifier(cfg config.Interface, logger *zap.Logger) (submission.Verifier, error) {
	if cfg.Mailbox().Address == "" {
		logger.Warn("No mailbox configured; email verification will be skipped.")
		return nil, nil
	}
	mb, err := mailbox.NewIMAPMailbox(cfg.Mailbox(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize mailbox: %w", err)
	}
	return mailbox.NewPoller(mb, logger), nil
}
