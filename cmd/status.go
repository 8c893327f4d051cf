// File: cmd/status.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Enroleai/Uni-Automation/api/schemas"
	"github.com/Enroleai/Uni-Automation/internal/config"
	"github.com/Enroleai/Uni-Automation/internal/observability"
)

// statusView is the public status surface of a submission.
type statusView struct {
	ID             string         `json:"id"`
	RecordID       int64          `json:"record_id"`
	Target         string         `json:"target"`
	Status         schemas.Status `json:"status"`
	AccountCreated bool           `json:"account_created"`
	EmailVerified  bool           `json:"email_verified"`
	SubmissionDate *time.Time     `json:"submission_date"`
	ConfirmationID string         `json:"confirmation_id,omitempty"`
	LastError      string         `json:"last_error,omitempty"`
	RetryCount     int            `json:"retry_count"`
}

func newStatusView(s schemas.Submission) statusView {
	return statusView{
		ID:             s.ID,
		RecordID:       s.RecordID,
		Target:         s.Target,
		Status:         s.Status,
		AccountCreated: s.AccountCreated,
		EmailVerified:  s.EmailVerified,
		SubmissionDate: s.SubmissionDate,
		ConfirmationID: s.ConfirmationID,
		LastError:      s.LastError,
		RetryCount:     s.RetryCount,
	}
}

func newStatusCmd(provider storeProvider) *cobra.Command {
	var recordID int64

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show submission status, for one record or all",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			var filter *int64
			if cmd.Flags().Changed("record") {
				filter = &recordID
			}
			return runStatus(ctx, observability.GetLogger(), cfg, filter, provider, cmd.OutOrStdout())
		},
	}
	statusCmd.Flags().Int64Var(&recordID, "record", 0, "only show submissions of this record")
	return statusCmd
}

func runStatus(ctx context.Context, logger *zap.Logger, cfg config.Interface, recordID *int64, provider storeProvider, out io.Writer) error {
	repo, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	subs, err := repo.ListSubmissions(ctx, recordID)
	if err != nil {
		return fmt.Errorf("failed to list submissions: %w", err)
	}
	logger.Debug("Loaded submissions", zap.Int("count", len(subs)))

	views := make([]statusView, 0, len(subs))
	for _, s := range subs {
		views = append(views, newStatusView(s))
	}
	return writeJSON(out, views)
}
