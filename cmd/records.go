// File: cmd/records.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Enroleai/Uni-Automation/internal/config"
	"github.com/Enroleai/Uni-Automation/internal/observability"
)

func newRecordsCmd(provider storeProvider) *cobra.Command {
	recordsCmd := &cobra.Command{
		Use:   "records",
		Short: "Manage applicant records",
	}

	importCmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Validate a JSON array of records and save it to the store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			records, err := config.LoadRecords(args[0])
			if err != nil {
				return err
			}

			repo, cleanup, err := provider.Create(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize store: %w", err)
			}
			if cleanup != nil {
				defer cleanup()
			}
			if err := repo.SaveRecords(ctx, records); err != nil {
				return fmt.Errorf("failed to save records: %w", err)
			}

			observability.GetLogger().Info("Records imported", zap.Int("count", len(records)), zap.String("file", args[0]))
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d records\n", len(records))
			return nil
		},
	}

	recordsCmd.AddCommand(importCmd)
	return recordsCmd
}
