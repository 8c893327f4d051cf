// File: cmd/submit.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	json "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Enroleai/Uni-Automation/api/schemas"
	"github.com/Enroleai/Uni-Automation/internal/config"
	"github.com/Enroleai/Uni-Automation/internal/observability"
	"github.com/Enroleai/Uni-Automation/internal/orchestrator"
	"github.com/Enroleai/Uni-Automation/internal/store"
	"github.com/Enroleai/Uni-Automation/internal/submission"
)

type submitOptions struct {
	recordsFile string
	recordIDs   []int64
	targets     []string
	password    string
	delay       time.Duration
	delaySet    bool
}

func newSubmitCmd(provider storeProvider, launchers launcherFactory) *cobra.Command {
	opts := &submitOptions{}

	submitCmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit records to target portals",
		Long: `Runs every selected record against every selected target, one pair at a
time: account creation, optional email verification, login, form fill and final
submission. Prints the batch result as JSON.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			opts.delaySet = cmd.Flags().Changed("delay")
			return runSubmit(ctx, observability.GetLogger(), cfg, opts, provider, launchers, cmd.OutOrStdout())
		},
	}

	submitCmd.Flags().StringVarP(&opts.recordsFile, "records", "r", "", "JSON file with an array of records")
	submitCmd.Flags().Int64SliceVar(&opts.recordIDs, "record-id", nil, "ID of a stored record to submit (repeatable)")
	submitCmd.Flags().StringSliceVarP(&opts.targets, "target", "t", nil, "target name to submit to (repeatable, default all)")
	submitCmd.Flags().StringVarP(&opts.password, "password", "p", "", "password for new accounts (default from config)")
	submitCmd.Flags().DurationVar(&opts.delay, "delay", 5*time.Second, "pause between submissions")
	submitCmd.MarkFlagsOneRequired("records", "record-id")
	submitCmd.MarkFlagsMutuallyExclusive("records", "record-id")

	return submitCmd
}

func runSubmit(
	ctx context.Context,
	logger *zap.Logger,
	cfg config.Interface,
	opts *submitOptions,
	provider storeProvider,
	launchers launcherFactory,
	out io.Writer,
) error {
	if opts.password != "" {
		cfg.SetAutomationDefaultPassword(opts.password)
	}
	if opts.delaySet {
		cfg.SetAutomationBatchDelay(opts.delay)
	}

	all, err := config.LoadTargets(cfg.Automation().TargetsDir)
	if err != nil {
		return err
	}
	targets, err := config.SelectTargets(all, opts.targets)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return fmt.Errorf("no target profiles found in %s", cfg.Automation().TargetsDir)
	}

	repo, cleanup, err := provider.Create(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	records, err := loadSubmitRecords(ctx, repo, opts)
	if err != nil {
		return err
	}

	launcher, shutdown, err := launchers(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if shutdown != nil {
		defer shutdown()
	}

	verifier, err := newVerifier(cfg, logger)
	if err != nil {
		return err
	}

	machine, err := submission.NewMachine(submission.Deps{
		Launcher: launcher,
		Store:    repo,
		Verifier: verifier,
		Logger:   logger,
	}, submission.SettingsFromConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to create submission machine: %w", err)
	}

	orch, err := orchestrator.New(machine, cfg.Automation().BatchDelay, logger)
	if err != nil {
		return fmt.Errorf("failed to create orchestrator: %w", err)
	}

	result := orch.Run(ctx, records, targets, cfg.Automation().DefaultPassword)
	if err := writeJSON(out, result); err != nil {
		return err
	}
	return ctx.Err()
}

// loadSubmitRecords reads records from a file, saving them so later status
// queries can refer to them, or looks them up by ID in the store.
func loadSubmitRecords(ctx context.Context, repo store.Repository, opts *submitOptions) ([]schemas.Record, error) {
	if opts.recordsFile != "" {
		records, err := config.LoadRecords(opts.recordsFile)
		if err != nil {
			return nil, err
		}
		if err := repo.SaveRecords(ctx, records); err != nil {
			return nil, fmt.Errorf("failed to save records: %w", err)
		}
		return records, nil
	}

	records := make([]schemas.Record, 0, len(opts.recordIDs))
	for _, id := range opts.recordIDs {
		rec, err := repo.GetRecord(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, fmt.Errorf("record %d is not in the store; import it first", id)
			}
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, nil
}

func writeJSON(out io.Writer, v interface{}) error {
	data, err := json.ConfigCompatibleWithStandardLibrary.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize output: %w", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
