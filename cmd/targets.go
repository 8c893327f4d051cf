// File: cmd/targets.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Enroleai/Uni-Automation/internal/config"
	"github.com/Enroleai/Uni-Automation/internal/observability"
)

func newTargetsCmd() *cobra.Command {
	targetsCmd := &cobra.Command{
		Use:   "targets",
		Short: "Manage target portal profiles",
	}

	templateCmd := &cobra.Command{
		Use:   "template NAME",
		Short: "Write a blank target profile to the targets directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			path, err := config.WriteTargetTemplate(cfg.Automation().TargetsDir, args[0])
			if err != nil {
				return err
			}
			observability.GetLogger().Info("Target template written", zap.String("path", path))
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Load and validate every target profile",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			targets, err := config.LoadTargets(cfg.Automation().TargetsDir)
			if err != nil {
				return err
			}
			for _, t := range targets {
				fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d signup fields, %d application fields, verification=%t)\n",
					t.Name, len(t.SignupFieldMapping), len(t.FieldMapping), t.RequiresEmailVerification)
			}
			if len(targets) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "no target profiles in %s\n", cfg.Automation().TargetsDir)
			}
			return nil
		},
	}

	targetsCmd.AddCommand(templateCmd, validateCmd)
	return targetsCmd
}
