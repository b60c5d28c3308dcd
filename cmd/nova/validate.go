package main

import (
	"fmt"

	"github.com/aretw0/nova/pkg/domain"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check the module manifest for consistency",
	Long:  `Parses the manifest and reports duplicate node ids, missing titles or view kinds and empty modules.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		modules, err := loadModules(cmd)
		if err != nil {
			return fmt.Errorf("validation failed: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Manifest is valid: %d modules, %d steps\n", len(modules), len(domain.OrderSteps(modules)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
