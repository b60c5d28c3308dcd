package main

import (
	"fmt"

	"github.com/aretw0/nova/internal/graph"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the step sequence as a Mermaid diagram",
	Long:  `Reads the manifest and outputs a Mermaid diagram (graph TD) of the steps in navigation order.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		modules, err := loadModules(cmd)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(modules, nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
