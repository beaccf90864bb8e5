package cli

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "jsonlog",
		Short:        "JSON access log formats: serve, render and explain",
		SilenceUsage: true,
	}
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newRenderCmd())
	cmd.AddCommand(newExplainCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// Execute runs the jsonlog command line.
func Execute() error {
	return newRootCmd().Execute()
}
