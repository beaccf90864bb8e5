package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/r9s-ai/jsonlog/internal/server"
)

type serveOptions struct {
	cfgPath string
}

func newServeCmd() *cobra.Command {
	opts := serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP front that writes JSON access logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			return server.Run(strings.TrimSpace(opts.cfgPath))
		},
	}
	fs := cmd.Flags()
	fs.StringVarP(&opts.cfgPath, "config", "c", "", "config yaml path (defaults plus JSONLOG_* env when empty)")
	return cmd
}
