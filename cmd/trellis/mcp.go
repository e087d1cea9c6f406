package main

import (
	"github.com/spf13/cobra"

	"github.com/ldi/trellis/internal/mcp"
)

func mcpCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the boards to agents over MCP on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			database, err := a.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer database.Close()
			a.autoSnapshot(database)

			return mcp.Serve(mcp.NewServer(database))
		},
	}
}
