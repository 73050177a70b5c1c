package main

import (
	"github.com/spf13/cobra"

	"github.com/dshills/vectorquery/internal/mcp"
	"github.com/dshills/vectorquery/pkg/types"
)

func newServeCmd(global *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the query tools over MCP stdio",
		Long: `Run an MCP server on stdin/stdout exposing the query and list_collections tools.
Logs go to stderr. Configuration is read once at startup; --project-root only
selects which project's config and .env files are loaded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd, global)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := mcp.NewServer(a.searcher, mcp.Defaults{
				NResult:         a.cfg.NResult,
				Include:         types.DefaultIncludeSet(),
				Multiplier:      a.cfg.QueryMultiplier,
				UseAbsolutePath: a.cfg.UseAbsolutePath,
				Reranker:        a.cfg.Reranker,
			}, a.logger)
			return srv.Serve(cmd.Context())
		},
	}
}
