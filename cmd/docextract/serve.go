package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/dshills/docextract/internal/mcp"
)

func newServeCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Long: `Start the Model Context Protocol server. Requests arrive on stdin and
responses go to stdout; logs go to stderr.

Client configuration:
  {
    "mcpServers": {
      "docextract": {
        "command": "/path/to/docextract",
        "args": ["serve"]
      }
    }
  }`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if g.cfg.Storage.Disabled {
				return errors.New("serve requires storage; enable it in the configuration")
			}
			a, err := newApp(g.cfg, g.log)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()

			server, err := mcp.NewServer(mcp.Deps{
				Runner:    a.runner,
				Storage:   a.store,
				Limiter:   a.limiter,
				Extractor: a.extractor,
				Log:       g.log,
			})
			if err != nil {
				return err
			}
			return server.Serve(cmd.Context())
		},
	}
}
