package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mohammad-safakhou/webscraper/internal/fetch"
	"github.com/mohammad-safakhou/webscraper/internal/tools"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"
)

func mcpCMD(cfgPath *string) *cobra.Command {
	var withFetch bool
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the scraping tools over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*cfgPath)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			var previewer tools.Previewer
			if withFetch {
				f := fetch.NewFetcher(a.cfg.Fetch)
				defer f.Close()
				previewer = f
			}
			t := tools.New(a.cfg.BrowserUse, a.extractor(), previewer, a.logger)
			server := tools.NewServer(t, version)
			a.logger.Info().Bool("web_fetch", withFetch).Msg("mcp server starting on stdio")
			return server.Run(ctx, &mcp.StdioTransport{})
		},
	}
	cmd.Flags().BoolVar(&withFetch, "fetch", false, "also expose the web_fetch preview tool (needs Chrome)")
	return cmd
}
