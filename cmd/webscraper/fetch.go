package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mohammad-safakhou/webscraper/internal/fetch"
	"github.com/spf13/cobra"
)

func fetchCMD(cfgPath *string) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "fetch <url>",
		Short: "Render a page in headless Chrome and print its main text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*cfgPath)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			f := fetch.NewFetcher(a.cfg.Fetch)
			defer f.Close()
			res, err := f.Exec(ctx, args[0], timeout)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "render timeout (default fetch.timeout)")
	return cmd
}
