package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mohammad-safakhou/webscraper/internal/browseruse"
	"github.com/spf13/cobra"
)

func extractCMD(cfgPath *string) *cobra.Command {
	var url, request string
	extract := &cobra.Command{
		Use:   "extract",
		Short: "Run one extraction and print the result as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*cfgPath)
			if err != nil {
				return err
			}
			if err := a.cfg.BrowserUse.Validate(); err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			out := a.extractor().Run(ctx, browseruse.ExtractionRequest{URL: url, Request: request})
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out.View()); err != nil {
				return err
			}
			if out.Failed() {
				return fmt.Errorf("extraction %s: %w", browseruse.OutcomeLabel(out.Err), out.Err)
			}
			return nil
		},
	}
	extract.Flags().StringVar(&url, "url", "", "page URL to open")
	extract.Flags().StringVar(&request, "request", "", "what to extract")
	_ = extract.MarkFlagRequired("url")
	_ = extract.MarkFlagRequired("request")
	return extract
}
