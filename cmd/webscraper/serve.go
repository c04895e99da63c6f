package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mohammad-safakhou/webscraper/internal/jobs"
	"github.com/mohammad-safakhou/webscraper/internal/queue/streams"
	srv "github.com/mohammad-safakhou/webscraper/internal/server"
	"github.com/spf13/cobra"
)

func serveCMD(cfgPath *string) *cobra.Command {
	var addr string
	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(*cfgPath)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			handler := &srv.ExtractionHandler{BrowserUse: a.cfg.BrowserUse, Runner: a.extractor()}
			if err := a.cfg.BrowserUse.Validate(); err != nil {
				a.logger.Warn().Err(err).Msg("synchronous extraction disabled until Browser Use is configured")
			}
			if a.cfg.Storage.Redis.Enabled() {
				rdb, err := a.redis(ctx)
				if err != nil {
					return err
				}
				defer func() { _ = rdb.Close() }()
				registry, err := streams.NewBaseRegistry()
				if err != nil {
					return err
				}
				store := jobs.NewStore(rdb, a.cfg.Storage.Redis.JobTTL)
				handler.Jobs = jobs.NewService(store, streams.NewPublisher(rdb, registry, streams.WithMaxLen(a.cfg.Worker.MaxLen)), a.cfg.Worker.Stream)
			} else {
				a.logger.Info().Msg("storage.redis not configured; async extraction endpoints disabled")
			}

			e := srv.New(srv.Deps{
				Logger:     a.logger,
				Gatherer:   a.registry,
				Extraction: handler,
				JWTSecret:  []byte(a.cfg.Server.JWTSecret),
			})
			if addr == "" {
				addr = a.cfg.Server.Address
			}
			return srv.Run(ctx, e, addr, a.logger)
		},
	}
	serve.Flags().StringVar(&addr, "addr", "", "listen address (default server.address)")
	return serve
}
