package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/mohammad-safakhou/webscraper/internal/jobs"
	"github.com/mohammad-safakhou/webscraper/internal/queue/streams"
	srv "github.com/mohammad-safakhou/webscraper/internal/server"
	"github.com/spf13/cobra"
)

func workerCMD(cfgPath *string) *cobra.Command {
	var metricsAddr string
	worker := &cobra.Command{
		Use:   "worker",
		Short: "Consume queued extractions and run them against Browser Use",
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

			rdb, err := a.redis(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = rdb.Close() }()

			registry, err := streams.NewBaseRegistry()
			if err != nil {
				return err
			}
			consumerName := fmt.Sprintf("worker-%s", uuid.NewString()[:8])
			consumer := streams.NewConsumer(rdb, registry, a.cfg.Worker.Group, consumerName, a.logger)
			store := jobs.NewStore(rdb, a.cfg.Storage.Redis.JobTTL)
			processor := jobs.NewProcessor(a.logger, store, consumer, a.extractor(), jobs.ProcessorConfig{
				Stream:      a.cfg.Worker.Stream,
				Concurrency: a.cfg.Worker.Concurrency,
				Block:       a.cfg.Worker.Block,
			}, jobs.NewMetrics(a.registry))

			if metricsAddr != "" {
				e := srv.New(srv.Deps{Logger: a.logger, Gatherer: a.registry})
				go func() {
					if err := srv.Run(ctx, e, metricsAddr, a.logger); err != nil {
						a.logger.Error().Err(err).Msg("metrics server exited")
					}
				}()
			}
			return processor.Start(ctx)
		},
	}
	worker.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /healthz and /metrics on this address")
	return worker
}
