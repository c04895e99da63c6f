package main

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/webscraper/config"
	"github.com/mohammad-safakhou/webscraper/internal/browseruse"
	"github.com/mohammad-safakhou/webscraper/internal/jobs"
	"github.com/mohammad-safakhou/webscraper/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// app holds what every command needs: config, logger and metrics registry.
type app struct {
	cfg      *config.Config
	logger   zerolog.Logger
	registry *prometheus.Registry
}

func loadApp(cfgPath string) (*app, error) {
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	logger := logging.New(cfg.Logging)
	for _, w := range cfg.Warnings {
		logger.Warn().Str("component", "config").Msg(w)
	}
	return &app{cfg: cfg, logger: logger, registry: reg}, nil
}

// extractor builds the Browser Use client and flow. It does not check the
// API key; callers decide whether a missing key is fatal.
func (a *app) extractor() *browseruse.Extractor {
	bu := a.cfg.BrowserUse
	client := browseruse.NewClient(bu.BaseURL, bu.APIKey,
		browseruse.WithMaxSteps(bu.MaxSteps),
		browseruse.WithRequestTimeout(bu.RequestTimeout),
	)
	poll := browseruse.PollConfig{Interval: bu.PollInterval, MaxAttempts: bu.MaxAttempts}
	return browseruse.NewExtractor(client, poll, a.logger, browseruse.NewMetrics(a.registry))
}

func (a *app) redis(ctx context.Context) (*redis.Client, error) {
	if !a.cfg.Storage.Redis.Enabled() {
		return nil, fmt.Errorf("storage.redis.host is not configured")
	}
	return jobs.Conn(ctx, a.cfg.Storage.Redis)
}
