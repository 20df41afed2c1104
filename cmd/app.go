package cmd

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/chainboard/jobs-crawler/internal/api"
	"github.com/chainboard/jobs-crawler/internal/archive"
	"github.com/chainboard/jobs-crawler/internal/badge"
	"github.com/chainboard/jobs-crawler/internal/breaker"
	"github.com/chainboard/jobs-crawler/internal/clock/system"
	"github.com/chainboard/jobs-crawler/internal/config"
	"github.com/chainboard/jobs-crawler/internal/dedup"
	"github.com/chainboard/jobs-crawler/internal/fetch"
	"github.com/chainboard/jobs-crawler/internal/ingest"
	"github.com/chainboard/jobs-crawler/internal/logging"
	"github.com/chainboard/jobs-crawler/internal/metrics"
	"github.com/chainboard/jobs-crawler/internal/notify"
	"github.com/chainboard/jobs-crawler/internal/orchestrator"
	"github.com/chainboard/jobs-crawler/internal/proxy"
	"github.com/chainboard/jobs-crawler/internal/registry"
	"github.com/chainboard/jobs-crawler/internal/source"
	"github.com/chainboard/jobs-crawler/internal/store/memory"
	"github.com/chainboard/jobs-crawler/internal/store/postgres"
)

// app holds every wired service for the lifetime of one command.
type app struct {
	cfg          config.Config
	logger       *zap.Logger
	store        ingest.Store
	runs         *api.RunLog
	orchestrator *orchestrator.Orchestrator

	closers []func()
}

// buildApp assembles the full pipeline from configuration.
func buildApp(ctx context.Context, cfgPath string) (*app, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, err
	}

	metrics.Init()
	clock := system.New()
	a := &app{cfg: cfg, logger: logger, runs: api.NewRunLog()}

	store, err := a.buildStore(ctx)
	if err != nil {
		return nil, err
	}
	a.store = store

	fetcher, err := a.buildFetcher(ctx, clock)
	if err != nil {
		return nil, err
	}

	enricher := badge.NewEnricher(store, registry.Default(), clock, logger.Named("badge"))
	engine := dedup.NewEngine(store,
		dedup.WithPriorities(dedup.DefaultPriorities().Merge(cfg.Sources.Priorities)),
		dedup.WithClock(clock),
		dedup.WithLogger(logger.Named("dedup")),
		dedup.WithEnricher(enricher),
	)

	notifier, err := a.buildNotifier(ctx)
	if err != nil {
		return nil, err
	}

	a.orchestrator = orchestrator.New(
		a.buildAdapters(fetcher),
		engine,
		notifier,
		clock,
		logger.Named("orchestrator"),
		orchestrator.Config{
			Concurrency:    cfg.Crawl.Concurrency,
			SourceTimeout:  cfg.SourceTimeout(),
			SourceTimeouts: cfg.SourceTimeoutOverrides(),
			RunBudget:      cfg.RunBudget(),
		},
	)
	return a, nil
}

func (a *app) buildStore(ctx context.Context) (ingest.Store, error) {
	switch a.cfg.Storage.Driver {
	case "postgres":
		store, err := postgres.NewStore(ctx, postgres.Config{
			DSN:      a.cfg.Storage.DSN,
			MaxConns: int32(a.cfg.Storage.MaxOpenConns),
		})
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, store.Close)
		return store, nil
	default:
		a.logger.Warn("using in-memory store, data is lost on exit")
		return memory.NewStore(), nil
	}
}

func (a *app) buildFetcher(ctx context.Context, clock ingest.Clock) (*fetch.Client, error) {
	breakers := breaker.NewRegistry(breaker.Config{
		FailureThreshold: a.cfg.Breaker.FailureThreshold,
		SuccessThreshold: a.cfg.Breaker.SuccessThreshold,
		Cooldown:         time.Duration(a.cfg.Breaker.CooldownSeconds) * time.Second,
		OnStateChange: func(domain string, _, to breaker.State) {
			metrics.ObserveBreakerTransition(domain, to.String())
			a.logger.Info("circuit state changed",
				zap.String("domain", domain), zap.String("state", to.String()))
		},
	})

	var proxies *proxy.Manager
	if urls := proxy.ParsePool(a.cfg.Proxy.Pool); len(urls) > 0 {
		proxies = proxy.NewManager(urls,
			proxy.WithFailureThreshold(a.cfg.Proxy.FailureThreshold),
			proxy.WithCooldown(time.Duration(a.cfg.Proxy.CooldownSeconds)*time.Second),
		)
	}

	opts := []fetch.Option{fetch.WithCrawlLogger(a.store)}
	if a.cfg.Archive.Enabled {
		gcs, err := archive.NewGCS(ctx, a.cfg.Archive.GCSBucket)
		if err != nil {
			return nil, fmt.Errorf("init archive: %w", err)
		}
		a.closers = append(a.closers, func() { _ = gcs.Close() })
		opts = append(opts, fetch.WithArchive(gcs))
	}

	return fetch.NewClient(breakers, proxies, clock, a.logger.Named("fetch"), fetch.Config{
		Timeout:    time.Duration(a.cfg.Fetch.TimeoutSeconds) * time.Second,
		MaxRetries: a.cfg.Fetch.MaxRetries,
		RetryDelay: time.Duration(a.cfg.Fetch.RetryDelayMs) * time.Millisecond,
		MaxDelay:   time.Duration(a.cfg.Fetch.MaxDelayMs) * time.Millisecond,
	}, opts...), nil
}

func (a *app) buildAdapters(fetcher *fetch.Client) []ingest.SourceAdapter {
	var adapters []ingest.SourceAdapter
	sources := a.cfg.Sources

	if sources.Greenhouse.Enabled {
		boards := make([]source.GreenhouseBoard, 0, len(sources.Greenhouse.Boards))
		for _, b := range sources.Greenhouse.Boards {
			boards = append(boards, source.GreenhouseBoard{Token: b.Token, Company: b.Company})
		}
		adapters = append(adapters, source.NewGreenhouse(fetcher, source.GreenhouseConfig{
			Boards:       boards,
			FetchDetails: sources.Greenhouse.FetchDetails,
			RequestDelay: time.Duration(sources.Greenhouse.RequestDelayMs) * time.Millisecond,
		}, a.logger.Named("greenhouse")))
	}

	if sources.Lever.Enabled {
		orgs := make([]source.LeverOrg, 0, len(sources.Lever.Orgs))
		for _, o := range sources.Lever.Orgs {
			orgs = append(orgs, source.LeverOrg{Slug: o.Token, Company: o.Company})
		}
		adapters = append(adapters, source.NewLever(fetcher, source.LeverConfig{Orgs: orgs},
			a.logger.Named("lever")))
	}

	if sources.RSS.Enabled {
		adapters = append(adapters, source.NewRSS(fetcher, source.RSSConfig{
			FeedURLs: sources.RSS.Feeds,
		}, a.logger.Named("rss")))
	}

	for _, agg := range sources.Aggregator {
		adapters = append(adapters, source.NewAggregator(fetcher, source.AggregatorConfig{
			Name:         agg.Name,
			BaseURL:      agg.BaseURL,
			PageParam:    agg.PageParam,
			MaxPages:     agg.MaxPages,
			RequestDelay: time.Duration(agg.RequestDelayMs) * time.Millisecond,
		}, a.logger.Named(agg.Name)))
	}

	return adapters
}

func (a *app) buildNotifier(ctx context.Context) (ingest.Notifier, error) {
	cfg := a.cfg.Notify
	switch {
	case cfg.WebhookURL != "":
		return notify.NewWebhook(cfg.WebhookURL,
			time.Duration(cfg.WebhookTimeoutSeconds)*time.Second), nil
	case cfg.PubSubProjectID != "":
		ps, err := notify.NewPubSub(ctx, cfg.PubSubProjectID, cfg.PubSubTopic)
		if err != nil {
			return nil, fmt.Errorf("init pubsub notifier: %w", err)
		}
		a.closers = append(a.closers, func() { _ = ps.Close() })
		return ps, nil
	default:
		return notify.Noop{}, nil
	}
}

// runOnce executes one crawl run and records the summary.
func (a *app) runOnce(ctx context.Context) (ingest.RunSummary, error) {
	summary, err := a.orchestrator.Run(ctx)
	a.runs.Record(summary)
	return summary, err
}

// Close shuts down wired services in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.logger.Sync()
}
