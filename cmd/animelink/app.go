package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"animelink/internal/catalog"
	"animelink/internal/config"
	"animelink/internal/gateway"
	"animelink/internal/kvstore"
	"animelink/internal/logging"
	"animelink/internal/notifications"
	"animelink/internal/ratelimit"
	"animelink/internal/resolver"
	"animelink/internal/ttlcache"
)

type appOptions struct {
	// readOnlyCache loads persisted entries but never writes them back.
	readOnlyCache bool
}

// app is the wired resolver stack for one CLI invocation.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    kvstore.Store
	cache    *ttlcache.Cache
	queries  *ratelimit.Limiter
	episodes *ratelimit.Limiter
	notifier *notifications.Dispatcher
	catalog  *catalog.Client
	resolver *resolver.Resolver
}

func openApp(ctx context.Context, cfg *config.Config, opts appOptions) (*app, error) {
	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	store, err := kvstore.Open(ctx, kvstore.Options{Backend: cfg.Cache.Backend, Path: cfg.Cache.Path}, logger)
	if err != nil {
		return nil, fmt.Errorf("open cache store: %w", err)
	}
	if opts.readOnlyCache {
		store = readOnlyStore{Store: store}
	}

	cache := ttlcache.New(ttlcache.Options{
		Store:       store,
		Debounce:    cfg.Cache.Debounce(),
		Grace:       cfg.Cache.Grace(),
		StaleWindow: cfg.Cache.StaleWindow(),
		Logger:      logger,
	})
	if err := cache.Load(ctx); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, logger), "cache load failed", "cache_load_failed",
			logging.Error(err),
			logging.String("backend", cfg.Cache.Backend),
			logging.String(logging.FieldErrorHint, "run `animelink cache clear` if the store is corrupt"),
			logging.String(logging.FieldImpact, "starting with an empty cache"),
		)
	}

	notifier := notifications.NewDispatcher(notifications.NewSink(cfg, logger), logger)

	queries := ratelimit.New(budgetFor(cfg.RateLimit),
		ratelimit.WithClassifier(gateway.Classify),
		ratelimit.WithLogger(logger),
		ratelimit.WithName("catalog"),
	)
	episodes := ratelimit.New(budgetFor(cfg.EpisodeRateLimit),
		ratelimit.WithClassifier(gateway.Classify),
		ratelimit.WithLogger(logger),
		ratelimit.WithName("episodes"),
	)

	client := catalog.New(newGateway(cfg, queries, notifier, logger), cache,
		catalog.WithEpisodeRequester(newGateway(cfg, episodes, notifier, logger)),
		catalog.WithLogger(logger),
		catalog.WithBatchSize(cfg.Resolver.BatchSize),
	)

	res := resolver.New(client,
		resolver.WithLogger(logger),
		resolver.WithMatchThreshold(cfg.Resolver.VerificationThreshold),
		resolver.WithWorkers(cfg.Resolver.Workers),
		resolver.WithStepCeiling(cfg.Resolver.StepCeiling),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		cache:    cache,
		queries:  queries,
		episodes: episodes,
		notifier: notifier,
		catalog:  client,
		resolver: res,
	}, nil
}

func newGateway(cfg *config.Config, limiter *ratelimit.Limiter, sink notifications.Sink, logger *slog.Logger) *gateway.Gateway {
	return gateway.New(cfg.Catalog.Endpoint, limiter,
		gateway.WithTokenSource(gateway.StaticToken(cfg.Catalog.Token)),
		gateway.WithSink(sink),
		gateway.WithLogger(logger),
		gateway.WithUserAgent(cfg.Catalog.UserAgent),
		gateway.WithTimeout(cfg.CatalogTimeout()),
	)
}

func budgetFor(r config.RateLimit) ratelimit.Budget {
	return ratelimit.Budget{
		Reservoir:      r.Reservoir,
		Max:            r.Reservoir,
		RefillInterval: r.RefillInterval(),
		MaxConcurrent:  r.MaxConcurrent,
		MinSpacing:     r.MinSpacing(),
		MaxAttempts:    r.MaxAttempts,
	}
}

// Close flushes the cache, stops the limiters, and waits for pending
// notifications before releasing the store lock.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if err := a.cache.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("flush cache: %w", err))
	}
	a.queries.Close()
	a.episodes.Close()
	if err := a.notifier.Wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("wait for notifications: %w", err))
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close cache store: %w", err))
	}
	return errors.Join(errs...)
}

// readOnlyStore serves reads from the wrapped store and drops every
// mutation.
type readOnlyStore struct {
	kvstore.Store
}

func (readOnlyStore) Write(context.Context, string, string, []byte) error { return nil }

func (readOnlyStore) DeleteKeys(context.Context, string, []string) error { return nil }

func (readOnlyStore) Clear(context.Context, string) error { return nil }
