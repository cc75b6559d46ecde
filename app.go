package main

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"yield-monitor-go/internal/config"
	"yield-monitor-go/internal/dispatch"
	"yield-monitor-go/internal/email"
	"yield-monitor-go/internal/handlers"
	"yield-monitor-go/internal/morpho"
	"yield-monitor-go/internal/notify"
	"yield-monitor-go/internal/rewards"
	"yield-monitor-go/internal/store"
	"yield-monitor-go/internal/yield"
)

// app holds the wired services shared by the subcommands.
type app struct {
	cfg   config.Config
	log   *zap.Logger
	store store.Store
	cache *store.RedisCache

	vapid  notify.VAPIDConfig
	yield  *yield.Calculator
	reward *rewards.Aggregator
	push   *notify.Service
	email  *email.Service
	runner *dispatch.Runner
}

func openStore(cfg config.Config, log *zap.Logger) (store.Store, error) {
	if !cfg.UsesDatabase() {
		log.Warn("DATABASE_URL not set, keeping subscriptions and history in memory")
		return store.NewMemoryStore(), nil
	}
	pg, err := store.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect to PostgreSQL")
	}
	return pg, nil
}

// openCache connects the vault cache. It returns nil when Redis is not
// configured or unreachable.
func openCache(ctx context.Context, cfg config.Config, log *zap.Logger) *store.RedisCache {
	if !cfg.UsesRedis() {
		return nil
	}
	c := store.NewRedisCache(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := c.Ping(ctx); err != nil {
		log.Warn("redis unavailable, vault cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		_ = c.Close()
		return nil
	}
	log.Info("vault cache enabled", zap.String("addr", cfg.RedisAddr))
	return c
}

func newApp(ctx context.Context, cfg config.Config, log *zap.Logger) (*app, error) {
	st, err := openStore(cfg, log)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, log: log, store: st, cache: openCache(ctx, cfg, log)}

	hc := &http.Client{Timeout: cfg.UpstreamTimeout}

	morphoCfg := morpho.Config{
		Endpoint:   cfg.MorphoGraphQLURL,
		HTTPClient: hc,
		CacheTTL:   cfg.VaultCacheTTL,
		Logger:     log,
	}
	if a.cache != nil {
		morphoCfg.Cache = a.cache
	}
	a.yield = yield.NewCalculator(morpho.NewClient(morphoCfg), st, log)

	a.reward = rewards.NewAggregator(
		rewards.NewMerklClient(cfg.MerklAPIURL, hc),
		rewards.NewMorphoClient(cfg.MorphoRewardsAPIURL, hc),
		log,
	)

	a.vapid = notify.VAPIDConfig{
		PublicKey:  cfg.VAPIDPublicKey,
		PrivateKey: cfg.VAPIDPrivateKey,
		Subject:    cfg.VAPIDSubject,
		TTL:        cfg.PushTTL,
	}
	if err := notify.EnsureVAPIDKeys(&a.vapid, log); err != nil {
		a.Close()
		return nil, err
	}
	a.push = notify.NewService(st, notify.NewPusher(a.vapid, hc), log)

	var mailer email.Mailer
	if m := email.NewResendMailer(cfg.ResendAPIKey); m != nil {
		mailer = m
	} else {
		log.Warn("RESEND_API_KEY not set, email notifications disabled")
	}
	a.email = email.NewService(mailer, email.Config{
		From:         cfg.EmailFrom,
		WelcomeFrom:  cfg.WelcomeFrom,
		DashboardURL: cfg.DashboardURL,
	}, log)

	a.runner = dispatch.NewRunner(st, a.yield, a.push, a.email, a.reward, dispatch.Config{
		BatchSize:  cfg.NotifyBatchSize,
		BatchDelay: cfg.NotifyBatchDelay,
	}, log)
	return a, nil
}

func (a *app) router() http.Handler {
	deps := handlers.Deps{
		Store:          a.store,
		Yield:          a.yield,
		Rewards:        a.reward,
		Push:           a.push,
		Email:          a.email,
		Daily:          a.runner,
		VAPIDPublicKey: a.vapid.PublicKey,
		ResendAPIKey:   a.cfg.ResendAPIKey,
		CronSecret:     a.cfg.CronSecret,
		AdminSecret:    a.cfg.AdminSecret,
		RetentionDays:  a.cfg.HistoryRetentionDays,
		Logger:         a.log,
	}
	if a.cache != nil {
		deps.Cache = a.cache
	}
	return handlers.NewRouter(handlers.NewHandler(deps), handlers.RouterConfig{
		RateLimit:      a.cfg.APIRateLimit,
		RateBurst:      a.cfg.APIRateBurst,
		TrustedProxies: a.cfg.TrustedProxies,
	})
}

func (a *app) Close() {
	if a.cache != nil {
		_ = a.cache.Close()
	}
	if err := a.store.Close(); err != nil {
		a.log.Warn("failed to close store", zap.Error(err))
	}
}
