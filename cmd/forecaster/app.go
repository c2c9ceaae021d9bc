package main

import (
	"context"
	"fmt"

	"PriceForecaster/internal/artifact"
	"PriceForecaster/internal/cache"
	"PriceForecaster/internal/collector"
	"PriceForecaster/internal/config"
	"PriceForecaster/internal/features"
	"PriceForecaster/internal/logger"
	"PriceForecaster/internal/metrics"
	"PriceForecaster/internal/model"
	"PriceForecaster/internal/notifier"
	"PriceForecaster/internal/pipeline"
	"PriceForecaster/internal/recorder"
	"PriceForecaster/internal/regressor"

	"github.com/rs/zerolog"
)

// app holds the wired components shared by every subcommand.
type app struct {
	cfg       *config.Config
	log       zerolog.Logger
	metrics   *metrics.Recorder
	cache     cache.Service
	store     artifact.Store
	recorder  recorder.Recorder
	collector *collector.Collector
	engineer  features.Engineer
	model     *regressor.MLP
	notifier  notifier.Notifier
	telegram  *notifier.TelegramNotifier

	train *pipeline.Trainer
}

func newApp(ctx context.Context, opts *rootOptions) (*app, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.symbol != "" {
		cfg.DataSource.Symbol = opts.symbol
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	a := &app{cfg: cfg, log: log}
	if cfg.Metrics.Enabled {
		a.metrics = metrics.New()
	}

	a.cache = newCache(ctx, cfg.Cache, log)

	fetcher, err := newFetcher(cfg.DataSource)
	if err != nil {
		a.Close()
		return nil, err
	}
	if a.cache != nil && cfg.DataSource.CacheTTL > 0 {
		fetcher = collector.NewCachedFetcher(fetcher, a.cache, cfg.DataSource.CacheTTL, log)
	}
	log.Info().Str("provider", fetcher.Name()).Str("symbol", cfg.DataSource.Symbol).Msg("data source ready")
	a.collector = collector.NewCollector(fetcher, log)

	a.store, err = newStore(cfg.Artifacts)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init artifact store: %w", err)
	}

	a.recorder = recorder.NewNoopRecorder()
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
		} else {
			a.recorder = sr
		}
	}

	a.engineer = features.NewEngineer(cfg.Pipeline.ShortWindow, cfg.Pipeline.LongWindow)
	a.model = regressor.NewMLP(regressor.Config{
		WindowLength: cfg.Pipeline.WindowLength,
		Features:     model.FeatureCount,
		Hidden:       cfg.Training.Hidden,
		Epochs:       cfg.Training.Epochs,
		BatchSize:    cfg.Training.BatchSize,
		LearningRate: cfg.Training.LearningRate,
		Seed:         cfg.Training.Seed,
	})
	a.model.OnEpoch = func(e regressor.EpochLoss) {
		log.Debug().Int("epoch", e.Epoch).Float64("train_loss", e.TrainLoss).Float64("val_loss", e.ValLoss).Msg("epoch done")
	}

	a.notifier = notifier.NoopNotifier{}
	if cfg.Telegram.Enabled() {
		a.telegram = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.DataSource.Proxy, log)
		a.notifier = a.telegram
	}
	return a, nil
}

func newFetcher(ds config.DataSourceConfig) (collector.Fetcher, error) {
	switch ds.Provider {
	case "yahoo":
		return collector.NewYahooFetcher(ds.Proxy, ds.Timeout), nil
	case "financego":
		return collector.NewFinanceGoFetcher(), nil
	case "rest":
		return collector.NewRESTFetcher(ds.BaseURL, ds.APIKey, ds.Proxy, ds.Timeout), nil
	case "mock":
		return &collector.MockFetcher{}, nil
	default:
		return nil, fmt.Errorf("unknown data provider %q", ds.Provider)
	}
}

// newCache returns nil when caching is disabled. An unreachable Redis falls back to memory.
func newCache(ctx context.Context, cfg config.CacheConfig, log zerolog.Logger) cache.Service {
	switch cfg.Backend {
	case "redis":
		rc, err := cache.NewRedisCache(ctx, cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Redis.Prefix,
		})
		if err == nil {
			return rc
		}
		log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, using memory cache")
		return cache.NewMemoryCache(cfg.MaxEntries)
	case "memory":
		return cache.NewMemoryCache(cfg.MaxEntries)
	default:
		return nil
	}
}

func newStore(cfg config.ArtifactsConfig) (artifact.Store, error) {
	if cfg.Backend == "badger" {
		bs, err := artifact.NewBadgerStore(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return bs, nil
	}
	fs, err := artifact.NewFileStore(cfg.Dir)
	if err != nil {
		return nil, err
	}
	return fs, nil
}

// trainer returns the app's single Trainer so every caller shares its run guard and stage.
func (a *app) trainer() *pipeline.Trainer {
	if a.train != nil {
		return a.train
	}
	t := pipeline.NewTrainer(pipeline.TrainerConfig{
		Symbol:          a.cfg.DataSource.Symbol,
		Lookback:        a.cfg.DataSource.Lookback(),
		WindowLength:    a.cfg.Pipeline.WindowLength,
		ValidationSplit: a.cfg.Training.ValidationSplit,
	}, a.collector, a.engineer, a.model, a.store, a.log)
	t.Recorder = a.recorder
	t.Metrics = a.metrics
	a.train = t
	return t
}

func (a *app) predictor() *pipeline.Predictor {
	p := pipeline.NewPredictor(pipeline.PredictorConfig{
		Lookback:      a.cfg.DataSource.Lookback(),
		WindowLength:  a.cfg.Pipeline.WindowLength,
		HistoryPoints: a.cfg.Pipeline.HistoryPoints,
	}, a.collector, a.engineer, a.model, a.store, a.log)
	p.Recorder = a.recorder
	p.Metrics = a.metrics
	return p
}

// notify sends text, logging rather than returning failures.
func (a *app) notify(ctx context.Context, text string) {
	var err error
	if a.telegram != nil {
		err = a.telegram.SendWithRetry(ctx, text, 2)
	} else {
		err = a.notifier.Send(ctx, text)
	}
	if err != nil {
		a.log.Error().Err(err).Msg("send notification")
	}
}

// Close releases every component that holds a resource. Safe on a partially built app.
func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Error().Err(err).Msg("close artifact store")
		}
	}
	if a.recorder != nil {
		if err := a.recorder.Close(); err != nil {
			a.log.Error().Err(err).Msg("close recorder")
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.log.Error().Err(err).Msg("close cache")
		}
	}
}
