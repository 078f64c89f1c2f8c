package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/riskibarqy/iptv-companion/external/footballdata"
	"github.com/riskibarqy/iptv-companion/external/notify"
	"github.com/riskibarqy/iptv-companion/external/xmltvfeed"
	"github.com/riskibarqy/iptv-companion/internal/config"
	"github.com/riskibarqy/iptv-companion/internal/domain/kv"
	"github.com/riskibarqy/iptv-companion/internal/infrastructure/repository/file"
	"github.com/riskibarqy/iptv-companion/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/iptv-companion/internal/infrastructure/repository/postgres"
	"github.com/riskibarqy/iptv-companion/internal/interfaces/httpapi"
	"github.com/riskibarqy/iptv-companion/internal/platform/logging"
	"github.com/riskibarqy/iptv-companion/internal/platform/resilience"
	"github.com/riskibarqy/iptv-companion/internal/usecase"
	"github.com/uptrace/opentelemetry-go-extra/otelsql"
	"github.com/uptrace/opentelemetry-go-extra/otelsqlx"
)

// Runtime holds the assembled service: the HTTP server and the scheduler
// that keeps the guide and fixture snapshots current.
type Runtime struct {
	Server    *http.Server
	Scheduler *usecase.Scheduler
	closers   []func() error
}

// Start runs the scheduler's warm-up and background loops.
func (r *Runtime) Start(ctx context.Context) {
	r.Scheduler.Start(ctx)
}

// Close stops the scheduler and releases storage handles. It is safe on a
// partially built runtime.
func (r *Runtime) Close() error {
	if r.Scheduler != nil {
		r.Scheduler.Stop()
	}

	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func New(cfg config.Config, logger *logging.Logger) (*Runtime, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.HTTPAddr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	store, closeStore, err := newKVStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	runtime := &Runtime{closers: []func() error{closeStore}}

	fetcher := xmltvfeed.NewFetcher(xmltvfeed.Config{
		Timeout:      cfg.EPGTimeout,
		MaxBodyBytes: cfg.EPGMaxBodyBytes,
		Logger:       logger,
	})
	guideSvc := usecase.NewGuideService(fetcher, cfg.EPGURL, logger.Named("guide"))

	cacheCfg := usecase.DefaultFixtureCacheConfig()
	cacheCfg.Location = cfg.Location
	fixtureCache := usecase.NewFixtureCache(store, cacheCfg, logger.Named("fixture_cache"))

	fixtureSvc := usecase.NewFixtureSyncService(
		newFixtureProvider(cfg, logger),
		fixtureCache,
		usecase.FixtureSyncConfig{
			CacheKey:        cfg.FixturesCacheKey,
			IncludeTomorrow: cfg.FixturesIncludeTomorrow,
			Location:        cfg.Location,
			LeagueIDs:       cfg.FixturesLeagueIDs,
			DetailWorkers:   cfg.FixturesDetailWorkers,
		},
		logger.Named("fixtures"),
	)

	notifier, err := newGoalNotifier(cfg, logger)
	if err != nil {
		_ = runtime.Close()
		return nil, err
	}

	runtime.Scheduler = usecase.NewScheduler(guideSvc, fixtureSvc, notifier, usecase.SchedulerConfig{
		GuideInterval:   cfg.EPGRefreshInterval,
		FixtureInterval: cfg.FixturesRefreshInterval,
		PollInterval:    cfg.LivePollInterval,
		RecentEvents:    cfg.RecentEventsLimit,
	}, logger.Named("scheduler"))

	handler := httpapi.NewHandler(guideSvc, runtime.Scheduler, logger.Named("http"))
	router := httpapi.NewRouter(handler, logger.Named("http"), cfg.SwaggerEnabled, cfg.CORSAllowedOrigins)

	runtime.Server = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return runtime, nil
}

// newFixtureProvider returns nil without a token so the synchronizer serves
// cached data and reports the provider as disabled.
func newFixtureProvider(cfg config.Config, logger *logging.Logger) usecase.FixtureProvider {
	if cfg.FootballDataToken == "" {
		logger.Warn("football-data provider disabled", "reason", "FOOTBALL_DATA_TOKEN empty")
		return nil
	}

	return footballdata.NewClient(footballdata.ClientConfig{
		BaseURL:    cfg.FootballDataBaseURL,
		Token:      cfg.FootballDataToken,
		Timeout:    cfg.FootballDataTimeout,
		MaxRetries: cfg.FootballDataMaxRetries,
		Logger:     logger,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.FootballDataCircuitEnabled,
			FailureThreshold: cfg.FootballDataCircuitFailureCount,
			OpenTimeout:      cfg.FootballDataCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.FootballDataCircuitHalfOpenMax,
		},
	})
}

func newGoalNotifier(cfg config.Config, logger *logging.Logger) (usecase.GoalNotifier, error) {
	if !cfg.QStashEnabled {
		logger.Info("goal notifications disabled", "reason", "QSTASH_ENABLED=false")
		return nil, nil
	}

	notifier, err := notify.NewQStashNotifier(notify.QStashConfig{
		BaseURL:      cfg.QStashBaseURL,
		Token:        cfg.QStashToken,
		TargetURL:    cfg.QStashTargetURL,
		Retries:      cfg.QStashRetries,
		Timeout:      cfg.QStashTimeout,
		ForwardToken: cfg.QStashForwardToken,
		CircuitBreaker: resilience.CircuitBreakerConfig{
			Enabled:          cfg.QStashCircuitEnabled,
			FailureThreshold: cfg.QStashCircuitFailureCount,
			OpenTimeout:      cfg.QStashCircuitOpenTimeout,
			HalfOpenMaxReq:   cfg.QStashCircuitHalfOpenMaxReq,
		},
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("build qstash notifier: %w", err)
	}
	return notifier, nil
}

func newKVStore(cfg config.Config, logger *logging.Logger) (kv.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.KVBackend {
	case config.KVBackendMemory:
		logger.Info("kv store selected", "backend", cfg.KVBackend)
		return memory.NewKVStore(), noop, nil
	case config.KVBackendFile:
		store, err := file.NewKVStore(cfg.KVFileDir)
		if err != nil {
			return nil, nil, fmt.Errorf("open file kv store: %w", err)
		}
		logger.Info("kv store selected", "backend", cfg.KVBackend, "dir", cfg.KVFileDir)
		return store, noop, nil
	case config.KVBackendPostgres:
		db, err := openDB(cfg)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("kv store selected",
			"backend", cfg.KVBackend,
			"database", dbNameFromURL(cfg.DBURL),
			"namespace", cfg.KVNamespace,
		)
		return postgres.NewKVStore(db, cfg.KVNamespace), db.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported kv backend %q", cfg.KVBackend)
	}
}

func openDB(cfg config.Config) (*sqlx.DB, error) {
	db, err := otelsqlx.Open("postgres", normalizeDBURL(cfg.DBURL, cfg.DBDisablePreparedBinary),
		otelsql.WithDBName(dbNameFromURL(cfg.DBURL)),
		otelsql.WithQueryFormatter(formatDBQueryForTrace),
	)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	return db, nil
}
