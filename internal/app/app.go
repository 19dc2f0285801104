package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/clashfun/internal/accelerator"
	"github.com/MrSnakeDoc/clashfun/internal/clash"
	"github.com/MrSnakeDoc/clashfun/internal/config"
	"github.com/MrSnakeDoc/clashfun/internal/domain"
	"github.com/MrSnakeDoc/clashfun/internal/gamedetect"
	"github.com/MrSnakeDoc/clashfun/internal/httpserver"
	"github.com/MrSnakeDoc/clashfun/internal/httpserver/deps"
	"github.com/MrSnakeDoc/clashfun/internal/logger"
	"github.com/MrSnakeDoc/clashfun/internal/probe"
	"github.com/MrSnakeDoc/clashfun/internal/redis"
	"github.com/MrSnakeDoc/clashfun/internal/scheduler"
	"github.com/MrSnakeDoc/clashfun/internal/selection"
	"github.com/MrSnakeDoc/clashfun/internal/session"
	redisstore "github.com/MrSnakeDoc/clashfun/internal/store/redis"
	"github.com/MrSnakeDoc/clashfun/internal/subscription"
	"github.com/MrSnakeDoc/clashfun/internal/utils"
	"github.com/MrSnakeDoc/clashfun/internal/version"
)

type App struct {
	cfg         *config.Config
	logger      logger.Logger
	server      *httpserver.Server
	redisClient *goredis.Client
	store       *redisstore.Store
	accelerator *accelerator.Accelerator

	refresher *scheduler.HealthRefresher
	reloader  *scheduler.SubscriptionReloader
	games     *scheduler.GameWatcher
	collector *scheduler.HistoryCollector
}

func New() *App {
	cfg := config.Load()

	loggerClient := logger.New(cfg.LogLevel, cfg.PrettyLog)

	// The snapshot store is optional: without it the daemon just starts cold.
	redisClient, err := redis.Connect(context.Background(), redis.ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		PoolSize:       cfg.RedisPoolSize,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}, loggerClient)
	switch {
	case errors.Is(err, redis.ErrDisabled):
		loggerClient.Info("redis not configured, snapshots disabled")
	case err != nil:
		loggerClient.Warn("redis unavailable, continuing without snapshots", logger.Error(err))
	}

	dialer, err := probe.NewDialer(cfg.ProbeUpstream)
	if err != nil {
		loggerClient.Fatal("invalid probe upstream", logger.String("upstream", cfg.ProbeUpstream), logger.Error(err))
	}

	table, err := gamedetect.LoadTable(cfg.GameTable)
	if err != nil {
		loggerClient.Fatal("invalid game table", logger.String("path", cfg.GameTable), logger.Error(err))
	}
	detector := gamedetect.New(gamedetect.NewProcessLister(), table, loggerClient)

	engine := clash.NewEngine(clash.Options{
		Binary:     cfg.CoreBinary,
		WorkDir:    cfg.CoreWorkDir,
		MixedPort:  cfg.CoreMixedPort,
		Controller: cfg.CoreController,
		Secret:     cfg.CoreSecret,
		LogLevel:   cfg.CoreLogLevel,
	}, loggerClient)

	var (
		store    *redisstore.Store
		accStore accelerator.Store
	)
	if redisClient != nil {
		store = redisstore.NewStore(redisClient)
		accStore = store
	}

	acc := accelerator.New(accelerator.Deps{
		Loader: subscription.NewLoader(subscription.LoaderOptions{
			Timeout:  cfg.FetchTimeout,
			MaxBytes: cfg.FetchMaxBytes,
		}),
		Prober:  probe.New(dialer, loggerClient),
		Policy:  selection.NewPolicy(cfg.TieEpsilon),
		Session: session.New(engine, loggerClient, cfg.ApplyTimeout),
		Store:   accStore,
		Logger:  loggerClient,
	}, accelerator.Options{
		Probe: probe.Options{
			Timeout:     cfg.ProbeTimeout,
			Concurrency: cfg.ProbeConcurrency,
		},
		RegionFilter: cfg.RegionFilter,
		AutoStart:    cfg.AutoStart,
	})

	refresher := scheduler.NewHealthRefresher(acc, loggerClient, cfg.ProbeInterval)

	var reloader *scheduler.SubscriptionReloader
	if cfg.Subscription != "" {
		reloader = scheduler.NewSubscriptionReloader(acc, cfg.Subscription,
			subscription.ParseFormat(cfg.SubscriptionFormat), loggerClient, cfg.SubscriptionInterval)
	}

	var collector *scheduler.HistoryCollector
	if store != nil {
		collector = scheduler.NewHistoryCollector(store, acc, loggerClient, cfg.HistoryInterval)
	}

	// Dependencies passed to routes (extend as needed).
	d := deps.Deps{
		Logger:       loggerClient,
		StartTime:    time.Now(),
		Build:        version.Get(),
		AllowedHosts: cfg.AllowedHosts,
		AllowedCIDRS: cfg.AllowedCIDRS,
		TrustProxy:   cfg.TrustProxy,
		Accelerator:  acc,
		Refresh:      refresher,
		Games:        detector,
		RedisClient:  redisClient,
		ProxyPort:    cfg.CoreMixedPort,
		BodyLimit:    cfg.FetchMaxBytes,
	}

	return &App{
		cfg:         cfg,
		logger:      loggerClient,
		server:      httpserver.New(cfg.ListenPort, loggerClient, d),
		redisClient: redisClient,
		store:       store,
		accelerator: acc,
		refresher:   refresher,
		reloader:    reloader,
		games:       scheduler.NewGameWatcher(detector, acc, loggerClient, cfg.GameInterval),
		collector:   collector,
	}
}

// bootstrap installs the first subscription: the configured source if any,
// else the cached snapshot.
func (a *App) bootstrap(ctx context.Context) {
	if a.reloader != nil {
		err := a.reloader.Start(ctx)
		if err == nil {
			return
		}
		a.logger.Error("configured subscription unavailable", logger.Error(err))
	}
	if a.store == nil {
		if a.reloader == nil {
			a.logger.Info("no subscription configured, waiting for POST /api/subscription")
		}
		return
	}
	restored, err := scheduler.NewSnapshotRestorer(a.store, a.accelerator, a.logger).Restore(ctx)
	if err != nil {
		a.logger.Warn("failed to restore subscription from redis", logger.Error(err))
		return
	}
	if !restored && a.reloader == nil {
		a.logger.Info("no subscription configured, waiting for POST /api/subscription")
	}
}

func (a *App) Run() error {
	a.logger.Infof("🚀 Starting clashfun %s on %s", version.Version, a.cfg.ListenPort)
	a.logger.Info(version.Get().String())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	a.bootstrap(ctx)

	if err := a.refresher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start health refresher: %w", err)
	}
	a.logger.Info("health refresher started", logger.Duration("interval", a.cfg.ProbeInterval))

	if err := a.games.Start(ctx); err != nil {
		return fmt.Errorf("failed to start game watcher: %w", err)
	}

	if a.collector != nil {
		if err := a.collector.Start(ctx); err != nil {
			return fmt.Errorf("failed to start history collector: %w", err)
		}
	}

	select {
	case <-ctx.Done():
		a.logger.Info("⏳ Shutting down gracefully...")
	case err := <-errCh:
		return err
	}

	a.refresher.Stop()
	a.games.Stop()
	if a.reloader != nil {
		a.reloader.Stop()
	}
	if a.collector != nil {
		a.collector.Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		a.logger.Warn("failed to stop server", logger.Error(err))
	}

	if a.accelerator.Status().Session.State != domain.SessionStopped {
		if err := a.accelerator.Stop(shutdownCtx); err != nil {
			a.logger.Warn("failed to stop proxy core", logger.Error(err))
		}
	}

	if a.redisClient != nil {
		utils.CloseLogged(a.redisClient, a.logger, "redis")
	}

	a.logger.Info("✅ clashfun stopped cleanly")
	return nil
}
