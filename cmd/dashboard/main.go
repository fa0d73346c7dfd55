package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/xela07ax/soc-dashboard/internal/audit"
	"github.com/xela07ax/soc-dashboard/internal/cache"
	"github.com/xela07ax/soc-dashboard/internal/console/handler"
	"github.com/xela07ax/soc-dashboard/internal/console/server"
	"github.com/xela07ax/soc-dashboard/internal/dashboard"
	"github.com/xela07ax/soc-dashboard/internal/engine"
	"github.com/xela07ax/soc-dashboard/internal/infra"
	"github.com/xela07ax/soc-dashboard/internal/infra/auth"
	"github.com/xela07ax/soc-dashboard/internal/loader"
	"github.com/xela07ax/soc-dashboard/internal/repository/postgres"
	"github.com/xela07ax/soc-dashboard/internal/source"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to config file (default: ./config.yaml or ./configs/config.yaml)")
	pflag.Parse()

	cfg, err := infra.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := infra.NewLogger(cfg.Logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg, logger); err != nil {
		logger.Fatal("dashboard terminated", zap.Error(err))
	}
}

func run(cfg *infra.Config, logger *zap.Logger) error {
	// Контекст для управления жизненным циклом фоновых горутин
	appCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	instanceID := uuid.NewString()
	logger = logger.With(zap.String("instance", instanceID))

	// 1. Метрики
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := engine.NewMetrics(reg)

	// 2. Журнал загрузок: Postgres, если настроен, иначе структурный лог
	var storage audit.StorageInterface = audit.NewLogStorage(logger)
	if cfg.Database.URL != "" {
		repo, err := openJournalRepo(appCtx, cfg.Database)
		if err != nil {
			return err
		}
		defer repo.Close()
		storage = repo
	}
	journal := audit.NewJournal(storage, audit.JournalConfig{
		BufferSize:    cfg.Journal.BufferSize,
		BatchSize:     cfg.Journal.BatchSize,
		FlushInterval: cfg.Journal.FlushInterval,
	}, metrics, logger)
	journal.Start()
	defer journal.Stop()

	// 3. Redis (L2 кэш + Pub/Sub). Без адреса инстанс работает автономно
	var rdb *redis.Client
	var store cache.ViewStore
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()

		pingCtx, pingCancel := context.WithTimeout(appCtx, 3*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			// Не фатально: L2 деградирует до пересчета, слушатель сам переподключится
			logger.Warn("redis unreachable at startup", zap.Error(err))
		}
		pingCancel()
		store = cache.NewRedisViewStore(rdb)
	}

	// 4. Источники → загрузчик
	opts := source.Options{
		Timeout: cfg.Sources.Timeout,
		Reliability: &source.ReliabilityConfig{
			Attempts:       cfg.Loader.RetryAttempts,
			AttemptTimeout: cfg.Sources.Timeout,
			RateLimit:      cfg.Loader.RateLimit,
			RateBurst:      cfg.Loader.RateBurst,
			CBMaxRequests:  cfg.Loader.CBMaxRequests,
			CBInterval:     cfg.Loader.CBInterval,
			CBTimeout:      cfg.Loader.CBTimeout,
			CBFailures:     cfg.Loader.CBFailures,
		},
		Metrics: metrics,
		Logger:  logger,
	}
	ld := loader.New(
		source.New(source.ResourceDecisions, cfg.Sources.IADecisions, opts),
		source.New(source.ResourceResponses, cfg.Sources.ResponseActions, opts),
		source.New(source.ResourceHistory, cfg.Sources.ScanHistory, opts),
		journal,
		cfg.Loader.Timeout,
		logger,
	)

	// 5. Сервис дашборда
	memo := cache.NewMemo(store, cfg.Cache.TTL, cfg.Cache.MaxEntries, metrics, logger)
	svc := dashboard.NewService(ld, memo, metrics, logger)
	if rdb != nil {
		svc.WithBroadcaster(dashboard.NewRedisBroadcaster(rdb, infra.RedisChanDashboardReload, instanceID))
		go svc.Listen(appCtx, rdb, infra.RedisChanDashboardReload, instanceID)
	}

	// Первая загрузка в фоне: до ее завершения API отвечает loading=true
	go svc.Reload(appCtx, dashboard.TriggerStartup)
	go svc.Run(appCtx, cfg.Loader.RefreshInterval)

	// 6. HTTP
	var validator auth.TokenValidator
	if len(cfg.Auth.PublicKey) > 0 {
		pubKey, err := auth.ParseRSAPublicKey(cfg.Auth.PublicKey)
		if err != nil {
			return fmt.Errorf("auth: %w", err)
		}
		validator = auth.NewValidator(pubKey, auth.ValidatorOptions{
			Issuer:   cfg.Auth.Issuer,
			Audience: cfg.Auth.Audience,
			Leeway:   cfg.Auth.Leeway,
		})
	}
	api := server.NewConsoleServer(logger, metrics, validator, handler.NewDashboardHandler(svc, logger))

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      api,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var metricsSrv *http.Server
	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadTimeout: 5 * time.Second}
		go func() {
			logger.Info("metrics server started", zap.String("addr", metricsSrv.Addr))
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("dashboard API started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// 7. Graceful Shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-stop:
		logger.Info("dashboard stopping...", zap.String("signal", sig.String()))
	case err := <-serveErr:
		return fmt.Errorf("listen: %w", err)
	}

	cancel() // Останавливаем слушателя, тикер и текущую загрузку

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", zap.Error(err))
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	logger.Info("dashboard exited properly")
	return nil
}

func openJournalRepo(ctx context.Context, cfg infra.DatabaseConfig) (*postgres.LoadEventRepo, error) {
	repo, err := postgres.NewLoadEventRepo(ctx, cfg.URL, cfg.MaxConns, cfg.MinConns)
	if err != nil {
		return nil, err
	}

	// Проверяем соединение с таймаутом
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := repo.Ping(pingCtx); err != nil {
		repo.Close()
		return nil, fmt.Errorf("database unreachable: %w", err)
	}
	if err := repo.EnsureSchema(pingCtx); err != nil {
		repo.Close()
		return nil, err
	}
	return repo, nil
}
