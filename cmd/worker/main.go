package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	appcfg "notify-hub/internal/config"
	"notify-hub/internal/domain/entity"
	pgRepo "notify-hub/internal/infra/adapter/persistence/postgres"
	"notify-hub/internal/infra/cache"
	"notify-hub/internal/infra/channel"
	"notify-hub/internal/infra/db"
	"notify-hub/internal/infra/queue"
	workerPkg "notify-hub/internal/infra/worker"
	"notify-hub/internal/observability/logging"
	obsmetrics "notify-hub/internal/observability/metrics"
	"notify-hub/internal/repository"
	"notify-hub/internal/resilience/circuitbreaker"
	"notify-hub/internal/usecase/configcache"
	"notify-hub/internal/usecase/dispatch"
	"notify-hub/internal/usecase/idempotency"
	"notify-hub/internal/usecase/queueproc"
	pkgconfig "notify-hub/pkg/config"
)

// janitorInterval is how often the in-memory cache sweeps expired entries.
const janitorInterval = time.Minute

func main() {
	logger := initLogger()
	database := initDatabase(logger)
	defer func() {
		if err := database.Close(); err != nil {
			logger.Error("failed to close database", slog.Any("error", err))
		}
	}()

	// Shutdown starts on SIGINT/SIGTERM; the queue consumers finish their
	// current batch within the drain timeout.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Load worker configuration (fail-open strategy)
	workerMetrics := workerPkg.NewWorkerMetrics()
	workerMetrics.MustRegister()
	workerConfig, err := workerPkg.LoadConfigFromEnv(logger, workerMetrics)
	if err != nil {
		logger.Error("failed to load worker configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("worker configuration loaded",
		slog.String("purge_schedule", workerConfig.PurgeSchedule),
		slog.String("timezone", workerConfig.Timezone),
		slog.Duration("drain_timeout", workerConfig.DrainTimeout),
		slog.Int("health_port", workerConfig.HealthPort),
		slog.Int("metrics_port", workerConfig.MetricsPort))

	// Channel defaults come from an optional YAML file; without one every
	// channel is enabled with platform-documented rate limits.
	channelsPath := pkgconfig.GetEnvString("CHANNELS_CONFIG", "")
	channelsConfig, err := appcfg.LoadChannelsConfig(channelsPath)
	if err != nil {
		logger.Error("failed to load channels configuration",
			slog.String("path", channelsPath), slog.Any("error", err))
		os.Exit(1)
	}

	q := queue.NewPostgresQueue(database)
	svc, guard, configs, notifRepo := setupDispatchService(ctx, logger, database, q, channelsConfig)

	// Queue consumers: retry processing and dead-letter inspection.
	processor := queueproc.NewProcessor(q, notifRepo, configs, svc)
	deadLetters := queueproc.NewDeadLetterConsumer(q)

	// Readiness tracks the consumer loops: a worker whose consumers died is
	// alive but must leave the rotation.
	var liveConsumers atomic.Int32
	liveConsumers.Store(2)

	var consumers sync.WaitGroup
	consumers.Add(2)
	go func() {
		defer consumers.Done()
		defer liveConsumers.Add(-1)
		processor.Run(ctx)
	}()
	go func() {
		defer consumers.Done()
		defer liveConsumers.Add(-1)
		deadLetters.Run(ctx)
	}()

	// Observability endpoints.
	startMetricsServer(ctx, logger, workerConfig.MetricsPort)
	go obsmetrics.StartDBStatsCollector(ctx, database,
		pkgconfig.GetEnvDuration("DB_STATS_INTERVAL", 15*time.Second))
	go collectQueueDepth(ctx, logger, q,
		pkgconfig.GetEnvDuration("QUEUE_DEPTH_INTERVAL", 30*time.Second))

	healthAddr := fmt.Sprintf(":%d", workerConfig.HealthPort)
	healthServer := workerPkg.NewHealthServer(healthAddr, logger)
	healthServer.AddReadinessCheck("queue_consumers", func() bool {
		return liveConsumers.Load() == 2
	})
	go func() {
		if err := healthServer.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.Error("health server failed", slog.Any("error", err))
		}
	}()

	scheduler := startMaintenanceCron(logger, guard, workerConfig, channelsConfig, workerMetrics)

	healthServer.SetReady(true)
	logger.Info("worker started",
		slog.String("purge_schedule", purgeSchedule(workerConfig, channelsConfig)),
		slog.String("timezone", workerConfig.Timezone))

	<-ctx.Done()
	healthServer.SetReady(false)
	logger.Info("shutdown started", slog.Duration("drain_timeout", workerConfig.DrainTimeout))

	cronCtx := scheduler.Stop()
	drained := make(chan struct{})
	go func() {
		consumers.Wait()
		<-cronCtx.Done()
		close(drained)
	}()

	select {
	case <-drained:
		logger.Info("worker stopped")
	case <-time.After(workerConfig.DrainTimeout):
		logger.Warn("drain timeout exceeded, exiting with work in flight")
	}
}

// initLogger installs the process default logger. JSON output is the default;
// LOG_PRETTY switches to the text handler for local runs.
func initLogger() *slog.Logger {
	logger := logging.NewLogger()
	if pkgconfig.GetEnvBool("LOG_PRETTY", false) {
		logger = logging.NewTextLogger()
	}
	slog.SetDefault(logger)
	return logger
}

// initDatabase opens the database connection and applies the schema.
func initDatabase(logger *slog.Logger) *sql.DB {
	database := db.Open()
	if err := db.MigrateUp(database); err != nil {
		logger.Error("failed to run migrations", slog.Any("error", err))
		os.Exit(1)
	}
	return database
}

// setupDispatchService wires the dispatch pipeline: repositories behind the
// database circuit breaker, the read-through config cache, the idempotency
// guard, and one protocol adapter per enabled channel.
func setupDispatchService(ctx context.Context, logger *slog.Logger, database *sql.DB, q queue.Queue, channelsConfig *appcfg.ChannelsConfig) (*dispatch.Service, *idempotency.Guard, *configcache.Cache, repository.NotificationRepository) {
	breaker := circuitbreaker.NewDBCircuitBreaker(database)
	configRepo := pgRepo.NewConfigRepo(breaker)
	idemRepo := pgRepo.NewIdempotencyRepo(breaker)
	notifRepo := pgRepo.NewNotificationRepo(breaker)

	store := cache.NewMemoryStore(cache.MemoryStoreConfig{})
	go store.StartJanitor(ctx, janitorInterval)
	configs := configcache.New(configRepo, store)

	guard := idempotency.NewGuard(idemRepo)

	registry, err := channel.NewRegistry(buildAdapters(logger, channelsConfig)...)
	if err != nil {
		logger.Error("failed to build channel registry", slog.Any("error", err))
		os.Exit(1)
	}

	svc := dispatch.NewService(configs, guard, notifRepo, q, registry)
	return svc, guard, configs, notifRepo
}

// enabledChannels resolves which channels get adapters. A non-empty
// CHANNELS_ENABLED list overrides the YAML enabled set, so one deployment can
// serve a channel subset without a separate config file.
func enabledChannels(logger *slog.Logger, cfg *appcfg.ChannelsConfig) []entity.ChannelKind {
	names := pkgconfig.GetEnvStringList("CHANNELS_ENABLED", nil)
	if len(names) == 0 {
		return cfg.EnabledChannels()
	}

	kinds := make([]entity.ChannelKind, 0, len(names))
	for _, name := range names {
		kind, err := entity.ParseChannelKind(name)
		if err != nil {
			logger.Warn("ignoring unknown channel in CHANNELS_ENABLED",
				slog.String("channel", name))
			continue
		}
		kinds = append(kinds, kind)
	}
	if len(kinds) == 0 {
		return cfg.EnabledChannels()
	}
	return kinds
}

// buildAdapters constructs one adapter per enabled channel, applying the
// configured send timeout and client-side rate limits.
func buildAdapters(logger *slog.Logger, cfg *appcfg.ChannelsConfig) []channel.Adapter {
	timeout := cfg.SendTimeout()
	kinds := enabledChannels(logger, cfg)
	adapters := make([]channel.Adapter, 0, len(kinds))

	for _, kind := range kinds {
		rate := cfg.RateFor(kind)
		switch kind {
		case entity.ChannelWebhook:
			adapters = append(adapters,
				channel.NewWebhookAdapter(timeout).WithRateLimit(rate.PerSecond, rate.Burst))
		case entity.ChannelLark:
			adapters = append(adapters,
				channel.NewLarkAdapter(timeout).WithRateLimit(rate.PerSecond, rate.Burst))
		case entity.ChannelTelegram:
			tg := channel.NewTelegramAdapter(timeout).WithRateLimit(rate.PerSecond, rate.Burst)
			if base := cfg.TelegramAPIBase(); base != "" {
				tg = tg.WithAPIBase(base)
			}
			adapters = append(adapters, tg)
		case entity.ChannelSlack:
			adapters = append(adapters,
				channel.NewSlackAdapter(timeout).WithRateLimit(rate.PerSecond, rate.Burst))
		}
		logger.Info("channel adapter enabled",
			slog.String("channel", kind.String()),
			slog.Float64("rate_per_second", rate.PerSecond),
			slog.Int("burst", rate.Burst))
	}

	return adapters
}

// collectQueueDepth periodically samples the stored message count of both
// delivery queues into the queue depth gauge.
func collectQueueDepth(ctx context.Context, logger *slog.Logger, q *queue.PostgresQueue, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, name := range []string{entity.RetryQueue, entity.DeadLetterQueue} {
				depth, err := q.Depth(ctx, name)
				if err != nil {
					logger.Warn("queue depth sample failed",
						slog.String("queue", name), slog.Any("error", err))
					continue
				}
				queueproc.RecordQueueDepth(name, depth)
			}
		}
	}
}

// purgeSchedule resolves the idempotency purge schedule. The PURGE_SCHEDULE
// environment variable wins when set; otherwise the YAML maintenance section
// applies.
func purgeSchedule(cfg *workerPkg.WorkerConfig, channels *appcfg.ChannelsConfig) string {
	if os.Getenv("PURGE_SCHEDULE") != "" {
		return cfg.PurgeSchedule
	}
	return channels.IdempotencyPurgeSchedule()
}

// startMaintenanceCron schedules the expired idempotency-key purge.
func startMaintenanceCron(logger *slog.Logger, guard *idempotency.Guard, cfg *workerPkg.WorkerConfig, channels *appcfg.ChannelsConfig, metrics *workerPkg.WorkerMetrics) *cron.Cron {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		logger.Error("invalid timezone, using UTC",
			slog.String("timezone", cfg.Timezone), slog.Any("error", err))
		loc = time.UTC
	}
	c := cron.New(cron.WithLocation(loc))

	schedule := purgeSchedule(cfg, channels)
	_, err = c.AddFunc(schedule, func() {
		runPurgeJob(logger, guard, metrics)
	})
	if err != nil {
		logger.Error("failed to schedule purge job",
			slog.String("schedule", schedule), slog.Any("error", err))
		os.Exit(1)
	}
	c.Start()

	return c
}

// purgeJobTimeout bounds one purge run. The sweep is a single indexed DELETE,
// so a minute is generous.
const purgeJobTimeout = time.Minute

// runPurgeJob executes one idempotency purge run with metrics recording.
func runPurgeJob(logger *slog.Logger, guard *idempotency.Guard, metrics *workerPkg.WorkerMetrics) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), purgeJobTimeout)
	defer cancel()

	purged, err := guard.PurgeExpired(ctx)
	metrics.RecordMaintenanceDuration(time.Since(start).Seconds())
	if err != nil {
		logger.Error("idempotency purge failed", slog.Any("error", err))
		metrics.RecordMaintenanceRun("failure")
		return
	}

	metrics.RecordMaintenanceRun("success")
	metrics.RecordKeysPurged(purged)
	metrics.RecordLastSuccess()
	logger.Info("idempotency purge completed",
		slog.Int64("keys_purged", purged),
		slog.Duration("duration", time.Since(start)))
}
