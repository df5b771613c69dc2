// cmd/notification-service/main.go
package main

import (
	"context"
	"net/http"
	_ "net/http/pprof"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"booking-notifications/internal/api"
	"booking-notifications/internal/common/config"
	"booking-notifications/internal/common/database"
	"booking-notifications/internal/common/logger"
	"booking-notifications/internal/notifications"
	"booking-notifications/internal/push"
	"booking-notifications/internal/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "console").Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("starting notification service",
		zap.String("name", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Postgres ---
	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		zapLog.Fatal("postgres init failed", zap.Error(err))
	}
	defer pg.Close()

	err = retry.DoVoid(ctx, retry.Config{
		MaxRetries:   10,
		InitialDelay: 2 * time.Second,
		MaxDelay:     30 * time.Second,
	}, pg.Ping)
	if err != nil {
		zapLog.Fatal("postgres unreachable", zap.Error(err))
	}

	if err := notifications.EnsureSchema(ctx, pg.GetDB()); err != nil {
		zapLog.Fatal("schema init failed", zap.Error(err))
	}

	// --- Redis (badge cache) ---
	var badgeCache *redis.Client
	rdb, err := database.NewRedis(cfg.Database.Redis)
	if err == nil && rdb.Ping(ctx) == nil {
		badgeCache = rdb.GetClient()
		defer rdb.Close()
	} else {
		// The badge cache is an optimization; run without it.
		zapLog.Warn("redis unreachable, badge cache disabled")
	}

	// --- Push transport ---
	sender, err := push.NewWebPushSender(cfg.Push)
	if err != nil {
		zapLog.Fatal("push transport init failed", zap.Error(err))
	}

	// --- Core components ---
	storageRetry := retry.Storage(cfg.Delivery.StorageMaxRetries, cfg.Delivery.StorageRetryDelay)
	registry := notifications.NewSubscriptionRegistry(pg.GetDB(), nil, storageRetry, log)
	journal := notifications.NewNotificationLog(pg.GetDB(), badgeCache, cfg.Delivery.BadgeCacheTTL, storageRetry, log)
	engine := notifications.NewDeliveryEngine(registry, journal, sender, cfg.Delivery, log)
	cleanup := notifications.NewCleanupJob(registry, journal, cfg.Cleanup, log)

	// --- Cleanup schedule ---
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Cleanup.Schedule, func() {
		runCtx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()
		if _, err := cleanup.Run(runCtx); err != nil {
			log.Error("scheduled cleanup failed", map[string]interface{}{"error": err.Error()})
		}
	}); err != nil {
		zapLog.Fatal("invalid cleanup schedule", zap.Error(err))
	}
	scheduler.Start()
	defer scheduler.Stop()

	// --- HTTP surface: API + metrics ---
	mux := http.NewServeMux()
	api.NewServer(engine, registry, journal, cleanup, log).Register(mux)
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: cfg.App.MetricsAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	zapLog.Info("notification service ready", zap.String("addr", cfg.App.MetricsAddr))

	<-ctx.Done()
	zapLog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}
