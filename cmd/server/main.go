package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"zns-gateway/internal/api"
	"zns-gateway/internal/bom"
	"zns-gateway/internal/cache"
	"zns-gateway/internal/config"
	"zns-gateway/internal/database"
	"zns-gateway/internal/events"
	"zns-gateway/internal/hooks"
	"zns-gateway/internal/logger"
	"zns-gateway/internal/metrics"
	"zns-gateway/internal/scheduler"
	"zns-gateway/internal/service"
	"zns-gateway/internal/settings"
	"zns-gateway/internal/ws"
)

func main() {
	cfg := config.LoadConfig()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	if cfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET must be set")
	}
	if log.GetLevel() < logrus.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open database")
	}
	if err := database.SeedConfig(db, cfg, log); err != nil {
		log.WithError(err).Fatal("failed to seed BOM config")
	}

	metrics.Init()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := settings.NewStore(db)
	svc := service.New(db, bom.NewClient(cfg.BOMTimeout, log), store, log)
	svc.AddListener(metrics.Listener{})

	deps := api.Deps{
		Svc:              svc,
		Hooks:            hooks.New(svc, log),
		SchedulerCompany: cfg.DefaultCompanyID,
		JWTSecret:        cfg.JWTSecret,
		Log:              log,
	}

	if cfg.RedisEnabled() {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.WithError(err).Warn("redis unreachable, status cache disabled")
		} else {
			statusCache := cache.NewRedisCache(rdb, cfg.RedisTTL, log)
			svc.AddListener(statusCache)
			deps.Cache = statusCache
			log.WithField("addr", cfg.RedisAddr).Info("status cache enabled")
		}
	}

	if cfg.KafkaEnabled() {
		publisher := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
		defer publisher.Close()
		svc.AddListener(publisher)
		log.WithField("topic", cfg.KafkaTopic).Info("history events publishing enabled")
	}

	hub := ws.NewHub(log)
	go hub.Run(ctx)
	svc.AddListener(hub)
	deps.Hub = hub

	companySettings := store.Load(ctx, cfg.DefaultCompanyID)
	interval := cfg.SweepInterval
	if companySettings.CheckInterval > 0 {
		interval = time.Duration(companySettings.CheckInterval) * time.Minute
	}
	sweeper, err := scheduler.New(interval, func(ctx context.Context) { svc.Sweep(ctx) }, log)
	if err != nil {
		log.WithError(err).Fatal("failed to create status sweep scheduler")
	}
	if companySettings.AutoCheck {
		sweeper.Start()
		log.WithField("interval", interval).Info("status sweep started")
	}
	defer sweeper.Stop()
	deps.Scheduler = sweeper

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithField("port", cfg.Port).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("failed to run server")
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
}
