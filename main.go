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
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"form-analytics-server/config"
	"form-analytics-server/database"
	"form-analytics-server/jobs"
	"form-analytics-server/logger"
	"form-analytics-server/middleware"
	"form-analytics-server/routes"
	"form-analytics-server/services"
	ws "form-analytics-server/websocket"
)

func main() {
	// Load environment variables
	envErr := godotenv.Load()

	cfg := config.Load()
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	log := logger.WithComponent("server")

	if envErr != nil {
		log.Info("No .env file found, using system environment variables")
	}
	if err := cfg.Validate(); err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	if cfg.Server.GinMode == gin.ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := database.Open(ctx, cfg.Storage, logger.WithComponent("database"))
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize database")
	}
	defer store.Close()

	formService := services.NewFormService(store, logger.WithComponent("forms"))
	if cfg.SeedSampleForms {
		if err := seedSampleForms(ctx, formService, logger.WithComponent("seed")); err != nil {
			log.WithError(err).Warn("⚠️ Failed to seed sample forms")
		}
	}

	// Dashboards subscribe to this hub; submissions reach it through the notifier.
	hub := ws.NewHub(cfg.Realtime.Channel, logger.WithComponent("websocket"))
	go hub.Run(ctx)

	sink, closeSink := newEventSink(ctx, cfg.Realtime, hub, log)
	defer closeSink()

	notifier := ws.NewNotifier(sink, cfg.Realtime.QueueSize, logger.WithComponent("notifier"))
	go notifier.Run(ctx)

	sweeper := jobs.NewOrphanSweepJob(store, cfg.Jobs.OrphanSweepInterval, logger.WithComponent("jobs"))
	sweeper.Start()
	defer sweeper.Stop()

	limiter := middleware.NewRateLimiter(cfg.Server.RatePerMinute, cfg.Server.RateBurst)
	limiter.StartCleanup(ctx, 10*time.Minute)

	router := routes.NewRouter(cfg, routes.Dependencies{
		Store:       store,
		Forms:       formService,
		Submissions: services.NewSubmissionService(store, notifier, logger.WithComponent("submissions")),
		Analytics:   services.NewAnalyticsService(store),
		Export:      services.NewExportService(store),
		Hub:         hub,
		Limiter:     limiter,
		Log:         logger.WithComponent("api"),
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{
			"port":    cfg.Server.Port,
			"backend": store.Backend(),
			"auth":    cfg.Auth.Enabled(),
		}).Info("🚀 Form analytics server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info("🛑 Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("⚠️ Graceful shutdown timed out")
	}
}

// newEventSink publishes through Redis when configured, relaying the
// channel back into the local hub; otherwise events go straight to the hub.
func newEventSink(ctx context.Context, cfg config.RealtimeConfig, hub *ws.Hub, log *logrus.Entry) (ws.Sink, func()) {
	if cfg.RedisURL == "" {
		return ws.HubSink{Hub: hub}, func() {}
	}

	client, err := ws.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.WithError(err).Warn("⚠️ Redis unavailable, broadcasting to local dashboards only")
		return ws.HubSink{Hub: hub}, func() {}
	}

	relay := &ws.RedisRelay{
		Client:  client,
		Channel: cfg.Channel,
		Hub:     hub,
		Log:     logger.WithComponent("redis"),
	}
	go func() {
		if err := relay.Run(ctx); err != nil {
			log.WithError(err).Error("❌ Redis relay stopped")
		}
	}()

	return ws.RedisSink{Client: client, Channel: cfg.Channel}, func() { _ = client.Close() }
}
