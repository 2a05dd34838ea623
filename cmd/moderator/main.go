package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/whisper/moderation/internal/audit"
	"github.com/whisper/moderation/internal/config"
	"github.com/whisper/moderation/internal/httpapi"
	"github.com/whisper/moderation/internal/lexicon"
	"github.com/whisper/moderation/internal/logger"
	"github.com/whisper/moderation/internal/messaging"
	"github.com/whisper/moderation/internal/moderation"
	"github.com/whisper/moderation/internal/prefs"
	"github.com/whisper/moderation/internal/ratelimit"
	"github.com/whisper/moderation/internal/service"
	"github.com/whisper/moderation/internal/strike"
	"github.com/whisper/moderation/internal/ws"
)

func main() {
	envFile := os.Getenv("ENV_FILE")
	if envFile == "" {
		envFile = ".env"
	}
	envErr := godotenv.Load(envFile)

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		logger.New("moderator").WithError(err).Fatal("invalid configuration")
	}

	log := logger.NewWithOutput("moderator", cfg.LogLevel, os.Stdout).WithField("server", cfg.ServerName)
	if envErr != nil {
		log.WithField("file", envFile).Debug("no env file loaded")
	}
	log.Info("starting whisper moderation service")

	// Redis setup.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := rdb.Ping(ctx).Err(); err != nil {
		cancel()
		log.WithError(err).Fatal("failed to connect to Redis")
	}
	cancel()

	// NATS setup.
	natsConfig := messaging.DefaultNATSConfig()
	natsConfig.URL = cfg.NATSURL
	natsConfig.Name = "whisper-moderator-" + cfg.ServerName

	natsClient, err := messaging.NewNATSClient(natsConfig, log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to NATS")
	}

	// Postgres is optional; without it blocked attempts are not audited.
	var (
		db         *sql.DB
		auditStore service.AuditStore
	)
	if cfg.DatabaseURL != "" {
		db, err = audit.Open(cfg.DatabaseURL)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to Postgres")
		}
		if err := audit.Migrate(db); err != nil {
			log.WithError(err).Fatal("failed to migrate audit schema")
		}
		auditStore = audit.NewStore(db)
	} else {
		log.Warn("database_url not set, audit disabled")
	}

	limiter := ratelimit.NewLimiter(rdb, log)
	mod, err := service.New(service.Deps{
		Limiter:   limiter,
		Prefs:     prefs.NewStore(rdb, cfg.PrefsTTL),
		Strikes:   strike.NewStore(rdb),
		Lexicon:   lexicon.NewStore(rdb),
		Audit:     auditStore,
		Publisher: natsClient,
	}, moderation.Level(cfg.DefaultPreset), cfg.ServerName, log)
	if err != nil {
		log.WithError(err).Fatal("failed to build moderator")
	}

	ctx, cancel = context.WithTimeout(context.Background(), 10*time.Second)
	loaded, err := mod.LoadLexicon(ctx)
	cancel()
	if err != nil {
		log.WithError(err).Warn("failed to load persisted lexicon")
	} else {
		log.WithField("words", loaded).Info("persisted lexicon loaded")
	}

	// Check requests are load-balanced across instances; lexicon updates
	// reach every instance.
	err = natsClient.SubscribeModerationCheck(cfg.QueueGroup, func(data []byte) []byte {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return mod.HandleCheckMessage(ctx, data)
	})
	if err != nil {
		log.WithError(err).Fatal("failed to subscribe to moderation checks")
	}
	if err := natsClient.SubscribeLexiconUpdates(mod.ApplyRemoteLexicon); err != nil {
		log.WithError(err).Fatal("failed to subscribe to lexicon updates")
	}

	preview := ws.NewServer(ws.DefaultServerConfig(), limiter, mod.DefaultConfig, log)

	checks := map[string]httpapi.HealthCheck{
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		"nats": func(context.Context) error {
			if !natsClient.Connected() {
				return errors.New("disconnected")
			}
			return nil
		},
	}
	if db != nil {
		checks["postgres"] = db.PingContext
	}

	api := httpapi.NewServer(mod, preview.HandleUpgrade, checks, log)
	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server error")
		}
	}()

	log.WithFields(logrus.Fields{
		"listen_addr":    cfg.ListenAddr,
		"nats_url":       natsConfig.URL,
		"redis_addr":     cfg.RedisAddr,
		"queue_group":    cfg.QueueGroup,
		"default_preset": cfg.DefaultPreset,
		"audit":          auditStore != nil,
	}).Info("whisper moderation service running")

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.WithField("signal", sig.String()).Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http shutdown error")
	}
	if err := preview.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("preview shutdown error")
	}
	natsClient.Close()
	if db != nil {
		db.Close()
	}
	rdb.Close()
}
