package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/servicecenter/api/internal/auth"
	"github.com/servicecenter/api/internal/cache"
	"github.com/servicecenter/api/internal/config"
	"github.com/servicecenter/api/internal/logger"
	"github.com/servicecenter/api/internal/notify"
	"github.com/servicecenter/api/internal/repository"
	"github.com/servicecenter/api/internal/server"
)

const defaultConfigPath = "/etc/service-center/config.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	_ = godotenv.Load()

	// Environment first, config file as fallback
	cfg, err := config.FromEnv()
	if err != nil {
		cfg, err = config.LoadFile(*configPath)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to load configuration")
		}
	}

	log, err := logger.New(cfg.Logging)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to init logger")
	}

	repo, err := repository.NewPostgresRepository(cfg.Database.URL)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer func() {
		_ = repo.Close()
	}()

	log.Info("Running database migrations")
	if err := repo.RunMigrations(); err != nil {
		log.WithError(err).Fatal("Failed to run migrations")
	}

	tokens := auth.NewTokenManager(cfg.Auth.Secret, cfg.TokenTTL())

	var chat notify.ChatSender
	if cfg.Telegram.Token != "" {
		sender, err := notify.NewTelegramSender(cfg.Telegram.Token, log)
		if err != nil {
			log.WithError(err).Fatal("Failed to create Telegram sender")
		}
		chat = sender
	} else {
		log.Warn("Telegram bot token not configured, chat channel disabled")
	}

	dispatcher := notify.NewDispatcher(repo, notify.NewSMTPSender(cfg.SMTP), chat, log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var queue notify.Queue
	var shutdownQueue func()
	if cfg.Kafka.Enabled {
		kq := notify.NewKafkaQueue(cfg.Kafka, dispatcher, log)
		go kq.Run(ctx)
		queue = kq
		shutdownQueue = func() {
			_ = kq.Close()
		}
	} else {
		pool := notify.NewPool(dispatcher, cfg.Notify.Workers, cfg.Notify.QueueSize, log)
		pool.Start(ctx)
		queue = pool
		shutdownQueue = pool.Stop
	}

	var catalog *cache.Catalog
	if cfg.Redis.Address != "" {
		catalog, err = cache.NewCatalog(cfg.Redis, log)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to Redis")
		}
		defer func() {
			_ = catalog.Close()
		}()
	}

	srv := server.New(repo, tokens, queue, catalog, log)

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		log.WithField("addr", cfg.HTTP.Addr).Info("Service Center API started")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Error during shutdown")
	}
	shutdownQueue()
}
