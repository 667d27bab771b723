// Package main is the entry point for the low stock notifier. It consumes the
// low stock topic and mails every manager and staff member of the affected store.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"tradeledger/internal/domain/lowstock"
	"tradeledger/internal/infrastructure/directory"
	"tradeledger/internal/infrastructure/mail"
	"tradeledger/internal/infrastructure/messaging/kafka"
	"tradeledger/internal/infrastructure/metrics"
	"tradeledger/pkg/config"
	"tradeledger/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       cfg.App.LogLevel,
		Development: cfg.App.IsDevelopment(),
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logger.SetDefault(log)
	log = log.WithComponent("notifier")

	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), log))
	defer cancel()

	log.Infow("starting low stock notifier",
		"brokers", cfg.Kafka.Brokers,
		"topic", cfg.Kafka.LowStockTopic,
		"group", cfg.Kafka.GroupID,
		"workers", cfg.Notifier.Workers,
	)

	m := metrics.New("tradeledger-notifier")

	dirCfg := directory.DefaultConfig(cfg.Directory.URL)
	dirCfg.Timeout = cfg.Directory.Timeout
	users := directory.NewClient(dirCfg, log)

	var sender lowstock.Sender = lowstock.LogSender{}
	if cfg.SMTP.Host != "" {
		sender = mail.NewSender(mail.Config{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	} else {
		log.Warn("SMTP_HOST is empty, notifications are logged instead of mailed")
	}

	consumer := lowstock.NewConsumer(users, sender, m)

	kafkaCfg := kafka.DefaultConfig(cfg.Kafka.Brokers, cfg.Kafka.LowStockTopic)
	kafkaCfg.DLQTopic = cfg.Kafka.DLQTopic
	kafkaCfg.GroupID = cfg.Kafka.GroupID
	kafkaCfg.Workers = cfg.Notifier.Workers
	kafkaCfg.MaxRedeliveries = cfg.Notifier.MaxRedeliveries
	kafkaCfg.RedeliveryBackoff = cfg.Notifier.RedeliveryBackoff
	group := kafka.NewConsumerGroup(kafkaCfg, consumer)

	metricsServer := &http.Server{
		Addr:              cfg.Notifier.MetricsAddr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("metrics server failed", "error", err)
		}
	}()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := group.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Errorw("consumer group stopped", "error", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down notifier...")
	cancel()
	wg.Wait()

	shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
	defer stop()
	_ = metricsServer.Shutdown(shutdownCtx)

	log.Info("notifier stopped")
}
