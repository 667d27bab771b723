// Package main is the entry point for the trade ledger API server.
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

	"tradeledger/internal/core/tx"
	"tradeledger/internal/domain/audit"
	"tradeledger/internal/domain/auth"
	"tradeledger/internal/domain/catalog"
	"tradeledger/internal/domain/inventory"
	"tradeledger/internal/domain/lowstock"
	"tradeledger/internal/domain/obligation"
	"tradeledger/internal/domain/order"
	"tradeledger/internal/domain/payment"
	"tradeledger/internal/domain/settlement"
	"tradeledger/internal/domain/transfer"
	"tradeledger/internal/infrastructure/activity"
	v1 "tradeledger/internal/infrastructure/http/v1"
	"tradeledger/internal/infrastructure/http/v1/handlers"
	"tradeledger/internal/infrastructure/http/v1/middleware"
	"tradeledger/internal/infrastructure/messaging/kafka"
	"tradeledger/internal/infrastructure/metrics"
	"tradeledger/internal/infrastructure/storage/memory"
	"tradeledger/internal/infrastructure/storage/postgres"
	"tradeledger/internal/infrastructure/storage/postgres/catalog_repo"
	"tradeledger/internal/infrastructure/storage/postgres/document_repo"
	"tradeledger/internal/infrastructure/storage/postgres/register_repo"
	"tradeledger/pkg/config"
	"tradeledger/pkg/logger"
	"tradeledger/pkg/resilience"
)

var version = "dev"

// repositories is the storage the engines run on: PostgreSQL, or the in-memory
// store when no database is configured in development.
type repositories struct {
	txm         tx.Manager
	catalog     catalog.Repository
	inventory   inventory.Repository
	orders      order.Repository
	obligations obligation.Repository
	payments    payment.Repository
	transfers   transfer.Repository
	db          handlers.Pinger
	close       func()
}

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

	ctx := logger.WithLogger(context.Background(), log)
	log.Infow("starting tradeledger server", "version", version, "env", cfg.App.Env)

	repos, err := openStorage(ctx, cfg, log)
	if err != nil {
		log.Fatalw("failed to open storage", "error", err)
	}
	defer repos.close()

	m := metrics.New("tradeledger-api")

	// --- Low stock pipeline ---
	kafkaCfg := kafka.DefaultConfig(cfg.Kafka.Brokers, cfg.Kafka.LowStockTopic)
	publisher := kafka.NewPublisher(kafkaCfg)
	defer publisher.Close()

	producer := lowstock.NewProducer(repos.catalog, publisher, lowstock.ProducerConfig{
		Timeout: cfg.Publish.Timeout,
		Retry: resilience.RetryConfig{
			MaxAttempts:   cfg.Publish.MaxAttempts,
			InitialDelay:  cfg.Publish.InitialDelay,
			MaxDelay:      cfg.Publish.MaxDelay,
			BackoffFactor: 2,
		},
	}, m)

	var recorder audit.Recorder = audit.NopRecorder{}
	if cfg.Activity.URL != "" {
		recorder = activity.NewClient(cfg.Activity.URL, cfg.Activity.Timeout)
	}

	// --- Ledger engines ---
	stock := inventory.NewLedger(repos.inventory, repos.txm)
	obligations := obligation.NewLedger(repos.obligations, repos.txm)

	settlementEngine := settlement.NewEngine(settlement.Deps{
		TxManager:   repos.txm,
		Orders:      repos.orders,
		Catalog:     repos.catalog,
		Inventory:   stock,
		Obligations: obligations,
		Payments:    repos.payments,
		LowStock:    producer,
		Activity:    recorder,
	})
	paymentEngine := payment.NewEngine(repos.txm, repos.payments, repos.orders, obligations, recorder)
	transferEngine := transfer.NewEngine(repos.txm, repos.transfers, repos.catalog, stock, producer, recorder)

	// --- Router ---
	var validator middleware.JWTValidator
	if cfg.JWT.Secret != "" {
		jwtCfg := auth.DefaultJWTConfig(cfg.JWT.Secret)
		if cfg.JWT.Issuer != "" {
			jwtCfg.Issuer = cfg.JWT.Issuer
		}
		validator = auth.NewJWTService(jwtCfg)
	} else if cfg.App.IsDevelopment() {
		log.Warn("JWT_SECRET is empty, authentication is disabled")
	} else {
		log.Fatal("JWT_SECRET is required outside development")
	}

	router := v1.NewRouter(v1.RouterConfig{
		Logger:       log,
		JWTValidator: validator,
		Metrics:      m,
		DB:           repos.db,
		Version:      version,
		Settlement:   settlementEngine,
		Payments:     paymentEngine,
		Transfers:    transferEngine,
		Inventory:    stock,
	})

	// --- HTTP Server ---
	server := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "addr", cfg.HTTP.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorw("server forced to shutdown", "error", err)
	}

	// Queued low stock publishes finish before the writer closes.
	producer.Close()
	log.Info("server stopped")
}

func openStorage(ctx context.Context, cfg *config.Config, log *logger.Logger) (*repositories, error) {
	if cfg.DB.DatabaseURL == "" && cfg.App.IsDevelopment() {
		f := memory.NewFixture()
		log.Warnw("DATABASE_URL is empty, using the in-memory store with demo data",
			"company_id", f.CompanyID,
			"store_a", f.ShopA.ID,
			"store_b", f.ShopB.ID,
			"customer_id", f.Customer,
			"supplier_id", f.Supplier,
		)
		return &repositories{
			txm:         f,
			catalog:     f.Catalog(),
			inventory:   f.Inventory(),
			orders:      f.Orders(),
			obligations: f.Obligations(),
			payments:    f.Payments(),
			transfers:   f.Transfers(),
			close:       func() {},
		}, nil
	}

	poolCfg := postgres.DefaultPoolConfig(cfg.DB.ConnectionString())
	poolCfg.MaxConns = int32(cfg.DB.MaxConns)
	poolCfg.MinConns = int32(cfg.DB.MinConns)
	poolCfg.MaxConnLifetime = cfg.DB.MaxConnLifetime

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, err
	}
	postgres.LogPoolStats(ctx, pool)

	txm := postgres.NewTxManager(pool)
	if cfg.DB.ApplySchema {
		if err := postgres.ApplySchema(ctx, txm); err != nil {
			pool.Close()
			return nil, fmt.Errorf("apply schema: %w", err)
		}
	}

	return &repositories{
		txm:         txm,
		catalog:     catalog_repo.NewRepo(txm),
		inventory:   register_repo.NewInventoryRepo(txm),
		orders:      document_repo.NewOrderRepo(txm),
		obligations: register_repo.NewObligationRepo(txm),
		payments:    document_repo.NewPaymentRepo(txm),
		transfers:   document_repo.NewTransferRepo(txm),
		db:          pool,
		close:       pool.Close,
	}, nil
}
