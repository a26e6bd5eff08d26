package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carlosjeferson/e-commerce/internal/app"
	"github.com/carlosjeferson/e-commerce/internal/auth"
	"github.com/carlosjeferson/e-commerce/internal/clock"
	"github.com/carlosjeferson/e-commerce/internal/config"
	"github.com/carlosjeferson/e-commerce/internal/events"
	"github.com/carlosjeferson/e-commerce/internal/metrics"
	"github.com/carlosjeferson/e-commerce/internal/obs"
	"github.com/carlosjeferson/e-commerce/internal/storage/memory"
	"github.com/carlosjeferson/e-commerce/internal/storage/postgres"
	transporthttp "github.com/carlosjeferson/e-commerce/internal/transport/http"
	"github.com/carlosjeferson/e-commerce/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	envPath, envErr := config.LoadEnvFile()
	cfg := config.Load()
	logger := obs.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	switch {
	case envErr != nil:
		logger.Warn("failed to load .env", "error", envErr)
	case envPath == "":
		logger.Warn(".env not found in current or parent directories")
	default:
		logger.Info("loaded env file", "path", envPath)
	}
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("api stopped", "error", err)
		os.Exit(1)
	}
}

type productStore interface {
	app.ProductStore
	app.CatalogRepository
}

type orderStore interface {
	app.OrderStore
	app.OrderReader
}

type outboxStore interface {
	app.OutboxWriter
	events.OutboxStore
}

type stores struct {
	uow      app.UnitOfWork
	products productStore
	orders   orderStore
	users    app.UserRepository
	outbox   outboxStore
	close    func()
}

func openStores(ctx context.Context, cfg config.Config, logger *slog.Logger) (stores, error) {
	if cfg.UseMemoryStore() {
		logger.Warn("using in-memory store, data is lost on restart")
		st := memory.New()
		return stores{uow: st, products: st, orders: st.Orders(), users: st, outbox: st, close: func() {}}, nil
	}

	startupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, cfg.DatabaseURL)
	if err != nil {
		return stores{}, fmt.Errorf("connect to db: %w", err)
	}
	if err := pool.Ping(startupCtx); err != nil {
		pool.Close()
		return stores{}, fmt.Errorf("db ping: %w", err)
	}
	applied, err := migrations.Apply(startupCtx, pool)
	if err != nil {
		pool.Close()
		return stores{}, fmt.Errorf("apply migrations: %w", err)
	}
	for _, name := range applied {
		logger.Info("migration applied", "name", name)
	}

	return stores{
		uow:      postgres.NewUnitOfWork(pool),
		products: postgres.NewProductRepository(pool),
		orders:   postgres.NewOrderRepository(pool),
		users:    postgres.NewUserRepository(pool),
		outbox:   postgres.NewOutboxRepository(pool),
		close:    pool.Close,
	}, nil
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer st.close()

	clk := clock.NewSystem()
	authn, err := auth.NewAuthenticator([]byte(cfg.JWTSecret), cfg.TokenTTL, clk)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	accounts := app.NewAccountService(st.users, auth.NewBcryptHasher(), authn, clk)
	if cfg.AdminEmail != "" && cfg.AdminPassword != "" {
		admin, err := accounts.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword)
		if err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		logger.Info("admin account ready", "user_id", admin.ID, "email", admin.Email)
	}

	tx := app.NewCheckoutTransaction(st.uow, st.products, st.orders, clk, app.WithOutbox(st.outbox))
	checkout := app.NewCheckoutService(tx,
		app.WithCheckoutTimeout(cfg.CheckoutTimeout),
		app.WithMaxCartItems(cfg.MaxCartItems),
		app.WithCheckoutObserver(m),
		app.WithCheckoutLogger(logger),
	)

	relayDone := make(chan struct{})
	if cfg.KafkaEnabled() {
		writer := events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Warn("kafka writer close", "error", err)
			}
		}()
		relay := events.NewRelay(st.outbox, events.NewKafkaPublisher(writer),
			events.WithPollInterval(cfg.OutboxPollInterval),
			events.WithBatchSize(cfg.OutboxBatchSize),
			events.WithRelayObserver(m),
			events.WithRelayLogger(logger),
		)
		go func() {
			defer close(relayDone)
			relay.Run(ctx)
		}()
		logger.Info("outbox relay started", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		close(relayDone)
		logger.Info("KAFKA_BROKERS not set, order events stay in the outbox")
	}

	handler := transporthttp.NewRouter(transporthttp.Deps{
		Catalog:        app.NewCatalogService(st.products, clk),
		Accounts:       accounts,
		Checkout:       checkout,
		Orders:         app.NewOrderQueryService(st.orders),
		Verifier:       authn,
		Metrics:        m,
		MetricsHandler: metrics.Handler(reg),
		Logger:         logger,
		CORSOrigins:    cfg.CORSOrigins,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("api listening", "port", cfg.Port)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server error: %w", err)
		}
		stop()
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", "error", err)
	}
	<-relayDone
	logger.Info("server stopped")
	return runErr
}
