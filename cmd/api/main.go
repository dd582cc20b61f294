package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/safar/storefront/internal/api"
	"github.com/safar/storefront/internal/cache"
	"github.com/safar/storefront/internal/checkout"
	"github.com/safar/storefront/internal/config"
	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/events"
	"github.com/safar/storefront/internal/metrics"
)

const serviceName = "storefront-api"

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	db, err := database.NewConnection(&cfg.Database)
	if err != nil {
		return err
	}
	pool := database.NewPool(db)
	defer pool.Close()

	logger.Info("connected to database",
		"max_open_conns", cfg.Database.MaxOpenConns,
		"max_idle_conns", cfg.Database.MaxIdleConns,
	)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db, "storefront"),
	)
	m := metrics.New(reg)

	coordinator := checkout.NewCoordinator(pool,
		checkout.WithLogger(logger),
		checkout.WithMetrics(m),
		checkout.WithMaxRetries(cfg.Order.MaxRetries),
	)

	var orderCache cache.Orders = cache.Noop{}
	if cfg.Redis.Addr != "" {
		rdb := cache.NewClient(cfg.Redis.Addr)
		defer rdb.Close()

		rc := cache.NewRedis(rdb, cfg.Redis.OrderTTL)
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		if err := rc.Ping(pingCtx); err != nil {
			logger.Warn("redis unreachable, order reads go to postgres until it recovers", "addr", cfg.Redis.Addr, "error", err)
		}
		cancel()
		orderCache = rc
	}

	var publisher events.Publisher = events.Noop{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, serviceName, 1024, logger)
		kp.Start()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := kp.Close(ctx); err != nil {
				logger.Error("flush order events", "error", err)
			}
		}()
		publisher = kp
		logger.Info("publishing order events", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	handler := api.NewRouter(api.Deps{
		DB:             pool.DB(),
		Pinger:         db,
		Orders:         coordinator,
		Events:         publisher,
		Cache:          orderCache,
		Metrics:        m,
		Gatherer:       reg,
		Logger:         logger,
		Currency:       cfg.Order.Currency.String(),
		RequestTimeout: cfg.Server.RequestTimeout,
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Server.Port)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
