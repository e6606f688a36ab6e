package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/finvault/ledger-service/internal/api"
	"github.com/finvault/ledger-service/internal/config"
	"github.com/finvault/ledger-service/internal/events/kafka"
	"github.com/finvault/ledger-service/internal/interfaces"
	"github.com/finvault/ledger-service/internal/ledger"
	"github.com/finvault/ledger-service/internal/storage/memory"
	"github.com/finvault/ledger-service/internal/storage/postgres"
)

func main() {
	cfg := config.Load()

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	// The store handle is constructed once here and passed down; nothing
	// opens connections at import time.
	var store interfaces.LedgerStore
	switch cfg.Store {
	case "postgres":
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("open database", zap.Error(err))
		}
		defer db.Close()
		store = postgres.NewPostgresLedgerStore(db)
	case "memory":
		store = memory.NewMemoryLedgerStore()
	default:
		logger.Fatal("unknown store backend", zap.String("store", cfg.Store))
	}

	var publisher interfaces.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kp := kafka.NewPublisher(cfg.KafkaBrokers)
		defer kp.Close()
		publisher = kp
	}

	engine := ledger.NewEngine(store, publisher, logger)

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api.NewAPI(engine, store, logger).Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting server",
			zap.String("addr", cfg.HTTPAddr),
			zap.String("store", cfg.Store),
			zap.Bool("events", publisher != nil),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

func newLogger(level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
