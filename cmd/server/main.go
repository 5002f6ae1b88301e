package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ndviet/market-gate/internal/adapter/handler"
	"github.com/ndviet/market-gate/internal/adapter/ledger"
	"github.com/ndviet/market-gate/internal/adapter/storage"
	"github.com/ndviet/market-gate/internal/config"
	"github.com/ndviet/market-gate/internal/core/domain"
	"github.com/ndviet/market-gate/internal/core/service"
	"github.com/ndviet/market-gate/internal/core/store"
	"github.com/ndviet/market-gate/internal/port"
	"github.com/ndviet/market-gate/pkg/logger"
)

const journalWorkers = 4

func main() {
	log := logger.Must(logger.New())
	defer log.Sync()

	cfg, err := config.Load("")
	if err != nil {
		log.Fatal("failed to load config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// MySQL
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		log.Fatal("failed to connect mysql", zap.Error(err))
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		log.Fatal("failed to ping mysql", zap.Error(err))
	}
	log.Info("connected to mysql")

	// Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		PoolSize: 100,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatal("failed to connect redis", zap.Error(err))
	}
	log.Info("connected to redis")

	// Adapters
	idem := storage.NewRedisAdapter(rdb)
	journal := storage.NewMySQLAdapter(db)
	ledgerClient := ledger.NewHTTPClient(cfg.Ledger.HTTPURL, cfg.Ledger.Timeout)
	feed := ledger.NewWSFeed(cfg.Ledger.WSURL, logger.Named(log, "feed"))

	// Core
	st := store.New(logger.Named(log, "store"))
	for _, itemID := range cfg.Market.TrackedItems {
		st.Track(itemID)
	}
	engine := service.NewSyncEngine(st, ledgerClient, logger.Named(log, "sync"))
	gate := service.NewPurchaseGate(st, engine, ledgerClient, idem, cfg.Market.QueueSize, logger.Named(log, "gate"))
	router := service.NewEventRouter(feed, engine, st, logger.Named(log, "router"))
	market := service.NewMarket(st, engine, gate, journal)

	// Warm the store for configured items
	for _, itemID := range cfg.Market.TrackedItems {
		if _, err := engine.Refresh(ctx, itemID); err != nil {
			log.Warn("initial refresh failed", zap.String("item", itemID), zap.Error(err))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := router.Run(gctx)
		if err == context.Canceled {
			return nil
		}
		return err
	})

	// Journal workers drain the gate's record queue
	var wg sync.WaitGroup
	for i := 0; i < journalWorkers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			journalLoop(id, gate.RecordQueue(), journal, log)
		}(i)
	}
	log.Info("started journal workers", zap.Int("count", journalWorkers))

	// HTTP server
	httpHandler := handler.NewHTTPHandler(market)
	mux := http.NewServeMux()
	httpHandler.Register(mux)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: mux,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
			log.Error("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	httpServer.Shutdown(shutdownCtx)
	log.Info("HTTP server stopped")

	cancel()
	if err := g.Wait(); err != nil && err != context.Canceled {
		log.Warn("router stopped with error", zap.Error(err))
	}
	log.Info("event router stopped")

	gate.Close()
	wg.Wait()
	log.Info("journal workers stopped")

	rdb.Close()
	db.Close()
	log.Info("connections closed")
}

func journalLoop(id int, queue <-chan domain.Purchase, journal port.PurchaseJournal, log *zap.Logger) {
	for p := range queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := journal.Record(ctx, p); err != nil {
			log.Error("failed to record purchase",
				zap.Int("worker", id),
				zap.String("request", p.RequestID),
				zap.Error(err))
		}
		cancel()
	}
}
