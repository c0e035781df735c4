package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/friendcoin/friendcoin/internal/config"
	"github.com/friendcoin/friendcoin/internal/infra"
	"github.com/friendcoin/friendcoin/internal/ledger"
	"github.com/friendcoin/friendcoin/internal/loans"
	"github.com/friendcoin/friendcoin/internal/logging"
	"github.com/friendcoin/friendcoin/internal/notification"
)

const sweepTimeout = time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)
	ctx := context.Background()

	var store ledger.Store
	if cfg.DatabaseURL != "" {
		db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("connect postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		store = ledger.NewPostgresStore(db, cfg.TotalBaseCoins)
	} else {
		logger.Warn("DATABASE_URL not set, sweeping an empty in-memory ledger", "env", cfg.AppEnv)
		store = ledger.NewInMemory(cfg.TotalBaseCoins)
	}

	engine := ledger.NewEngine(store, ledger.WithTaxRate(cfg.TransferTaxRate), ledger.WithLoanTerm(cfg.LoanTermMonths))
	svc := loans.NewService(engine, notification.NewLoggerNotifier(logger), nil, logger)

	c := cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	_, err = c.AddFunc(cfg.OverdueSchedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		if _, err := svc.NotifyOverdue(ctx); err != nil {
			logger.Error("overdue loan sweep failed", "error", err)
		}
	})
	if err != nil {
		logger.Error("schedule overdue loan sweep", "schedule", cfg.OverdueSchedule, "error", err)
		os.Exit(1)
	}

	c.Start()
	logger.Info("scheduler started", "overdue_schedule", cfg.OverdueSchedule)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down scheduler")
	<-c.Stop().Done()
	logger.Info("scheduler stopped")
}
