package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lending/internal/cache"
	"lending/internal/clock"
	"lending/internal/config"
	"lending/internal/db"
	"lending/internal/handlers"
	"lending/internal/logging"
	"lending/internal/scheduler"
	"lending/internal/services"
	"lending/internal/store"
	"lending/internal/websocket"

	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("failed to connect database")
	}
	defer database.Close()

	var redisClient *redis.Client
	var reportCache services.Cache = services.NoCache{}
	var sweepLocker scheduler.Locker
	if cfg.Redis.Enabled() {
		redisClient, err = cache.Connect(ctx, cfg.Redis)
		if err != nil {
			logger.WithError(err).Warn("redis unavailable; running without cache and sweep lock")
		} else {
			defer redisClient.Close()
			reportCache = cache.NewRedis(redisClient)
			sweepLocker = scheduler.NewRedisLocker(redisClient)
		}
	}

	clk := clock.System{}
	txRunner := db.NewTxRunner(database, logger).WithMaxAttempts(cfg.TxMaxAttempts)
	hub := websocket.NewHub()

	admins := store.NewAdminStore(database)
	auditStore := store.NewAuditStore(database)
	borrowerStore := store.NewBorrowerStore(database)
	loanStore := store.NewLoanStore(database)
	paymentStore := store.NewPaymentStore(database)
	capitalStore := store.NewCapitalStore(database)
	reportStore := store.NewReportStore(database)

	audit := services.NewDashboardInvalidator(services.NewAuditRecorder(auditStore, database, logger), reportCache, logger)
	capital := services.NewCapitalService(txRunner, capitalStore, audit, hub, logger)
	loans := services.NewLoanService(txRunner, loanStore, borrowerStore, paymentStore, capital, audit, clk, logger)
	var paymentOpts []services.PaymentOption
	if !cfg.Ledger.CompensatePaymentEdits {
		paymentOpts = append(paymentOpts, services.WithoutCompensation())
	}
	payments := services.NewPaymentService(txRunner, paymentStore, loanStore, capital, audit, clk, logger, paymentOpts...)
	borrowers := services.NewBorrowerService(txRunner, borrowerStore, loanStore, audit, clk, logger)
	reports := services.NewReportService(reportStore, loanStore, paymentStore, borrowerStore, loans, reportCache, clk, logger)

	sched, err := scheduler.New(cfg.Scheduler.OverdueSweepSpec, loans, sweepLocker, cfg.Scheduler.LockTTL, logger)
	if err != nil {
		logger.WithError(err).Fatal("invalid overdue sweep schedule")
	}
	sched.Start()

	handler := handlers.New(cfg, logger, handlers.Deps{
		TxRunner:  txRunner,
		Admins:    admins,
		Audit:     auditStore,
		Borrowers: borrowers,
		Loans:     loans,
		Payments:  payments,
		Capital:   capital,
		Reports:   reports,
		Hub:       hub,
	})
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.WithField("addr", server.Addr).Info("lending API listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Fatal("server error")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	sched.Stop(shutdownCtx)
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown error")
	}
}
