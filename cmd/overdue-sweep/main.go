package main

import (
	"context"
	"time"

	"lending/internal/clock"
	"lending/internal/config"
	"lending/internal/db"
	"lending/internal/logging"
	"lending/internal/services"
	"lending/internal/store"
)

// overdue-sweep marks past-due loans overdue once and exits. Suitable for an
// external cron when the server's scheduler is not running.
func main() {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect database")
	}
	defer database.Close()

	txRunner := db.NewTxRunner(database, log).WithMaxAttempts(cfg.TxMaxAttempts)
	loans := services.NewLoanService(txRunner, store.NewLoanStore(database), store.NewBorrowerStore(database),
		store.NewPaymentStore(database), nil, nil, clock.System{}, log)
	n, err := loans.SweepOverdue(ctx)
	if err != nil {
		log.WithError(err).Fatal("overdue sweep failed")
	}
	log.WithField("loans", n).Info("overdue sweep complete")
}
