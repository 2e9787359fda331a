package services

import (
	"context"
	"strconv"
	"strings"

	"lending/internal/db"
	"lending/internal/models"
	"lending/internal/money"
	"lending/internal/store"
	"lending/internal/websocket"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type CapitalStore interface {
	LockLedger(ctx context.Context, tx store.Execer) error
	LatestBalance(ctx context.Context, q store.Getter) (int64, error)
	CurrentBalance(ctx context.Context) (int64, error)
	Insert(ctx context.Context, tx store.Getter, input store.CapitalInput) (models.CapitalTransaction, error)
	Totals(ctx context.Context) (map[models.TransactionType]int64, error)
	List(ctx context.Context, filter store.CapitalFilter) ([]models.CapitalTransaction, int, error)
	ListAfter(ctx context.Context, afterID int64, limit int) ([]models.CapitalTransaction, error)
	SumForReference(ctx context.Context, q store.Getter, ref models.Reference) (int64, error)
}

type CapitalHub interface {
	BroadcastCapital(update websocket.CapitalUpdate)
}

// CapitalService owns the capital ledger. Every balance change is an appended
// entry whose balance_after is computed while the ledger lock is held.
type CapitalService struct {
	txRunner db.TxRunner
	store    CapitalStore
	audit    AuditSink
	hub      CapitalHub
	logger   logrus.FieldLogger
}

func NewCapitalService(txRunner db.TxRunner, capitalStore CapitalStore, audit AuditSink, hub CapitalHub, logger logrus.FieldLogger) *CapitalService {
	if audit == nil {
		audit = noopAudit{}
	}
	return &CapitalService{
		txRunner: txRunner,
		store:    capitalStore,
		audit:    audit,
		hub:      hub,
		logger:   logger,
	}
}

type PostRequest struct {
	Type        models.TransactionType
	Amount      int64
	Description string
	Reference   models.Reference
	// RequireFunds rejects a debit larger than the current balance.
	RequireFunds bool
}

// Balance locks the ledger for the rest of tx and returns the current balance.
func (s *CapitalService) Balance(ctx context.Context, tx store.Tx) (int64, error) {
	if err := s.store.LockLedger(ctx, tx); err != nil {
		return 0, err
	}
	return s.store.LatestBalance(ctx, tx)
}

// Post appends one entry inside the caller's transaction. The ledger lock
// admits one poster at a time until tx ends. A waiter's serializable snapshot
// is taken before the lock is granted, so its balance read can be stale; such a
// transaction fails with a serialization error at commit and the tx runner
// retries it from the top.
func (s *CapitalService) Post(ctx context.Context, tx store.Tx, req PostRequest) (models.CapitalTransaction, error) {
	if req.Amount <= 0 {
		return models.CapitalTransaction{}, ErrInvalidAmount
	}
	sign := req.Type.Sign()
	if sign == 0 {
		return models.CapitalTransaction{}, invalid("type", "unknown transaction type")
	}
	balance, err := s.Balance(ctx, tx)
	if err != nil {
		return models.CapitalTransaction{}, err
	}
	if sign < 0 && req.RequireFunds && req.Amount > balance {
		return models.CapitalTransaction{}, &InsufficientCapitalError{Available: balance}
	}
	var description *string
	if text := strings.TrimSpace(req.Description); text != "" {
		description = &text
	}
	return s.store.Insert(ctx, tx, store.CapitalInput{
		Type:         req.Type,
		Amount:       req.Amount,
		BalanceAfter: balance + sign*req.Amount,
		Description:  description,
		Reference:    req.Reference,
	})
}

// NetForReference is the signed capital effect of all entries tied to ref.
func (s *CapitalService) NetForReference(ctx context.Context, tx store.Tx, ref models.Reference) (int64, error) {
	return s.store.SumForReference(ctx, tx, ref)
}

// Announce pushes a committed entry to live subscribers.
func (s *CapitalService) Announce(entry models.CapitalTransaction) {
	if s.hub == nil || entry.ID == 0 {
		return
	}
	s.hub.BroadcastCapital(websocket.CapitalUpdate{
		TransactionID: entry.ID,
		Type:          string(entry.Type),
		Amount:        money.FormatMinor(entry.Amount),
		Balance:       money.FormatMinor(entry.BalanceAfter),
		PostedAt:      entry.CreatedAt,
	})
}

type CapitalRequest struct {
	ActorID     string
	Amount      int64
	Description string
}

func (s *CapitalService) Deposit(ctx context.Context, req CapitalRequest) (models.CapitalTransaction, error) {
	return s.manual(ctx, req, models.TxDeposit, "Capital deposit", "capital_deposit")
}

func (s *CapitalService) Withdraw(ctx context.Context, req CapitalRequest) (models.CapitalTransaction, error) {
	return s.manual(ctx, req, models.TxWithdrawal, "Capital withdrawal", "capital_withdrawal")
}

func (s *CapitalService) manual(ctx context.Context, req CapitalRequest, txType models.TransactionType, fallback, action string) (models.CapitalTransaction, error) {
	if req.Amount <= 0 {
		return models.CapitalTransaction{}, ErrInvalidAmount
	}
	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = fallback
	}
	var entry models.CapitalTransaction
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		entry, err = s.Post(ctx, tx, PostRequest{
			Type:         txType,
			Amount:       req.Amount,
			Description:  description,
			RequireFunds: true,
		})
		return err
	})
	if err != nil {
		return models.CapitalTransaction{}, err
	}
	s.Announce(entry)
	s.audit.Record(ctx, store.AuditEntry{
		ActorID:    req.ActorID,
		Action:     action,
		EntityType: "capital_transaction",
		EntityID:   strconv.FormatInt(entry.ID, 10),
		NewValues:  entrySnapshot(entry),
	})
	s.logger.WithFields(logrus.Fields{
		"type":          entry.Type,
		"amount":        money.FormatMinor(entry.Amount),
		"balance_after": money.FormatMinor(entry.BalanceAfter),
	}).Info("capital posted")
	return entry, nil
}

func (s *CapitalService) CurrentBalance(ctx context.Context) (int64, error) {
	return s.store.CurrentBalance(ctx)
}

type BalanceSummary struct {
	Current int64
	Totals  map[models.TransactionType]int64
}

func (s *CapitalService) Summary(ctx context.Context) (BalanceSummary, error) {
	current, err := s.store.CurrentBalance(ctx)
	if err != nil {
		return BalanceSummary{}, err
	}
	totals, err := s.store.Totals(ctx)
	if err != nil {
		return BalanceSummary{}, err
	}
	return BalanceSummary{Current: current, Totals: totals}, nil
}

func (s *CapitalService) List(ctx context.Context, filter store.CapitalFilter) ([]models.CapitalTransaction, int, error) {
	return s.store.List(ctx, filter)
}

type LedgerMismatch struct {
	ID       int64
	Stored   int64
	Expected int64
}

type VerifyReport struct {
	Entries    int
	Balance    int64
	Expected   int64
	Mismatches []LedgerMismatch
}

func (r VerifyReport) OK() bool {
	return len(r.Mismatches) == 0 && r.Balance == r.Expected
}

const verifyBatch = 500

// Verify refolds the whole ledger from zero and reports every entry whose
// stored balance_after disagrees with the running sum.
func (s *CapitalService) Verify(ctx context.Context) (VerifyReport, error) {
	report := VerifyReport{Mismatches: []LedgerMismatch{}}
	var running, lastID int64
	for {
		batch, err := s.store.ListAfter(ctx, lastID, verifyBatch)
		if err != nil {
			return VerifyReport{}, err
		}
		for _, entry := range batch {
			running += entry.Type.Sign() * entry.Amount
			if entry.BalanceAfter != running {
				report.Mismatches = append(report.Mismatches, LedgerMismatch{ID: entry.ID, Stored: entry.BalanceAfter, Expected: running})
			}
			report.Balance = entry.BalanceAfter
			lastID = entry.ID
			report.Entries++
		}
		if len(batch) < verifyBatch {
			break
		}
	}
	report.Expected = running
	return report, nil
}

func entrySnapshot(entry models.CapitalTransaction) map[string]any {
	snapshot := map[string]any{
		"id":            entry.ID,
		"type":          entry.Type,
		"amount":        money.FormatMinor(entry.Amount),
		"balance_after": money.FormatMinor(entry.BalanceAfter),
	}
	if entry.Description != nil {
		snapshot["description"] = *entry.Description
	}
	if ref := entry.Reference(); !ref.IsNone() {
		snapshot["reference_type"] = ref.Kind
		snapshot["reference_id"] = ref.ID
	}
	return snapshot
}
