package services

import (
	"context"
	"strconv"
	"strings"
	"time"

	"lending/internal/calendar"
	"lending/internal/clock"
	"lending/internal/db"
	"lending/internal/models"
	"lending/internal/money"
	"lending/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type PaymentStore interface {
	Create(ctx context.Context, tx store.Getter, payment models.Payment) (models.Payment, error)
	GetByID(ctx context.Context, id int64) (models.Payment, error)
	GetForUpdate(ctx context.Context, tx store.Getter, id int64) (models.Payment, error)
	Update(ctx context.Context, tx store.Execer, payment models.Payment) error
	Delete(ctx context.Context, tx store.Execer, id int64) error
	List(ctx context.Context, filter store.PaymentFilter) ([]models.Payment, int, error)
}

type LoanLocker interface {
	GetForUpdate(ctx context.Context, tx store.Getter, id int64) (models.Loan, error)
	UpdateBalance(ctx context.Context, tx store.Execer, id int64, remaining int64, status models.LoanStatus) error
}

// PaymentService settles payments against loans. Every operation changes the
// payment, the loan balance and the capital ledger in a single transaction.
type PaymentService struct {
	txRunner   db.TxRunner
	payments   PaymentStore
	loans      LoanLocker
	ledger     Ledger
	audit      AuditSink
	clock      clock.Clock
	logger     logrus.FieldLogger
	compensate bool
}

type PaymentOption func(*PaymentService)

// WithoutCompensation leaves the ledger untouched when a payment is edited or
// deleted.
func WithoutCompensation() PaymentOption {
	return func(s *PaymentService) {
		s.compensate = false
	}
}

func NewPaymentService(txRunner db.TxRunner, payments PaymentStore, loans LoanLocker, ledger Ledger, audit AuditSink, clk clock.Clock, logger logrus.FieldLogger, opts ...PaymentOption) *PaymentService {
	if audit == nil {
		audit = noopAudit{}
	}
	if clk == nil {
		clk = clock.System{}
	}
	s := &PaymentService{
		txRunner:   txRunner,
		payments:   payments,
		loans:      loans,
		ledger:     ledger,
		audit:      audit,
		clock:      clk,
		logger:     logger,
		compensate: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type RecordPaymentRequest struct {
	ActorID     string
	LoanID      int64
	Amount      int64
	PaymentDate time.Time
	Remarks     string
}

func (s *PaymentService) RecordPayment(ctx context.Context, req RecordPaymentRequest) (models.Payment, error) {
	if req.LoanID <= 0 {
		return models.Payment{}, invalid("loan_id", "is required")
	}
	if req.Amount <= 0 {
		return models.Payment{}, ErrInvalidAmount
	}
	if req.PaymentDate.IsZero() {
		return models.Payment{}, invalid("payment_date", "is required")
	}

	var payment models.Payment
	var entry models.CapitalTransaction
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		loan, err := s.loans.GetForUpdate(ctx, tx, req.LoanID)
		if err != nil {
			return mapNoRows(err, "loan", req.LoanID)
		}
		if req.Amount > loan.RemainingBalance {
			return ErrExceedsBalance
		}
		balanceAfter := loan.RemainingBalance - req.Amount
		payment, err = s.payments.Create(ctx, tx, models.Payment{
			LoanID:       loan.ID,
			PaymentDate:  calendar.DateOf(req.PaymentDate),
			AmountPaid:   req.Amount,
			BalanceAfter: balanceAfter,
			IsLate:       IsLate(req.PaymentDate, loan.DueDate),
			Remarks:      optionalText(req.Remarks),
		})
		if err != nil {
			return err
		}
		status := loan.Status
		if balanceAfter <= 0 {
			status = models.LoanFullyPaid
		}
		if err := s.loans.UpdateBalance(ctx, tx, loan.ID, balanceAfter, status); err != nil {
			return err
		}
		entry, err = s.ledger.Post(ctx, tx, PostRequest{
			Type:        models.TxPaymentReceived,
			Amount:      req.Amount,
			Description: "Payment from " + loan.BorrowerName,
			Reference:   models.PaymentRef(payment.ID),
		})
		return err
	})
	if err != nil {
		return models.Payment{}, err
	}

	s.ledger.Announce(entry)
	s.audit.Record(ctx, store.AuditEntry{
		ActorID:    req.ActorID,
		Action:     "created",
		EntityType: "payment",
		EntityID:   strconv.FormatInt(payment.ID, 10),
		NewValues:  paymentSnapshot(payment),
	})
	s.logger.WithFields(logrus.Fields{
		"payment_id":    payment.ID,
		"loan_id":       payment.LoanID,
		"amount":        money.FormatMinor(payment.AmountPaid),
		"balance_after": money.FormatMinor(payment.BalanceAfter),
		"late":          payment.IsLate,
	}).Info("payment recorded")
	return payment, nil
}

type EditPaymentRequest struct {
	ActorID     string
	PaymentID   int64
	Amount      int64
	PaymentDate time.Time
	Remarks     string
}

// EditPayment changes a payment's amount or date. The loan balance moves by the
// difference; with compensation enabled the ledger does too.
func (s *PaymentService) EditPayment(ctx context.Context, req EditPaymentRequest) (models.Payment, error) {
	if req.Amount <= 0 {
		return models.Payment{}, ErrInvalidAmount
	}
	if req.PaymentDate.IsZero() {
		return models.Payment{}, invalid("payment_date", "is required")
	}

	var before, after models.Payment
	var entry models.CapitalTransaction
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		before, err = s.payments.GetForUpdate(ctx, tx, req.PaymentID)
		if err != nil {
			return mapNoRows(err, "payment", req.PaymentID)
		}
		loan, err := s.loans.GetForUpdate(ctx, tx, before.LoanID)
		if err != nil {
			return mapNoRows(err, "loan", before.LoanID)
		}
		difference := req.Amount - before.AmountPaid
		newBalance := loan.RemainingBalance - difference
		if newBalance < 0 {
			return ErrExceedsBalance
		}

		after = before
		after.AmountPaid = req.Amount
		after.PaymentDate = calendar.DateOf(req.PaymentDate)
		after.BalanceAfter = newBalance
		after.IsLate = IsLate(req.PaymentDate, loan.DueDate)
		after.Remarks = optionalText(req.Remarks)
		if err := s.payments.Update(ctx, tx, after); err != nil {
			return err
		}

		loan.RemainingBalance = newBalance
		if err := s.loans.UpdateBalance(ctx, tx, loan.ID, newBalance, DeriveStatus(loan, s.clock.Now())); err != nil {
			return err
		}

		if !s.compensate || difference == 0 {
			return nil
		}
		correction := PostRequest{
			Type:        models.TxPaymentReceived,
			Amount:      difference,
			Description: "Payment correction for " + loan.BorrowerName,
			Reference:   models.PaymentRef(before.ID),
		}
		if difference < 0 {
			correction.Type = models.TxPaymentReversal
			correction.Amount = -difference
		}
		entry, err = s.ledger.Post(ctx, tx, correction)
		return err
	})
	if err != nil {
		return models.Payment{}, err
	}

	s.ledger.Announce(entry)
	s.audit.Record(ctx, store.AuditEntry{
		ActorID:    req.ActorID,
		Action:     "updated",
		EntityType: "payment",
		EntityID:   strconv.FormatInt(after.ID, 10),
		OldValues:  paymentSnapshot(before),
		NewValues:  paymentSnapshot(after),
	})
	s.logger.WithFields(logrus.Fields{
		"payment_id": after.ID,
		"loan_id":    after.LoanID,
		"old_amount": money.FormatMinor(before.AmountPaid),
		"new_amount": money.FormatMinor(after.AmountPaid),
	}).Info("payment edited")
	return after, nil
}

type DeletePaymentRequest struct {
	ActorID   string
	PaymentID int64
}

// DeletePayment restores the payment to the loan balance and removes it. With
// compensation enabled the capital it brought in is reversed.
func (s *PaymentService) DeletePayment(ctx context.Context, req DeletePaymentRequest) error {
	var payment models.Payment
	var entry models.CapitalTransaction
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		payment, err = s.payments.GetForUpdate(ctx, tx, req.PaymentID)
		if err != nil {
			return mapNoRows(err, "payment", req.PaymentID)
		}
		loan, err := s.loans.GetForUpdate(ctx, tx, payment.LoanID)
		if err != nil {
			return mapNoRows(err, "loan", payment.LoanID)
		}
		loan.RemainingBalance += payment.AmountPaid
		if err := s.loans.UpdateBalance(ctx, tx, loan.ID, loan.RemainingBalance, DeriveStatus(loan, s.clock.Now())); err != nil {
			return err
		}
		if s.compensate {
			net, err := s.ledger.NetForReference(ctx, tx, models.PaymentRef(payment.ID))
			if err != nil {
				return err
			}
			if net > 0 {
				entry, err = s.ledger.Post(ctx, tx, PostRequest{
					Type:        models.TxPaymentReversal,
					Amount:      net,
					Description: "Payment reversed for " + loan.BorrowerName,
					Reference:   models.PaymentRef(payment.ID),
				})
				if err != nil {
					return err
				}
			}
		}
		return s.payments.Delete(ctx, tx, payment.ID)
	})
	if err != nil {
		return err
	}

	s.ledger.Announce(entry)
	s.audit.Record(ctx, store.AuditEntry{
		ActorID:    req.ActorID,
		Action:     "deleted",
		EntityType: "payment",
		EntityID:   strconv.FormatInt(payment.ID, 10),
		OldValues:  paymentSnapshot(payment),
	})
	s.logger.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"loan_id":    payment.LoanID,
		"amount":     money.FormatMinor(payment.AmountPaid),
	}).Info("payment deleted")
	return nil
}

func (s *PaymentService) GetPayment(ctx context.Context, id int64) (models.Payment, error) {
	payment, err := s.payments.GetByID(ctx, id)
	if err != nil {
		return models.Payment{}, mapNoRows(err, "payment", id)
	}
	return payment, nil
}

func (s *PaymentService) ListPayments(ctx context.Context, filter store.PaymentFilter) ([]models.Payment, int, error) {
	return s.payments.List(ctx, filter)
}

func optionalText(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func paymentSnapshot(payment models.Payment) map[string]any {
	snapshot := map[string]any{
		"loan_id":       payment.LoanID,
		"payment_date":  calendar.Format(payment.PaymentDate),
		"amount_paid":   money.FormatMinor(payment.AmountPaid),
		"balance_after": money.FormatMinor(payment.BalanceAfter),
		"is_late":       payment.IsLate,
	}
	if payment.Remarks != nil {
		snapshot["remarks"] = *payment.Remarks
	}
	return snapshot
}
