package services

import (
	"context"
	"strconv"
	"strings"

	"lending/internal/calendar"
	"lending/internal/clock"
	"lending/internal/db"
	"lending/internal/models"
	"lending/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type BorrowerStore interface {
	Create(ctx context.Context, tx store.Getter, input store.BorrowerInput) (models.Borrower, error)
	GetByID(ctx context.Context, id int64) (models.Borrower, error)
	GetForUpdate(ctx context.Context, tx store.Getter, id int64) (models.Borrower, error)
	Update(ctx context.Context, tx store.Getter, id int64, input store.BorrowerInput) (models.Borrower, error)
	Delete(ctx context.Context, tx store.Execer, id int64) (int64, error)
	CountLoans(ctx context.Context, q store.Getter, id int64) (int, error)
	List(ctx context.Context, filter store.BorrowerFilter) ([]store.BorrowerSummary, int, error)
	ListActive(ctx context.Context) ([]store.BorrowerOption, error)
}

type BorrowerLoanLister interface {
	ListByBorrower(ctx context.Context, borrowerID int64) ([]models.Loan, error)
}

type BorrowerService struct {
	txRunner  db.TxRunner
	borrowers BorrowerStore
	loans     BorrowerLoanLister
	audit     AuditSink
	clock     clock.Clock
	logger    logrus.FieldLogger
}

func NewBorrowerService(txRunner db.TxRunner, borrowers BorrowerStore, loans BorrowerLoanLister, audit AuditSink, clk clock.Clock, logger logrus.FieldLogger) *BorrowerService {
	if audit == nil {
		audit = noopAudit{}
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &BorrowerService{txRunner: txRunner, borrowers: borrowers, loans: loans, audit: audit, clock: clk, logger: logger}
}

func normalizeBorrower(input store.BorrowerInput) (store.BorrowerInput, error) {
	input.FullName = strings.TrimSpace(input.FullName)
	input.Address = strings.TrimSpace(input.Address)
	input.ContactNumber = strings.TrimSpace(input.ContactNumber)
	if input.FullName == "" {
		return input, invalid("full_name", "is required")
	}
	if input.Address == "" {
		return input, invalid("address", "is required")
	}
	if input.ContactNumber == "" {
		return input, invalid("contact_number", "is required")
	}
	if input.Status == "" {
		input.Status = models.BorrowerActive
	}
	if !input.Status.Valid() {
		return input, invalid("status", "must be active or inactive")
	}
	if input.Notes != nil {
		input.Notes = optionalText(*input.Notes)
	}
	return input, nil
}

func (s *BorrowerService) Create(ctx context.Context, actorID string, input store.BorrowerInput) (models.Borrower, error) {
	input, err := normalizeBorrower(input)
	if err != nil {
		return models.Borrower{}, err
	}
	var borrower models.Borrower
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		borrower, err = s.borrowers.Create(ctx, tx, input)
		return err
	})
	if err != nil {
		return models.Borrower{}, err
	}
	s.audit.Record(ctx, store.AuditEntry{
		ActorID:    actorID,
		Action:     "created",
		EntityType: "borrower",
		EntityID:   strconv.FormatInt(borrower.ID, 10),
		NewValues:  borrowerSnapshot(borrower),
	})
	return borrower, nil
}

type BorrowerDetail struct {
	Borrower models.Borrower
	Loans    []models.Loan
}

func (s *BorrowerService) Get(ctx context.Context, id int64) (BorrowerDetail, error) {
	borrower, err := s.borrowers.GetByID(ctx, id)
	if err != nil {
		return BorrowerDetail{}, mapNoRows(err, "borrower", id)
	}
	loans, err := s.loans.ListByBorrower(ctx, id)
	if err != nil {
		return BorrowerDetail{}, err
	}
	now := s.clock.Now()
	for i := range loans {
		loans[i].Status = DeriveStatus(loans[i], now)
	}
	return BorrowerDetail{Borrower: borrower, Loans: loans}, nil
}

func (s *BorrowerService) Update(ctx context.Context, actorID string, id int64, input store.BorrowerInput) (models.Borrower, error) {
	input, err := normalizeBorrower(input)
	if err != nil {
		return models.Borrower{}, err
	}
	var before, after models.Borrower
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		before, err = s.borrowers.GetForUpdate(ctx, tx, id)
		if err != nil {
			return mapNoRows(err, "borrower", id)
		}
		after, err = s.borrowers.Update(ctx, tx, id, input)
		return err
	})
	if err != nil {
		return models.Borrower{}, err
	}
	s.audit.Record(ctx, store.AuditEntry{
		ActorID:    actorID,
		Action:     "updated",
		EntityType: "borrower",
		EntityID:   strconv.FormatInt(id, 10),
		OldValues:  borrowerSnapshot(before),
		NewValues:  borrowerSnapshot(after),
	})
	return after, nil
}

// Delete removes a borrower without loan history. Borrowers with loans are
// kept so that ledger references stay resolvable; deactivate them instead.
func (s *BorrowerService) Delete(ctx context.Context, actorID string, id int64) error {
	var borrower models.Borrower
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		borrower, err = s.borrowers.GetForUpdate(ctx, tx, id)
		if err != nil {
			return mapNoRows(err, "borrower", id)
		}
		count, err := s.borrowers.CountLoans(ctx, tx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrBorrowerHasLoans
		}
		_, err = s.borrowers.Delete(ctx, tx, id)
		if db.IsForeignKeyViolation(err) {
			return ErrBorrowerHasLoans
		}
		return err
	})
	if err != nil {
		return err
	}
	s.audit.Record(ctx, store.AuditEntry{
		ActorID:    actorID,
		Action:     "deleted",
		EntityType: "borrower",
		EntityID:   strconv.FormatInt(id, 10),
		OldValues:  borrowerSnapshot(borrower),
	})
	s.logger.WithField("borrower_id", id).Info("borrower deleted")
	return nil
}

func (s *BorrowerService) List(ctx context.Context, filter store.BorrowerFilter) ([]store.BorrowerSummary, int, error) {
	return s.borrowers.List(ctx, filter)
}

func (s *BorrowerService) Options(ctx context.Context) ([]store.BorrowerOption, error) {
	return s.borrowers.ListActive(ctx)
}

func borrowerSnapshot(b models.Borrower) map[string]any {
	snapshot := map[string]any{
		"full_name":       b.FullName,
		"address":         b.Address,
		"contact_number":  b.ContactNumber,
		"status":          b.Status,
		"date_registered": calendar.Format(b.DateRegistered),
	}
	if b.Notes != nil {
		snapshot["notes"] = *b.Notes
	}
	return snapshot
}
