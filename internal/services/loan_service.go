package services

import (
	"context"
	"strconv"
	"time"

	"lending/internal/amortization"
	"lending/internal/calendar"
	"lending/internal/clock"
	"lending/internal/db"
	"lending/internal/models"
	"lending/internal/money"
	"lending/internal/store"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type LoanStore interface {
	Create(ctx context.Context, tx store.Getter, loan models.Loan) (models.Loan, error)
	GetByID(ctx context.Context, id int64) (models.Loan, error)
	GetForUpdate(ctx context.Context, tx store.Getter, id int64) (models.Loan, error)
	UpdateBalance(ctx context.Context, tx store.Execer, id int64, remaining int64, status models.LoanStatus) error
	List(ctx context.Context, filter store.LoanFilter) ([]models.Loan, int, error)
	SweepOverdue(ctx context.Context, exec store.Execer, today time.Time) (int64, error)
}

type BorrowerLocker interface {
	GetForUpdate(ctx context.Context, tx store.Getter, id int64) (models.Borrower, error)
}

type LoanPaymentLister interface {
	ListByLoan(ctx context.Context, loanID int64) ([]models.Payment, error)
}

// Ledger is the slice of CapitalService that settlement code posts through.
type Ledger interface {
	Balance(ctx context.Context, tx store.Tx) (int64, error)
	Post(ctx context.Context, tx store.Tx, req PostRequest) (models.CapitalTransaction, error)
	NetForReference(ctx context.Context, tx store.Tx, ref models.Reference) (int64, error)
	Announce(entry models.CapitalTransaction)
}

type LoanService struct {
	txRunner  db.TxRunner
	loans     LoanStore
	borrowers BorrowerLocker
	payments  LoanPaymentLister
	ledger    Ledger
	audit     AuditSink
	clock     clock.Clock
	logger    logrus.FieldLogger
}

func NewLoanService(txRunner db.TxRunner, loans LoanStore, borrowers BorrowerLocker, payments LoanPaymentLister, ledger Ledger, audit AuditSink, clk clock.Clock, logger logrus.FieldLogger) *LoanService {
	if audit == nil {
		audit = noopAudit{}
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &LoanService{
		txRunner:  txRunner,
		loans:     loans,
		borrowers: borrowers,
		payments:  payments,
		ledger:    ledger,
		audit:     audit,
		clock:     clk,
		logger:    logger,
	}
}

type LoanTerms struct {
	Principal   int64
	Interest    int64
	Term        int
	TermType    calendar.TermType
	ReleaseDate time.Time
}

func (t LoanTerms) validate() error {
	if !amortization.ValidTerm(t.Term) {
		return ErrInvalidTerm
	}
	if t.Principal <= 0 {
		return ErrInvalidAmount
	}
	if t.Interest < 0 {
		return invalid("interest_amount", "must not be negative")
	}
	if !t.TermType.Valid() {
		return invalid("term_type", "must be one of daily, semi_monthly, weeks, months")
	}
	if t.ReleaseDate.IsZero() {
		return invalid("release_date", "is required")
	}
	return nil
}

// LoanQuote is everything derivable from loan terms without touching storage.
type LoanQuote struct {
	amortization.Calculation
	DueDate    time.Time
	Schedule   []amortization.Installment
	Reconciled []amortization.Installment
}

func (s *LoanService) Calculate(terms LoanTerms) (LoanQuote, error) {
	if err := terms.validate(); err != nil {
		return LoanQuote{}, err
	}
	return quote(terms)
}

func quote(terms LoanTerms) (LoanQuote, error) {
	calc, err := amortization.Calculate(terms.Principal, terms.Interest, terms.Term)
	if err != nil {
		return LoanQuote{}, err
	}
	dueDate, err := amortization.DueDate(terms.ReleaseDate, terms.Term, terms.TermType)
	if err != nil {
		return LoanQuote{}, err
	}
	schedule, err := amortization.Schedule(terms.ReleaseDate, terms.Term, terms.TermType, calc.PaymentPerPeriod)
	if err != nil {
		return LoanQuote{}, err
	}
	return LoanQuote{
		Calculation: calc,
		DueDate:     dueDate,
		Schedule:    schedule,
		Reconciled:  amortization.Reconcile(schedule, calc.TotalPayable),
	}, nil
}

type ReleaseLoanRequest struct {
	ActorID    string
	BorrowerID int64
	LoanTerms
}

// ReleaseLoan creates the loan and debits the released principal from capital
// in one transaction.
func (s *LoanService) ReleaseLoan(ctx context.Context, req ReleaseLoanRequest) (models.Loan, error) {
	if req.BorrowerID <= 0 {
		return models.Loan{}, invalid("borrower_id", "is required")
	}
	if err := req.validate(); err != nil {
		return models.Loan{}, err
	}
	q, err := quote(req.LoanTerms)
	if err != nil {
		return models.Loan{}, err
	}

	var loan models.Loan
	var entry models.CapitalTransaction
	err = s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		borrower, err := s.borrowers.GetForUpdate(ctx, tx, req.BorrowerID)
		if err != nil {
			return mapNoRows(err, "borrower", req.BorrowerID)
		}
		if borrower.Status == models.BorrowerInactive {
			return invalid("borrower_id", "borrower is inactive")
		}
		available, err := s.ledger.Balance(ctx, tx)
		if err != nil {
			return err
		}
		if req.Principal > available {
			return &InsufficientCapitalError{Available: available}
		}
		loan, err = s.loans.Create(ctx, tx, models.Loan{
			BorrowerID:       borrower.ID,
			LoanAmount:       req.Principal,
			InterestAmount:   req.Interest,
			LoanTerm:         req.Term,
			TermType:         req.TermType,
			ReleaseDate:      calendar.DateOf(req.ReleaseDate),
			DueDate:          q.DueDate,
			TotalInterest:    q.TotalInterest,
			TotalPayable:     q.TotalPayable,
			PaymentPerPeriod: q.PaymentPerPeriod,
			RemainingBalance: q.TotalPayable,
			Status:           models.LoanOngoing,
		})
		if err != nil {
			return err
		}
		entry, err = s.ledger.Post(ctx, tx, PostRequest{
			Type:         models.TxLoanRelease,
			Amount:       req.Principal,
			Description:  "Loan released to " + borrower.FullName,
			Reference:    models.LoanRef(loan.ID),
			RequireFunds: true,
		})
		return err
	})
	if err != nil {
		return models.Loan{}, err
	}

	s.ledger.Announce(entry)
	s.audit.Record(ctx, store.AuditEntry{
		ActorID:    req.ActorID,
		Action:     "loan_released",
		EntityType: "loan",
		EntityID:   strconv.FormatInt(loan.ID, 10),
		NewValues:  loanSnapshot(loan),
	})
	s.logger.WithFields(logrus.Fields{
		"loan_id":     loan.ID,
		"borrower_id": loan.BorrowerID,
		"principal":   money.FormatMinor(loan.LoanAmount),
		"due_date":    calendar.Format(loan.DueDate),
	}).Info("loan released")
	return loan, nil
}

type LoanDetail struct {
	Loan             models.Loan
	Payments         []models.Payment
	Schedule         []amortization.Installment
	Reconciled       []amortization.Installment
	TotalPaid        int64
	RemainingPeriods int
}

func (s *LoanService) GetLoan(ctx context.Context, id int64) (LoanDetail, error) {
	loan, err := s.loans.GetByID(ctx, id)
	if err != nil {
		return LoanDetail{}, mapNoRows(err, "loan", id)
	}
	loan.Status = DeriveStatus(loan, s.clock.Now())
	payments, err := s.payments.ListByLoan(ctx, id)
	if err != nil {
		return LoanDetail{}, err
	}
	schedule, err := amortization.Schedule(loan.ReleaseDate, loan.LoanTerm, loan.TermType, loan.PaymentPerPeriod)
	if err != nil {
		return LoanDetail{}, err
	}
	var paid int64
	for _, payment := range payments {
		paid += payment.AmountPaid
	}
	return LoanDetail{
		Loan:             loan,
		Payments:         payments,
		Schedule:         schedule,
		Reconciled:       amortization.Reconcile(schedule, loan.TotalPayable),
		TotalPaid:        paid,
		RemainingPeriods: amortization.RemainingPeriods(loan.RemainingBalance, loan.PaymentPerPeriod),
	}, nil
}

// ListLoans returns loans with their status derived at read time. A status
// filter sweeps first so that stored statuses are current.
func (s *LoanService) ListLoans(ctx context.Context, filter store.LoanFilter) ([]models.Loan, int, error) {
	if filter.Status != "" {
		if _, err := s.SweepOverdue(ctx); err != nil {
			s.logger.WithError(err).Warn("overdue sweep before listing failed")
		}
	}
	loans, total, err := s.loans.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	now := s.clock.Now()
	for i := range loans {
		loans[i].Status = DeriveStatus(loans[i], now)
	}
	return loans, total, nil
}

// SweepOverdue persists the overdue status of every unpaid loan whose due date
// has passed. Running it again changes nothing.
func (s *LoanService) SweepOverdue(ctx context.Context) (int64, error) {
	now := s.clock.Now()
	today := calendar.DateOf(now)
	if !PastDue(today, now) {
		today = today.AddDate(0, 0, -1)
	}
	var updated int64
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		updated, err = s.loans.SweepOverdue(ctx, tx, today)
		return err
	})
	if err != nil {
		return 0, err
	}
	if updated > 0 {
		s.logger.WithFields(logrus.Fields{"updated": updated, "today": calendar.Format(today)}).Info("loans marked overdue")
	}
	return updated, nil
}

func loanSnapshot(loan models.Loan) map[string]any {
	return map[string]any{
		"borrower_id":        loan.BorrowerID,
		"loan_amount":        money.FormatMinor(loan.LoanAmount),
		"interest_amount":    money.FormatMinor(loan.InterestAmount),
		"loan_term":          loan.LoanTerm,
		"term_type":          loan.TermType,
		"release_date":       calendar.Format(loan.ReleaseDate),
		"due_date":           calendar.Format(loan.DueDate),
		"total_payable":      money.FormatMinor(loan.TotalPayable),
		"payment_per_period": money.FormatMinor(loan.PaymentPerPeriod),
		"remaining_balance":  money.FormatMinor(loan.RemainingBalance),
		"status":             loan.Status,
	}
}
