package store

import (
	"context"
	"time"

	"lending/internal/models"
)

type LoanStore struct {
	db DB
}

func NewLoanStore(db DB) *LoanStore {
	return &LoanStore{db: db}
}

type LoanFilter struct {
	Search     string
	Status     models.LoanStatus
	BorrowerID int64
	Page       Page
}

const loanColumns = `l.id, l.borrower_id, b.full_name AS borrower_name, l.loan_amount, l.interest_amount,
		       l.loan_term, l.term_type, l.release_date, l.due_date, l.total_interest, l.total_payable,
		       l.payment_per_period, l.remaining_balance, l.status, l.created_at, l.updated_at`

func (s *LoanStore) Create(ctx context.Context, tx Getter, loan models.Loan) (models.Loan, error) {
	var id int64
	err := tx.GetContext(ctx, &id, `
		INSERT INTO loans (borrower_id, loan_amount, interest_amount, loan_term, term_type, release_date, due_date,
		                   total_interest, total_payable, payment_per_period, remaining_balance, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`, loan.BorrowerID, loan.LoanAmount, loan.InterestAmount, loan.LoanTerm, loan.TermType, loan.ReleaseDate, loan.DueDate,
		loan.TotalInterest, loan.TotalPayable, loan.PaymentPerPeriod, loan.RemainingBalance, loan.Status)
	if err != nil {
		return models.Loan{}, err
	}
	return s.get(ctx, tx, id, "")
}

func (s *LoanStore) GetByID(ctx context.Context, id int64) (models.Loan, error) {
	return s.get(ctx, s.db, id, "")
}

// GetForUpdate locks the loan row so concurrent payments against it serialize.
func (s *LoanStore) GetForUpdate(ctx context.Context, tx Getter, id int64) (models.Loan, error) {
	return s.get(ctx, tx, id, " FOR UPDATE OF l")
}

func (s *LoanStore) get(ctx context.Context, q Getter, id int64, lock string) (models.Loan, error) {
	var row models.Loan
	err := q.GetContext(ctx, &row, `
		SELECT `+loanColumns+`
		FROM loans l
		JOIN borrowers b ON b.id = l.borrower_id
		WHERE l.id = $1`+lock, id)
	return row, err
}

func (s *LoanStore) UpdateBalance(ctx context.Context, tx Execer, id int64, remaining int64, status models.LoanStatus) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE loans
		SET remaining_balance = $1, status = $2, updated_at = NOW()
		WHERE id = $3
	`, remaining, status, id)
	return err
}

func (s *LoanStore) List(ctx context.Context, filter LoanFilter) ([]models.Loan, int, error) {
	var c conditions
	if filter.Search != "" {
		c.add(`b.full_name ILIKE ?`, likePattern(filter.Search))
	}
	if filter.Status != "" {
		c.add(`l.status = ?`, filter.Status)
	}
	if filter.BorrowerID > 0 {
		c.add(`l.borrower_id = ?`, filter.BorrowerID)
	}
	from := ` FROM loans l JOIN borrowers b ON b.id = l.borrower_id` + c.where()
	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(1)`+from, c.args...); err != nil {
		return nil, 0, err
	}
	suffix, args := c.paginate(filter.Page.normalize(15))
	rows := []models.Loan{}
	err := s.db.SelectContext(ctx, &rows, `SELECT `+loanColumns+from+` ORDER BY l.created_at DESC, l.id DESC`+suffix, args...)
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (s *LoanStore) ListByBorrower(ctx context.Context, borrowerID int64) ([]models.Loan, error) {
	rows := []models.Loan{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+loanColumns+`
		FROM loans l
		JOIN borrowers b ON b.id = l.borrower_id
		WHERE l.borrower_id = $1
		ORDER BY l.release_date DESC, l.id DESC
	`, borrowerID)
	return rows, err
}

// ListOverdue returns overdue loans, oldest due date first.
func (s *LoanStore) ListOverdue(ctx context.Context) ([]models.Loan, error) {
	rows := []models.Loan{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+loanColumns+`
		FROM loans l
		JOIN borrowers b ON b.id = l.borrower_id
		WHERE l.status = 'overdue'
		ORDER BY l.due_date ASC, l.id ASC
	`)
	return rows, err
}

// SweepOverdue marks every unpaid ongoing loan due on or before today as overdue.
// Running it again with the same date changes nothing.
func (s *LoanStore) SweepOverdue(ctx context.Context, exec Execer, today time.Time) (int64, error) {
	res, err := exec.ExecContext(ctx, `
		UPDATE loans
		SET status = 'overdue', updated_at = NOW()
		WHERE status = 'ongoing' AND remaining_balance > 0 AND due_date <= $1
	`, today)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Recent returns the most recently created loans.
func (s *LoanStore) Recent(ctx context.Context, limit int) ([]models.Loan, error) {
	rows := []models.Loan{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+loanColumns+`
		FROM loans l
		JOIN borrowers b ON b.id = l.borrower_id
		ORDER BY l.created_at DESC, l.id DESC
		LIMIT $1
	`, limit)
	return rows, err
}
