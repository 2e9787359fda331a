package store

import (
	"context"
	"time"

	"lending/internal/models"
)

type PaymentStore struct {
	db DB
}

func NewPaymentStore(db DB) *PaymentStore {
	return &PaymentStore{db: db}
}

type PaymentFilter struct {
	LoanID   int64
	DateFrom *time.Time
	DateTo   *time.Time
	Page     Page
}

const paymentColumns = `p.id, p.loan_id, b.full_name AS borrower_name, p.payment_date, p.amount_paid,
		       p.balance_after, p.is_late, p.remarks, p.created_at, p.updated_at`

const paymentFrom = ` FROM payments p JOIN loans l ON l.id = p.loan_id JOIN borrowers b ON b.id = l.borrower_id`

func (s *PaymentStore) Create(ctx context.Context, tx Getter, payment models.Payment) (models.Payment, error) {
	var id int64
	err := tx.GetContext(ctx, &id, `
		INSERT INTO payments (loan_id, payment_date, amount_paid, balance_after, is_late, remarks)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`, payment.LoanID, payment.PaymentDate, payment.AmountPaid, payment.BalanceAfter, payment.IsLate, payment.Remarks)
	if err != nil {
		return models.Payment{}, err
	}
	return s.get(ctx, tx, id, "")
}

func (s *PaymentStore) GetByID(ctx context.Context, id int64) (models.Payment, error) {
	return s.get(ctx, s.db, id, "")
}

func (s *PaymentStore) GetForUpdate(ctx context.Context, tx Getter, id int64) (models.Payment, error) {
	return s.get(ctx, tx, id, " FOR UPDATE OF p")
}

func (s *PaymentStore) get(ctx context.Context, q Getter, id int64, lock string) (models.Payment, error) {
	var row models.Payment
	err := q.GetContext(ctx, &row, `SELECT `+paymentColumns+paymentFrom+` WHERE p.id = $1`+lock, id)
	return row, err
}

func (s *PaymentStore) Update(ctx context.Context, tx Execer, payment models.Payment) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE payments
		SET payment_date = $1, amount_paid = $2, balance_after = $3, is_late = $4, remarks = $5, updated_at = NOW()
		WHERE id = $6
	`, payment.PaymentDate, payment.AmountPaid, payment.BalanceAfter, payment.IsLate, payment.Remarks, payment.ID)
	return err
}

func (s *PaymentStore) Delete(ctx context.Context, tx Execer, id int64) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM payments WHERE id = $1`, id)
	return err
}

func (s *PaymentStore) List(ctx context.Context, filter PaymentFilter) ([]models.Payment, int, error) {
	var c conditions
	if filter.LoanID > 0 {
		c.add(`p.loan_id = ?`, filter.LoanID)
	}
	if filter.DateFrom != nil {
		c.add(`p.payment_date >= ?`, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		c.add(`p.payment_date <= ?`, *filter.DateTo)
	}
	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(1)`+paymentFrom+c.where(), c.args...); err != nil {
		return nil, 0, err
	}
	suffix, args := c.paginate(filter.Page.normalize(15))
	rows := []models.Payment{}
	err := s.db.SelectContext(ctx, &rows, `SELECT `+paymentColumns+paymentFrom+c.where()+` ORDER BY p.payment_date DESC, p.id DESC`+suffix, args...)
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (s *PaymentStore) ListByLoan(ctx context.Context, loanID int64) ([]models.Payment, error) {
	rows := []models.Payment{}
	err := s.db.SelectContext(ctx, &rows, `SELECT `+paymentColumns+paymentFrom+` WHERE p.loan_id = $1 ORDER BY p.payment_date ASC, p.id ASC`, loanID)
	return rows, err
}

// ListOnDates returns payments with payment_date in [from, to], newest first.
func (s *PaymentStore) ListOnDates(ctx context.Context, from, to time.Time) ([]models.Payment, error) {
	rows := []models.Payment{}
	err := s.db.SelectContext(ctx, &rows, `SELECT `+paymentColumns+paymentFrom+`
		WHERE p.payment_date BETWEEN $1 AND $2
		ORDER BY p.payment_date DESC, p.created_at DESC, p.id DESC`, from, to)
	return rows, err
}

// Recent returns the most recently recorded payments.
func (s *PaymentStore) Recent(ctx context.Context, limit int) ([]models.Payment, error) {
	rows := []models.Payment{}
	err := s.db.SelectContext(ctx, &rows, `SELECT `+paymentColumns+paymentFrom+` ORDER BY p.created_at DESC, p.id DESC LIMIT $1`, limit)
	return rows, err
}
