package store

import (
	"context"

	"lending/internal/models"
)

type BorrowerStore struct {
	db DB
}

func NewBorrowerStore(db DB) *BorrowerStore {
	return &BorrowerStore{db: db}
}

type BorrowerInput struct {
	FullName      string
	Address       string
	ContactNumber string
	Notes         *string
	Status        models.BorrowerStatus
}

type BorrowerFilter struct {
	Search string
	Status models.BorrowerStatus
	Page   Page
}

// BorrowerSummary is a list row with loan counts.
type BorrowerSummary struct {
	models.Borrower
	LoansCount       int   `db:"loans_count"`
	ActiveLoansCount int   `db:"active_loans_count"`
	TotalOutstanding int64 `db:"total_outstanding"`
}

type BorrowerOption struct {
	ID       int64  `db:"id" json:"id"`
	FullName string `db:"full_name" json:"full_name"`
}

const borrowerColumns = `b.id, b.full_name, b.address, b.contact_number, b.notes, b.status, b.date_registered, b.created_at, b.updated_at`

func (s *BorrowerStore) Create(ctx context.Context, tx Getter, input BorrowerInput) (models.Borrower, error) {
	var row models.Borrower
	err := tx.GetContext(ctx, &row, `
		INSERT INTO borrowers AS b (full_name, address, contact_number, notes, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+borrowerColumns,
		input.FullName, input.Address, input.ContactNumber, input.Notes, input.Status)
	return row, err
}

func (s *BorrowerStore) GetByID(ctx context.Context, id int64) (models.Borrower, error) {
	return s.get(ctx, s.db, id, "")
}

// GetForUpdate locks the borrower row until the surrounding transaction ends.
func (s *BorrowerStore) GetForUpdate(ctx context.Context, tx Getter, id int64) (models.Borrower, error) {
	return s.get(ctx, tx, id, " FOR UPDATE")
}

func (s *BorrowerStore) get(ctx context.Context, q Getter, id int64, lock string) (models.Borrower, error) {
	var row models.Borrower
	err := q.GetContext(ctx, &row, `SELECT `+borrowerColumns+` FROM borrowers b WHERE b.id = $1`+lock, id)
	return row, err
}

func (s *BorrowerStore) Update(ctx context.Context, tx Getter, id int64, input BorrowerInput) (models.Borrower, error) {
	var row models.Borrower
	err := tx.GetContext(ctx, &row, `
		UPDATE borrowers AS b
		SET full_name = $1, address = $2, contact_number = $3, notes = $4, status = $5, updated_at = NOW()
		WHERE b.id = $6
		RETURNING `+borrowerColumns,
		input.FullName, input.Address, input.ContactNumber, input.Notes, input.Status, id)
	return row, err
}

func (s *BorrowerStore) Delete(ctx context.Context, tx Execer, id int64) (int64, error) {
	res, err := tx.ExecContext(ctx, `DELETE FROM borrowers WHERE id = $1`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *BorrowerStore) CountLoans(ctx context.Context, q Getter, id int64) (int, error) {
	var count int
	err := q.GetContext(ctx, &count, `SELECT COUNT(1) FROM loans WHERE borrower_id = $1`, id)
	return count, err
}

func (s *BorrowerStore) List(ctx context.Context, filter BorrowerFilter) ([]BorrowerSummary, int, error) {
	var c conditions
	if filter.Search != "" {
		c.add(`(b.full_name ILIKE ? OR b.contact_number ILIKE ?)`, likePattern(filter.Search))
	}
	if filter.Status != "" {
		c.add(`b.status = ?`, filter.Status)
	}
	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(1) FROM borrowers b`+c.where(), c.args...); err != nil {
		return nil, 0, err
	}
	suffix, args := c.paginate(filter.Page.normalize(15))
	rows := []BorrowerSummary{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+borrowerColumns+`,
		       COUNT(l.id) AS loans_count,
		       COUNT(l.id) FILTER (WHERE l.status = 'ongoing') AS active_loans_count,
		       COALESCE(SUM(l.remaining_balance) FILTER (WHERE l.status IN ('ongoing', 'overdue')), 0) AS total_outstanding
		FROM borrowers b
		LEFT JOIN loans l ON l.borrower_id = b.id`+c.where()+`
		GROUP BY b.id
		ORDER BY b.created_at DESC, b.id DESC`+suffix, args...)
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (s *BorrowerStore) ListActive(ctx context.Context) ([]BorrowerOption, error) {
	rows := []BorrowerOption{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, full_name
		FROM borrowers
		WHERE status = 'active'
		ORDER BY full_name
	`)
	return rows, err
}
