package store

import (
	"context"
	"time"

	"lending/internal/models"

	"github.com/lib/pq"
)

// ledgerLockKey identifies the capital ledger's transaction-scoped advisory lock.
const ledgerLockKey int64 = 0x4c454447 // "LEDG"

type CapitalStore struct {
	db DB
}

func NewCapitalStore(db DB) *CapitalStore {
	return &CapitalStore{db: db}
}

type CapitalFilter struct {
	Types    []models.TransactionType
	DateFrom *time.Time
	DateTo   *time.Time
	Page     Page
}

type CapitalInput struct {
	Type         models.TransactionType
	Amount       int64
	BalanceAfter int64
	Description  *string
	Reference    models.Reference
}

const capitalColumns = `id, type, amount, balance_after, description, reference_type, reference_id, created_at`

// LockLedger blocks until no other transaction holds the ledger lock. The lock
// is released when tx commits or rolls back. It orders writers but does not
// refresh tx's snapshot.
func (s *CapitalStore) LockLedger(ctx context.Context, tx Execer) error {
	_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, ledgerLockKey)
	return err
}

func (s *CapitalStore) CurrentBalance(ctx context.Context) (int64, error) {
	return s.LatestBalance(ctx, s.db)
}

// LatestBalance is the balance_after of the newest entry, or 0 for an empty ledger.
func (s *CapitalStore) LatestBalance(ctx context.Context, q Getter) (int64, error) {
	var balance int64
	err := q.GetContext(ctx, &balance, `
		SELECT COALESCE((SELECT balance_after FROM capital_transactions ORDER BY id DESC LIMIT 1), 0)
	`)
	return balance, err
}

func (s *CapitalStore) Insert(ctx context.Context, tx Getter, input CapitalInput) (models.CapitalTransaction, error) {
	refType, refID := input.Reference.Columns()
	var row models.CapitalTransaction
	err := tx.GetContext(ctx, &row, `
		INSERT INTO capital_transactions (type, amount, balance_after, description, reference_type, reference_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+capitalColumns,
		input.Type, input.Amount, input.BalanceAfter, input.Description, refType, refID)
	return row, err
}

func (s *CapitalStore) GetByID(ctx context.Context, id int64) (models.CapitalTransaction, error) {
	var row models.CapitalTransaction
	err := s.db.GetContext(ctx, &row, `SELECT `+capitalColumns+` FROM capital_transactions WHERE id = $1`, id)
	return row, err
}

type typeTotal struct {
	Type  models.TransactionType `db:"type"`
	Total int64                  `db:"total"`
}

// Totals sums amounts per transaction type over the whole ledger.
func (s *CapitalStore) Totals(ctx context.Context) (map[models.TransactionType]int64, error) {
	var rows []typeTotal
	err := s.db.SelectContext(ctx, &rows, `
		SELECT type, COALESCE(SUM(amount), 0) AS total
		FROM capital_transactions
		GROUP BY type
	`)
	if err != nil {
		return nil, err
	}
	totals := make(map[models.TransactionType]int64, len(models.TransactionTypes))
	for _, txType := range models.TransactionTypes {
		totals[txType] = 0
	}
	for _, row := range rows {
		totals[row.Type] = row.Total
	}
	return totals, nil
}

func (s *CapitalStore) List(ctx context.Context, filter CapitalFilter) ([]models.CapitalTransaction, int, error) {
	var c conditions
	if len(filter.Types) > 0 {
		types := make([]string, 0, len(filter.Types))
		for _, txType := range filter.Types {
			types = append(types, string(txType))
		}
		c.add(`type = ANY(?)`, pq.Array(types))
	}
	if filter.DateFrom != nil {
		c.add(`created_at >= ?`, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		c.add(`created_at < ?`, filter.DateTo.AddDate(0, 0, 1))
	}
	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(1) FROM capital_transactions`+c.where(), c.args...); err != nil {
		return nil, 0, err
	}
	suffix, args := c.paginate(filter.Page.normalize(20))
	rows := []models.CapitalTransaction{}
	err := s.db.SelectContext(ctx, &rows, `SELECT `+capitalColumns+` FROM capital_transactions`+c.where()+` ORDER BY id DESC`+suffix, args...)
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// ListAfter returns up to limit entries with id > afterID in insertion order.
func (s *CapitalStore) ListAfter(ctx context.Context, afterID int64, limit int) ([]models.CapitalTransaction, error) {
	rows := []models.CapitalTransaction{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+capitalColumns+`
		FROM capital_transactions
		WHERE id > $1
		ORDER BY id ASC
		LIMIT $2
	`, afterID, limit)
	return rows, err
}

// SumForReference nets the capital effect of every entry tied to ref.
func (s *CapitalStore) SumForReference(ctx context.Context, q Getter, ref models.Reference) (int64, error) {
	refType, refID := ref.Columns()
	if refType == nil {
		return 0, nil
	}
	var sum int64
	err := q.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(CASE WHEN type IN ('deposit', 'payment_received') THEN amount ELSE -amount END), 0)
		FROM capital_transactions
		WHERE reference_type = $1 AND reference_id = $2
	`, *refType, *refID)
	return sum, err
}
