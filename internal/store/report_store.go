package store

import (
	"context"
	"time"
)

type ReportStore struct {
	db DB
}

func NewReportStore(db DB) *ReportStore {
	return &ReportStore{db: db}
}

type DashboardStats struct {
	TotalActiveLoans     int   `db:"total_active_loans"`
	TotalReleasedCapital int64 `db:"total_released_capital"`
	TotalCollections     int64 `db:"total_collections"`
	OutstandingBalance   int64 `db:"outstanding_balance"`
	OverdueLoansCount    int   `db:"overdue_loans_count"`
	TotalBorrowers       int   `db:"total_borrowers"`
	ActiveBorrowers      int   `db:"active_borrowers"`
}

type MonthTotal struct {
	Month time.Time `db:"month"`
	Total int64     `db:"total"`
}

type ReleaseTotals struct {
	Count     int   `db:"loan_count"`
	Principal int64 `db:"principal"`
	Interest  int64 `db:"interest"`
}

func (s *ReportStore) DashboardStats(ctx context.Context) (DashboardStats, error) {
	var stats DashboardStats
	err := s.db.GetContext(ctx, &stats, `
		SELECT
			(SELECT COUNT(1) FROM loans WHERE status = 'ongoing') AS total_active_loans,
			(SELECT COALESCE(SUM(loan_amount), 0) FROM loans) AS total_released_capital,
			(SELECT COALESCE(SUM(amount_paid), 0) FROM payments) AS total_collections,
			(SELECT COALESCE(SUM(remaining_balance), 0) FROM loans WHERE status IN ('ongoing', 'overdue')) AS outstanding_balance,
			(SELECT COUNT(1) FROM loans WHERE status = 'overdue') AS overdue_loans_count,
			(SELECT COUNT(1) FROM borrowers) AS total_borrowers,
			(SELECT COUNT(1) FROM borrowers WHERE status = 'active') AS active_borrowers
	`)
	return stats, err
}

// MonthlyCollections sums payments per calendar month from since onward.
func (s *ReportStore) MonthlyCollections(ctx context.Context, since time.Time) ([]MonthTotal, error) {
	rows := []MonthTotal{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT date_trunc('month', payment_date)::date AS month, COALESCE(SUM(amount_paid), 0) AS total
		FROM payments
		WHERE payment_date >= $1
		GROUP BY 1
		ORDER BY 1
	`, since)
	return rows, err
}

// MonthlyReleases sums released principal per calendar month from since onward.
func (s *ReportStore) MonthlyReleases(ctx context.Context, since time.Time) ([]MonthTotal, error) {
	rows := []MonthTotal{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT date_trunc('month', release_date)::date AS month, COALESCE(SUM(loan_amount), 0) AS total
		FROM loans
		WHERE release_date >= $1
		GROUP BY 1
		ORDER BY 1
	`, since)
	return rows, err
}

// ReleasesBetween totals loans released in [from, to).
func (s *ReportStore) ReleasesBetween(ctx context.Context, from, to time.Time) (ReleaseTotals, error) {
	var totals ReleaseTotals
	err := s.db.GetContext(ctx, &totals, `
		SELECT COUNT(1) AS loan_count,
		       COALESCE(SUM(loan_amount), 0) AS principal,
		       COALESCE(SUM(total_interest), 0) AS interest
		FROM loans
		WHERE release_date >= $1 AND release_date < $2
	`, from, to)
	return totals, err
}
