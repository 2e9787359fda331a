package services

import (
	"context"
	"encoding/json"
	"time"

	"lending/internal/calendar"
	"lending/internal/clock"
	"lending/internal/models"
	"lending/internal/store"

	"github.com/sirupsen/logrus"
)

// Cache stores short-lived serialized report results.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type ReportStore interface {
	DashboardStats(ctx context.Context) (store.DashboardStats, error)
	MonthlyCollections(ctx context.Context, since time.Time) ([]store.MonthTotal, error)
	MonthlyReleases(ctx context.Context, since time.Time) ([]store.MonthTotal, error)
	ReleasesBetween(ctx context.Context, from, to time.Time) (store.ReleaseTotals, error)
}

type ReportLoans interface {
	Recent(ctx context.Context, limit int) ([]models.Loan, error)
	ListOverdue(ctx context.Context) ([]models.Loan, error)
	ListByBorrower(ctx context.Context, borrowerID int64) ([]models.Loan, error)
}

type ReportPayments interface {
	Recent(ctx context.Context, limit int) ([]models.Payment, error)
	ListOnDates(ctx context.Context, from, to time.Time) ([]models.Payment, error)
	ListByLoan(ctx context.Context, loanID int64) ([]models.Payment, error)
}

type BorrowerGetter interface {
	GetByID(ctx context.Context, id int64) (models.Borrower, error)
}

type OverdueSweeper interface {
	SweepOverdue(ctx context.Context) (int64, error)
}

const (
	dashboardCacheKey = "lending:dashboard:stats"
	dashboardCacheTTL = 30 * time.Second
	recentLimit       = 5
	chartMonths       = 12
)

type ReportService struct {
	reports   ReportStore
	loans     ReportLoans
	payments  ReportPayments
	borrowers BorrowerGetter
	sweeper   OverdueSweeper
	cache     Cache
	clock     clock.Clock
	logger    logrus.FieldLogger
}

func NewReportService(reports ReportStore, loans ReportLoans, payments ReportPayments, borrowers BorrowerGetter, sweeper OverdueSweeper, cache Cache, clk clock.Clock, logger logrus.FieldLogger) *ReportService {
	if cache == nil {
		cache = NoCache{}
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &ReportService{
		reports:   reports,
		loans:     loans,
		payments:  payments,
		borrowers: borrowers,
		sweeper:   sweeper,
		cache:     cache,
		clock:     clk,
		logger:    logger,
	}
}

// NoCache never hits; used when redis is not configured.
type NoCache struct{}

func (NoCache) Get(context.Context, string) ([]byte, bool, error) { return nil, false, nil }

func (NoCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (NoCache) Delete(context.Context, ...string) error { return nil }

// DashboardInvalidator is an AuditSink that drops the cached dashboard figures
// whenever a mutation is recorded, then forwards the record.
type DashboardInvalidator struct {
	next   AuditSink
	cache  Cache
	logger logrus.FieldLogger
}

func NewDashboardInvalidator(next AuditSink, cache Cache, logger logrus.FieldLogger) *DashboardInvalidator {
	if next == nil {
		next = noopAudit{}
	}
	if cache == nil {
		cache = NoCache{}
	}
	return &DashboardInvalidator{next: next, cache: cache, logger: logger}
}

func (d *DashboardInvalidator) Record(ctx context.Context, entry store.AuditEntry) {
	if err := d.cache.Delete(context.WithoutCancel(ctx), dashboardCacheKey); err != nil {
		d.logger.WithError(err).WithField("action", entry.Action).Warn("dashboard cache invalidation failed")
	}
	d.next.Record(ctx, entry)
}

func (s *ReportService) sweep(ctx context.Context) {
	if s.sweeper == nil {
		return
	}
	if _, err := s.sweeper.SweepOverdue(ctx); err != nil {
		s.logger.WithError(err).Warn("overdue sweep failed")
	}
}

// Dashboard returns headline figures. A cache miss sweeps overdue loans first
// so the overdue count is current.
func (s *ReportService) Dashboard(ctx context.Context) (store.DashboardStats, error) {
	if raw, ok, err := s.cache.Get(ctx, dashboardCacheKey); err != nil {
		s.logger.WithError(err).Warn("dashboard cache read failed")
	} else if ok {
		var stats store.DashboardStats
		if err := json.Unmarshal(raw, &stats); err == nil {
			return stats, nil
		}
	}
	s.sweep(ctx)
	stats, err := s.reports.DashboardStats(ctx)
	if err != nil {
		return store.DashboardStats{}, err
	}
	if raw, err := json.Marshal(stats); err == nil {
		if err := s.cache.Set(ctx, dashboardCacheKey, raw, dashboardCacheTTL); err != nil {
			s.logger.WithError(err).Warn("dashboard cache write failed")
		}
	}
	return stats, nil
}

type ChartPoint struct {
	Month       time.Time
	Collections int64
	Releases    int64
}

// MonthlyChart covers the current month and the eleven before it; months with
// no activity are zero.
func (s *ReportService) MonthlyChart(ctx context.Context) ([]ChartPoint, error) {
	today := calendar.DateOf(s.clock.Now())
	first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(chartMonths - 1), 0)
	collections, err := s.reports.MonthlyCollections(ctx, first)
	if err != nil {
		return nil, err
	}
	releases, err := s.reports.MonthlyReleases(ctx, first)
	if err != nil {
		return nil, err
	}
	byMonth := func(rows []store.MonthTotal) map[string]int64 {
		out := make(map[string]int64, len(rows))
		for _, row := range rows {
			out[row.Month.Format("2006-01")] += row.Total
		}
		return out
	}
	c, r := byMonth(collections), byMonth(releases)
	points := make([]ChartPoint, 0, chartMonths)
	for i := 0; i < chartMonths; i++ {
		month := first.AddDate(0, i, 0)
		key := month.Format("2006-01")
		points = append(points, ChartPoint{Month: month, Collections: c[key], Releases: r[key]})
	}
	return points, nil
}

type RecentActivity struct {
	Loans    []models.Loan
	Payments []models.Payment
}

func (s *ReportService) RecentActivity(ctx context.Context) (RecentActivity, error) {
	loans, err := s.loans.Recent(ctx, recentLimit)
	if err != nil {
		return RecentActivity{}, err
	}
	now := s.clock.Now()
	for i := range loans {
		loans[i].Status = DeriveStatus(loans[i], now)
	}
	payments, err := s.payments.Recent(ctx, recentLimit)
	if err != nil {
		return RecentActivity{}, err
	}
	return RecentActivity{Loans: loans, Payments: payments}, nil
}

type DailyCollections struct {
	Date     time.Time
	Payments []models.Payment
	Total    int64
}

// DailyCollections lists the payments dated on date. A zero date means today.
func (s *ReportService) DailyCollections(ctx context.Context, date time.Time) (DailyCollections, error) {
	if date.IsZero() {
		date = s.clock.Now()
	}
	day := calendar.DateOf(date)
	payments, err := s.payments.ListOnDates(ctx, day, day)
	if err != nil {
		return DailyCollections{}, err
	}
	var total int64
	for _, p := range payments {
		total += p.AmountPaid
	}
	return DailyCollections{Date: day, Payments: payments, Total: total}, nil
}

type MonthlyIncome struct {
	Year             int
	Month            time.Month
	TotalCollections int64
	LoansReleased    int64
	InterestEarned   int64
	LoanCount        int
	Payments         []models.Payment
}

func (s *ReportService) MonthlyIncome(ctx context.Context, year int, month time.Month) (MonthlyIncome, error) {
	if year == 0 || month == 0 {
		now := s.clock.Now()
		year, month = now.Year(), now.Month()
	}
	if month < time.January || month > time.December {
		return MonthlyIncome{}, invalid("month", "must be between 1 and 12")
	}
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)
	payments, err := s.payments.ListOnDates(ctx, from, to.AddDate(0, 0, -1))
	if err != nil {
		return MonthlyIncome{}, err
	}
	releases, err := s.reports.ReleasesBetween(ctx, from, to)
	if err != nil {
		return MonthlyIncome{}, err
	}
	income := MonthlyIncome{
		Year:           year,
		Month:          month,
		LoansReleased:  releases.Principal,
		InterestEarned: releases.Interest,
		LoanCount:      releases.Count,
		Payments:       payments,
	}
	for _, p := range payments {
		income.TotalCollections += p.AmountPaid
	}
	return income, nil
}

type LedgerLine struct {
	Loan      models.Loan
	Payments  []models.Payment
	TotalPaid int64
	Remaining int64
}

type BorrowerLedger struct {
	Borrower models.Borrower
	Lines    []LedgerLine
}

// BorrowerLedger lists every loan of a borrower with its payments.
func (s *ReportService) BorrowerLedger(ctx context.Context, borrowerID int64) (BorrowerLedger, error) {
	borrower, err := s.borrowers.GetByID(ctx, borrowerID)
	if err != nil {
		return BorrowerLedger{}, mapNoRows(err, "borrower", borrowerID)
	}
	loans, err := s.loans.ListByBorrower(ctx, borrowerID)
	if err != nil {
		return BorrowerLedger{}, err
	}
	now := s.clock.Now()
	ledger := BorrowerLedger{Borrower: borrower, Lines: make([]LedgerLine, 0, len(loans))}
	for _, loan := range loans {
		loan.Status = DeriveStatus(loan, now)
		payments, err := s.payments.ListByLoan(ctx, loan.ID)
		if err != nil {
			return BorrowerLedger{}, err
		}
		line := LedgerLine{Loan: loan, Payments: payments, Remaining: loan.RemainingBalance}
		for _, p := range payments {
			line.TotalPaid += p.AmountPaid
		}
		ledger.Lines = append(ledger.Lines, line)
	}
	return ledger, nil
}

type OverdueAccount struct {
	Loan        models.Loan
	DaysOverdue int
}

// OverdueAccounts sweeps, then lists overdue loans oldest first.
func (s *ReportService) OverdueAccounts(ctx context.Context) ([]OverdueAccount, error) {
	s.sweep(ctx)
	loans, err := s.loans.ListOverdue(ctx)
	if err != nil {
		return nil, err
	}
	today := calendar.DateOf(s.clock.Now())
	accounts := make([]OverdueAccount, 0, len(loans))
	for _, loan := range loans {
		accounts = append(accounts, OverdueAccount{Loan: loan, DaysOverdue: calendar.DaysBetween(loan.DueDate, today)})
	}
	return accounts, nil
}
