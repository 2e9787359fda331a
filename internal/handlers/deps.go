package handlers

import (
	"context"
	"time"

	"lending/internal/models"
	"lending/internal/services"
	"lending/internal/store"
)

type AdminStore interface {
	Create(ctx context.Context, tx store.Execer, admin models.Admin, createdBy *string) error
	GetByEmail(ctx context.Context, email string) (models.Admin, error)
	GetByID(ctx context.Context, id string) (models.Admin, error)
	List(ctx context.Context) ([]models.Admin, error)
	UpdatePassword(ctx context.Context, tx store.Execer, id, passwordHash string) error
	IsAdmin(ctx context.Context, id string) (bool, bool, error)
	HasRole(ctx context.Context, id, role string) (bool, error)
	Roles(ctx context.Context, id string) ([]string, error)
	GrantRole(ctx context.Context, tx store.Execer, id, role string) error
}

type AuditStore interface {
	Log(ctx context.Context, exec store.Execer, entry store.AuditEntry) error
	List(ctx context.Context, filter store.AuditFilter) ([]models.AuditLog, int, error)
}

type BorrowerService interface {
	Create(ctx context.Context, actorID string, input store.BorrowerInput) (models.Borrower, error)
	Get(ctx context.Context, id int64) (services.BorrowerDetail, error)
	Update(ctx context.Context, actorID string, id int64, input store.BorrowerInput) (models.Borrower, error)
	Delete(ctx context.Context, actorID string, id int64) error
	List(ctx context.Context, filter store.BorrowerFilter) ([]store.BorrowerSummary, int, error)
	Options(ctx context.Context) ([]store.BorrowerOption, error)
}

type LoanService interface {
	Calculate(terms services.LoanTerms) (services.LoanQuote, error)
	ReleaseLoan(ctx context.Context, req services.ReleaseLoanRequest) (models.Loan, error)
	GetLoan(ctx context.Context, id int64) (services.LoanDetail, error)
	ListLoans(ctx context.Context, filter store.LoanFilter) ([]models.Loan, int, error)
}

type PaymentService interface {
	RecordPayment(ctx context.Context, req services.RecordPaymentRequest) (models.Payment, error)
	EditPayment(ctx context.Context, req services.EditPaymentRequest) (models.Payment, error)
	DeletePayment(ctx context.Context, req services.DeletePaymentRequest) error
	GetPayment(ctx context.Context, id int64) (models.Payment, error)
	ListPayments(ctx context.Context, filter store.PaymentFilter) ([]models.Payment, int, error)
}

type CapitalService interface {
	Deposit(ctx context.Context, req services.CapitalRequest) (models.CapitalTransaction, error)
	Withdraw(ctx context.Context, req services.CapitalRequest) (models.CapitalTransaction, error)
	Summary(ctx context.Context) (services.BalanceSummary, error)
	List(ctx context.Context, filter store.CapitalFilter) ([]models.CapitalTransaction, int, error)
	Verify(ctx context.Context) (services.VerifyReport, error)
}

type ReportService interface {
	Dashboard(ctx context.Context) (store.DashboardStats, error)
	MonthlyChart(ctx context.Context) ([]services.ChartPoint, error)
	RecentActivity(ctx context.Context) (services.RecentActivity, error)
	DailyCollections(ctx context.Context, date time.Time) (services.DailyCollections, error)
	MonthlyIncome(ctx context.Context, year int, month time.Month) (services.MonthlyIncome, error)
	BorrowerLedger(ctx context.Context, borrowerID int64) (services.BorrowerLedger, error)
	OverdueAccounts(ctx context.Context) ([]services.OverdueAccount, error)
}
