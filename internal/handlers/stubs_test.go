package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"lending/internal/auth"
	"lending/internal/config"
	"lending/internal/logging"
	"lending/internal/models"
	"lending/internal/services"
	"lending/internal/store"
	"lending/internal/websocket"

	"github.com/jmoiron/sqlx"
)

const testSecret = "secret"

var errBoom = errors.New("boom")

type fakeTxRunner struct {
	err error
}

func (f fakeTxRunner) WithTx(_ context.Context, fn func(*sqlx.Tx) error) error {
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

type stubAdminStore struct {
	createFn         func(ctx context.Context, admin models.Admin, createdBy *string) error
	getByEmailFn     func(ctx context.Context, email string) (models.Admin, error)
	getByIDFn        func(ctx context.Context, id string) (models.Admin, error)
	listFn           func(ctx context.Context) ([]models.Admin, error)
	updatePasswordFn func(ctx context.Context, id, hash string) error
	isAdminFn        func(ctx context.Context, id string) (bool, bool, error)
	hasRoleFn        func(ctx context.Context, id, role string) (bool, error)
	grantRoleFn      func(ctx context.Context, id, role string) error
}

func (s stubAdminStore) Create(ctx context.Context, _ store.Execer, admin models.Admin, createdBy *string) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, admin, createdBy)
}

func (s stubAdminStore) GetByEmail(ctx context.Context, email string) (models.Admin, error) {
	if s.getByEmailFn == nil {
		return models.Admin{}, nil
	}
	return s.getByEmailFn(ctx, email)
}

func (s stubAdminStore) GetByID(ctx context.Context, id string) (models.Admin, error) {
	if s.getByIDFn == nil {
		return models.Admin{ID: id}, nil
	}
	return s.getByIDFn(ctx, id)
}

func (s stubAdminStore) List(ctx context.Context) ([]models.Admin, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx)
}

func (s stubAdminStore) UpdatePassword(ctx context.Context, _ store.Execer, id, hash string) error {
	if s.updatePasswordFn == nil {
		return nil
	}
	return s.updatePasswordFn(ctx, id, hash)
}

func (s stubAdminStore) IsAdmin(ctx context.Context, id string) (bool, bool, error) {
	if s.isAdminFn == nil {
		return true, true, nil
	}
	return s.isAdminFn(ctx, id)
}

func (s stubAdminStore) HasRole(ctx context.Context, id, role string) (bool, error) {
	if s.hasRoleFn == nil {
		return false, nil
	}
	return s.hasRoleFn(ctx, id, role)
}

func (s stubAdminStore) Roles(context.Context, string) ([]string, error) {
	return []string{}, nil
}

func (s stubAdminStore) GrantRole(ctx context.Context, _ store.Execer, id, role string) error {
	if s.grantRoleFn == nil {
		return nil
	}
	return s.grantRoleFn(ctx, id, role)
}

type stubAuditStore struct {
	logged []store.AuditEntry
	listFn func(ctx context.Context, filter store.AuditFilter) ([]models.AuditLog, int, error)
}

func (s *stubAuditStore) Log(_ context.Context, _ store.Execer, entry store.AuditEntry) error {
	s.logged = append(s.logged, entry)
	return nil
}

func (s *stubAuditStore) List(ctx context.Context, filter store.AuditFilter) ([]models.AuditLog, int, error) {
	if s.listFn == nil {
		return nil, 0, nil
	}
	return s.listFn(ctx, filter)
}

type stubBorrowerService struct {
	createFn  func(ctx context.Context, actorID string, input store.BorrowerInput) (models.Borrower, error)
	getFn     func(ctx context.Context, id int64) (services.BorrowerDetail, error)
	updateFn  func(ctx context.Context, actorID string, id int64, input store.BorrowerInput) (models.Borrower, error)
	deleteFn  func(ctx context.Context, actorID string, id int64) error
	listFn    func(ctx context.Context, filter store.BorrowerFilter) ([]store.BorrowerSummary, int, error)
	optionsFn func(ctx context.Context) ([]store.BorrowerOption, error)
}

func (s stubBorrowerService) Create(ctx context.Context, actorID string, input store.BorrowerInput) (models.Borrower, error) {
	if s.createFn == nil {
		return models.Borrower{}, nil
	}
	return s.createFn(ctx, actorID, input)
}

func (s stubBorrowerService) Get(ctx context.Context, id int64) (services.BorrowerDetail, error) {
	if s.getFn == nil {
		return services.BorrowerDetail{}, nil
	}
	return s.getFn(ctx, id)
}

func (s stubBorrowerService) Update(ctx context.Context, actorID string, id int64, input store.BorrowerInput) (models.Borrower, error) {
	if s.updateFn == nil {
		return models.Borrower{}, nil
	}
	return s.updateFn(ctx, actorID, id, input)
}

func (s stubBorrowerService) Delete(ctx context.Context, actorID string, id int64) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, actorID, id)
}

func (s stubBorrowerService) List(ctx context.Context, filter store.BorrowerFilter) ([]store.BorrowerSummary, int, error) {
	if s.listFn == nil {
		return nil, 0, nil
	}
	return s.listFn(ctx, filter)
}

func (s stubBorrowerService) Options(ctx context.Context) ([]store.BorrowerOption, error) {
	if s.optionsFn == nil {
		return nil, nil
	}
	return s.optionsFn(ctx)
}

type stubLoanService struct {
	calculateFn func(terms services.LoanTerms) (services.LoanQuote, error)
	releaseFn   func(ctx context.Context, req services.ReleaseLoanRequest) (models.Loan, error)
	getFn       func(ctx context.Context, id int64) (services.LoanDetail, error)
	listFn      func(ctx context.Context, filter store.LoanFilter) ([]models.Loan, int, error)
}

func (s stubLoanService) Calculate(terms services.LoanTerms) (services.LoanQuote, error) {
	if s.calculateFn == nil {
		return services.LoanQuote{}, nil
	}
	return s.calculateFn(terms)
}

func (s stubLoanService) ReleaseLoan(ctx context.Context, req services.ReleaseLoanRequest) (models.Loan, error) {
	if s.releaseFn == nil {
		return models.Loan{}, nil
	}
	return s.releaseFn(ctx, req)
}

func (s stubLoanService) GetLoan(ctx context.Context, id int64) (services.LoanDetail, error) {
	if s.getFn == nil {
		return services.LoanDetail{}, nil
	}
	return s.getFn(ctx, id)
}

func (s stubLoanService) ListLoans(ctx context.Context, filter store.LoanFilter) ([]models.Loan, int, error) {
	if s.listFn == nil {
		return nil, 0, nil
	}
	return s.listFn(ctx, filter)
}

type stubPaymentService struct {
	recordFn func(ctx context.Context, req services.RecordPaymentRequest) (models.Payment, error)
	editFn   func(ctx context.Context, req services.EditPaymentRequest) (models.Payment, error)
	deleteFn func(ctx context.Context, req services.DeletePaymentRequest) error
	getFn    func(ctx context.Context, id int64) (models.Payment, error)
	listFn   func(ctx context.Context, filter store.PaymentFilter) ([]models.Payment, int, error)
}

func (s stubPaymentService) RecordPayment(ctx context.Context, req services.RecordPaymentRequest) (models.Payment, error) {
	if s.recordFn == nil {
		return models.Payment{}, nil
	}
	return s.recordFn(ctx, req)
}

func (s stubPaymentService) EditPayment(ctx context.Context, req services.EditPaymentRequest) (models.Payment, error) {
	if s.editFn == nil {
		return models.Payment{}, nil
	}
	return s.editFn(ctx, req)
}

func (s stubPaymentService) DeletePayment(ctx context.Context, req services.DeletePaymentRequest) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, req)
}

func (s stubPaymentService) GetPayment(ctx context.Context, id int64) (models.Payment, error) {
	if s.getFn == nil {
		return models.Payment{}, nil
	}
	return s.getFn(ctx, id)
}

func (s stubPaymentService) ListPayments(ctx context.Context, filter store.PaymentFilter) ([]models.Payment, int, error) {
	if s.listFn == nil {
		return nil, 0, nil
	}
	return s.listFn(ctx, filter)
}

type stubCapitalService struct {
	depositFn  func(ctx context.Context, req services.CapitalRequest) (models.CapitalTransaction, error)
	withdrawFn func(ctx context.Context, req services.CapitalRequest) (models.CapitalTransaction, error)
	summaryFn  func(ctx context.Context) (services.BalanceSummary, error)
	listFn     func(ctx context.Context, filter store.CapitalFilter) ([]models.CapitalTransaction, int, error)
	verifyFn   func(ctx context.Context) (services.VerifyReport, error)
}

func (s stubCapitalService) Deposit(ctx context.Context, req services.CapitalRequest) (models.CapitalTransaction, error) {
	if s.depositFn == nil {
		return models.CapitalTransaction{}, nil
	}
	return s.depositFn(ctx, req)
}

func (s stubCapitalService) Withdraw(ctx context.Context, req services.CapitalRequest) (models.CapitalTransaction, error) {
	if s.withdrawFn == nil {
		return models.CapitalTransaction{}, nil
	}
	return s.withdrawFn(ctx, req)
}

func (s stubCapitalService) Summary(ctx context.Context) (services.BalanceSummary, error) {
	if s.summaryFn == nil {
		return services.BalanceSummary{}, nil
	}
	return s.summaryFn(ctx)
}

func (s stubCapitalService) List(ctx context.Context, filter store.CapitalFilter) ([]models.CapitalTransaction, int, error) {
	if s.listFn == nil {
		return nil, 0, nil
	}
	return s.listFn(ctx, filter)
}

func (s stubCapitalService) Verify(ctx context.Context) (services.VerifyReport, error) {
	if s.verifyFn == nil {
		return services.VerifyReport{}, nil
	}
	return s.verifyFn(ctx)
}

type stubReportService struct {
	dashboardFn func(ctx context.Context) (store.DashboardStats, error)
	chartFn     func(ctx context.Context) ([]services.ChartPoint, error)
	recentFn    func(ctx context.Context) (services.RecentActivity, error)
	dailyFn     func(ctx context.Context, date time.Time) (services.DailyCollections, error)
	monthlyFn   func(ctx context.Context, year int, month time.Month) (services.MonthlyIncome, error)
	ledgerFn    func(ctx context.Context, borrowerID int64) (services.BorrowerLedger, error)
	overdueFn   func(ctx context.Context) ([]services.OverdueAccount, error)
}

func (s stubReportService) Dashboard(ctx context.Context) (store.DashboardStats, error) {
	if s.dashboardFn == nil {
		return store.DashboardStats{}, nil
	}
	return s.dashboardFn(ctx)
}

func (s stubReportService) MonthlyChart(ctx context.Context) ([]services.ChartPoint, error) {
	if s.chartFn == nil {
		return nil, nil
	}
	return s.chartFn(ctx)
}

func (s stubReportService) RecentActivity(ctx context.Context) (services.RecentActivity, error) {
	if s.recentFn == nil {
		return services.RecentActivity{}, nil
	}
	return s.recentFn(ctx)
}

func (s stubReportService) DailyCollections(ctx context.Context, date time.Time) (services.DailyCollections, error) {
	if s.dailyFn == nil {
		return services.DailyCollections{}, nil
	}
	return s.dailyFn(ctx, date)
}

func (s stubReportService) MonthlyIncome(ctx context.Context, year int, month time.Month) (services.MonthlyIncome, error) {
	if s.monthlyFn == nil {
		return services.MonthlyIncome{}, nil
	}
	return s.monthlyFn(ctx, year, month)
}

func (s stubReportService) BorrowerLedger(ctx context.Context, borrowerID int64) (services.BorrowerLedger, error) {
	if s.ledgerFn == nil {
		return services.BorrowerLedger{}, nil
	}
	return s.ledgerFn(ctx, borrowerID)
}

func (s stubReportService) OverdueAccounts(ctx context.Context) ([]services.OverdueAccount, error) {
	if s.overdueFn == nil {
		return nil, nil
	}
	return s.overdueFn(ctx)
}

// newTestHandler fills every unset dependency with a zero-value stub.
func newTestHandler(deps Deps) *Handler {
	cfg := config.Config{
		AppEnv:         "test",
		JWTSecret:      testSecret,
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
		PhoneRegion:    "PH",
		CurrencySymbol: "₱",
	}
	if deps.TxRunner == nil {
		deps.TxRunner = fakeTxRunner{}
	}
	if deps.Admins == nil {
		deps.Admins = stubAdminStore{}
	}
	if deps.Audit == nil {
		deps.Audit = &stubAuditStore{}
	}
	if deps.Borrowers == nil {
		deps.Borrowers = stubBorrowerService{}
	}
	if deps.Loans == nil {
		deps.Loans = stubLoanService{}
	}
	if deps.Payments == nil {
		deps.Payments = stubPaymentService{}
	}
	if deps.Capital == nil {
		deps.Capital = stubCapitalService{}
	}
	if deps.Reports == nil {
		deps.Reports = stubReportService{}
	}
	if deps.Hub == nil {
		deps.Hub = websocket.NewHub()
	}
	return New(cfg, logging.Discard(), deps)
}

// serve sends a request through the full router as adminID.
func serve(t *testing.T, h *Handler, method, path, body, adminID string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	if adminID != "" {
		token, err := auth.GenerateToken(testSecret, adminID, time.Minute)
		if err != nil {
			t.Fatalf("failed to generate token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.Routes().ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return payload
}

func date(raw string) time.Time {
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		panic(err)
	}
	return parsed
}
