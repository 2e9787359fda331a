package handlers

import (
	"context"
	"encoding/csv"
	"net/http"
	"strings"
	"testing"
	"time"

	"lending/internal/models"
	"lending/internal/services"
	"lending/internal/store"
)

func TestDashboard(t *testing.T) {
	h := newTestHandler(Deps{
		Reports: stubReportService{
			dashboardFn: func(context.Context) (store.DashboardStats, error) {
				return store.DashboardStats{TotalActiveLoans: 4, OutstandingBalance: 1234567, OverdueLoansCount: 1}, nil
			},
		},
	})
	rr := serve(t, h, http.MethodGet, "/dashboard", "", "admin-1")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	payload := decodeBody(t, rr)
	if payload["outstanding_balance"] != "12345.67" || payload["total_active_loans"] != float64(4) {
		t.Fatalf("unexpected payload: %#v", payload)
	}
}

func TestMonthlyChartLabels(t *testing.T) {
	h := newTestHandler(Deps{
		Reports: stubReportService{
			chartFn: func(context.Context) ([]services.ChartPoint, error) {
				return []services.ChartPoint{{Month: date("2024-01-01"), Collections: 100, Releases: 0}}, nil
			},
		},
	})
	rr := serve(t, h, http.MethodGet, "/dashboard/chart", "", "admin-1")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `"month":"Jan 2024"`) {
		t.Fatalf("unexpected chart: %s", rr.Body.String())
	}
}

func TestMonthlyIncomeValidation(t *testing.T) {
	h := newTestHandler(Deps{
		Reports: stubReportService{
			monthlyFn: func(_ context.Context, year int, month time.Month) (services.MonthlyIncome, error) {
				if month > time.December {
					return services.MonthlyIncome{}, &services.ValidationError{Field: "month", Message: "must be between 1 and 12"}
				}
				return services.MonthlyIncome{Year: year, Month: month, TotalCollections: 5000}, nil
			},
		},
	})
	if rr := serve(t, h, http.MethodGet, "/reports/monthly?year=2024&month=13", "", "admin-1"); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	rr := serve(t, h, http.MethodGet, "/reports/monthly?year=2024&month=5", "", "admin-1")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	payload := decodeBody(t, rr)
	if payload["month"] != float64(5) || payload["total_collections"] != "50.00" {
		t.Fatalf("unexpected payload: %#v", payload)
	}
}

func TestExportDailyCollectionsCSV(t *testing.T) {
	var asked time.Time
	h := newTestHandler(Deps{
		Reports: stubReportService{
			dailyFn: func(_ context.Context, day time.Time) (services.DailyCollections, error) {
				asked = day
				return services.DailyCollections{
					Date:     day,
					Payments: []models.Payment{{LoanID: 7, BorrowerName: "Maria Santos", PaymentDate: day, AmountPaid: 191667, BalanceAfter: 958333}},
					Total:    191667,
				}, nil
			},
		},
	})
	rr := serve(t, h, http.MethodGet, "/reports/export/daily?date=2024-04-16", "", "admin-1")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !asked.Equal(date("2024-04-16")) {
		t.Fatalf("unexpected date: %s", asked)
	}
	if rr.Header().Get("Content-Type") != "text/csv" || !strings.Contains(rr.Header().Get("Content-Disposition"), "daily-collections-2024-04-16.csv") {
		t.Fatalf("unexpected headers: %#v", rr.Header())
	}
	records, err := csv.NewReader(rr.Body).ReadAll()
	if err != nil {
		t.Fatalf("failed to parse csv: %v", err)
	}
	if len(records) != 3 || records[1][1] != "Maria Santos" || records[1][4] != "No" {
		t.Fatalf("unexpected records: %#v", records)
	}
}

func TestExportOverdueXLSX(t *testing.T) {
	h := newTestHandler(Deps{
		Reports: stubReportService{
			overdueFn: func(context.Context) ([]services.OverdueAccount, error) {
				return []services.OverdueAccount{{Loan: models.Loan{ID: 1, BorrowerName: "Maria Santos"}, DaysOverdue: 3}}, nil
			},
		},
	})
	if rr := serve(t, h, http.MethodGet, "/reports/export/overdue?format=pdf", "", "admin-1"); rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rr.Code)
	}
	rr := serve(t, h, http.MethodGet, "/reports/export/overdue?format=xlsx", "", "admin-1")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.HasPrefix(rr.Body.String(), "PK") {
		t.Fatalf("expected a zip container")
	}
	if !strings.Contains(rr.Header().Get("Content-Disposition"), "overdue-accounts.xlsx") {
		t.Fatalf("unexpected disposition: %s", rr.Header().Get("Content-Disposition"))
	}
}

func TestOverdueAccounts(t *testing.T) {
	h := newTestHandler(Deps{
		Reports: stubReportService{
			overdueFn: func(context.Context) ([]services.OverdueAccount, error) {
				return []services.OverdueAccount{{Loan: models.Loan{ID: 1, Status: models.LoanOverdue}, DaysOverdue: 12}}, nil
			},
		},
	})
	rr := serve(t, h, http.MethodGet, "/reports/overdue", "", "admin-1")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `"days_overdue":12`) {
		t.Fatalf("unexpected response: %d %s", rr.Code, rr.Body.String())
	}
}

func TestHealthIsPublic(t *testing.T) {
	h := newTestHandler(Deps{})
	if rr := serve(t, h, http.MethodGet, "/health", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr := serve(t, h, http.MethodGet, "/dashboard", "", ""); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestUnexpectedErrorsAre500(t *testing.T) {
	h := newTestHandler(Deps{
		Reports: stubReportService{
			dashboardFn: func(context.Context) (store.DashboardStats, error) {
				return store.DashboardStats{}, errBoom
			},
		},
	})
	rr := serve(t, h, http.MethodGet, "/dashboard", "", "admin-1")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	if decodeBody(t, rr)["error"] != "unable to load dashboard" {
		t.Fatalf("expected fallback message")
	}
}
