package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"lending/internal/calendar"
	"lending/internal/export"
	"lending/internal/money"
	"lending/internal/services"
)

func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.reports.Dashboard(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err, "unable to load dashboard")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"total_active_loans":     stats.TotalActiveLoans,
		"total_released_capital": money.FormatMinor(stats.TotalReleasedCapital),
		"total_collections":      money.FormatMinor(stats.TotalCollections),
		"outstanding_balance":    money.FormatMinor(stats.OutstandingBalance),
		"overdue_loans_count":    stats.OverdueLoansCount,
		"total_borrowers":        stats.TotalBorrowers,
		"active_borrowers":       stats.ActiveBorrowers,
	})
}

func (h *Handler) MonthlyChart(w http.ResponseWriter, r *http.Request) {
	points, err := h.reports.MonthlyChart(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err, "unable to load chart")
		return
	}
	views := make([]map[string]string, 0, len(points))
	for _, p := range points {
		views = append(views, map[string]string{
			"month":       p.Month.Format("Jan 2006"),
			"collections": money.FormatMinor(p.Collections),
			"releases":    money.FormatMinor(p.Releases),
		})
	}
	respondJSON(w, http.StatusOK, views)
}

func (h *Handler) RecentActivity(w http.ResponseWriter, r *http.Request) {
	recent, err := h.reports.RecentActivity(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err, "unable to load recent activity")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"loans":    newLoanViews(recent.Loans),
		"payments": newPaymentViews(recent.Payments),
	})
}

// reportDate reads ?date=, defaulting to today when absent.
func reportDate(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return time.Time{}, nil
	}
	return calendar.ParseDate(raw)
}

func (h *Handler) DailyCollections(w http.ResponseWriter, r *http.Request) {
	date, err := reportDate(r)
	if err != nil {
		respondFields(w, map[string]string{"date": err.Error()})
		return
	}
	report, err := h.reports.DailyCollections(r.Context(), date)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to load daily collections")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"date":     calendar.Format(report.Date),
		"payments": newPaymentViews(report.Payments),
		"total":    money.FormatMinor(report.Total),
	})
}

func (h *Handler) MonthlyIncome(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	year, month := 0, 0
	if raw := query.Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1900 {
			respondFields(w, map[string]string{"year": "must be a valid year"})
			return
		}
		year = parsed
	}
	if raw := query.Get("month"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			respondFields(w, map[string]string{"month": "must be between 1 and 12"})
			return
		}
		month = parsed
	}
	income, err := h.reports.MonthlyIncome(r.Context(), year, time.Month(month))
	if err != nil {
		h.respondServiceError(w, r, err, "unable to load monthly income")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"year":              income.Year,
		"month":             int(income.Month),
		"total_collections": money.FormatMinor(income.TotalCollections),
		"loans_released":    money.FormatMinor(income.LoansReleased),
		"interest_earned":   money.FormatMinor(income.InterestEarned),
		"loan_count":        income.LoanCount,
		"payments":          newPaymentViews(income.Payments),
	})
}

func (h *Handler) BorrowerLedger(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid borrower id")
		return
	}
	ledger, err := h.reports.BorrowerLedger(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to load borrower ledger")
		return
	}
	lines := make([]map[string]any, 0, len(ledger.Lines))
	for _, line := range ledger.Lines {
		lines = append(lines, map[string]any{
			"loan":       newLoanView(line.Loan),
			"payments":   newPaymentViews(line.Payments),
			"total_paid": money.FormatMinor(line.TotalPaid),
			"remaining":  money.FormatMinor(line.Remaining),
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"borrower": newBorrowerView(ledger.Borrower),
		"loans":    lines,
	})
}

func (h *Handler) OverdueAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.reports.OverdueAccounts(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err, "unable to load overdue accounts")
		return
	}
	respondJSON(w, http.StatusOK, overdueViews(accounts))
}

func overdueViews(accounts []services.OverdueAccount) []map[string]any {
	views := make([]map[string]any, 0, len(accounts))
	for _, a := range accounts {
		views = append(views, map[string]any{
			"loan":         newLoanView(a.Loan),
			"days_overdue": a.DaysOverdue,
		})
	}
	return views
}

func (h *Handler) ExportDailyCollections(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		respondFields(w, map[string]string{"format": err.Error()})
		return
	}
	date, err := reportDate(r)
	if err != nil {
		respondFields(w, map[string]string{"date": err.Error()})
		return
	}
	report, err := h.reports.DailyCollections(r.Context(), date)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to export daily collections")
		return
	}
	name := "daily-collections-" + calendar.Format(report.Date)
	h.sendExport(w, r, format, name, export.DailyCollections(report))
}

func (h *Handler) ExportOverdue(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		respondFields(w, map[string]string{"format": err.Error()})
		return
	}
	accounts, err := h.reports.OverdueAccounts(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err, "unable to export overdue accounts")
		return
	}
	h.sendExport(w, r, format, "overdue-accounts", export.OverdueAccounts(accounts))
}

func (h *Handler) sendExport(w http.ResponseWriter, r *http.Request, format export.Format, name string, table export.Table) {
	var buf bytes.Buffer
	if err := export.Write(&buf, format, table); err != nil {
		h.respondServiceError(w, r, err, "unable to build export")
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.%s"`, name, format))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
