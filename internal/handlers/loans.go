package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"lending/internal/calendar"
	"lending/internal/middleware"
	"lending/internal/models"
	"lending/internal/money"
	"lending/internal/services"
	"lending/internal/store"
	"lending/internal/validator"
)

type loanTermsRequest struct {
	LoanAmount     money.Input `json:"loan_amount" validate:"required"`
	InterestAmount money.Input `json:"interest_amount"`
	LoanTerm       int         `json:"loan_term" validate:"max=3650"`
	TermType       string      `json:"term_type" validate:"required"`
	ReleaseDate    string      `json:"release_date" validate:"required"`
}

func (req loanTermsRequest) terms() (services.LoanTerms, map[string]string) {
	if fields := validator.Struct(req); fields != nil {
		return services.LoanTerms{}, fields
	}
	principal, err := req.LoanAmount.Minor()
	if err != nil {
		return services.LoanTerms{}, map[string]string{"loan_amount": err.Error()}
	}
	var interest int64
	if req.InterestAmount != "" {
		interest, err = req.InterestAmount.Minor()
		if err != nil {
			return services.LoanTerms{}, map[string]string{"interest_amount": err.Error()}
		}
	}
	termType, err := calendar.ParseTermType(req.TermType)
	if err != nil {
		return services.LoanTerms{}, map[string]string{"term_type": err.Error()}
	}
	release, err := calendar.ParseDate(req.ReleaseDate)
	if err != nil {
		return services.LoanTerms{}, map[string]string{"release_date": err.Error()}
	}
	return services.LoanTerms{
		Principal:   principal,
		Interest:    interest,
		Term:        req.LoanTerm,
		TermType:    termType,
		ReleaseDate: release,
	}, nil
}

func (h *Handler) CalculateLoan(w http.ResponseWriter, r *http.Request) {
	var req loanTermsRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	terms, fields := req.terms()
	if fields != nil {
		respondFields(w, fields)
		return
	}
	quote, err := h.loans.Calculate(terms)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to calculate loan")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"total_interest":     money.FormatMinor(quote.TotalInterest),
		"total_payable":      money.FormatMinor(quote.TotalPayable),
		"payment_per_period": money.FormatMinor(quote.PaymentPerPeriod),
		"due_date":           calendar.Format(quote.DueDate),
		"schedule":           newInstallmentViews(quote.Schedule),
		"reconciled":         newInstallmentViews(quote.Reconciled),
	})
}

type releaseLoanRequest struct {
	BorrowerID int64 `json:"borrower_id" validate:"required"`
	loanTermsRequest
}

func (h *Handler) ReleaseLoan(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.AdminIDFromContext(r.Context())
	var req releaseLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.BorrowerID <= 0 {
		respondFields(w, map[string]string{"borrower_id": "required"})
		return
	}
	terms, fields := req.terms()
	if fields != nil {
		respondFields(w, fields)
		return
	}
	loan, err := h.loans.ReleaseLoan(r.Context(), services.ReleaseLoanRequest{
		ActorID:    actorID,
		BorrowerID: req.BorrowerID,
		LoanTerms:  terms,
	})
	if err != nil {
		h.respondServiceError(w, r, err, "unable to release loan")
		return
	}
	respondJSON(w, http.StatusCreated, newLoanView(loan))
}

func (h *Handler) GetLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid loan id")
		return
	}
	detail, err := h.loans.GetLoan(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to load loan")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"loan":              newLoanView(detail.Loan),
		"payments":          newPaymentViews(detail.Payments),
		"schedule":          newInstallmentViews(detail.Schedule),
		"reconciled":        newInstallmentViews(detail.Reconciled),
		"total_paid":        money.FormatMinor(detail.TotalPaid),
		"remaining_periods": detail.RemainingPeriods,
	})
}

func (h *Handler) ListLoans(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := store.LoanFilter{
		Search: strings.TrimSpace(query.Get("search")),
		Page:   pageFrom(r),
	}
	if raw := query.Get("status"); raw != "" {
		status := models.LoanStatus(raw)
		if !status.Valid() {
			respondFields(w, map[string]string{"status": "must be ongoing, fully_paid or overdue"})
			return
		}
		filter.Status = status
	}
	if raw := query.Get("borrower_id"); raw != "" {
		borrowerID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || borrowerID <= 0 {
			respondFields(w, map[string]string{"borrower_id": "must be a positive integer"})
			return
		}
		filter.BorrowerID = borrowerID
	}
	loans, total, err := h.loans.ListLoans(r.Context(), filter)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to load loans")
		return
	}
	respondJSON(w, http.StatusOK, newListResponse(newLoanViews(loans), total, filter.Page))
}
