package handlers

import (
	"context"
	"net/http"
	"strings"

	"lending/internal/middleware"
	"lending/internal/models"
	"lending/internal/money"
	"lending/internal/services"
	"lending/internal/store"
	"lending/internal/validator"
)

func (h *Handler) ListCapital(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := store.CapitalFilter{Page: pageFrom(r)}
	if raw := query.Get("type"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			txType := models.TransactionType(strings.TrimSpace(part))
			if !txType.Valid() {
				respondFields(w, map[string]string{"type": "unknown transaction type"})
				return
			}
			filter.Types = append(filter.Types, txType)
		}
	}
	var err error
	if filter.DateFrom, err = optionalDate(query.Get("date_from")); err != nil {
		respondFields(w, map[string]string{"date_from": err.Error()})
		return
	}
	if filter.DateTo, err = optionalDate(query.Get("date_to")); err != nil {
		respondFields(w, map[string]string{"date_to": err.Error()})
		return
	}
	rows, total, err := h.capital.List(r.Context(), filter)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to load capital transactions")
		return
	}
	views := make([]capitalView, 0, len(rows))
	for _, row := range rows {
		views = append(views, newCapitalView(row))
	}
	respondJSON(w, http.StatusOK, newListResponse(views, total, filter.Page))
}

func (h *Handler) CapitalBalance(w http.ResponseWriter, r *http.Request) {
	summary, err := h.capital.Summary(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err, "unable to load capital balance")
		return
	}
	totals := make(map[string]string, len(models.TransactionTypes))
	for _, txType := range models.TransactionTypes {
		totals[string(txType)] = money.FormatMinor(summary.Totals[txType])
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"current_balance": money.FormatMinor(summary.Current),
		"currency":        h.cfg.CurrencySymbol,
		"totals":          totals,
	})
}

type capitalRequest struct {
	Amount      money.Input `json:"amount" validate:"required"`
	Description string      `json:"description" validate:"max=500"`
}

func (h *Handler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.postCapital(w, r, h.capital.Deposit, "unable to record deposit")
}

func (h *Handler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.postCapital(w, r, h.capital.Withdraw, "unable to record withdrawal")
}

type capitalPoster func(ctx context.Context, req services.CapitalRequest) (models.CapitalTransaction, error)

func (h *Handler) postCapital(w http.ResponseWriter, r *http.Request, post capitalPoster, fallback string) {
	actorID, _ := middleware.AdminIDFromContext(r.Context())
	var req capitalRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if fields := validator.Struct(req); fields != nil {
		respondFields(w, fields)
		return
	}
	amount, err := req.Amount.Minor()
	if err != nil {
		respondFields(w, map[string]string{"amount": err.Error()})
		return
	}
	entry, err := post(r.Context(), services.CapitalRequest{
		ActorID:     actorID,
		Amount:      amount,
		Description: strings.TrimSpace(req.Description),
	})
	if err != nil {
		h.respondServiceError(w, r, err, fallback)
		return
	}
	respondJSON(w, http.StatusCreated, newCapitalView(entry))
}

func (h *Handler) VerifyCapital(w http.ResponseWriter, r *http.Request) {
	report, err := h.capital.Verify(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err, "unable to verify ledger")
		return
	}
	mismatches := make([]map[string]any, 0, len(report.Mismatches))
	for _, m := range report.Mismatches {
		mismatches = append(mismatches, map[string]any{
			"id":       m.ID,
			"stored":   money.FormatMinor(m.Stored),
			"expected": money.FormatMinor(m.Expected),
		})
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"ok":         report.OK(),
		"entries":    report.Entries,
		"balance":    money.FormatMinor(report.Balance),
		"expected":   money.FormatMinor(report.Expected),
		"mismatches": mismatches,
	})
}
