package handlers

import (
	"net/http"
	"strconv"
	"time"

	"lending/internal/calendar"
	"lending/internal/middleware"
	"lending/internal/money"
	"lending/internal/services"
	"lending/internal/store"
	"lending/internal/validator"
)

type paymentRequest struct {
	LoanID      int64       `json:"loan_id"`
	AmountPaid  money.Input `json:"amount_paid" validate:"required"`
	PaymentDate string      `json:"payment_date" validate:"required"`
	Remarks     string      `json:"remarks" validate:"max=1000"`
}

func (req paymentRequest) parse() (int64, time.Time, map[string]string) {
	if fields := validator.Struct(req); fields != nil {
		return 0, time.Time{}, fields
	}
	amount, err := req.AmountPaid.Minor()
	if err != nil {
		return 0, time.Time{}, map[string]string{"amount_paid": err.Error()}
	}
	date, err := calendar.ParseDate(req.PaymentDate)
	if err != nil {
		return 0, time.Time{}, map[string]string{"payment_date": err.Error()}
	}
	return amount, date, nil
}

func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.AdminIDFromContext(r.Context())
	var req paymentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.LoanID <= 0 {
		respondFields(w, map[string]string{"loan_id": "required"})
		return
	}
	amount, date, fields := req.parse()
	if fields != nil {
		respondFields(w, fields)
		return
	}
	payment, err := h.payments.RecordPayment(r.Context(), services.RecordPaymentRequest{
		ActorID:     actorID,
		LoanID:      req.LoanID,
		Amount:      amount,
		PaymentDate: date,
		Remarks:     req.Remarks,
	})
	if err != nil {
		h.respondServiceError(w, r, err, "unable to record payment")
		return
	}
	respondJSON(w, http.StatusCreated, newPaymentView(payment))
}

func (h *Handler) EditPayment(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.AdminIDFromContext(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid payment id")
		return
	}
	var req paymentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	amount, date, fields := req.parse()
	if fields != nil {
		respondFields(w, fields)
		return
	}
	payment, err := h.payments.EditPayment(r.Context(), services.EditPaymentRequest{
		ActorID:     actorID,
		PaymentID:   id,
		Amount:      amount,
		PaymentDate: date,
		Remarks:     req.Remarks,
	})
	if err != nil {
		h.respondServiceError(w, r, err, "unable to update payment")
		return
	}
	respondJSON(w, http.StatusOK, newPaymentView(payment))
}

func (h *Handler) DeletePayment(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.AdminIDFromContext(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid payment id")
		return
	}
	if err := h.payments.DeletePayment(r.Context(), services.DeletePaymentRequest{ActorID: actorID, PaymentID: id}); err != nil {
		h.respondServiceError(w, r, err, "unable to delete payment")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid payment id")
		return
	}
	payment, err := h.payments.GetPayment(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to load payment")
		return
	}
	respondJSON(w, http.StatusOK, newPaymentView(payment))
}

func (h *Handler) ListPayments(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := store.PaymentFilter{Page: pageFrom(r)}
	if raw := query.Get("loan_id"); raw != "" {
		loanID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || loanID <= 0 {
			respondFields(w, map[string]string{"loan_id": "must be a positive integer"})
			return
		}
		filter.LoanID = loanID
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
	payments, total, err := h.payments.ListPayments(r.Context(), filter)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to load payments")
		return
	}
	respondJSON(w, http.StatusOK, newListResponse(newPaymentViews(payments), total, filter.Page))
}
