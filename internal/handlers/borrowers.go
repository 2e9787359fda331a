package handlers

import (
	"net/http"
	"strings"

	"lending/internal/middleware"
	"lending/internal/models"
	"lending/internal/store"
	"lending/internal/validator"
)

type borrowerRequest struct {
	FullName      string  `json:"full_name" validate:"required,max=255"`
	Address       string  `json:"address" validate:"required,max=500"`
	ContactNumber string  `json:"contact_number" validate:"required,max=50"`
	Notes         *string `json:"notes" validate:"omitempty,max=2000"`
	Status        string  `json:"status" validate:"omitempty,oneof=active inactive"`
}

// input validates the request and normalises the contact number for region.
func (req borrowerRequest) input(region string) (store.BorrowerInput, map[string]string) {
	req.FullName = strings.TrimSpace(req.FullName)
	req.Address = strings.TrimSpace(req.Address)
	if fields := validator.Struct(req); fields != nil {
		return store.BorrowerInput{}, fields
	}
	phone, err := validator.NormalizePhone(req.ContactNumber, region)
	if err != nil {
		return store.BorrowerInput{}, map[string]string{"contact_number": err.Error()}
	}
	return store.BorrowerInput{
		FullName:      req.FullName,
		Address:       req.Address,
		ContactNumber: phone,
		Notes:         req.Notes,
		Status:        models.BorrowerStatus(req.Status),
	}, nil
}

func (h *Handler) ListBorrowers(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page := pageFrom(r)
	rows, total, err := h.borrowers.List(r.Context(), store.BorrowerFilter{
		Search: strings.TrimSpace(query.Get("search")),
		Status: models.BorrowerStatus(query.Get("status")),
		Page:   page,
	})
	if err != nil {
		h.respondServiceError(w, r, err, "unable to load borrowers")
		return
	}
	views := make([]borrowerView, 0, len(rows))
	for _, row := range rows {
		views = append(views, newBorrowerSummaryView(row))
	}
	respondJSON(w, http.StatusOK, newListResponse(views, total, page))
}

func (h *Handler) BorrowerOptions(w http.ResponseWriter, r *http.Request) {
	options, err := h.borrowers.Options(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err, "unable to load borrowers")
		return
	}
	respondJSON(w, http.StatusOK, options)
}

func (h *Handler) CreateBorrower(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.AdminIDFromContext(r.Context())
	var req borrowerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	input, fields := req.input(h.cfg.PhoneRegion)
	if fields != nil {
		respondFields(w, fields)
		return
	}
	borrower, err := h.borrowers.Create(r.Context(), actorID, input)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to create borrower")
		return
	}
	respondJSON(w, http.StatusCreated, newBorrowerView(borrower))
}

func (h *Handler) GetBorrower(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid borrower id")
		return
	}
	detail, err := h.borrowers.Get(r.Context(), id)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to load borrower")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"borrower": newBorrowerView(detail.Borrower),
		"loans":    newLoanViews(detail.Loans),
	})
}

func (h *Handler) UpdateBorrower(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.AdminIDFromContext(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid borrower id")
		return
	}
	var req borrowerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	input, fields := req.input(h.cfg.PhoneRegion)
	if fields != nil {
		respondFields(w, fields)
		return
	}
	borrower, err := h.borrowers.Update(r.Context(), actorID, id, input)
	if err != nil {
		h.respondServiceError(w, r, err, "unable to update borrower")
		return
	}
	respondJSON(w, http.StatusOK, newBorrowerView(borrower))
}

func (h *Handler) DeleteBorrower(w http.ResponseWriter, r *http.Request) {
	actorID, _ := middleware.AdminIDFromContext(r.Context())
	id, ok := pathID(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid borrower id")
		return
	}
	if err := h.borrowers.Delete(r.Context(), actorID, id); err != nil {
		h.respondServiceError(w, r, err, "unable to delete borrower")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
