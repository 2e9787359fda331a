package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"lending/internal/calendar"
	"lending/internal/logging"
	"lending/internal/money"
	"lending/internal/services"
	"lending/internal/store"

	"github.com/go-chi/chi/v5"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondFields(w http.ResponseWriter, fields map[string]string) {
	respondJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"error":  "validation failed",
		"fields": fields,
	})
}

// respondServiceError maps service sentinels onto status codes. Anything
// unrecognised is logged and reported as a 500 with fallback as the message.
func (h *Handler) respondServiceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	var validation *services.ValidationError
	var insufficient *services.InsufficientCapitalError
	switch {
	case errors.As(err, &validation):
		respondFields(w, map[string]string{validation.Field: validation.Message})
	case errors.As(err, &insufficient):
		respondJSON(w, http.StatusUnprocessableEntity, map[string]string{
			"error":     "insufficient capital",
			"available": money.FormatMinor(insufficient.Available),
		})
	case errors.Is(err, services.ErrInvalidTerm), errors.Is(err, services.ErrInvalidAmount):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrExceedsBalance):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, services.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case errors.Is(err, services.ErrBorrowerHasLoans):
		respondError(w, http.StatusConflict, "borrower has existing loans")
	default:
		logging.LogError(h.logger, "handlers", "respondServiceError", fallback, map[string]string{
			"method": r.Method,
			"path":   r.URL.Path,
		}, err)
		respondError(w, http.StatusInternalServerError, fallback)
	}
}

func decodeJSON(r *http.Request, dest any) error {
	return json.NewDecoder(r.Body).Decode(dest)
}

func parseInt(raw string, fallback int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return fallback
	}
	return value
}

func pathID(r *http.Request, name string) (int64, bool) {
	value, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || value <= 0 {
		return 0, false
	}
	return value, true
}

// pageFrom reads ?page=&per_page= into a limit/offset window.
func pageFrom(r *http.Request) store.Page {
	query := r.URL.Query()
	limit := parseInt(query.Get("per_page"), 15)
	page := parseInt(query.Get("page"), 1)
	return store.Page{Limit: limit, Offset: (page - 1) * limit}
}

// optionalDate parses a YYYY-MM-DD query value; empty means no bound.
func optionalDate(raw string) (*time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	date, err := calendar.ParseDate(raw)
	if err != nil {
		return nil, err
	}
	return &date, nil
}

type listResponse struct {
	Data    any `json:"data"`
	Total   int `json:"total"`
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
}

func newListResponse(data any, total int, page store.Page) listResponse {
	limit := page.Limit
	if limit <= 0 {
		limit = 15
	}
	return listResponse{Data: data, Total: total, Page: page.Offset/limit + 1, PerPage: limit}
}
