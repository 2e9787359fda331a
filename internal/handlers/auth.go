package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"lending/internal/auth"
	"lending/internal/middleware"
	"lending/internal/store"
	"lending/internal/validator"

	"github.com/jmoiron/sqlx"
)

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if fields := validator.Struct(req); fields != nil {
		respondFields(w, fields)
		return
	}
	admin, err := h.admins.GetByEmail(r.Context(), strings.TrimSpace(req.Email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		respondError(w, http.StatusInternalServerError, "login failed")
		return
	}
	if !auth.CheckPassword(admin.PasswordHash, req.Password) {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		return h.audit.Log(r.Context(), tx, store.AuditEntry{
			ActorID:    admin.ID,
			Action:     "login",
			EntityType: "admin",
			EntityID:   admin.ID,
			NewValues: map[string]string{
				"ip":         r.RemoteAddr,
				"user_agent": r.UserAgent(),
			},
		})
	}); err != nil {
		respondError(w, http.StatusInternalServerError, "login failed")
		return
	}
	token, err := auth.GenerateToken(h.cfg.JWTSecret, admin.ID, h.cfg.TokenTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"admin": newAdminView(admin, nil),
	})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.AdminIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	admin, err := h.admins.GetByID(r.Context(), adminID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to load admin")
		return
	}
	roles, err := h.admins.Roles(r.Context(), adminID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load admin")
		return
	}
	respondJSON(w, http.StatusOK, newAdminView(admin, roles))
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required"`
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.AdminIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req changePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if fields := validator.Struct(req); fields != nil {
		respondFields(w, fields)
		return
	}
	if err := validator.ValidatePassword(req.NewPassword); err != nil {
		respondFields(w, map[string]string{"new_password": err.Error()})
		return
	}
	admin, err := h.admins.GetByID(r.Context(), adminID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load admin")
		return
	}
	if !auth.CheckPassword(admin.PasswordHash, req.CurrentPassword) {
		respondFields(w, map[string]string{"current_password": "does not match"})
		return
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to secure password")
		return
	}
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.admins.UpdatePassword(r.Context(), tx, adminID, hash); err != nil {
			return err
		}
		return h.audit.Log(r.Context(), tx, store.AuditEntry{
			ActorID:    adminID,
			Action:     "password_changed",
			EntityType: "admin",
			EntityID:   adminID,
		})
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to change password")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "password_changed"})
}
