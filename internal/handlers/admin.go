package handlers

import (
	"net/http"
	"strings"

	"lending/internal/auth"
	"lending/internal/db"
	"lending/internal/middleware"
	"lending/internal/models"
	"lending/internal/store"
	"lending/internal/validator"
	"lending/internal/websocket"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

func (h *Handler) ListAdmins(w http.ResponseWriter, r *http.Request) {
	admins, err := h.admins.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load admins")
		return
	}
	views := make([]adminView, 0, len(admins))
	for _, admin := range admins {
		roles, err := h.admins.Roles(r.Context(), admin.ID)
		if err != nil {
			respondError(w, http.StatusInternalServerError, "unable to load admins")
			return
		}
		views = append(views, newAdminView(admin, roles))
	}
	respondJSON(w, http.StatusOK, views)
}

type createAdminRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
	IsSuper  bool   `json:"is_super"`
}

func (h *Handler) CreateAdmin(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.AdminIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req createAdminRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.TrimSpace(req.Email)
	if fields := validator.Struct(req); fields != nil {
		respondFields(w, fields)
		return
	}
	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to secure password")
		return
	}
	admin := models.Admin{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		IsSuper:      req.IsSuper,
	}
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.admins.Create(r.Context(), tx, admin, &actorID); err != nil {
			return err
		}
		return h.audit.Log(r.Context(), tx, store.AuditEntry{
			ActorID:    actorID,
			Action:     "admin_created",
			EntityType: "admin",
			EntityID:   admin.ID,
			NewValues:  newAdminView(admin, nil),
		})
	})
	if err != nil {
		if db.IsUniqueViolation(err) {
			respondError(w, http.StatusConflict, "email already exists")
			return
		}
		respondError(w, http.StatusInternalServerError, "unable to create admin")
		return
	}
	respondJSON(w, http.StatusCreated, newAdminView(admin, nil))
}

type grantRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=capital audit"`
}

func (h *Handler) GrantRole(w http.ResponseWriter, r *http.Request) {
	actorID, ok := middleware.AdminIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	targetID := chi.URLParam(r, "id")
	var req grantRoleRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if fields := validator.Struct(req); fields != nil {
		respondFields(w, fields)
		return
	}
	isAdmin, isSuper, err := h.admins.IsAdmin(r.Context(), targetID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to verify target admin")
		return
	}
	if !isAdmin {
		respondError(w, http.StatusNotFound, "admin not found")
		return
	}
	if isSuper {
		respondError(w, http.StatusBadRequest, "cannot assign roles to super admin")
		return
	}
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.admins.GrantRole(r.Context(), tx, targetID, req.Role); err != nil {
			return err
		}
		return h.audit.Log(r.Context(), tx, store.AuditEntry{
			ActorID:    actorID,
			Action:     "role_granted",
			EntityType: "admin_role",
			EntityID:   targetID,
			NewValues:  map[string]string{"role": req.Role},
		})
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to grant role")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"status": "role_granted"})
}

func (h *Handler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	page := pageFrom(r)
	rows, total, err := h.audit.List(r.Context(), store.AuditFilter{
		EntityType: query.Get("entity_type"),
		EntityID:   query.Get("entity_id"),
		Page:       page,
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load audit logs")
		return
	}
	respondJSON(w, http.StatusOK, newListResponse(rows, total, page))
}

func (h *Handler) WSCapital(w http.ResponseWriter, r *http.Request) {
	adminID, ok := middleware.AdminIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if h.hub == nil {
		respondError(w, http.StatusServiceUnavailable, "live updates unavailable")
		return
	}
	websocket.ServeWS(w, r, h.hub, adminID)
}
