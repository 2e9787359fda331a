package store

import (
	"context"
	"encoding/json"

	"lending/internal/models"

	"github.com/google/uuid"
)

type AuditStore struct {
	db DB
}

func NewAuditStore(db DB) *AuditStore {
	return &AuditStore{db: db}
}

// AuditEntry is one mutation record. OldValues and NewValues are stored as JSON.
type AuditEntry struct {
	ActorID    string
	Action     string
	EntityType string
	EntityID   string
	OldValues  any
	NewValues  any
}

type AuditFilter struct {
	EntityType string
	EntityID   string
	Page       Page
}

func (s *AuditStore) Log(ctx context.Context, exec Execer, entry AuditEntry) error {
	oldValues, err := jsonOrNil(entry.OldValues)
	if err != nil {
		return err
	}
	newValues, err := jsonOrNil(entry.NewValues)
	if err != nil {
		return err
	}
	var actor *string
	if entry.ActorID != "" {
		actor = &entry.ActorID
	}
	_, err = exec.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_id, action, entity_type, entity_id, old_values, new_values)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb)
	`, uuid.NewString(), actor, entry.Action, entry.EntityType, entry.EntityID, oldValues, newValues)
	return err
}

func (s *AuditStore) List(ctx context.Context, filter AuditFilter) ([]models.AuditLog, int, error) {
	var c conditions
	if filter.EntityType != "" {
		c.add(`entity_type = ?`, filter.EntityType)
	}
	if filter.EntityID != "" {
		c.add(`entity_id = ?`, filter.EntityID)
	}
	var total int
	if err := s.db.GetContext(ctx, &total, `SELECT COUNT(1) FROM audit_logs`+c.where(), c.args...); err != nil {
		return nil, 0, err
	}
	suffix, args := c.paginate(filter.Page.normalize(50))
	rows := []models.AuditLog{}
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, actor_id, action, entity_type, entity_id, old_values::text AS old_values, new_values::text AS new_values, created_at
		FROM audit_logs`+c.where()+`
		ORDER BY created_at DESC`+suffix, args...)
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func jsonOrNil(value any) (*string, error) {
	if value == nil {
		return nil, nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	text := string(data)
	return &text, nil
}
