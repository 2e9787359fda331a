package store

import (
	"context"
	"database/sql"
	"errors"

	"lending/internal/models"
)

type AdminStore struct {
	db DB
}

func NewAdminStore(db DB) *AdminStore {
	return &AdminStore{db: db}
}

const adminColumns = `id, name, email, password_hash, is_super, created_at`

func (s *AdminStore) Create(ctx context.Context, tx Execer, admin models.Admin, createdBy *string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO admins (id, name, email, password_hash, is_super, created_by)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, admin.ID, admin.Name, admin.Email, admin.PasswordHash, admin.IsSuper, createdBy)
	return err
}

func (s *AdminStore) GetByEmail(ctx context.Context, email string) (models.Admin, error) {
	var row models.Admin
	err := s.db.GetContext(ctx, &row, `SELECT `+adminColumns+` FROM admins WHERE LOWER(email) = LOWER($1)`, email)
	return row, err
}

func (s *AdminStore) GetByID(ctx context.Context, id string) (models.Admin, error) {
	var row models.Admin
	err := s.db.GetContext(ctx, &row, `SELECT `+adminColumns+` FROM admins WHERE id = $1`, id)
	return row, err
}

func (s *AdminStore) List(ctx context.Context) ([]models.Admin, error) {
	rows := []models.Admin{}
	err := s.db.SelectContext(ctx, &rows, `SELECT `+adminColumns+` FROM admins ORDER BY created_at`)
	return rows, err
}

func (s *AdminStore) UpdatePassword(ctx context.Context, tx Execer, id, passwordHash string) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE admins
		SET password_hash = $1, updated_at = NOW()
		WHERE id = $2
	`, passwordHash, id)
	return err
}

// IsAdmin reports whether id is a known admin and whether it is a super admin.
func (s *AdminStore) IsAdmin(ctx context.Context, id string) (bool, bool, error) {
	var isSuper bool
	err := s.db.GetContext(ctx, &isSuper, `SELECT is_super FROM admins WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, false, nil
		}
		return false, false, err
	}
	return true, isSuper, nil
}

func (s *AdminStore) HasRole(ctx context.Context, id, role string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(1)
		FROM admin_roles
		WHERE admin_id = $1 AND role = $2
	`, id, role)
	return count > 0, err
}

func (s *AdminStore) Roles(ctx context.Context, id string) ([]string, error) {
	roles := []string{}
	err := s.db.SelectContext(ctx, &roles, `SELECT role FROM admin_roles WHERE admin_id = $1 ORDER BY role`, id)
	return roles, err
}

func (s *AdminStore) GrantRole(ctx context.Context, tx Execer, id, role string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO admin_roles (admin_id, role)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING
	`, id, role)
	return err
}

func (s *AdminStore) HasAnyAdmin(ctx context.Context) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `SELECT COUNT(1) FROM admins`)
	return count > 0, err
}
