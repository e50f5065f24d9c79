package repository

import (
	"context"

	"github.com/marc-dlt/StageBookingBack/internal/models"
)

type AdminRepository struct {
	db DBTX
}

func NewAdminRepository(db DBTX) *AdminRepository {
	return &AdminRepository{db: db}
}

func (r *AdminRepository) Create(ctx context.Context, admin *models.Admin) error {
	query := `
		INSERT INTO admins (email, password_hash, full_name)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRow(ctx, query, admin.Email, admin.PasswordHash, admin.FullName).
		Scan(&admin.ID, &admin.CreatedAt, &admin.UpdatedAt)
}

func (r *AdminRepository) GetByEmail(ctx context.Context, email string) (*models.Admin, error) {
	query := `
		SELECT id, email, password_hash, full_name, created_at, updated_at
		FROM admins
		WHERE email = $1
	`
	var admin models.Admin
	err := r.db.QueryRow(ctx, query, email).
		Scan(&admin.ID, &admin.Email, &admin.PasswordHash, &admin.FullName, &admin.CreatedAt, &admin.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &admin, nil
}

func (r *AdminRepository) GetByID(ctx context.Context, id int64) (*models.Admin, error) {
	query := `
		SELECT id, email, password_hash, full_name, created_at, updated_at
		FROM admins
		WHERE id = $1
	`
	var admin models.Admin
	err := r.db.QueryRow(ctx, query, id).
		Scan(&admin.ID, &admin.Email, &admin.PasswordHash, &admin.FullName, &admin.CreatedAt, &admin.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &admin, nil
}
