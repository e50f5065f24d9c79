package repository

import (
	"context"

	"github.com/marc-dlt/StageBookingBack/internal/models"
)

// DirectoryRepository covers instructors and psychologues. Sessions only need
// existence checks against active entries plus minimal CRUD for seeding.
type DirectoryRepository struct {
	db DBTX
}

func NewDirectoryRepository(db DBTX) *DirectoryRepository {
	return &DirectoryRepository{db: db}
}

func (r *DirectoryRepository) CreateInstructor(ctx context.Context, instructor *models.Instructor) error {
	query := `
		INSERT INTO instructors (first_name, last_name, email, phone)
		VALUES ($1, $2, $3, $4)
		RETURNING id, is_archived, created_at, updated_at
	`
	return r.db.QueryRow(ctx, query, instructor.FirstName, instructor.LastName, instructor.Email, instructor.Phone).
		Scan(&instructor.ID, &instructor.IsArchived, &instructor.CreatedAt, &instructor.UpdatedAt)
}

func (r *DirectoryRepository) CreatePsychologue(ctx context.Context, psychologue *models.Psychologue) error {
	query := `
		INSERT INTO psychologues (first_name, last_name, email, phone)
		VALUES ($1, $2, $3, $4)
		RETURNING id, is_archived, created_at, updated_at
	`
	return r.db.QueryRow(ctx, query, psychologue.FirstName, psychologue.LastName, psychologue.Email, psychologue.Phone).
		Scan(&psychologue.ID, &psychologue.IsArchived, &psychologue.CreatedAt, &psychologue.UpdatedAt)
}

func (r *DirectoryRepository) InstructorExists(ctx context.Context, instructorID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM instructors
			WHERE id = $1 AND is_archived = FALSE
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, instructorID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *DirectoryRepository) PsychologueExists(ctx context.Context, psychologueID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM psychologues
			WHERE id = $1 AND is_archived = FALSE
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, psychologueID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *DirectoryRepository) ArchiveInstructor(ctx context.Context, instructorID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE instructors
		SET is_archived = TRUE, updated_at = NOW()
		WHERE id = $1
	`, instructorID)
	return err
}

func (r *DirectoryRepository) ArchivePsychologue(ctx context.Context, psychologueID int64) error {
	_, err := r.db.Exec(ctx, `
		UPDATE psychologues
		SET is_archived = TRUE, updated_at = NOW()
		WHERE id = $1
	`, psychologueID)
	return err
}
