package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mzansigig/gigwork-backend/internal/models"
	"github.com/mzansigig/gigwork-backend/internal/repository/common"
)

var (
	ErrGigNotFound          = errors.New("gig not found")
	ErrInvalidGigTransition = errors.New("invalid gig status transition")
)

type GigRepository struct {
	db *sqlx.DB
}

func NewGigRepository(db *sqlx.DB) *GigRepository {
	return &GigRepository{db: db}
}

func (r *GigRepository) Create(ctx context.Context, gig *models.Gig) (*models.Gig, error) {
	var created models.Gig
	err := r.db.GetContext(ctx, &created, `
		INSERT INTO gigs (employer_id, title, description, budget, status, max_applicants)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING *
	`, gig.EmployerID, gig.Title, gig.Description, gig.Budget, models.GigStatusOpen, gig.MaxApplicants)
	if err != nil {
		return nil, fmt.Errorf("gig repository: create: %w", err)
	}
	return &created, nil
}

func (r *GigRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Gig, error) {
	return common.GetByID[models.Gig](ctx, r.db, "gigs", id, ErrGigNotFound)
}

func (r *GigRepository) List(ctx context.Context, status models.GigStatus, limit, offset int) ([]models.Gig, error) {
	var gigs []models.Gig
	var err error
	if status != "" {
		err = r.db.SelectContext(ctx, &gigs, `
			SELECT * FROM gigs WHERE status = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
		`, status, limit, offset)
	} else {
		err = r.db.SelectContext(ctx, &gigs, `
			SELECT * FROM gigs ORDER BY created_at DESC LIMIT $1 OFFSET $2
		`, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("gig repository: list: %w", err)
	}
	return gigs, nil
}

func (r *GigRepository) ListByEmployer(ctx context.Context, employerID uuid.UUID, limit, offset int) ([]models.Gig, error) {
	var gigs []models.Gig
	err := r.db.SelectContext(ctx, &gigs, `
		SELECT * FROM gigs WHERE employer_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, employerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("gig repository: list by employer: %w", err)
	}
	return gigs, nil
}

// UpdateStatus transitions a gig, validating the move against the transition
// table under a row lock.
func (r *GigRepository) UpdateStatus(ctx context.Context, id uuid.UUID, next models.GigStatus) (*models.Gig, error) {
	var updated models.Gig
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		gig, err := lockGigTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if !gig.Status.CanTransitionTo(next) {
			return ErrInvalidGigTransition
		}
		return tx.GetContext(ctx, &updated, `
			UPDATE gigs SET status = $2, updated_at = NOW() WHERE id = $1 RETURNING *
		`, id, next)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func lockGigTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*models.Gig, error) {
	var gig models.Gig
	err := tx.GetContext(ctx, &gig, `SELECT * FROM gigs WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrGigNotFound
		}
		return nil, fmt.Errorf("gig repository: lock: %w", err)
	}
	return &gig, nil
}
