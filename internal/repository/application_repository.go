package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/mzansigig/gigwork-backend/internal/models"
	"github.com/mzansigig/gigwork-backend/internal/repository/common"
)

var (
	ErrApplicationNotFound     = errors.New("application not found")
	ErrGigNotOpen              = errors.New("gig is not accepting applications")
	ErrDuplicateApplication    = errors.New("applicant already has an active application for this gig")
	ErrMaxApplicantsReached    = errors.New("gig has reached its applicant cap")
	ErrInvalidApplicationState = errors.New("operation not valid for current application status")
	ErrNegotiationClosed       = errors.New("rate negotiation is closed")
	ErrNotApplicationOwner     = errors.New("actor does not own the application")
	ErrNotGigOwner             = errors.New("actor does not own the gig")
)

type ApplicationRepository struct {
	db *sqlx.DB
}

func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

func (r *ApplicationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.GigApplication, error) {
	return common.GetByID[models.GigApplication](ctx, r.db, "gig_applications", id, ErrApplicationNotFound)
}

func (r *ApplicationRepository) ListByGig(ctx context.Context, gigID uuid.UUID) ([]models.GigApplication, error) {
	var apps []models.GigApplication
	err := r.db.SelectContext(ctx, &apps, `
		SELECT * FROM gig_applications WHERE gig_id = $1 ORDER BY created_at ASC
	`, gigID)
	if err != nil {
		return nil, fmt.Errorf("application repository: list by gig: %w", err)
	}
	return apps, nil
}

func (r *ApplicationRepository) ListByApplicant(ctx context.Context, applicantID uuid.UUID, limit, offset int) ([]models.GigApplication, error) {
	var apps []models.GigApplication
	err := r.db.SelectContext(ctx, &apps, `
		SELECT * FROM gig_applications WHERE applicant_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, applicantID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("application repository: list by applicant: %w", err)
	}
	return apps, nil
}

// Create inserts a pending application after the creation guards: the gig
// must be open, the applicant must not already have a live application for
// it, and the applicant cap must not be reached. Filling the last slot flips
// the gig to reviewing in the same transaction.
func (r *ApplicationRepository) Create(ctx context.Context, gigID, applicantID uuid.UUID, proposedRate decimal.Decimal, coverNote string) (*models.GigApplication, error) {
	var created models.GigApplication
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		gig, err := lockGigTx(ctx, tx, gigID)
		if err != nil {
			return err
		}
		if gig.Status != models.GigStatusOpen {
			return ErrGigNotOpen
		}

		var existing int
		err = tx.GetContext(ctx, &existing, `
			SELECT COUNT(*) FROM gig_applications
			WHERE gig_id = $1 AND applicant_id = $2 AND status IN ('pending', 'accepted', 'funded')
		`, gigID, applicantID)
		if err != nil {
			return fmt.Errorf("application repository: count existing: %w", err)
		}
		if existing > 0 {
			return ErrDuplicateApplication
		}

		var total int
		err = tx.GetContext(ctx, &total, `
			SELECT COUNT(*) FROM gig_applications WHERE gig_id = $1 AND status = 'pending'
		`, gigID)
		if err != nil {
			return fmt.Errorf("application repository: count applicants: %w", err)
		}
		if total >= gig.MaxApplicants {
			return ErrMaxApplicantsReached
		}

		err = tx.GetContext(ctx, &created, `
			INSERT INTO gig_applications (gig_id, applicant_id, proposed_rate, cover_note, status, rate_status, payment_status)
			VALUES ($1, $2, $3, $4, 'pending', 'proposed', 'unpaid')
			RETURNING *
		`, gigID, applicantID, proposedRate, coverNote)
		if err != nil {
			return fmt.Errorf("application repository: insert: %w", err)
		}

		// Filling the last slot closes the gig to further applicants.
		if total+1 >= gig.MaxApplicants {
			_, err = tx.ExecContext(ctx, `
				UPDATE gigs SET status = $2, updated_at = NOW() WHERE id = $1
			`, gigID, models.GigStatusReviewing)
			if err != nil {
				return fmt.Errorf("application repository: flip gig to reviewing: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

// AcceptResult reports the fan-out of an acceptance.
type AcceptResult struct {
	Application   *models.GigApplication
	RejectedCount int64
}

// Accept transitions one application to accepted and, in the same
// transaction, rejects every other still-pending application for the gig and
// flips the gig to in-progress with the worker assigned. This fan-out is
// never partially applied.
func (r *ApplicationRepository) Accept(ctx context.Context, applicationID, employerID uuid.UUID) (*AcceptResult, error) {
	result := &AcceptResult{}
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		// Lock ordering: gig before application, same as Create, so the two
		// paths cannot deadlock each other.
		var gigID uuid.UUID
		err := tx.GetContext(ctx, &gigID, `SELECT gig_id FROM gig_applications WHERE id = $1`, applicationID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrApplicationNotFound
		}
		if err != nil {
			return fmt.Errorf("application repository: resolve gig: %w", err)
		}

		gig, err := lockGigTx(ctx, tx, gigID)
		if err != nil {
			return err
		}

		app, err := lockApplicationTx(ctx, tx, applicationID)
		if err != nil {
			return err
		}
		if !gig.IsOwnedBy(employerID) {
			return ErrNotGigOwner
		}
		if !app.Status.CanTransitionTo(models.ApplicationStatusAccepted) {
			return ErrInvalidApplicationState
		}
		if !gig.Status.CanTransitionTo(models.GigStatusInProgress) {
			return ErrInvalidGigTransition
		}

		var accepted models.GigApplication
		err = tx.GetContext(ctx, &accepted, `
			UPDATE gig_applications SET status = 'accepted', updated_at = NOW()
			WHERE id = $1 RETURNING *
		`, applicationID)
		if err != nil {
			return fmt.Errorf("application repository: accept: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE gig_applications SET status = 'rejected', updated_at = NOW()
			WHERE gig_id = $1 AND id <> $2 AND status = 'pending'
		`, app.GigID, applicationID)
		if err != nil {
			return fmt.Errorf("application repository: reject siblings: %w", err)
		}
		result.RejectedCount, _ = res.RowsAffected()

		_, err = tx.ExecContext(ctx, `
			UPDATE gigs SET status = $2, assigned_worker_id = $3, updated_at = NOW()
			WHERE id = $1
		`, app.GigID, models.GigStatusInProgress, accepted.ApplicantID)
		if err != nil {
			return fmt.Errorf("application repository: assign worker: %w", err)
		}

		result.Application = &accepted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Reject moves a pending application to rejected on the employer's behalf.
func (r *ApplicationRepository) Reject(ctx context.Context, applicationID, employerID uuid.UUID) (*models.GigApplication, error) {
	var rejected models.GigApplication
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		app, err := lockApplicationTx(ctx, tx, applicationID)
		if err != nil {
			return err
		}
		var gigOwner uuid.UUID
		if err := tx.GetContext(ctx, &gigOwner, `SELECT employer_id FROM gigs WHERE id = $1`, app.GigID); err != nil {
			return fmt.Errorf("application repository: gig owner: %w", err)
		}
		if gigOwner != employerID {
			return ErrNotGigOwner
		}
		if !app.Status.CanTransitionTo(models.ApplicationStatusRejected) {
			return ErrInvalidApplicationState
		}
		return tx.GetContext(ctx, &rejected, `
			UPDATE gig_applications SET status = 'rejected', updated_at = NOW()
			WHERE id = $1 RETURNING *
		`, applicationID)
	})
	if err != nil {
		return nil, err
	}
	return &rejected, nil
}

// Withdraw lets the applicant pull a still-pending application.
func (r *ApplicationRepository) Withdraw(ctx context.Context, applicationID, applicantID uuid.UUID) (*models.GigApplication, error) {
	var withdrawn models.GigApplication
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		app, err := lockApplicationTx(ctx, tx, applicationID)
		if err != nil {
			return err
		}
		if !app.IsOwnedBy(applicantID) {
			return ErrNotApplicationOwner
		}
		if app.Status != models.ApplicationStatusPending {
			return ErrInvalidApplicationState
		}
		return tx.GetContext(ctx, &withdrawn, `
			UPDATE gig_applications SET status = 'withdrawn', updated_at = NOW()
			WHERE id = $1 RETURNING *
		`, applicationID)
	})
	if err != nil {
		return nil, err
	}
	return &withdrawn, nil
}

// CounterRate records a counter-offer, overwriting the last rate update and
// toggling the negotiation to countered.
func (r *ApplicationRepository) CounterRate(ctx context.Context, applicationID uuid.UUID, by string, amount decimal.Decimal, note *string) (*models.GigApplication, error) {
	var updated models.GigApplication
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		app, err := lockApplicationTx(ctx, tx, applicationID)
		if err != nil {
			return err
		}
		if !app.NegotiationOpen() || !app.RateStatus.CanTransitionTo(models.RateStatusCountered) {
			return ErrNegotiationClosed
		}
		return tx.GetContext(ctx, &updated, `
			UPDATE gig_applications SET
				rate_status = 'countered',
				last_rate_by = $2,
				last_rate_amount = $3,
				last_rate_note = $4,
				updated_at = NOW()
			WHERE id = $1 RETURNING *
		`, applicationID, by, amount, note)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// AgreeRate closes the negotiation and fixes the agreed rate, which is
// authoritative for all downstream funding.
func (r *ApplicationRepository) AgreeRate(ctx context.Context, applicationID uuid.UUID, by string) (*models.GigApplication, error) {
	var updated models.GigApplication
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		app, err := lockApplicationTx(ctx, tx, applicationID)
		if err != nil {
			return err
		}
		if !app.NegotiationOpen() || !app.RateStatus.CanTransitionTo(models.RateStatusAgreed) {
			return ErrNegotiationClosed
		}
		// A party can only agree to the other side's last offer.
		if app.LastRateBy != nil && *app.LastRateBy == by {
			return ErrNegotiationClosed
		}
		agreed := app.ProposedRate
		if app.LastRateAmount.Valid {
			agreed = app.LastRateAmount.Decimal
		}
		return tx.GetContext(ctx, &updated, `
			UPDATE gig_applications SET
				rate_status = 'agreed',
				agreed_rate = $2,
				last_rate_by = $3,
				last_rate_amount = $2,
				updated_at = NOW()
			WHERE id = $1 RETURNING *
		`, applicationID, agreed, by)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// RequestCompletion starts the completion sub-flow on a funded application
// and arms the auto-release deadline.
func (r *ApplicationRepository) RequestCompletion(ctx context.Context, applicationID, workerID uuid.UUID, autoReleaseDays int) (*models.GigApplication, error) {
	var updated models.GigApplication
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		app, err := lockApplicationTx(ctx, tx, applicationID)
		if err != nil {
			return err
		}
		if !app.IsOwnedBy(workerID) {
			return ErrNotApplicationOwner
		}
		if app.Status != models.ApplicationStatusFunded {
			return ErrInvalidApplicationState
		}
		deadline := time.Now().AddDate(0, 0, autoReleaseDays)
		return tx.GetContext(ctx, &updated, `
			UPDATE gig_applications SET
				completion_requested_at = NOW(),
				completion_requested_by = $2,
				completion_auto_release_at = $3,
				updated_at = NOW()
			WHERE id = $1 RETURNING *
		`, applicationID, workerID, deadline)
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// GetAcceptedByGig returns the single accepted application for a gig.
func (r *ApplicationRepository) GetAcceptedByGig(ctx context.Context, gigID uuid.UUID) (*models.GigApplication, error) {
	var app models.GigApplication
	err := r.db.GetContext(ctx, &app, `
		SELECT * FROM gig_applications WHERE gig_id = $1 AND status = 'accepted'
	`, gigID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrApplicationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("application repository: accepted by gig: %w", err)
	}
	return &app, nil
}

func lockApplicationTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*models.GigApplication, error) {
	var app models.GigApplication
	err := tx.GetContext(ctx, &app, `SELECT * FROM gig_applications WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("application repository: lock: %w", err)
	}
	return &app, nil
}
