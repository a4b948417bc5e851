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
	ErrEscrowNotFound        = errors.New("escrow account not found")
	ErrEscrowNotActive       = errors.New("escrow account is not releasable")
	ErrReleaseExceedsEscrow  = errors.New("release amount exceeds remaining escrow")
	ErrPaymentNotFound       = errors.New("payment not found")
	ErrPaymentExpired        = errors.New("payment intent has expired")
	ErrPaymentAlreadySettled = errors.New("payment already settled")
	ErrNoAcceptedApplication = errors.New("gig has no accepted application")
)

// EscrowRepository bridges application state and wallet state. Fund and
// Release mutate every record they touch inside one transaction; a failure at
// any step rolls the whole operation back, so the ledger is never left
// partially applied.
type EscrowRepository struct {
	db *sqlx.DB
}

func NewEscrowRepository(db *sqlx.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

func (r *EscrowRepository) GetByGigID(ctx context.Context, gigID uuid.UUID) (*models.EscrowAccount, error) {
	return common.GetByField[models.EscrowAccount](ctx, r.db, "escrow_accounts", "gig_id", gigID, ErrEscrowNotFound)
}

func (r *EscrowRepository) GetPaymentByReference(ctx context.Context, reference string) (*models.Payment, error) {
	return common.GetByField[models.Payment](ctx, r.db, "payments", "reference", reference, ErrPaymentNotFound)
}

func (r *EscrowRepository) GetPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	return common.GetByID[models.Payment](ctx, r.db, "payments", id, ErrPaymentNotFound)
}

// GetSettledPaymentByGig returns the payment that funded the gig's escrow.
func (r *EscrowRepository) GetSettledPaymentByGig(ctx context.Context, gigID uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.GetContext(ctx, &payment, `
		SELECT * FROM payments WHERE gig_id = $1 AND status = 'succeeded'
		ORDER BY settled_at DESC LIMIT 1
	`, gigID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("escrow repository: settled payment lookup: %w", err)
	}
	return &payment, nil
}

// CreateIntent records a funding attempt ahead of checkout. The reference is
// the provider transaction id and is unique across all attempts.
func (r *EscrowRepository) CreateIntent(ctx context.Context, gigID, employerID uuid.UUID, amount decimal.Decimal, reference string, allocationID *string, window time.Duration) (*models.Payment, error) {
	var payment models.Payment
	err := r.db.GetContext(ctx, &payment, `
		INSERT INTO payments (gig_id, employer_id, amount, reference, allocation_id, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, 'created', $6)
		RETURNING *
	`, gigID, employerID, amount, reference, allocationID, time.Now().Add(window))
	if err != nil {
		if common.IsUniqueViolation(err, "") {
			return nil, ErrPaymentAlreadySettled
		}
		return nil, fmt.Errorf("escrow repository: create intent: %w", err)
	}
	return &payment, nil
}

// FundResult is everything Fund touched, plus whether this call was a
// duplicate delivery that changed nothing.
type FundResult struct {
	Payment       *models.Payment
	Escrow        *models.EscrowAccount
	Application   *models.GigApplication
	AlreadyFunded bool
}

// Fund settles a payment and moves the gig into escrow: gig -> funded,
// application -> funded/in_escrow, escrow account created, worker pending
// balance credited, history rows appended for both parties. Idempotent by
// provider reference: a repeated webhook for an already-settled payment is a
// no-op. The paid amount is the application's negotiated rate (agreed rate
// when set, the proposal otherwise), never the gig's listed budget.
func (r *EscrowRepository) Fund(ctx context.Context, gigID, employerID uuid.UUID, grossAmount decimal.Decimal, reference string, window time.Duration) (*FundResult, error) {
	result := &FundResult{}
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		now := time.Now()

		// Idempotency guard: lock the payment row for this reference first.
		var payment models.Payment
		err := tx.GetContext(ctx, &payment, `SELECT * FROM payments WHERE reference = $1 FOR UPDATE`, reference)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// Direct funding without a prior checkout intent.
			err = tx.GetContext(ctx, &payment, `
				INSERT INTO payments (gig_id, employer_id, amount, reference, status, expires_at)
				VALUES ($1, $2, $3, $4, 'created', $5)
				RETURNING *
			`, gigID, employerID, grossAmount, reference, now.Add(window))
			if err != nil {
				return fmt.Errorf("escrow repository: create payment: %w", err)
			}
		case err != nil:
			return fmt.Errorf("escrow repository: lock payment: %w", err)
		}

		if payment.Status == models.PaymentStatusSucceeded {
			escrow, err := lockEscrowByGigTx(ctx, tx, payment.GigID)
			if err != nil {
				return err
			}
			result.Payment = &payment
			result.Escrow = escrow
			result.AlreadyFunded = true
			return nil
		}
		// Expiry is enforced here, not delegated to the gateway.
		if payment.Expired(now) || payment.Status == models.PaymentStatusExpired {
			if payment.Status != models.PaymentStatusExpired {
				if _, err := tx.ExecContext(ctx, `UPDATE payments SET status = 'expired' WHERE id = $1`, payment.ID); err != nil {
					return fmt.Errorf("escrow repository: expire payment: %w", err)
				}
			}
			return ErrPaymentExpired
		}
		if !payment.Status.CanTransitionTo(models.PaymentStatusSucceeded) {
			return ErrPaymentAlreadySettled
		}

		gig, err := lockGigTx(ctx, tx, gigID)
		if err != nil {
			return err
		}
		if !gig.IsOwnedBy(employerID) {
			return ErrNotGigOwner
		}
		if !gig.Status.CanTransitionTo(models.GigStatusFunded) {
			return ErrInvalidGigTransition
		}

		var app models.GigApplication
		err = tx.GetContext(ctx, &app, `
			SELECT * FROM gig_applications WHERE gig_id = $1 AND status = 'accepted' FOR UPDATE
		`, gigID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNoAcceptedApplication
		}
		if err != nil {
			return fmt.Errorf("escrow repository: lock accepted application: %w", err)
		}

		paidAmount := app.PayableRate()

		_, err = tx.ExecContext(ctx, `
			UPDATE gigs SET status = 'funded', updated_at = NOW() WHERE id = $1
		`, gigID)
		if err != nil {
			return fmt.Errorf("escrow repository: fund gig: %w", err)
		}

		var funded models.GigApplication
		err = tx.GetContext(ctx, &funded, `
			UPDATE gig_applications SET status = 'funded', payment_status = 'in_escrow', updated_at = NOW()
			WHERE id = $1 RETURNING *
		`, app.ID)
		if err != nil {
			return fmt.Errorf("escrow repository: fund application: %w", err)
		}

		var escrow models.EscrowAccount
		err = tx.GetContext(ctx, &escrow, `
			INSERT INTO escrow_accounts (gig_id, employer_id, worker_id, total_amount, released_amount, status)
			VALUES ($1, $2, $3, $4, 0, 'active')
			RETURNING *
		`, gigID, employerID, app.ApplicantID, paidAmount)
		if err != nil {
			return fmt.Errorf("escrow repository: create escrow: %w", err)
		}

		if err := reservePendingTx(ctx, tx, app.ApplicantID, paidAmount); err != nil {
			return err
		}

		employerNote := "escrow funding for gig"
		workerNote := "earnings held in escrow"
		gid := uuid.NullUUID{UUID: gigID, Valid: true}
		if err := appendHistoryTx(ctx, tx, models.PaymentHistoryEntry{
			UserID: employerID, Type: models.HistoryTypePayments, Status: models.HistoryStatusPending,
			Amount: paidAmount, GigID: gid, Reference: &reference, Description: &employerNote,
		}); err != nil {
			return err
		}
		if err := appendHistoryTx(ctx, tx, models.PaymentHistoryEntry{
			UserID: app.ApplicantID, Type: models.HistoryTypeEarnings, Status: models.HistoryStatusPending,
			Amount: paidAmount, GigID: gid, Reference: &reference, Description: &workerNote,
		}); err != nil {
			return err
		}

		var settled models.Payment
		err = tx.GetContext(ctx, &settled, `
			UPDATE payments SET status = 'succeeded', worker_id = $2, amount = $3, settled_at = NOW()
			WHERE id = $1 RETURNING *
		`, payment.ID, app.ApplicantID, paidAmount)
		if err != nil {
			return fmt.Errorf("escrow repository: settle payment: %w", err)
		}

		result.Payment = &settled
		result.Escrow = &escrow
		result.Application = &funded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Release moves amount (full remaining when zero) from the worker's pending
// balance into the withdrawable balance. A full release closes the escrow
// account, completes the application and the gig, and appends a completed
// earnings history entry. releasedAmount can never exceed totalAmount.
func (r *EscrowRepository) Release(ctx context.Context, gigID uuid.UUID, amount decimal.Decimal) (*models.EscrowAccount, error) {
	var released models.EscrowAccount
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		escrow, err := lockEscrowByGigTx(ctx, tx, gigID)
		if err != nil {
			return err
		}
		if !escrow.Status.CanTransitionTo(models.EscrowStatusReleased) {
			return ErrEscrowNotActive
		}

		remaining := escrow.Remaining()
		if amount.IsZero() {
			amount = remaining
		}
		if amount.LessThanOrEqual(decimal.Zero) || amount.GreaterThan(remaining) {
			return ErrReleaseExceedsEscrow
		}

		full := amount.Equal(remaining)
		if full {
			err = tx.GetContext(ctx, &released, `
				UPDATE escrow_accounts SET
					released_amount = released_amount + $2,
					status = 'released',
					released_at = NOW()
				WHERE id = $1 RETURNING *
			`, escrow.ID, amount)
		} else {
			err = tx.GetContext(ctx, &released, `
				UPDATE escrow_accounts SET released_amount = released_amount + $2
				WHERE id = $1 RETURNING *
			`, escrow.ID, amount)
		}
		if err != nil {
			return fmt.Errorf("escrow repository: release: %w", err)
		}

		if err := releasePendingTx(ctx, tx, escrow.WorkerID, amount); err != nil {
			return err
		}

		if full {
			_, err = tx.ExecContext(ctx, `
				UPDATE gig_applications SET status = 'completed', payment_status = 'paid', updated_at = NOW()
				WHERE gig_id = $1 AND status = 'funded'
			`, gigID)
			if err != nil {
				return fmt.Errorf("escrow repository: complete application: %w", err)
			}
			_, err = tx.ExecContext(ctx, `
				UPDATE gigs SET status = 'completed', updated_at = NOW() WHERE id = $1
			`, gigID)
			if err != nil {
				return fmt.Errorf("escrow repository: complete gig: %w", err)
			}
		}

		note := "escrow release"
		if err := appendHistoryTx(ctx, tx, models.PaymentHistoryEntry{
			UserID: escrow.WorkerID, Type: models.HistoryTypeEarnings, Status: models.HistoryStatusCompleted,
			Amount: amount, GigID: uuid.NullUUID{UUID: gigID, Valid: true}, Description: &note,
		}); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &released, nil
}

// Dispute flags the payment's escrow account and the application's completion
// sub-flow. No money moves; the auto-release path skips disputed escrows until
// the dispute is cleared externally.
func (r *EscrowRepository) Dispute(ctx context.Context, paymentID, raisedBy uuid.UUID, reason string) (*models.EscrowAccount, error) {
	var disputed models.EscrowAccount
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var payment models.Payment
		err := tx.GetContext(ctx, &payment, `SELECT * FROM payments WHERE id = $1`, paymentID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPaymentNotFound
		}
		if err != nil {
			return fmt.Errorf("escrow repository: dispute payment lookup: %w", err)
		}

		escrow, err := lockEscrowByGigTx(ctx, tx, payment.GigID)
		if err != nil {
			return err
		}
		if raisedBy != escrow.EmployerID && raisedBy != escrow.WorkerID {
			return ErrNotGigOwner
		}
		if !escrow.Status.CanTransitionTo(models.EscrowStatusDisputed) {
			return ErrEscrowNotActive
		}

		err = tx.GetContext(ctx, &disputed, `
			UPDATE escrow_accounts SET status = 'disputed', disputed_by = $2, dispute_reason = $3
			WHERE id = $1 RETURNING *
		`, escrow.ID, raisedBy, reason)
		if err != nil {
			return fmt.Errorf("escrow repository: dispute: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE gig_applications SET
				completion_disputed_at = NOW(),
				completion_dispute_reason = $2,
				updated_at = NOW()
			WHERE gig_id = $1 AND status = 'funded'
		`, payment.GigID, reason)
		if err != nil {
			return fmt.Errorf("escrow repository: dispute application: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &disputed, nil
}

// DueForRelease lists gigs whose completion auto-release deadline has passed
// without employer action or dispute. The caller releases each through the
// same Release path interactive requests use.
func (r *EscrowRepository) DueForRelease(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	var gigIDs []uuid.UUID
	err := r.db.SelectContext(ctx, &gigIDs, `
		SELECT a.gig_id FROM gig_applications a
		JOIN escrow_accounts e ON e.gig_id = a.gig_id
		WHERE a.status = 'funded'
		  AND a.completion_auto_release_at IS NOT NULL
		  AND a.completion_auto_release_at <= $1
		  AND a.completion_disputed_at IS NULL
		  AND e.status = 'active'
	`, now)
	if err != nil {
		return nil, fmt.Errorf("escrow repository: due for release: %w", err)
	}
	return gigIDs, nil
}

// ExpireDueIntents marks every unsettled payment past its window as expired.
// Safe to call repeatedly.
func (r *EscrowRepository) ExpireDueIntents(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE payments SET status = 'expired'
		WHERE status IN ('created', 'processing') AND expires_at <= $1
	`, now)
	if err != nil {
		return 0, fmt.Errorf("escrow repository: expire intents: %w", err)
	}
	return res.RowsAffected()
}

// MarkPaymentFailed records a failed funding attempt reported by the gateway.
func (r *EscrowRepository) MarkPaymentFailed(ctx context.Context, reference string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE payments SET status = 'failed', settled_at = NOW()
		WHERE reference = $1 AND status IN ('created', 'processing')
	`, reference)
	if err != nil {
		return fmt.Errorf("escrow repository: mark failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPaymentNotFound
	}
	return nil
}

func lockEscrowByGigTx(ctx context.Context, tx *sqlx.Tx, gigID uuid.UUID) (*models.EscrowAccount, error) {
	var escrow models.EscrowAccount
	err := tx.GetContext(ctx, &escrow, `SELECT * FROM escrow_accounts WHERE gig_id = $1 FOR UPDATE`, gigID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEscrowNotFound
		}
		return nil, fmt.Errorf("escrow repository: lock escrow: %w", err)
	}
	return &escrow, nil
}
