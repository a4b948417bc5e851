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
	ErrWithdrawalNotFound    = errors.New("withdrawal request not found")
	ErrWithdrawalRateLimited = errors.New("withdrawal request limit reached for the trailing window")
	ErrWithdrawalNotPending  = errors.New("withdrawal request is not pending")
)

type WithdrawalRepository struct {
	db *sqlx.DB
}

func NewWithdrawalRepository(db *sqlx.DB) *WithdrawalRepository {
	return &WithdrawalRepository{db: db}
}

// Create reserves the amount and queues the payout in one transaction. The
// wallet row lock serializes concurrent requests for the same user, so the
// replay lookup, the window count and the debit all see the same state. The
// funds are debited here, at creation, never at completion.
func (r *WithdrawalRepository) Create(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, bankName, accountLast4, idempotencyKey string, maxPerWindow int, window time.Duration) (*models.WithdrawalRequest, error) {
	var created models.WithdrawalRequest
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var walletUser uuid.UUID
		err := tx.GetContext(ctx, &walletUser, `SELECT user_id FROM wallets WHERE user_id = $1 FOR UPDATE`, userID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrInsufficientBalance
		}
		if err != nil {
			return fmt.Errorf("withdrawal repository: lock wallet: %w", err)
		}

		// A keyed retry replays the original request instead of debiting
		// the wallet a second time.
		if idempotencyKey != "" {
			err = tx.GetContext(ctx, &created, `
				SELECT * FROM withdrawal_requests WHERE user_id = $1 AND idempotency_key = $2
			`, userID, idempotencyKey)
			if err == nil {
				return nil
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("withdrawal repository: replay lookup: %w", err)
			}
		}

		var recent int
		err = tx.GetContext(ctx, &recent, `
			SELECT COUNT(*) FROM withdrawal_requests WHERE user_id = $1 AND created_at > $2
		`, userID, time.Now().Add(-window))
		if err != nil {
			return fmt.Errorf("withdrawal repository: count recent: %w", err)
		}
		if recent >= maxPerWindow {
			return ErrWithdrawalRateLimited
		}

		if err := debitWalletTx(ctx, tx, userID, amount); err != nil {
			return err
		}

		err = tx.GetContext(ctx, &created, `
			INSERT INTO withdrawal_requests (user_id, amount, status, bank_name, account_last4, idempotency_key)
			VALUES ($1, $2, 'pending', $3, $4, NULLIF($5, ''))
			RETURNING *
		`, userID, amount, bankName, accountLast4, idempotencyKey)
		if err != nil {
			return fmt.Errorf("withdrawal repository: insert: %w", err)
		}

		note := "withdrawal request"
		ref := created.ID.String()
		return appendHistoryTx(ctx, tx, models.PaymentHistoryEntry{
			UserID: userID, Type: models.HistoryTypePayments, Status: models.HistoryStatusPending,
			Amount: amount, Reference: &ref, Description: &note,
		})
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *WithdrawalRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	return common.GetByID[models.WithdrawalRequest](ctx, r.db, "withdrawal_requests", id, ErrWithdrawalNotFound)
}

// GetByIdempotencyKey finds a user's earlier request for the same client key.
func (r *WithdrawalRepository) GetByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*models.WithdrawalRequest, error) {
	var w models.WithdrawalRequest
	err := r.db.GetContext(ctx, &w, `
		SELECT * FROM withdrawal_requests WHERE user_id = $1 AND idempotency_key = $2
	`, userID, key)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrWithdrawalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("withdrawal repository: get by idempotency key: %w", err)
	}
	return &w, nil
}

// CountInWindow counts the user's requests in the trailing window. Advisory
// only: Create runs the authoritative count again under the wallet lock.
func (r *WithdrawalRepository) CountInWindow(ctx context.Context, userID uuid.UUID, window time.Duration) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM withdrawal_requests WHERE user_id = $1 AND created_at > $2
	`, userID, time.Now().Add(-window))
	if err != nil {
		return 0, fmt.Errorf("withdrawal repository: count in window: %w", err)
	}
	return n, nil
}

func (r *WithdrawalRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WithdrawalRequest, error) {
	var withdrawals []models.WithdrawalRequest
	err := r.db.SelectContext(ctx, &withdrawals, `
		SELECT * FROM withdrawal_requests WHERE user_id = $1 ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("withdrawal repository: list by user: %w", err)
	}
	return withdrawals, nil
}

// Approve completes the payout. No balance change: the amount was already
// debited when the request was created.
func (r *WithdrawalRepository) Approve(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	var approved models.WithdrawalRequest
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		w, err := lockWithdrawalTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if !w.Status.CanTransitionTo(models.WithdrawalStatusCompleted) {
			return ErrWithdrawalNotPending
		}
		err = tx.GetContext(ctx, &approved, `
			UPDATE withdrawal_requests SET status = 'completed', processed_at = NOW()
			WHERE id = $1 RETURNING *
		`, id)
		if err != nil {
			return fmt.Errorf("withdrawal repository: approve: %w", err)
		}

		note := "withdrawal completed"
		ref := id.String()
		return appendHistoryTx(ctx, tx, models.PaymentHistoryEntry{
			UserID: w.UserID, Type: models.HistoryTypePayments, Status: models.HistoryStatusCompleted,
			Amount: w.Amount, Reference: &ref, Description: &note,
		})
	})
	if err != nil {
		return nil, err
	}
	return &approved, nil
}

// Reject fails the request and credits the reserved amount back, in the same
// transaction, with a compensating history entry. After the round trip the
// wallet is exactly where it was before the request.
func (r *WithdrawalRepository) Reject(ctx context.Context, id uuid.UUID, reason string) (*models.WithdrawalRequest, error) {
	var rejected models.WithdrawalRequest
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		w, err := lockWithdrawalTx(ctx, tx, id)
		if err != nil {
			return err
		}
		if !w.Status.CanTransitionTo(models.WithdrawalStatusFailed) {
			return ErrWithdrawalNotPending
		}
		err = tx.GetContext(ctx, &rejected, `
			UPDATE withdrawal_requests SET status = 'failed', rejection_reason = $2, processed_at = NOW()
			WHERE id = $1 RETURNING *
		`, id, reason)
		if err != nil {
			return fmt.Errorf("withdrawal repository: reject: %w", err)
		}

		if err := refundDebitTx(ctx, tx, w.UserID, w.Amount); err != nil {
			return err
		}

		note := "withdrawal rejected, amount credited back: " + reason
		ref := id.String()
		return appendHistoryTx(ctx, tx, models.PaymentHistoryEntry{
			UserID: w.UserID, Type: models.HistoryTypePayments, Status: models.HistoryStatusFailed,
			Amount: w.Amount, Reference: &ref, Description: &note,
		})
	})
	if err != nil {
		return nil, err
	}
	return &rejected, nil
}

func lockWithdrawalTx(ctx context.Context, tx *sqlx.Tx, id uuid.UUID) (*models.WithdrawalRequest, error) {
	var w models.WithdrawalRequest
	err := tx.GetContext(ctx, &w, `SELECT * FROM withdrawal_requests WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("withdrawal repository: lock: %w", err)
	}
	return &w, nil
}
