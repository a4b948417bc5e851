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
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	ErrInsufficientPending = errors.New("insufficient pending balance")
)

// WalletRepository reads the per-user balance fields. Mutations happen
// through the tx-scoped primitives below, always inside the transaction of
// the escrow or withdrawal operation that causes them; balances are never
// read-then-written as two independent statements.
type WalletRepository struct {
	db *sqlx.DB
}

func NewWalletRepository(db *sqlx.DB) *WalletRepository {
	return &WalletRepository{db: db}
}

// GetBalance returns the wallet fields, zeroes for a user with no wallet row.
func (r *WalletRepository) GetBalance(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var w models.Wallet
	err := r.db.GetContext(ctx, &w, `SELECT * FROM wallets WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.Wallet{
			UserID:         userID,
			Balance:        decimal.Zero,
			PendingBalance: decimal.Zero,
			TotalEarnings:  decimal.Zero,
			TotalWithdrawn: decimal.Zero,
			UpdatedAt:      time.Now(),
		}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("wallet repository: get balance: %w", err)
	}
	return &w, nil
}

// Tx-scoped primitives below are shared with the escrow and withdrawal
// repositories so their multi-record operations commit as one unit.

// creditWalletTx adds withdrawable balance and counts it as earnings.
// Initializes the wallet row if the user has none yet.
func creditWalletTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount decimal.Decimal) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (user_id, balance, pending_balance, total_earnings, total_withdrawn)
		VALUES ($1, $2, 0, $2, 0)
		ON CONFLICT (user_id) DO UPDATE SET
			balance = wallets.balance + $2,
			total_earnings = wallets.total_earnings + $2,
			updated_at = NOW()
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("wallet repository: credit: %w", err)
	}
	return nil
}

// debitWalletTx subtracts withdrawable balance, failing with
// ErrInsufficientBalance when the wallet cannot cover the amount. The
// read-check-write runs under a row lock, so concurrent debits cannot both
// pass the balance check against stale data.
func debitWalletTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount decimal.Decimal) error {
	var balance decimal.Decimal
	err := tx.GetContext(ctx, &balance, `SELECT balance FROM wallets WHERE user_id = $1 FOR UPDATE`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInsufficientBalance
	}
	if err != nil {
		return fmt.Errorf("wallet repository: debit lock: %w", err)
	}
	if balance.LessThan(amount) {
		return ErrInsufficientBalance
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE wallets SET
			balance = balance - $2,
			total_withdrawn = total_withdrawn + $2,
			updated_at = NOW()
		WHERE user_id = $1
	`, userID, amount)
	if err != nil {
		// The balance CHECK is the backstop for the pre-check above.
		if common.IsCheckViolation(err) {
			return ErrInsufficientBalance
		}
		return fmt.Errorf("wallet repository: debit: %w", err)
	}
	return nil
}

// refundDebitTx is the compensating credit for a failed or rejected
// withdrawal: it restores the balance and unwinds the cumulative withdrawn
// counter so the round trip leaves the wallet exactly where it started.
func refundDebitTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount decimal.Decimal) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE wallets SET
			balance = balance + $2,
			total_withdrawn = total_withdrawn - $2,
			updated_at = NOW()
		WHERE user_id = $1
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("wallet repository: refund debit: %w", err)
	}
	return nil
}

// reservePendingTx moves value into the pending (escrowed) balance.
func reservePendingTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount decimal.Decimal) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (user_id, balance, pending_balance, total_earnings, total_withdrawn)
		VALUES ($1, 0, $2, 0, 0)
		ON CONFLICT (user_id) DO UPDATE SET
			pending_balance = wallets.pending_balance + $2,
			updated_at = NOW()
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("wallet repository: reserve pending: %w", err)
	}
	return nil
}

// releasePendingTx moves value from pending to withdrawable balance and
// counts it as earnings.
func releasePendingTx(ctx context.Context, tx *sqlx.Tx, userID uuid.UUID, amount decimal.Decimal) error {
	var pending decimal.Decimal
	err := tx.GetContext(ctx, &pending, `SELECT pending_balance FROM wallets WHERE user_id = $1 FOR UPDATE`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInsufficientPending
	}
	if err != nil {
		return fmt.Errorf("wallet repository: release lock: %w", err)
	}
	if pending.LessThan(amount) {
		return ErrInsufficientPending
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE wallets SET
			pending_balance = pending_balance - $2,
			balance = balance + $2,
			total_earnings = total_earnings + $2,
			updated_at = NOW()
		WHERE user_id = $1
	`, userID, amount)
	if err != nil {
		if common.IsCheckViolation(err) {
			return ErrInsufficientPending
		}
		return fmt.Errorf("wallet repository: release pending: %w", err)
	}
	return nil
}

// appendHistoryTx writes one audit-trail row inside the caller's transaction.
func appendHistoryTx(ctx context.Context, tx *sqlx.Tx, entry models.PaymentHistoryEntry) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO payment_history (user_id, type, status, amount, gig_id, reference, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.UserID, entry.Type, entry.Status, entry.Amount, entry.GigID, entry.Reference, entry.Description)
	if err != nil {
		return fmt.Errorf("wallet repository: append history: %w", err)
	}
	return nil
}
