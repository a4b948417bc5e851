package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WithdrawalRequest converts wallet balance into an external payout. The
// amount is debited from the wallet when the request is created, not when it
// completes; a rejected request credits it back.
type WithdrawalRequest struct {
	ID              uuid.UUID        `db:"id" json:"id"`
	UserID          uuid.UUID        `db:"user_id" json:"user_id"`
	Amount          decimal.Decimal  `db:"amount" json:"amount"`
	Status          WithdrawalStatus `db:"status" json:"status"`
	BankName        string           `db:"bank_name" json:"bank_name"`
	AccountLast4    string           `db:"account_last4" json:"account_last4"`
	IdempotencyKey  *string          `db:"idempotency_key" json:"idempotency_key,omitempty"`
	RejectionReason *string          `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	ProcessedAt     *time.Time       `db:"processed_at" json:"processed_at,omitempty"`
}
