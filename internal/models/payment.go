package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EscrowAccount holds a funded gig's money until release. One account per
// funded gig; released_amount never exceeds total_amount.
type EscrowAccount struct {
	ID             uuid.UUID       `db:"id" json:"id"`
	GigID          uuid.UUID       `db:"gig_id" json:"gig_id"`
	EmployerID     uuid.UUID       `db:"employer_id" json:"employer_id"`
	WorkerID       uuid.UUID       `db:"worker_id" json:"worker_id"`
	TotalAmount    decimal.Decimal `db:"total_amount" json:"total_amount"`
	ReleasedAmount decimal.Decimal `db:"released_amount" json:"released_amount"`
	Status         EscrowStatus    `db:"status" json:"status"`
	DisputedBy     uuid.NullUUID   `db:"disputed_by" json:"disputed_by,omitempty"`
	DisputeReason  *string         `db:"dispute_reason" json:"dispute_reason,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	ReleasedAt     *time.Time      `db:"released_at" json:"released_at,omitempty"`
}

// Remaining is how much can still be released.
func (e *EscrowAccount) Remaining() decimal.Decimal {
	return e.TotalAmount.Sub(e.ReleasedAmount)
}

// Payment records one funding attempt and its settlement. A payment not
// settled within the expiry window must not be honored afterwards, even if
// the gateway reports success.
type Payment struct {
	ID         uuid.UUID       `db:"id" json:"id"`
	GigID      uuid.UUID       `db:"gig_id" json:"gig_id"`
	EmployerID uuid.UUID       `db:"employer_id" json:"employer_id"`
	WorkerID   uuid.NullUUID   `db:"worker_id" json:"worker_id,omitempty"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	Reference  string          `db:"reference" json:"reference"`
	// AllocationID is the escrow gateway's delivery allocation, set only for
	// escrow-rail payments.
	AllocationID *string       `db:"allocation_id" json:"allocation_id,omitempty"`
	Status       PaymentStatus `db:"status" json:"status"`
	ExpiresAt    time.Time     `db:"expires_at" json:"expires_at"`
	SettledAt    *time.Time    `db:"settled_at" json:"settled_at,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}

// Expired reports whether the funding window has closed.
func (p *Payment) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// PaymentHistoryEntry is one row of the append-only, per-user audit trail.
// Wallet fields stay authoritative for current balances; history must
// reconcile with them.
type PaymentHistoryEntry struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	UserID      uuid.UUID       `db:"user_id" json:"user_id"`
	Type        string          `db:"type" json:"type"`
	Status      string          `db:"status" json:"status"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	GigID       uuid.NullUUID   `db:"gig_id" json:"gig_id,omitempty"`
	Reference   *string         `db:"reference" json:"reference,omitempty"`
	Description *string         `db:"description" json:"description,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}
