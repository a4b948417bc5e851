package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet carries a user's balance fields. Balance and PendingBalance are
// never negative; TotalEarnings and TotalWithdrawn are cumulative.
type Wallet struct {
	UserID         uuid.UUID       `db:"user_id" json:"user_id"`
	Balance        decimal.Decimal `db:"balance" json:"balance"`
	PendingBalance decimal.Decimal `db:"pending_balance" json:"pending_balance"`
	TotalEarnings  decimal.Decimal `db:"total_earnings" json:"total_earnings"`
	TotalWithdrawn decimal.Decimal `db:"total_withdrawn" json:"total_withdrawn"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}
