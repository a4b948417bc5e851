package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FeeConfig holds the platform commission rate and gig amount bounds. At most
// one config is active at a time.
type FeeConfig struct {
	ID                        uuid.UUID       `db:"id" json:"id"`
	PlatformCommissionPercent decimal.Decimal `db:"platform_commission_percent" json:"platform_commission_percent"`
	MinimumGigAmount          decimal.Decimal `db:"minimum_gig_amount" json:"minimum_gig_amount"`
	MaximumGigAmount          decimal.Decimal `db:"maximum_gig_amount" json:"maximum_gig_amount"`
	EscrowAutoReleaseDays     int             `db:"escrow_auto_release_days" json:"escrow_auto_release_days"`
	IsActive                  bool            `db:"is_active" json:"is_active"`
	CreatedAt                 time.Time       `db:"created_at" json:"created_at"`
}

// FeeBreakdown is the commission split for a gig amount. PlatformCommission
// plus WorkerEarnings always equals GigAmount exactly.
type FeeBreakdown struct {
	GigAmount          decimal.Decimal `json:"gig_amount"`
	PlatformCommission decimal.Decimal `json:"platform_commission"`
	WorkerEarnings     decimal.Decimal `json:"worker_earnings"`
}
