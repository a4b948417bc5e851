package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GigApplication is a worker's bid on a gig, including the rate negotiation
// sub-state and the completion sub-flow.
type GigApplication struct {
	ID          uuid.UUID         `db:"id" json:"id"`
	GigID       uuid.UUID         `db:"gig_id" json:"gig_id"`
	ApplicantID uuid.UUID         `db:"applicant_id" json:"applicant_id"`
	CoverNote   string            `db:"cover_note" json:"cover_note"`
	Status      ApplicationStatus `db:"status" json:"status"`

	// Rate negotiation. AgreedRate, once set, is authoritative over
	// ProposedRate for all funding computations.
	ProposedRate   decimal.Decimal     `db:"proposed_rate" json:"proposed_rate"`
	AgreedRate     decimal.NullDecimal `db:"agreed_rate" json:"agreed_rate,omitempty"`
	RateStatus     RateStatus          `db:"rate_status" json:"rate_status"`
	LastRateBy     *string             `db:"last_rate_by" json:"last_rate_by,omitempty"`
	LastRateAmount decimal.NullDecimal `db:"last_rate_amount" json:"last_rate_amount,omitempty"`
	LastRateNote   *string             `db:"last_rate_note" json:"last_rate_note,omitempty"`

	PaymentStatus EscrowPayState `db:"payment_status" json:"payment_status"`

	// Completion sub-flow, only reachable from funded.
	CompletionRequestedAt   *time.Time    `db:"completion_requested_at" json:"completion_requested_at,omitempty"`
	CompletionRequestedBy   uuid.NullUUID `db:"completion_requested_by" json:"completion_requested_by,omitempty"`
	CompletionAutoReleaseAt *time.Time    `db:"completion_auto_release_at" json:"completion_auto_release_at,omitempty"`
	CompletionDisputedAt    *time.Time    `db:"completion_disputed_at" json:"completion_disputed_at,omitempty"`
	CompletionDisputeReason *string       `db:"completion_dispute_reason" json:"completion_dispute_reason,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

func (a *GigApplication) IsOwnedBy(userID uuid.UUID) bool {
	return a.ApplicantID == userID
}

// PayableRate returns the amount escrow is funded with: the negotiated rate
// when agreed, the worker's proposal otherwise. The gig's listed budget never
// wins over a negotiated rate.
func (a *GigApplication) PayableRate() decimal.Decimal {
	if a.AgreedRate.Valid {
		return a.AgreedRate.Decimal
	}
	return a.ProposedRate
}

// NegotiationOpen reports whether the rate can still be countered or agreed.
func (a *GigApplication) NegotiationOpen() bool {
	if a.RateStatus == RateStatusAgreed {
		return false
	}
	return a.Status == ApplicationStatusPending || a.Status == ApplicationStatusAccepted
}
