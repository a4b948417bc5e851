package models

// GigStatus lifecycle of a gig listing.
type GigStatus string

const (
	GigStatusOpen       GigStatus = "open"
	GigStatusReviewing  GigStatus = "reviewing"
	GigStatusInProgress GigStatus = "in_progress"
	GigStatusFunded     GigStatus = "funded"
	GigStatusCompleted  GigStatus = "completed"
	GigStatusCancelled  GigStatus = "cancelled"
)

func (s GigStatus) IsValid() bool {
	switch s {
	case GigStatusOpen, GigStatusReviewing, GigStatusInProgress, GigStatusFunded, GigStatusCompleted, GigStatusCancelled:
		return true
	}
	return false
}

// gigTransitions is the single place gig transitions are validated.
var gigTransitions = map[GigStatus][]GigStatus{
	GigStatusOpen:       {GigStatusReviewing, GigStatusInProgress, GigStatusCancelled},
	GigStatusReviewing:  {GigStatusInProgress, GigStatusCancelled},
	GigStatusInProgress: {GigStatusFunded, GigStatusCancelled},
	GigStatusFunded:     {GigStatusCompleted},
	GigStatusCompleted:  {},
	GigStatusCancelled:  {},
}

func (s GigStatus) CanTransitionTo(next GigStatus) bool {
	for _, allowed := range gigTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ApplicationStatus lifecycle of a gig application.
type ApplicationStatus string

const (
	ApplicationStatusPending   ApplicationStatus = "pending"
	ApplicationStatusAccepted  ApplicationStatus = "accepted"
	ApplicationStatusRejected  ApplicationStatus = "rejected"
	ApplicationStatusWithdrawn ApplicationStatus = "withdrawn"
	ApplicationStatusFunded    ApplicationStatus = "funded"
	ApplicationStatusCompleted ApplicationStatus = "completed"
)

func (s ApplicationStatus) IsValid() bool {
	switch s {
	case ApplicationStatusPending, ApplicationStatusAccepted, ApplicationStatusRejected,
		ApplicationStatusWithdrawn, ApplicationStatusFunded, ApplicationStatusCompleted:
		return true
	}
	return false
}

// applicationTransitions: no back-edges, terminal states have no exits.
// An accepted application may still be rejected when a concurrent acceptance
// superseded it before funding.
var applicationTransitions = map[ApplicationStatus][]ApplicationStatus{
	ApplicationStatusPending:   {ApplicationStatusAccepted, ApplicationStatusRejected, ApplicationStatusWithdrawn},
	ApplicationStatusAccepted:  {ApplicationStatusFunded, ApplicationStatusRejected},
	ApplicationStatusFunded:    {ApplicationStatusCompleted},
	ApplicationStatusRejected:  {},
	ApplicationStatusWithdrawn: {},
	ApplicationStatusCompleted: {},
}

func (s ApplicationStatus) CanTransitionTo(next ApplicationStatus) bool {
	for _, allowed := range applicationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is possible.
func (s ApplicationStatus) IsTerminal() bool {
	return len(applicationTransitions[s]) == 0
}

// RateStatus negotiation sub-state, independent of the main lifecycle while
// the application is pending or accepted.
type RateStatus string

const (
	RateStatusProposed  RateStatus = "proposed"
	RateStatusCountered RateStatus = "countered"
	RateStatusAgreed    RateStatus = "agreed"
)

// Agreement is only reachable through a counter, so the agreeing party is
// always accepting the other side's offer, never their own opening proposal.
var rateTransitions = map[RateStatus][]RateStatus{
	RateStatusProposed:  {RateStatusCountered},
	RateStatusCountered: {RateStatusCountered, RateStatusAgreed},
	RateStatusAgreed:    {},
}

func (s RateStatus) CanTransitionTo(next RateStatus) bool {
	for _, allowed := range rateTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// EscrowPayState tracks where the application's money sits.
type EscrowPayState string

const (
	EscrowPayStateUnpaid   EscrowPayState = "unpaid"
	EscrowPayStateInEscrow EscrowPayState = "in_escrow"
	EscrowPayStatePaid     EscrowPayState = "paid"
)

// EscrowStatus state of an escrow account.
type EscrowStatus string

const (
	EscrowStatusActive    EscrowStatus = "active"
	EscrowStatusReleased  EscrowStatus = "released"
	EscrowStatusCancelled EscrowStatus = "cancelled"
	EscrowStatusDisputed  EscrowStatus = "disputed"
)

var escrowTransitions = map[EscrowStatus][]EscrowStatus{
	EscrowStatusActive:    {EscrowStatusReleased, EscrowStatusCancelled, EscrowStatusDisputed},
	EscrowStatusDisputed:  {EscrowStatusReleased, EscrowStatusCancelled},
	EscrowStatusReleased:  {},
	EscrowStatusCancelled: {},
}

func (s EscrowStatus) CanTransitionTo(next EscrowStatus) bool {
	for _, allowed := range escrowTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// PaymentStatus state of a funding attempt (payment intent).
type PaymentStatus string

const (
	PaymentStatusCreated    PaymentStatus = "created"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusSucceeded  PaymentStatus = "succeeded"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusExpired    PaymentStatus = "expired"
)

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusCreated:    {PaymentStatusProcessing, PaymentStatusSucceeded, PaymentStatusFailed, PaymentStatusExpired},
	PaymentStatusProcessing: {PaymentStatusSucceeded, PaymentStatusFailed, PaymentStatusExpired},
	PaymentStatusSucceeded:  {},
	PaymentStatusFailed:     {},
	PaymentStatusExpired:    {},
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// WithdrawalStatus state of a payout request.
type WithdrawalStatus string

const (
	WithdrawalStatusPending    WithdrawalStatus = "pending"
	WithdrawalStatusProcessing WithdrawalStatus = "processing"
	WithdrawalStatusCompleted  WithdrawalStatus = "completed"
	WithdrawalStatusFailed     WithdrawalStatus = "failed"
)

var withdrawalTransitions = map[WithdrawalStatus][]WithdrawalStatus{
	WithdrawalStatusPending:    {WithdrawalStatusProcessing, WithdrawalStatusCompleted, WithdrawalStatusFailed},
	WithdrawalStatusProcessing: {WithdrawalStatusCompleted, WithdrawalStatusFailed},
	WithdrawalStatusCompleted:  {},
	WithdrawalStatusFailed:     {},
}

func (s WithdrawalStatus) CanTransitionTo(next WithdrawalStatus) bool {
	for _, allowed := range withdrawalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// History entry classification.
const (
	HistoryTypeEarnings = "earnings"
	HistoryTypePayments = "payments"
)

const (
	HistoryStatusPending   = "pending"
	HistoryStatusCompleted = "completed"
	HistoryStatusFailed    = "failed"
)

// Rate negotiation actors.
const (
	RatePartyWorker   = "worker"
	RatePartyEmployer = "employer"
)
