package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mzansigig/gigwork-backend/internal/gateway/paystack"
	"github.com/mzansigig/gigwork-backend/internal/gateway/truzo"
	"github.com/mzansigig/gigwork-backend/internal/logger"
	"github.com/mzansigig/gigwork-backend/internal/models"
	"github.com/mzansigig/gigwork-backend/internal/pkg/apperror"
	"github.com/mzansigig/gigwork-backend/internal/repository"
)

// PaymentIntentWindow is how long a funding attempt may stay unsettled.
// Expiry is enforced by this service even if the gateway reports success.
const PaymentIntentWindow = 30 * time.Minute

type EscrowRepository interface {
	GetByGigID(ctx context.Context, gigID uuid.UUID) (*models.EscrowAccount, error)
	GetPaymentByReference(ctx context.Context, reference string) (*models.Payment, error)
	GetPaymentByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetSettledPaymentByGig(ctx context.Context, gigID uuid.UUID) (*models.Payment, error)
	CreateIntent(ctx context.Context, gigID, employerID uuid.UUID, amount decimal.Decimal, reference string, allocationID *string, window time.Duration) (*models.Payment, error)
	Fund(ctx context.Context, gigID, employerID uuid.UUID, grossAmount decimal.Decimal, reference string, window time.Duration) (*repository.FundResult, error)
	Release(ctx context.Context, gigID uuid.UUID, amount decimal.Decimal) (*models.EscrowAccount, error)
	Dispute(ctx context.Context, paymentID, raisedBy uuid.UUID, reason string) (*models.EscrowAccount, error)
	DueForRelease(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	ExpireDueIntents(ctx context.Context, now time.Time) (int64, error)
	MarkPaymentFailed(ctx context.Context, reference string) error
}

type AcceptedApplicationFinder interface {
	GetAcceptedByGig(ctx context.Context, gigID uuid.UUID) (*models.GigApplication, error)
}

// CardGateway is the card/EFT checkout rail.
type CardGateway interface {
	InitializeTransaction(ctx context.Context, email string, amount decimal.Decimal, reference string, metadata map[string]interface{}) (*paystack.InitializeData, error)
	VerifyTransaction(ctx context.Context, reference string) (*paystack.VerifyData, error)
}

// EscrowGateway is the third-party escrow rail.
type EscrowGateway interface {
	CreateToken(ctx context.Context, party truzo.Party) (string, error)
	CreateTransaction(ctx context.Context, buyerToken, sellerToken string, feePercent, value decimal.Decimal, reference string) (*truzo.Transaction, error)
	GetCheckoutLink(ctx context.Context, transactionID string) (string, error)
	StartDelivery(ctx context.Context, allocationID string) error
	CompleteDelivery(ctx context.Context, allocationID string) error
	AcceptDelivery(ctx context.Context, allocationID string) error
	CancelTransaction(ctx context.Context, transactionID, reason string) error
}

// EscrowService orchestrates funding and releasing escrow, bridging the
// application state machine and the wallet ledger.
type EscrowService struct {
	escrows EscrowRepository
	apps    AcceptedApplicationFinder
	gigs    GigReader
	fees    *FeeConfigService
	card    CardGateway
	escrow  EscrowGateway
}

func NewEscrowService(escrows EscrowRepository, apps AcceptedApplicationFinder, gigs GigReader, fees *FeeConfigService, card CardGateway, escrow EscrowGateway) *EscrowService {
	return &EscrowService{escrows: escrows, apps: apps, gigs: gigs, fees: fees, card: card, escrow: escrow}
}

// Checkout is what the employer needs to complete payment externally.
type Checkout struct {
	Payment     *models.Payment     `json:"payment"`
	CheckoutURL string              `json:"checkout_url"`
	Breakdown   models.FeeBreakdown `json:"breakdown"`
}

// InitiateCardCheckout opens a card/EFT funding attempt for the gig's
// accepted application. The amount is the negotiated rate, bounds-checked
// against the active fee configuration.
func (s *EscrowService) InitiateCardCheckout(ctx context.Context, gigID, employerID uuid.UUID, email string) (*Checkout, error) {
	amount, cfg, err := s.payableAmount(ctx, gigID, employerID)
	if err != nil {
		return nil, err
	}

	reference := "GIG-" + uuid.NewString()
	payment, err := s.escrows.CreateIntent(ctx, gigID, employerID, amount, reference, nil, PaymentIntentWindow)
	if err != nil {
		return nil, mapEscrowErr(err)
	}

	init, err := s.card.InitializeTransaction(ctx, email, amount, reference, map[string]interface{}{
		"gig_id": gigID.String(),
	})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeGatewayError, "card gateway rejected the checkout")
	}

	return &Checkout{
		Payment:     payment,
		CheckoutURL: init.AuthorizationURL,
		Breakdown:   CalculateFeeBreakdown(amount, cfg),
	}, nil
}

// InitiateEscrowCheckout opens a funding attempt on the escrow gateway rail:
// both parties are tokenized, a transaction is created with the platform
// commission as the agent fee, and the buyer gets a checkout link.
func (s *EscrowService) InitiateEscrowCheckout(ctx context.Context, gigID, employerID uuid.UUID, buyer, seller truzo.Party) (*Checkout, error) {
	amount, cfg, err := s.payableAmount(ctx, gigID, employerID)
	if err != nil {
		return nil, err
	}

	buyerToken, err := s.escrow.CreateToken(ctx, buyer)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeGatewayError, "escrow gateway rejected the buyer")
	}
	sellerToken, err := s.escrow.CreateToken(ctx, seller)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeGatewayError, "escrow gateway rejected the seller")
	}

	txn, err := s.escrow.CreateTransaction(ctx, buyerToken, sellerToken, cfg.PlatformCommissionPercent, amount, gigID.String())
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeGatewayError, "escrow gateway rejected the transaction")
	}

	link, err := s.escrow.GetCheckoutLink(ctx, txn.ID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeGatewayError, "escrow gateway returned no checkout link")
	}

	payment, err := s.escrows.CreateIntent(ctx, gigID, employerID, amount, txn.ID, &txn.AllocationID, PaymentIntentWindow)
	if err != nil {
		return nil, mapEscrowErr(err)
	}

	return &Checkout{
		Payment:     payment,
		CheckoutURL: link,
		Breakdown:   CalculateFeeBreakdown(amount, cfg),
	}, nil
}

// Fund settles the referenced payment and moves the money into escrow. Safe
// to call more than once per reference; the duplicate is a logged no-op.
func (s *EscrowService) Fund(ctx context.Context, reference string, grossAmount decimal.Decimal) (*repository.FundResult, error) {
	payment, err := s.escrows.GetPaymentByReference(ctx, reference)
	if err != nil {
		return nil, mapEscrowErr(err)
	}

	result, err := s.escrows.Fund(ctx, payment.GigID, payment.EmployerID, grossAmount, reference, PaymentIntentWindow)
	if err != nil {
		return nil, mapEscrowErr(err)
	}
	if result.AlreadyFunded {
		logger.Log.WithField("reference", reference).Info("duplicate funding delivery ignored")
		return result, nil
	}

	logger.Log.WithFields(logrus.Fields{
		"gig_id":    result.Payment.GigID,
		"reference": reference,
		"amount":    result.Payment.Amount.String(),
	}).Info("escrow funded")

	// Work may begin: tell the escrow gateway delivery has started.
	if result.Payment.AllocationID != nil {
		if err := s.escrow.StartDelivery(ctx, *result.Payment.AllocationID); err != nil {
			logger.Log.WithError(err).Warn("escrow gateway start delivery failed")
		}
	}
	return result, nil
}

// FundFromIntent settles a previously created intent using its recorded
// amount. Used by the escrow-rail webhook, which reports no usable amount.
func (s *EscrowService) FundFromIntent(ctx context.Context, reference string) (*repository.FundResult, error) {
	payment, err := s.escrows.GetPaymentByReference(ctx, reference)
	if err != nil {
		return nil, mapEscrowErr(err)
	}
	return s.Fund(ctx, reference, payment.Amount)
}

// VerifyAndFund pulls the settlement state from the card gateway and funds on
// success. Used when a webhook was missed.
func (s *EscrowService) VerifyAndFund(ctx context.Context, reference string) (*repository.FundResult, error) {
	verification, err := s.card.VerifyTransaction(ctx, reference)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeGatewayError, "card gateway verification failed")
	}
	if verification.Status != "success" {
		return nil, apperror.New(apperror.ErrCodeInvalidState, fmt.Sprintf("payment is not settled at the gateway: %s", verification.Status))
	}
	return s.Fund(ctx, reference, paystack.FromSubunits(verification.Amount))
}

// ConfirmCompletion is the employer accepting the work: releases the full
// remaining escrow and acknowledges delivery on the escrow gateway rail.
func (s *EscrowService) ConfirmCompletion(ctx context.Context, gigID, employerID uuid.UUID) (*models.EscrowAccount, error) {
	escrow, err := s.escrows.GetByGigID(ctx, gigID)
	if err != nil {
		return nil, mapEscrowErr(err)
	}
	if escrow.EmployerID != employerID {
		return nil, apperror.ErrForbidden
	}

	released, err := s.escrows.Release(ctx, gigID, decimal.Zero)
	if err != nil {
		return nil, mapEscrowErr(err)
	}
	s.acknowledgeDelivery(ctx, gigID)
	return released, nil
}

// Release moves amount (full remaining when zero) out of escrow on behalf of
// the system, e.g. the auto-release trigger.
func (s *EscrowService) Release(ctx context.Context, gigID uuid.UUID, amount decimal.Decimal) (*models.EscrowAccount, error) {
	released, err := s.escrows.Release(ctx, gigID, amount)
	if err != nil {
		return nil, mapEscrowErr(err)
	}
	return released, nil
}

// Dispute flags the payment. No money moves and auto-release is blocked until
// the dispute is resolved externally.
func (s *EscrowService) Dispute(ctx context.Context, paymentID, raisedBy uuid.UUID, reason string) (*models.EscrowAccount, error) {
	if reason == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "a dispute requires a reason")
	}
	disputed, err := s.escrows.Dispute(ctx, paymentID, raisedBy, reason)
	if err != nil {
		return nil, mapEscrowErr(err)
	}

	logger.Log.WithFields(logrus.Fields{
		"payment_id": paymentID,
		"raised_by":  raisedBy,
	}).Warn("escrow disputed")

	return disputed, nil
}

// NotifyCompletionRequested mirrors a worker's completion request onto the
// escrow gateway as a completed delivery. Best effort: the ledger state is
// authoritative either way.
func (s *EscrowService) NotifyCompletionRequested(ctx context.Context, gigID uuid.UUID) {
	payment, err := s.escrows.GetSettledPaymentByGig(ctx, gigID)
	if err != nil || payment.AllocationID == nil {
		return
	}
	if err := s.escrow.CompleteDelivery(ctx, *payment.AllocationID); err != nil {
		logger.Log.WithError(err).Warn("escrow gateway complete delivery failed")
	}
}

// GetEscrow returns the escrow account to either party.
func (s *EscrowService) GetEscrow(ctx context.Context, gigID, actorID uuid.UUID) (*models.EscrowAccount, error) {
	escrow, err := s.escrows.GetByGigID(ctx, gigID)
	if err != nil {
		return nil, mapEscrowErr(err)
	}
	if actorID != escrow.EmployerID && actorID != escrow.WorkerID {
		return nil, apperror.ErrForbidden
	}
	return escrow, nil
}

// ReleaseDueEscrows is the idempotent entry point the external scheduler
// calls: it releases every escrow whose auto-release deadline has passed
// undisputed, through the same path interactive requests use.
func (s *EscrowService) ReleaseDueEscrows(ctx context.Context) (int, error) {
	due, err := s.escrows.DueForRelease(ctx, time.Now())
	if err != nil {
		return 0, mapEscrowErr(err)
	}

	released := 0
	for _, gigID := range due {
		if _, err := s.escrows.Release(ctx, gigID, decimal.Zero); err != nil {
			// Keep going: each release is its own transaction and the next
			// scheduler run retries whatever is still due.
			logger.Log.WithError(err).WithField("gig_id", gigID).Error("auto-release failed")
			continue
		}
		s.acknowledgeDelivery(ctx, gigID)
		released++
	}

	if released > 0 {
		logger.Log.WithField("released", released).Info("auto-release pass complete")
	}
	return released, nil
}

// ExpireDuePayments is the idempotent expiry entry point for the external
// scheduler.
func (s *EscrowService) ExpireDuePayments(ctx context.Context) (int64, error) {
	expired, err := s.escrows.ExpireDueIntents(ctx, time.Now())
	if err != nil {
		return 0, mapEscrowErr(err)
	}
	if expired > 0 {
		logger.Log.WithField("expired", expired).Info("expired unsettled payment intents")
	}
	return expired, nil
}

// MarkFailed records a gateway-reported failure for a funding attempt.
func (s *EscrowService) MarkFailed(ctx context.Context, reference string) error {
	if err := s.escrows.MarkPaymentFailed(ctx, reference); err != nil {
		return mapEscrowErr(err)
	}
	return nil
}

func (s *EscrowService) payableAmount(ctx context.Context, gigID, employerID uuid.UUID) (decimal.Decimal, *models.FeeConfig, error) {
	gig, err := s.gigs.GetByID(ctx, gigID)
	if err != nil {
		return decimal.Zero, nil, mapEscrowErr(err)
	}
	if !gig.IsOwnedBy(employerID) {
		return decimal.Zero, nil, apperror.ErrForbidden
	}

	app, err := s.apps.GetAcceptedByGig(ctx, gigID)
	if err != nil {
		return decimal.Zero, nil, mapEscrowErr(err)
	}
	amount := app.PayableRate()

	cfg, err := s.fees.GetActive(ctx)
	if err != nil {
		return decimal.Zero, nil, err
	}
	if amount.LessThan(cfg.MinimumGigAmount) || amount.GreaterThan(cfg.MaximumGigAmount) {
		return decimal.Zero, nil, apperror.New(apperror.ErrCodeOutOfBounds, "amount is outside the configured gig amount bounds")
	}
	return amount, cfg, nil
}

func (s *EscrowService) acknowledgeDelivery(ctx context.Context, gigID uuid.UUID) {
	payment, err := s.escrows.GetSettledPaymentByGig(ctx, gigID)
	if err != nil || payment.AllocationID == nil {
		return
	}
	if err := s.escrow.AcceptDelivery(ctx, *payment.AllocationID); err != nil {
		logger.Log.WithError(err).Warn("escrow gateway accept delivery failed")
	}
}

func mapEscrowErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrGigNotFound):
		return apperror.ErrGigNotFound
	case errors.Is(err, repository.ErrEscrowNotFound):
		return apperror.ErrEscrowNotFound
	case errors.Is(err, repository.ErrPaymentNotFound):
		return apperror.ErrPaymentNotFound
	case errors.Is(err, repository.ErrApplicationNotFound), errors.Is(err, repository.ErrNoAcceptedApplication):
		return apperror.New(apperror.ErrCodeInvalidState, "gig has no accepted application to fund")
	case errors.Is(err, repository.ErrPaymentExpired):
		return apperror.New(apperror.ErrCodeInvalidState, "payment intent has expired and cannot be honored")
	case errors.Is(err, repository.ErrPaymentAlreadySettled):
		return apperror.New(apperror.ErrCodeConflict, "payment reference was already settled")
	case errors.Is(err, repository.ErrEscrowNotActive):
		return apperror.New(apperror.ErrCodeInvalidState, "escrow account is not releasable")
	case errors.Is(err, repository.ErrReleaseExceedsEscrow):
		return apperror.New(apperror.ErrCodeInvalidState, "release amount exceeds the remaining escrow")
	case errors.Is(err, repository.ErrInvalidGigTransition):
		return apperror.New(apperror.ErrCodeInvalidState, "gig cannot be funded in its current status")
	case errors.Is(err, repository.ErrNotGigOwner):
		return apperror.ErrForbidden
	case errors.Is(err, repository.ErrInsufficientPending):
		return apperror.Wrap(err, apperror.ErrCodeConsistency, "pending balance does not cover the release; ledger needs manual reconciliation")
	default:
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "escrow operation failed")
	}
}
