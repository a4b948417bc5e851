package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mzansigig/gigwork-backend/internal/logger"
	"github.com/mzansigig/gigwork-backend/internal/models"
	"github.com/mzansigig/gigwork-backend/internal/pkg/apperror"
	"github.com/mzansigig/gigwork-backend/internal/repository"
)

type ApplicationRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.GigApplication, error)
	ListByGig(ctx context.Context, gigID uuid.UUID) ([]models.GigApplication, error)
	ListByApplicant(ctx context.Context, applicantID uuid.UUID, limit, offset int) ([]models.GigApplication, error)
	Create(ctx context.Context, gigID, applicantID uuid.UUID, proposedRate decimal.Decimal, coverNote string) (*models.GigApplication, error)
	Accept(ctx context.Context, applicationID, employerID uuid.UUID) (*repository.AcceptResult, error)
	Reject(ctx context.Context, applicationID, employerID uuid.UUID) (*models.GigApplication, error)
	Withdraw(ctx context.Context, applicationID, applicantID uuid.UUID) (*models.GigApplication, error)
	CounterRate(ctx context.Context, applicationID uuid.UUID, by string, amount decimal.Decimal, note *string) (*models.GigApplication, error)
	AgreeRate(ctx context.Context, applicationID uuid.UUID, by string) (*models.GigApplication, error)
	RequestCompletion(ctx context.Context, applicationID, workerID uuid.UUID, autoReleaseDays int) (*models.GigApplication, error)
}

type GigReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Gig, error)
}

// ApplicationService drives the gig-application state machine and its rate
// negotiation sub-state.
type ApplicationService struct {
	apps ApplicationRepository
	gigs GigReader
	fees *FeeConfigService
}

func NewApplicationService(apps ApplicationRepository, gigs GigReader, fees *FeeConfigService) *ApplicationService {
	return &ApplicationService{apps: apps, gigs: gigs, fees: fees}
}

// Apply records a pending application for an open gig.
func (s *ApplicationService) Apply(ctx context.Context, gigID, applicantID uuid.UUID, proposedRate decimal.Decimal, coverNote string) (*models.GigApplication, error) {
	if proposedRate.LessThanOrEqual(decimal.Zero) {
		return nil, apperror.New(apperror.ErrCodeValidation, "proposed rate must be positive")
	}

	gig, err := s.gigs.GetByID(ctx, gigID)
	if err != nil {
		return nil, mapApplicationErr(err)
	}
	if gig.IsOwnedBy(applicantID) {
		return nil, apperror.New(apperror.ErrCodeForbidden, "employers cannot apply to their own gig")
	}

	app, err := s.apps.Create(ctx, gigID, applicantID, proposedRate, coverNote)
	if err != nil {
		return nil, mapApplicationErr(err)
	}
	return app, nil
}

// Accept accepts one application; every other pending application for the
// gig is rejected and the worker assigned in the same operation.
func (s *ApplicationService) Accept(ctx context.Context, applicationID, employerID uuid.UUID) (*models.GigApplication, error) {
	result, err := s.apps.Accept(ctx, applicationID, employerID)
	if err != nil {
		return nil, mapApplicationErr(err)
	}

	logger.Log.WithFields(logrus.Fields{
		"application_id": result.Application.ID,
		"gig_id":         result.Application.GigID,
		"rejected":       result.RejectedCount,
	}).Info("application accepted")

	return result.Application, nil
}

func (s *ApplicationService) Reject(ctx context.Context, applicationID, employerID uuid.UUID) (*models.GigApplication, error) {
	app, err := s.apps.Reject(ctx, applicationID, employerID)
	if err != nil {
		return nil, mapApplicationErr(err)
	}
	return app, nil
}

func (s *ApplicationService) Withdraw(ctx context.Context, applicationID, applicantID uuid.UUID) (*models.GigApplication, error) {
	app, err := s.apps.Withdraw(ctx, applicationID, applicantID)
	if err != nil {
		return nil, mapApplicationErr(err)
	}
	return app, nil
}

// Counter records a counter-offer from whichever side the actor is on.
func (s *ApplicationService) Counter(ctx context.Context, applicationID, actorID uuid.UUID, amount decimal.Decimal, note *string) (*models.GigApplication, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, apperror.New(apperror.ErrCodeValidation, "counter amount must be positive")
	}
	party, err := s.negotiationParty(ctx, applicationID, actorID)
	if err != nil {
		return nil, err
	}
	app, err := s.apps.CounterRate(ctx, applicationID, party, amount, note)
	if err != nil {
		return nil, mapApplicationErr(err)
	}
	return app, nil
}

// Agree closes the negotiation on the other side's last offer.
func (s *ApplicationService) Agree(ctx context.Context, applicationID, actorID uuid.UUID) (*models.GigApplication, error) {
	party, err := s.negotiationParty(ctx, applicationID, actorID)
	if err != nil {
		return nil, err
	}
	app, err := s.apps.AgreeRate(ctx, applicationID, party)
	if err != nil {
		return nil, mapApplicationErr(err)
	}
	return app, nil
}

// RequestCompletion starts the completion sub-flow; the auto-release deadline
// comes from the active fee configuration.
func (s *ApplicationService) RequestCompletion(ctx context.Context, applicationID, workerID uuid.UUID) (*models.GigApplication, error) {
	cfg, err := s.fees.GetActive(ctx)
	if err != nil {
		return nil, err
	}
	app, err := s.apps.RequestCompletion(ctx, applicationID, workerID, cfg.EscrowAutoReleaseDays)
	if err != nil {
		return nil, mapApplicationErr(err)
	}

	logger.Log.WithFields(logrus.Fields{
		"application_id":  app.ID,
		"auto_release_at": app.CompletionAutoReleaseAt,
	}).Info("completion requested")

	return app, nil
}

// Get returns an application to its applicant or the gig owner.
func (s *ApplicationService) Get(ctx context.Context, applicationID, actorID uuid.UUID) (*models.GigApplication, error) {
	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return nil, mapApplicationErr(err)
	}
	if app.IsOwnedBy(actorID) {
		return app, nil
	}
	gig, err := s.gigs.GetByID(ctx, app.GigID)
	if err != nil {
		return nil, mapApplicationErr(err)
	}
	if !gig.IsOwnedBy(actorID) {
		return nil, apperror.ErrForbidden
	}
	return app, nil
}

// ListByGig returns all applications for a gig the actor owns.
func (s *ApplicationService) ListByGig(ctx context.Context, gigID, employerID uuid.UUID) ([]models.GigApplication, error) {
	gig, err := s.gigs.GetByID(ctx, gigID)
	if err != nil {
		return nil, mapApplicationErr(err)
	}
	if !gig.IsOwnedBy(employerID) {
		return nil, apperror.ErrForbidden
	}
	return s.apps.ListByGig(ctx, gigID)
}

func (s *ApplicationService) ListMine(ctx context.Context, applicantID uuid.UUID, limit, offset int) ([]models.GigApplication, error) {
	return s.apps.ListByApplicant(ctx, applicantID, limit, offset)
}

// negotiationParty resolves which side of the table the actor sits on.
func (s *ApplicationService) negotiationParty(ctx context.Context, applicationID, actorID uuid.UUID) (string, error) {
	app, err := s.apps.GetByID(ctx, applicationID)
	if err != nil {
		return "", mapApplicationErr(err)
	}
	if app.IsOwnedBy(actorID) {
		return models.RatePartyWorker, nil
	}
	gig, err := s.gigs.GetByID(ctx, app.GigID)
	if err != nil {
		return "", mapApplicationErr(err)
	}
	if gig.IsOwnedBy(actorID) {
		return models.RatePartyEmployer, nil
	}
	return "", apperror.ErrForbidden
}

func mapApplicationErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrGigNotFound):
		return apperror.ErrGigNotFound
	case errors.Is(err, repository.ErrApplicationNotFound):
		return apperror.ErrApplicationNotFound
	case errors.Is(err, repository.ErrGigNotOpen):
		return apperror.New(apperror.ErrCodeInvalidState, "gig is not accepting applications")
	case errors.Is(err, repository.ErrDuplicateApplication):
		return apperror.New(apperror.ErrCodeConflict, "you already have an active application for this gig")
	case errors.Is(err, repository.ErrMaxApplicantsReached):
		return apperror.New(apperror.ErrCodeInvalidState, "gig has reached its applicant cap")
	case errors.Is(err, repository.ErrInvalidApplicationState):
		return apperror.New(apperror.ErrCodeInvalidState, "operation not valid for the application's current status")
	case errors.Is(err, repository.ErrInvalidGigTransition):
		return apperror.New(apperror.ErrCodeInvalidState, "operation not valid for the gig's current status")
	case errors.Is(err, repository.ErrNegotiationClosed):
		return apperror.New(apperror.ErrCodeInvalidState, "rate negotiation is closed")
	case errors.Is(err, repository.ErrNotApplicationOwner), errors.Is(err, repository.ErrNotGigOwner):
		return apperror.ErrForbidden
	default:
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "application operation failed")
	}
}
