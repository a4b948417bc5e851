package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mzansigig/gigwork-backend/internal/models"
	"github.com/mzansigig/gigwork-backend/internal/pkg/apperror"
	"github.com/mzansigig/gigwork-backend/internal/repository"
)

const defaultMaxApplicants = 20

type GigRepo interface {
	Create(ctx context.Context, gig *models.Gig) (*models.Gig, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Gig, error)
	List(ctx context.Context, status models.GigStatus, limit, offset int) ([]models.Gig, error)
	ListByEmployer(ctx context.Context, employerID uuid.UUID, limit, offset int) ([]models.Gig, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, next models.GigStatus) (*models.Gig, error)
}

type GigService struct {
	gigs GigRepo
	fees *FeeConfigService
}

func NewGigService(gigs GigRepo, fees *FeeConfigService) *GigService {
	return &GigService{gigs: gigs, fees: fees}
}

// Create lists a gig. The budget is advisory and bounds-checked; the actual
// escrow amount at funding time is the negotiated rate.
func (s *GigService) Create(ctx context.Context, employerID uuid.UUID, title, description string, budget decimal.Decimal, maxApplicants int) (*models.Gig, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "title is required")
	}
	if err := s.fees.CheckBounds(ctx, budget); err != nil {
		return nil, err
	}
	if maxApplicants <= 0 {
		maxApplicants = defaultMaxApplicants
	}

	gig, err := s.gigs.Create(ctx, &models.Gig{
		EmployerID:    employerID,
		Title:         title,
		Description:   description,
		Budget:        budget,
		MaxApplicants: maxApplicants,
	})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to create gig")
	}
	return gig, nil
}

func (s *GigService) Get(ctx context.Context, id uuid.UUID) (*models.Gig, error) {
	gig, err := s.gigs.GetByID(ctx, id)
	if err != nil {
		return nil, mapGigErr(err)
	}
	return gig, nil
}

func (s *GigService) List(ctx context.Context, status models.GigStatus, limit, offset int) ([]models.Gig, error) {
	if status != "" && !status.IsValid() {
		return nil, apperror.New(apperror.ErrCodeValidation, "unknown gig status filter")
	}
	gigs, err := s.gigs.List(ctx, status, limit, offset)
	if err != nil {
		return nil, mapGigErr(err)
	}
	return gigs, nil
}

func (s *GigService) ListMine(ctx context.Context, employerID uuid.UUID, limit, offset int) ([]models.Gig, error) {
	gigs, err := s.gigs.ListByEmployer(ctx, employerID, limit, offset)
	if err != nil {
		return nil, mapGigErr(err)
	}
	return gigs, nil
}

// Cancel closes a gig before funding. Funded gigs only leave through release.
func (s *GigService) Cancel(ctx context.Context, id, employerID uuid.UUID) (*models.Gig, error) {
	gig, err := s.gigs.GetByID(ctx, id)
	if err != nil {
		return nil, mapGigErr(err)
	}
	if !gig.IsOwnedBy(employerID) {
		return nil, apperror.ErrForbidden
	}
	cancelled, err := s.gigs.UpdateStatus(ctx, id, models.GigStatusCancelled)
	if err != nil {
		return nil, mapGigErr(err)
	}
	return cancelled, nil
}

func mapGigErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrGigNotFound):
		return apperror.ErrGigNotFound
	case errors.Is(err, repository.ErrInvalidGigTransition):
		return apperror.New(apperror.ErrCodeInvalidState, "operation not valid for the gig's current status")
	default:
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "gig operation failed")
	}
}
