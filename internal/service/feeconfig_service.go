package service

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/mzansigig/gigwork-backend/internal/models"
	"github.com/mzansigig/gigwork-backend/internal/pkg/apperror"
	"github.com/mzansigig/gigwork-backend/internal/repository"
)

// Defaults used when no admin has written a config yet.
var defaultFeeConfig = models.FeeConfig{
	PlatformCommissionPercent: decimal.NewFromInt(10),
	MinimumGigAmount:          decimal.NewFromInt(100),
	MaximumGigAmount:          decimal.NewFromInt(100000),
	EscrowAutoReleaseDays:     7,
	IsActive:                  true,
}

var hundred = decimal.NewFromInt(100)

type FeeConfigRepository interface {
	GetActive(ctx context.Context) (*models.FeeConfig, error)
	Create(ctx context.Context, cfg *models.FeeConfig) (*models.FeeConfig, error)
}

type FeeConfigService struct {
	repo  FeeConfigRepository
	cache FeeConfigCache
}

func NewFeeConfigService(repo FeeConfigRepository, cache FeeConfigCache) *FeeConfigService {
	return &FeeConfigService{repo: repo, cache: cache}
}

// GetActive returns the active config, serving from cache within the TTL.
func (s *FeeConfigService) GetActive(ctx context.Context) (*models.FeeConfig, error) {
	if cfg, ok := s.cache.Get(ctx); ok {
		return cfg, nil
	}
	cfg, err := s.repo.GetActive(ctx)
	if err == repository.ErrFeeConfigNotFound {
		fallback := defaultFeeConfig
		return &fallback, nil
	}
	if err != nil {
		return nil, err
	}
	s.cache.Set(ctx, cfg)
	return cfg, nil
}

// Update replaces the active config and synchronously invalidates the cache.
func (s *FeeConfigService) Update(ctx context.Context, cfg models.FeeConfig) (*models.FeeConfig, error) {
	if cfg.PlatformCommissionPercent.IsNegative() || cfg.PlatformCommissionPercent.GreaterThan(decimal.NewFromInt(50)) {
		return nil, apperror.New(apperror.ErrCodeValidation, "commission percent must be between 0 and 50")
	}
	if cfg.MinimumGigAmount.IsNegative() || cfg.MinimumGigAmount.GreaterThanOrEqual(cfg.MaximumGigAmount) {
		return nil, apperror.New(apperror.ErrCodeValidation, "minimum gig amount must be non-negative and below the maximum")
	}
	if cfg.EscrowAutoReleaseDays < 1 {
		return nil, apperror.New(apperror.ErrCodeValidation, "auto-release days must be at least 1")
	}

	created, err := s.repo.Create(ctx, &cfg)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to store fee configuration")
	}
	s.cache.Invalidate(ctx)
	return created, nil
}

// CheckBounds rejects gig amounts outside the configured window.
func (s *FeeConfigService) CheckBounds(ctx context.Context, amount decimal.Decimal) error {
	cfg, err := s.GetActive(ctx)
	if err != nil {
		return err
	}
	if amount.LessThan(cfg.MinimumGigAmount) || amount.GreaterThan(cfg.MaximumGigAmount) {
		return apperror.New(apperror.ErrCodeOutOfBounds, "amount is outside the configured gig amount bounds")
	}
	return nil
}

// CalculateFeeBreakdown splits a gig amount into platform commission and
// worker earnings. The commission is rounded half-up to 2 decimal places and
// the earnings are the exact remainder, so the two always sum back to the
// gig amount. Ledger reconciliation depends on that exact-sum property.
func CalculateFeeBreakdown(gigAmount decimal.Decimal, cfg *models.FeeConfig) models.FeeBreakdown {
	commission := gigAmount.Mul(cfg.PlatformCommissionPercent).Div(hundred).Round(2)
	return models.FeeBreakdown{
		GigAmount:          gigAmount,
		PlatformCommission: commission,
		WorkerEarnings:     gigAmount.Sub(commission),
	}
}
