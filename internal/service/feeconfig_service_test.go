package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/mzansigig/gigwork-backend/internal/logger"
	"github.com/mzansigig/gigwork-backend/internal/models"
	"github.com/mzansigig/gigwork-backend/internal/pkg/apperror"
	"github.com/mzansigig/gigwork-backend/internal/repository"
)

func TestMain(m *testing.M) {
	logger.Init("error")
	os.Exit(m.Run())
}

type mockFeeConfigRepo struct {
	mock.Mock
}

func (m *mockFeeConfigRepo) GetActive(ctx context.Context) (*models.FeeConfig, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FeeConfig), args.Error(1)
}

func (m *mockFeeConfigRepo) Create(ctx context.Context, cfg *models.FeeConfig) (*models.FeeConfig, error) {
	args := m.Called(ctx, cfg)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.FeeConfig), args.Error(1)
}

func testFeeConfig() *models.FeeConfig {
	return &models.FeeConfig{
		PlatformCommissionPercent: decimal.NewFromInt(10),
		MinimumGigAmount:          decimal.NewFromInt(100),
		MaximumGigAmount:          decimal.NewFromInt(100000),
		EscrowAutoReleaseDays:     7,
		IsActive:                  true,
	}
}

func TestFeeConfigService_GetActive_CachesResult(t *testing.T) {
	repo := new(mockFeeConfigRepo)
	svc := NewFeeConfigService(repo, NewMemoryFeeConfigCache(time.Minute))
	ctx := context.Background()

	repo.On("GetActive", ctx).Return(testFeeConfig(), nil).Once()

	first, err := svc.GetActive(ctx)
	assert.NoError(t, err)
	second, err := svc.GetActive(ctx)
	assert.NoError(t, err)
	assert.True(t, first.PlatformCommissionPercent.Equal(second.PlatformCommissionPercent))
	repo.AssertExpectations(t)
}

func TestFeeConfigService_GetActive_DefaultWhenNoneStored(t *testing.T) {
	repo := new(mockFeeConfigRepo)
	svc := NewFeeConfigService(repo, NewMemoryFeeConfigCache(time.Minute))
	ctx := context.Background()

	repo.On("GetActive", ctx).Return(nil, repository.ErrFeeConfigNotFound)

	cfg, err := svc.GetActive(ctx)
	assert.NoError(t, err)
	assert.True(t, cfg.PlatformCommissionPercent.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, 7, cfg.EscrowAutoReleaseDays)
}

func TestFeeConfigService_Update_InvalidatesCache(t *testing.T) {
	repo := new(mockFeeConfigRepo)
	cache := NewMemoryFeeConfigCache(time.Minute)
	svc := NewFeeConfigService(repo, cache)
	ctx := context.Background()

	old := testFeeConfig()
	cache.Set(ctx, old)

	updated := testFeeConfig()
	updated.PlatformCommissionPercent = decimal.NewFromInt(15)
	repo.On("Create", ctx, mock.Anything).Return(updated, nil)

	_, err := svc.Update(ctx, *updated)
	assert.NoError(t, err)

	_, ok := cache.Get(ctx)
	assert.False(t, ok, "cache must be invalidated synchronously on update")
}

func TestFeeConfigService_Update_Validation(t *testing.T) {
	repo := new(mockFeeConfigRepo)
	svc := NewFeeConfigService(repo, NewMemoryFeeConfigCache(time.Minute))
	ctx := context.Background()

	bad := *testFeeConfig()
	bad.PlatformCommissionPercent = decimal.NewFromInt(51)
	_, err := svc.Update(ctx, bad)
	assert.True(t, apperror.Is(err, apperror.ErrCodeValidation))

	bad = *testFeeConfig()
	bad.MinimumGigAmount = decimal.NewFromInt(200000)
	_, err = svc.Update(ctx, bad)
	assert.True(t, apperror.Is(err, apperror.ErrCodeValidation))

	bad = *testFeeConfig()
	bad.EscrowAutoReleaseDays = 0
	_, err = svc.Update(ctx, bad)
	assert.True(t, apperror.Is(err, apperror.ErrCodeValidation))

	repo.AssertNotCalled(t, "Create")
}

func TestFeeConfigService_CheckBounds(t *testing.T) {
	repo := new(mockFeeConfigRepo)
	svc := NewFeeConfigService(repo, NewMemoryFeeConfigCache(time.Minute))
	ctx := context.Background()
	repo.On("GetActive", ctx).Return(testFeeConfig(), nil)

	assert.NoError(t, svc.CheckBounds(ctx, decimal.NewFromInt(100)))
	assert.NoError(t, svc.CheckBounds(ctx, decimal.NewFromInt(100000)))

	err := svc.CheckBounds(ctx, decimal.RequireFromString("99.99"))
	assert.True(t, apperror.Is(err, apperror.ErrCodeOutOfBounds))
	err = svc.CheckBounds(ctx, decimal.RequireFromString("100000.01"))
	assert.True(t, apperror.Is(err, apperror.ErrCodeOutOfBounds))
}

func TestCalculateFeeBreakdown_Scenario(t *testing.T) {
	br := CalculateFeeBreakdown(decimal.NewFromInt(5000), testFeeConfig())
	assert.Equal(t, "500", br.PlatformCommission.String())
	assert.Equal(t, "4500", br.WorkerEarnings.String())
}

func TestCalculateFeeBreakdown_ExactSum(t *testing.T) {
	cfg := testFeeConfig()
	amounts := []string{"100", "101.01", "333.33", "5000", "99999.99", "0.03", "12345.67"}
	percents := []string{"10", "12.5", "7.75", "0", "50"}

	for _, p := range percents {
		cfg.PlatformCommissionPercent = decimal.RequireFromString(p)
		for _, a := range amounts {
			amount := decimal.RequireFromString(a)
			br := CalculateFeeBreakdown(amount, cfg)
			sum := br.PlatformCommission.Add(br.WorkerEarnings)
			assert.True(t, sum.Equal(amount), "pct=%s amount=%s sum=%s", p, a, sum)
			assert.True(t, br.PlatformCommission.Exponent() >= -2, "commission has at most 2 decimals")
		}
	}
}
