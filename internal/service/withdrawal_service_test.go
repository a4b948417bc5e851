package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/mzansigig/gigwork-backend/internal/models"
	"github.com/mzansigig/gigwork-backend/internal/pkg/apperror"
	"github.com/mzansigig/gigwork-backend/internal/repository"
)

type mockWithdrawalRepo struct {
	mock.Mock
}

func (m *mockWithdrawalRepo) Create(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, bankName, accountLast4, idempotencyKey string, maxPerWindow int, window time.Duration) (*models.WithdrawalRequest, error) {
	args := m.Called(ctx, userID, amount, bankName, accountLast4, idempotencyKey, maxPerWindow, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WithdrawalRequest), args.Error(1)
}

func (m *mockWithdrawalRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WithdrawalRequest), args.Error(1)
}

func (m *mockWithdrawalRepo) GetByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*models.WithdrawalRequest, error) {
	args := m.Called(ctx, userID, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WithdrawalRequest), args.Error(1)
}

func (m *mockWithdrawalRepo) CountInWindow(ctx context.Context, userID uuid.UUID, window time.Duration) (int, error) {
	args := m.Called(ctx, userID, window)
	return args.Int(0), args.Error(1)
}

func (m *mockWithdrawalRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WithdrawalRequest, error) {
	args := m.Called(ctx, userID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.WithdrawalRequest), args.Error(1)
}

func (m *mockWithdrawalRepo) Approve(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WithdrawalRequest), args.Error(1)
}

func (m *mockWithdrawalRepo) Reject(ctx context.Context, id uuid.UUID, reason string) (*models.WithdrawalRequest, error) {
	args := m.Called(ctx, id, reason)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.WithdrawalRequest), args.Error(1)
}

func TestWithdrawalService_Request_Bounds(t *testing.T) {
	repo := new(mockWithdrawalRepo)
	svc := NewWithdrawalService(repo)
	ctx := context.Background()
	userID := uuid.New()

	repo.On("CountInWindow", ctx, userID, 24*time.Hour).Return(0, nil)

	for _, a := range []string{"49.99", "50000.01", "0", "-100"} {
		_, err := svc.Request(ctx, userID, decimal.RequireFromString(a), "FNB", "1234", "")
		assert.True(t, apperror.Is(err, apperror.ErrCodeOutOfBounds), "amount %s must be rejected", a)
	}
	repo.AssertNotCalled(t, "Create")

	for _, a := range []string{"50", "50000"} {
		amount := decimal.RequireFromString(a)
		repo.On("Create", ctx, userID, amount, "FNB", "1234", "", 3, 24*time.Hour).
			Return(&models.WithdrawalRequest{UserID: userID, Amount: amount, Status: models.WithdrawalStatusPending}, nil).Once()
		_, err := svc.Request(ctx, userID, amount, "FNB", "1234", "")
		assert.NoError(t, err, "boundary amount %s must be accepted", a)
	}
	repo.AssertExpectations(t)
}

func TestWithdrawalService_Request_BankDetailsRequired(t *testing.T) {
	repo := new(mockWithdrawalRepo)
	svc := NewWithdrawalService(repo)
	ctx := context.Background()
	amount := decimal.NewFromInt(500)

	repo.On("CountInWindow", ctx, mock.Anything, 24*time.Hour).Return(0, nil)

	_, err := svc.Request(ctx, uuid.New(), amount, "", "1234", "")
	assert.True(t, apperror.Is(err, apperror.ErrCodeValidation))

	_, err = svc.Request(ctx, uuid.New(), amount, "FNB", "12345", "")
	assert.True(t, apperror.Is(err, apperror.ErrCodeValidation))

	repo.AssertNotCalled(t, "Create")
}

// The window cap is checked before the amount bounds: a capped user sees the
// limit even when the amount would also have been rejected.
func TestWithdrawalService_Request_RateLimitBeforeBounds(t *testing.T) {
	repo := new(mockWithdrawalRepo)
	svc := NewWithdrawalService(repo)
	ctx := context.Background()
	userID := uuid.New()

	repo.On("CountInWindow", ctx, userID, 24*time.Hour).Return(3, nil)

	_, err := svc.Request(ctx, userID, decimal.NewFromInt(10), "FNB", "1234", "")
	assert.True(t, apperror.IsRateLimited(err))
	repo.AssertNotCalled(t, "Create")
}

// The advisory count can pass while a concurrent request takes the last slot;
// the authoritative count inside Create still wins.
func TestWithdrawalService_Request_RateLimitedInStore(t *testing.T) {
	repo := new(mockWithdrawalRepo)
	svc := NewWithdrawalService(repo)
	ctx := context.Background()

	repo.On("CountInWindow", ctx, mock.Anything, 24*time.Hour).Return(2, nil)
	repo.On("Create", ctx, mock.Anything, mock.Anything, "FNB", "1234", "", 3, 24*time.Hour).
		Return(nil, repository.ErrWithdrawalRateLimited)

	_, err := svc.Request(ctx, uuid.New(), decimal.NewFromInt(500), "FNB", "1234", "")
	assert.True(t, apperror.IsRateLimited(err))
}

// A retried request with the same key replays the original: no new debit, no
// limit checks, the stored request comes back as-is.
func TestWithdrawalService_Request_IdempotentReplay(t *testing.T) {
	repo := new(mockWithdrawalRepo)
	svc := NewWithdrawalService(repo)
	ctx := context.Background()
	userID := uuid.New()
	key := "retry-7f3a"

	original := &models.WithdrawalRequest{
		ID:     uuid.New(),
		UserID: userID,
		Amount: decimal.NewFromInt(800),
		Status: models.WithdrawalStatusPending,
	}
	repo.On("GetByIdempotencyKey", ctx, userID, key).Return(original, nil)

	w, err := svc.Request(ctx, userID, decimal.NewFromInt(800), "FNB", "1234", key)
	assert.NoError(t, err)
	assert.Equal(t, original.ID, w.ID)
	repo.AssertNotCalled(t, "CountInWindow")
	repo.AssertNotCalled(t, "Create")
}

// A fresh key misses the replay lookup and goes through the normal path with
// the key attached for the store to record.
func TestWithdrawalService_Request_FreshKeyCreates(t *testing.T) {
	repo := new(mockWithdrawalRepo)
	svc := NewWithdrawalService(repo)
	ctx := context.Background()
	userID := uuid.New()
	key := "retry-1b09"
	amount := decimal.NewFromInt(500)

	repo.On("GetByIdempotencyKey", ctx, userID, key).Return(nil, repository.ErrWithdrawalNotFound)
	repo.On("CountInWindow", ctx, userID, 24*time.Hour).Return(0, nil)
	repo.On("Create", ctx, userID, amount, "FNB", "1234", key, 3, 24*time.Hour).
		Return(&models.WithdrawalRequest{UserID: userID, Amount: amount, Status: models.WithdrawalStatusPending}, nil)

	_, err := svc.Request(ctx, userID, amount, "FNB", "1234", key)
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestWithdrawalService_Request_InsufficientBalance(t *testing.T) {
	repo := new(mockWithdrawalRepo)
	svc := NewWithdrawalService(repo)
	ctx := context.Background()

	repo.On("CountInWindow", ctx, mock.Anything, 24*time.Hour).Return(0, nil)
	repo.On("Create", ctx, mock.Anything, mock.Anything, "FNB", "1234", "", 3, 24*time.Hour).
		Return(nil, repository.ErrInsufficientBalance)

	_, err := svc.Request(ctx, uuid.New(), decimal.NewFromInt(500), "FNB", "1234", "")
	assert.True(t, apperror.Is(err, apperror.ErrCodeInsufficientBalance))
}

func TestWithdrawalService_Get_OwnerOnly(t *testing.T) {
	repo := new(mockWithdrawalRepo)
	svc := NewWithdrawalService(repo)
	ctx := context.Background()

	owner := uuid.New()
	id := uuid.New()
	repo.On("GetByID", ctx, id).Return(&models.WithdrawalRequest{ID: id, UserID: owner}, nil)

	w, err := svc.Get(ctx, id, owner, false)
	assert.NoError(t, err)
	assert.Equal(t, owner, w.UserID)

	_, err = svc.Get(ctx, id, uuid.New(), false)
	assert.True(t, apperror.Is(err, apperror.ErrCodeForbidden))

	// Admins reviewing a payout may inspect any request.
	w, err = svc.Get(ctx, id, uuid.New(), true)
	assert.NoError(t, err)
	assert.Equal(t, owner, w.UserID)
}

func TestWithdrawalService_Reject_RequiresReason(t *testing.T) {
	repo := new(mockWithdrawalRepo)
	svc := NewWithdrawalService(repo)

	_, err := svc.Reject(context.Background(), uuid.New(), "")
	assert.True(t, apperror.Is(err, apperror.ErrCodeValidation))
	repo.AssertNotCalled(t, "Reject")
}

func TestWithdrawalService_Approve_AlreadyProcessed(t *testing.T) {
	repo := new(mockWithdrawalRepo)
	svc := NewWithdrawalService(repo)
	ctx := context.Background()

	id := uuid.New()
	repo.On("Approve", ctx, id).Return(nil, repository.ErrWithdrawalNotPending)

	_, err := svc.Approve(ctx, id)
	assert.True(t, apperror.IsInvalidState(err))
}
