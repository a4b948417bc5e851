package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/mzansigig/gigwork-backend/internal/logger"
	"github.com/mzansigig/gigwork-backend/internal/models"
	"github.com/mzansigig/gigwork-backend/internal/pkg/apperror"
	"github.com/mzansigig/gigwork-backend/internal/repository"
)

// Payout policy. The per-user request cap is counted in the store so it holds
// across instances, unlike the per-IP HTTP limiter.
var (
	minWithdrawal = decimal.NewFromInt(50)
	maxWithdrawal = decimal.NewFromInt(50000)
)

const (
	maxWithdrawalsPerWindow = 3
	withdrawalWindow        = 24 * time.Hour
)

type WithdrawalRepo interface {
	Create(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, bankName, accountLast4, idempotencyKey string, maxPerWindow int, window time.Duration) (*models.WithdrawalRequest, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error)
	GetByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*models.WithdrawalRequest, error)
	CountInWindow(ctx context.Context, userID uuid.UUID, window time.Duration) (int, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WithdrawalRequest, error)
	Approve(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error)
	Reject(ctx context.Context, id uuid.UUID, reason string) (*models.WithdrawalRequest, error)
}

// WithdrawalService turns wallet balance into queued payouts. Funds leave the
// wallet when the request is created; approval only confirms the transfer.
type WithdrawalService struct {
	withdrawals WithdrawalRepo
}

func NewWithdrawalService(withdrawals WithdrawalRepo) *WithdrawalService {
	return &WithdrawalService{withdrawals: withdrawals}
}

func (s *WithdrawalService) Request(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, bankName, accountLast4, idempotencyKey string) (*models.WithdrawalRequest, error) {
	// A keyed retry replays the original request before any other check, so
	// a retransmit never fails on limits its first delivery already passed.
	if idempotencyKey != "" {
		existing, err := s.withdrawals.GetByIdempotencyKey(ctx, userID, idempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !errors.Is(err, repository.ErrWithdrawalNotFound) {
			return nil, mapWithdrawalErr(err)
		}
	}

	// The window cap is reported ahead of the amount bounds; a capped user
	// sees the limit, not a bounds error. Create re-counts under the wallet
	// lock, this read is only for error precedence.
	recent, err := s.withdrawals.CountInWindow(ctx, userID, withdrawalWindow)
	if err != nil {
		return nil, mapWithdrawalErr(err)
	}
	if recent >= maxWithdrawalsPerWindow {
		return nil, apperror.New(apperror.ErrCodeRateLimited, "withdrawal request limit reached, try again later")
	}

	if amount.LessThan(minWithdrawal) || amount.GreaterThan(maxWithdrawal) {
		return nil, apperror.New(apperror.ErrCodeOutOfBounds, "withdrawal amount is outside the allowed range")
	}
	if bankName == "" || len(accountLast4) != 4 {
		return nil, apperror.New(apperror.ErrCodeValidation, "bank name and the last four account digits are required")
	}

	w, err := s.withdrawals.Create(ctx, userID, amount, bankName, accountLast4, idempotencyKey, maxWithdrawalsPerWindow, withdrawalWindow)
	if err != nil {
		return nil, mapWithdrawalErr(err)
	}

	logger.Log.WithFields(logrus.Fields{
		"withdrawal_id": w.ID,
		"user_id":       userID,
		"amount":        amount.String(),
	}).Info("withdrawal requested")

	return w, nil
}

// Get returns a request to its owner; admins may inspect any request.
func (s *WithdrawalService) Get(ctx context.Context, id, actorID uuid.UUID, isAdmin bool) (*models.WithdrawalRequest, error) {
	w, err := s.withdrawals.GetByID(ctx, id)
	if err != nil {
		return nil, mapWithdrawalErr(err)
	}
	if !isAdmin && w.UserID != actorID {
		return nil, apperror.ErrForbidden
	}
	return w, nil
}

func (s *WithdrawalService) ListMine(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.WithdrawalRequest, error) {
	list, err := s.withdrawals.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, mapWithdrawalErr(err)
	}
	return list, nil
}

// Approve is the admin confirming the bank transfer went out.
func (s *WithdrawalService) Approve(ctx context.Context, id uuid.UUID) (*models.WithdrawalRequest, error) {
	w, err := s.withdrawals.Approve(ctx, id)
	if err != nil {
		return nil, mapWithdrawalErr(err)
	}
	logger.Log.WithField("withdrawal_id", id).Info("withdrawal approved")
	return w, nil
}

// Reject fails the payout and refunds the reserved amount.
func (s *WithdrawalService) Reject(ctx context.Context, id uuid.UUID, reason string) (*models.WithdrawalRequest, error) {
	if reason == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "a rejection requires a reason")
	}
	w, err := s.withdrawals.Reject(ctx, id, reason)
	if err != nil {
		return nil, mapWithdrawalErr(err)
	}
	logger.Log.WithFields(logrus.Fields{
		"withdrawal_id": id,
		"reason":        reason,
	}).Info("withdrawal rejected and refunded")
	return w, nil
}

func mapWithdrawalErr(err error) error {
	switch {
	case errors.Is(err, repository.ErrWithdrawalNotFound):
		return apperror.ErrWithdrawalNotFound
	case errors.Is(err, repository.ErrWithdrawalRateLimited):
		return apperror.New(apperror.ErrCodeRateLimited, "withdrawal request limit reached, try again later")
	case errors.Is(err, repository.ErrInsufficientBalance):
		return apperror.ErrInsufficientBalance
	case errors.Is(err, repository.ErrWithdrawalNotPending):
		return apperror.New(apperror.ErrCodeInvalidState, "withdrawal request was already processed")
	default:
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "withdrawal operation failed")
	}
}
