package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/mzansigig/gigwork-backend/internal/models"
	"github.com/mzansigig/gigwork-backend/internal/pkg/apperror"
)

type WalletReader interface {
	GetBalance(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
}

type HistoryReader interface {
	ListByUser(ctx context.Context, userID uuid.UUID, entryType string, limit, offset int) ([]models.PaymentHistoryEntry, error)
}

// WalletService is read-only: balances only move through escrow and
// withdrawal operations.
type WalletService struct {
	wallets WalletReader
	history HistoryReader
}

func NewWalletService(wallets WalletReader, history HistoryReader) *WalletService {
	return &WalletService{wallets: wallets, history: history}
}

func (s *WalletService) GetBalance(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	w, err := s.wallets.GetBalance(ctx, userID)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to load wallet")
	}
	return w, nil
}

// ListHistory returns the audit trail, optionally filtered to "earnings" or
// "payments" entries.
func (s *WalletService) ListHistory(ctx context.Context, userID uuid.UUID, entryType string, limit, offset int) ([]models.PaymentHistoryEntry, error) {
	if entryType != "" && entryType != models.HistoryTypeEarnings && entryType != models.HistoryTypePayments {
		return nil, apperror.New(apperror.ErrCodeValidation, "history type must be earnings or payments")
	}
	entries, err := s.history.ListByUser(ctx, userID, entryType, limit, offset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "failed to load payment history")
	}
	return entries, nil
}
