package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mzansigig/gigwork-backend/internal/models"
)

// HistoryRepository reads the append-only audit trail. Writes only happen
// inside the ledger transactions that move the money.
type HistoryRepository struct {
	db *sqlx.DB
}

func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) ListByUser(ctx context.Context, userID uuid.UUID, entryType string, limit, offset int) ([]models.PaymentHistoryEntry, error) {
	var entries []models.PaymentHistoryEntry
	var err error
	if entryType != "" {
		err = r.db.SelectContext(ctx, &entries, `
			SELECT * FROM payment_history WHERE user_id = $1 AND type = $2
			ORDER BY created_at DESC LIMIT $3 OFFSET $4
		`, userID, entryType, limit, offset)
	} else {
		err = r.db.SelectContext(ctx, &entries, `
			SELECT * FROM payment_history WHERE user_id = $1
			ORDER BY created_at DESC LIMIT $2 OFFSET $3
		`, userID, limit, offset)
	}
	if err != nil {
		return nil, fmt.Errorf("history repository: list by user: %w", err)
	}
	return entries, nil
}
