package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/mzansigig/gigwork-backend/internal/models"
	"github.com/mzansigig/gigwork-backend/internal/repository/common"
)

var ErrFeeConfigNotFound = errors.New("no active fee configuration")

type FeeConfigRepository struct {
	db *sqlx.DB
}

func NewFeeConfigRepository(db *sqlx.DB) *FeeConfigRepository {
	return &FeeConfigRepository{db: db}
}

func (r *FeeConfigRepository) GetActive(ctx context.Context) (*models.FeeConfig, error) {
	var cfg models.FeeConfig
	err := r.db.GetContext(ctx, &cfg, `
		SELECT * FROM fee_configs WHERE is_active = TRUE ORDER BY created_at DESC LIMIT 1
	`)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrFeeConfigNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fee config repository: get active: %w", err)
	}
	return &cfg, nil
}

// Create activates a new config and deactivates every other one in the same
// transaction, so at most one config is ever active.
func (r *FeeConfigRepository) Create(ctx context.Context, cfg *models.FeeConfig) (*models.FeeConfig, error) {
	var created models.FeeConfig
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE fee_configs SET is_active = FALSE WHERE is_active = TRUE`); err != nil {
			return fmt.Errorf("fee config repository: deactivate: %w", err)
		}
		return tx.GetContext(ctx, &created, `
			INSERT INTO fee_configs (platform_commission_percent, minimum_gig_amount, maximum_gig_amount, escrow_auto_release_days, is_active)
			VALUES ($1, $2, $3, $4, TRUE)
			RETURNING *
		`, cfg.PlatformCommissionPercent, cfg.MinimumGigAmount, cfg.MaximumGigAmount, cfg.EscrowAutoReleaseDays)
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}
