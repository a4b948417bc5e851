package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mzansigig/gigwork-backend/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := sqlx.NewDb(mockDB, "postgres")
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func withdrawalColumns() []string {
	return []string{"id", "user_id", "amount", "status", "bank_name", "account_last4", "created_at"}
}

func TestWithdrawalRepository_Create_DebitsAndInserts(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWithdrawalRepository(db)

	userID := uuid.New()
	amount := decimal.NewFromInt(800)
	createdID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT user_id FROM wallets WHERE user_id = $1 FOR UPDATE`)).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(userID.String()))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM withdrawal_requests WHERE user_id = $1 AND created_at > $2`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT balance FROM wallets WHERE user_id = $1 FOR UPDATE`)).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow("1000.00"))
	mock.ExpectExec(`(?s)balance = balance - \$2.*total_withdrawn = total_withdrawn \+ \$2`).
		WithArgs(userID, amount).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO withdrawal_requests`)).
		WillReturnRows(sqlmock.NewRows(withdrawalColumns()).
			AddRow(createdID.String(), userID.String(), "800", "pending", "FNB", "1234", time.Now()))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO payment_history`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	created, err := repo.Create(context.Background(), userID, amount, "FNB", "1234", "", 3, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, createdID, created.ID)
	assert.Equal(t, models.WithdrawalStatusPending, created.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// A keyed retry finds the earlier request under the wallet lock and returns
// it without touching the balance or inserting a second payout.
func TestWithdrawalRepository_Create_ReplaysByKey(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWithdrawalRepository(db)

	userID := uuid.New()
	existingID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT user_id FROM wallets WHERE user_id = $1 FOR UPDATE`)).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(userID.String()))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM withdrawal_requests WHERE user_id = $1 AND idempotency_key = $2`)).
		WithArgs(userID, "retry-7f3a").
		WillReturnRows(sqlmock.NewRows(withdrawalColumns()).
			AddRow(existingID.String(), userID.String(), "800", "pending", "FNB", "1234", time.Now()))
	mock.ExpectCommit()

	created, err := repo.Create(context.Background(), userID, decimal.NewFromInt(800), "FNB", "1234", "retry-7f3a", 3, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, existingID, created.ID)
	assert.NoError(t, mock.ExpectationsWereMet(), "a replay must not debit or insert")
}

func TestWithdrawalRepository_Create_RateLimited(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWithdrawalRepository(db)

	userID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT user_id FROM wallets WHERE user_id = $1 FOR UPDATE`)).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow(userID.String()))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM withdrawal_requests`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), userID, decimal.NewFromInt(500), "FNB", "1234", "", 3, 24*time.Hour)
	assert.ErrorIs(t, err, ErrWithdrawalRateLimited)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Rejecting a pending request must unwind the debit completely: the balance
// comes back and the cumulative withdrawn counter is decremented, in the same
// transaction as the status flip and the audit row.
func TestWithdrawalRepository_Reject_RoundTrip(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWithdrawalRepository(db)

	id := uuid.New()
	userID := uuid.New()
	amount := decimal.RequireFromString("800")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM withdrawal_requests WHERE id = $1 FOR UPDATE`)).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(withdrawalColumns()).
			AddRow(id.String(), userID.String(), "800", "pending", "FNB", "1234", time.Now()))
	mock.ExpectQuery(regexp.QuoteMeta(`UPDATE withdrawal_requests SET status = 'failed', rejection_reason = $2, processed_at = NOW()`)).
		WithArgs(id, "bank details invalid").
		WillReturnRows(sqlmock.NewRows(append(withdrawalColumns(), "rejection_reason")).
			AddRow(id.String(), userID.String(), "800", "failed", "FNB", "1234", time.Now(), "bank details invalid"))
	mock.ExpectExec(`(?s)balance = balance \+ \$2.*total_withdrawn = total_withdrawn - \$2`).
		WithArgs(userID, amount).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO payment_history`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rejected, err := repo.Reject(context.Background(), id, "bank details invalid")
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalStatusFailed, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "bank details invalid", *rejected.RejectionReason)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithdrawalRepository_Approve_NotPending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewWithdrawalRepository(db)

	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM withdrawal_requests WHERE id = $1 FOR UPDATE`)).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(withdrawalColumns()).
			AddRow(id.String(), uuid.New().String(), "800", "completed", "FNB", "1234", time.Now()))
	mock.ExpectRollback()

	_, err := repo.Approve(context.Background(), id)
	assert.ErrorIs(t, err, ErrWithdrawalNotPending)
	assert.NoError(t, mock.ExpectationsWereMet())
}
