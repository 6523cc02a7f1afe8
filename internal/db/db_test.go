package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"farm-market/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func TestWrapErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"no rows", sql.ErrNoRows, ErrNotFound},
		{"unique violation", &pq.Error{Code: "23505"}, ErrDuplicate},
		{"foreign key violation", &pq.Error{Code: "23503"}, ErrReferenced},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, wrapErr(tt.err, "get thing %d", 1), tt.want)
		})
	}

	err := wrapErr(errors.New("connection reset"), "get thing %d", 1)
	assert.EqualError(t, err, "failed to get thing 1: connection reset")
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestNormalizePage(t *testing.T) {
	assert.Equal(t, Page{Limit: 50}, normalizePage(Page{}))
	assert.Equal(t, Page{Limit: 100, Offset: 0}, normalizePage(Page{Limit: 500, Offset: -3}))
	assert.Equal(t, Page{Limit: 100}, normalizePage(Page{Limit: 100}))
	assert.Equal(t, Page{Limit: 10, Offset: 20}, normalizePage(Page{Limit: 10, Offset: 20}))
}

func TestCheckAffected(t *testing.T) {
	assert.NoError(t, checkAffected(sqlmock.NewResult(0, 1), "update %d", 1))
	assert.ErrorIs(t, checkAffected(sqlmock.NewResult(0, 0), "update %d", 1), ErrNotFound)
	assert.Error(t, checkAffected(sqlmock.NewErrorResult(errors.New("boom")), "update %d", 1))
}

func TestLockUsers(t *testing.T) {
	db, mock := newMock(t)
	ledger := NewLedgerDB(db)
	query := regexp.QuoteMeta("SELECT id FROM users WHERE id = ANY($1) ORDER BY id FOR UPDATE")

	mock.ExpectBegin()
	mock.ExpectQuery(query).WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))
	mock.ExpectQuery(query).WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectRollback()

	ctx := context.Background()
	tx, err := ledger.BeginTx(ctx)
	require.NoError(t, err)

	assert.NoError(t, ledger.LockUsers(ctx, tx, []int64{2, 1, 2}))
	assert.ErrorIs(t, ledger.LockUsers(ctx, tx, []int64{1, 3}), ErrNotFound)

	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetBalance_MissingUser(t *testing.T) {
	db, mock := newMock(t)
	ledger := NewLedgerDB(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET coins = $1, locked_coins = $2 WHERE id = $3")).
		WithArgs(int64(100), int64(0), int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	ctx := context.Background()
	tx, err := ledger.BeginTx(ctx)
	require.NoError(t, err)
	err = ledger.SetBalance(ctx, tx, models.Balance{UserID: 7, Coins: 100})
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, tx.Rollback())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordEvent(t *testing.T) {
	db, mock := newMock(t)
	purchases := NewPurchaseDB(db)
	query := regexp.QuoteMeta("INSERT INTO payment_events (event_id, type) VALUES ($1, $2) ON CONFLICT (event_id) DO NOTHING")

	mock.ExpectBegin()
	mock.ExpectExec(query).WithArgs("evt_1", "checkout.session.completed").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs("evt_1", "checkout.session.completed").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := purchases.BeginTx(ctx)
	require.NoError(t, err)

	fresh, err := purchases.RecordEvent(ctx, tx, "evt_1", "checkout.session.completed")
	require.NoError(t, err)
	assert.True(t, fresh)

	fresh, err = purchases.RecordEvent(ctx, tx, "evt_1", "checkout.session.completed")
	require.NoError(t, err)
	assert.False(t, fresh)

	require.NoError(t, tx.Commit())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListRedemptions_Filters(t *testing.T) {
	db, mock := newMock(t)
	store := NewRedemptionDB(db)
	cols := []string{"id", "user_id", "payout_method_id", "coins", "currency", "fiat_amount", "status",
		"transfer_id", "admin_note", "processed_by", "created_at", "updated_at"}
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	base := "SELECT " + redemptionColumns + " FROM redemptions"

	userID := int64(4)
	mock.ExpectQuery(regexp.QuoteMeta(base+" WHERE user_id = $1 AND status = $2 ORDER BY id DESC LIMIT $3 OFFSET $4")).
		WithArgs(userID, models.RedemptionPending, 10, 0).
		WillReturnRows(sqlmock.NewRows(cols).
			AddRow(1, userID, 2, 1000, "usd", "10.00", models.RedemptionPending, "", "", 9, now, now))
	mock.ExpectQuery(regexp.QuoteMeta(base+" ORDER BY id DESC LIMIT $1 OFFSET $2")).
		WithArgs(50, 0).
		WillReturnRows(sqlmock.NewRows(cols))

	ctx := context.Background()
	out, err := store.ListRedemptions(ctx, RedemptionFilter{UserID: &userID, Status: models.RedemptionPending, Page: Page{Limit: 10}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "10", out[0].FiatAmount.String())
	require.NotNil(t, out[0].ProcessedBy)
	assert.Equal(t, int64(9), *out[0].ProcessedBy)

	out, err = store.ListRedemptions(ctx, RedemptionFilter{})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateUser_Duplicate(t *testing.T) {
	db, mock := newMock(t)
	users := NewUserDB(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users (email, password_hash, name, role)")).
		WithArgs("anna@example.com", "hash", "Anna", models.RoleUser).
		WillReturnError(&pq.Error{Code: "23505"})

	err := users.CreateUser(context.Background(), &models.User{
		Email: "Anna@Example.com", PasswordHash: "hash", Name: "Anna", Role: models.RoleUser,
	})
	assert.ErrorIs(t, err, ErrDuplicate)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetUserByID_NotFound(t *testing.T) {
	db, mock := newMock(t)
	users := NewUserDB(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + userColumns + " FROM users WHERE id = $1")).
		WithArgs(int64(42)).
		WillReturnError(sql.ErrNoRows)

	_, err := users.GetUserByID(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeletePayoutMethod_SoftDeletes(t *testing.T) {
	db, mock := newMock(t)
	payouts := NewPayoutDB(db)
	query := regexp.QuoteMeta("UPDATE payout_methods SET deleted_at = now(), is_default = FALSE WHERE id = $1 AND deleted_at IS NULL")

	mock.ExpectExec(query).WithArgs(int64(8)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).WithArgs(int64(8)).WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	require.NoError(t, payouts.DeletePayoutMethod(ctx, 8))
	assert.ErrorIs(t, payouts.DeletePayoutMethod(ctx, 8), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListPayoutMethods_EmptyIsArray(t *testing.T) {
	db, mock := newMock(t)
	payouts := NewPayoutDB(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM payout_methods WHERE user_id = $1 AND deleted_at IS NULL")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "kind", "account_ref", "label", "is_default", "created_at"}))

	out, err := payouts.ListPayoutMethods(context.Background(), 1)
	require.NoError(t, err)
	body, err := json.Marshal(out)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(body))
	assert.NoError(t, mock.ExpectationsWereMet())
}
