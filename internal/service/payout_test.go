package service

import (
	"database/sql"
	"testing"

	"farm-market/internal/db"
	"farm-market/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPayoutService(t *testing.T) (PayoutService, sqlmock.Sqlmock) {
	sqlDB, mock := newMock(t)
	return NewPayoutService(db.NewPayoutDB(sqlDB), testLogger()), mock
}

func TestAddMethod_FirstBecomesDefault(t *testing.T) {
	svc, mock := newPayoutService(t)

	mock.ExpectQuery(q("FROM payout_methods WHERE user_id = $1")).
		WithArgs(1).
		WillReturnRows(sqlmock.NewRows(payoutCols))
	mock.ExpectBegin()
	mock.ExpectExec(q("UPDATE payout_methods SET is_default = FALSE")).
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(q("INSERT INTO payout_methods")).
		WithArgs(1, "stripe_account", "acct_1Abcdef", "main", true).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(8, testNow))
	mock.ExpectCommit()

	m, err := svc.AddMethod(testCtx, Actor{UserID: 1}, PayoutMethodInput{AccountRef: "acct_1Abcdef", Label: "main"})
	require.NoError(t, err)
	assert.True(t, m.IsDefault)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddMethod_InvalidAccount(t *testing.T) {
	svc, mock := newPayoutService(t)

	for _, ref := range []string{"", "acct_", "ba_123456789", "acct_12 34567"} {
		_, err := svc.AddMethod(testCtx, Actor{UserID: 1}, PayoutMethodInput{AccountRef: ref})
		assert.ErrorIs(t, err, ErrInvalidInput, ref)
	}
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMethod_PendingRedemption(t *testing.T) {
	svc, mock := newPayoutService(t)

	expectPayoutMethod(mock, 1)
	mock.ExpectQuery(q("SELECT count(*) FROM redemptions WHERE payout_method_id = $1 AND status = 'pending'")).
		WithArgs(8).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	err := svc.DeleteMethod(testCtx, Actor{UserID: 1}, 8)
	assert.ErrorIs(t, err, ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMethod_OtherUser(t *testing.T) {
	svc, mock := newPayoutService(t)

	expectPayoutMethod(mock, 2)

	err := svc.DeleteMethod(testCtx, Actor{UserID: 1}, 8)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMethod_AfterPaidRedemption(t *testing.T) {
	svc, mock := newPayoutService(t)

	// paid, rejected and failed redemptions still reference the method; only
	// pending ones block removal
	expectPayoutMethod(mock, 1)
	mock.ExpectQuery(q("SELECT count(*) FROM redemptions WHERE payout_method_id = $1 AND status = 'pending'")).
		WithArgs(8).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(q("UPDATE payout_methods SET deleted_at = now(), is_default = FALSE WHERE id = $1 AND deleted_at IS NULL")).
		WithArgs(8).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, svc.DeleteMethod(testCtx, Actor{UserID: 1}, 8))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMethod_AlreadyDeleted(t *testing.T) {
	svc, mock := newPayoutService(t)

	mock.ExpectQuery(q("FROM payout_methods WHERE id = $1 AND deleted_at IS NULL")).
		WithArgs(8).
		WillReturnError(sql.ErrNoRows)

	err := svc.DeleteMethod(testCtx, Actor{UserID: 1}, 8)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetDefault(t *testing.T) {
	svc, mock := newPayoutService(t)

	mock.ExpectQuery(q("FROM payout_methods WHERE id = $1")).
		WithArgs(8).
		WillReturnRows(sqlmock.NewRows(payoutCols).
			AddRow(8, 1, models.PayoutStripeAccount, "acct_1Abcdef", "backup", false, testNow))
	mock.ExpectBegin()
	mock.ExpectExec(q("UPDATE payout_methods SET is_default = FALSE WHERE user_id = $1")).
		WithArgs(1).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q("UPDATE payout_methods SET is_default = TRUE WHERE id = $1 AND deleted_at IS NULL")).
		WithArgs(8).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	m, err := svc.SetDefault(testCtx, Actor{UserID: 1}, 8)
	require.NoError(t, err)
	assert.True(t, m.IsDefault)
	assert.Equal(t, "backup", m.Label)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSetDefault_OtherUser(t *testing.T) {
	svc, mock := newPayoutService(t)

	expectPayoutMethod(mock, 2)

	_, err := svc.SetDefault(testCtx, Actor{UserID: 1}, 8)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
