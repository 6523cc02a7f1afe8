package service

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"farm-market/internal/payment"
	"farm-market/pkg"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
)

var (
	testCtx = context.Background()
	testNow = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	admin   = Actor{UserID: 99, Role: "admin"}
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return sqlDB, mock
}

func q(query string) string {
	return regexp.QuoteMeta(query)
}

func testLogger() pkg.Logger {
	return pkg.NopLogger()
}

// expectLedger queues the three statements one ledger call issues.
func expectLedger(mock sqlmock.Sqlmock, userID, coins, locked, nextCoins, nextLocked int64, entryType string) {
	mock.ExpectQuery(q("SELECT coins, locked_coins FROM users WHERE id = $1 FOR UPDATE")).
		WithArgs(userID).
		WillReturnRows(sqlmock.NewRows([]string{"coins", "locked_coins"}).AddRow(coins, locked))
	mock.ExpectExec(q("UPDATE users SET coins = $1, locked_coins = $2 WHERE id = $3")).
		WithArgs(nextCoins, nextLocked, userID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(q("INSERT INTO coin_transactions")).
		WithArgs(userID, entryType, nextCoins-coins, nextLocked-locked, nextCoins, nextLocked, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(1, testNow))
}

type fakeProvider struct {
	checkoutFn    func(payment.CheckoutRequest) (payment.CheckoutSession, error)
	transferFn    func(payment.TransferRequest) (payment.Transfer, error)
	parseFn       func(payload []byte, signature string) (payment.Event, error)
	transferCalls int
}

func (f *fakeProvider) CreateCheckoutSession(_ context.Context, req payment.CheckoutRequest) (payment.CheckoutSession, error) {
	return f.checkoutFn(req)
}

func (f *fakeProvider) CreateTransfer(_ context.Context, req payment.TransferRequest) (payment.Transfer, error) {
	f.transferCalls++
	return f.transferFn(req)
}

func (f *fakeProvider) ParseWebhook(payload []byte, signature string) (payment.Event, error) {
	return f.parseFn(payload, signature)
}
