package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"farm-market/internal/config"
	"farm-market/internal/models"

	"github.com/lib/pq"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrDuplicate  = errors.New("duplicate")
	ErrReferenced = errors.New("still referenced")
)

const (
	defaultPageLimit = 50
	MaxPageLimit     = 100
)

type Page struct {
	Limit  int
	Offset int
}

type TxBeginner interface {
	BeginTx(ctx context.Context) (*sql.Tx, error)
}

type UserDB interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByID(ctx context.Context, id int64) (models.User, error)
}

// LedgerDB holds the wallet columns of users and the coin_transactions table.
// Methods taking a tx expect the caller to own the transaction.
type LedgerDB interface {
	TxBeginner
	GetBalanceForUpdate(ctx context.Context, tx *sql.Tx, userID int64) (models.Balance, error)
	LockUsers(ctx context.Context, tx *sql.Tx, userIDs []int64) error
	SetBalance(ctx context.Context, tx *sql.Tx, b models.Balance) error
	InsertTransaction(ctx context.Context, tx *sql.Tx, t *models.CoinTransaction) error
	GetBalance(ctx context.Context, userID int64) (models.Balance, error)
	ListTransactions(ctx context.Context, userID int64, page Page) ([]models.CoinTransaction, error)
}

type CatalogDB interface {
	ListPackages(ctx context.Context) ([]models.CoinPackage, error)
	GetPackage(ctx context.Context, id int64) (models.CoinPackage, error)
	ListCurrencies(ctx context.Context) ([]models.Currency, error)
	GetCurrency(ctx context.Context, code string) (models.Currency, error)
}

type PurchaseDB interface {
	TxBeginner
	CreatePurchase(ctx context.Context, p *models.CoinPurchase) error
	SetPurchaseSession(ctx context.Context, id int64, sessionID string) error
	MarkPurchaseFailed(ctx context.Context, id int64) error
	GetPurchaseBySessionForUpdate(ctx context.Context, tx *sql.Tx, sessionID string) (models.CoinPurchase, error)
	CompletePurchase(ctx context.Context, tx *sql.Tx, id int64) error
	FailPendingPurchase(ctx context.Context, tx *sql.Tx, sessionID string) (bool, error)
	ListPurchases(ctx context.Context, userID int64, page Page) ([]models.CoinPurchase, error)
	RecordEvent(ctx context.Context, tx *sql.Tx, eventID, eventType string) (bool, error)
}

type PayoutDB interface {
	TxBeginner
	CreatePayoutMethod(ctx context.Context, tx *sql.Tx, m *models.PayoutMethod) error
	ClearDefaultPayoutMethod(ctx context.Context, tx *sql.Tx, userID int64) error
	SetDefaultPayoutMethod(ctx context.Context, tx *sql.Tx, id int64) error
	GetPayoutMethod(ctx context.Context, id int64) (models.PayoutMethod, error)
	ListPayoutMethods(ctx context.Context, userID int64) ([]models.PayoutMethod, error)
	DeletePayoutMethod(ctx context.Context, id int64) error
	CountPendingRedemptions(ctx context.Context, payoutMethodID int64) (int, error)
}

type RedemptionFilter struct {
	UserID *int64
	Status string
	Page
}

type RedemptionDB interface {
	TxBeginner
	CreateRedemption(ctx context.Context, tx *sql.Tx, r *models.Redemption) error
	GetRedemption(ctx context.Context, id int64) (models.Redemption, error)
	GetRedemptionForUpdate(ctx context.Context, tx *sql.Tx, id int64) (models.Redemption, error)
	ListRedemptions(ctx context.Context, f RedemptionFilter) ([]models.Redemption, error)
	UpdateRedemption(ctx context.Context, tx *sql.Tx, r *models.Redemption) error
}

type FarmFilter struct {
	OwnerID *int64
	Page
}

type FarmDB interface {
	CreateFarm(ctx context.Context, f *models.Farm) error
	GetFarm(ctx context.Context, id int64) (models.Farm, error)
	ListFarms(ctx context.Context, f FarmFilter) ([]models.Farm, error)
	UpdateFarm(ctx context.Context, f *models.Farm) error
	DeleteFarm(ctx context.Context, id int64) error
}

type FieldDB interface {
	CreateField(ctx context.Context, f *models.Field) error
	GetField(ctx context.Context, id int64) (models.Field, error)
	GetFieldForUpdate(ctx context.Context, tx *sql.Tx, id int64) (models.Field, error)
	GetFieldOwner(ctx context.Context, fieldID int64) (int64, error)
	ListFields(ctx context.Context, farmID int64) ([]models.Field, error)
	UpdateField(ctx context.Context, f *models.Field) error
	DeleteField(ctx context.Context, id int64) error
}

type OrderFilter struct {
	BuyerID  *int64
	SellerID *int64
	Page
}

type OrderDB interface {
	TxBeginner
	CreateOrder(ctx context.Context, tx *sql.Tx, o *models.Order) error
	GetOrder(ctx context.Context, id int64) (models.Order, error)
	GetOrderForUpdate(ctx context.Context, tx *sql.Tx, id int64) (models.Order, error)
	ListOrders(ctx context.Context, f OrderFilter) ([]models.Order, error)
	UpdateOrderStatus(ctx context.Context, tx *sql.Tx, id int64, status string) error
}

type RentalFilter struct {
	UserID  *int64
	OwnerID *int64
	Page
}

type RentalDB interface {
	TxBeginner
	CreateRental(ctx context.Context, tx *sql.Tx, r *models.Rental) error
	GetRental(ctx context.Context, id int64) (models.Rental, error)
	GetRentalForUpdate(ctx context.Context, tx *sql.Tx, id int64) (models.Rental, error)
	HasOverlappingRental(ctx context.Context, tx *sql.Tx, fieldID int64, start, end time.Time) (bool, error)
	ListRentals(ctx context.Context, f RentalFilter) ([]models.Rental, error)
	UpdateRentalStatus(ctx context.Context, tx *sql.Tx, id int64, status string) error
}

type ComplaintFilter struct {
	UserID *int64
	Status string
	Page
}

type ComplaintDB interface {
	TxBeginner
	CreateComplaint(ctx context.Context, tx *sql.Tx, c *models.Complaint) error
	GetComplaint(ctx context.Context, id int64) (models.Complaint, error)
	GetComplaintForUpdate(ctx context.Context, tx *sql.Tx, id int64) (models.Complaint, error)
	ListComplaints(ctx context.Context, f ComplaintFilter) ([]models.Complaint, error)
	AddProof(ctx context.Context, tx *sql.Tx, p *models.ComplaintProof) error
	AddRemark(ctx context.Context, tx *sql.Tx, r *models.ComplaintRemark) error
	ListProofs(ctx context.Context, complaintID int64) ([]models.ComplaintProof, error)
	ListRemarks(ctx context.Context, complaintID int64) ([]models.ComplaintRemark, error)
	UpdateComplaintStatus(ctx context.Context, tx *sql.Tx, id int64, status string) error
}

func Connect(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

type txStarter struct {
	db *sql.DB
}

func (s txStarter) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	return tx, nil
}

// wrapErr maps driver errors onto the package sentinels so callers can use
// errors.Is without knowing about lib/pq.
func wrapErr(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", msg, ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "23505":
			return fmt.Errorf("%s: %w", msg, ErrDuplicate)
		case "23503":
			return fmt.Errorf("%s: %w", msg, ErrReferenced)
		}
	}
	return fmt.Errorf("failed to %s: %w", msg, err)
}

func normalizePage(p Page) Page {
	switch {
	case p.Limit <= 0:
		p.Limit = defaultPageLimit
	case p.Limit > MaxPageLimit:
		p.Limit = MaxPageLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// checkAffected turns a zero-row update into ErrNotFound.
func checkAffected(res sql.Result, format string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
	}
	return nil
}
