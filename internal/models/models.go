package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleUser   = "user"
	RoleFarmer = "farmer"
	RoleAdmin  = "admin"
)

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	Role         string    `json:"role"`
	Coins        int64     `json:"coins"`
	LockedCoins  int64     `json:"locked_coins"`
	CreatedAt    time.Time `json:"created_at"`
}

// Balance is a snapshot of a user's wallet. Coins is the total, LockedCoins the
// part reserved by pending redemptions.
type Balance struct {
	UserID      int64 `json:"user_id"`
	Coins       int64 `json:"coins"`
	LockedCoins int64 `json:"locked_coins"`
}

func (b Balance) Available() int64 {
	return b.Coins - b.LockedCoins
}

type Farm struct {
	ID          int64     `json:"id"`
	OwnerID     int64     `json:"owner_id"`
	Name        string    `json:"name"`
	Location    string    `json:"location"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type Field struct {
	ID              int64           `json:"id"`
	FarmID          int64           `json:"farm_id"`
	Name            string          `json:"name"`
	AreaAcres       decimal.Decimal `json:"area_acres"`
	Crop            string          `json:"crop"`
	PriceCoins      int64           `json:"price_coins"`
	RentCoinsPerDay int64           `json:"rent_coins_per_day"`
	Available       bool            `json:"available"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

const (
	OrderPending   = "pending"
	OrderAccepted  = "accepted"
	OrderRejected  = "rejected"
	OrderCompleted = "completed"
	OrderCancelled = "cancelled"
)

type Order struct {
	ID         int64     `json:"id"`
	FieldID    int64     `json:"field_id"`
	UserID     int64     `json:"user_id"`
	Quantity   int64     `json:"quantity"`
	TotalCoins int64     `json:"total_coins"`
	Status     string    `json:"status"`
	Note       string    `json:"note"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

const (
	RentalActive    = "active"
	RentalCompleted = "completed"
	RentalCancelled = "cancelled"
)

type Rental struct {
	ID         int64     `json:"id"`
	FieldID    int64     `json:"field_id"`
	UserID     int64     `json:"user_id"`
	StartDate  time.Time `json:"start_date"`
	EndDate    time.Time `json:"end_date"`
	TotalCoins int64     `json:"total_coins"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// Ledger entry types.
const (
	TxPurchase     = "purchase"
	TxSpend        = "spend"
	TxRefund       = "refund"
	TxEarn         = "earn"
	TxRedeemLock   = "redeem_lock"
	TxRedeemUnlock = "redeem_unlock"
	TxRedeem       = "redeem"
	TxAdjust       = "adjust"
)

// CoinTransaction is one ledger row. Amount and LockedDelta are the signed
// changes applied to coins and locked_coins respectively.
type CoinTransaction struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Type         string    `json:"type"`
	Amount       int64     `json:"amount"`
	LockedDelta  int64     `json:"locked_delta"`
	BalanceAfter int64     `json:"balance_after"`
	LockedAfter  int64     `json:"locked_after"`
	Reference    string    `json:"reference,omitempty"`
	Description  string    `json:"description,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type CoinPackage struct {
	ID       int64           `json:"id"`
	Name     string          `json:"name"`
	Coins    int64           `json:"coins"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	Active   bool            `json:"active"`
}

type Currency struct {
	Code     string          `json:"code"`
	Name     string          `json:"name"`
	CoinRate decimal.Decimal `json:"coin_rate"`
	Active   bool            `json:"active"`
}

const (
	PurchasePending   = "pending"
	PurchaseCompleted = "completed"
	PurchaseFailed    = "failed"
)

type CoinPurchase struct {
	ID                int64           `json:"id"`
	UserID            int64           `json:"user_id"`
	PackageID         int64           `json:"package_id"`
	Coins             int64           `json:"coins"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	ProviderSessionID string          `json:"provider_session_id,omitempty"`
	Status            string          `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	CompletedAt       *time.Time      `json:"completed_at,omitempty"`
}

const PayoutStripeAccount = "stripe_account"

type PayoutMethod struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	Kind       string    `json:"kind"`
	AccountRef string    `json:"account_ref"`
	Label      string    `json:"label"`
	IsDefault  bool      `json:"is_default"`
	CreatedAt  time.Time `json:"created_at"`
}

const (
	RedemptionPending   = "pending"
	RedemptionPaid      = "paid"
	RedemptionRejected  = "rejected"
	RedemptionCancelled = "cancelled"
	RedemptionFailed    = "failed"
)

type Redemption struct {
	ID             int64           `json:"id"`
	UserID         int64           `json:"user_id"`
	PayoutMethodID int64           `json:"payout_method_id"`
	Coins          int64           `json:"coins"`
	Currency       string          `json:"currency"`
	FiatAmount     decimal.Decimal `json:"fiat_amount"`
	Status         string          `json:"status"`
	TransferID     string          `json:"transfer_id,omitempty"`
	AdminNote      string          `json:"admin_note,omitempty"`
	ProcessedBy    *int64          `json:"processed_by,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

const (
	ComplaintOpen     = "open"
	ComplaintInReview = "in_review"
	ComplaintResolved = "resolved"
	ComplaintRejected = "rejected"
)

type Complaint struct {
	ID          int64             `json:"id"`
	UserID      int64             `json:"user_id"`
	OrderID     *int64            `json:"order_id,omitempty"`
	Subject     string            `json:"subject"`
	Description string            `json:"description"`
	Status      string            `json:"status"`
	Proofs      []ComplaintProof  `json:"proofs,omitempty"`
	Remarks     []ComplaintRemark `json:"remarks,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

type ComplaintProof struct {
	ID          int64     `json:"id"`
	ComplaintID int64     `json:"complaint_id"`
	URL         string    `json:"url"`
	CreatedAt   time.Time `json:"created_at"`
}

type ComplaintRemark struct {
	ID          int64     `json:"id"`
	ComplaintID int64     `json:"complaint_id"`
	AuthorID    int64     `json:"author_id"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
}
