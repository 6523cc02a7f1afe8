package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"farm-market/internal/middleware"
	"farm-market/internal/models"
	"farm-market/internal/service"
	"farm-market/pkg"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "secret"

type fakeAuth struct {
	service.AuthService
	authenticate func(email, password string) (string, error)
}

func (f *fakeAuth) Authenticate(_ context.Context, email, password string) (string, error) {
	return f.authenticate(email, password)
}

type fakeCoins struct {
	service.CoinService
	balance models.Balance
	adjust  func(service.Actor, service.AdjustInput) (models.Balance, error)
}

func (f *fakeCoins) GetBalance(_ context.Context, userID int64) (models.Balance, error) {
	b := f.balance
	b.UserID = userID
	return b, nil
}

func (f *fakeCoins) Adjust(_ context.Context, a service.Actor, in service.AdjustInput) (models.Balance, error) {
	return f.adjust(a, in)
}

type fakeOrders struct {
	service.OrderService
	updateStatus func(service.Actor, int64, string) (models.Order, error)
}

func (f *fakeOrders) UpdateStatus(_ context.Context, a service.Actor, id int64, status string) (models.Order, error) {
	return f.updateStatus(a, id, status)
}

type fakePurchases struct {
	service.PurchaseService
	payload   []byte
	signature string
	err       error
}

func (f *fakePurchases) HandleWebhook(_ context.Context, payload []byte, signature string) error {
	f.payload, f.signature = payload, signature
	return f.err
}

type fakeRedemptions struct {
	service.RedemptionService
	approve func(service.Actor, int64) (models.Redemption, error)
}

func (f *fakeRedemptions) Approve(_ context.Context, a service.Actor, id int64) (models.Redemption, error) {
	return f.approve(a, id)
}

type pingerFunc func(ctx context.Context) error

func (p pingerFunc) PingContext(ctx context.Context) error { return p(ctx) }

func init() {
	gin.SetMode(gin.TestMode)
}

func newRouter(h *Handlers) *gin.Engine {
	if h.Logger == nil {
		h.Logger = pkg.NopLogger()
	}
	if h.DB == nil {
		h.DB = pingerFunc(func(context.Context) error { return nil })
	}
	r := gin.New()
	r.Use(middleware.RequestID())
	RegisterHandlers(r, h, testSecret, middleware.NewRateLimiter(1000, 1000, pkg.NopLogger()))
	return r
}

func token(t *testing.T, userID int64, role string) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func call(r http.Handler, method, path, tok, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{service.ErrInvalidInput, http.StatusBadRequest},
		{fmt.Errorf("debit: %w", service.ErrNotEnoughCoins), http.StatusBadRequest},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{service.ErrForbidden, http.StatusForbidden},
		{service.ErrNotFound, http.StatusNotFound},
		{service.ErrConflict, http.StatusConflict},
		{service.ErrInvalidTransition, http.StatusConflict},
		{service.ErrPaymentProvider, http.StatusBadGateway},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, statusFor(tt.err), tt.err.Error())
	}
}

func TestLogin(t *testing.T) {
	r := newRouter(&Handlers{AuthService: &fakeAuth{authenticate: func(email, password string) (string, error) {
		if password == "right-pass" {
			return "tok", nil
		}
		return "", service.ErrInvalidCredentials
	}}})

	w := call(r, http.MethodPost, "/api/auth/login", "", `{"email":"a@example.com","password":"right-pass"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"token":"tok"}`, w.Body.String())

	w = call(r, http.MethodPost, "/api/auth/login", "", `{"email":"a@example.com","password":"nope"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = call(r, http.MethodPost, "/api/auth/login", "", `{invalid json}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegister_RejectsInvalidEmail(t *testing.T) {
	r := newRouter(&Handlers{AuthService: &fakeAuth{}})

	w := call(r, http.MethodPost, "/api/auth/register", "", `{"email":"not-an-email","password":"long-password"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetBalance(t *testing.T) {
	r := newRouter(&Handlers{CoinService: &fakeCoins{balance: models.Balance{Coins: 500, LockedCoins: 200}}})

	w := call(r, http.MethodGet, "/api/coins/balance", token(t, 1, "user"), "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"coins":500,"locked_coins":200,"available":300}`, w.Body.String())

	assert.Equal(t, http.StatusUnauthorized, call(r, http.MethodGet, "/api/coins/balance", "", "").Code)
}

func TestAdjustCoins(t *testing.T) {
	coins := &fakeCoins{adjust: func(a service.Actor, in service.AdjustInput) (models.Balance, error) {
		if in.Amount < 0 {
			return models.Balance{}, service.ErrNotEnoughCoins
		}
		return models.Balance{UserID: in.UserID, Coins: in.Amount}, nil
	}}
	r := newRouter(&Handlers{CoinService: coins})

	body := `{"user_id":3,"amount":-50,"reason":"chargeback"}`
	assert.Equal(t, http.StatusForbidden, call(r, http.MethodPost, "/api/admin/coins/adjust", token(t, 1, "user"), body).Code)

	w := call(r, http.MethodPost, "/api/admin/coins/adjust", token(t, 9, "admin"), body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"errors":"not enough coins"}`, w.Body.String())

	w = call(r, http.MethodPost, "/api/admin/coins/adjust", token(t, 9, "admin"), `{"user_id":3,"amount":50,"reason":"gift"}`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUpdateOrderStatus(t *testing.T) {
	var got service.Actor
	r := newRouter(&Handlers{OrderService: &fakeOrders{updateStatus: func(a service.Actor, id int64, status string) (models.Order, error) {
		got = a
		if status == models.OrderCompleted {
			return models.Order{}, fmt.Errorf("%w: pending -> completed", service.ErrInvalidTransition)
		}
		return models.Order{ID: id, Status: status}, nil
	}}})

	w := call(r, http.MethodPatch, "/api/orders/7/status", token(t, 2, "farmer"), `{"status":"accepted"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, service.Actor{UserID: 2, Role: "farmer"}, got)

	w = call(r, http.MethodPatch, "/api/orders/7/status", token(t, 2, "farmer"), `{"status":"completed"}`)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = call(r, http.MethodPatch, "/api/orders/abc/status", token(t, 2, "farmer"), `{"status":"accepted"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStripeWebhook(t *testing.T) {
	purchases := &fakePurchases{}
	r := newRouter(&Handlers{PurchaseService: purchases})

	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/stripe", bytes.NewBufferString(`{"id":"evt_1"}`))
	req.Header.Set("Stripe-Signature", "t=1,v1=abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `{"id":"evt_1"}`, string(purchases.payload))
	assert.Equal(t, "t=1,v1=abc", purchases.signature)

	purchases.err = fmt.Errorf("%w: bad signature", service.ErrInvalidInput)
	w = call(r, http.MethodPost, "/api/webhooks/stripe", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApproveRedemption_ProviderDown(t *testing.T) {
	r := newRouter(&Handlers{RedemptionService: &fakeRedemptions{approve: func(a service.Actor, id int64) (models.Redemption, error) {
		return models.Redemption{ID: id, Status: models.RedemptionFailed}, fmt.Errorf("%w: timeout", service.ErrPaymentProvider)
	}}})

	w := call(r, http.MethodPost, "/api/admin/redemptions/4/approve", token(t, 9, "admin"), "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestHealth(t *testing.T) {
	r := newRouter(&Handlers{})
	assert.Equal(t, http.StatusOK, call(r, http.MethodGet, "/healthz", "", "").Code)

	r = newRouter(&Handlers{DB: pingerFunc(func(context.Context) error { return fmt.Errorf("down") })})
	assert.Equal(t, http.StatusServiceUnavailable, call(r, http.MethodGet, "/healthz", "", "").Code)
}

func TestInternalErrorHidesDetails(t *testing.T) {
	r := newRouter(&Handlers{OrderService: &fakeOrders{updateStatus: func(service.Actor, int64, string) (models.Order, error) {
		return models.Order{}, fmt.Errorf("pq: connection reset")
	}}})

	w := call(r, http.MethodPatch, "/api/orders/7/status", token(t, 2, "farmer"), `{"status":"accepted"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"errors":"Internal server error"}`, w.Body.String())
}
