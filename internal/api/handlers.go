package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"farm-market/internal/db"
	"farm-market/internal/metrics"
	"farm-market/internal/middleware"
	"farm-market/internal/service"
	"farm-market/pkg"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handlers struct {
	AuthService       service.AuthService
	FarmService       service.FarmService
	FieldService      service.FieldService
	OrderService      service.OrderService
	RentalService     service.RentalService
	ComplaintService  service.ComplaintService
	CoinService       service.CoinService
	PurchaseService   service.PurchaseService
	PayoutService     service.PayoutService
	RedemptionService service.RedemptionService
	DB                Pinger
	Logger            pkg.Logger
}

type ErrorResponse struct {
	Errors string `json:"errors"`
}

// RegisterHandlers mounts every route. Routes outside the JWT group are public.
func RegisterHandlers(r *gin.Engine, h *Handlers, jwtSecret string, limiter *middleware.RateLimiter) {
	r.GET("/healthz", h.Health)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	public := r.Group("/api", limiter.Middleware())
	public.POST("/auth/register", h.Register)
	public.POST("/auth/login", h.Login)
	public.GET("/coins/packages", h.ListPackages)
	public.GET("/coins/currencies", h.ListCurrencies)
	public.POST("/webhooks/stripe", h.StripeWebhook)

	authed := r.Group("/api", middleware.JWTAuth(jwtSecret, h.Logger), limiter.Middleware())
	authed.GET("/me", h.Me)

	authed.POST("/farms", middleware.RequireRole("farmer", "admin"), h.CreateFarm)
	authed.GET("/farms", h.ListFarms)
	authed.GET("/farms/:id", h.GetFarm)
	authed.PUT("/farms/:id", h.UpdateFarm)
	authed.DELETE("/farms/:id", h.DeleteFarm)
	authed.POST("/farms/:id/fields", h.CreateField)
	authed.GET("/farms/:id/fields", h.ListFields)
	authed.GET("/fields/:id", h.GetField)
	authed.PUT("/fields/:id", h.UpdateField)
	authed.DELETE("/fields/:id", h.DeleteField)

	authed.POST("/orders", h.CreateOrder)
	authed.GET("/orders", h.ListOrders)
	authed.GET("/orders/:id", h.GetOrder)
	authed.PATCH("/orders/:id/status", h.UpdateOrderStatus)

	authed.POST("/rentals", h.CreateRental)
	authed.GET("/rentals", h.ListRentals)
	authed.GET("/rentals/:id", h.GetRental)
	authed.POST("/rentals/:id/cancel", h.CancelRental)
	authed.POST("/rentals/:id/complete", h.CompleteRental)

	authed.POST("/complaints", h.CreateComplaint)
	authed.GET("/complaints", h.ListComplaints)
	authed.GET("/complaints/:id", h.GetComplaint)
	authed.POST("/complaints/:id/proofs", h.AddComplaintProof)
	authed.POST("/complaints/:id/remarks", h.AddComplaintRemark)
	authed.PATCH("/complaints/:id/status", middleware.RequireRole("admin"), h.UpdateComplaintStatus)

	authed.GET("/coins/balance", h.GetBalance)
	authed.GET("/coins/transactions", h.ListTransactions)
	authed.POST("/coins/checkout", h.Checkout)
	authed.GET("/coins/purchases", h.ListPurchases)

	authed.POST("/payout-methods", h.AddPayoutMethod)
	authed.GET("/payout-methods", h.ListPayoutMethods)
	authed.DELETE("/payout-methods/:id", h.DeletePayoutMethod)
	authed.POST("/payout-methods/:id/default", h.SetDefaultPayoutMethod)

	authed.POST("/redemptions", h.RequestRedemption)
	authed.GET("/redemptions", h.ListRedemptions)
	authed.GET("/redemptions/:id", h.GetRedemption)
	authed.POST("/redemptions/:id/cancel", h.CancelRedemption)

	adminGroup := authed.Group("/admin", middleware.RequireRole("admin"))
	adminGroup.POST("/coins/adjust", h.AdjustCoins)
	adminGroup.POST("/redemptions/:id/approve", h.ApproveRedemption)
	adminGroup.POST("/redemptions/:id/reject", h.RejectRedemption)
}

func (h *Handlers) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()
	if err := h.DB.PingContext(ctx); err != nil {
		h.Logger.Error("health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func actor(c *gin.Context) service.Actor {
	return service.Actor{UserID: middleware.UserID(c), Role: middleware.Role(c)}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Errors: msg})
}

// statusFor maps service sentinels to HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrNotEnoughCoins):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict), errors.Is(err, service.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, service.ErrPaymentProvider):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (h *Handlers) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(middleware.RequestIDKey)),
			zap.Error(err))
		c.JSON(status, ErrorResponse{Errors: "Internal server error"})
		return
	}
	_ = c.Error(err)
	c.JSON(status, ErrorResponse{Errors: err.Error()})
}

func idParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

func pageQuery(c *gin.Context) (db.Page, bool) {
	var p db.Page
	for key, dst := range map[string]*int{"limit": &p.Limit, "offset": &p.Offset} {
		raw := c.Query(key)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			badRequest(c, "invalid "+key)
			return db.Page{}, false
		}
		*dst = v
	}
	if p.Limit > db.MaxPageLimit {
		p.Limit = db.MaxPageLimit
	}
	return p, true
}

func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		badRequest(c, "Invalid request body: "+err.Error())
		return false
	}
	return true
}
