package api

import (
	"io"
	"net/http"

	"farm-market/internal/middleware"
	"farm-market/internal/service"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 64 << 10

type BalanceResponse struct {
	Coins       int64 `json:"coins"`
	LockedCoins int64 `json:"locked_coins"`
	Available   int64 `json:"available"`
}

type AdjustRequest struct {
	UserID int64  `json:"user_id" binding:"required"`
	Amount int64  `json:"amount" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

type CheckoutRequest struct {
	PackageID int64 `json:"package_id" binding:"required"`
}

func (h *Handlers) GetBalance(c *gin.Context) {
	b, err := h.CoinService.GetBalance(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, BalanceResponse{Coins: b.Coins, LockedCoins: b.LockedCoins, Available: b.Available()})
}

func (h *Handlers) ListTransactions(c *gin.Context) {
	page, ok := pageQuery(c)
	if !ok {
		return
	}
	txs, err := h.CoinService.ListTransactions(c.Request.Context(), middleware.UserID(c), page)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, txs)
}

func (h *Handlers) ListPackages(c *gin.Context) {
	pkgs, err := h.CoinService.ListPackages(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, pkgs)
}

func (h *Handlers) ListCurrencies(c *gin.Context) {
	out, err := h.CoinService.ListCurrencies(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) AdjustCoins(c *gin.Context) {
	var req AdjustRequest
	if !bindJSON(c, &req) {
		return
	}
	b, err := h.CoinService.Adjust(c.Request.Context(), actor(c), service.AdjustInput{
		UserID: req.UserID,
		Amount: req.Amount,
		Reason: req.Reason,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, BalanceResponse{Coins: b.Coins, LockedCoins: b.LockedCoins, Available: b.Available()})
}

func (h *Handlers) Checkout(c *gin.Context) {
	var req CheckoutRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.PurchaseService.Checkout(c.Request.Context(), actor(c), req.PackageID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handlers) ListPurchases(c *gin.Context) {
	page, ok := pageQuery(c)
	if !ok {
		return
	}
	out, err := h.PurchaseService.ListPurchases(c.Request.Context(), actor(c), page)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// StripeWebhook needs the raw body for signature verification.
func (h *Handlers) StripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		badRequest(c, "could not read body")
		return
	}
	if err := h.PurchaseService.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
