package api

import (
	"net/http"

	"farm-market/internal/service"

	"github.com/gin-gonic/gin"
)

type PayoutMethodRequest struct {
	AccountRef string `json:"account_ref" binding:"required"`
	Label      string `json:"label"`
	IsDefault  bool   `json:"is_default"`
}

type RedemptionRequest struct {
	Coins          int64  `json:"coins" binding:"required"`
	Currency       string `json:"currency" binding:"required"`
	PayoutMethodID int64  `json:"payout_method_id" binding:"required"`
}

type RejectRequest struct {
	Note string `json:"note"`
}

func (h *Handlers) AddPayoutMethod(c *gin.Context) {
	var req PayoutMethodRequest
	if !bindJSON(c, &req) {
		return
	}
	m, err := h.PayoutService.AddMethod(c.Request.Context(), actor(c), service.PayoutMethodInput{
		AccountRef: req.AccountRef,
		Label:      req.Label,
		IsDefault:  req.IsDefault,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

func (h *Handlers) ListPayoutMethods(c *gin.Context) {
	out, err := h.PayoutService.ListMethods(c.Request.Context(), actor(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) DeletePayoutMethod(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.PayoutService.DeleteMethod(c.Request.Context(), actor(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) SetDefaultPayoutMethod(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	m, err := h.PayoutService.SetDefault(c.Request.Context(), actor(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, m)
}

func (h *Handlers) RequestRedemption(c *gin.Context) {
	var req RedemptionRequest
	if !bindJSON(c, &req) {
		return
	}
	r, err := h.RedemptionService.Request(c.Request.Context(), actor(c), service.RedemptionInput{
		Coins:          req.Coins,
		Currency:       req.Currency,
		PayoutMethodID: req.PayoutMethodID,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *Handlers) ListRedemptions(c *gin.Context) {
	page, ok := pageQuery(c)
	if !ok {
		return
	}
	out, err := h.RedemptionService.List(c.Request.Context(), actor(c), c.Query("status"), page)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) GetRedemption(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	r, err := h.RedemptionService.Get(c.Request.Context(), actor(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handlers) CancelRedemption(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	r, err := h.RedemptionService.Cancel(c.Request.Context(), actor(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handlers) ApproveRedemption(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	r, err := h.RedemptionService.Approve(c.Request.Context(), actor(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handlers) RejectRedemption(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req RejectRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req) {
		return
	}
	r, err := h.RedemptionService.Reject(c.Request.Context(), actor(c), id, req.Note)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}
