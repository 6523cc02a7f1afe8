package api

import (
	"net/http"
	"time"

	"farm-market/internal/service"

	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

type OrderRequest struct {
	FieldID  int64  `json:"field_id" binding:"required"`
	Quantity int64  `json:"quantity" binding:"required"`
	Note     string `json:"note"`
}

type StatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type RentalRequest struct {
	FieldID   int64  `json:"field_id" binding:"required"`
	StartDate string `json:"start_date" binding:"required"`
	EndDate   string `json:"end_date" binding:"required"`
}

func (h *Handlers) CreateOrder(c *gin.Context) {
	var req OrderRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := h.OrderService.CreateOrder(c.Request.Context(), actor(c), service.OrderInput{
		FieldID:  req.FieldID,
		Quantity: req.Quantity,
		Note:     req.Note,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (h *Handlers) ListOrders(c *gin.Context) {
	page, ok := pageQuery(c)
	if !ok {
		return
	}
	orders, err := h.OrderService.ListOrders(c.Request.Context(), actor(c), service.OrderListOptions{
		AsSeller: c.Query("as") == "seller",
		Page:     page,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handlers) GetOrder(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	o, err := h.OrderService.GetOrder(c.Request.Context(), actor(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handlers) UpdateOrderStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req StatusRequest
	if !bindJSON(c, &req) {
		return
	}
	o, err := h.OrderService.UpdateStatus(c.Request.Context(), actor(c), id, req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handlers) CreateRental(c *gin.Context) {
	var req RentalRequest
	if !bindJSON(c, &req) {
		return
	}
	start, err := time.Parse(dateLayout, req.StartDate)
	if err != nil {
		badRequest(c, "start_date must be YYYY-MM-DD")
		return
	}
	end, err := time.Parse(dateLayout, req.EndDate)
	if err != nil {
		badRequest(c, "end_date must be YYYY-MM-DD")
		return
	}
	r, err := h.RentalService.CreateRental(c.Request.Context(), actor(c), service.RentalInput{
		FieldID:   req.FieldID,
		StartDate: start,
		EndDate:   end,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *Handlers) ListRentals(c *gin.Context) {
	page, ok := pageQuery(c)
	if !ok {
		return
	}
	rentals, err := h.RentalService.ListRentals(c.Request.Context(), actor(c), service.RentalListOptions{
		AsOwner: c.Query("as") == "owner",
		Page:    page,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rentals)
}

func (h *Handlers) GetRental(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	r, err := h.RentalService.GetRental(c.Request.Context(), actor(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handlers) CancelRental(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	r, err := h.RentalService.CancelRental(c.Request.Context(), actor(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handlers) CompleteRental(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	r, err := h.RentalService.CompleteRental(c.Request.Context(), actor(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}
