package api

import (
	"net/http"
	"strconv"

	"farm-market/internal/db"
	"farm-market/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type FarmRequest struct {
	Name        string `json:"name" binding:"required"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

func (r FarmRequest) input() service.FarmInput {
	return service.FarmInput{Name: r.Name, Location: r.Location, Description: r.Description}
}

type FieldRequest struct {
	Name            string          `json:"name" binding:"required"`
	AreaAcres       decimal.Decimal `json:"area_acres"`
	Crop            string          `json:"crop"`
	PriceCoins      int64           `json:"price_coins"`
	RentCoinsPerDay int64           `json:"rent_coins_per_day"`
	Available       *bool           `json:"available"`
}

func (r FieldRequest) input() service.FieldInput {
	available := true
	if r.Available != nil {
		available = *r.Available
	}
	return service.FieldInput{
		Name:            r.Name,
		AreaAcres:       r.AreaAcres,
		Crop:            r.Crop,
		PriceCoins:      r.PriceCoins,
		RentCoinsPerDay: r.RentCoinsPerDay,
		Available:       available,
	}
}

func (h *Handlers) CreateFarm(c *gin.Context) {
	var req FarmRequest
	if !bindJSON(c, &req) {
		return
	}
	f, err := h.FarmService.CreateFarm(c.Request.Context(), actor(c), req.input())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

func (h *Handlers) ListFarms(c *gin.Context) {
	page, ok := pageQuery(c)
	if !ok {
		return
	}
	filter := db.FarmFilter{Page: page}
	if raw := c.Query("owner_id"); raw != "" {
		ownerID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			badRequest(c, "invalid owner_id")
			return
		}
		filter.OwnerID = &ownerID
	}
	farms, err := h.FarmService.ListFarms(c.Request.Context(), filter)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, farms)
}

func (h *Handlers) GetFarm(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	f, err := h.FarmService.GetFarm(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (h *Handlers) UpdateFarm(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req FarmRequest
	if !bindJSON(c, &req) {
		return
	}
	f, err := h.FarmService.UpdateFarm(c.Request.Context(), actor(c), id, req.input())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (h *Handlers) DeleteFarm(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.FarmService.DeleteFarm(c.Request.Context(), actor(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) CreateField(c *gin.Context) {
	farmID, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req FieldRequest
	if !bindJSON(c, &req) {
		return
	}
	f, err := h.FieldService.CreateField(c.Request.Context(), actor(c), farmID, req.input())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, f)
}

func (h *Handlers) ListFields(c *gin.Context) {
	farmID, ok := idParam(c, "id")
	if !ok {
		return
	}
	fields, err := h.FieldService.ListFields(c.Request.Context(), farmID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, fields)
}

func (h *Handlers) GetField(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	f, err := h.FieldService.GetField(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (h *Handlers) UpdateField(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req FieldRequest
	if !bindJSON(c, &req) {
		return
	}
	f, err := h.FieldService.UpdateField(c.Request.Context(), actor(c), id, req.input())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, f)
}

func (h *Handlers) DeleteField(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	if err := h.FieldService.DeleteField(c.Request.Context(), actor(c), id); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
