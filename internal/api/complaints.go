package api

import (
	"net/http"

	"farm-market/internal/service"

	"github.com/gin-gonic/gin"
)

type ComplaintRequest struct {
	OrderID     *int64   `json:"order_id"`
	Subject     string   `json:"subject" binding:"required"`
	Description string   `json:"description"`
	Proofs      []string `json:"proofs"`
}

type ProofRequest struct {
	URL string `json:"url" binding:"required"`
}

type RemarkRequest struct {
	Body string `json:"body" binding:"required"`
}

func (h *Handlers) CreateComplaint(c *gin.Context) {
	var req ComplaintRequest
	if !bindJSON(c, &req) {
		return
	}
	complaint, err := h.ComplaintService.CreateComplaint(c.Request.Context(), actor(c), service.ComplaintInput{
		OrderID:     req.OrderID,
		Subject:     req.Subject,
		Description: req.Description,
		Proofs:      req.Proofs,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, complaint)
}

func (h *Handlers) ListComplaints(c *gin.Context) {
	page, ok := pageQuery(c)
	if !ok {
		return
	}
	out, err := h.ComplaintService.ListComplaints(c.Request.Context(), actor(c), c.Query("status"), page)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handlers) GetComplaint(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	complaint, err := h.ComplaintService.GetComplaint(c.Request.Context(), actor(c), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}

func (h *Handlers) AddComplaintProof(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req ProofRequest
	if !bindJSON(c, &req) {
		return
	}
	p, err := h.ComplaintService.AddProof(c.Request.Context(), actor(c), id, req.URL)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

func (h *Handlers) AddComplaintRemark(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req RemarkRequest
	if !bindJSON(c, &req) {
		return
	}
	r, err := h.ComplaintService.AddRemark(c.Request.Context(), actor(c), id, req.Body)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *Handlers) UpdateComplaintStatus(c *gin.Context) {
	id, ok := idParam(c, "id")
	if !ok {
		return
	}
	var req StatusRequest
	if !bindJSON(c, &req) {
		return
	}
	complaint, err := h.ComplaintService.UpdateStatus(c.Request.Context(), actor(c), id, req.Status)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, complaint)
}
