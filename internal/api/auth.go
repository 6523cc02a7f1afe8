package api

import (
	"net/http"

	"farm-market/internal/middleware"
	"farm-market/internal/models"
	"farm-market/internal/service"

	"github.com/gin-gonic/gin"
)

type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
	Role     string `json:"role"`
}

type AuthRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user,omitempty"`
}

type ProfileResponse struct {
	models.User
	Available int64 `json:"available"`
}

func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	token, u, err := h.AuthService.Register(c.Request.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		Role:     req.Role,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, AuthResponse{Token: token, User: &u})
}

func (h *Handlers) Login(c *gin.Context) {
	var req AuthRequest
	if !bindJSON(c, &req) {
		return
	}
	token, err := h.AuthService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, AuthResponse{Token: token})
}

func (h *Handlers) Me(c *gin.Context) {
	u, err := h.AuthService.Profile(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, ProfileResponse{User: u, Available: u.Coins - u.LockedCoins})
}
