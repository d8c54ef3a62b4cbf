package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"emi-service/internal/models"
	"emi-service/internal/services"
)

// AuthHandler serves wallet login endpoints.
type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// GenerateMessage returns a challenge for the wallet to sign.
func (h *AuthHandler) GenerateMessage(c *gin.Context) {
	var req struct {
		WalletAddress string         `json:"wallet_address" binding:"required"`
		Network       models.Network `json:"network" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	challenge, err := h.auth.GenerateMessage(c.Request.Context(), req.WalletAddress, req.Network)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, challenge)
}

// Login verifies the signed challenge and returns an access token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.auth.Login(c.Request.Context(), req)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.auth.Logout(c.Request.Context(), currentUserID(c)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.auth.Me(c.Request.Context(), currentUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}
