package handlers

import (
	"net/http"

	"github.com/xstakup-in-house/digi-drop-backend-api/internal/service"

	"github.com/gin-gonic/gin"
)

// Nonce issues a single-use login challenge.
func (h *Handler) Nonce(c *gin.Context) {
	nonce, message, err := h.AuthService.BeginLogin(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"nonce": nonce, "message": message})
}

// WalletLogin exchanges a signed challenge for a token pair.
func (h *Handler) WalletLogin(c *gin.Context) {
	var req service.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "walletAddress, signature and nonce are required"})
		return
	}

	res, err := h.AuthService.CompleteLogin(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type refreshRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

func (h *Handler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "refresh is required"})
		return
	}

	token, err := h.AuthService.Refresh(c.Request.Context(), req.Refresh)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
