package http

import (
	"net/http"

	"relaycast/internal/core/ports"

	"github.com/gin-gonic/gin"
)

// VipHandler exchanges a VIP code for a short-lived single-use token, so the
// code itself never has to travel with the join request.
type VipHandler struct {
	directory ports.DirectoryService
	tokens    ports.TokenStore
}

func NewVipHandler(directory ports.DirectoryService, tokens ports.TokenStore) *VipHandler {
	return &VipHandler{directory: directory, tokens: tokens}
}

func (h *VipHandler) SetupRoutes(router *gin.Engine) {
	router.POST("/api/v1/vip/redeem", h.Redeem)
}

func (h *VipHandler) Redeem(c *gin.Context) {
	var req struct {
		Code string `json:"code" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	room, err := h.directory.RedeemCode(c.Request.Context(), req.Code, "")
	if err != nil {
		respondError(c, err)
		return
	}

	token, err := h.tokens.Issue(c.Request.Context(), room)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token.Token,
		"room":  token.Room,
	})
}
