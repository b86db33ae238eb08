package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DustGate/dustgate/internal/service"
)

type TreasuryHandler struct {
	treasury *service.Treasury
}

func NewTreasuryHandler(treasury *service.Treasury) *TreasuryHandler {
	return &TreasuryHandler{treasury: treasury}
}

// Payout pushes the retained fee balance to the configured wallets.
// POST /v1/treasury/payout
func (h *TreasuryHandler) Payout(c *gin.Context) {
	resp, err := h.treasury.Payout(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Retained reports the current fee balance. GET /v1/treasury
func (h *TreasuryHandler) Retained(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"retained_wei": h.treasury.Retained().String()})
}
