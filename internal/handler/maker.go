package handler

import (
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/DustGate/dustgate/internal/model"
	"github.com/DustGate/dustgate/internal/pkg/apperrors"
	"github.com/DustGate/dustgate/internal/service"
)

type MakerHandler struct {
	dests *service.DestinationBook
}

func NewMakerHandler(dests *service.DestinationBook) *MakerHandler {
	return &MakerHandler{dests: dests}
}

// SetDestination registers a maker's payout override. The request carries
// the maker's own signature; the API key only grants access to the endpoint.
// PUT /v1/makers/destination
func (h *MakerHandler) SetDestination(c *gin.Context) {
	var req model.SetDestinationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	if !common.IsHexAddress(req.Maker) {
		c.Error(apperrors.NewInvalidRequest("invalid maker address: " + req.Maker))
		return
	}
	if !common.IsHexAddress(req.Destination) {
		c.Error(apperrors.NewInvalidRequest("invalid destination address: " + req.Destination))
		return
	}
	signature, err := hex.DecodeString(strings.TrimPrefix(req.Signature, "0x"))
	if err != nil {
		c.Error(apperrors.NewInvalidRequest("signature is not valid hex"))
		return
	}

	maker := common.HexToAddress(req.Maker)
	destination := common.HexToAddress(req.Destination)

	if err := h.dests.SetDestination(c.Request.Context(), maker, destination, req.Deadline, signature); err != nil {
		c.Error(err)
		return
	}

	resolved, overridden := h.dests.Get(maker)
	if !overridden {
		resolved = maker
	}
	c.JSON(http.StatusOK, model.DestinationResponse{
		Maker:       maker.Hex(),
		Destination: resolved.Hex(),
		Overridden:  overridden,
	})
}

// GetDestination reports where a maker's payouts currently go.
// GET /v1/makers/:address/destination
func (h *MakerHandler) GetDestination(c *gin.Context) {
	raw := c.Param("address")
	if !common.IsHexAddress(raw) {
		c.Error(apperrors.NewInvalidRequest("invalid maker address: " + raw))
		return
	}
	maker := common.HexToAddress(raw)

	resolved, overridden := h.dests.Get(maker)
	if !overridden {
		resolved = maker
	}
	c.JSON(http.StatusOK, model.DestinationResponse{
		Maker:       maker.Hex(),
		Destination: resolved.Hex(),
		Overridden:  overridden,
	})
}
