package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/DustGate/dustgate/internal/model"
	"github.com/DustGate/dustgate/internal/pkg/apperrors"
	"github.com/DustGate/dustgate/internal/service"
)

type AdminHandler struct {
	svc *service.AdminService
}

func NewAdminHandler(svc *service.AdminService) *AdminHandler {
	return &AdminHandler{svc: svc}
}

// GetParams returns the live configuration. GET /v1/admin/params
func (h *AdminHandler) GetParams(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Params())
}

// SetFee updates the protocol fee. PUT /v1/admin/fee
func (h *AdminHandler) SetFee(c *gin.Context) {
	var req model.SetFeeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	if err := h.svc.SetProtocolFee(req.FeeBps); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.svc.Params())
}

// SetSplit updates the payout split. PUT /v1/admin/split
func (h *AdminHandler) SetSplit(c *gin.Context) {
	var req model.SetSplitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	if err := h.svc.SetPayoutSplit(req.SplitBps); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.svc.Params())
}

// SetWallets updates both payout wallets at once. PUT /v1/admin/wallets
func (h *AdminHandler) SetWallets(c *gin.Context) {
	var req model.SetWalletsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	if err := h.svc.SetWallets(req.Primary, req.Secondary); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.svc.Params())
}

// SetTierDiscount configures a tier's discount. PUT /v1/admin/tiers
func (h *AdminHandler) SetTierDiscount(c *gin.Context) {
	var req model.SetTierDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	if err := h.svc.SetTierDiscount(req.Tier, req.DiscountBps); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.svc.Params())
}

// AssignTier moves a token to a tier. PUT /v1/admin/tokens/tier
func (h *AdminHandler) AssignTier(c *gin.Context) {
	var req model.AssignTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	meta, err := h.svc.AssignTier(c.Request.Context(), req.Token, req.Tier)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

// OverrideDecimals pins a token's decimals. PUT /v1/admin/tokens/decimals
func (h *AdminHandler) OverrideDecimals(c *gin.Context) {
	var req model.OverrideDecimalsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	meta, err := h.svc.OverrideDecimals(c.Request.Context(), req.Token, req.Decimals)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

// ListTokens dumps the metadata cache. GET /v1/admin/tokens
func (h *AdminHandler) ListTokens(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.ListTokens())
}

// SetWhitelist adds or removes one caller. PUT /v1/admin/whitelist
func (h *AdminHandler) SetWhitelist(c *gin.Context) {
	var req model.WhitelistRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	if err := h.svc.SetWhitelisted(req.Caller, req.Allowed); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.svc.Params())
}

// SetWhitelistEnabled toggles enforcement. PUT /v1/admin/whitelist/enabled
func (h *AdminHandler) SetWhitelistEnabled(c *gin.Context) {
	var req model.SetWhitelistEnabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	h.svc.SetWhitelistEnabled(req.Enabled)
	c.JSON(http.StatusOK, h.svc.Params())
}

// SetFrozen halts or resumes settlement. PUT /v1/admin/freeze
func (h *AdminHandler) SetFrozen(c *gin.Context) {
	var req model.SetFrozenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	h.svc.SetFrozen(req.Frozen)
	c.JSON(http.StatusOK, h.svc.Params())
}

// TrustSigner adds a price feed attestor. POST /v1/admin/signers
func (h *AdminHandler) TrustSigner(c *gin.Context) {
	var req model.TrustSignerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	if err := h.svc.TrustSigner(req.Signer); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.svc.Params())
}

// RevokeSigner removes an attestor. DELETE /v1/admin/signers/:address
func (h *AdminHandler) RevokeSigner(c *gin.Context) {
	if err := h.svc.RevokeSigner(c.Param("address")); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, h.svc.Params())
}
