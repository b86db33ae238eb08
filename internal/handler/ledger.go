package handler

import (
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/DustGate/dustgate/internal/model"
	"github.com/DustGate/dustgate/internal/pkg/apperrors"
	"github.com/DustGate/dustgate/internal/venue/memory"
)

// LedgerHandler is the deposit surface of the custodial ledger. Crediting is
// an ops action, so both endpoints sit behind the admin key.
type LedgerHandler struct {
	ledger *memory.Ledger
}

func NewLedgerHandler(ledger *memory.Ledger) *LedgerHandler {
	return &LedgerHandler{ledger: ledger}
}

// Credit deposits native value or token balance. POST /v1/admin/ledger/credit
func (h *LedgerHandler) Credit(c *gin.Context) {
	var req model.LedgerCreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}
	if !common.IsHexAddress(req.Account) {
		c.Error(apperrors.NewInvalidRequest("invalid account address: " + req.Account))
		return
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok || amount.Sign() <= 0 {
		c.Error(apperrors.NewInvalidRequest("amount must be a positive integer"))
		return
	}
	account := common.HexToAddress(req.Account)

	if req.Token == "" {
		h.ledger.CreditNative(account, amount)
	} else {
		if !common.IsHexAddress(req.Token) {
			c.Error(apperrors.NewInvalidRequest("invalid token address: " + req.Token))
			return
		}
		tok := common.HexToAddress(req.Token)
		h.ledger.CreditToken(tok, account, amount)
		if req.Approve {
			h.ledger.Approve(tok, account, amount)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"account":    account.Hex(),
		"native_wei": h.ledger.NativeBalanceOf(account).String(),
	})
}

// Balance reports an account's native balance. GET /v1/admin/ledger/:address
func (h *LedgerHandler) Balance(c *gin.Context) {
	raw := c.Param("address")
	if !common.IsHexAddress(raw) {
		c.Error(apperrors.NewInvalidRequest("invalid account address: " + raw))
		return
	}
	account := common.HexToAddress(raw)
	c.JSON(http.StatusOK, gin.H{
		"account":    account.Hex(),
		"native_wei": h.ledger.NativeBalanceOf(account).String(),
	})
}
