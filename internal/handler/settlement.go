package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/DustGate/dustgate/internal/middleware"
	"github.com/DustGate/dustgate/internal/model"
	"github.com/DustGate/dustgate/internal/pkg/apperrors"
	"github.com/DustGate/dustgate/internal/service"
)

type SettlementHandler struct {
	svc *service.SettlementService
}

func NewSettlementHandler(svc *service.SettlementService) *SettlementHandler {
	return &SettlementHandler{svc: svc}
}

// Settle sweeps a batch. POST /v1/settlements
func (h *SettlementHandler) Settle(c *gin.Context) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		c.Error(apperrors.New(apperrors.ErrAuthFailed, "unauthorized: missing caller context", nil))
		return
	}

	var req model.SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	resp, err := h.svc.Settle(c.Request.Context(), caller.Address, &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Preview dry-runs a batch. POST /v1/settlements/preview
func (h *SettlementHandler) Preview(c *gin.Context) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		c.Error(apperrors.New(apperrors.ErrAuthFailed, "unauthorized: missing caller context", nil))
		return
	}

	var req model.SettleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(apperrors.NewInvalidRequest(err.Error()))
		return
	}

	resp, err := h.svc.Preview(c.Request.Context(), caller.Address, &req)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// List pages persisted settlement legs. GET /v1/settlements
func (h *SettlementHandler) List(c *gin.Context) {
	q := model.RecordQuery{
		Caller: c.Query("caller"),
		Maker:  c.Query("maker"),
		Token:  c.Query("token"),
		Limit:  100,
	}
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.Error(apperrors.NewInvalidRequest("limit must be a positive integer"))
			return
		}
		q.Limit = parsed
	}
	if raw := c.Query("batch_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			c.Error(apperrors.NewInvalidRequest("invalid batch_id"))
			return
		}
		q.BatchID = id
	}

	records, err := h.svc.ListRecords(c.Request.Context(), q)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, records)
}
