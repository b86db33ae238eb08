package service

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/DustGate/dustgate/internal/engine"
	"github.com/DustGate/dustgate/internal/model"
	"github.com/DustGate/dustgate/internal/pkg/apperrors"
	"github.com/DustGate/dustgate/internal/pkg/logger"
	"github.com/DustGate/dustgate/internal/pkg/metrics"
	"github.com/DustGate/dustgate/internal/pricefeed"
)

// SettlementService runs batches end to end: request parsing, replay
// bookkeeping, the engine pipeline, persistence and fee accrual. The gate
// serializes it with treasury payouts; exactly one value-moving operation
// runs at a time.
type SettlementService struct {
	engine   *engine.Engine
	preview  *engine.Engine
	verifier *pricefeed.Verifier
	params   *ParamsManager
	gate     *sync.Mutex

	records  RecordStore
	replay   ReplayStore
	treasury *Treasury
	streamer RecordStreamer
}

// NewSettlementService wires the settlement path. previewEngine may equal
// eng; it differs only when previews read balances from a live chain instead
// of the local ledger. records, replay, treasury and streamer are optional.
func NewSettlementService(
	eng *engine.Engine,
	previewEngine *engine.Engine,
	verifier *pricefeed.Verifier,
	params *ParamsManager,
	gate *sync.Mutex,
	records RecordStore,
	replay ReplayStore,
	treasury *Treasury,
	streamer RecordStreamer,
) *SettlementService {
	if previewEngine == nil {
		previewEngine = eng
	}
	return &SettlementService{
		engine:   eng,
		preview:  previewEngine,
		verifier: verifier,
		params:   params,
		gate:     gate,
		records:  records,
		replay:   replay,
		treasury: treasury,
		streamer: streamer,
	}
}

// Settle commits a batch. A committed batch consumes its packet digest;
// an aborted one releases it so the caller can retry with the same packet.
func (s *SettlementService) Settle(ctx context.Context, caller common.Address, req *model.SettleRequest) (*model.SettleResponse, error) {
	batch, err := s.parseBatch(caller, req)
	if err != nil {
		return nil, err
	}

	s.gate.Lock()
	defer s.gate.Unlock()

	digest := s.verifier.Digest(batch.Packet)
	if s.replay != nil {
		reserved, err := s.replay.Reserve(ctx, digest)
		if err != nil {
			return nil, apperrors.New(apperrors.ErrInternal, "replay store unavailable", err)
		}
		if !reserved {
			return nil, apperrors.New(apperrors.ErrBadPacket, "packet already used", nil)
		}
	}

	receipt, err := s.engine.Settle(ctx, s.params.Snapshot(), batch)
	if err != nil {
		if s.replay != nil {
			if relErr := s.replay.Release(ctx, digest); relErr != nil {
				logger.Warn("failed to release packet digest after abort", "error", relErr.Error())
			}
		}
		appErr := mapEngineError(err)
		metrics.SettlementsTotal.WithLabelValues("aborted").Inc()
		metrics.SettlementAborts.WithLabelValues(strings.ToLower(string(appErr.Type))).Inc()
		logger.Warn("settlement aborted",
			"caller", caller.Hex(),
			"legs", len(batch.Makers),
			"reason", appErr.Type,
			"error", err.Error())
		return nil, appErr
	}

	s.recordReceipt(ctx, receipt)

	metrics.SettlementsTotal.WithLabelValues("settled").Inc()
	metrics.SettlementLegs.WithLabelValues("settled").Add(float64(len(receipt.Legs)))
	metrics.SettlementLegs.WithLabelValues("skipped").Add(float64(receipt.Skipped))

	logger.Info("batch settled",
		"batch_id", receipt.BatchID.String(),
		"caller", caller.Hex(),
		"legs", len(receipt.Legs),
		"skipped", receipt.Skipped,
		"gross_wei", receipt.TotalGross.String(),
		"protocol_cut_wei", receipt.ProtocolCut.String(),
		"refund_wei", receipt.Refund.String())

	return settleResponse(receipt), nil
}

// Preview runs the pipeline and rolls everything back. It never consumes the
// packet digest, so a previewed packet still settles.
func (s *SettlementService) Preview(ctx context.Context, caller common.Address, req *model.SettleRequest) (*model.SettleResponse, error) {
	batch, err := s.parseBatch(caller, req)
	if err != nil {
		return nil, err
	}

	s.gate.Lock()
	defer s.gate.Unlock()

	receipt, err := s.preview.Preview(ctx, s.params.Snapshot(), batch)
	if err != nil {
		return nil, mapEngineError(err)
	}
	metrics.SettlementsTotal.WithLabelValues("preview").Inc()
	return settleResponse(receipt), nil
}

// ListRecords pages through persisted settlement legs.
func (s *SettlementService) ListRecords(ctx context.Context, q model.RecordQuery) ([]model.SettlementRecord, error) {
	if s.records == nil {
		return []model.SettlementRecord{}, nil
	}
	records, err := s.records.Query(ctx, q)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "record query failed", err)
	}
	return records, nil
}

// recordReceipt handles the post-commit side effects: persistence, fee
// accrual, metrics and the live stream. The value already moved; failures
// here are logged, never surfaced as settlement failures.
func (s *SettlementService) recordReceipt(ctx context.Context, receipt *engine.Receipt) {
	records := make([]model.SettlementRecord, 0, len(receipt.Legs))
	paid := new(big.Int)
	for _, leg := range receipt.Legs {
		records = append(records, model.SettlementRecord{
			ID:          uuid.New(),
			BatchID:     receipt.BatchID,
			Caller:      receipt.Caller.Hex(),
			Maker:       leg.Maker.Hex(),
			Token:       leg.Token.Hex(),
			Destination: leg.Destination.Hex(),
			TokenAmount: leg.Amount.String(),
			GrossWei:    leg.Gross.String(),
			PayableWei:  leg.Payable.String(),
			DiscountBps: leg.DiscountBps,
			CreatedAt:   receipt.CreatedAt,
		})
		paid.Add(paid, leg.Payable)
	}

	if s.records != nil && len(records) > 0 {
		if err := s.records.SaveBatch(ctx, records); err != nil {
			logger.Warn("failed to persist settlement records",
				"batch_id", receipt.BatchID.String(), "error", err.Error())
		}
	}

	if s.treasury != nil {
		accrued := new(big.Int).Add(receipt.ProtocolCut, receipt.Retained)
		s.treasury.Credit(accrued)
	}

	if s.streamer != nil {
		for _, record := range records {
			s.streamer.Broadcast(record)
		}
	}

	paidFloat, _ := new(big.Float).SetInt(paid).Float64()
	metrics.NativePaidWei.Add(paidFloat)
}

// parseBatch converts the wire request into engine types. Address and
// amount syntax errors are caller mistakes; packet content errors are
// attestation problems.
func (s *SettlementService) parseBatch(caller common.Address, req *model.SettleRequest) (engine.Batch, error) {
	makers := make([]common.Address, 0, len(req.Makers))
	for _, m := range req.Makers {
		if !common.IsHexAddress(m) {
			return engine.Batch{}, apperrors.NewInvalidRequest(fmt.Sprintf("invalid maker address: %s", m))
		}
		makers = append(makers, common.HexToAddress(m))
	}
	tokens := make([]common.Address, 0, len(req.Tokens))
	for _, t := range req.Tokens {
		if !common.IsHexAddress(t) {
			return engine.Batch{}, apperrors.NewInvalidRequest(fmt.Sprintf("invalid token address: %s", t))
		}
		tokens = append(tokens, common.HexToAddress(t))
	}

	supplied, ok := new(big.Int).SetString(req.SuppliedValueWei, 10)
	if !ok || supplied.Sign() < 0 {
		return engine.Batch{}, apperrors.NewInvalidRequest(fmt.Sprintf("invalid supplied value: %s", req.SuppliedValueWei))
	}

	packet, err := packetFromDTO(&req.Packet)
	if err != nil {
		return engine.Batch{}, err
	}

	return engine.Batch{
		Caller:        caller,
		Makers:        makers,
		Tokens:        tokens,
		Packet:        packet,
		SuppliedValue: supplied,
	}, nil
}

func packetFromDTO(dto *model.PacketDTO) (*pricefeed.Packet, error) {
	quotes := make([]pricefeed.Quote, 0, len(dto.Entries))
	for _, e := range dto.Entries {
		if !common.IsHexAddress(e.Token) {
			return nil, apperrors.New(apperrors.ErrBadPacket, fmt.Sprintf("invalid token address in packet: %s", e.Token), nil)
		}
		price, ok := new(big.Int).SetString(e.Price, 10)
		if !ok {
			return nil, apperrors.New(apperrors.ErrBadPacket, fmt.Sprintf("invalid price in packet: %s", e.Price), nil)
		}
		quotes = append(quotes, pricefeed.Quote{
			Token: common.HexToAddress(e.Token),
			Price: price,
		})
	}

	signature, err := hex.DecodeString(strings.TrimPrefix(dto.Signature, "0x"))
	if err != nil {
		return nil, apperrors.New(apperrors.ErrBadPacket, "signature is not valid hex", err)
	}

	return &pricefeed.Packet{
		Quotes:      quotes,
		RequestType: dto.RequestType,
		Deadline:    dto.Deadline,
		Signature:   signature,
	}, nil
}

func settleResponse(receipt *engine.Receipt) *model.SettleResponse {
	legs := make([]model.LegDTO, 0, len(receipt.Legs))
	for _, leg := range receipt.Legs {
		legs = append(legs, model.LegDTO{
			Maker:       leg.Maker.Hex(),
			Token:       leg.Token.Hex(),
			Destination: leg.Destination.Hex(),
			TokenAmount: leg.Amount.String(),
			GrossWei:    leg.Gross.String(),
			PayableWei:  leg.Payable.String(),
			DiscountBps: leg.DiscountBps,
		})
	}
	return &model.SettleResponse{
		BatchID:        receipt.BatchID.String(),
		Caller:         receipt.Caller.Hex(),
		Attestor:       receipt.Attestor.Hex(),
		Preview:        receipt.Preview,
		Legs:           legs,
		SkippedLegs:    receipt.Skipped,
		TotalGrossWei:  receipt.TotalGross.String(),
		ProtocolCutWei: receipt.ProtocolCut.String(),
		RefundWei:      receipt.Refund.String(),
		RetainedWei:    receipt.Retained.String(),
		CreatedAt:      receipt.CreatedAt.Unix(),
	}
}

// mapEngineError translates pipeline failures into the API error taxonomy.
func mapEngineError(err error) *apperrors.AppError {
	var solvency *engine.SolvencyError
	var noPrice *engine.NoPriceError
	var shape *engine.BatchShapeError
	switch {
	case errors.As(err, &solvency):
		msg := fmt.Sprintf("%s (shortfall %s)", solvency.Error(), solvency.Shortfall())
		return apperrors.New(apperrors.ErrInsufficientNative, msg, err)
	case errors.As(err, &noPrice):
		return apperrors.New(apperrors.ErrNoTokenPrice, noPrice.Error(), err)
	case errors.As(err, &shape):
		return apperrors.New(apperrors.ErrNoSweepableOrders, shape.Error(), err)
	case errors.Is(err, engine.ErrReentrancy):
		return apperrors.New(apperrors.ErrReentrancy, err.Error(), err)
	case errors.Is(err, pricefeed.ErrMalformed),
		errors.Is(err, pricefeed.ErrDuplicateQuote),
		errors.Is(err, pricefeed.ErrWrongRequestType),
		errors.Is(err, pricefeed.ErrExpired),
		errors.Is(err, pricefeed.ErrBadSignature),
		errors.Is(err, pricefeed.ErrUntrustedSigner):
		return apperrors.New(apperrors.ErrBadPacket, err.Error(), err)
	default:
		return apperrors.New(apperrors.ErrInternal, "settlement failed", err)
	}
}
