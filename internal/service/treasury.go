package service

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/DustGate/dustgate/internal/engine"
	"github.com/DustGate/dustgate/internal/model"
	"github.com/DustGate/dustgate/internal/pkg/apperrors"
	"github.com/DustGate/dustgate/internal/pkg/logger"
	"github.com/DustGate/dustgate/internal/pkg/metrics"
	"github.com/DustGate/dustgate/internal/venue"
)

// Treasury accounts for the native value the system retains: protocol cuts
// plus sub-threshold overage. The funds themselves sit in the operator's
// venue balance; this counter says how much of that balance is fee revenue
// rather than escrow in flight.
type Treasury struct {
	venue   venue.Venue
	guard   *engine.Guard
	gate    *sync.Mutex
	params  *ParamsManager
	records RecordStore

	mu       sync.Mutex
	retained *big.Int
}

// NewTreasury shares the settlement path's guard and serializing gate:
// a payout must not interleave with a batch, and nothing reached from a
// payout transfer may call back in.
func NewTreasury(v venue.Venue, guard *engine.Guard, gate *sync.Mutex, params *ParamsManager, records RecordStore) *Treasury {
	return &Treasury{
		venue:    v,
		guard:    guard,
		gate:     gate,
		params:   params,
		records:  records,
		retained: new(big.Int),
	}
}

// Credit adds a committed batch's protocol cut and retained overage.
func (t *Treasury) Credit(amount *big.Int) {
	if amount == nil || amount.Sign() <= 0 {
		return
	}
	t.mu.Lock()
	t.retained.Add(t.retained, amount)
	t.setGauge()
	t.mu.Unlock()
}

// Retained reports the current fee balance.
func (t *Treasury) Retained() *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return new(big.Int).Set(t.retained)
}

// Payout pushes the whole retained balance out, split between the primary
// and secondary wallets by the configured percentage. The transfer pair is
// one venue transaction; it lands whole or not at all.
func (t *Treasury) Payout(ctx context.Context) (*model.PayoutResponse, error) {
	t.gate.Lock()
	defer t.gate.Unlock()

	if err := t.guard.Enter(); err != nil {
		return nil, apperrors.New(apperrors.ErrReentrancy, err.Error(), err)
	}
	defer t.guard.Exit()

	amount := t.Retained()
	if amount.Sign() == 0 {
		return nil, apperrors.New(apperrors.ErrNoBalance, "no protocol fees retained", nil)
	}

	snap := t.params.Snapshot()
	primaryAmount := new(big.Int).Mul(amount, new(big.Int).SetUint64(snap.PayoutSplitBps))
	primaryAmount.Quo(primaryAmount, new(big.Int).SetUint64(engine.BpsDenominator))
	secondaryAmount := new(big.Int).Sub(amount, primaryAmount)

	if primaryAmount.Sign() > 0 && snap.PrimaryWallet == (common.Address{}) {
		return nil, apperrors.NewConfig("primary fee wallet not configured")
	}
	if secondaryAmount.Sign() > 0 && snap.SecondaryWallet == (common.Address{}) {
		return nil, apperrors.NewConfig("secondary fee wallet not configured")
	}

	tx, err := t.venue.Begin(ctx)
	if err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "venue unavailable", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if primaryAmount.Sign() > 0 {
		if err := tx.TransferNative(ctx, snap.Operator, snap.PrimaryWallet, primaryAmount); err != nil {
			return nil, apperrors.New(apperrors.ErrInternal, "primary payout transfer failed", err)
		}
	}
	if secondaryAmount.Sign() > 0 {
		if err := tx.TransferNative(ctx, snap.Operator, snap.SecondaryWallet, secondaryAmount); err != nil {
			return nil, apperrors.New(apperrors.ErrInternal, "secondary payout transfer failed", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, apperrors.New(apperrors.ErrInternal, "payout commit failed", err)
	}
	committed = true

	t.mu.Lock()
	t.retained.Sub(t.retained, amount)
	t.setGauge()
	t.mu.Unlock()

	paidAt := time.Now()
	if t.records != nil {
		record := model.PayoutRecord{
			ID:              uuid.New(),
			PrimaryWallet:   snap.PrimaryWallet.Hex(),
			PrimaryAmount:   primaryAmount.String(),
			SecondaryWallet: snap.SecondaryWallet.Hex(),
			SecondaryAmount: secondaryAmount.String(),
			CreatedAt:       paidAt,
		}
		if err := t.records.SavePayout(ctx, record); err != nil {
			logger.Warn("failed to persist payout record", "error", err.Error())
		}
	}

	logger.Info("protocol fees paid out",
		"total_wei", amount.String(),
		"primary_wei", primaryAmount.String(),
		"secondary_wei", secondaryAmount.String())

	return &model.PayoutResponse{
		PrimaryWallet:   snap.PrimaryWallet.Hex(),
		PrimaryAmount:   primaryAmount.String(),
		SecondaryWallet: snap.SecondaryWallet.Hex(),
		SecondaryAmount: secondaryAmount.String(),
		PaidAt:          paidAt.Unix(),
	}, nil
}

// setGauge mirrors the counter to the metrics gauge; callers hold t.mu.
func (t *Treasury) setGauge() {
	value, _ := new(big.Float).SetInt(t.retained).Float64()
	metrics.RetainedBalanceWei.Set(value)
}
