package engine

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/DustGate/dustgate/internal/pricefeed"
	"github.com/DustGate/dustgate/internal/token"
	"github.com/DustGate/dustgate/internal/venue"
)

// MetadataSource resolves token metadata on first encounter.
type MetadataSource interface {
	EnsureInitialized(ctx context.Context, tok common.Address) token.Metadata
}

// DestinationResolver maps a maker to its payout address, which is the maker
// itself unless an override is registered.
type DestinationResolver interface {
	Resolve(maker common.Address) common.Address
}

// Batch is one settlement request. Makers and Tokens are parallel: leg i
// sweeps Tokens[i] from Makers[i].
type Batch struct {
	Caller        common.Address
	Makers        []common.Address
	Tokens        []common.Address
	Packet        *pricefeed.Packet
	SuppliedValue *big.Int
}

// LegResult is one settled sweep.
type LegResult struct {
	Maker       common.Address
	Token       common.Address
	Destination common.Address
	Amount      *big.Int
	Gross       *big.Int
	Payable     *big.Int
	DiscountBps uint64
}

// Receipt is the outcome of a batch that ran to Done.
type Receipt struct {
	BatchID       uuid.UUID
	Caller        common.Address
	Attestor      common.Address
	Preview       bool
	Legs          []LegResult
	Skipped       int
	TotalGross    *big.Int
	ProtocolCut   *big.Int
	Refund        *big.Int
	Retained      *big.Int
	SuppliedValue *big.Int
	PacketDigest  []byte
	CreatedAt     time.Time
}

// Engine runs batches through Init, per-leg processing, protocol settle and
// overage refund as one atomic venue transaction. Any abort rolls the
// transaction back; nothing partially commits.
type Engine struct {
	verifier *pricefeed.Verifier
	metadata MetadataSource
	venue    venue.Venue
	dests    DestinationResolver
	guard    *Guard
}

func New(verifier *pricefeed.Verifier, metadata MetadataSource, v venue.Venue, dests DestinationResolver, guard *Guard) *Engine {
	return &Engine{
		verifier: verifier,
		metadata: metadata,
		venue:    v,
		dests:    dests,
		guard:    guard,
	}
}

// Settle commits the batch.
func (e *Engine) Settle(ctx context.Context, params Params, batch Batch) (*Receipt, error) {
	return e.run(ctx, params, batch, false)
}

// Preview runs the identical pipeline and rolls the transaction back,
// reporting what Settle would have done.
func (e *Engine) Preview(ctx context.Context, params Params, batch Batch) (*Receipt, error) {
	return e.run(ctx, params, batch, true)
}

func (e *Engine) run(ctx context.Context, params Params, batch Batch, preview bool) (*Receipt, error) {
	if err := e.guard.Enter(); err != nil {
		return nil, err
	}
	defer e.guard.Exit()

	// Init: shape, whitelist, packet.
	if len(batch.Makers) == 0 || len(batch.Makers) != len(batch.Tokens) {
		return nil, &BatchShapeError{Reason: "maker and token lists must be non-empty and equal length"}
	}
	if len(batch.Makers) > params.MaxBatchLegs {
		return nil, &BatchShapeError{Reason: fmt.Sprintf("batch of %d legs exceeds maximum %d", len(batch.Makers), params.MaxBatchLegs)}
	}
	if !params.Whitelisted(batch.Caller) {
		return nil, &BatchShapeError{Reason: "caller is not whitelisted"}
	}

	attestor, err := e.verifier.Verify(batch.Packet)
	if err != nil {
		return nil, err
	}
	prices := batch.Packet.Lookup()

	supplied := batch.SuppliedValue
	if supplied == nil {
		supplied = new(big.Int)
	}
	if supplied.Sign() < 0 {
		return nil, &BatchShapeError{Reason: "supplied value must not be negative"}
	}

	tx, err := e.venue.Begin(ctx)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	// Seed the batch ledger: escrow the caller's supplied value with the
	// operator.
	if supplied.Sign() > 0 {
		available, err := tx.NativeBalance(ctx, batch.Caller)
		if err != nil {
			return nil, err
		}
		if available.Cmp(supplied) < 0 {
			return nil, &SolvencyError{Required: new(big.Int).Set(supplied), Available: available}
		}
		if err := tx.TransferNative(ctx, batch.Caller, params.Operator, supplied); err != nil {
			return nil, err
		}
	}

	remaining := new(big.Int).Set(supplied)
	totalGross := new(big.Int)
	legs := make([]LegResult, 0, len(batch.Makers))
	skipped := 0

	// Per-leg processing, in submitted order.
	for i := range batch.Makers {
		maker, tok := batch.Makers[i], batch.Tokens[i]

		balance, err := tx.BalanceOf(ctx, tok, maker)
		if err != nil {
			return nil, err
		}
		allowance, err := tx.Allowance(ctx, tok, maker)
		if err != nil {
			return nil, err
		}
		sweepable := balance
		if allowance.Cmp(sweepable) < 0 {
			sweepable = allowance
		}
		// Batches are built from possibly stale off-chain data; a pair that
		// no longer has anything to sweep is skipped, not failed.
		if sweepable.Sign() == 0 {
			skipped++
			continue
		}

		price, ok := prices[tok]
		if !ok {
			return nil, &NoPriceError{Token: tok}
		}
		meta := e.metadata.EnsureInitialized(ctx, tok)

		if err := tx.SweepToken(ctx, tok, maker, batch.Caller, sweepable); err != nil {
			return nil, err
		}

		gross := GrossValue(sweepable, price, meta.Scale())
		discount := params.Discount(meta.Tier)
		payable := PayableAmount(gross, discount)

		if payable.Cmp(remaining) > 0 {
			return nil, &SolvencyError{Required: payable, Available: new(big.Int).Set(remaining)}
		}
		remaining.Sub(remaining, payable)
		totalGross.Add(totalGross, gross)

		dest := e.dests.Resolve(maker)
		if payable.Sign() > 0 {
			if err := tx.TransferNative(ctx, params.Operator, dest, payable); err != nil {
				return nil, err
			}
		}

		legs = append(legs, LegResult{
			Maker:       maker,
			Token:       tok,
			Destination: dest,
			Amount:      sweepable,
			Gross:       gross,
			Payable:     payable,
			DiscountBps: discount,
		})
	}

	// Protocol settle: one cut over the batch total, held by the operator.
	cut := ProtocolCut(totalGross, params.ProtocolFeeBps)
	if cut.Cmp(remaining) > 0 {
		return nil, &SolvencyError{Required: cut, Available: new(big.Int).Set(remaining)}
	}
	remaining.Sub(remaining, cut)

	// Overage refund: a remainder worth returning goes back to the caller;
	// dust-sized remainders are cheaper to retain than to pay out.
	refund := new(big.Int)
	retained := new(big.Int)
	if remaining.Cmp(params.OverageThreshold) > 0 {
		if err := tx.TransferNative(ctx, params.Operator, batch.Caller, remaining); err != nil {
			return nil, err
		}
		refund.Set(remaining)
	} else {
		retained.Set(remaining)
	}

	if preview {
		if err := tx.Rollback(ctx); err != nil {
			return nil, err
		}
	} else {
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
	}
	committed = true

	return &Receipt{
		BatchID:       uuid.New(),
		Caller:        batch.Caller,
		Attestor:      attestor,
		Preview:       preview,
		Legs:          legs,
		Skipped:       skipped,
		TotalGross:    totalGross,
		ProtocolCut:   cut,
		Refund:        refund,
		Retained:      retained,
		SuppliedValue: new(big.Int).Set(supplied),
		PacketDigest:  e.verifier.Digest(batch.Packet),
		CreatedAt:     time.Now(),
	}, nil
}
