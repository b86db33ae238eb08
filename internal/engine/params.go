package engine

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Hard bounds enforced at configuration time. The engine trusts them at
// batch time rather than re-checking.
const (
	BpsDenominator    uint64 = 10000
	MaxDiscountBps    uint64 = 10000
	MaxProtocolFeeBps uint64 = 5000
	MaxPayoutSplitBps uint64 = 10000
)

// Params is the read-only configuration snapshot one batch settles under.
// Admin mutations produce a new snapshot; an in-flight batch never observes
// a half-applied change.
type Params struct {
	// Operator holds batch escrow and is the spender named by maker
	// approvals.
	Operator common.Address

	ProtocolFeeBps  uint64
	PayoutSplitBps  uint64
	PrimaryWallet   common.Address
	SecondaryWallet common.Address

	// TierDiscounts maps tier id to discount bps. Tier 0 is the default for
	// unassigned tokens and may legitimately carry a zero discount.
	TierDiscounts map[uint8]uint64

	MaxBatchLegs     int
	OverageThreshold *big.Int

	WhitelistEnabled bool
	Whitelist        map[common.Address]struct{}
}

// Validate enforces the hard bounds. Out-of-range values are rejected, never
// clamped.
func (p Params) Validate() error {
	if p.Operator == (common.Address{}) {
		return fmt.Errorf("operator address is zero: %w", ErrParamOutOfRange)
	}
	if p.ProtocolFeeBps > MaxProtocolFeeBps {
		return fmt.Errorf("protocol fee %d bps exceeds %d: %w", p.ProtocolFeeBps, MaxProtocolFeeBps, ErrParamOutOfRange)
	}
	if p.PayoutSplitBps > MaxPayoutSplitBps {
		return fmt.Errorf("payout split %d bps exceeds %d: %w", p.PayoutSplitBps, MaxPayoutSplitBps, ErrParamOutOfRange)
	}
	for tier, discount := range p.TierDiscounts {
		if discount > MaxDiscountBps {
			return fmt.Errorf("tier %d discount %d bps exceeds %d: %w", tier, discount, MaxDiscountBps, ErrParamOutOfRange)
		}
	}
	if p.MaxBatchLegs <= 0 {
		return fmt.Errorf("max batch legs must be positive: %w", ErrParamOutOfRange)
	}
	if p.OverageThreshold == nil || p.OverageThreshold.Sign() < 0 {
		return fmt.Errorf("overage threshold must be non-negative: %w", ErrParamOutOfRange)
	}
	return nil
}

// Discount resolves a tier to its configured discount, 0 for unknown tiers.
func (p Params) Discount(tier uint8) uint64 {
	return p.TierDiscounts[tier]
}

// Whitelisted reports whether the caller may settle under this snapshot.
func (p Params) Whitelisted(caller common.Address) bool {
	if !p.WhitelistEnabled {
		return true
	}
	_, ok := p.Whitelist[caller]
	return ok
}
