package service

import (
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"

	"github.com/DustGate/dustgate/internal/config"
	"github.com/DustGate/dustgate/internal/engine"
	"github.com/DustGate/dustgate/internal/pkg/apperrors"
)

// ParamsManager owns the mutable global configuration and hands the engine
// an immutable snapshot per batch. Every setter validates eagerly against
// the engine's hard bounds; out-of-range values are rejected, never clamped,
// and an in-flight batch never observes a half-applied change.
type ParamsManager struct {
	mu     sync.RWMutex
	params engine.Params

	// frozen halts the mutating caller surface. It lives outside the batch
	// parameter set: freezing must never wait on an in-flight batch holding
	// the params lock.
	frozen atomic.Bool
}

// NewParamsManager bootstraps the parameter set from configuration. A config
// that fails the engine's bounds is a startup error, not something to limp
// past.
func NewParamsManager(cfg config.EngineConfig) (*ParamsManager, error) {
	if !common.IsHexAddress(cfg.OperatorWallet) {
		return nil, apperrors.NewConfig("engine.operator_wallet must be a valid address")
	}

	threshold := new(big.Int)
	if cfg.OverageThresholdWei != "" {
		var ok bool
		threshold, ok = new(big.Int).SetString(cfg.OverageThresholdWei, 10)
		if !ok || threshold.Sign() < 0 {
			return nil, apperrors.NewConfig(fmt.Sprintf("invalid overage threshold: %q", cfg.OverageThresholdWei))
		}
	}

	// Fee wallets may be left unset until the first payout; garbage is still
	// rejected here, not at payout time.
	primary, err := parseOptionalAddress(cfg.PrimaryFeeWallet)
	if err != nil {
		return nil, apperrors.NewConfig(fmt.Sprintf("invalid primary fee wallet: %s", cfg.PrimaryFeeWallet))
	}
	secondary, err := parseOptionalAddress(cfg.SecondaryFeeWallet)
	if err != nil {
		return nil, apperrors.NewConfig(fmt.Sprintf("invalid secondary fee wallet: %s", cfg.SecondaryFeeWallet))
	}

	tiers := map[uint8]uint64{0: 0}
	for _, tier := range cfg.Tiers {
		tiers[tier.ID] = tier.DiscountBps
	}

	whitelist := make(map[common.Address]struct{}, len(cfg.Whitelist))
	for _, caller := range cfg.Whitelist {
		if !common.IsHexAddress(caller) {
			return nil, apperrors.NewConfig(fmt.Sprintf("invalid whitelist address: %s", caller))
		}
		whitelist[common.HexToAddress(caller)] = struct{}{}
	}

	params := engine.Params{
		Operator:         common.HexToAddress(cfg.OperatorWallet),
		ProtocolFeeBps:   cfg.ProtocolFeeBps,
		PayoutSplitBps:   cfg.PayoutSplitBps,
		PrimaryWallet:    primary,
		SecondaryWallet:  secondary,
		TierDiscounts:    tiers,
		MaxBatchLegs:     cfg.MaxBatchLegs,
		OverageThreshold: threshold,
		WhitelistEnabled: cfg.WhitelistEnabled,
		Whitelist:        whitelist,
	}
	if err := params.Validate(); err != nil {
		return nil, apperrors.New(apperrors.ErrConfig, err.Error(), err)
	}
	return &ParamsManager{params: params}, nil
}

// Snapshot returns a deep copy the engine can settle a whole batch against
// while admin mutations continue.
func (m *ParamsManager) Snapshot() engine.Params {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snap := m.params
	snap.OverageThreshold = new(big.Int).Set(m.params.OverageThreshold)
	snap.TierDiscounts = make(map[uint8]uint64, len(m.params.TierDiscounts))
	for tier, discount := range m.params.TierDiscounts {
		snap.TierDiscounts[tier] = discount
	}
	snap.Whitelist = make(map[common.Address]struct{}, len(m.params.Whitelist))
	for caller := range m.params.Whitelist {
		snap.Whitelist[caller] = struct{}{}
	}
	return snap
}

// apply validates a mutated copy and swaps it in atomically.
func (m *ParamsManager) apply(mutate func(p *engine.Params)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.params
	next.TierDiscounts = cloneTiers(m.params.TierDiscounts)
	next.Whitelist = cloneWhitelist(m.params.Whitelist)
	next.OverageThreshold = new(big.Int).Set(m.params.OverageThreshold)
	mutate(&next)

	if err := next.Validate(); err != nil {
		return apperrors.New(apperrors.ErrConfig, err.Error(), err)
	}
	m.params = next
	return nil
}

func (m *ParamsManager) SetProtocolFee(bps uint64) error {
	return m.apply(func(p *engine.Params) { p.ProtocolFeeBps = bps })
}

func (m *ParamsManager) SetPayoutSplit(bps uint64) error {
	return m.apply(func(p *engine.Params) { p.PayoutSplitBps = bps })
}

// SetWallets points protocol payouts at a new wallet pair. Zero addresses
// are rejected so a payout can never burn the retained balance.
func (m *ParamsManager) SetWallets(primary, secondary string) error {
	if !common.IsHexAddress(primary) || common.HexToAddress(primary) == (common.Address{}) {
		return apperrors.NewConfig("primary wallet must be a non-zero address")
	}
	if !common.IsHexAddress(secondary) || common.HexToAddress(secondary) == (common.Address{}) {
		return apperrors.NewConfig("secondary wallet must be a non-zero address")
	}
	return m.apply(func(p *engine.Params) {
		p.PrimaryWallet = common.HexToAddress(primary)
		p.SecondaryWallet = common.HexToAddress(secondary)
	})
}

// SetTierDiscount configures a tier's discount. Tier 0 is the default bucket
// and may carry zero; configuring any tier to zero also strips it from being
// assignable (see TierDiscount).
func (m *ParamsManager) SetTierDiscount(tier uint8, bps uint64) error {
	return m.apply(func(p *engine.Params) {
		if tier != 0 && bps == 0 {
			delete(p.TierDiscounts, tier)
			return
		}
		p.TierDiscounts[tier] = bps
	})
}

// TierDiscount reports a tier's configured discount and whether the tier is
// configured at all.
func (m *ParamsManager) TierDiscount(tier uint8) (uint64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	discount, ok := m.params.TierDiscounts[tier]
	return discount, ok
}

func (m *ParamsManager) SetWhitelisted(caller string, allowed bool) error {
	if !common.IsHexAddress(caller) {
		return apperrors.NewConfig(fmt.Sprintf("invalid caller address: %s", caller))
	}
	return m.apply(func(p *engine.Params) {
		addr := common.HexToAddress(caller)
		if allowed {
			p.Whitelist[addr] = struct{}{}
		} else {
			delete(p.Whitelist, addr)
		}
	})
}

func (m *ParamsManager) SetWhitelistEnabled(enabled bool) {
	// Cannot fail validation; still routed through apply for the atomic swap.
	_ = m.apply(func(p *engine.Params) { p.WhitelistEnabled = enabled })
}

// SetFrozen toggles the settlement freeze. In-flight batches finish; new
// mutating requests are refused until unfrozen.
func (m *ParamsManager) SetFrozen(frozen bool) {
	m.frozen.Store(frozen)
}

func (m *ParamsManager) Frozen() bool {
	return m.frozen.Load()
}

func parseOptionalAddress(s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, nil
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address: %s", s)
	}
	return common.HexToAddress(s), nil
}

func cloneTiers(src map[uint8]uint64) map[uint8]uint64 {
	out := make(map[uint8]uint64, len(src))
	for tier, discount := range src {
		out[tier] = discount
	}
	return out
}

func cloneWhitelist(src map[common.Address]struct{}) map[common.Address]struct{} {
	out := make(map[common.Address]struct{}, len(src))
	for caller := range src {
		out[caller] = struct{}{}
	}
	return out
}
