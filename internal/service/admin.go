package service

import (
	"context"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"github.com/DustGate/dustgate/internal/model"
	"github.com/DustGate/dustgate/internal/pkg/apperrors"
	"github.com/DustGate/dustgate/internal/pkg/logger"
	"github.com/DustGate/dustgate/internal/pricefeed"
	"github.com/DustGate/dustgate/internal/token"
)

// AdminService fronts the mutable configuration surface: fee parameters,
// token tiers and decimal overrides, the caller whitelist, and the trusted
// attestor set.
type AdminService struct {
	params   *ParamsManager
	tokens   *token.Cache
	verifier *pricefeed.Verifier
	treasury *Treasury
}

func NewAdminService(params *ParamsManager, tokens *token.Cache, verifier *pricefeed.Verifier, treasury *Treasury) *AdminService {
	return &AdminService{
		params:   params,
		tokens:   tokens,
		verifier: verifier,
		treasury: treasury,
	}
}

// Params reports the active configuration snapshot, the attestor set and the
// retained fee balance in one view.
func (s *AdminService) Params() model.ParamsResponse {
	snap := s.params.Snapshot()
	signers := s.verifier.TrustedSigners()
	sort.Strings(signers)
	return model.ParamsResponse{
		ProtocolFeeBps:  snap.ProtocolFeeBps,
		PayoutSplitBps:  snap.PayoutSplitBps,
		PrimaryWallet:   snap.PrimaryWallet.Hex(),
		SecondaryWallet: snap.SecondaryWallet.Hex(),
		TierDiscounts:   snap.TierDiscounts,
		TrustedSigners:  signers,
		WhitelistOn:     snap.WhitelistEnabled,
		MaxBatchLegs:    snap.MaxBatchLegs,
		OverageWei:      snap.OverageThreshold.String(),
		AccruedFeesWei:  s.treasury.Retained().String(),
		Frozen:          s.params.Frozen(),
	}
}

func (s *AdminService) SetProtocolFee(bps uint64) error {
	if err := s.params.SetProtocolFee(bps); err != nil {
		return err
	}
	logger.Info("protocol fee updated", "fee_bps", bps)
	return nil
}

func (s *AdminService) SetPayoutSplit(bps uint64) error {
	if err := s.params.SetPayoutSplit(bps); err != nil {
		return err
	}
	logger.Info("payout split updated", "split_bps", bps)
	return nil
}

func (s *AdminService) SetWallets(primary, secondary string) error {
	if err := s.params.SetWallets(primary, secondary); err != nil {
		return err
	}
	logger.Info("fee wallets updated", "primary", primary, "secondary", secondary)
	return nil
}

func (s *AdminService) SetTierDiscount(tier uint8, bps uint64) error {
	if err := s.params.SetTierDiscount(tier, bps); err != nil {
		return err
	}
	logger.Info("tier discount updated", "tier", tier, "discount_bps", bps)
	return nil
}

// AssignTier moves a token to a discount tier. A non-default tier must have
// a discount configured first, otherwise the assignment would silently
// settle at zero discount and mask a typo.
func (s *AdminService) AssignTier(ctx context.Context, tokenAddr string, tier uint8) (model.TokenMetadataResponse, error) {
	addr, err := parseAddress(tokenAddr)
	if err != nil {
		return model.TokenMetadataResponse{}, err
	}
	if tier != 0 {
		if _, ok := s.params.TierDiscount(tier); !ok {
			return model.TokenMetadataResponse{}, apperrors.NewConfig(fmt.Sprintf("tier %d has no discount configured", tier))
		}
	}
	meta := s.tokens.SetTier(ctx, addr, tier)
	logger.Info("token tier assigned", "token", addr.Hex(), "tier", tier)
	return tokenMetadataResponse(addr, meta), nil
}

// OverrideDecimals pins a token's decimals, replacing whatever the probe
// resolved or will resolve.
func (s *AdminService) OverrideDecimals(ctx context.Context, tokenAddr string, decimals uint8) (model.TokenMetadataResponse, error) {
	addr, err := parseAddress(tokenAddr)
	if err != nil {
		return model.TokenMetadataResponse{}, err
	}
	if decimals > token.MaxDecimals {
		return model.TokenMetadataResponse{}, apperrors.NewConfig(fmt.Sprintf("decimals %d exceeds maximum %d", decimals, token.MaxDecimals))
	}
	meta := s.tokens.OverrideDecimals(ctx, addr, decimals)
	logger.Info("token decimals overridden", "token", addr.Hex(), "decimals", decimals)
	return tokenMetadataResponse(addr, meta), nil
}

// ListTokens returns every token the cache has touched, in address order.
func (s *AdminService) ListTokens() []model.TokenMetadataResponse {
	entries := s.tokens.List()
	out := make([]model.TokenMetadataResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, tokenMetadataResponse(e.Token, e.Meta))
	}
	return out
}

func (s *AdminService) SetWhitelisted(caller string, allowed bool) error {
	if err := s.params.SetWhitelisted(caller, allowed); err != nil {
		return err
	}
	logger.Info("caller whitelist updated", "caller", caller, "allowed", allowed)
	return nil
}

func (s *AdminService) SetWhitelistEnabled(enabled bool) {
	s.params.SetWhitelistEnabled(enabled)
	logger.Info("whitelist enforcement toggled", "enabled", enabled)
}

// SetFrozen halts or resumes the mutating caller surface.
func (s *AdminService) SetFrozen(frozen bool) {
	s.params.SetFrozen(frozen)
	if frozen {
		logger.Warn("settlement frozen by operator")
	} else {
		logger.Info("settlement unfrozen")
	}
}

func (s *AdminService) TrustSigner(signer string) error {
	if err := s.verifier.TrustSigner(signer); err != nil {
		return apperrors.New(apperrors.ErrInvalidRequest, err.Error(), err)
	}
	logger.Info("attestor trusted", "signer", signer)
	return nil
}

func (s *AdminService) RevokeSigner(signer string) error {
	if err := s.verifier.RevokeSigner(signer); err != nil {
		return apperrors.New(apperrors.ErrInvalidRequest, err.Error(), err)
	}
	logger.Info("attestor revoked", "signer", signer)
	return nil
}

func tokenMetadataResponse(addr common.Address, meta token.Metadata) model.TokenMetadataResponse {
	return model.TokenMetadataResponse{
		Token:       addr.Hex(),
		Initialized: meta.Initialized,
		Decimals:    meta.Decimals,
		Tier:        meta.Tier,
		Source:      meta.Source,
	}
}

// parseAddress rejects malformed hex and the zero address.
func parseAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, apperrors.NewInvalidRequest(fmt.Sprintf("invalid address: %s", s))
	}
	addr := common.HexToAddress(s)
	if addr == (common.Address{}) {
		return common.Address{}, apperrors.New(apperrors.ErrZeroAddress, "address is zero", nil)
	}
	return addr, nil
}
