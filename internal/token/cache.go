package token

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/DustGate/dustgate/internal/model"
	"github.com/DustGate/dustgate/internal/pkg/logger"
)

// DecimalsProber answers decimals() for a token, typically over RPC.
type DecimalsProber interface {
	Decimals(ctx context.Context, token common.Address) (uint8, error)
}

// SnapshotStore persists resolved metadata across restarts.
type SnapshotStore interface {
	LoadAll(ctx context.Context) ([]model.TokenMetadataSnapshot, error)
	Upsert(ctx context.Context, snap model.TokenMetadataSnapshot) error
}

// Entry pairs a token with its cached metadata for listings.
type Entry struct {
	Token common.Address
	Meta  Metadata
}

// Cache lazily resolves token metadata. A token is probed at most once in
// the cache's lifetime; if the probe fails the token settles at 18 decimals
// permanently. Admin overrides replace the resolution outright.
//
// The mutex is held across the probe so concurrent first touches of the same
// token agree on a single outcome. The prober bounds itself with its own
// timeout, and each token pays this cost once.
type Cache struct {
	prober DecimalsProber
	store  SnapshotStore

	mu      sync.Mutex
	entries map[common.Address]Metadata
}

func NewCache(prober DecimalsProber, store SnapshotStore) *Cache {
	return &Cache{
		prober:  prober,
		store:   store,
		entries: make(map[common.Address]Metadata),
	}
}

// WarmFromStore preloads snapshots so a restart does not re-probe tokens
// that already resolved.
func (c *Cache) WarmFromStore(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	snaps, err := c.store.LoadAll(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range snaps {
		c.entries[common.HexToAddress(s.Token)] = Metadata{
			Initialized: true,
			Decimals:    s.Decimals,
			Tier:        s.Tier,
			Source:      s.Source,
		}
	}
	return nil
}

// EnsureInitialized returns the token's metadata, resolving decimals on
// first touch. The probe is best-effort: any failure assumes DefaultDecimals
// and records the token as initialized so it is never probed again.
func (c *Cache) EnsureInitialized(ctx context.Context, tok common.Address) Metadata {
	c.mu.Lock()
	meta := c.entries[tok]
	if meta.Initialized {
		c.mu.Unlock()
		return meta
	}
	decimals, err := c.prober.Decimals(ctx, tok)
	switch {
	case err != nil:
		meta.Decimals = DefaultDecimals
		meta.Source = ResolutionDefaulted
		logger.Warn("token decimals probe failed, assuming default",
			"token", tok.Hex(), "decimals", DefaultDecimals, "error", err.Error())
	case decimals > MaxDecimals:
		// A token reporting absurd precision is treated the same as one that
		// cannot be probed at all.
		meta.Decimals = DefaultDecimals
		meta.Source = ResolutionDefaulted
		logger.Warn("token reported implausible decimals, assuming default",
			"token", tok.Hex(), "reported", decimals, "decimals", DefaultDecimals)
	default:
		meta.Decimals = decimals
		meta.Source = ResolutionProbed
	}
	meta.Initialized = true
	c.entries[tok] = meta
	c.mu.Unlock()

	c.persist(ctx, tok, meta)
	return meta
}

// Get reads without triggering resolution.
func (c *Cache) Get(tok common.Address) (Metadata, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	meta, ok := c.entries[tok]
	return meta, ok
}

// OverrideDecimals pins a token's decimals, marking it initialized so no
// probe ever runs for it.
func (c *Cache) OverrideDecimals(ctx context.Context, tok common.Address, decimals uint8) Metadata {
	c.mu.Lock()
	meta := c.entries[tok]
	meta.Initialized = true
	meta.Decimals = decimals
	meta.Source = ResolutionOverride
	c.entries[tok] = meta
	c.mu.Unlock()

	c.persist(ctx, tok, meta)
	return meta
}

// SetTier assigns a discount tier. The token need not be initialized yet;
// decimals still resolve lazily on first sweep.
func (c *Cache) SetTier(ctx context.Context, tok common.Address, tier uint8) Metadata {
	c.mu.Lock()
	meta := c.entries[tok]
	meta.Tier = tier
	c.entries[tok] = meta
	c.mu.Unlock()

	if meta.Initialized {
		c.persist(ctx, tok, meta)
	}
	return meta
}

// Tier returns the token's tier, 0 for tokens never assigned one.
func (c *Cache) Tier(tok common.Address) uint8 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[tok].Tier
}

// List returns every cached entry ordered by token address.
func (c *Cache) List() []Entry {
	c.mu.Lock()
	out := make([]Entry, 0, len(c.entries))
	for tok, meta := range c.entries {
		out = append(out, Entry{Token: tok, Meta: meta})
	}
	c.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Token.Hex() < out[j].Token.Hex()
	})
	return out
}

func (c *Cache) persist(ctx context.Context, tok common.Address, meta Metadata) {
	if c.store == nil {
		return
	}
	snap := model.TokenMetadataSnapshot{
		Token:     tok.Hex(),
		Decimals:  meta.Decimals,
		Tier:      meta.Tier,
		Source:    meta.Source,
		UpdatedAt: time.Now(),
	}
	if err := c.store.Upsert(ctx, snap); err != nil {
		logger.Warn("failed to persist token metadata snapshot",
			"token", tok.Hex(), "error", err.Error())
	}
}
