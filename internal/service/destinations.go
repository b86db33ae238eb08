package service

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/DustGate/dustgate/internal/model"
	"github.com/DustGate/dustgate/internal/pkg/apperrors"
	"github.com/DustGate/dustgate/internal/pkg/logger"
)

// destinationPrefix namespaces the override digest so a signature over it
// can never double as anything else the maker has signed.
const destinationPrefix = "DustGate destination override:"

// DestinationDigest is what a maker signs to register an override. Checked
// by SetDestination; exposed for the inspector tooling and tests.
func DestinationDigest(maker, destination common.Address, deadline int64) []byte {
	return crypto.Keccak256(
		[]byte(destinationPrefix),
		maker.Bytes(),
		destination.Bytes(),
		math.U256Bytes(big.NewInt(deadline)),
	)
}

// DestinationBook holds maker payout overrides. Settlement resolves through
// it on every paid leg; a maker with no override is paid directly.
type DestinationBook struct {
	store DestinationStore
	now   func() time.Time

	mu        sync.RWMutex
	overrides map[common.Address]common.Address
}

func NewDestinationBook(store DestinationStore) *DestinationBook {
	return &DestinationBook{
		store:     store,
		now:       time.Now,
		overrides: make(map[common.Address]common.Address),
	}
}

// WarmFromStore preloads persisted overrides at startup.
func (b *DestinationBook) WarmFromStore(ctx context.Context) error {
	if b.store == nil {
		return nil
	}
	overrides, err := b.store.LoadAll(ctx)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, o := range overrides {
		b.overrides[common.HexToAddress(o.Maker)] = common.HexToAddress(o.Destination)
	}
	return nil
}

// Resolve implements engine.DestinationResolver.
func (b *DestinationBook) Resolve(maker common.Address) common.Address {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if dest, ok := b.overrides[maker]; ok {
		return dest
	}
	return maker
}

// Get reports the override, if any, without falling back to the maker.
func (b *DestinationBook) Get(maker common.Address) (common.Address, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	dest, ok := b.overrides[maker]
	return dest, ok
}

// SetDestination registers (or clears) a maker's payout override. Only the
// maker can do this: the signature must recover to the maker itself over
// DestinationDigest. Setting the destination back to the maker address
// clears the override.
func (b *DestinationBook) SetDestination(ctx context.Context, maker, destination common.Address, deadline int64, signature []byte) error {
	if destination == (common.Address{}) {
		return apperrors.New(apperrors.ErrZeroAddress, "destination must not be the zero address", nil)
	}
	if maker == (common.Address{}) {
		return apperrors.New(apperrors.ErrZeroAddress, "maker must not be the zero address", nil)
	}
	if deadline < b.now().Unix() {
		return apperrors.New(apperrors.ErrAuthFailed, "destination authorization expired", nil)
	}
	if len(signature) != 65 {
		return apperrors.New(apperrors.ErrAuthFailed, "invalid signature length", nil)
	}

	digest := DestinationDigest(maker, destination, deadline)

	rawSig := make([]byte, 65)
	copy(rawSig, signature)
	if rawSig[64] >= 27 {
		rawSig[64] -= 27
	}
	pub, err := crypto.SigToPub(digest, rawSig)
	if err != nil {
		return apperrors.New(apperrors.ErrAuthFailed, "signature recovery failed", err)
	}
	if crypto.PubkeyToAddress(*pub) != maker {
		return apperrors.New(apperrors.ErrAuthFailed, "signature does not recover to maker", nil)
	}

	b.mu.Lock()
	if destination == maker {
		delete(b.overrides, maker)
	} else {
		b.overrides[maker] = destination
	}
	b.mu.Unlock()

	b.persist(ctx, maker, destination)
	return nil
}

func (b *DestinationBook) persist(ctx context.Context, maker, destination common.Address) {
	if b.store == nil {
		return
	}
	var err error
	if destination == maker {
		err = b.store.Delete(ctx, maker.Hex())
	} else {
		err = b.store.Upsert(ctx, model.DestinationOverride{
			Maker:       maker.Hex(),
			Destination: destination.Hex(),
			UpdatedAt:   time.Now(),
		})
	}
	if err != nil {
		logger.Warn("failed to persist destination override",
			"maker", maker.Hex(), "error", err.Error())
	}
}

// SetClock overrides the deadline clock. Test hook.
func (b *DestinationBook) SetClock(now func() time.Time) {
	b.now = now
}
