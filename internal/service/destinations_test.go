package service_test

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"

	"github.com/DustGate/dustgate/internal/model"
	"github.com/DustGate/dustgate/internal/pkg/apperrors"
	"github.com/DustGate/dustgate/internal/service"
)

type fakeDestStore struct {
	mu      sync.Mutex
	rows    map[string]model.DestinationOverride
	upserts int
	deletes int
	fail    bool
}

func newFakeDestStore() *fakeDestStore {
	return &fakeDestStore{rows: make(map[string]model.DestinationOverride)}
}

func (s *fakeDestStore) LoadAll(_ context.Context) ([]model.DestinationOverride, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return nil, errors.New("store down")
	}
	out := make([]model.DestinationOverride, 0, len(s.rows))
	for _, row := range s.rows {
		out = append(out, row)
	}
	return out, nil
}

func (s *fakeDestStore) Upsert(_ context.Context, override model.DestinationOverride) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("store down")
	}
	s.rows[override.Maker] = override
	s.upserts++
	return nil
}

func (s *fakeDestStore) Delete(_ context.Context, maker string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("store down")
	}
	delete(s.rows, maker)
	s.deletes++
	return nil
}

func signDestination(t *testing.T, key *ecdsa.PrivateKey, maker, dest common.Address, deadline int64) []byte {
	t.Helper()
	sig, err := crypto.Sign(service.DestinationDigest(maker, dest, deadline), key)
	assert.NoError(t, err)
	sig[64] += 27 // wire form
	return sig
}

func TestSetDestinationRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newFakeDestStore()
	book := service.NewDestinationBook(store)

	key, _ := crypto.GenerateKey()
	maker := crypto.PubkeyToAddress(key.PublicKey)
	dest := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	deadline := time.Now().Add(15 * time.Minute).Unix()

	// No override yet: payouts go straight to the maker.
	assert.Equal(t, maker, book.Resolve(maker))

	err := book.SetDestination(ctx, maker, dest, deadline, signDestination(t, key, maker, dest, deadline))
	assert.NoError(t, err)

	assert.Equal(t, dest, book.Resolve(maker))
	got, ok := book.Get(maker)
	assert.True(t, ok)
	assert.Equal(t, dest, got)
	assert.Equal(t, 1, store.upserts)

	// Pointing the destination back at the maker clears the override.
	err = book.SetDestination(ctx, maker, maker, deadline, signDestination(t, key, maker, maker, deadline))
	assert.NoError(t, err)
	assert.Equal(t, maker, book.Resolve(maker))
	_, ok = book.Get(maker)
	assert.False(t, ok)
	assert.Equal(t, 1, store.deletes)
}

func TestSetDestinationAcceptsRawRecoveryID(t *testing.T) {
	ctx := context.Background()
	book := service.NewDestinationBook(nil)

	key, _ := crypto.GenerateKey()
	maker := crypto.PubkeyToAddress(key.PublicKey)
	dest := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	deadline := time.Now().Add(time.Minute).Unix()

	sig, err := crypto.Sign(service.DestinationDigest(maker, dest, deadline), key)
	assert.NoError(t, err)
	// Recovery id left at 0/1, as some signers emit it.
	assert.NoError(t, book.SetDestination(ctx, maker, dest, deadline, sig))
	assert.Equal(t, dest, book.Resolve(maker))
}

func TestSetDestinationRejectsWrongSigner(t *testing.T) {
	ctx := context.Background()
	book := service.NewDestinationBook(nil)

	makerKey, _ := crypto.GenerateKey()
	maker := crypto.PubkeyToAddress(makerKey.PublicKey)
	thiefKey, _ := crypto.GenerateKey()
	dest := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	deadline := time.Now().Add(time.Minute).Unix()

	err := book.SetDestination(ctx, maker, dest, deadline, signDestination(t, thiefKey, maker, dest, deadline))
	assertAppError(t, err, apperrors.ErrAuthFailed)
	assert.Equal(t, maker, book.Resolve(maker))
}

func TestSetDestinationRejectsExpired(t *testing.T) {
	ctx := context.Background()
	book := service.NewDestinationBook(nil)
	// Freeze the book's clock past the authorization deadline.
	book.SetClock(func() time.Time { return time.Unix(2_000_000_000, 0) })

	key, _ := crypto.GenerateKey()
	maker := crypto.PubkeyToAddress(key.PublicKey)
	dest := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	deadline := int64(1_999_999_999)

	err := book.SetDestination(ctx, maker, dest, deadline, signDestination(t, key, maker, dest, deadline))
	assertAppError(t, err, apperrors.ErrAuthFailed)
}

func TestSetDestinationRejectsZeroAddresses(t *testing.T) {
	ctx := context.Background()
	book := service.NewDestinationBook(nil)

	key, _ := crypto.GenerateKey()
	maker := crypto.PubkeyToAddress(key.PublicKey)
	deadline := time.Now().Add(time.Minute).Unix()

	err := book.SetDestination(ctx, maker, common.Address{}, deadline, make([]byte, 65))
	assertAppError(t, err, apperrors.ErrZeroAddress)

	dest := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	err = book.SetDestination(ctx, common.Address{}, dest, deadline, make([]byte, 65))
	assertAppError(t, err, apperrors.ErrZeroAddress)
}

func TestSetDestinationRejectsMalformedSignature(t *testing.T) {
	ctx := context.Background()
	book := service.NewDestinationBook(nil)

	key, _ := crypto.GenerateKey()
	maker := crypto.PubkeyToAddress(key.PublicKey)
	dest := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	deadline := time.Now().Add(time.Minute).Unix()

	err := book.SetDestination(ctx, maker, dest, deadline, []byte{0x01, 0x02})
	assertAppError(t, err, apperrors.ErrAuthFailed)

	// A tampered signature recovers to some other address.
	sig := signDestination(t, key, maker, dest, deadline)
	sig[3] ^= 0xff
	err = book.SetDestination(ctx, maker, dest, deadline, sig)
	assertAppError(t, err, apperrors.ErrAuthFailed)
}

func TestWarmFromStore(t *testing.T) {
	ctx := context.Background()
	store := newFakeDestStore()

	key, _ := crypto.GenerateKey()
	maker := crypto.PubkeyToAddress(key.PublicKey)
	dest := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	store.rows[maker.Hex()] = model.DestinationOverride{
		Maker:       maker.Hex(),
		Destination: dest.Hex(),
		UpdatedAt:   time.Now(),
	}

	book := service.NewDestinationBook(store)
	assert.NoError(t, book.WarmFromStore(ctx))
	assert.Equal(t, dest, book.Resolve(maker))

	store.fail = true
	assert.Error(t, service.NewDestinationBook(store).WarmFromStore(ctx))
}

// Persistence failures degrade to in-memory only; the override itself must
// still take effect.
func TestSetDestinationSurvivesStoreFailure(t *testing.T) {
	ctx := context.Background()
	store := newFakeDestStore()
	store.fail = true
	book := service.NewDestinationBook(store)

	key, _ := crypto.GenerateKey()
	maker := crypto.PubkeyToAddress(key.PublicKey)
	dest := common.HexToAddress("0x00000000000000000000000000000000000000dd")
	deadline := time.Now().Add(time.Minute).Unix()

	err := book.SetDestination(ctx, maker, dest, deadline, signDestination(t, key, maker, dest, deadline))
	assert.NoError(t, err)
	assert.Equal(t, dest, book.Resolve(maker))
}
