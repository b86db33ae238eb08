package pricefeed

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
)

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	key, _ := crypto.GenerateKey()
	keyHex := hexutil.Encode(crypto.FromECDSA(key))[2:]
	s, err := NewSigner(keyHex, 137)
	assert.NoError(t, err)
	return s
}

func TestSignAndVerifyPacket(t *testing.T) {
	s := newTestSigner(t)

	p := testPacket()
	sig, err := s.SignPacket(p)
	assert.NoError(t, err)
	assert.Equal(t, 132, len(sig)) // 0x + 65 bytes * 2
	assert.Len(t, p.Signature, 65)

	v, err := NewVerifier(137, RequestTypeDustSweep, []string{s.Address().Hex()})
	assert.NoError(t, err)

	recovered, err := v.Verify(p)
	assert.NoError(t, err)
	assert.Equal(t, s.Address(), recovered)
}

func TestVerifyRejectsUntrustedSigner(t *testing.T) {
	s := newTestSigner(t)

	p := testPacket()
	_, err := s.SignPacket(p)
	assert.NoError(t, err)

	v, err := NewVerifier(137, RequestTypeDustSweep, []string{
		"0x0000000000000000000000000000000000000001",
	})
	assert.NoError(t, err)

	_, err = v.Verify(p)
	assert.ErrorIs(t, err, ErrUntrustedSigner)

	// Trusting the attestor at runtime makes the same packet verify.
	assert.NoError(t, v.TrustSigner(s.Address().Hex()))
	_, err = v.Verify(p)
	assert.NoError(t, err)

	// Revoking it cuts the packet off again.
	assert.NoError(t, v.RevokeSigner(s.Address().Hex()))
	_, err = v.Verify(p)
	assert.ErrorIs(t, err, ErrUntrustedSigner)
}

func TestVerifyRejectsExpiredDeadline(t *testing.T) {
	s := newTestSigner(t)

	p := testPacket()
	_, err := s.SignPacket(p)
	assert.NoError(t, err)

	v, err := NewVerifier(137, RequestTypeDustSweep, []string{s.Address().Hex()})
	assert.NoError(t, err)
	v.SetClock(func() time.Time { return time.Unix(p.Deadline+1, 0) })

	_, err = v.Verify(p)
	assert.ErrorIs(t, err, ErrExpired)

	// Exactly at the deadline still clears.
	v.SetClock(func() time.Time { return time.Unix(p.Deadline, 0) })
	_, err = v.Verify(p)
	assert.NoError(t, err)
}

func TestVerifyRejectsWrongRequestType(t *testing.T) {
	s := newTestSigner(t)

	p := testPacket()
	p.RequestType = 7
	_, err := s.SignPacket(p)
	assert.NoError(t, err)

	v, err := NewVerifier(137, RequestTypeDustSweep, []string{s.Address().Hex()})
	assert.NoError(t, err)

	_, err = v.Verify(p)
	assert.ErrorIs(t, err, ErrWrongRequestType)
}

func TestVerifyRejectsTamperedPacket(t *testing.T) {
	s := newTestSigner(t)

	p := testPacket()
	_, err := s.SignPacket(p)
	assert.NoError(t, err)

	v, err := NewVerifier(137, RequestTypeDustSweep, []string{s.Address().Hex()})
	assert.NoError(t, err)

	p.Quotes[0].Price = new(big.Int).Add(p.Quotes[0].Price, big.NewInt(1))
	_, err = v.Verify(p)
	assert.Error(t, err)
}

func TestVerifyRejectsWrongChain(t *testing.T) {
	s := newTestSigner(t)

	p := testPacket()
	_, err := s.SignPacket(p)
	assert.NoError(t, err)

	v, err := NewVerifier(1, RequestTypeDustSweep, []string{s.Address().Hex()})
	assert.NoError(t, err)

	_, err = v.Verify(p)
	assert.Error(t, err)
}

func TestVerifyRejectsBadSignatureShape(t *testing.T) {
	v, err := NewVerifier(137, RequestTypeDustSweep, nil)
	assert.NoError(t, err)

	p := testPacket()
	p.Signature = []byte{0x01, 0x02}
	_, err = v.Verify(p)
	assert.ErrorIs(t, err, ErrBadSignature)
}

func TestNewVerifierRejectsBadAddress(t *testing.T) {
	_, err := NewVerifier(137, RequestTypeDustSweep, []string{"not-an-address"})
	assert.Error(t, err)
}

func TestVerifierDigestMatchesDomain(t *testing.T) {
	v, err := NewVerifier(137, RequestTypeDustSweep, nil)
	assert.NoError(t, err)

	p := testPacket()
	assert.Equal(t, NewDomain(137).Digest(p), v.Digest(p))
}

func TestTrustedSigners(t *testing.T) {
	addr := common.HexToAddress("0x00000000000000000000000000000000000000aa")
	v, err := NewVerifier(137, RequestTypeDustSweep, []string{addr.Hex()})
	assert.NoError(t, err)
	assert.Equal(t, []string{addr.Hex()}, v.TrustedSigners())
}
