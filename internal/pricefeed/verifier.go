package pricefeed

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Verifier checks attested packets against a mutable set of trusted
// attestor addresses. All checks that can fail without touching secp256k1
// run first; recovery is the expensive step.
type Verifier struct {
	domain      Domain
	requestType uint8

	mu      sync.RWMutex
	trusted map[common.Address]struct{}

	now func() time.Time
}

// NewVerifier builds a verifier bound to one chain and one request type.
func NewVerifier(chainID int64, requestType uint8, trustedSigners []string) (*Verifier, error) {
	trusted := make(map[common.Address]struct{}, len(trustedSigners))
	for _, s := range trustedSigners {
		if !common.IsHexAddress(s) {
			return nil, fmt.Errorf("invalid trusted signer address: %s", s)
		}
		trusted[common.HexToAddress(s)] = struct{}{}
	}
	return &Verifier{
		domain:      NewDomain(chainID),
		requestType: requestType,
		trusted:     trusted,
		now:         time.Now,
	}, nil
}

// Verify validates shape, request type, deadline and signature, in that
// order, and returns the recovered attestor address.
func (v *Verifier) Verify(p *Packet) (common.Address, error) {
	if err := p.Validate(); err != nil {
		return common.Address{}, err
	}
	if p.RequestType != v.requestType {
		return common.Address{}, ErrWrongRequestType
	}
	if p.Deadline < v.now().Unix() {
		return common.Address{}, ErrExpired
	}
	if len(p.Signature) != 65 {
		return common.Address{}, ErrBadSignature
	}

	digest := v.domain.Digest(p)

	// Normalize V to 0/1 for recovery without mutating the packet.
	rawSig := make([]byte, 65)
	copy(rawSig, p.Signature)
	if rawSig[64] >= 27 {
		rawSig[64] -= 27
	}

	pub, err := crypto.SigToPub(digest, rawSig)
	if err != nil {
		return common.Address{}, ErrBadSignature
	}
	recovered := crypto.PubkeyToAddress(*pub)

	v.mu.RLock()
	_, ok := v.trusted[recovered]
	v.mu.RUnlock()
	if !ok {
		return common.Address{}, ErrUntrustedSigner
	}
	return recovered, nil
}

// Digest exposes the packet digest for replay bookkeeping. Callers record it
// after a settlement commits so the same packet cannot clear twice.
func (v *Verifier) Digest(p *Packet) []byte {
	return v.domain.Digest(p)
}

// TrustSigner adds an attestor address at runtime.
func (v *Verifier) TrustSigner(addr string) error {
	if !common.IsHexAddress(addr) {
		return fmt.Errorf("invalid signer address: %s", addr)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.trusted[common.HexToAddress(addr)] = struct{}{}
	return nil
}

// RevokeSigner removes an attestor. Packets it signed stop verifying
// immediately.
func (v *Verifier) RevokeSigner(addr string) error {
	if !common.IsHexAddress(addr) {
		return fmt.Errorf("invalid signer address: %s", addr)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.trusted, common.HexToAddress(addr))
	return nil
}

// TrustedSigners lists the current attestor set.
func (v *Verifier) TrustedSigners() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]string, 0, len(v.trusted))
	for addr := range v.trusted {
		out = append(out, addr.Hex())
	}
	return out
}

// SetClock overrides the deadline clock. Test hook.
func (v *Verifier) SetClock(now func() time.Time) {
	v.now = now
}
