package pricefeed

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer produces attested price packets. Production attestors run this out
// of band; the in-repo copy backs the inspector CLI and tests.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
	domain  Domain
}

// NewSigner creates a packet signer with a pre-calculated domain separator
func NewSigner(privateKeyHex string, chainID int64) (*Signer, error) {
	if privateKeyHex == "" {
		return nil, fmt.Errorf("private key is required")
	}
	key, err := crypto.HexToECDSA(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %v", err)
	}

	publicKey := key.Public()
	publicKeyECDSA, ok := publicKey.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("error casting public key to ECDSA")
	}

	return &Signer{
		key:     key,
		address: crypto.PubkeyToAddress(*publicKeyECDSA),
		domain:  NewDomain(chainID),
	}, nil
}

// SignPacket hashes the packet, signs the digest and stores the 65-byte
// signature on the packet. The hex form is returned for transport.
func (s *Signer) SignPacket(p *Packet) (string, error) {
	if err := p.Validate(); err != nil {
		return "", err
	}

	digest := s.domain.Digest(p)

	signature, err := crypto.Sign(digest, s.key)
	if err != nil {
		return "", err
	}

	// crypto.Sign returns [R || S || V] with V as 0/1; on-wire packets carry
	// the 27/28 convention.
	if signature[64] < 27 {
		signature[64] += 27
	}

	p.Signature = signature
	return "0x" + common.Bytes2Hex(signature), nil
}

func (s *Signer) Address() common.Address {
	return s.address
}
