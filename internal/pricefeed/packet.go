package pricefeed

import (
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
)

// Constants for the EIP-712 packet domain
const (
	DomainName    = "DustGate Price Feed"
	DomainVersion = "1"

	// RequestTypeDustSweep is the only request type the settlement path
	// accepts. Packets attested for other flows must not clear dust.
	RequestTypeDustSweep uint8 = 1
)

var (
	// domainTypeHash is the keccak256 hash of the EIP712Domain type definition.
	// The domain carries no verifying contract; chainId alone binds a packet
	// to one deployment.
	domainTypeHash = crypto.Keccak256Hash([]byte("EIP712Domain(string name,string version,uint256 chainId)"))

	// packetTypeHash is the keccak256 hash of the PricePacket type definition
	packetTypeHash = crypto.Keccak256Hash([]byte("PricePacket(Quote[] quotes,uint8 requestType,uint256 deadline)Quote(address token,uint256 price)"))

	// quoteTypeHash is the keccak256 hash of the Quote type definition
	quoteTypeHash = crypto.Keccak256Hash([]byte("Quote(address token,uint256 price)"))
)

var (
	ErrMalformed        = errors.New("malformed packet")
	ErrDuplicateQuote   = errors.New("duplicate token in packet")
	ErrWrongRequestType = errors.New("unexpected request type")
	ErrExpired          = errors.New("packet deadline expired")
	ErrBadSignature     = errors.New("signature recovery failed")
	ErrUntrustedSigner  = errors.New("signer is not trusted")
)

// Quote is one attested (token, price) pair. Price is native wei per whole
// token, independent of the token's own decimals.
type Quote struct {
	Token common.Address
	Price *big.Int
}

// Packet is a signed batch of quotes. Quote order is part of the digest, so
// reordering entries invalidates the signature.
type Packet struct {
	Quotes      []Quote
	RequestType uint8
	Deadline    int64
	Signature   []byte
}

// Validate checks packet shape before any cryptographic work.
func (p *Packet) Validate() error {
	if p == nil || len(p.Quotes) == 0 {
		return ErrMalformed
	}
	seen := make(map[common.Address]struct{}, len(p.Quotes))
	for _, q := range p.Quotes {
		if q.Token == (common.Address{}) {
			return ErrMalformed
		}
		if q.Price == nil || q.Price.Sign() < 0 {
			return ErrMalformed
		}
		if _, ok := seen[q.Token]; ok {
			return ErrDuplicateQuote
		}
		seen[q.Token] = struct{}{}
	}
	if p.Deadline <= 0 {
		return ErrMalformed
	}
	return nil
}

// Lookup returns the packet's quotes as a price table. Validate must have
// passed; duplicates would silently collapse here otherwise.
func (p *Packet) Lookup() map[common.Address]*big.Int {
	table := make(map[common.Address]*big.Int, len(p.Quotes))
	for _, q := range p.Quotes {
		table[q.Token] = q.Price
	}
	return table
}

// Domain holds the pre-calculated EIP-712 domain separator for one chain.
type Domain struct {
	chainID   *big.Int
	separator common.Hash
}

// NewDomain pre-calculates the domain separator so per-packet hashing only
// pays for the struct hash.
func NewDomain(chainID int64) Domain {
	// keccak256(abi.encode(domainTypeHash, keccak256(name), keccak256(version), chainId))
	nameHash := crypto.Keccak256Hash([]byte(DomainName))
	versionHash := crypto.Keccak256Hash([]byte(DomainVersion))

	data := make([]byte, 32*4)
	copy(data[0:32], domainTypeHash.Bytes())
	copy(data[32:64], nameHash.Bytes())
	copy(data[64:96], versionHash.Bytes())
	copy(data[96:128], math.U256Bytes(big.NewInt(chainID)))

	return Domain{
		chainID:   big.NewInt(chainID),
		separator: crypto.Keccak256Hash(data),
	}
}

func (d Domain) ChainID() *big.Int {
	return d.chainID
}

// Digest calculates the EIP-191 hash the attestor signs:
// keccak256("\x19\x01" + domainSeparator + hashStruct(packet))
func (d Domain) Digest(p *Packet) []byte {
	return crypto.Keccak256([]byte{0x19, 0x01}, d.separator.Bytes(), hashPacket(p))
}

// hashPacket calculates hashStruct(packet). The quotes array hashes per
// EIP-712: keccak256 of the concatenated struct hashes of each element.
func hashPacket(p *Packet) []byte {
	quoteHashes := make([]byte, 0, len(p.Quotes)*32)
	for _, q := range p.Quotes {
		quoteHashes = append(quoteHashes, hashQuote(q)...)
	}
	quotesHash := crypto.Keccak256(quoteHashes)

	data := make([]byte, 32*4)
	copy(data[0:32], packetTypeHash.Bytes())
	copy(data[32:64], quotesHash)
	copy(data[64:96], math.U256Bytes(big.NewInt(int64(p.RequestType))))
	copy(data[96:128], math.U256Bytes(big.NewInt(p.Deadline)))

	return crypto.Keccak256(data)
}

// hashQuote calculates hashStruct(quote)
func hashQuote(q Quote) []byte {
	data := make([]byte, 32*3)
	copy(data[0:32], quoteTypeHash.Bytes())
	copy(data[32+12:64], q.Token.Bytes())
	if q.Price != nil {
		copy(data[64:96], math.U256Bytes(new(big.Int).Set(q.Price)))
	}
	return crypto.Keccak256(data)
}
