package pricefeed

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/shopspring/decimal"
)

// weiPerNative converts whole native coins to wei.
var weiPerNative = decimal.New(1, 18)

// PriceFromDecimal converts a human-readable price (native coins per whole
// token) into the wei price a packet carries. Prices finer than 1 wei are
// rejected rather than rounded.
func PriceFromDecimal(human decimal.Decimal) (*big.Int, error) {
	if human.IsNegative() {
		return nil, fmt.Errorf("price must not be negative: %s", human)
	}
	wei := human.Mul(weiPerNative)
	if !wei.IsInteger() {
		return nil, fmt.Errorf("price %s has sub-wei precision", human)
	}
	return wei.BigInt(), nil
}

// DecimalFromPrice renders a wei price back to native coin units.
func DecimalFromPrice(wei *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(wei, -18)
}

// ParsePrice parses a base-10 wei price string off the wire.
func ParsePrice(s string) (*big.Int, error) {
	price, ok := new(big.Int).SetString(s, 10)
	if !ok || price.Sign() < 0 {
		return nil, fmt.Errorf("invalid price: %q", s)
	}
	return price, nil
}

// ParseSignature decodes a 0x-prefixed 65-byte packet signature.
func ParseSignature(s string) ([]byte, error) {
	raw, err := hexutil.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("invalid signature encoding")
	}
	if len(raw) != 65 {
		return nil, fmt.Errorf("invalid signature length")
	}
	return raw, nil
}
