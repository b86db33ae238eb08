package engine

import "math/big"

var bpsDen = new(big.Int).SetUint64(BpsDenominator)

// GrossValue converts a token amount into native wei at the attested price:
// amount * price / 10^decimals, truncating. Rounding loss favors the system.
func GrossValue(amount, price, scale *big.Int) *big.Int {
	gross := new(big.Int).Mul(amount, price)
	return gross.Quo(gross, scale)
}

// PayableAmount applies a tier discount to a gross value:
// gross * (10000 - discountBps) / 10000, truncating.
func PayableAmount(gross *big.Int, discountBps uint64) *big.Int {
	keep := new(big.Int).SetUint64(BpsDenominator - discountBps)
	payable := new(big.Int).Mul(gross, keep)
	return payable.Quo(payable, bpsDen)
}

// ProtocolCut takes the protocol fee over a batch's accumulated gross.
// Computed once per batch, not per leg, so rounding error does not compound.
func ProtocolCut(totalGross *big.Int, feeBps uint64) *big.Int {
	cut := new(big.Int).Mul(totalGross, new(big.Int).SetUint64(feeBps))
	return cut.Quo(cut, bpsDen)
}
