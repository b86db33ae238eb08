package token

import "math/big"

// DefaultDecimals is assumed when a token's decimals probe fails.
const DefaultDecimals uint8 = 18

// MaxDecimals bounds what a probe or an admin override may claim. Nothing
// real exceeds it, and values past it would make 10^decimals conversions
// absurd.
const MaxDecimals uint8 = 36

// How a token's decimals were resolved.
const (
	ResolutionProbed    = "probed"
	ResolutionDefaulted = "defaulted"
	ResolutionOverride  = "override"
)

// Metadata is the cached view of one token. Initialized refers to decimals
// resolution: it flips exactly once and the outcome is never revisited, even
// when the probe failed and 18 was assumed. Tier can be assigned before or
// after initialization; an unassigned tier is 0.
type Metadata struct {
	Initialized bool
	Decimals    uint8
	Tier        uint8
	Source      string
}

// Scale returns 10^decimals, the divisor that converts base units to whole
// tokens.
func (m Metadata) Scale() *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(m.Decimals)), nil)
}
