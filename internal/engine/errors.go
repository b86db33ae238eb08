package engine

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ErrReentrancy rejects a nested call into a value-moving entry point.
var ErrReentrancy = errors.New("reentrant call into settlement path")

// ErrParamOutOfRange rejects an admin parameter outside its hard bound.
var ErrParamOutOfRange = errors.New("parameter out of range")

// SolvencyError aborts a batch whose supplied value cannot cover the next
// obligation. Required is the failing obligation, Available what the ledger
// still held.
type SolvencyError struct {
	Required  *big.Int
	Available *big.Int
}

func (e *SolvencyError) Error() string {
	return fmt.Sprintf("insufficient native value: required %s, available %s", e.Required, e.Available)
}

// Shortfall is how much more native value the batch needed.
func (e *SolvencyError) Shortfall() *big.Int {
	return new(big.Int).Sub(e.Required, e.Available)
}

// NoPriceError aborts a batch referencing a token the trusted packet does
// not price. Strictly a whole-batch failure; a skip here would let callers
// bias which tokens clear by omitting prices.
type NoPriceError struct {
	Token common.Address
}

func (e *NoPriceError) Error() string {
	return fmt.Sprintf("no trusted price for token %s", e.Token.Hex())
}

// BatchShapeError rejects a batch before any leg runs: mismatched or empty
// maker/token lists, oversize batches, or a caller outside the whitelist.
type BatchShapeError struct {
	Reason string
}

func (e *BatchShapeError) Error() string {
	return "no sweepable orders: " + e.Reason
}
