package venue

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance   = errors.New("insufficient token balance")
	ErrInsufficientAllowance = errors.New("insufficient allowance")
	ErrInsufficientNative    = errors.New("insufficient native balance")
	ErrReadOnly              = errors.New("venue is read-only")
)

// Venue is where balances live and value moves. Settlement opens one Tx per
// batch; every move inside it commits together or not at all.
type Venue interface {
	Begin(ctx context.Context) (Tx, error)
}

// Tx is a settlement transaction. Reads observe the transaction's own
// writes, so a maker/token pair swept earlier in the batch shows its reduced
// balance and allowance to later legs.
type Tx interface {
	// BalanceOf reads a token balance.
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
	// Allowance reads how much of owner's token the venue operator may move.
	Allowance(ctx context.Context, token, owner common.Address) (*big.Int, error)
	// NativeBalance reads an account's native currency balance.
	NativeBalance(ctx context.Context, account common.Address) (*big.Int, error)
	// SweepToken moves maker tokens to the taker under the operator's
	// allowance, consuming that allowance.
	SweepToken(ctx context.Context, token, maker, taker common.Address, amount *big.Int) error
	// TransferNative moves native currency between accounts.
	TransferNative(ctx context.Context, from, to common.Address, amount *big.Int) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}
