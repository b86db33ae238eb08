package evm

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/DustGate/dustgate/internal/chain"
	"github.com/DustGate/dustgate/internal/venue"
)

type balanceKey struct {
	token common.Address
	owner common.Address
}

// Venue previews settlements against live chain state. Every read goes to
// the RPC node; writes accumulate in a per-transaction overlay so later legs
// observe earlier ones. Commit always fails: this venue never moves real
// funds, it answers "would this batch clear right now".
type Venue struct {
	caller   *chain.Caller
	operator common.Address
}

func NewVenue(caller *chain.Caller, operator common.Address) *Venue {
	return &Venue{caller: caller, operator: operator}
}

func (v *Venue) Begin(_ context.Context) (venue.Tx, error) {
	return &previewTx{
		caller:      v.caller,
		operator:    v.operator,
		tokenDelta:  make(map[balanceKey]*big.Int),
		allowDelta:  make(map[balanceKey]*big.Int),
		nativeDelta: make(map[common.Address]*big.Int),
	}, nil
}

type previewTx struct {
	caller   *chain.Caller
	operator common.Address

	tokenDelta  map[balanceKey]*big.Int
	allowDelta  map[balanceKey]*big.Int
	nativeDelta map[common.Address]*big.Int
}

func (tx *previewTx) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	live, err := tx.caller.BalanceOf(ctx, token, owner)
	if err != nil {
		return nil, err
	}
	return applyDelta(live, tx.tokenDelta[balanceKey{token: token, owner: owner}]), nil
}

func (tx *previewTx) Allowance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	live, err := tx.caller.Allowance(ctx, token, owner, tx.operator)
	if err != nil {
		return nil, err
	}
	return applyDelta(live, tx.allowDelta[balanceKey{token: token, owner: owner}]), nil
}

func (tx *previewTx) NativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	live, err := tx.caller.NativeBalance(ctx, account)
	if err != nil {
		return nil, err
	}
	return applyDelta(live, tx.nativeDelta[account]), nil
}

func (tx *previewTx) SweepToken(ctx context.Context, token, maker, taker common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	balance, err := tx.BalanceOf(ctx, token, maker)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return venue.ErrInsufficientBalance
	}
	allowance, err := tx.Allowance(ctx, token, maker)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return venue.ErrInsufficientAllowance
	}

	shift(tx.tokenDelta, balanceKey{token: token, owner: maker}, new(big.Int).Neg(amount))
	shift(tx.tokenDelta, balanceKey{token: token, owner: taker}, amount)
	shift(tx.allowDelta, balanceKey{token: token, owner: maker}, new(big.Int).Neg(amount))
	return nil
}

func (tx *previewTx) TransferNative(ctx context.Context, from, to common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	balance, err := tx.NativeBalance(ctx, from)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return venue.ErrInsufficientNative
	}
	shiftAddr(tx.nativeDelta, from, new(big.Int).Neg(amount))
	shiftAddr(tx.nativeDelta, to, amount)
	return nil
}

func (tx *previewTx) Commit(_ context.Context) error {
	return venue.ErrReadOnly
}

func (tx *previewTx) Rollback(_ context.Context) error {
	return nil
}

func applyDelta(live, delta *big.Int) *big.Int {
	out := new(big.Int).Set(live)
	if delta != nil {
		out.Add(out, delta)
	}
	if out.Sign() < 0 {
		out.SetInt64(0)
	}
	return out
}

func shift(m map[balanceKey]*big.Int, key balanceKey, amount *big.Int) {
	cur, ok := m[key]
	if !ok {
		cur = new(big.Int)
		m[key] = cur
	}
	cur.Add(cur, amount)
}

func shiftAddr(m map[common.Address]*big.Int, key common.Address, amount *big.Int) {
	cur, ok := m[key]
	if !ok {
		cur = new(big.Int)
		m[key] = cur
	}
	cur.Add(cur, amount)
}
