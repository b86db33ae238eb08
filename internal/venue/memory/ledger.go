package memory

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/DustGate/dustgate/internal/venue"
)

type balanceKey struct {
	token common.Address
	owner common.Address
}

// Ledger is a custodial in-process venue: deposited token balances, operator
// allowances and native funds all live here. A Tx mutates in place under an
// exclusive lock and keeps an undo journal, so Rollback restores the exact
// pre-batch state.
type Ledger struct {
	operator common.Address

	mu         sync.Mutex
	native     map[common.Address]*big.Int
	balances   map[balanceKey]*big.Int
	allowances map[balanceKey]*big.Int
}

func NewLedger(operator common.Address) *Ledger {
	return &Ledger{
		operator:   operator,
		native:     make(map[common.Address]*big.Int),
		balances:   make(map[balanceKey]*big.Int),
		allowances: make(map[balanceKey]*big.Int),
	}
}

func (l *Ledger) Operator() common.Address {
	return l.operator
}

// CreditNative deposits native funds into an account.
func (l *Ledger) CreditNative(account common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cur, ok := l.native[account]
	if !ok {
		cur = new(big.Int)
		l.native[account] = cur
	}
	cur.Add(cur, amount)
}

// CreditToken deposits token balance for an owner.
func (l *Ledger) CreditToken(token, owner common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := balanceKey{token: token, owner: owner}
	cur, ok := l.balances[key]
	if !ok {
		cur = new(big.Int)
		l.balances[key] = cur
	}
	cur.Add(cur, amount)
}

// Approve grants the venue operator authority over amount of owner's token,
// replacing any previous grant.
func (l *Ledger) Approve(token, owner common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowances[balanceKey{token: token, owner: owner}] = new(big.Int).Set(amount)
}

// NativeBalanceOf reads outside any transaction, for treasury reporting.
func (l *Ledger) NativeBalanceOf(account common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return copyAmount(l.native[account])
}

// Begin locks the ledger until Commit or Rollback. Settlement is serialized
// above this layer, so the lock only guards against deposits racing a batch.
func (l *Ledger) Begin(ctx context.Context) (venue.Tx, error) {
	l.mu.Lock()
	return &ledgerTx{ledger: l}, nil
}

type ledgerTx struct {
	ledger *Ledger
	undo   []func()
	closed bool
}

func (tx *ledgerTx) BalanceOf(_ context.Context, token, owner common.Address) (*big.Int, error) {
	return copyAmount(tx.ledger.balances[balanceKey{token: token, owner: owner}]), nil
}

func (tx *ledgerTx) Allowance(_ context.Context, token, owner common.Address) (*big.Int, error) {
	return copyAmount(tx.ledger.allowances[balanceKey{token: token, owner: owner}]), nil
}

func (tx *ledgerTx) NativeBalance(_ context.Context, account common.Address) (*big.Int, error) {
	return copyAmount(tx.ledger.native[account]), nil
}

func (tx *ledgerTx) SweepToken(_ context.Context, token, maker, taker common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	// Allowances are keyed by (token, maker); the grant is always to the
	// ledger's operator.
	balKey := balanceKey{token: token, owner: maker}

	balance := tx.ledger.balances[balKey]
	if balance == nil || balance.Cmp(amount) < 0 {
		return venue.ErrInsufficientBalance
	}
	allowance := tx.ledger.allowances[balKey]
	if allowance == nil || allowance.Cmp(amount) < 0 {
		return venue.ErrInsufficientAllowance
	}

	tx.snapshot(balance)
	tx.snapshot(allowance)
	balance.Sub(balance, amount)
	allowance.Sub(allowance, amount)

	takerKey := balanceKey{token: token, owner: taker}
	takerBal, ok := tx.ledger.balances[takerKey]
	if !ok {
		takerBal = new(big.Int)
		tx.ledger.balances[takerKey] = takerBal
		tx.undo = append(tx.undo, func() { delete(tx.ledger.balances, takerKey) })
	} else {
		tx.snapshot(takerBal)
	}
	takerBal.Add(takerBal, amount)
	return nil
}

func (tx *ledgerTx) TransferNative(_ context.Context, from, to common.Address, amount *big.Int) error {
	if amount.Sign() == 0 {
		return nil
	}
	fromBal := tx.ledger.native[from]
	if fromBal == nil || fromBal.Cmp(amount) < 0 {
		return venue.ErrInsufficientNative
	}

	tx.snapshot(fromBal)
	fromBal.Sub(fromBal, amount)

	toBal, ok := tx.ledger.native[to]
	if !ok {
		toBal = new(big.Int)
		tx.ledger.native[to] = toBal
		tx.undo = append(tx.undo, func() { delete(tx.ledger.native, to) })
	} else {
		tx.snapshot(toBal)
	}
	toBal.Add(toBal, amount)
	return nil
}

func (tx *ledgerTx) Commit(_ context.Context) error {
	if tx.closed {
		return nil
	}
	tx.closed = true
	tx.undo = nil
	tx.ledger.mu.Unlock()
	return nil
}

func (tx *ledgerTx) Rollback(_ context.Context) error {
	if tx.closed {
		return nil
	}
	tx.closed = true
	// Undo entries run newest-first so re-created keys delete cleanly.
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
	tx.ledger.mu.Unlock()
	return nil
}

// snapshot records the value's current magnitude for rollback.
func (tx *ledgerTx) snapshot(v *big.Int) {
	prev := new(big.Int).Set(v)
	tx.undo = append(tx.undo, func() { v.Set(prev) })
}

func copyAmount(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(v)
}
