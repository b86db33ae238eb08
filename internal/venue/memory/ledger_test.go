package memory

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"

	"github.com/DustGate/dustgate/internal/venue"
)

var (
	operator = common.HexToAddress("0x00000000000000000000000000000000000000ff")
	maker    = common.HexToAddress("0x0000000000000000000000000000000000000011")
	taker    = common.HexToAddress("0x0000000000000000000000000000000000000022")
	dustTok  = common.HexToAddress("0x00000000000000000000000000000000000000d1")
)

func seededLedger() *Ledger {
	l := NewLedger(operator)
	l.CreditToken(dustTok, maker, big.NewInt(1000))
	l.Approve(dustTok, maker, big.NewInt(600))
	l.CreditNative(taker, big.NewInt(1_000_000))
	return l
}

func TestSweepTokenMovesAndConsumesAllowance(t *testing.T) {
	ctx := context.Background()
	l := seededLedger()

	tx, err := l.Begin(ctx)
	assert.NoError(t, err)

	assert.NoError(t, tx.SweepToken(ctx, dustTok, maker, taker, big.NewInt(400)))

	// The same transaction sees its own writes.
	bal, _ := tx.BalanceOf(ctx, dustTok, maker)
	assert.Equal(t, big.NewInt(600), bal)
	allow, _ := tx.Allowance(ctx, dustTok, maker)
	assert.Equal(t, big.NewInt(200), allow)
	takerBal, _ := tx.BalanceOf(ctx, dustTok, taker)
	assert.Equal(t, big.NewInt(400), takerBal)

	assert.NoError(t, tx.Commit(ctx))
}

func TestSweepTokenRejectsOverdraft(t *testing.T) {
	ctx := context.Background()
	l := seededLedger()

	tx, _ := l.Begin(ctx)
	defer tx.Rollback(ctx)

	err := tx.SweepToken(ctx, dustTok, maker, taker, big.NewInt(2000))
	assert.ErrorIs(t, err, venue.ErrInsufficientBalance)

	// Within balance but beyond the approved amount.
	err = tx.SweepToken(ctx, dustTok, maker, taker, big.NewInt(700))
	assert.ErrorIs(t, err, venue.ErrInsufficientAllowance)
}

func TestTransferNativeRejectsOverdraft(t *testing.T) {
	ctx := context.Background()
	l := seededLedger()

	tx, _ := l.Begin(ctx)
	defer tx.Rollback(ctx)

	err := tx.TransferNative(ctx, taker, operator, big.NewInt(2_000_000))
	assert.ErrorIs(t, err, venue.ErrInsufficientNative)
}

func TestRollbackRestoresEverything(t *testing.T) {
	ctx := context.Background()
	l := seededLedger()

	tx, _ := l.Begin(ctx)
	assert.NoError(t, tx.TransferNative(ctx, taker, operator, big.NewInt(500)))
	assert.NoError(t, tx.SweepToken(ctx, dustTok, maker, taker, big.NewInt(600)))
	assert.NoError(t, tx.TransferNative(ctx, operator, maker, big.NewInt(100)))
	assert.NoError(t, tx.Rollback(ctx))

	tx2, _ := l.Begin(ctx)
	defer tx2.Rollback(ctx)

	bal, _ := tx2.BalanceOf(ctx, dustTok, maker)
	assert.Equal(t, big.NewInt(1000), bal)
	allow, _ := tx2.Allowance(ctx, dustTok, maker)
	assert.Equal(t, big.NewInt(600), allow)
	takerTok, _ := tx2.BalanceOf(ctx, dustTok, taker)
	assert.Equal(t, big.NewInt(0), takerTok)
	takerNative, _ := tx2.NativeBalance(ctx, taker)
	assert.Equal(t, big.NewInt(1_000_000), takerNative)
	opNative, _ := tx2.NativeBalance(ctx, operator)
	assert.Equal(t, big.NewInt(0), opNative)
	makerNative, _ := tx2.NativeBalance(ctx, maker)
	assert.Equal(t, big.NewInt(0), makerNative)
}

func TestCommitKeepsWrites(t *testing.T) {
	ctx := context.Background()
	l := seededLedger()

	tx, _ := l.Begin(ctx)
	assert.NoError(t, tx.TransferNative(ctx, taker, maker, big.NewInt(250)))
	assert.NoError(t, tx.Commit(ctx))

	assert.Equal(t, big.NewInt(250), l.NativeBalanceOf(maker))
	assert.Equal(t, big.NewInt(999_750), l.NativeBalanceOf(taker))
}

func TestZeroAmountMovesAreNoOps(t *testing.T) {
	ctx := context.Background()
	l := seededLedger()

	tx, _ := l.Begin(ctx)
	defer tx.Commit(ctx)

	assert.NoError(t, tx.SweepToken(ctx, dustTok, maker, taker, big.NewInt(0)))
	assert.NoError(t, tx.TransferNative(ctx, maker, taker, big.NewInt(0)))

	bal, _ := tx.BalanceOf(ctx, dustTok, taker)
	assert.Equal(t, big.NewInt(0), bal)
}

func TestReadsReturnCopies(t *testing.T) {
	ctx := context.Background()
	l := seededLedger()

	tx, _ := l.Begin(ctx)
	bal, _ := tx.BalanceOf(ctx, dustTok, maker)
	bal.SetInt64(0)
	assert.NoError(t, tx.Commit(ctx))

	tx2, _ := l.Begin(ctx)
	defer tx2.Rollback(ctx)
	bal2, _ := tx2.BalanceOf(ctx, dustTok, maker)
	assert.Equal(t, big.NewInt(1000), bal2)
}

func TestApproveReplacesGrant(t *testing.T) {
	ctx := context.Background()
	l := seededLedger()
	l.Approve(dustTok, maker, big.NewInt(50))

	tx, _ := l.Begin(ctx)
	defer tx.Rollback(ctx)
	allow, _ := tx.Allowance(ctx, dustTok, maker)
	assert.Equal(t, big.NewInt(50), allow)
}
