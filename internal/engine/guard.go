package engine

import "sync/atomic"

// Guard is the re-entrancy latch shared by settlement and treasury payout.
// Callers are serialized by the service layer before they get here, so a
// failed Enter means something inside an executing batch called back into a
// value-moving entry point.
type Guard struct {
	entered atomic.Bool
}

func (g *Guard) Enter() error {
	if !g.entered.CompareAndSwap(false, true) {
		return ErrReentrancy
	}
	return nil
}

func (g *Guard) Exit() {
	g.entered.Store(false)
}
