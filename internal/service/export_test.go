package service

import (
	"sync"

	"github.com/DustGate/dustgate/internal/engine"
)

// The tests for this package live in service_test so they can use the
// in-memory repository stores without creating an import cycle
// (repository -> middleware -> service). These accessors expose the
// unexported wiring those tests need.

// EngineForTest returns the engine the service settles through.
func (s *SettlementService) EngineForTest() *engine.Engine { return s.engine }

// GateForTest returns the mutex serializing value-moving operations.
func (s *SettlementService) GateForTest() *sync.Mutex { return s.gate }
