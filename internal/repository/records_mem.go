package repository

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/DustGate/dustgate/internal/model"
)

// InMemRecordStore backs deployments without Postgres. Records are kept in
// insertion order; queries walk newest-first.
type InMemRecordStore struct {
	mu      sync.RWMutex
	records []model.SettlementRecord
	payouts []model.PayoutRecord
}

func NewInMemRecordStore() *InMemRecordStore {
	return &InMemRecordStore{}
}

func (s *InMemRecordStore) SaveBatch(_ context.Context, records []model.SettlementRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, records...)
	return nil
}

func (s *InMemRecordStore) Query(_ context.Context, q model.RecordQuery) ([]model.SettlementRecord, error) {
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.SettlementRecord, 0, limit)
	for i := len(s.records) - 1; i >= 0 && len(out) < limit; i-- {
		rec := s.records[i]
		if q.Caller != "" && rec.Caller != q.Caller {
			continue
		}
		if q.Maker != "" && rec.Maker != q.Maker {
			continue
		}
		if q.Token != "" && rec.Token != q.Token {
			continue
		}
		if q.BatchID != uuid.Nil && rec.BatchID != q.BatchID {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *InMemRecordStore) SavePayout(_ context.Context, payout model.PayoutRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payouts = append(s.payouts, payout)
	return nil
}

// Payouts returns stored payouts newest-first.
func (s *InMemRecordStore) Payouts() []model.PayoutRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.PayoutRecord, len(s.payouts))
	for i := range s.payouts {
		out[len(s.payouts)-1-i] = s.payouts[i]
	}
	return out
}
