package service

import (
	"context"

	"github.com/DustGate/dustgate/internal/model"
)

// RecordStore persists settlement legs and protocol payouts. Postgres in
// production, in-memory otherwise.
type RecordStore interface {
	SaveBatch(ctx context.Context, records []model.SettlementRecord) error
	Query(ctx context.Context, q model.RecordQuery) ([]model.SettlementRecord, error)
	SavePayout(ctx context.Context, payout model.PayoutRecord) error
}

// ReplayStore tracks consumed packet digests so one attested packet settles
// at most one batch. Reserve claims a digest; Release frees it again after
// an aborted batch.
type ReplayStore interface {
	Reserve(ctx context.Context, digest []byte) (bool, error)
	Release(ctx context.Context, digest []byte) error
}

// DestinationStore mirrors maker payout overrides so they survive restarts.
type DestinationStore interface {
	LoadAll(ctx context.Context) ([]model.DestinationOverride, error)
	Upsert(ctx context.Context, override model.DestinationOverride) error
	Delete(ctx context.Context, maker string) error
}

// RecordStreamer pushes settled legs to live subscribers.
type RecordStreamer interface {
	Broadcast(record model.SettlementRecord)
}
