package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/DustGate/dustgate/internal/model"
)

// PGRecordStore persists settlement and payout records in Postgres.
type PGRecordStore struct {
	db *gorm.DB
}

func NewPGRecordStore(db *gorm.DB) *PGRecordStore {
	return &PGRecordStore{db: db}
}

// SaveBatch writes all legs of one settlement in a single transaction.
func (s *PGRecordStore) SaveBatch(ctx context.Context, records []model.SettlementRecord) error {
	if len(records) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Create(&records).Error
}

func (s *PGRecordStore) Query(ctx context.Context, q model.RecordQuery) ([]model.SettlementRecord, error) {
	limit := q.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	tx := s.db.WithContext(ctx).Model(&model.SettlementRecord{})
	if q.Caller != "" {
		tx = tx.Where("caller = ?", q.Caller)
	}
	if q.Maker != "" {
		tx = tx.Where("maker = ?", q.Maker)
	}
	if q.Token != "" {
		tx = tx.Where("token = ?", q.Token)
	}
	if q.BatchID != uuid.Nil {
		tx = tx.Where("batch_id = ?", q.BatchID)
	}

	var records []model.SettlementRecord
	err := tx.Order("created_at DESC").Limit(limit).Find(&records).Error
	return records, err
}

func (s *PGRecordStore) SavePayout(ctx context.Context, payout model.PayoutRecord) error {
	return s.db.WithContext(ctx).Create(&payout).Error
}
