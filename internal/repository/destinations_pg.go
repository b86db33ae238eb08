package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/DustGate/dustgate/internal/model"
)

// PGDestinationStore persists maker payout overrides. Implements
// service.DestinationStore.
type PGDestinationStore struct {
	db *gorm.DB
}

func NewPGDestinationStore(db *gorm.DB) *PGDestinationStore {
	return &PGDestinationStore{db: db}
}

func (s *PGDestinationStore) LoadAll(ctx context.Context) ([]model.DestinationOverride, error) {
	var overrides []model.DestinationOverride
	err := s.db.WithContext(ctx).Find(&overrides).Error
	return overrides, err
}

func (s *PGDestinationStore) Upsert(ctx context.Context, override model.DestinationOverride) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "maker"}},
		UpdateAll: true,
	}).Create(&override).Error
}

func (s *PGDestinationStore) Delete(ctx context.Context, maker string) error {
	return s.db.WithContext(ctx).Delete(&model.DestinationOverride{}, "maker = ?", maker).Error
}
