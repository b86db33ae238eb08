package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/DustGate/dustgate/internal/model"
)

// PGMetadataStore mirrors the token metadata cache into Postgres so a
// restart does not re-probe resolved tokens. Implements token.SnapshotStore.
type PGMetadataStore struct {
	db *gorm.DB
}

func NewPGMetadataStore(db *gorm.DB) *PGMetadataStore {
	return &PGMetadataStore{db: db}
}

func (s *PGMetadataStore) LoadAll(ctx context.Context) ([]model.TokenMetadataSnapshot, error) {
	var snaps []model.TokenMetadataSnapshot
	err := s.db.WithContext(ctx).Find(&snaps).Error
	return snaps, err
}

func (s *PGMetadataStore) Upsert(ctx context.Context, snap model.TokenMetadataSnapshot) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		UpdateAll: true,
	}).Create(&snap).Error
}
